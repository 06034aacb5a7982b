package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

// Store persists timelines. Implementations must be safe for concurrent use.
type Store interface {
	// Save persists t, overwriting a timeline with the same id.
	Save(ctx context.Context, t *Timeline) error

	// Load returns the timeline with the given id, or an error matching
	// ErrNotFound.
	Load(ctx context.Context, id string) (*Timeline, error)

	// List returns summaries of the stored timelines, newest first.
	List(ctx context.Context) ([]Summary, error)

	// Close releases resources held by the store.
	Close() error
}

var (
	// ErrNotFound is matched by errors returned from Load for unknown ids.
	ErrNotFound = errors.New("timeline: not found")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("timeline: store is closed")

	// ErrInvalidTimeline is returned when saving a timeline without an id.
	ErrInvalidTimeline = errors.New("timeline: missing id")
)

// NotFoundError reports an unknown timeline id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return rerrors.New(rerrors.CodeTimelineNotFound).WithSubject(e.ID).Error()
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// unavailable wraps a backend failure in a storage diagnostic.
func unavailable(backend, op string, err error) error {
	return rerrors.New(rerrors.CodeStoreUnavailable).
		WithSubject(fmt.Sprintf("%s %s", backend, op)).
		Wrap(err)
}

func encode(t *Timeline) ([]byte, error) {
	if t == nil || t.ID == "" {
		return nil, ErrInvalidTimeline
	}
	return json.Marshal(t)
}

func decode(data []byte) (*Timeline, error) {
	var t Timeline
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("timeline: decode: %w", err)
	}
	return &t, nil
}
