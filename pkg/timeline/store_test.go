package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

func sampleTimeline(id string, created time.Time) *Timeline {
	return &Timeline{
		ID:      id,
		Session: "session-" + id,
		Created: created,
		Events: []Event{
			{Seq: 1, Kind: KindFlushStarted, Flush: 1, QueueSize: 1},
			{Seq: 2, Kind: KindWatcherRan, Flush: 1, WatcherID: 4, Expression: "count", Duration: time.Millisecond},
			{Seq: 3, Kind: KindFlushFinished, Flush: 1, Runs: 1, Updated: 1},
		},
	}
}

// exerciseStore runs the behavior every Store shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleTimeline("a", base)))
	require.NoError(t, store.Save(ctx, sampleTimeline("b", base.Add(time.Minute))))

	got, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "session-a", got.Session)
	assert.True(t, base.Equal(got.Created))
	require.Len(t, got.Events, 3)
	assert.Equal(t, "count", got.Events[1].Expression)
	assert.Equal(t, time.Millisecond, got.Events[1].Duration)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)

	assert.ErrorIs(t, store.Save(ctx, &Timeline{}), ErrInvalidTimeline)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Save(ctx, sampleTimeline("c", base)), ErrStoreClosed)
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.List(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_Limit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithLimit(2))
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, sampleTimeline(id, base.Add(time.Duration(i)*time.Second))))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, 3, list[0].Events)
	assert.Positive(t, list[0].Size)

	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SaveCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tl := sampleTimeline("a", time.Now())
	require.NoError(t, store.Save(ctx, tl))

	tl.Events[0].Kind = KindCycleDetected
	got, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, KindFlushStarted, got.Events[0].Kind)
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{ID: "x"}
	assert.Equal(t, "S001: Timeline not found: x", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := unavailable("redis", "GET", cause)

	assert.ErrorIs(t, err, cause)
	var d *rerrors.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, rerrors.CodeStoreUnavailable, d.Code)
	assert.Equal(t, "redis GET", d.Subject)
}
