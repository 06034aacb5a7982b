package timeline

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps timelines in process memory. It is the default store and
// loses everything when the process exits.
type MemoryStore struct {
	mu        sync.RWMutex
	timelines map[string][]byte
	summaries map[string]Summary
	limit     int
	closed    bool
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithLimit caps the number of stored timelines; the oldest is evicted when
// the cap is exceeded. Zero means no cap.
func WithLimit(n int) MemoryStoreOption {
	return func(m *MemoryStore) {
		m.limit = n
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	m := &MemoryStore{
		timelines: make(map[string][]byte),
		summaries: make(map[string]Summary),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save implements Store. The timeline is stored encoded, so later changes to
// t do not affect the stored copy.
func (m *MemoryStore) Save(_ context.Context, t *Timeline) error {
	data, err := encode(t)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.timelines[t.ID] = data
	sum := summarize(t)
	sum.Size = int64(len(data))
	m.summaries[t.ID] = sum

	if m.limit > 0 && len(m.timelines) > m.limit {
		m.evictOldestLocked()
	}
	return nil
}

func (m *MemoryStore) evictOldestLocked() {
	var oldest *Summary
	for _, s := range m.summaries {
		if oldest == nil || s.Created.Before(oldest.Created) {
			oldest = &s
		}
	}
	if oldest != nil {
		delete(m.timelines, oldest.ID)
		delete(m.summaries, oldest.ID)
	}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*Timeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	data, ok := m.timelines[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return decode(data)
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]Summary, 0, len(m.summaries))
	for _, s := range m.summaries {
		out = append(out, s)
	}
	sortNewestFirst(out)
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.timelines = nil
	m.summaries = nil
	return nil
}

func sortNewestFirst(s []Summary) {
	slices.SortFunc(s, func(a, b Summary) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
