package notify

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter implements Adapter for testing. It records posted events and
// can simulate delivery failure.
type MockAdapter struct {
	mu     sync.Mutex
	closed bool
	posted []Event
	Err    error // returned from Post when set
}

// NewMockAdapter creates a MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// Post records the event.
func (m *MockAdapter) Post(ctx context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	if m.Err != nil {
		return m.Err
	}
	m.posted = append(m.posted, evt)
	return nil
}

// Close marks the adapter closed.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Posted returns a copy of the recorded events.
func (m *MockAdapter) Posted() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.posted))
	copy(out, m.posted)
	return out
}
