package journal

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
)

// Memory keeps the journal in process. Entries are lost on restart.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

func (m *Memory) Record(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.UpdatedAt = m.now().UTC()
	m.entries[e.InviteID] = e
	return nil
}

func (m *Memory) Get(ctx context.Context, inviteID string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[inviteID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) Confirm(ctx context.Context, inviteID string, state model.RSVPState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[inviteID]
	if !ok {
		return nil
	}
	e.Confirmed = state
	e.UpdatedAt = m.now().UTC()
	m.entries[inviteID] = e
	return nil
}

func (m *Memory) Pending(ctx context.Context, r PendingRequest) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Entry
	for _, e := range m.entries {
		if r.match(e) {
			result = append(result, e)
		}
	}
	slices.SortFunc(result, func(a, b Entry) int {
		return strings.Compare(a.InviteID, b.InviteID)
	})
	return result, nil
}

func (m *Memory) Forget(ctx context.Context, inviteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, inviteID)
	return nil
}
