package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
	"github.com/stretchr/testify/require"
)

var (
	alice = model.Identity{UserID: "alice", Email: "alice@example.com", Name: "Alice", Token: "alice-token"}
	bob   = model.Identity{UserID: "bob", Email: "bob@example.com", Name: "Bob", Token: "bob-token"}

	errStoreDown = errors.New("store unavailable")
	fixedNow     = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() time.Time {
	return fixedNow
}

type mockCache struct {
	getFunc    func(ctx context.Context, token string) (model.Device, bool)
	setFunc    func(ctx context.Context, d model.Device)
	deleteFunc func(ctx context.Context, token string)
}

func (m *mockCache) Get(ctx context.Context, token string) (model.Device, bool) {
	if m.getFunc == nil {
		return model.Device{}, false
	}
	return m.getFunc(ctx, token)
}

func (m *mockCache) Set(ctx context.Context, d model.Device) {
	if m.setFunc != nil {
		m.setFunc(ctx, d)
	}
}

func (m *mockCache) Delete(ctx context.Context, token string) {
	if m.deleteFunc != nil {
		m.deleteFunc(ctx, token)
	}
}

// countingSessions counts the sessions opened against the wrapped store.
type countingSessions struct {
	store.Sessions
	opened int
}

func (c *countingSessions) Session(bearer string) store.DataStore {
	c.opened++
	return c.Sessions.Session(bearer)
}

// failOn makes the memory store fail every operation matching kind and collection.
func failOn(m *store.Memory, kind store.OpKind, c store.Collection, match func(store.Op) bool) {
	m.Intercept(func(op store.Op) error {
		if op.Kind == kind && op.Collection == c && (match == nil || match(op)) {
			return errStoreDown
		}
		return nil
	})
}

// seedParty creates a party owned by owner and returns its id.
func seedParty(t *testing.T, m *store.Memory, owner model.Identity) string {
	t.Helper()

	p, err := m.Session("seed").CreateParty(t.Context(), model.Party{
		Title:        "Birthday",
		Details:      "Cake at eight",
		ScheduledFor: fixedNow.Add(24 * time.Hour),
		UserID:       owner.UserID,
	})
	require.NoError(t, err)
	return p.ID
}

func seedInvites(t *testing.T, m *store.Memory, partyID string, guestIDs ...string) []model.Invite {
	t.Helper()

	var invites []model.Invite
	for _, g := range guestIDs {
		inv, err := m.Session("seed").CreateInvite(t.Context(), model.Invite{PartyID: partyID, GuestID: g})
		require.NoError(t, err)
		invites = append(invites, inv)
	}
	return invites
}

func guestIDs(invites []model.Invite) []string {
	ids := make([]string, 0, len(invites))
	for _, inv := range invites {
		ids = append(ids, inv.GuestID)
	}
	return ids
}
