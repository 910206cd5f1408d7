package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(s store.Sessions) *Reconciler {
	return NewReconciler(s, ReconcilerConfig{MaxInFlight: 4, Logger: discardLogger()})
}

func TestComputeDelta(t *testing.T) {
	original := []model.Invite{
		{ID: "i1", PartyID: "p1", GuestID: "g1"},
		{ID: "i2", PartyID: "p1", GuestID: "g2"},
		{ID: "i3", PartyID: "p1", GuestID: "g3"},
	}

	d := ComputeDelta(original, []string{"g4", "g2", "g4", "g5"})

	assert.Equal(t, []string{"g4", "g5"}, d.Add)
	assert.Equal(t, []string{"g1", "g3"}, guestIDs(d.Remove))
	assert.Equal(t, 4, d.Len())
}

func TestComputeDelta_Disjoint(t *testing.T) {
	cases := []struct {
		name     string
		original []string
		desired  []string
	}{
		{"empty", nil, nil},
		{"only adds", nil, []string{"a", "b"}},
		{"only removes", []string{"a", "b"}, nil},
		{"overlap", []string{"a", "b", "c"}, []string{"b", "c", "d"}},
		{"same", []string{"a", "b"}, []string{"b", "a"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var original []model.Invite
			for i, g := range c.original {
				original = append(original, model.Invite{ID: string(rune('0' + i)), PartyID: "p", GuestID: g})
			}

			d := ComputeDelta(original, c.desired)

			removed := model.NewGuestIDSet(guestIDs(d.Remove)...)
			for _, g := range d.Add {
				assert.False(t, removed.Has(g), "guest %s both added and removed", g)
			}

			// applying the delta yields exactly the desired set
			result := model.NewGuestIDSet(c.original...)
			for g := range removed {
				delete(result, g)
			}
			for _, g := range d.Add {
				result[g] = struct{}{}
			}
			assert.Equal(t, model.NewGuestIDSet(c.desired...), result)
		})
	}
}

func TestComputeDelta_SameSetIsEmpty(t *testing.T) {
	original := []model.Invite{{ID: "i1", GuestID: "g1"}, {ID: "i2", GuestID: "g2"}}
	assert.True(t, ComputeDelta(original, []string{"g2", "g1"}).Empty())
}

func TestReconcile_AddsAndRemoves(t *testing.T) {
	m := store.NewMemory()
	original := seedInvites(t, m, "p1", "g1", "g2")

	res, err := newTestReconciler(m).Reconcile(t.Context(), alice, ReconcileRequest{
		PartyID:  "p1",
		Original: original,
		Desired:  []string{"g2", "g3"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"g3"}, guestIDs(res.Added))
	assert.Equal(t, model.RSVPPending, res.Added[0].State)
	assert.Equal(t, []string{"g1"}, guestIDs(res.Removed))
	assert.ElementsMatch(t, []string{"g2", "g3"}, guestIDs(m.Invites()))
}

func TestReconcile_Idempotent(t *testing.T) {
	m := store.NewMemory()
	partyID := seedParty(t, m, alice)
	rec := newTestReconciler(m)
	desired := []string{"g1", "g2", "g3"}

	_, err := rec.ReconcileParty(t.Context(), alice, partyID, desired)
	require.NoError(t, err)
	writes := m.Writes()

	res, err := rec.ReconcileParty(t.Context(), alice, partyID, desired)
	require.NoError(t, err)

	assert.Empty(t, res.Added)
	assert.Empty(t, res.Removed)
	assert.Equal(t, writes, m.Writes())
}

func TestReconcile_EmptyDeltaIssuesNoCalls(t *testing.T) {
	sessions := &countingSessions{Sessions: store.NewMemory()}
	original := []model.Invite{{ID: "i1", PartyID: "p1", GuestID: "g1"}}

	res, err := newTestReconciler(sessions).Reconcile(t.Context(), alice, ReconcileRequest{
		PartyID:  "p1",
		Original: original,
		Desired:  []string{"g1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "p1", res.PartyID)
	assert.Zero(t, sessions.opened)
}

func TestReconcile_PartialFailureThenRetry(t *testing.T) {
	m := store.NewMemory()
	partyID := seedParty(t, m, alice)
	failOn(m, store.OpCreate, store.Invites, func(op store.Op) bool {
		return op.Key == "g2"
	})
	rec := newTestReconciler(m)

	res, err := rec.ReconcileParty(t.Context(), alice, partyID, []string{"g1", "g2"})

	var perr *PartialError
	require.ErrorAs(t, err, &perr)
	assert.True(t, serr.Is(err, serr.KindPartialReconciliation))
	assert.Equal(t, []string{"g2"}, perr.GuestIDs(OpAdd))
	assert.Empty(t, perr.GuestIDs(OpRemove))
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []string{"g1"}, guestIDs(res.Added))

	current, err := m.Session(alice.Token).FindInvites(t.Context(), store.FindInvitesRequest{PartyID: partyID})
	require.NoError(t, err)
	d := ComputeDelta(current, []string{"g1", "g2"})
	assert.Equal(t, []string{"g2"}, d.Add)
	assert.Empty(t, d.Remove)

	m.Intercept(nil)
	res, err = rec.ReconcileParty(t.Context(), alice, partyID, []string{"g1", "g2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, guestIDs(res.Added))
	assert.ElementsMatch(t, []string{"g1", "g2"}, guestIDs(m.Invites()))
}

func TestReconcile_RemoveFailure(t *testing.T) {
	m := store.NewMemory()
	original := seedInvites(t, m, "p1", "g1", "g2")
	failOn(m, store.OpDelete, store.Invites, func(op store.Op) bool {
		return op.ID == original[0].ID
	})

	res, err := newTestReconciler(m).Reconcile(t.Context(), alice, ReconcileRequest{
		PartyID:  "p1",
		Original: original,
	})

	var perr *PartialError
	require.ErrorAs(t, err, &perr)
	require.Len(t, perr.Failures, 1)
	assert.Equal(t, OpRemove, perr.Failures[0].Op)
	assert.Equal(t, "g1", perr.Failures[0].GuestID)
	assert.Equal(t, original[0].ID, perr.Failures[0].InviteID)
	assert.Equal(t, []string{"g2"}, guestIDs(res.Removed))
}

func TestReconcile_AlreadyDeletedCountsAsRemoved(t *testing.T) {
	m := store.NewMemory()

	res, err := newTestReconciler(m).Reconcile(t.Context(), alice, ReconcileRequest{
		PartyID:  "p1",
		Original: []model.Invite{{ID: "gone", PartyID: "p1", GuestID: "g1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"g1"}, guestIDs(res.Removed))
}

func TestReconcile_CompletesAfterCancel(t *testing.T) {
	m := store.NewMemory()
	ctx, cancel := context.WithCancel(t.Context())

	var calls atomic.Int32
	m.Intercept(func(op store.Op) error {
		if calls.Add(1) == 1 {
			cancel()
		}
		return nil
	})

	res, err := newTestReconciler(m).Reconcile(ctx, alice, ReconcileRequest{
		PartyID: "p1",
		Desired: []string{"g1", "g2", "g3"},
	})
	require.NoError(t, err)

	assert.Len(t, res.Added, 3)
	assert.Len(t, m.Invites(), 3)
}

func TestReconcile_BoundsConcurrency(t *testing.T) {
	m := store.NewMemory()
	var inFlight, peak atomic.Int32
	m.Intercept(func(op store.Op) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	rec := NewReconciler(m, ReconcilerConfig{MaxInFlight: 2, Logger: discardLogger()})
	_, err := rec.Reconcile(t.Context(), alice, ReconcileRequest{
		PartyID: "p1",
		Desired: []string{"g1", "g2", "g3", "g4", "g5", "g6"},
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestReconcile_Validation(t *testing.T) {
	rec := newTestReconciler(store.NewMemory())

	cases := []struct {
		name string
		req  ReconcileRequest
	}{
		{"missing party", ReconcileRequest{Desired: []string{"g1"}}},
		{"party with slash", ReconcileRequest{PartyID: "p/1"}},
		{"foreign invite", ReconcileRequest{PartyID: "p1", Original: []model.Invite{{ID: "i1", PartyID: "p2", GuestID: "g1"}}}},
		{"empty guest", ReconcileRequest{PartyID: "p1", Desired: []string{""}}},
		{"guest with space", ReconcileRequest{PartyID: "p1", Desired: []string{"g 1"}}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := rec.Reconcile(t.Context(), alice, c.req)
			assert.True(t, serr.Is(err, serr.KindValidation), "got %v", err)
		})
	}
}

func TestReconcile_NotAuthenticated(t *testing.T) {
	sessions := &countingSessions{Sessions: store.NewMemory()}

	_, err := newTestReconciler(sessions).ReconcileParty(t.Context(), model.Identity{UserID: "alice"}, "p1", []string{"g1"})

	assert.True(t, serr.Is(err, serr.KindNotAuthenticated))
	assert.Zero(t, sessions.opened)
}

func TestReconcileParty_LoadFailure(t *testing.T) {
	m := store.NewMemory()
	partyID := seedParty(t, m, alice)
	failOn(m, store.OpFind, store.Invites, nil)

	_, err := newTestReconciler(m).ReconcileParty(t.Context(), alice, partyID, []string{"g1"})

	assert.True(t, serr.Is(err, serr.KindSyncFailure))
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestReconcileParty_OtherOwner(t *testing.T) {
	m := store.NewMemory()
	partyID := seedParty(t, m, alice)
	seedInvites(t, m, partyID, "g1", "g2")
	writes := m.Writes()

	_, err := newTestReconciler(m).ReconcileParty(t.Context(), bob, partyID, nil)

	assert.True(t, serr.Is(err, serr.KindNotFound))
	assert.Len(t, m.Invites(), 2)
	assert.Equal(t, writes, m.Writes())
}

func TestReconcileParty_UnknownParty(t *testing.T) {
	m := store.NewMemory()

	_, err := newTestReconciler(m).ReconcileParty(t.Context(), alice, "missing", []string{"g1"})

	assert.True(t, serr.Is(err, serr.KindNotFound))
	assert.Empty(t, m.Invites())
}
