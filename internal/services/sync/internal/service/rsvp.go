package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/journal"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
)

var rsvpTransitions = map[model.RSVPState]model.RSVPState{
	model.RSVPPending:  model.RSVPAccepted,
	model.RSVPAccepted: model.RSVPDeclined,
	model.RSVPDeclined: model.RSVPMaybe,
	model.RSVPMaybe:    model.RSVPPending,
}

// NextRSVP returns the state that follows s. Unknown states count as pending.
func NextRSVP(s model.RSVPState) model.RSVPState {
	return rsvpTransitions[s.OrPending()]
}

// Advance returns the invite moved to its next RSVP state.
func Advance(inv model.Invite) model.Invite {
	inv.State = NextRSVP(inv.State)
	return inv
}

// RSVPJournal records local RSVP states until the record store confirms them.
type RSVPJournal interface {
	Record(ctx context.Context, e journal.Entry) error
	Get(ctx context.Context, inviteID string) (journal.Entry, error)
	Confirm(ctx context.Context, inviteID string, state model.RSVPState) error
	Pending(ctx context.Context, r journal.PendingRequest) ([]journal.Entry, error)
	Forget(ctx context.Context, inviteID string) error
}

// RSVPService applies RSVP transitions optimistically and tracks which of them the record
// store has acknowledged.
type RSVPService struct {
	stores  store.Sessions
	journal RSVPJournal
	log     *slog.Logger
}

type RSVPConfig struct {
	Logger *slog.Logger
}

func NewRSVPService(stores store.Sessions, j RSVPJournal, cfg RSVPConfig) *RSVPService {
	if stores == nil {
		panic("record store sessions are required")
	}
	if j == nil {
		panic("rsvp journal is required")
	}

	s := &RSVPService{
		stores:  stores,
		journal: j,
		log:     cfg.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

type AdvanceResult struct {
	Invite    model.Invite
	Previous  model.RSVPState
	Confirmed bool
}

// Advance moves the invite to its next RSVP state and persists it. While an earlier local
// state is still unconfirmed, that state is the starting point. If the write fails the new
// state is kept locally and returned together with the error. Invites of parties the user
// does not own are reported as not found.
func (s *RSVPService) Advance(ctx context.Context, id model.Identity, inviteID string) (AdvanceResult, error) {
	if err := requireIdentity(id); err != nil {
		return AdvanceResult{}, err
	}
	if err := validateID("invite_id", inviteID); err != nil {
		return AdvanceResult{}, err
	}

	ds := s.stores.Session(id.Token)
	found, err := ds.FindInvites(ctx, store.FindInvitesRequest{ID: inviteID})
	if err != nil {
		return AdvanceResult{}, syncErr(err, "find", store.Invites).With("invite_id", inviteID)
	}
	if len(found) == 0 {
		return AdvanceResult{}, serr.NotFound(store.ErrNotFound, "invite not found").With("invite_id", inviteID)
	}

	inv := found[0]
	if err := requireOwnedParty(ctx, ds, id, inv.PartyID); err != nil {
		if serr.Is(err, serr.KindNotFound) {
			return AdvanceResult{}, serr.NotFound(store.ErrNotFound, "invite not found").With("invite_id", inviteID)
		}
		return AdvanceResult{}, err
	}
	inv.State = inv.State.OrPending()
	confirmed := inv.State

	prev, err := s.journal.Get(ctx, inviteID)
	switch {
	case err == nil:
		if prev.Drifting() && prev.UserID == id.UserID {
			inv.State = prev.Local
		}
	case !errors.Is(err, journal.ErrNotFound):
		return AdvanceResult{}, fmt.Errorf("load rsvp entry: %w", err)
	}

	res := AdvanceResult{
		Invite:   Advance(inv),
		Previous: inv.State,
	}

	err = s.journal.Record(ctx, journal.Entry{
		InviteID:  inviteID,
		UserID:    id.UserID,
		PartyID:   inv.PartyID,
		GuestID:   inv.GuestID,
		Local:     res.Invite.State,
		Confirmed: confirmed,
	})
	if err != nil {
		return AdvanceResult{}, fmt.Errorf("record rsvp: %w", err)
	}

	if _, err := ds.UpdateInvite(ctx, res.Invite); err != nil {
		s.log.Error("rsvp not persisted",
			"invite_id", inviteID,
			"local", res.Invite.State,
			"confirmed", confirmed,
			"error", err)
		return res, syncErr(err, "update", store.Invites).With("invite_id", inviteID)
	}

	if err := s.journal.Confirm(ctx, inviteID, res.Invite.State); err != nil {
		s.log.Error("failed to confirm rsvp", "invite_id", inviteID, "error", err)
		return res, nil
	}

	res.Confirmed = true
	return res, nil
}

// Drift is an RSVP state chosen locally that the record store does not hold.
type Drift struct {
	InviteID string
	GuestID  string
	Local    model.RSVPState
	Remote   model.RSVPState
	Missing  bool
}

// Drift compares the unconfirmed RSVP states of a party with the record store. Entries
// the store caught up with are confirmed. The others are returned; those whose invite no
// longer exists are reported once and forgotten.
func (s *RSVPService) Drift(ctx context.Context, id model.Identity, partyID string) ([]Drift, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	if err := validateID("party_id", partyID); err != nil {
		return nil, err
	}

	pending, err := s.journal.Pending(ctx, journal.PendingRequest{UserID: id.UserID, PartyID: partyID})
	if err != nil {
		return nil, fmt.Errorf("list pending rsvps: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	invites, err := s.stores.Session(id.Token).FindInvites(ctx, store.FindInvitesRequest{PartyID: partyID})
	if err != nil {
		return nil, syncErr(err, "find", store.Invites).With("party_id", partyID)
	}
	remote := make(map[string]model.Invite, len(invites))
	for _, inv := range invites {
		remote[inv.ID] = inv
	}

	var drifts []Drift
	for _, e := range pending {
		inv, ok := remote[e.InviteID]
		if !ok {
			drifts = append(drifts, Drift{
				InviteID: e.InviteID,
				GuestID:  e.GuestID,
				Local:    e.Local,
				Missing:  true,
			})
			if err := s.journal.Forget(ctx, e.InviteID); err != nil {
				s.log.Error("failed to forget rsvp", "invite_id", e.InviteID, "error", err)
			}
			continue
		}

		state := inv.State.OrPending()
		if state == e.Local {
			if err := s.journal.Confirm(ctx, e.InviteID, state); err != nil {
				s.log.Error("failed to confirm rsvp", "invite_id", e.InviteID, "error", err)
			}
			continue
		}

		drifts = append(drifts, Drift{
			InviteID: e.InviteID,
			GuestID:  e.GuestID,
			Local:    e.Local,
			Remote:   state,
		})
	}

	if len(drifts) > 0 {
		s.log.Warn("rsvp drift detected", "party_id", partyID, "count", len(drifts))
	}
	return drifts, nil
}
