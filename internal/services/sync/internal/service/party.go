package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
)

type PartyService struct {
	stores     store.Sessions
	reconciler *Reconciler
	now        func() time.Time
	log        *slog.Logger
}

type PartyConfig struct {
	Clock  func() time.Time
	Logger *slog.Logger
}

func NewPartyService(stores store.Sessions, rec *Reconciler, cfg PartyConfig) *PartyService {
	if stores == nil {
		panic("record store sessions are required")
	}
	if rec == nil {
		panic("reconciler is required")
	}

	s := &PartyService{
		stores:     stores,
		reconciler: rec,
		now:        cfg.Clock,
		log:        cfg.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

type SavePartyRequest struct {
	ID           string
	Title        string
	Details      string
	ScheduledFor time.Time
	GuestIDs     []string
}

type PartyResult struct {
	Party     model.Party
	Reconcile ReconcileResult
}

func (s *PartyService) ListParties(ctx context.Context, id model.Identity) ([]model.Party, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	parties, err := s.stores.Session(id.Token).FindParties(ctx, store.FindPartiesRequest{UserID: id.UserID})
	if err != nil {
		return nil, syncErr(err, "find", store.Parties)
	}
	return parties, nil
}

// CreateParty creates a party owned by the signed-in user and invites the selected guests.
// When some invites fail the party is kept and a *PartialError is returned with the result.
func (s *PartyService) CreateParty(ctx context.Context, id model.Identity, r SavePartyRequest) (PartyResult, error) {
	if err := requireIdentity(id); err != nil {
		return PartyResult{}, err
	}
	if err := s.validate(r); err != nil {
		return PartyResult{}, err
	}

	party, err := s.stores.Session(id.Token).CreateParty(ctx, model.Party{
		Title:        r.Title,
		Details:      r.Details,
		ScheduledFor: r.ScheduledFor.UTC(),
		UserID:       id.UserID,
	})
	if err != nil {
		return PartyResult{}, syncErr(err, "create", store.Parties)
	}
	s.log.Info("party created", "party_id", party.ID, "guests", len(r.GuestIDs))

	rec, err := s.reconciler.Reconcile(ctx, id, ReconcileRequest{
		PartyID: party.ID,
		Desired: r.GuestIDs,
	})
	return PartyResult{Party: party, Reconcile: rec}, err
}

// UpdateParty rewrites a party of the signed-in user and converges its invites to the
// selected guests.
func (s *PartyService) UpdateParty(ctx context.Context, id model.Identity, r SavePartyRequest) (PartyResult, error) {
	if err := requireIdentity(id); err != nil {
		return PartyResult{}, err
	}
	if err := validateID("party_id", r.ID); err != nil {
		return PartyResult{}, err
	}
	if err := s.validate(r); err != nil {
		return PartyResult{}, err
	}

	ds := s.stores.Session(id.Token)
	if err := requireOwnedParty(ctx, ds, id, r.ID); err != nil {
		return PartyResult{}, err
	}

	party, err := ds.UpdateParty(ctx, model.Party{
		ID:           r.ID,
		Title:        r.Title,
		Details:      r.Details,
		ScheduledFor: r.ScheduledFor.UTC(),
		UserID:       id.UserID,
	})
	if err != nil {
		return PartyResult{}, syncErr(err, "update", store.Parties).With("party_id", r.ID)
	}

	rec, err := s.reconciler.reconcileStored(ctx, id, ds, party.ID, r.GuestIDs)
	return PartyResult{Party: party, Reconcile: rec}, err
}

func (s *PartyService) validate(r SavePartyRequest) error {
	if strings.TrimSpace(r.Title) == "" {
		return serr.Validation("title is required")
	}
	if strings.TrimSpace(r.Details) == "" {
		return serr.Validation("details are required")
	}
	if !r.ScheduledFor.After(s.now()) {
		return serr.Validation("party must be scheduled in the future").
			With("scheduled_for", r.ScheduledFor.UTC().Format(time.RFC3339))
	}
	return nil
}

// requireOwnedParty fails with not_found unless the party belongs to the signed-in user.
// Parties of other users are indistinguishable from missing ones.
func requireOwnedParty(ctx context.Context, ds store.DataStore, id model.Identity, partyID string) error {
	owned, err := ds.FindParties(ctx, store.FindPartiesRequest{UserID: id.UserID})
	if err != nil {
		return syncErr(err, "find", store.Parties).With("party_id", partyID)
	}
	if !ownsParty(owned, partyID) {
		return serr.NotFound(store.ErrNotFound, "party not found").With("party_id", partyID)
	}
	return nil
}

func ownsParty(parties []model.Party, partyID string) bool {
	for _, p := range parties {
		if p.ID == partyID {
			return true
		}
	}
	return false
}
