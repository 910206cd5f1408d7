package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gamma-omg/partyparty/internal/pkg/fn"
	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
	"golang.org/x/sync/errgroup"
)

// Delta is the set of invite changes that turns the existing invitation list of a party
// into the desired guest selection. A guest never appears in both Add and Remove.
type Delta struct {
	Add    []string
	Remove []model.Invite
}

func (d Delta) Len() int {
	return len(d.Add) + len(d.Remove)
}

func (d Delta) Empty() bool {
	return d.Len() == 0
}

// ComputeDelta returns the guests to invite (desired ids without an invite, in the order
// given, duplicates dropped) and the invites to delete (invites whose guest is not desired,
// in the order given).
func ComputeDelta(original []model.Invite, desired []string) Delta {
	invited := make(model.GuestIDSet, len(original))
	for _, inv := range original {
		invited[inv.GuestID] = struct{}{}
	}
	want := model.NewGuestIDSet(desired...)

	var d Delta
	for _, g := range fn.Set(desired) {
		if !invited.Has(g) {
			d.Add = append(d.Add, g)
		}
	}
	for _, inv := range original {
		if !want.Has(inv.GuestID) {
			d.Remove = append(d.Remove, inv)
		}
	}
	return d
}

// Reconciler converges the invitation list of a party to a guest selection.
type Reconciler struct {
	stores      store.Sessions
	maxInFlight int
	log         *slog.Logger
}

type ReconcilerConfig struct {
	// MaxInFlight bounds concurrent store calls of one batch; zero or less means unbounded.
	MaxInFlight int
	Logger      *slog.Logger
}

func NewReconciler(stores store.Sessions, cfg ReconcilerConfig) *Reconciler {
	if stores == nil {
		panic("record store sessions are required")
	}

	r := &Reconciler{
		stores:      stores,
		maxInFlight: cfg.MaxInFlight,
		log:         cfg.Logger,
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

type ReconcileRequest struct {
	PartyID  string
	Original []model.Invite
	Desired  []string
}

type ReconcileResult struct {
	PartyID  string
	Added    []model.Invite
	Removed  []model.Invite
	Failures []OpFailure
}

// Reconcile issues one create per guest to add and one delete per invite to remove, all
// concurrently, and waits for every one of them. Failed operations are reported in a
// *PartialError next to the result; successful ones stay applied. The batch runs to
// completion even if ctx is cancelled after it was issued.
func (r *Reconciler) Reconcile(ctx context.Context, id model.Identity, req ReconcileRequest) (ReconcileResult, error) {
	if err := requireIdentity(id); err != nil {
		return ReconcileResult{}, err
	}
	if err := validateReconcile(req); err != nil {
		return ReconcileResult{}, err
	}

	res := ReconcileResult{PartyID: req.PartyID}
	delta := ComputeDelta(req.Original, req.Desired)
	if delta.Empty() {
		return res, nil
	}

	ds := r.stores.Session(id.Token)
	batchCtx := context.WithoutCancel(ctx)

	added := make([]model.Invite, len(delta.Add))
	addErrs := make([]error, len(delta.Add))
	removeErrs := make([]error, len(delta.Remove))

	var g errgroup.Group
	if r.maxInFlight > 0 {
		g.SetLimit(r.maxInFlight)
	}

	for i, guestID := range delta.Add {
		g.Go(func() error {
			added[i], addErrs[i] = ds.CreateInvite(batchCtx, model.Invite{
				PartyID: req.PartyID,
				GuestID: guestID,
				State:   model.RSVPPending,
			})
			return nil
		})
	}
	for i, inv := range delta.Remove {
		g.Go(func() error {
			err := ds.DeleteInvite(batchCtx, inv.ID)
			if errors.Is(err, store.ErrNotFound) {
				err = nil
			}
			removeErrs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for i, guestID := range delta.Add {
		if addErrs[i] != nil {
			res.Failures = append(res.Failures, OpFailure{
				Op:      OpAdd,
				GuestID: guestID,
				Err:     syncErr(addErrs[i], "create", store.Invites).With("guest_id", guestID),
			})
			continue
		}
		res.Added = append(res.Added, added[i])
	}
	for i, inv := range delta.Remove {
		if removeErrs[i] != nil {
			res.Failures = append(res.Failures, OpFailure{
				Op:       OpRemove,
				GuestID:  inv.GuestID,
				InviteID: inv.ID,
				Err:      syncErr(removeErrs[i], "delete", store.Invites).With("invite_id", inv.ID),
			})
			continue
		}
		res.Removed = append(res.Removed, inv)
	}

	r.log.Info("invites reconciled",
		"party_id", req.PartyID,
		"added", len(res.Added),
		"removed", len(res.Removed),
		"failed", len(res.Failures))

	if len(res.Failures) > 0 {
		return res, &PartialError{PartyID: req.PartyID, Failures: res.Failures}
	}
	return res, nil
}

// ReconcileParty loads the current invites of a party of the signed-in user and reconciles
// them with the desired selection. It is the entry point for retrying a partially converged
// party.
func (r *Reconciler) ReconcileParty(ctx context.Context, id model.Identity, partyID string, desired []string) (ReconcileResult, error) {
	if err := requireIdentity(id); err != nil {
		return ReconcileResult{}, err
	}
	if err := validateID("party_id", partyID); err != nil {
		return ReconcileResult{}, err
	}

	ds := r.stores.Session(id.Token)
	if err := requireOwnedParty(ctx, ds, id, partyID); err != nil {
		return ReconcileResult{}, err
	}
	return r.reconcileStored(ctx, id, ds, partyID, desired)
}

// reconcileStored reconciles against the invites the store holds. Ownership of the party
// must already be established.
func (r *Reconciler) reconcileStored(ctx context.Context, id model.Identity, ds store.DataStore, partyID string, desired []string) (ReconcileResult, error) {
	current, err := ds.FindInvites(ctx, store.FindInvitesRequest{PartyID: partyID})
	if err != nil {
		return ReconcileResult{}, syncErr(err, "find", store.Invites).With("party_id", partyID)
	}

	return r.Reconcile(ctx, id, ReconcileRequest{
		PartyID:  partyID,
		Original: current,
		Desired:  desired,
	})
}

func validateReconcile(req ReconcileRequest) error {
	if err := validateID("party_id", req.PartyID); err != nil {
		return err
	}
	for _, inv := range req.Original {
		if inv.PartyID != req.PartyID {
			return serr.Validation("invite belongs to another party").
				With("invite_id", inv.ID).
				With("party_id", inv.PartyID)
		}
		if err := validateID("invite_id", inv.ID); err != nil {
			return err
		}
	}
	for _, g := range req.Desired {
		if err := validateID("guest_id", g); err != nil {
			return err
		}
	}
	return nil
}
