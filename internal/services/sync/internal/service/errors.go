package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
)

const maxIDLength = 256

func requireIdentity(id model.Identity) error {
	if !id.Authenticated() {
		return serr.NotAuthenticated("signed-in user is required")
	}
	return nil
}

// validateID rejects ids that cannot be used as a record key in a store path.
func validateID(field, id string) error {
	if id == "" {
		return serr.Validation("%s is required", field)
	}
	if len(id) > maxIDLength {
		return serr.Validation("%s is too long", field).With(field, id[:32]+"...")
	}
	if strings.ContainsRune(id, '/') || strings.IndexFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return serr.Validation("%s is malformed", field).With(field, id)
	}
	return nil
}

// syncErr classifies a failed store call. A rejected credential is reported as
// not_authenticated, everything else as sync_failure.
func syncErr(err error, op string, c store.Collection) *serr.Error {
	var se *serr.Error
	if errors.Is(err, store.ErrUnauthorized) {
		se = serr.New(serr.KindNotAuthenticated, err, "%s %s rejected", op, c)
	} else {
		se = serr.SyncFailure(err, "%s %s", op, c)
	}
	return se.With("collection", string(c))
}

type MembershipOp string

const (
	OpAdd    MembershipOp = "add"
	OpRemove MembershipOp = "remove"
)

// OpFailure is one invite operation of a batch that did not complete.
type OpFailure struct {
	Op       MembershipOp
	GuestID  string
	InviteID string
	Err      error
}

// PartialError reports a reconciliation batch in which some operations failed. Successful
// operations are not rolled back; reconciling again retries only the remainder.
type PartialError struct {
	PartyID  string
	Failures []OpFailure
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("reconcile party %s: %d invite operations failed", e.PartyID, len(e.Failures))
}

func (e *PartialError) Kind() serr.Kind {
	return serr.KindPartialReconciliation
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// GuestIDs returns the guest ids whose operation of the given kind failed.
func (e *PartialError) GuestIDs(op MembershipOp) []string {
	var ids []string
	for _, f := range e.Failures {
		if f.Op == op {
			ids = append(ids, f.GuestID)
		}
	}
	return ids
}
