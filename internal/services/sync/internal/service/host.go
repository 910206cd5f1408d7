package service

import (
	"context"
	"fmt"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
)

// HostLookup names one way of finding an existing host for an identity.
type HostLookup string

const (
	HostByOwner HostLookup = "user_id"
	HostByEmail HostLookup = "email"
)

// The email fallback finds profiles created before their owner had an account.
var hostLookupOrder = [...]HostLookup{HostByOwner, HostByEmail}

// HostLookupOrder returns the lookups tried by BindHost, first match wins.
func HostLookupOrder() []HostLookup {
	return hostLookupOrder[:]
}

// request builds the store filter for the lookup; false means the identity has no value
// for the lookup key. Matching is exact, emails are not normalized.
func (l HostLookup) request(id model.Identity) (store.FindHostsRequest, bool) {
	switch l {
	case HostByOwner:
		return store.FindHostsRequest{UserID: id.UserID}, id.UserID != ""
	case HostByEmail:
		return store.FindHostsRequest{Email: id.Email}, id.Email != ""
	}
	return store.FindHostsRequest{}, false
}

type BindHostRequest struct {
	// Name is the display name to store; empty keeps the stored name, falling back to the
	// identity's name.
	Name string
	// Create makes BindHost create a host when no lookup matches.
	Create bool
}

type HostBinding struct {
	Host      model.Host
	Bound     bool
	Outcome   Outcome
	MatchedBy HostLookup
}

// BindHost links the host profile of the signed-in user. An existing host found by owner
// or by email is rewritten to the identity's owner id, email and name when any of them
// differ. With Create unset and nothing found the binding reports Bound=false.
func (b *Binder) BindHost(ctx context.Context, id model.Identity, r BindHostRequest) (HostBinding, error) {
	if err := requireIdentity(id); err != nil {
		return HostBinding{}, err
	}
	if id.Email == "" {
		return HostBinding{}, serr.Validation("email is required to bind a host")
	}

	name := r.Name
	if name == "" {
		name = id.Name
	}

	ds := b.stores.Session(id.Token)
	h, by, found, err := lookupHost(ctx, ds, id)
	if err != nil {
		return HostBinding{}, err
	}

	res := HostBinding{Host: h, Bound: found, Outcome: OutcomeUnchanged, MatchedBy: by}
	switch {
	case !found && !r.Create:
		return res, nil

	case !found:
		if name == "" {
			return HostBinding{}, serr.Validation("host name is required")
		}
		res.Host, err = ds.CreateHost(ctx, model.Host{UserID: id.UserID, Email: id.Email, Name: name})
		if err != nil {
			return HostBinding{}, syncErr(err, "create", store.Hosts)
		}
		res.Bound, res.Outcome = true, OutcomeCreated

	default:
		want := h
		want.UserID = id.UserID
		want.Email = id.Email
		if name != "" {
			want.Name = name
		}
		if want != h {
			res.Host, err = ds.UpdateHost(ctx, want)
			if err != nil {
				return HostBinding{}, syncErr(err, "update", store.Hosts).With("host_id", h.ID)
			}
			res.Outcome = OutcomeUpdated
		}
	}

	b.log.Info("host bound",
		"user_id", id.UserID,
		"host_id", res.Host.ID,
		"matched_by", res.MatchedBy,
		"outcome", res.Outcome)

	return res, nil
}

func lookupHost(ctx context.Context, ds store.DataStore, id model.Identity) (model.Host, HostLookup, bool, error) {
	for _, l := range HostLookupOrder() {
		req, ok := l.request(id)
		if !ok {
			continue
		}

		hosts, err := ds.FindHosts(ctx, req)
		if err != nil {
			return model.Host{}, l, false, syncErr(err, "find", store.Hosts).With("lookup", string(l))
		}
		if len(hosts) > 0 {
			return hosts[0], l, true, nil
		}
	}

	return model.Host{}, "", false, nil
}

// IdentityRollback removes an authentication identity created by a failed sign-up.
type IdentityRollback func(ctx context.Context) error

// SignUp creates or links the host of a freshly created identity. When that fails the
// rollback runs so that no identity without a host is left behind.
func (b *Binder) SignUp(ctx context.Context, id model.Identity, name string, rollback IdentityRollback) (HostBinding, error) {
	res, err := b.BindHost(ctx, id, BindHostRequest{Name: name, Create: true})
	if err == nil {
		return res, nil
	}

	if rollback != nil {
		if rbErr := rollback(ctx); rbErr != nil {
			return HostBinding{}, fmt.Errorf("rollback identity: %v after: %w", rbErr, err)
		}
		b.log.Info("identity rolled back", "user_id", id.UserID)
	}

	return HostBinding{}, fmt.Errorf("create or link host: %w", err)
}
