package store

import (
	"net/url"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
)

// Find requests filter by exact match on every non-empty field.

type FindDevicesRequest struct {
	Token string
}

func (r FindDevicesRequest) query() url.Values {
	return filter("token", r.Token)
}

func (r FindDevicesRequest) match(d model.Device) bool {
	return r.Token == "" || d.Token == r.Token
}

type FindHostsRequest struct {
	UserID string
	Email  string
}

func (r FindHostsRequest) query() url.Values {
	return filter("user_id", r.UserID, "email", r.Email)
}

func (r FindHostsRequest) match(h model.Host) bool {
	return (r.UserID == "" || h.UserID == r.UserID) &&
		(r.Email == "" || h.Email == r.Email)
}

type FindPartiesRequest struct {
	UserID string
}

func (r FindPartiesRequest) query() url.Values {
	return filter("user_id", r.UserID)
}

func (r FindPartiesRequest) match(p model.Party) bool {
	return r.UserID == "" || p.UserID == r.UserID
}

type FindGuestsRequest struct {
	IDs []string
}

func (r FindGuestsRequest) query() url.Values {
	return url.Values{}
}

func (r FindGuestsRequest) match(g model.Guest) bool {
	if len(r.IDs) == 0 {
		return true
	}
	for _, id := range r.IDs {
		if g.ID == id {
			return true
		}
	}
	return false
}

type FindInvitesRequest struct {
	ID      string
	PartyID string
}

func (r FindInvitesRequest) query() url.Values {
	return filter("id", r.ID, "party_id", r.PartyID)
}

func (r FindInvitesRequest) match(inv model.Invite) bool {
	return (r.ID == "" || inv.ID == r.ID) &&
		(r.PartyID == "" || inv.PartyID == r.PartyID)
}

func filter(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	return q
}
