package rest

import (
	"errors"
	"time"

	"github.com/gamma-omg/partyparty/internal/pkg/fn"
	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/service"
)

type deviceDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDevice(d model.Device) deviceDTO {
	return deviceDTO{
		ID:        d.ID,
		UserID:    d.UserID,
		Token:     d.Token,
		Platform:  string(d.Platform),
		UpdatedAt: d.UpdatedAt,
	}
}

type hostDTO struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func toHost(h model.Host) hostDTO {
	return hostDTO{ID: h.ID, UserID: h.UserID, Email: h.Email, Name: h.Name}
}

type partyDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Details      string    `json:"details"`
	ScheduledFor time.Time `json:"scheduled_for"`
	UserID       string    `json:"user_id"`
}

func toParty(p model.Party) partyDTO {
	return partyDTO{
		ID:           p.ID,
		Title:        p.Title,
		Details:      p.Details,
		ScheduledFor: p.ScheduledFor,
		UserID:       p.UserID,
	}
}

type guestDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func toGuest(g model.Guest) guestDTO {
	return guestDTO{ID: g.ID, Name: g.Name, Email: g.Email, Phone: g.Phone}
}

func (g guestDTO) model() model.Guest {
	return model.Guest{ID: g.ID, Name: g.Name, Email: g.Email, Phone: g.Phone}
}

type inviteDTO struct {
	ID      string `json:"id"`
	PartyID string `json:"party_id"`
	GuestID string `json:"guest_id"`
	State   string `json:"state"`
}

func toInvite(inv model.Invite) inviteDTO {
	return inviteDTO{
		ID:      inv.ID,
		PartyID: inv.PartyID,
		GuestID: inv.GuestID,
		State:   string(inv.State.OrPending()),
	}
}

type failureDTO struct {
	Op       string    `json:"op"`
	GuestID  string    `json:"guest_id"`
	InviteID string    `json:"invite_id,omitempty"`
	Error    serr.Kind `json:"error"`
	Message  string    `json:"message"`
}

func toFailure(f service.OpFailure) failureDTO {
	dto := failureDTO{
		Op:       string(f.Op),
		GuestID:  f.GuestID,
		InviteID: f.InviteID,
		Error:    serr.KindOf(f.Err),
		Message:  "Internal Server Error",
	}

	var se *serr.Error
	if errors.As(f.Err, &se) {
		dto.Message = se.Msg
	}
	return dto
}

type reconcileDTO struct {
	PartyID  string       `json:"party_id"`
	Added    []inviteDTO  `json:"added"`
	Removed  []inviteDTO  `json:"removed"`
	Failures []failureDTO `json:"failures,omitempty"`
}

func toReconcile(r service.ReconcileResult) reconcileDTO {
	return reconcileDTO{
		PartyID:  r.PartyID,
		Added:    fn.Map(r.Added, toInvite),
		Removed:  fn.Map(r.Removed, toInvite),
		Failures: fn.Map(r.Failures, toFailure),
	}
}

type driftDTO struct {
	InviteID string `json:"invite_id"`
	GuestID  string `json:"guest_id"`
	Local    string `json:"local"`
	Remote   string `json:"remote,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
}

func toDrift(d service.Drift) driftDTO {
	return driftDTO{
		InviteID: d.InviteID,
		GuestID:  d.GuestID,
		Local:    string(d.Local),
		Remote:   string(d.Remote),
		Missing:  d.Missing,
	}
}
