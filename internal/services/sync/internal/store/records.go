package store

import (
	"time"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
)

// Wire shapes of the remote store. Timestamps travel as ISO-8601 strings and may be
// missing on records written by other clients.

type deviceRecord struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	Platform  string `json:"platform"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toDeviceRecord(d model.Device) deviceRecord {
	return deviceRecord{
		ID:        d.ID,
		UserID:    d.UserID,
		Token:     d.Token,
		Platform:  string(d.Platform),
		UpdatedAt: formatTime(d.UpdatedAt),
	}
}

func (r deviceRecord) model() model.Device {
	return model.Device{
		ID:        r.ID,
		UserID:    r.UserID,
		Token:     r.Token,
		Platform:  model.Platform(r.Platform),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

type hostRecord struct {
	ID     string `json:"id,omitempty"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func toHostRecord(h model.Host) hostRecord {
	return hostRecord{ID: h.ID, UserID: h.UserID, Email: h.Email, Name: h.Name}
}

func (r hostRecord) model() model.Host {
	return model.Host{ID: r.ID, UserID: r.UserID, Email: r.Email, Name: r.Name}
}

type partyRecord struct {
	ID           string `json:"id,omitempty"`
	Title        string `json:"title"`
	Details      string `json:"details"`
	ScheduledFor string `json:"scheduled_for"`
	UserID       string `json:"user_id"`
}

func toPartyRecord(p model.Party) partyRecord {
	return partyRecord{
		ID:           p.ID,
		Title:        p.Title,
		Details:      p.Details,
		ScheduledFor: formatTime(p.ScheduledFor),
		UserID:       p.UserID,
	}
}

func (r partyRecord) model() model.Party {
	return model.Party{
		ID:           r.ID,
		Title:        r.Title,
		Details:      r.Details,
		ScheduledFor: parseTime(r.ScheduledFor),
		UserID:       r.UserID,
	}
}

type guestRecord struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func toGuestRecord(g model.Guest) guestRecord {
	return guestRecord{ID: g.ID, Name: g.Name, Email: g.Email, Phone: g.Phone}
}

func (r guestRecord) model() model.Guest {
	return model.Guest{ID: r.ID, Name: r.Name, Email: r.Email, Phone: r.Phone}
}

type inviteRecord struct {
	ID      string `json:"id,omitempty"`
	PartyID string `json:"party_id"`
	GuestID string `json:"guest_id"`
	State   string `json:"state,omitempty"`
}

func toInviteRecord(inv model.Invite) inviteRecord {
	return inviteRecord{ID: inv.ID, PartyID: inv.PartyID, GuestID: inv.GuestID, State: string(inv.State)}
}

func (r inviteRecord) model() model.Invite {
	return model.Invite{
		ID:      r.ID,
		PartyID: r.PartyID,
		GuestID: r.GuestID,
		State:   model.RSVPState(r.State).OrPending(),
	}
}

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(isoLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
