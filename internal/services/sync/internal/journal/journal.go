package journal

import (
	"errors"
	"time"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
)

var ErrNotFound = errors.New("journal entry not found")

// Entry is the two-phase RSVP state of one invite: Local is what the user last chose,
// Confirmed is what the record store last acknowledged. They differ while a write is
// outstanding or after it failed.
type Entry struct {
	InviteID  string
	UserID    string
	PartyID   string
	GuestID   string
	Local     model.RSVPState
	Confirmed model.RSVPState
	UpdatedAt time.Time
}

func (e Entry) Drifting() bool {
	return e.Local != e.Confirmed
}

type PendingRequest struct {
	UserID  string
	PartyID string
}

func (r PendingRequest) match(e Entry) bool {
	return e.Drifting() &&
		(r.UserID == "" || e.UserID == r.UserID) &&
		(r.PartyID == "" || e.PartyID == r.PartyID)
}
