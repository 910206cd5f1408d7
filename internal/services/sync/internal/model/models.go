package model

import (
	"time"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

type RSVPState string

const (
	RSVPPending  RSVPState = "pending"
	RSVPAccepted RSVPState = "accepted"
	RSVPDeclined RSVPState = "declined"
	RSVPMaybe    RSVPState = "maybe"
)

// OrPending returns the state itself, or RSVPPending when the state is absent or unknown.
func (s RSVPState) OrPending() RSVPState {
	switch s {
	case RSVPPending, RSVPAccepted, RSVPDeclined, RSVPMaybe:
		return s
	}
	return RSVPPending
}

// Identity is the signed-in user as seen by one request. Token is the bearer credential
// forwarded to the record store.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Token  string
}

func (id Identity) Authenticated() bool {
	return id.UserID != "" && id.Token != ""
}

type Device struct {
	ID        string
	UserID    string
	Token     string
	Platform  Platform
	UpdatedAt time.Time
}

type Host struct {
	ID     string
	UserID string
	Email  string
	Name   string
}

type Party struct {
	ID           string
	Title        string
	Details      string
	ScheduledFor time.Time
	UserID       string
}

type Guest struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type Invite struct {
	ID      string
	PartyID string
	GuestID string
	State   RSVPState
}

type GuestIDSet map[string]struct{}

func NewGuestIDSet(ids ...string) GuestIDSet {
	s := make(GuestIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s GuestIDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s GuestIDSet) Len() int {
	return len(s)
}
