package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// Collection names a record set on the remote store.
type Collection string

const (
	Devices Collection = "device"
	Hosts   Collection = "host"
	Guests  Collection = "guest"
	Parties Collection = "party"
	Invites Collection = "invite"
)

// StatusError is returned when the remote store answers with an unexpected status.
type StatusError struct {
	Collection Collection
	Code       int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code: %d", e.Collection, e.Code)
}

// DataStore is the record store as seen by one credential. Every method is a single
// independent request; nothing is transactional.
type DataStore interface {
	FindDevices(ctx context.Context, r FindDevicesRequest) ([]model.Device, error)
	CreateDevice(ctx context.Context, d model.Device) (model.Device, error)
	UpdateDevice(ctx context.Context, d model.Device) (model.Device, error)
	DeleteDevice(ctx context.Context, id string) error

	FindHosts(ctx context.Context, r FindHostsRequest) ([]model.Host, error)
	CreateHost(ctx context.Context, h model.Host) (model.Host, error)
	UpdateHost(ctx context.Context, h model.Host) (model.Host, error)

	FindParties(ctx context.Context, r FindPartiesRequest) ([]model.Party, error)
	CreateParty(ctx context.Context, p model.Party) (model.Party, error)
	UpdateParty(ctx context.Context, p model.Party) (model.Party, error)

	FindGuests(ctx context.Context, r FindGuestsRequest) ([]model.Guest, error)
	CreateGuest(ctx context.Context, g model.Guest) (model.Guest, error)
	UpdateGuest(ctx context.Context, g model.Guest) (model.Guest, error)

	FindInvites(ctx context.Context, r FindInvitesRequest) ([]model.Invite, error)
	CreateInvite(ctx context.Context, inv model.Invite) (model.Invite, error)
	UpdateInvite(ctx context.Context, inv model.Invite) (model.Invite, error)
	DeleteInvite(ctx context.Context, id string) error
}

// Sessions hands out a DataStore bound to a bearer credential.
type Sessions interface {
	Session(bearer string) DataStore
}
