package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
)

type GuestService struct {
	stores store.Sessions
}

func NewGuestService(stores store.Sessions) *GuestService {
	if stores == nil {
		panic("record store sessions are required")
	}
	return &GuestService{stores: stores}
}

func (s *GuestService) ListGuests(ctx context.Context, id model.Identity) ([]model.Guest, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	guests, err := s.stores.Session(id.Token).FindGuests(ctx, store.FindGuestsRequest{})
	if err != nil {
		return nil, syncErr(err, "find", store.Guests)
	}
	return guests, nil
}

func (s *GuestService) CreateGuest(ctx context.Context, id model.Identity, g model.Guest) (model.Guest, error) {
	if err := requireIdentity(id); err != nil {
		return model.Guest{}, err
	}
	if strings.TrimSpace(g.Name) == "" {
		return model.Guest{}, serr.Validation("guest name is required")
	}

	g.ID = ""
	created, err := s.stores.Session(id.Token).CreateGuest(ctx, g)
	if err != nil {
		return model.Guest{}, syncErr(err, "create", store.Guests)
	}
	return created, nil
}

func (s *GuestService) UpdateGuest(ctx context.Context, id model.Identity, g model.Guest) (model.Guest, error) {
	if err := requireIdentity(id); err != nil {
		return model.Guest{}, err
	}
	if err := validateID("guest_id", g.ID); err != nil {
		return model.Guest{}, err
	}
	if strings.TrimSpace(g.Name) == "" {
		return model.Guest{}, serr.Validation("guest name is required")
	}

	updated, err := s.stores.Session(id.Token).UpdateGuest(ctx, g)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Guest{}, serr.NotFound(err, "guest not found").With("guest_id", g.ID)
		}
		return model.Guest{}, syncErr(err, "update", store.Guests).With("guest_id", g.ID)
	}
	return updated, nil
}
