package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gamma-omg/partyparty/internal/pkg/fn"
	"github.com/gamma-omg/partyparty/internal/pkg/httpx"
	"github.com/gamma-omg/partyparty/internal/pkg/middleware"
	"github.com/gamma-omg/partyparty/internal/pkg/router"
	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/service"
)

type binder interface {
	BindDevice(ctx context.Context, id model.Identity, r service.BindDeviceRequest) (service.DeviceBinding, error)
	UnbindDevice(ctx context.Context, id model.Identity, token string) (int, error)
	BindHost(ctx context.Context, id model.Identity, r service.BindHostRequest) (service.HostBinding, error)
}

type partyService interface {
	ListParties(ctx context.Context, id model.Identity) ([]model.Party, error)
	CreateParty(ctx context.Context, id model.Identity, r service.SavePartyRequest) (service.PartyResult, error)
	UpdateParty(ctx context.Context, id model.Identity, r service.SavePartyRequest) (service.PartyResult, error)
}

type reconciler interface {
	ReconcileParty(ctx context.Context, id model.Identity, partyID string, desired []string) (service.ReconcileResult, error)
}

type rsvpService interface {
	Advance(ctx context.Context, id model.Identity, inviteID string) (service.AdvanceResult, error)
	Drift(ctx context.Context, id model.Identity, partyID string) ([]service.Drift, error)
}

type guestService interface {
	ListGuests(ctx context.Context, id model.Identity) ([]model.Guest, error)
	CreateGuest(ctx context.Context, id model.Identity, g model.Guest) (model.Guest, error)
	UpdateGuest(ctx context.Context, id model.Identity, g model.Guest) (model.Guest, error)
}

type API struct {
	binder     binder
	parties    partyService
	reconciler reconciler
	rsvp       rsvpService
	guests     guestService
	rt         *router.Router
}

type APIOption func(*API) *API

func WithBinder(b binder) APIOption {
	return func(a *API) *API {
		a.binder = b
		return a
	}
}

func WithParties(p partyService) APIOption {
	return func(a *API) *API {
		a.parties = p
		return a
	}
}

func WithReconciler(r reconciler) APIOption {
	return func(a *API) *API {
		a.reconciler = r
		return a
	}
}

func WithRSVP(r rsvpService) APIOption {
	return func(a *API) *API {
		a.rsvp = r
		return a
	}
}

func WithGuests(g guestService) APIOption {
	return func(a *API) *API {
		a.guests = g
		return a
	}
}

func NewAPI(opts ...APIOption) *API {
	api := &API{rt: router.New()}
	for _, opt := range opts {
		api = opt(api)
	}

	if api.binder == nil {
		panic("binder is required")
	}
	if api.parties == nil {
		panic("party service is required")
	}
	if api.reconciler == nil {
		panic("reconciler is required")
	}
	if api.rsvp == nil {
		panic("rsvp service is required")
	}
	if api.guests == nil {
		panic("guest service is required")
	}

	api.mount()
	return api
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.rt.ServeHTTP(w, r)
}

func (a *API) mount() {
	a.rt.HandleFunc("PUT /devices", a.handleBindDevice)
	a.rt.HandleFunc("DELETE /devices/{token}", a.handleUnbindDevice)
	a.rt.HandleFunc("PUT /host", a.handleBindHost)
	a.rt.HandleFunc("GET /parties", a.handleListParties)
	a.rt.HandleFunc("POST /parties", a.handleCreateParty)
	a.rt.HandleFunc("PUT /parties/{party_id}", a.handleUpdateParty)
	a.rt.HandleFunc("PUT /parties/{party_id}/guests", a.handleReconcile)
	a.rt.HandleFunc("GET /parties/{party_id}/drift", a.handleDrift)
	a.rt.HandleFunc("POST /invites/{invite_id}/advance", a.handleAdvance)
	a.rt.HandleFunc("GET /guests", a.handleListGuests)
	a.rt.HandleFunc("POST /guests", a.handleCreateGuest)
	a.rt.HandleFunc("PUT /guests/{guest_id}", a.handleUpdateGuest)
}

// identity builds the caller identity from the verified bearer token. Requests that did not
// pass the auth middleware yield an empty identity, which the services reject.
func identity(r *http.Request) model.Identity {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return model.Identity{
		UserID: p.UserID,
		Email:  p.Email,
		Name:   p.Name,
		Token:  p.Token,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, resp any) {
	if err := httpx.WriteJSON(w, status, resp); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("write response json: %w", err))
	}
}

type bindDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type bindDeviceResponse struct {
	Device  deviceDTO `json:"device"`
	Outcome string    `json:"outcome"`
	Pruned  int       `json:"pruned"`
}

func (a *API) handleBindDevice(w http.ResponseWriter, r *http.Request) {
	var req bindDeviceRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("read request json: %w", err))
		return
	}

	res, err := a.binder.BindDevice(r.Context(), identity(r), service.BindDeviceRequest{
		Token:    req.Token,
		Platform: model.Platform(req.Platform),
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, bindDeviceResponse{
		Device:  toDevice(res.Device),
		Outcome: string(res.Outcome),
		Pruned:  res.Pruned,
	})
}

func (a *API) handleUnbindDevice(w http.ResponseWriter, r *http.Request) {
	if _, err := a.binder.UnbindDevice(r.Context(), identity(r), r.PathValue("token")); err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type bindHostRequest struct {
	Name   string `json:"name"`
	Create bool   `json:"create"`
}

type bindHostResponse struct {
	Host      *hostDTO `json:"host"`
	Bound     bool     `json:"bound"`
	Outcome   string   `json:"outcome,omitempty"`
	MatchedBy string   `json:"matched_by,omitempty"`
}

func (a *API) handleBindHost(w http.ResponseWriter, r *http.Request) {
	var req bindHostRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("read request json: %w", err))
		return
	}

	res, err := a.binder.BindHost(r.Context(), identity(r), service.BindHostRequest{
		Name:   req.Name,
		Create: req.Create,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	resp := bindHostResponse{Bound: res.Bound}
	if res.Bound {
		h := toHost(res.Host)
		resp.Host = &h
		resp.Outcome = string(res.Outcome)
		resp.MatchedBy = string(res.MatchedBy)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (a *API) handleListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := a.parties.ListParties(r.Context(), identity(r))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, fn.Map(parties, toParty))
}

type savePartyRequest struct {
	Title        string    `json:"title"`
	Details      string    `json:"details"`
	ScheduledFor time.Time `json:"scheduled_for"`
	GuestIDs     []string  `json:"guest_ids"`
}

type partyResponse struct {
	Party   partyDTO     `json:"party"`
	Invites reconcileDTO `json:"invites"`
}

func (a *API) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	var req savePartyRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("read request json: %w", err))
		return
	}

	res, err := a.parties.CreateParty(r.Context(), identity(r), service.SavePartyRequest{
		Title:        req.Title,
		Details:      req.Details,
		ScheduledFor: req.ScheduledFor,
		GuestIDs:     req.GuestIDs,
	})
	a.writePartyResult(w, r, http.StatusCreated, res, err)
}

func (a *API) handleUpdateParty(w http.ResponseWriter, r *http.Request) {
	var req savePartyRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("read request json: %w", err))
		return
	}

	res, err := a.parties.UpdateParty(r.Context(), identity(r), service.SavePartyRequest{
		ID:           r.PathValue("party_id"),
		Title:        req.Title,
		Details:      req.Details,
		ScheduledFor: req.ScheduledFor,
		GuestIDs:     req.GuestIDs,
	})
	a.writePartyResult(w, r, http.StatusOK, res, err)
}

// writePartyResult reports a saved party. When only some invites failed the party exists,
// so the response is a 207 carrying both the party and the failures.
func (a *API) writePartyResult(w http.ResponseWriter, r *http.Request, status int, res service.PartyResult, err error) {
	var perr *service.PartialError
	switch {
	case errors.As(err, &perr) && res.Party.ID != "":
		status = http.StatusMultiStatus
	case err != nil:
		httpx.HandleErr(w, r, err)
		return
	}

	writeJSON(w, r, status, partyResponse{
		Party:   toParty(res.Party),
		Invites: toReconcile(res.Reconcile),
	})
}

type reconcileRequest struct {
	GuestIDs []string `json:"guest_ids"`
}

func (a *API) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("read request json: %w", err))
		return
	}

	res, err := a.reconciler.ReconcileParty(r.Context(), identity(r), r.PathValue("party_id"), req.GuestIDs)

	status := http.StatusOK
	if err != nil {
		if !serr.Is(err, serr.KindPartialReconciliation) {
			httpx.HandleErr(w, r, err)
			return
		}
		status = http.StatusMultiStatus
	}

	writeJSON(w, r, status, toReconcile(res))
}

func (a *API) handleDrift(w http.ResponseWriter, r *http.Request) {
	drifts, err := a.rsvp.Drift(r.Context(), identity(r), r.PathValue("party_id"))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, fn.Map(drifts, toDrift))
}

type advanceResponse struct {
	Invite    inviteDTO `json:"invite"`
	Previous  string    `json:"previous"`
	Confirmed bool      `json:"confirmed"`
}

// handleAdvance answers 202 when the new state is only held locally because the record
// store did not take the write.
func (a *API) handleAdvance(w http.ResponseWriter, r *http.Request) {
	res, err := a.rsvp.Advance(r.Context(), identity(r), r.PathValue("invite_id"))

	status := http.StatusOK
	if err != nil {
		if !serr.Is(err, serr.KindSyncFailure) || res.Invite.ID == "" {
			httpx.HandleErr(w, r, err)
			return
		}
		status = http.StatusAccepted
	}

	writeJSON(w, r, status, advanceResponse{
		Invite:    toInvite(res.Invite),
		Previous:  string(res.Previous),
		Confirmed: res.Confirmed,
	})
}

func (a *API) handleListGuests(w http.ResponseWriter, r *http.Request) {
	guests, err := a.guests.ListGuests(r.Context(), identity(r))
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, fn.Map(guests, toGuest))
}

func (a *API) handleCreateGuest(w http.ResponseWriter, r *http.Request) {
	var req guestDTO
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("read request json: %w", err))
		return
	}

	g, err := a.guests.CreateGuest(r.Context(), identity(r), req.model())
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toGuest(g))
}

func (a *API) handleUpdateGuest(w http.ResponseWriter, r *http.Request) {
	var req guestDTO
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.HandleErr(w, r, fmt.Errorf("read request json: %w", err))
		return
	}
	req.ID = r.PathValue("guest_id")

	g, err := a.guests.UpdateGuest(r.Context(), identity(r), req.model())
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toGuest(g))
}
