package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Remote talks to the HTTP record store. It holds no credential itself; Session binds one.
type Remote struct {
	endpoint  *url.URL
	timeout   time.Duration
	transport http.RoundTripper
	limiter   *rate.Limiter
}

type RemoteConfig struct {
	Endpoint  string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	Transport http.RoundTripper
}

func NewRemote(cfg RemoteConfig) (*Remote, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q is not absolute", cfg.Endpoint)
	}

	r := &Remote{
		endpoint:  u,
		timeout:   cfg.Timeout,
		transport: cfg.Transport,
	}
	if r.transport == nil {
		r.transport = http.DefaultTransport
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return r, nil
}

// Session returns a DataStore that authorizes every request with the bearer token.
func (r *Remote) Session(bearer string) DataStore {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"})
	return &remoteSession{
		remote: r,
		bearer: bearer,
		client: &http.Client{
			Timeout:   r.timeout,
			Transport: &oauth2.Transport{Source: src, Base: r.transport},
		},
	}
}

type remoteSession struct {
	remote *Remote
	bearer string
	client *http.Client
}

func (s *remoteSession) FindDevices(ctx context.Context, r FindDevicesRequest) ([]model.Device, error) {
	recs, err := find[deviceRecord](ctx, s, Devices, r.query())
	if err != nil {
		return nil, err
	}
	return collect(recs, deviceRecord.model, r.match), nil
}

func (s *remoteSession) CreateDevice(ctx context.Context, d model.Device) (model.Device, error) {
	rec, err := create(ctx, s, Devices, toDeviceRecord(d))
	return rec.model(), err
}

func (s *remoteSession) UpdateDevice(ctx context.Context, d model.Device) (model.Device, error) {
	rec, err := update(ctx, s, Devices, d.ID, toDeviceRecord(d))
	return rec.model(), err
}

func (s *remoteSession) DeleteDevice(ctx context.Context, id string) error {
	return s.remove(ctx, Devices, id)
}

func (s *remoteSession) FindHosts(ctx context.Context, r FindHostsRequest) ([]model.Host, error) {
	recs, err := find[hostRecord](ctx, s, Hosts, r.query())
	if err != nil {
		return nil, err
	}
	return collect(recs, hostRecord.model, r.match), nil
}

func (s *remoteSession) CreateHost(ctx context.Context, h model.Host) (model.Host, error) {
	rec, err := create(ctx, s, Hosts, toHostRecord(h))
	return rec.model(), err
}

func (s *remoteSession) UpdateHost(ctx context.Context, h model.Host) (model.Host, error) {
	rec, err := update(ctx, s, Hosts, h.ID, toHostRecord(h))
	return rec.model(), err
}

func (s *remoteSession) FindParties(ctx context.Context, r FindPartiesRequest) ([]model.Party, error) {
	recs, err := find[partyRecord](ctx, s, Parties, r.query())
	if err != nil {
		return nil, err
	}
	return collect(recs, partyRecord.model, r.match), nil
}

func (s *remoteSession) CreateParty(ctx context.Context, p model.Party) (model.Party, error) {
	rec, err := create(ctx, s, Parties, toPartyRecord(p))
	return rec.model(), err
}

func (s *remoteSession) UpdateParty(ctx context.Context, p model.Party) (model.Party, error) {
	rec, err := update(ctx, s, Parties, p.ID, toPartyRecord(p))
	return rec.model(), err
}

func (s *remoteSession) FindGuests(ctx context.Context, r FindGuestsRequest) ([]model.Guest, error) {
	recs, err := find[guestRecord](ctx, s, Guests, r.query())
	if err != nil {
		return nil, err
	}
	return collect(recs, guestRecord.model, r.match), nil
}

func (s *remoteSession) CreateGuest(ctx context.Context, g model.Guest) (model.Guest, error) {
	rec, err := create(ctx, s, Guests, toGuestRecord(g))
	return rec.model(), err
}

func (s *remoteSession) UpdateGuest(ctx context.Context, g model.Guest) (model.Guest, error) {
	rec, err := update(ctx, s, Guests, g.ID, toGuestRecord(g))
	return rec.model(), err
}

func (s *remoteSession) FindInvites(ctx context.Context, r FindInvitesRequest) ([]model.Invite, error) {
	recs, err := find[inviteRecord](ctx, s, Invites, r.query())
	if err != nil {
		return nil, err
	}
	return collect(recs, inviteRecord.model, r.match), nil
}

func (s *remoteSession) CreateInvite(ctx context.Context, inv model.Invite) (model.Invite, error) {
	rec, err := create(ctx, s, Invites, toInviteRecord(inv))
	return rec.model(), err
}

func (s *remoteSession) UpdateInvite(ctx context.Context, inv model.Invite) (model.Invite, error) {
	rec, err := update(ctx, s, Invites, inv.ID, toInviteRecord(inv))
	return rec.model(), err
}

func (s *remoteSession) DeleteInvite(ctx context.Context, id string) error {
	return s.remove(ctx, Invites, id)
}

// find accepts either a JSON array or a single object; an empty body, null or 404 means no records.
func find[T any](ctx context.Context, s *remoteSession, c Collection, q url.Values) ([]T, error) {
	var raw json.RawMessage
	err := s.do(ctx, http.MethodGet, c, "", q, nil, &raw)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s: %w", c, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var recs []T
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("decode %s list: %w", c, err)
		}
		return recs, nil
	}

	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	return []T{rec}, nil
}

func create[T any](ctx context.Context, s *remoteSession, c Collection, rec T) (T, error) {
	var out T
	if err := s.do(ctx, http.MethodPost, c, "", nil, rec, &out); err != nil {
		return out, fmt.Errorf("create %s: %w", c, err)
	}
	return out, nil
}

// update falls back to the sent record when the store answers without a body.
func update[T any](ctx context.Context, s *remoteSession, c Collection, id string, rec T) (T, error) {
	if id == "" {
		return rec, fmt.Errorf("update %s: empty id", c)
	}

	var raw json.RawMessage
	if err := s.do(ctx, http.MethodPut, c, id, nil, rec, &raw); err != nil {
		return rec, fmt.Errorf("update %s %s: %w", c, id, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return rec, nil
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return rec, fmt.Errorf("decode %s: %w", c, err)
	}
	return out, nil
}

func (s *remoteSession) remove(ctx context.Context, c Collection, id string) error {
	if id == "" {
		return fmt.Errorf("delete %s: empty id", c)
	}
	if err := s.do(ctx, http.MethodDelete, c, id, nil, nil, nil); err != nil {
		return fmt.Errorf("delete %s %s: %w", c, id, err)
	}
	return nil
}

func (s *remoteSession) do(ctx context.Context, method string, c Collection, id string, q url.Values, body, out any) error {
	if s.bearer == "" {
		return ErrUnauthorized
	}

	u := s.remote.endpoint.JoinPath(string(c))
	if id != "" {
		u = u.JoinPath(url.PathEscape(id))
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	if s.remote.limiter != nil {
		if err := s.remote.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, c, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Collection: c, Code: resp.StatusCode}
	}

	if out == nil {
		return nil
	}

	if raw, ok := out.(*json.RawMessage); ok {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		*raw = b
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func collect[R, M any](recs []R, conv func(R) M, match func(M) bool) []M {
	result := make([]M, 0, len(recs))
	for _, rec := range recs {
		m := conv(rec)
		if match(m) {
			result = append(result, m)
		}
	}
	return result
}
