package store

import (
	"context"
	"sync"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/google/uuid"
)

type OpKind string

const (
	OpFind   OpKind = "find"
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op describes one request against the in-memory store. For creates ID is empty and
// Key holds the natural key of the new record (token, email, guest id).
type Op struct {
	Kind       OpKind
	Collection Collection
	ID         string
	Key        string
}

// Memory is an in-process record store with the same semantics as the remote one.
// It backs the development mode of the service and the service tests.
type Memory struct {
	mu      sync.Mutex
	devices *table[model.Device]
	hosts   *table[model.Host]
	parties *table[model.Party]
	guests  *table[model.Guest]
	invites *table[model.Invite]
	writes  int
	hook    func(Op) error
}

func NewMemory() *Memory {
	return &Memory{
		devices: newTable[model.Device](),
		hosts:   newTable[model.Host](),
		parties: newTable[model.Party](),
		guests:  newTable[model.Guest](),
		invites: newTable[model.Invite](),
	}
}

// Intercept installs fn to run before every operation; a non-nil error fails the operation
// without touching the data.
func (m *Memory) Intercept(fn func(Op) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Writes returns the number of successful create, update and delete operations.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) Devices() []model.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.devices.all()
}

func (m *Memory) Hosts() []model.Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hosts.all()
}

func (m *Memory) Invites() []model.Invite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invites.all()
}

func (m *Memory) Session(bearer string) DataStore {
	return &memSession{m: m, bearer: bearer}
}

func (m *Memory) begin(bearer string, op Op) error {
	if bearer == "" {
		return ErrUnauthorized
	}

	m.mu.Lock()
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(op); err != nil {
			return err
		}
	}
	return nil
}

type memSession struct {
	m      *Memory
	bearer string
}

func (s *memSession) FindDevices(ctx context.Context, r FindDevicesRequest) ([]model.Device, error) {
	return memFind(s, Devices, s.m.devices, r.match)
}

func (s *memSession) CreateDevice(ctx context.Context, d model.Device) (model.Device, error) {
	return memCreate(s, Devices, s.m.devices, d.Token, d, func(d *model.Device, id string) { d.ID = id })
}

func (s *memSession) UpdateDevice(ctx context.Context, d model.Device) (model.Device, error) {
	return memUpdate(s, Devices, s.m.devices, d.ID, d)
}

func (s *memSession) DeleteDevice(ctx context.Context, id string) error {
	return memDelete(s, Devices, s.m.devices, id)
}

func (s *memSession) FindHosts(ctx context.Context, r FindHostsRequest) ([]model.Host, error) {
	return memFind(s, Hosts, s.m.hosts, r.match)
}

func (s *memSession) CreateHost(ctx context.Context, h model.Host) (model.Host, error) {
	return memCreate(s, Hosts, s.m.hosts, h.Email, h, func(h *model.Host, id string) { h.ID = id })
}

func (s *memSession) UpdateHost(ctx context.Context, h model.Host) (model.Host, error) {
	return memUpdate(s, Hosts, s.m.hosts, h.ID, h)
}

func (s *memSession) FindParties(ctx context.Context, r FindPartiesRequest) ([]model.Party, error) {
	return memFind(s, Parties, s.m.parties, r.match)
}

func (s *memSession) CreateParty(ctx context.Context, p model.Party) (model.Party, error) {
	return memCreate(s, Parties, s.m.parties, p.Title, p, func(p *model.Party, id string) { p.ID = id })
}

func (s *memSession) UpdateParty(ctx context.Context, p model.Party) (model.Party, error) {
	return memUpdate(s, Parties, s.m.parties, p.ID, p)
}

func (s *memSession) FindGuests(ctx context.Context, r FindGuestsRequest) ([]model.Guest, error) {
	return memFind(s, Guests, s.m.guests, r.match)
}

func (s *memSession) CreateGuest(ctx context.Context, g model.Guest) (model.Guest, error) {
	return memCreate(s, Guests, s.m.guests, g.Name, g, func(g *model.Guest, id string) { g.ID = id })
}

func (s *memSession) UpdateGuest(ctx context.Context, g model.Guest) (model.Guest, error) {
	return memUpdate(s, Guests, s.m.guests, g.ID, g)
}

func (s *memSession) FindInvites(ctx context.Context, r FindInvitesRequest) ([]model.Invite, error) {
	return memFind(s, Invites, s.m.invites, r.match)
}

func (s *memSession) CreateInvite(ctx context.Context, inv model.Invite) (model.Invite, error) {
	inv.State = inv.State.OrPending()
	return memCreate(s, Invites, s.m.invites, inv.GuestID, inv, func(inv *model.Invite, id string) { inv.ID = id })
}

func (s *memSession) UpdateInvite(ctx context.Context, inv model.Invite) (model.Invite, error) {
	return memUpdate(s, Invites, s.m.invites, inv.ID, inv)
}

func (s *memSession) DeleteInvite(ctx context.Context, id string) error {
	return memDelete(s, Invites, s.m.invites, id)
}

func memFind[T any](s *memSession, c Collection, t *table[T], match func(T) bool) ([]T, error) {
	if err := s.m.begin(s.bearer, Op{Kind: OpFind, Collection: c}); err != nil {
		return nil, err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return t.filter(match), nil
}

func memCreate[T any](s *memSession, c Collection, t *table[T], key string, rec T, setID func(*T, string)) (T, error) {
	if err := s.m.begin(s.bearer, Op{Kind: OpCreate, Collection: c, Key: key}); err != nil {
		var zero T
		return zero, err
	}

	id := uuid.NewString()
	setID(&rec, id)

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t.insert(id, rec)
	s.m.writes++
	return rec, nil
}

func memUpdate[T any](s *memSession, c Collection, t *table[T], id string, rec T) (T, error) {
	if err := s.m.begin(s.bearer, Op{Kind: OpUpdate, Collection: c, ID: id}); err != nil {
		return rec, err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if !t.replace(id, rec) {
		return rec, ErrNotFound
	}
	s.m.writes++
	return rec, nil
}

func memDelete[T any](s *memSession, c Collection, t *table[T], id string) error {
	if err := s.m.begin(s.bearer, Op{Kind: OpDelete, Collection: c, ID: id}); err != nil {
		return err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if !t.remove(id) {
		return ErrNotFound
	}
	s.m.writes++
	return nil
}

// table keeps insertion order so finds are deterministic.
type table[T any] struct {
	ids  []string
	rows map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) insert(id string, rec T) {
	t.ids = append(t.ids, id)
	t.rows[id] = rec
}

func (t *table[T]) replace(id string, rec T) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	t.rows[id] = rec
	return true
}

func (t *table[T]) remove(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, v := range t.ids {
		if v == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			break
		}
	}
	return true
}

func (t *table[T]) filter(match func(T) bool) []T {
	result := make([]T, 0)
	for _, id := range t.ids {
		if rec := t.rows[id]; match(rec) {
			result = append(result, rec)
		}
	}
	return result
}

func (t *table[T]) all() []T {
	return t.filter(func(T) bool { return true })
}
