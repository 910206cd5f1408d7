package service

import (
	"context"
	"testing"
	"time"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/cache"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBinder(m *store.Memory, opts ...BinderOption) *Binder {
	base := []BinderOption{
		WithSessions(m),
		WithClock(fixedClock),
		WithLogger(discardLogger()),
	}
	return NewBinder(append(base, opts...)...)
}

func TestNewBinder_RequiresSessions(t *testing.T) {
	assert.Panics(t, func() {
		NewBinder(WithLogger(discardLogger()))
	})
}

func TestBindDevice_Creates(t *testing.T) {
	m := store.NewMemory()
	b := newTestBinder(m)

	res, err := b.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1", Platform: model.PlatformIOS})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.NotEmpty(t, res.Device.ID)
	assert.Equal(t, "alice", res.Device.UserID)
	assert.Equal(t, model.PlatformIOS, res.Device.Platform)
	assert.Equal(t, fixedNow, res.Device.UpdatedAt)
	assert.Len(t, m.Devices(), 1)
}

func TestBindDevice_Idempotent(t *testing.T) {
	m := store.NewMemory()
	b := newTestBinder(m)

	first, err := b.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1", Platform: model.PlatformIOS})
	require.NoError(t, err)
	writes := m.Writes()

	second, err := b.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1", Platform: model.PlatformIOS})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnchanged, second.Outcome)
	assert.Equal(t, first.Device.ID, second.Device.ID)
	assert.Equal(t, writes, m.Writes())
	assert.Len(t, m.Devices(), 1)
}

func TestBindDevice_TakesOverForeignRecord(t *testing.T) {
	m := store.NewMemory()
	b := newTestBinder(m)

	_, err := b.BindDevice(t.Context(), bob, BindDeviceRequest{Token: "push-1", Platform: model.PlatformAndroid})
	require.NoError(t, err)

	res, err := b.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdated, res.Outcome)
	require.Len(t, m.Devices(), 1)
	d := m.Devices()[0]
	assert.Equal(t, "alice", d.UserID)
	assert.Equal(t, model.PlatformAndroid, d.Platform)
}

func TestBindDevice_PrunesDuplicates(t *testing.T) {
	m := store.NewMemory()
	ds := m.Session("seed")
	older, err := ds.CreateDevice(t.Context(), model.Device{UserID: "bob", Token: "push-1", UpdatedAt: fixedNow.Add(-2 * time.Hour)})
	require.NoError(t, err)
	newer, err := ds.CreateDevice(t.Context(), model.Device{UserID: "carol", Token: "push-1", UpdatedAt: fixedNow.Add(-time.Hour)})
	require.NoError(t, err)

	b := newTestBinder(m)
	res, err := b.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, 1, res.Pruned)
	assert.Equal(t, newer.ID, res.Device.ID)
	require.Len(t, m.Devices(), 1)
	assert.NotEqual(t, older.ID, m.Devices()[0].ID)

	writes := m.Writes()
	res, err = b.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)
	assert.Equal(t, writes, m.Writes())
}

func TestBindDevice_PrefersOwnedDuplicate(t *testing.T) {
	m := store.NewMemory()
	ds := m.Session("seed")
	_, err := ds.CreateDevice(t.Context(), model.Device{UserID: "bob", Token: "push-1", UpdatedAt: fixedNow})
	require.NoError(t, err)
	owned, err := ds.CreateDevice(t.Context(), model.Device{UserID: "alice", Token: "push-1", UpdatedAt: fixedNow.Add(-time.Hour)})
	require.NoError(t, err)

	res, err := newTestBinder(m).BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnchanged, res.Outcome)
	assert.Equal(t, owned.ID, res.Device.ID)
	assert.Equal(t, 1, res.Pruned)
	assert.Len(t, m.Devices(), 1)
}

func TestBindDevice_NotAuthenticated(t *testing.T) {
	sessions := &countingSessions{Sessions: store.NewMemory()}
	b := NewBinder(WithSessions(sessions), WithLogger(discardLogger()))

	_, err := b.BindDevice(t.Context(), model.Identity{}, BindDeviceRequest{Token: "push-1"})

	assert.True(t, serr.Is(err, serr.KindNotAuthenticated))
	assert.Zero(t, sessions.opened)
}

func TestBindDevice_RequiresToken(t *testing.T) {
	_, err := newTestBinder(store.NewMemory()).BindDevice(t.Context(), alice, BindDeviceRequest{})
	assert.True(t, serr.Is(err, serr.KindValidation))
}

func TestBindDevice_StoreFailure(t *testing.T) {
	m := store.NewMemory()
	failOn(m, store.OpCreate, store.Devices, nil)

	_, err := newTestBinder(m).BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})

	assert.True(t, serr.Is(err, serr.KindSyncFailure))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestBindDevice_StoreRejectsCredential(t *testing.T) {
	m := store.NewMemory()
	m.Intercept(func(store.Op) error { return store.ErrUnauthorized })

	_, err := newTestBinder(m).BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})

	assert.True(t, serr.Is(err, serr.KindNotAuthenticated))
}

func TestBindDevice_CacheHitStillReadsStore(t *testing.T) {
	m := store.NewMemory()
	current, err := m.Session("seed").CreateDevice(t.Context(), model.Device{UserID: "bob", Token: "push-1"})
	require.NoError(t, err)

	b := newTestBinder(m, WithBindingCache(&mockCache{
		getFunc: func(ctx context.Context, token string) (model.Device, bool) {
			return model.Device{ID: current.ID, UserID: "alice", Token: token}, true
		},
	}))

	res, err := b.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdated, res.Outcome)
	require.Len(t, m.Devices(), 1)
	assert.Equal(t, "alice", m.Devices()[0].UserID)
}

func TestBindDevice_TakeoverAcrossReplicas(t *testing.T) {
	m := store.NewMemory()
	replica := func() *Binder {
		c := cache.NewRistretto(cache.RistrettoConfig{MaxKeys: 100, TTL: time.Minute})
		t.Cleanup(func() { _ = c.Close() })
		return newTestBinder(m, WithBindingCache(c))
	}
	first, second := replica(), replica()

	_, err := first.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)
	_, err = second.BindDevice(t.Context(), bob, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)

	res, err := first.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "alice", res.Device.UserID)
	require.Len(t, m.Devices(), 1)
	assert.Equal(t, "alice", m.Devices()[0].UserID)
}

func TestBindDevice_CacheOfOtherOwnerIsIgnored(t *testing.T) {
	m := store.NewMemory()
	var stored model.Device
	b := newTestBinder(m, WithBindingCache(&mockCache{
		getFunc: func(ctx context.Context, token string) (model.Device, bool) {
			return model.Device{ID: "d1", UserID: "bob", Token: token}, true
		},
		setFunc: func(ctx context.Context, d model.Device) {
			stored = d
		},
	}))

	res, err := b.BindDevice(t.Context(), alice, BindDeviceRequest{Token: "push-1"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, res.Device, stored)
}

func TestUnbindDevice(t *testing.T) {
	m := store.NewMemory()
	ds := m.Session("seed")
	_, err := ds.CreateDevice(t.Context(), model.Device{UserID: "alice", Token: "push-1"})
	require.NoError(t, err)
	foreign, err := ds.CreateDevice(t.Context(), model.Device{UserID: "bob", Token: "push-1"})
	require.NoError(t, err)

	var evicted string
	b := newTestBinder(m, WithBindingCache(&mockCache{
		deleteFunc: func(ctx context.Context, token string) {
			evicted = token
		},
	}))

	deleted, err := b.UnbindDevice(t.Context(), alice, "push-1")
	require.NoError(t, err)

	assert.Equal(t, 1, deleted)
	assert.Equal(t, "push-1", evicted)
	require.Len(t, m.Devices(), 1)
	assert.Equal(t, foreign.ID, m.Devices()[0].ID)
}

func TestUnbindDevice_NothingFound(t *testing.T) {
	m := store.NewMemory()

	deleted, err := newTestBinder(m).UnbindDevice(t.Context(), alice, "push-1")
	require.NoError(t, err)

	assert.Zero(t, deleted)
	assert.Zero(t, m.Writes())
}
