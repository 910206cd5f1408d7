package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
)

// Outcome tells what a binding did to the remote store.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUpdated   Outcome = "updated"
	OutcomeCreated   Outcome = "created"
)

// bindingCache remembers the last device bound for a push token.
type bindingCache interface {
	Get(ctx context.Context, token string) (model.Device, bool)
	Set(ctx context.Context, d model.Device)
	Delete(ctx context.Context, token string)
}

type noCache struct{}

func (noCache) Get(context.Context, string) (model.Device, bool) { return model.Device{}, false }
func (noCache) Set(context.Context, model.Device)                {}
func (noCache) Delete(context.Context, string)                   {}

// Binder keeps one device record per push token and one host record per email bound to
// the signed-in user. Every binding is safe to re-run.
type Binder struct {
	stores store.Sessions
	cache  bindingCache
	now    func() time.Time
	log    *slog.Logger
}

type BinderOption func(*Binder) *Binder

func WithSessions(s store.Sessions) BinderOption {
	return func(b *Binder) *Binder {
		b.stores = s
		return b
	}
}

func WithBindingCache(c bindingCache) BinderOption {
	return func(b *Binder) *Binder {
		b.cache = c
		return b
	}
}

func WithClock(now func() time.Time) BinderOption {
	return func(b *Binder) *Binder {
		b.now = now
		return b
	}
}

func WithLogger(l *slog.Logger) BinderOption {
	return func(b *Binder) *Binder {
		b.log = l
		return b
	}
}

func NewBinder(opts ...BinderOption) *Binder {
	b := &Binder{
		cache: noCache{},
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		b = opt(b)
	}

	if b.stores == nil {
		panic("record store sessions are required")
	}

	return b
}
