package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
)

// Ristretto keeps device bindings in process, keyed by push token.
type Ristretto struct {
	cache *ristretto.Cache[string, model.Device]
	ttl   time.Duration
}

type RistrettoConfig struct {
	MaxKeys int64
	TTL     time.Duration
}

func NewRistretto(cfg RistrettoConfig) *Ristretto {
	c, err := ristretto.NewCache(&ristretto.Config[string, model.Device]{
		NumCounters: cfg.MaxKeys * 10,
		MaxCost:     cfg.MaxKeys,
		BufferItems: 64,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create binding cache: %v", err))
	}

	return &Ristretto{cache: c, ttl: cfg.TTL}
}

func (r *Ristretto) Get(ctx context.Context, token string) (model.Device, bool) {
	return r.cache.Get(token)
}

func (r *Ristretto) Set(ctx context.Context, d model.Device) {
	r.cache.SetWithTTL(d.Token, d, 1, r.ttl)
	r.cache.Wait()
}

func (r *Ristretto) Delete(ctx context.Context, token string) {
	r.cache.Del(token)
}

func (r *Ristretto) Close() error {
	r.cache.Close()
	return nil
}
