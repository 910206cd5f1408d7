package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "partysync:device:"

// Redis shares device bindings between replicas. Any redis failure is logged and treated as
// a miss so that binding falls back to the record store.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
	Logger   *slog.Logger
}

func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	l := cfg.Logger
	if l == nil {
		l = slog.Default()
	}

	return &Redis{
		rdb: rdb,
		ttl: cfg.TTL,
		log: l,
	}
}

type deviceEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Redis) Get(ctx context.Context, token string) (model.Device, bool) {
	val, err := r.rdb.Get(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Error("failed to read binding cache", "error", err)
		}
		return model.Device{}, false
	}

	var e deviceEntry
	if err := json.Unmarshal(val, &e); err != nil {
		r.log.Error("failed to decode binding cache entry", "error", err)
		return model.Device{}, false
	}

	return model.Device{
		ID:        e.ID,
		UserID:    e.UserID,
		Token:     e.Token,
		Platform:  model.Platform(e.Platform),
		UpdatedAt: e.UpdatedAt,
	}, true
}

func (r *Redis) Set(ctx context.Context, d model.Device) {
	val, err := json.Marshal(deviceEntry{
		ID:        d.ID,
		UserID:    d.UserID,
		Token:     d.Token,
		Platform:  string(d.Platform),
		UpdatedAt: d.UpdatedAt,
	})
	if err != nil {
		r.log.Error("failed to encode binding cache entry", "error", err)
		return
	}

	if err := r.rdb.Set(ctx, keyPrefix+d.Token, val, r.ttl).Err(); err != nil {
		r.log.Error("failed to write binding cache", "error", err)
	}
}

func (r *Redis) Delete(ctx context.Context, token string) {
	if err := r.rdb.Del(ctx, keyPrefix+token).Err(); err != nil {
		r.log.Error("failed to evict binding cache", "error", err)
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
