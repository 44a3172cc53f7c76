package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/user"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const actorKeyPrefix = "actor:"

// LookupObserver はキャッシュ参照の結果 (hit / miss / error) を受け取ります。
type LookupObserver interface {
	ObserveCacheLookup(result string)
}

type noopObserver struct{}

func (noopObserver) ObserveCacheLookup(string) {}

// ActorCache は解決済みの Actor を Redis に TTL 付きで保持する user.ActorResolver です。
// Redis が使えない場合は inner にそのまま委譲します。
type ActorCache struct {
	client   redis.UniversalClient
	inner    user.ActorResolver
	ttl      time.Duration
	observer LookupObserver
	logger   zerolog.Logger
}

// Option は ActorCache の生成オプションです。
type Option func(*ActorCache)

// WithObserver はキャッシュ参照結果の記録先を設定します。
func WithObserver(o LookupObserver) Option {
	return func(c *ActorCache) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger は Redis エラーの出力先を設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(c *ActorCache) {
		c.logger = logger
	}
}

// NewActorCache は ActorCache を生成します。
func NewActorCache(client redis.UniversalClient, inner user.ActorResolver, ttl time.Duration, opts ...Option) *ActorCache {
	c := &ActorCache{
		client:   client,
		inner:    inner,
		ttl:      ttl,
		observer: noopObserver{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cachedActor struct {
	ID                string                         `json:"id"`
	Role              access.Role                    `json:"role"`
	Superuser         bool                           `json:"superuser"`
	Groups            []string                       `json:"groups,omitempty"`
	EmployeeID        string                         `json:"employee_id,omitempty"`
	DirectPermissions []access.Permission            `json:"direct_permissions,omitempty"`
	GroupPermissions  map[string][]access.Permission `json:"group_permissions,omitempty"`
}

// ResolveActor はキャッシュから Actor を返し、無ければ inner で解決して保存します。
// 未認証の結果はキャッシュしません。
func (c *ActorCache) ResolveActor(ctx context.Context, id string) (*access.Actor, error) {
	key := actorKeyPrefix + id

	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedActor
		if err := json.Unmarshal(payload, &cached); err == nil {
			c.observer.ObserveCacheLookup("hit")
			return cached.actor(), nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cached actor")
		c.observer.ObserveCacheLookup("miss")
	case errors.Is(err, redis.Nil):
		c.observer.ObserveCacheLookup("miss")
	default:
		c.logger.Warn().Err(err).Str("key", key).Msg("actor cache lookup failed")
		c.observer.ObserveCacheLookup("error")
		return c.inner.ResolveActor(ctx, id)
	}

	actor, err := c.inner.ResolveActor(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(fromActor(actor))
	if err != nil {
		return actor, nil
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("actor cache store failed")
	}
	return actor, nil
}

// Invalidate はキャッシュされた Actor を破棄します。
func (c *ActorCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, actorKeyPrefix+id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func fromActor(a *access.Actor) cachedActor {
	return cachedActor{
		ID:                a.ID,
		Role:              a.Role,
		Superuser:         a.Superuser,
		Groups:            a.Groups,
		EmployeeID:        a.EmployeeID,
		DirectPermissions: a.DirectPermissions,
		GroupPermissions:  a.GroupPermissions,
	}
}

func (c cachedActor) actor() *access.Actor {
	return &access.Actor{
		ID:                c.ID,
		Role:              c.Role,
		Superuser:         c.Superuser,
		Groups:            c.Groups,
		EmployeeID:        c.EmployeeID,
		DirectPermissions: c.DirectPermissions,
		GroupPermissions:  c.GroupPermissions,
	}
}
