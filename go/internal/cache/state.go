// Package cache keeps a Redis copy of each draft's public state.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftturns/go/internal/draft/engine"
	"github.com/mcdev12/draftturns/go/internal/draft/events"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix     = "draftturns:state:"
	versionPrefix = "draftturns:state-version:"
)

// setIfVersion writes KEYS[1] only while KEYS[2] still holds the version the
// reader saw before loading from the source. A missing version reads as "0".
const setIfVersion = `
local v = redis.call('GET', KEYS[2])
if not v then v = '0' end
if v ~= ARGV[1] then return 0 end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`

// kv is the part of the Redis client the cache uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// StateReader loads public state from the source of truth.
type StateReader interface {
	GetPublicState(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error)
}

// StateCache is a read-through cache of PublicState. Redis failures fall back to the source.
// Registered as an event sink, it drops a draft's entry after every commit and bumps the
// draft's version, so a read that loaded state before the commit cannot write it back.
type StateCache struct {
	rdb    kv
	source StateReader
	ttl    time.Duration
}

var _ events.Sink = (*StateCache)(nil)

func NewStateCache(rdb kv, source StateReader, ttl time.Duration) *StateCache {
	return &StateCache{rdb: rdb, source: source, ttl: ttl}
}

// Connect creates a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func Key(draftID uuid.UUID) string {
	return keyPrefix + draftID.String()
}

// VersionKey holds the number of invalidations seen for a draft.
func VersionKey(draftID uuid.UUID) string {
	return versionPrefix + draftID.String()
}

func (c *StateCache) GetPublicState(ctx context.Context, draftID uuid.UUID) (*engine.PublicState, error) {
	key := Key(draftID)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var st engine.PublicState
		if err := json.Unmarshal(data, &st); err == nil {
			return &st, nil
		}
		log.Warn().Str("draft_id", draftID.String()).Msg("discarding undecodable cached state")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("state cache read failed")
	}

	version, verErr := c.version(ctx, draftID)

	st, err := c.source.GetPublicState(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if verErr != nil {
		log.Warn().Err(verErr).Str("draft_id", draftID.String()).Msg("state cache version read failed")
		return st, nil
	}

	data, err = json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public state: %w", err)
	}
	written, err := c.rdb.Eval(ctx, setIfVersion,
		[]string{key, VersionKey(draftID)},
		version, data, c.ttl.Milliseconds(),
	).Int()
	switch {
	case err != nil:
		log.Warn().Err(err).Str("draft_id", draftID.String()).Msg("state cache write failed")
	case written == 0:
		log.Debug().Str("draft_id", draftID.String()).Msg("draft changed during read, not caching")
	}
	return st, nil
}

func (c *StateCache) version(ctx context.Context, draftID uuid.UUID) (string, error) {
	v, err := c.rdb.Get(ctx, VersionKey(draftID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

// Notify invalidates the entries of every draft the events touch. The version is
// bumped before the delete so an in-flight read-through sees the change.
func (c *StateCache) Notify(ctx context.Context, evs ...events.Event) error {
	seen := make(map[uuid.UUID]bool, 1)
	var keys []string
	for _, ev := range evs {
		if !seen[ev.DraftID] {
			seen[ev.DraftID] = true
			keys = append(keys, Key(ev.DraftID))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	for draftID := range seen {
		if err := c.rdb.Incr(ctx, VersionKey(draftID)).Err(); err != nil {
			return fmt.Errorf("failed to bump cached state version: %w", err)
		}
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached state: %w", err)
	}
	return nil
}
