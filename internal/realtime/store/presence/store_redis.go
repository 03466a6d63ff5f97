package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"collabhub/internal/realtime/metrics"
	id "collabhub/pkg/domain"
)

// Key layout, per scope "<kind>:<id>":
//
//	<prefix>:conns:<scope>  hash   userID -> connID
//	<prefix>:lease:<scope>  zset   userID scored by lease expiry (unix ms)
//	<prefix>:scopes         set    scopes that may hold entries, for Sweep
const (
	connsSegment  = "conns"
	leaseSegment  = "lease"
	scopesSegment = "scopes"
	sweepBatch    = 200
)

// renewScript extends the lease of an entry owned by ARGV[2], or recreates it
// when absent or expired. Returns 0 when a live entry belongs to someone else.
var renewScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if current and current ~= ARGV[2] then
  local exp = redis.call('ZSCORE', KEYS[2], ARGV[1])
  if not exp or tonumber(exp) > tonumber(ARGV[4]) then
    return 0
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
end
redis.call('SADD', KEYS[3], ARGV[5])
return 1
`)

// unregisterIfOwnedScript deletes the entry only when it still points at ARGV[2].
var unregisterIfOwnedScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
  redis.call('HDEL', KEYS[1], ARGV[1])
  redis.call('ZREM', KEYS[2], ARGV[1])
  return 1
end
return 0
`)

// sweepScript removes entries whose lease is at or before ARGV[1] and drops
// scope ARGV[2] from the scope set KEYS[3] once its hash is empty. Running the
// SREM inside the script keeps a concurrent Register from being forgotten.
// Returns {removed, remaining}.
var sweepScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, user in ipairs(expired) do
  redis.call('HDEL', KEYS[1], user)
end
if #expired > 0 then
  redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
end
local remaining = redis.call('HLEN', KEYS[1])
if remaining == 0 then
  redis.call('SREM', KEYS[3], ARGV[2])
end
return {#expired, remaining}
`)

// RedisStore is the production presence registry, shared by every server
// process. Targets a single Redis node or a sentinel-managed primary; the
// multi-key transactions are not cluster-slot aware.
type RedisStore struct {
	client   redis.UniversalClient
	prefix   string
	leaseTTL time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

// NewRedis constructs a Redis-backed presence store.
func NewRedis(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{
		client:   client,
		prefix:   o.keyPrefix,
		leaseTTL: o.leaseTTL,
		now:      o.now,
		metrics:  o.metrics,
	}
}

func (s *RedisStore) Register(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) error {
	defer s.observe("register", time.Now())

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.connsKey(scope), userID.String(), connID.String())
		if s.leaseTTL > 0 {
			pipe.ZAdd(ctx, s.leaseKey(scope), redis.Z{Score: float64(s.expiry()), Member: userID.String()})
		}
		pipe.SAdd(ctx, s.scopesKey(), scope.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("register presence: %w", err)
	}
	return nil
}

func (s *RedisStore) Renew(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) (bool, error) {
	defer s.observe("renew", time.Now())

	var expiry int64
	if s.leaseTTL > 0 {
		expiry = s.expiry()
	}
	renewed, err := renewScript.Run(ctx, s.client,
		[]string{s.connsKey(scope), s.leaseKey(scope), s.scopesKey()},
		userID.String(), connID.String(), expiry, s.now().UnixMilli(), scope.String(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("renew presence: %w", err)
	}
	return renewed == 1, nil
}

func (s *RedisStore) Unregister(ctx context.Context, scope id.Scope, userID id.UserID) error {
	defer s.observe("unregister", time.Now())

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.connsKey(scope), userID.String())
		pipe.ZRem(ctx, s.leaseKey(scope), userID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("unregister presence: %w", err)
	}
	return nil
}

func (s *RedisStore) UnregisterIfOwned(ctx context.Context, scope id.Scope, userID id.UserID, connID id.ConnectionID) (bool, error) {
	defer s.observe("unregister_if_owned", time.Now())

	removed, err := unregisterIfOwnedScript.Run(ctx, s.client,
		[]string{s.connsKey(scope), s.leaseKey(scope)},
		userID.String(), connID.String(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("unregister presence: %w", err)
	}
	return removed == 1, nil
}

func (s *RedisStore) ListOnline(ctx context.Context, scope id.Scope) (map[id.UserID]id.ConnectionID, error) {
	defer s.observe("list_online", time.Now())

	var (
		entries *redis.MapStringStringCmd
		expired *redis.StringSliceCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		entries = pipe.HGetAll(ctx, s.connsKey(scope))
		if s.leaseTTL > 0 {
			expired = pipe.ZRangeByScore(ctx, s.leaseKey(scope), &redis.ZRangeBy{
				Min: "-inf",
				Max: strconv.FormatInt(s.now().UnixMilli(), 10),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}

	stale := map[string]struct{}{}
	if expired != nil {
		for _, user := range expired.Val() {
			stale[user] = struct{}{}
		}
	}

	online := make(map[id.UserID]id.ConnectionID, len(entries.Val()))
	for user, conn := range entries.Val() {
		if _, ok := stale[user]; ok {
			continue
		}
		online[id.UserID(user)] = id.ConnectionID(conn)
	}
	return online, nil
}

func (s *RedisStore) ResolveConnections(ctx context.Context, scope id.Scope, userIDs []id.UserID) ([]id.ConnectionID, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	online, err := s.ListOnline(ctx, scope)
	if err != nil {
		return nil, err
	}
	return pick(online, userIDs), nil
}

func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	defer s.observe("sweep", time.Now())

	cutoff := now.UnixMilli()
	removed := 0
	iter := s.client.SScan(ctx, s.scopesKey(), 0, "", sweepBatch).Iterator()
	for iter.Next(ctx) {
		scopeText := iter.Val()
		scope, err := id.ParseScope(scopeText)
		if err != nil {
			// Foreign member; drop it so it is not rescanned forever.
			s.client.SRem(ctx, s.scopesKey(), scopeText)
			continue
		}
		res, err := sweepScript.Run(ctx, s.client,
			[]string{s.connsKey(scope), s.leaseKey(scope), s.scopesKey()},
			cutoff, scopeText,
		).Int64Slice()
		if err != nil {
			return removed, fmt.Errorf("sweep %s: %w", scope, err)
		}
		removed += int(res[0])
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("sweep scan: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) connsKey(scope id.Scope) string {
	return s.prefix + ":" + connsSegment + ":" + scope.String()
}

func (s *RedisStore) leaseKey(scope id.Scope) string {
	return s.prefix + ":" + leaseSegment + ":" + scope.String()
}

func (s *RedisStore) scopesKey() string {
	return s.prefix + ":" + scopesSegment
}

func (s *RedisStore) expiry() int64 {
	return s.now().Add(s.leaseTTL).UnixMilli()
}

func (s *RedisStore) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveStoreLatency(op, time.Since(start))
	}
}
