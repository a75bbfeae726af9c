package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/token"
)

const (
	fieldOwner     = "uid"
	fieldExpires   = "exp"
	tagFieldPrefix = "tag:"

	// evictionGrace keeps an expired hash readable briefly past its logical
	// expiry so the next read reports ErrTokenExpired instead of a plain miss.
	evictionGrace = time.Second
)

// deleteTokenScript removes a token hash and its reverse index entries.
// KEYS[1] token key. ARGV[1] index key prefix, ARGV[2] raw token.
const deleteTokenScript = `
local fields = redis.call("HGETALL", KEYS[1])
if #fields == 0 then
  return 0
end
for i = 1, #fields, 2 do
  local f = fields[i]
  if string.sub(f, 1, 4) == "tag:" then
    local name = string.sub(f, 5)
    redis.call("SREM", ARGV[1] .. #name .. ":" .. name .. ":" .. fields[i + 1], ARGV[2])
  end
end
redis.call("DEL", KEYS[1])
return 1
`

var deleteTokenLua = redis.NewScript(deleteTokenScript)

// takeTokenScript reads and deletes a token hash in one step.
// KEYS[1] token key. ARGV[1] index key prefix, ARGV[2] raw token, ARGV[3] now in unix ms.
// Returns {0} when absent, {1} when expired, {2, uid} when taken.
const takeTokenScript = `
local fields = redis.call("HGETALL", KEYS[1])
if #fields == 0 then
  return {0}
end
local uid = nil
local exp = 0
for i = 1, #fields, 2 do
  local f = fields[i]
  if f == "uid" then
    uid = fields[i + 1]
  elseif f == "exp" then
    exp = tonumber(fields[i + 1]) or 0
  elseif string.sub(f, 1, 4) == "tag:" then
    local name = string.sub(f, 5)
    redis.call("SREM", ARGV[1] .. #name .. ":" .. name .. ":" .. fields[i + 1], ARGV[2])
  end
end
redis.call("DEL", KEYS[1])
if exp > 0 and exp <= tonumber(ARGV[3]) then
  return {1}
end
return {2, uid}
`

var takeTokenLua = redis.NewScript(takeTokenScript)

const (
	takeStatusNotFound int64 = 0
	takeStatusExpired  int64 = 1
	takeStatusTaken    int64 = 2
)

// putTagScript sets one tag on a live token hash and moves its index entry.
// KEYS[1] token key. ARGV[1] tag field, ARGV[2] value, ARGV[3] raw token,
// ARGV[4] index key prefix for this tag name, ARGV[5] now in unix ms.
const putTagScript = `
local exp = redis.call("HGET", KEYS[1], "exp")
if not exp then
  return 0
end
exp = tonumber(exp)
if exp > 0 and exp <= tonumber(ARGV[5]) then
  return 0
end
local old = redis.call("HGET", KEYS[1], ARGV[1])
if old then
  redis.call("SREM", ARGV[4] .. old, ARGV[3])
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
local idx = ARGV[4] .. ARGV[2]
redis.call("SADD", idx, ARGV[3])
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("PEXPIRE", idx, ttl)
end
return 1
`

var putTagLua = redis.NewScript(putTagScript)

// Redis stores each token as a hash with an owner field, an expiry field and
// one field per tag. Tag values are indexed in sets so reverse lookups do not
// scan the keyspace; stale index members are pruned when read.
//
// Key layout:
//
//	<prefix>:tok:<raw token>                     hash {uid, exp, tag:<name>...}
//	<prefix>:idx:<len(name)>:<name>:<raw value>  set of raw tokens
//
// The byte length of the tag name keeps index keys unambiguous when names or
// values contain ':'.
type Redis[T token.Kind] struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedis returns a store using client under the key namespace prefix.
// The client is owned by the caller; Close does not close it.
func NewRedis[T token.Kind](client redis.UniversalClient, prefix string) *Redis[T] {
	if prefix == "" {
		prefix = "authcore"
	}
	return &Redis[T]{redis: client, prefix: prefix, now: time.Now}
}

func (s *Redis[T]) key(raw string) string {
	return s.prefix + ":tok:" + raw
}

func (s *Redis[T]) indexPrefix() string {
	return s.prefix + ":idx:"
}

func (s *Redis[T]) tagIndexPrefix(name string) string {
	return s.indexPrefix() + strconv.Itoa(len(name)) + ":" + name + ":"
}

func (s *Redis[T]) indexKey(name string, value []byte) string {
	return s.tagIndexPrefix(name) + string(value)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Put replaces any previous record for tok in one transaction.
//
//	Performance: 1 round trip (MULTI DEL HSET PEXPIRE SADD... EXEC).
func (s *Redis[T]) Put(ctx context.Context, tok T, owner uuid.UUID, tags Tags, ttl time.Duration) error {
	raw := tok.Value().Key()
	key := s.key(raw)

	var expMillis int64
	if ttl != NoExpiry {
		expMillis = s.now().Add(ttl).UnixMilli()
	}

	fields := make([]interface{}, 0, 4+2*len(tags))
	fields = append(fields, fieldOwner, owner.String(), fieldExpires, strconv.FormatInt(expMillis, 10))
	for name, value := range tags {
		fields = append(fields, tagFieldPrefix+name, value)
	}

	native := nativeTTL(ttl)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields...)
		if native > 0 {
			pipe.PExpire(ctx, key, native)
		}
		for name, value := range tags {
			idx := s.indexKey(name, value)
			pipe.SAdd(ctx, idx, raw)
			if native > 0 {
				pipe.PExpire(ctx, idx, native)
			}
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// nativeTTL is the engine-side lifetime: the logical ttl plus a short grace.
func nativeTTL(ttl time.Duration) time.Duration {
	if ttl == NoExpiry {
		return 0
	}
	if ttl < 0 {
		return evictionGrace
	}
	return ttl + evictionGrace
}

// Get resolves the owner of tok.
//
//	Performance: 1 HMGET, plus a delete when the record has expired.
func (s *Redis[T]) Get(ctx context.Context, tok T) (uuid.UUID, error) {
	vals, err := s.redis.HMGet(ctx, s.key(tok.Value().Key()), fieldOwner, fieldExpires).Result()
	if err != nil {
		return uuid.Nil, unavailable(err)
	}
	if vals[0] == nil {
		return uuid.Nil, ErrTokenNotFound
	}

	if err := s.checkExpiry(ctx, tok, vals[1]); err != nil {
		return uuid.Nil, err
	}

	owner, err := uuid.Parse(asString(vals[0]))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: owner: %v", ErrTokenInvalid, err)
	}
	return owner, nil
}

func (s *Redis[T]) checkExpiry(ctx context.Context, tok T, raw interface{}) error {
	if raw == nil {
		return fmt.Errorf("%w: missing expiry", ErrTokenInvalid)
	}
	exp, err := strconv.ParseInt(asString(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: expiry: %v", ErrTokenInvalid, err)
	}
	if exp == 0 || s.now().UnixMilli() < exp {
		return nil
	}
	if err := s.Delete(ctx, tok); err != nil {
		return err
	}
	return ErrTokenExpired
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

// Take reads and deletes tok in one script so concurrent callers cannot both
// observe the record.
//
//	Performance: 1 EVALSHA.
func (s *Redis[T]) Take(ctx context.Context, tok T) (uuid.UUID, error) {
	raw := tok.Value().Key()
	res, err := takeTokenLua.Run(ctx, s.redis, []string{s.key(raw)}, s.indexPrefix(), raw, s.now().UnixMilli()).Slice()
	if err != nil {
		return uuid.Nil, unavailable(err)
	}
	if len(res) == 0 {
		return uuid.Nil, fmt.Errorf("%w: empty take reply", ErrTokenInvalid)
	}
	status, _ := res[0].(int64)
	switch status {
	case takeStatusNotFound:
		return uuid.Nil, ErrTokenNotFound
	case takeStatusExpired:
		return uuid.Nil, ErrTokenExpired
	case takeStatusTaken:
		if len(res) < 2 {
			return uuid.Nil, fmt.Errorf("%w: missing owner", ErrTokenInvalid)
		}
		owner, err := uuid.Parse(asString(res[1]))
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: owner: %v", ErrTokenInvalid, err)
		}
		return owner, nil
	default:
		return uuid.Nil, fmt.Errorf("%w: take status %d", ErrTokenInvalid, status)
	}
}

// Delete removes tok and its index entries. Absent tokens are not an error.
func (s *Redis[T]) Delete(ctx context.Context, tok T) error {
	raw := tok.Value().Key()
	err := deleteTokenLua.Run(ctx, s.redis, []string{s.key(raw)}, s.indexPrefix(), raw).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	return nil
}

func (s *Redis[T]) PutTag(ctx context.Context, tok T, name string, value []byte) error {
	raw := tok.Value().Key()
	res, err := putTagLua.Run(ctx, s.redis,
		[]string{s.key(raw)},
		tagFieldPrefix+name,
		value,
		raw,
		s.tagIndexPrefix(name),
		s.now().UnixMilli(),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if res == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (s *Redis[T]) GetTag(ctx context.Context, tok T, name string) ([]byte, error) {
	vals, err := s.redis.HMGet(ctx, s.key(tok.Value().Key()), fieldExpires, tagFieldPrefix+name).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if vals[0] == nil {
		return nil, ErrTokenNotFound
	}
	if err := s.checkExpiry(ctx, tok, vals[0]); err != nil {
		return nil, err
	}
	if vals[1] == nil {
		return nil, ErrTokenNotFound
	}
	return []byte(asString(vals[1])), nil
}

// GetByTag reads the index set and confirms each member against its hash.
// Members whose record is gone, expired or retagged are removed from the set.
//
//	Performance: 1 SMEMBERS + 1 pipelined HMGET batch (+1 SREM when pruning).
func (s *Redis[T]) GetByTag(ctx context.Context, name string, value []byte) ([]T, error) {
	idx := s.indexKey(name, value)

	members, err := s.redis.SMembers(ctx, idx).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.SliceCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.HMGet(ctx, s.key(member), fieldExpires, tagFieldPrefix+name)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	now := s.now().UnixMilli()
	want := string(value)
	out := make([]T, 0, len(members))
	stale := make([]interface{}, 0)
	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			return nil, unavailable(err)
		}
		if vals[0] == nil || vals[1] == nil || asString(vals[1]) != want {
			stale = append(stale, members[i])
			continue
		}
		exp, err := strconv.ParseInt(asString(vals[0]), 10, 64)
		if err != nil || (exp > 0 && now >= exp) {
			continue
		}
		out = append(out, token.Wrap[T](token.FromBytes([]byte(members[i]))))
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, idx, stale...).Err(); err != nil {
			return nil, unavailable(err)
		}
	}
	return out, nil
}

func (s *Redis[T]) DeleteByTag(ctx context.Context, name string, value []byte) (int, error) {
	toks, err := s.GetByTag(ctx, name, value)
	if err != nil {
		return 0, err
	}
	for _, tok := range toks {
		if err := s.Delete(ctx, tok); err != nil {
			return 0, err
		}
	}
	return len(toks), nil
}

func (s *Redis[T]) Kind() Backend { return BackendRedis }

// Close is a no-op; the client belongs to the caller.
func (s *Redis[T]) Close() error { return nil }
