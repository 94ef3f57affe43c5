package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ts"

// Revocation must be a compare-and-set: the script checks "not yet revoked,
// not yet expired" and writes revoked-at in one atomic step, so concurrent
// rotations of the same fingerprint cannot both observe an active record.
const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HGET", KEYS[1], "revoked_at") then
  return 0
end
local expires = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
if not expires or expires <= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1])
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// The owner index inherits the newest record's TTL. Records share one
// lifetime, so the latest create always expires last and the refresh never
// shortens a live index.
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "owner", ARGV[1],
  "created_at", ARGV[2],
  "expires_at", ARGV[3],
  "ip", ARGV[4],
  "ua", ARGV[5])
redis.call("PEXPIRE", KEYS[1], ARGV[6])
redis.call("SADD", KEYS[2], ARGV[7])
redis.call("PEXPIRE", KEYS[2], ARGV[6])
return 1
`

var createLua = redis.NewScript(createScript)

const revokeAllScript = `
local fps = redis.call("SMEMBERS", KEYS[1])
local now = tonumber(ARGV[1])
local prefix = ARGV[2]
local count = 0
for _, fp in ipairs(fps) do
  local key = prefix .. fp
  if redis.call("EXISTS", key) == 0 then
    redis.call("SREM", KEYS[1], fp)
  elseif not redis.call("HGET", key, "revoked_at") then
    local expires = tonumber(redis.call("HGET", key, "expires_at"))
    if expires and expires > now then
      redis.call("HSET", key, "revoked_at", ARGV[1])
      count = count + 1
    end
  end
end
return count
`

var revokeAllLua = redis.NewScript(revokeAllScript)

const markReplacedScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HGET", KEYS[1], "replaced_by") then
  return 0
end
redis.call("HSET", KEYS[1], "replaced_by", ARGV[1])
return 1
`

var markReplacedLua = redis.NewScript(markReplacedScript)

// RedisStore keeps refresh session records as Redis hashes keyed by
// fingerprint, with the key TTL pinned to the record's expiry so sweeping is
// native to the storage engine. An owner-indexed set supports the
// all-sessions operations.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore on the given client. prefix namespaces
// all keys; empty selects the default.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) recordKey(fingerprint string) string {
	return s.prefix + ":rec:" + fingerprint
}

func (s *RedisStore) recordKeyPrefix() string {
	return s.prefix + ":rec:"
}

func (s *RedisStore) ownerKey(ownerID string) string {
	return s.prefix + ":own:" + ownerID
}

// Create persists a fresh active record. The key expires exactly at the
// record's expires-at, which is the storage-native equivalent of the expiry
// sweep.
func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return errors.New("refresh session already expired at creation")
	}

	result, err := createLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(rec.Fingerprint), s.ownerKey(rec.OwnerID)},
		rec.OwnerID,
		rec.CreatedAt.Unix(),
		rec.ExpiresAt.Unix(),
		rec.IP,
		rec.UserAgent,
		ttl.Milliseconds(),
		rec.Fingerprint,
	).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if result == 0 {
		return ErrDuplicateFingerprint
	}

	return nil
}

// FindByFingerprint returns the decoded record or ErrNotFound.
func (s *RedisStore) FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(fingerprint)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return decodeRecord(fingerprint, fields)
}

// FindActiveByOwner loads every indexed record of the owner and filters to
// the active ones.
func (s *RedisStore) FindActiveByOwner(ctx context.Context, ownerID string) ([]*Record, error) {
	fps, err := s.redis.SMembers(ctx, s.ownerKey(ownerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fps) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(fps))
	for i, fp := range fps {
		cmds[i] = pipe.HGetAll(ctx, s.recordKey(fp))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := time.Now()
	records := make([]*Record, 0, len(fps))
	var swept []string
	for i, cmd := range cmds {
		fields, cmdErr := cmd.Result()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				swept = append(swept, fps[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		if len(fields) == 0 {
			swept = append(swept, fps[i])
			continue
		}

		rec, decErr := decodeRecord(fps[i], fields)
		if decErr != nil {
			return nil, decErr
		}
		if rec.IsActive(now) {
			records = append(records, rec)
		}
	}

	// Index entries whose records the TTL already swept are dead weight;
	// pruning here is best-effort, RevokeAll prunes the rest.
	if len(swept) > 0 {
		_ = s.redis.SRem(ctx, s.ownerKey(ownerID), swept).Err()
	}

	return records, nil
}

// Revoke performs the atomic "revoke iff active" transition.
func (s *RedisStore) Revoke(ctx context.Context, fingerprint string) (bool, error) {
	result, err := revokeLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(fingerprint)},
		time.Now().Unix(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return result == 1, nil
}

// RevokeAll walks the owner index inside a single script, revoking every
// still-active record and pruning index entries whose keys were already
// swept. Returns the number of records transitioned.
func (s *RedisStore) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	result, err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.ownerKey(ownerID)},
		time.Now().Unix(),
		s.recordKeyPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return int(result), nil
}

// MarkReplaced links a consumed record to its successor fingerprint. The
// field is write-once; repeat calls are no-ops.
func (s *RedisStore) MarkReplaced(ctx context.Context, fingerprint, replacedBy string) error {
	result, err := markReplacedLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(fingerprint)},
		replacedBy,
	).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if result == -1 {
		return ErrNotFound
	}

	return nil
}

// Ping reports point-in-time backend availability.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func decodeRecord(fingerprint string, fields map[string]string) (*Record, error) {
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt created_at for %s", ErrUnavailable, shortFingerprint(fingerprint))
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expires_at for %s", ErrUnavailable, shortFingerprint(fingerprint))
	}

	rec := &Record{
		Fingerprint: fingerprint,
		OwnerID:     fields["owner"],
		CreatedAt:   time.Unix(createdAt, 0),
		ExpiresAt:   time.Unix(expiresAt, 0),
		ReplacedBy:  fields["replaced_by"],
		IP:          fields["ip"],
		UserAgent:   fields["ua"],
	}

	if raw, ok := fields["revoked_at"]; ok && raw != "" {
		revokedAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt revoked_at for %s", ErrUnavailable, shortFingerprint(fingerprint))
		}
		t := time.Unix(revokedAt, 0)
		rec.RevokedAt = &t
	}

	return rec, nil
}

// shortFingerprint truncates a fingerprint for log and error text so full
// storage keys never leak into output.
func shortFingerprint(fingerprint string) string {
	if len(fingerprint) <= 8 {
		return fingerprint
	}
	return fingerprint[:8]
}
