package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// QueueRepository is the Redis-backed waiting pool. Waiters are sharded into
// one sorted set per (gender, intent) bucket with the join time as score, and
// a per-user reverse key records which bucket holds them. All mutations run
// as Lua scripts so a claim is a single atomic read-and-remove: two
// concurrent searchers can never walk away with the same waiter.
type QueueRepository struct {
	rdb *redis.Client
}

func NewQueueRepository(rdb *redis.Client) *QueueRepository {
	return &QueueRepository{rdb: rdb}
}

const queueUserKeyPrefix = "match:wait:user:"

// BucketKey returns the sorted-set key for waiters of the given gender and
// search intent.
func BucketKey(gender, intent string) string {
	return fmt.Sprintf("match:wait:%s:%s", gender, intent)
}

// CandidateBuckets returns the bucket keys a requester with the given gender
// and intent may claim from. A candidate is eligible when the requester's
// intent accepts the candidate's gender and the candidate's intent accepts
// the requester's gender.
func CandidateBuckets(gender, intent string) []string {
	var genders []string
	if intent == models.SearchIntentAny {
		genders = []string{models.GenderMale, models.GenderFemale}
	} else {
		genders = []string{intent}
	}

	var keys []string
	for _, g := range genders {
		keys = append(keys, BucketKey(g, models.SearchIntentAny))
		keys = append(keys, BucketKey(g, gender))
	}
	return keys
}

// IsCompatible reports whether a requester (rGender, rIntent) and a waiting
// candidate (cGender, cIntent) accept each other.
func IsCompatible(rGender, rIntent, cGender, cIntent string) bool {
	if rIntent != models.SearchIntentAny && cGender != rIntent {
		return false
	}
	if cIntent != models.SearchIntentAny && rGender != cIntent {
		return false
	}
	return true
}

// AllBucketKeys returns every bucket key, for idempotent removal and the
// stale-entry sweep.
func AllBucketKeys() []string {
	var keys []string
	for _, g := range []string{models.GenderMale, models.GenderFemale} {
		for _, i := range []string{models.SearchIntentAny, models.SearchIntentMale, models.SearchIntentFemale} {
			keys = append(keys, BucketKey(g, i))
		}
	}
	return keys
}

// KEYS[1] = reverse key, KEYS[2] = bucket key
// ARGV[1] = user id, ARGV[2] = score
var enqueueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], KEYS[2])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// KEYS[1] = reverse key, KEYS[2..] = all bucket keys
// ARGV[1] = user id
var dequeueScript = redis.NewScript(`
local removed = redis.call('DEL', KEYS[1])
for i = 2, #KEYS do
  removed = removed + redis.call('ZREM', KEYS[i], ARGV[1])
end
return removed
`)

// KEYS[1..] = candidate bucket keys
// ARGV[1] = reverse key prefix, ARGV[2] = requester id, ARGV[3..] = excluded ids
//
// Walks each bucket oldest-first in pages until it finds that bucket's oldest
// eligible waiter, keeps the globally oldest across buckets, removes them and
// deletes their reverse key in the same script invocation. Paged so a long
// run of excluded ids at the head of a bucket cannot hide waiters behind it.
var claimScript = redis.NewScript(`
local excluded = {}
for i = 3, #ARGV do
  excluded[ARGV[i]] = true
end
local bestID, bestScore, bestKey
for k = 1, #KEYS do
  local offset = 0
  repeat
    local entries = redis.call('ZRANGE', KEYS[k], offset, offset + 49, 'WITHSCORES')
    local picked = false
    for i = 1, #entries, 2 do
      local id = entries[i]
      if id ~= ARGV[2] and not excluded[id] then
        local score = tonumber(entries[i + 1])
        if bestScore == nil or score < bestScore then
          bestID = id
          bestScore = score
          bestKey = KEYS[k]
        end
        picked = true
        break
      end
    end
    offset = offset + 50
  until picked or #entries == 0
end
if bestID == nil then
  return false
end
redis.call('ZREM', bestKey, bestID)
redis.call('DEL', ARGV[1] .. bestID)
return {bestID, string.format('%.0f', bestScore), bestKey}
`)

// KEYS[1] = reverse key, KEYS[2] = bucket key
// ARGV[1] = user id, ARGV[2] = score
var requeueScript = redis.NewScript(`
redis.call('SET', KEYS[1], KEYS[2])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

func userKey(userID uint) string {
	return queueUserKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Enqueue adds a waiter to the pool. Fails with ALREADY_QUEUED when an entry
// for the user already exists.
func (r *QueueRepository) Enqueue(ctx context.Context, entry *models.WaitingEntry) error {
	keys := []string{userKey(entry.UserID), BucketKey(entry.Gender, entry.Intent)}
	args := []interface{}{entry.UserID, entry.JoinedAt.UnixMilli()}

	added, err := enqueueScript.Run(ctx, r.rdb, keys, args...).Int()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to enqueue waiter")
	}
	if added == 0 {
		return errors.New(errors.ErrCodeAlreadyQueued, "user already in matchmaking queue")
	}
	return nil
}

// Dequeue removes a waiter if present. Idempotent: removing an absent user is
// not an error, which makes explicit cancel and post-match cleanup safe.
func (r *QueueRepository) Dequeue(ctx context.Context, userID uint) error {
	keys := append([]string{userKey(userID)}, AllBucketKeys()...)
	if err := dequeueScript.Run(ctx, r.rdb, keys, userID).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to dequeue waiter")
	}
	return nil
}

// IsQueued reports whether the user currently has a waiting entry.
func (r *QueueRepository) IsQueued(ctx context.Context, userID uint) (bool, error) {
	n, err := r.rdb.Exists(ctx, userKey(userID)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to check queue")
	}
	return n > 0, nil
}

// Claim atomically removes and returns the oldest waiter compatible with the
// requester, or nil when no one is waiting. excluded carries blocked user ids
// (either direction) plus partners already rejected in this request.
func (r *QueueRepository) Claim(ctx context.Context, requesterID uint, gender, intent string, excluded []uint) (*models.WaitingEntry, error) {
	keys := CandidateBuckets(gender, intent)
	args := []interface{}{queueUserKeyPrefix, requesterID}
	for _, id := range excluded {
		args = append(args, id)
	}

	res, err := claimScript.Run(ctx, r.rdb, keys, args...).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to claim partner")
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return nil, errors.New(errors.ErrCodeInternalError, "unexpected claim script reply")
	}

	id, err := strconv.ParseUint(fmt.Sprint(vals[0]), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "bad waiter id in claim reply")
	}
	score, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "bad score in claim reply")
	}
	cGender, cIntent, err := parseBucketKey(fmt.Sprint(vals[2]))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "bad bucket key in claim reply")
	}

	return &models.WaitingEntry{
		UserID:   uint(id),
		Gender:   cGender,
		Intent:   cIntent,
		JoinedAt: time.UnixMilli(score),
	}, nil
}

// Requeue puts a previously claimed waiter back with their original join
// time, preserving their place in the FIFO order. Used when a pairing is
// aborted after the claim.
func (r *QueueRepository) Requeue(ctx context.Context, entry *models.WaitingEntry) error {
	keys := []string{userKey(entry.UserID), BucketKey(entry.Gender, entry.Intent)}
	args := []interface{}{entry.UserID, entry.JoinedAt.UnixMilli()}

	if err := requeueScript.Run(ctx, r.rdb, keys, args...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodePartnerReclaim, "failed to requeue claimed waiter")
	}
	return nil
}

// KEYS[1] = bucket key
// ARGV[1] = max score, ARGV[2] = reverse key prefix
var pruneScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for i = 1, #expired do
  redis.call('ZREM', KEYS[1], expired[i])
  redis.call('DEL', ARGV[2] .. expired[i])
end
return expired
`)

// PruneStale removes entries older than ttl and returns the affected user
// ids so the caller can notify them that their search expired. Each bucket is
// swept by one script, so the scan and the removal cannot interleave with a
// claim or a fresh enqueue: only members actually removed are reported.
func (r *QueueRepository) PruneStale(ctx context.Context, ttl time.Duration) ([]uint, error) {
	maxScore := strconv.FormatInt(time.Now().Add(-ttl).UnixMilli(), 10)

	var pruned []uint
	for _, bucket := range AllBucketKeys() {
		members, err := pruneScript.Run(ctx, r.rdb, []string{bucket}, maxScore, queueUserKeyPrefix).StringSlice()
		if err != nil && err != redis.Nil {
			return pruned, errors.Wrap(err, errors.ErrCodeInternalError, "failed to prune stale waiters")
		}

		for _, member := range members {
			id, perr := strconv.ParseUint(member, 10, 64)
			if perr != nil {
				continue
			}
			pruned = append(pruned, uint(id))
		}
	}
	return pruned, nil
}

func parseBucketKey(key string) (gender, intent string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "match" || parts[1] != "wait" {
		return "", "", fmt.Errorf("malformed bucket key %q", key)
	}
	return parts[2], parts[3], nil
}
