package queue

import "github.com/redis/go-redis/v9"

// reserveScript promotes due delayed jobs to wait, then moves the head of
// wait to active and stamps processedOn.
// KEYS: wait, active, delayed. ARGV: now (ms), job key base.
var reserveScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[3], "-inf", ARGV[1])
for _, id in ipairs(due) do
	redis.call("ZREM", KEYS[3], id)
	redis.call("RPUSH", KEYS[1], id)
end
local id = redis.call("LMOVE", KEYS[1], KEYS[2], "LEFT", "RIGHT")
if not id then
	return false
end
redis.call("HSET", ARGV[2] .. id, "processedOn", ARGV[1])
return id`)

// completeScript moves an active job to completed, or deletes it when removeOnComplete is set.
// KEYS: active, completed, job hash. ARGV: id, now (ms), returnvalue, remove ("1"/"0").
// Returns 0 when the job is not active.
var completeScript = redis.NewScript(`
if redis.call("LREM", KEYS[1], 0, ARGV[1]) == 0 then
	return 0
end
if ARGV[4] == "1" then
	redis.call("DEL", KEYS[3])
	return 1
end
redis.call("HSET", KEYS[3], "finishedOn", ARGV[2], "returnvalue", ARGV[3])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
return 1`)

// failScript records a failed attempt. With a retry it parks the job in delayed
// until ARGV[5]; without one it finishes the job in failed, or deletes it when
// removeOnFail is set.
// KEYS: active, delayed, failed, job hash.
// ARGV: id, now (ms), attemptsMade, failedReason, retryAt (ms, "" when exhausted), stacktrace, remove ("1"/"0").
// Returns 0 when the job is not active.
var failScript = redis.NewScript(`
if redis.call("LREM", KEYS[1], 0, ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[4], "attemptsMade", ARGV[3], "failedReason", ARGV[4], "stacktrace", ARGV[6])
if ARGV[5] ~= "" then
	redis.call("ZADD", KEYS[2], ARGV[5], ARGV[1])
	return 1
end
if ARGV[7] == "1" then
	redis.call("DEL", KEYS[4])
	return 1
end
redis.call("HSET", KEYS[4], "finishedOn", ARGV[2])
redis.call("ZADD", KEYS[3], ARGV[2], ARGV[1])
return 1`)

// progressScript updates the progress field of an existing job.
// KEYS: job hash. ARGV: progress. Returns 0 when the job does not exist.
var progressScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "progress", ARGV[1])
return 1`)

// cleanScript deletes up to ARGV[2] finished jobs whose finish time is at or before ARGV[1].
// KEYS: finished set. ARGV: cutoff (ms), limit, job key base.
var cleanScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
	redis.call("ZREM", KEYS[1], id)
	redis.call("DEL", ARGV[3] .. id)
end
return #ids`)
