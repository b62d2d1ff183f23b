package redis

import "github.com/redis/go-redis/v9"

// Every script runs atomically on the server, which is what makes claims
// exclusive and lease checks race free. Job hash keys are derived from the
// prefix inside the scripts, so the store targets a single node.

// KEYS: seq, live, waiting, jobs
// ARGV: prefix, not_before_ms, field/value pairs...
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return false
end
local seq = redis.call('INCR', KEYS[1])
local id = string.format('job_%015d', seq)
local key = ARGV[1] .. ':job:' .. id
redis.call('HSET', key, 'id', id, 'seq', seq, 'live_key', KEYS[2], unpack(ARGV, 3))
redis.call('SET', KEYS[2], id)
redis.call('ZADD', KEYS[3], ARGV[2], id)
redis.call('ZADD', KEYS[4], seq, id)
return id
`)

// KEYS: waiting, active
// ARGV: prefix, as_of_ms, limit, worker_id, at
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2], 'LIMIT', 0, ARGV[3])
for _, id in ipairs(ids) do
  local key = ARGV[1] .. ':job:' .. id
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[2], id)
  redis.call('HINCRBY', key, 'attempts', 1)
  redis.call('HSET', key, 'state', 'active', 'claimed_by', ARGV[4], 'claimed_at', ARGV[5], 'heartbeat_at', ARGV[5], 'updated_at', ARGV[5])
end
return ids
`)

// KEYS: waiting, active
// ARGV: prefix, id, worker_id, at, at_ms
// Returns 1 on success, 0 when the job is missing, -1 when it is not waiting.
var activateScript = redis.NewScript(`
local key = ARGV[1] .. ':job:' .. ARGV[2]
local state = redis.call('HGET', key, 'state')
if not state then
  return 0
end
if state ~= 'waiting' then
  return -1
end
redis.call('ZREM', KEYS[1], ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[5], ARGV[2])
redis.call('HINCRBY', key, 'attempts', 1)
redis.call('HSET', key, 'state', 'active', 'claimed_by', ARGV[3], 'claimed_at', ARGV[4], 'heartbeat_at', ARGV[4], 'updated_at', ARGV[4])
return 1
`)

// KEYS: waiting, active, completed, failed
// ARGV: prefix, id, attempt, op, at, at_ms, not_before, not_before_ms, last_error
// Returns 1 on success, 0 when the job is missing, -1 when the lease is gone.
var transitionScript = redis.NewScript(`
local id = ARGV[2]
local key = ARGV[1] .. ':job:' .. id
local state = redis.call('HGET', key, 'state')
if not state then
  return 0
end
if state ~= 'active' or redis.call('HGET', key, 'attempts') ~= ARGV[3] then
  return -1
end
local op, at = ARGV[4], ARGV[5]
if op == 'heartbeat' then
  redis.call('HSET', key, 'heartbeat_at', at)
  redis.call('ZADD', KEYS[2], ARGV[6], id)
  return 1
end
redis.call('ZREM', KEYS[2], id)
if op == 'requeue' then
  redis.call('HSET', key, 'state', 'waiting', 'not_before', ARGV[7], 'last_error', ARGV[9], 'updated_at', at)
  redis.call('HDEL', key, 'claimed_by', 'claimed_at', 'heartbeat_at')
  redis.call('ZADD', KEYS[1], ARGV[8], id)
  return 1
end
local live = redis.call('HGET', key, 'live_key')
if live and redis.call('GET', live) == id then
  redis.call('DEL', live)
end
local seq = redis.call('HGET', key, 'seq')
if op == 'complete' then
  redis.call('HSET', key, 'state', 'completed', 'completed_at', at, 'updated_at', at)
  redis.call('ZADD', KEYS[3], seq, id)
else
  redis.call('HSET', key, 'state', 'failed', 'last_error', ARGV[9], 'completed_at', at, 'updated_at', at)
  redis.call('ZADD', KEYS[4], seq, id)
end
return 1
`)

// removeJob is shared by the remove and clear scripts.
const removeJob = `
local function remove_job(prefix, id)
  local key = prefix .. ':job:' .. id
  local live = redis.call('HGET', key, 'live_key')
  if live and redis.call('GET', live) == id then
    redis.call('DEL', live)
  end
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZREM', KEYS[3], id)
  redis.call('ZREM', KEYS[4], id)
  redis.call('ZREM', KEYS[5], id)
  redis.call('DEL', key)
end
`

// KEYS: waiting, active, completed, failed, jobs
// ARGV: prefix, id
// Returns 1 on success, 0 when the job is missing, -1 when it is active.
var removeScript = redis.NewScript(removeJob + `
local state = redis.call('HGET', ARGV[1] .. ':job:' .. ARGV[2], 'state')
if not state then
  return 0
end
if state == 'active' then
  return -1
end
remove_job(ARGV[1], ARGV[2])
return 1
`)

// KEYS: waiting, active, completed, failed, jobs
// ARGV: prefix
var clearScript = redis.NewScript(removeJob + `
local n = 0
for _, set in ipairs({KEYS[1], KEYS[3], KEYS[4]}) do
  for _, id in ipairs(redis.call('ZRANGE', set, 0, -1)) do
    remove_job(ARGV[1], id)
    n = n + 1
  end
end
return n
`)
