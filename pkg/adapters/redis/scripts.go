package redis

import backend "github.com/redis/go-redis/v9"

// Script result codes. Positive values are successes.
const (
	codeItemNotFound     = -1
	codeVersionMismatch  = -2
	codeProposalNotFound = -3
	codeStatusMismatch   = -4
	codeItemExists       = -5
)

// setOwnerIf: KEYS[1]=item, ARGV[1]=new owner, ARGV[2]=expected version.
// Returns the new version or a negative code.
var setOwnerIf = backend.NewScript(`
local v = redis.call("HGET", KEYS[1], "version")
if not v then
	return -1
end
if tonumber(v) ~= tonumber(ARGV[2]) then
	return -2
end
local nv = tonumber(v) + 1
redis.call("HSET", KEYS[1], "owner", ARGV[1], "version", nv)
return nv
`)

// setStatusIf: KEYS[1]=proposal, ARGV[1]=next, ARGV[2]=expected, ARGV[3]=updated_at.
var setStatusIf = backend.NewScript(`
local s = redis.call("HGET", KEYS[1], "status")
if not s then
	return -3
end
if s ~= ARGV[2] then
	return -4
end
redis.call("HSET", KEYS[1], "status", ARGV[1], "updated_at", ARGV[3])
return 1
`)

// createItem: KEYS[1]=item, KEYS[2]=index, KEYS[3]=retired version,
// ARGV[1]=id, ARGV[2]=initial version, ARGV[3..]=field/value pairs.
// A retired ID resumes one above its last version. Returns the version.
var createItem = backend.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return -5
end
local v = tonumber(ARGV[2])
local last = redis.call("GET", KEYS[3])
if last then
	v = tonumber(last) + 1
end
for i = 3, #ARGV, 2 do
	redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call("HSET", KEYS[1], "version", v)
redis.call("SADD", KEYS[2], ARGV[1])
return v
`)

// deleteItem: KEYS[1]=item, KEYS[2]=index, KEYS[3]=retired version, ARGV[1]=id.
var deleteItem = backend.NewScript(`
local v = redis.call("HGET", KEYS[1], "version")
if not v then
	return -1
end
redis.call("SET", KEYS[3], v)
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return 1
`)

// patchItem: KEYS[1]=item, ARGV=field/value pairs.
var patchItem = backend.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
for i = 1, #ARGV, 2 do
	redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// commitTransfer checks every precondition before applying any write.
// KEYS[1..n]=items, KEYS[n+1]=proposal.
// ARGV[1]=n, ARGV[2..2n+1]=owner/version pairs, then next, expected, updated_at.
var commitTransfer = backend.NewScript(`
local n = tonumber(ARGV[1])
for i = 1, n do
	local v = redis.call("HGET", KEYS[i], "version")
	if not v then
		return -1
	end
	if tonumber(v) ~= tonumber(ARGV[2 * i + 1]) then
		return -2
	end
end
local p = KEYS[n + 1]
local s = redis.call("HGET", p, "status")
if not s then
	return -3
end
local base = 2 * n + 1
if s ~= ARGV[base + 2] then
	return -4
end
for i = 1, n do
	redis.call("HSET", KEYS[i], "owner", ARGV[2 * i], "version", tonumber(ARGV[2 * i + 1]) + 1)
end
redis.call("HSET", p, "status", ARGV[base + 1], "updated_at", ARGV[base + 3])
return 1
`)
