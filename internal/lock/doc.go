// Package lock provides the mutual-exclusion backends used to serialize
// finalization of a count.
//
// KeyedMutex serializes callers inside one process. RedisLocker extends the
// exclusion across processes sharing a Redis server. Both hand back a release
// function that must be called exactly once.
package lock
