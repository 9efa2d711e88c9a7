// Package cache memoizes filesystem stat lookups for the static responder.
// A StatCache is an explicit object handed to the responder: it bounds the
// number of records it keeps, optionally expires them after a TTL, and lets
// callers drop a path with Invalidate. Concurrent misses for the same path
// share one underlying Stat call; once resolved, a record is never mutated.
package cache
