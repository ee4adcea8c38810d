// Package cache implements the disk-backed stale-while-revalidate engine.
// Requests are reduced to a fingerprint digest, the digest is mapped onto a
// sharded directory tree (StoragePath/<ab>/<rest-of-hex>), and each file holds
// one serialized Entry written through temp file + rename so readers never
// observe partial data. The file's modification time doubles as the entry's
// freshness clock: fresh entries are served as-is, stale entries are served
// immediately while a tracked background task refetches them, and misses are
// fetched synchronously before being persisted.
package cache
