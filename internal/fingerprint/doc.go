// Package fingerprint derives the cache key for an inbound request. Only the
// method, the verbatim URL, an allow-listed subset of request headers and the
// optional body take part; everything is length-prefixed before hashing so
// that adjacent fields can never run into each other. The resulting SHA-256
// digest is the sole input to the on-disk shard layout.
package fingerprint
