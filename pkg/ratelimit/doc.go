// Package ratelimit provides the per-category sliding-window admission gate
// used by the public endpoints, client identity derivation, and a per-IP
// token-bucket guard for the admin read endpoints. Both limiters keep their
// state in memory and evict stale entries in the background.
package ratelimit
