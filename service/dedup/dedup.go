// Package dedup persists fingerprints of every source item ever admitted so
// that re-ingestion of a known item is dropped silently. Records are
// append-only and survive restarts.
package dedup

import (
	"context"
	"time"
)

// Record is a single (source, fingerprint) sighting.
type Record struct {
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	FirstSeen   time.Time `json:"firstSeen"`
}

// Store answers "have we seen this source item before" and remembers new
// sightings. Seen is lock-free; Record serializes per fingerprint key.
type Store interface {
	// Seen reports whether the fingerprint was recorded before.
	Seen(ctx context.Context, source, fingerprint string) (bool, error)

	// Record remembers the fingerprint. Recording an already-known
	// fingerprint is a no-op and reports alreadySeen=true.
	Record(ctx context.Context, source, fingerprint string) (alreadySeen bool, err error)
}
