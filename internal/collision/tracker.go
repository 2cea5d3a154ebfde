// Package collision tracks xxHash64 collisions among the distinct string
// values of one attribute. The HASH block packing stores only the u64
// digest: if two distinct strings hashed to the same u64, a hash-equality
// filter would either over-match or under-match depending on which string
// the probe digest was derived from, so the builder refuses to store an
// ambiguous digest.
package collision

import "github.com/colstore/secondary/errs"

// Tracker tracks string values and their xxHash64 digests seen for one
// attribute, and reports whether any two distinct strings produced the
// same digest.
type Tracker struct {
	seen      map[uint64]string
	collision bool
}

// NewTracker creates a new, empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[uint64]string)}
}

// Track records a (value, hash) pair and returns errs.ErrHashCollision
// when a different string was already recorded under the same hash. The
// builder calls it for every string value of an attribute, so a
// collision fails the build.
func (t *Tracker) Track(value string, hash uint64) error {
	if existing, ok := t.seen[hash]; ok && existing != value {
		t.collision = true

		return errs.ErrHashCollision
	}
	t.seen[hash] = value

	return nil
}

// TrackSoft is like Track but never returns an error; it only updates the
// collision flag, which HasCollision reports.
func (t *Tracker) TrackSoft(value string, hash uint64) {
	if existing, ok := t.seen[hash]; ok && existing != value {
		t.collision = true

		return
	}
	t.seen[hash] = value
}

// HasCollision reports whether any collision has been observed so far.
func (t *Tracker) HasCollision() bool {
	return t.collision
}

// Reset clears the tracker for reuse, preserving the underlying map's
// capacity.
func (t *Tracker) Reset() {
	for k := range t.seen {
		delete(t.seen, k)
	}
	t.collision = false
}
