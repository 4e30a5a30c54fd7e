package tracker

import (
	"time"

	"github.com/offlinefirst/keytrace/pkg/keymask"
)

// KeyTracker pairs asynchronous press and release events per key identity
// and emits duration-bearing, privacy-masked records.
//
// Pairing state is isolated per identity because presses and releases from
// different keys interleave arbitrarily under chorded input; durations must
// never cross between concurrently held keys.
//
// KeyTracker is not safe for concurrent use. The dispatcher is the single
// consumer of capture events and serializes all calls.
type KeyTracker struct {
	mask      keymask.Policy
	emitPress bool

	// pending maps a held key identity to its first press timestamp.
	// Invariant: at most one entry per identity. Entries orphaned by a
	// release that never arrives die with the tracker.
	pending map[string]time.Time

	dropped int
}

// NewKeyTracker constructs a tracker applying the supplied masking policy.
// When emitPress is true every accepted press also yields an immediate
// duration-less record.
func NewKeyTracker(mask keymask.Policy, emitPress bool) *KeyTracker {
	return &KeyTracker{
		mask:      mask,
		emitPress: emitPress,
		pending:   make(map[string]time.Time),
	}
}

// OnPress registers a key-down sample. An identity that is already pending
// is an auto-repeat: it is ignored so the eventual duration is measured
// from first physical contact. The returned record is valid only when the
// second return value is true.
func (t *KeyTracker) OnPress(key string, at time.Time) (KeyRecord, bool) {
	if _, held := t.pending[key]; held {
		return KeyRecord{}, false
	}
	t.pending[key] = at

	if !t.emitPress {
		return KeyRecord{}, false
	}
	return KeyRecord{
		Action: KeyPress,
		Key:    t.mask.Mask(key),
		Time:   at,
	}, true
}

// OnRelease completes a press/release pair. A release with no pending press
// (the shifted-identity artifact, or a key held across process start) is a
// benign drop: it yields no record and no error, only a counter increment.
func (t *KeyTracker) OnRelease(key string, at time.Time) (KeyRecord, bool) {
	pressedAt, ok := t.pending[key]
	if !ok {
		t.dropped++
		return KeyRecord{}, false
	}
	delete(t.pending, key)

	return KeyRecord{
		Action:   KeyRelease,
		Key:      t.mask.Mask(key),
		Time:     at,
		Duration: at.Sub(pressedAt),
	}, true
}

// Dropped reports how many releases arrived without a matching press.
func (t *KeyTracker) Dropped() int {
	return t.dropped
}

// PendingCount reports how many keys are currently held.
func (t *KeyTracker) PendingCount() int {
	return len(t.pending)
}
