// Package seqnum implements the modular sequence-number counter used by the
// link-level defragmentation layer. Values wrap modulo a configurable
// resolution; ordering under wrap uses the half-modulus tie-break described
// in the reliability core design rather than a plain comparison operator.
package seqnum

import "errors"

// ErrResolutionTooSmall is returned when a resolution below 2 is requested;
// a resolution of 2 is the smallest modulus that still admits a non-trivial
// wraparound ordering.
var ErrResolutionTooSmall = errors.New("seqnum: resolution must be at least 2")

// ErrInitialOutOfRange is returned when an initial or assigned value falls
// outside [0, resolution).
var ErrInitialOutOfRange = errors.New("seqnum: value out of range for resolution")

// SeqNum is a counter in [0, Resolution) that wraps on Increment.
type SeqNum struct {
	value      uint64
	resolution uint64
}

// New constructs a SeqNum with the given initial value and resolution.
func New(initial, resolution uint64) (SeqNum, error) {
	if resolution < 2 {
		return SeqNum{}, ErrResolutionTooSmall
	}
	if initial >= resolution {
		return SeqNum{}, ErrInitialOutOfRange
	}
	return SeqNum{value: initial, resolution: resolution}, nil
}

// Get returns the current value.
func (s SeqNum) Get() uint64 { return s.value }

// Resolution returns the configured modulus.
func (s SeqNum) Resolution() uint64 { return s.resolution }

// Set assigns a new value, validated against the same bounds as New.
func (s *SeqNum) Set(value uint64) error {
	if value >= s.resolution {
		return ErrInitialOutOfRange
	}
	s.value = value
	return nil
}

// Increment advances the counter by one, wrapping modulo Resolution.
func (s *SeqNum) Increment() {
	s.value = (s.value + 1) % s.resolution
}

// Precedes reports whether a logically comes before b under the resolution's
// half-modulus wraparound ordering: (b-a) mod R is in the open-closed
// interval (0, R/2]. Implementations must never substitute a plain "<"
// comparison here; doing so breaks shortly before the counter wraps.
func Precedes(a, b SeqNum) bool {
	r := a.resolution
	if r == 0 {
		r = b.resolution
	}
	if r == 0 {
		return false
	}
	diff := (b.value + r - a.value) % r
	return diff > 0 && diff <= r/2
}

// Equal reports whether a and b carry the same value (resolution ignored).
func Equal(a, b SeqNum) bool { return a.value == b.value }
