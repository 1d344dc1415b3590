package seqnum

import "testing"

func TestNewValidatesBounds(t *testing.T) {
	if _, err := New(0, 1); err != ErrResolutionTooSmall {
		t.Fatalf("expected ErrResolutionTooSmall, got %v", err)
	}
	if _, err := New(5, 5); err != ErrInitialOutOfRange {
		t.Fatalf("expected ErrInitialOutOfRange, got %v", err)
	}
	sn, err := New(3, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sn.Get() != 3 || sn.Resolution() != 8 {
		t.Fatalf("unexpected seqnum %+v", sn)
	}
}

func TestIncrementWraps(t *testing.T) {
	sn, _ := New(6, 8)
	sn.Increment()
	sn.Increment()
	sn.Increment()
	if sn.Get() != 1 {
		t.Fatalf("expected wrap to 1, got %d", sn.Get())
	}
}

func TestSetValidatesBounds(t *testing.T) {
	sn, _ := New(0, 8)
	if err := sn.Set(8); err != ErrInitialOutOfRange {
		t.Fatalf("expected ErrInitialOutOfRange, got %v", err)
	}
	if err := sn.Set(7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sn.Get() != 7 {
		t.Fatalf("expected 7, got %d", sn.Get())
	}
}

func TestPrecedesHalfModulusTieBreak(t *testing.T) {
	const resolution = 16
	cases := []struct {
		a, b    uint64
		precede bool
	}{
		{0, 1, true},
		{1, 0, false},
		{15, 0, true},
		{0, 15, false},
		{0, 7, true},
		{7, 0, false},
	}
	for _, tc := range cases {
		a, _ := New(tc.a, resolution)
		b, _ := New(tc.b, resolution)
		if got := Precedes(a, b); got != tc.precede {
			t.Fatalf("Precedes(%d,%d) = %v, want %v", tc.a, tc.b, got, tc.precede)
		}
	}
}

func TestPrecedesNeverUsesPlainOrdering(t *testing.T) {
	// Shortly before wraparound, a naive "<" comparison would disagree with
	// the half-modulus rule: 15 actually precedes 2 because (2-15) mod 16 = 3.
	const resolution = 16
	a, _ := New(15, resolution)
	b, _ := New(2, resolution)
	if !Precedes(a, b) {
		t.Fatalf("expected 15 to precede 2 under wraparound")
	}
	if Precedes(b, a) {
		t.Fatalf("expected 2 to not precede 15 under wraparound")
	}
}
