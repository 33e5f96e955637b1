package mathx

import "testing"

func TestClamp(t *testing.T) {
	cases := []struct {
		v, lo, hi, want float64
	}{
		{-0.5, 0, 1, 0},
		{0.25, 0, 1, 0.25},
		{1.5, 0, 1, 1},
		{1.5, 1, 0, 1},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Fatalf("Clamp(%v,%v,%v) = %v, want %v", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestLerp(t *testing.T) {
	if got := Lerp(0.25, 0, 0.5, 0, 0.3); got != 0.15 {
		t.Fatalf("Lerp = %v, want 0.15", got)
	}
	if got := Lerp(3, 2, 2, 7, 9); got != 7 {
		t.Fatalf("degenerate Lerp = %v, want 7", got)
	}
}

func TestBetween(t *testing.T) {
	if !Between(5, 10, 0) {
		t.Fatal("5 should be between 10 and 0")
	}
	if Between(11, 0, 10) {
		t.Fatal("11 should not be between 0 and 10")
	}
}
