package series

import (
	"math"
	"testing"
)

func TestRingEvictsOldestFirst(t *testing.T) {
	ring := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		ring.Push(i)
	}
	if ring.Len() != 3 {
		t.Fatalf("expected len 3, got %d", ring.Len())
	}
	vals := ring.Values()
	if vals[0] != 3 || vals[2] != 5 {
		t.Fatalf("expected [3 4 5], got %v", vals)
	}
	latest, ok := ring.Latest()
	if !ok || latest != 5 {
		t.Fatalf("expected latest 5, got %d ok=%v", latest, ok)
	}
}

func TestRingLast(t *testing.T) {
	ring := NewRing[float64](10)
	for i := 0; i < 4; i++ {
		ring.Push(float64(i))
	}
	last := ring.Last(2)
	if len(last) != 2 || last[0] != 2 || last[1] != 3 {
		t.Fatalf("unexpected window %v", last)
	}
	if got := ring.Last(100); len(got) != 4 {
		t.Fatalf("oversized request should clamp, got %d", len(got))
	}
	if got := ring.Last(0); got != nil {
		t.Fatalf("expected nil for n=0, got %v", got)
	}
}

func TestStats(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	if got := Mean(vals); got != 2.5 {
		t.Fatalf("mean: expected 2.5, got %f", got)
	}
	if got := Std(vals); math.Abs(got-math.Sqrt(1.25)) > 1e-12 {
		t.Fatalf("std: expected sqrt(1.25), got %f", got)
	}
	if got := Variance([]float64{5}); got != 0 {
		t.Fatalf("variance of single value should be 0, got %f", got)
	}
}

func TestLogReturnsSkipsNonPositive(t *testing.T) {
	rets := LogReturns([]float64{100, 110, 0, 121})
	if len(rets) != 1 {
		t.Fatalf("expected 1 usable return, got %d", len(rets))
	}
	if math.Abs(rets[0]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("unexpected return %f", rets[0])
	}
}

func TestPercentileRank(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	if got := PercentileRank(vals, 4); got != 1 {
		t.Fatalf("max should rank 1.0, got %f", got)
	}
	if got := PercentileRank(vals, 2); got != 0.5 {
		t.Fatalf("expected 0.5, got %f", got)
	}
	if got := PercentileRank(nil, 2); got != 0 {
		t.Fatalf("empty history should rank 0, got %f", got)
	}
}
