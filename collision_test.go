package main

import (
	"math"
	"testing"
)

func TestCheckCollision(t *testing.T) {
	// Overlapping circles
	if !CheckCollision(0, 0, 10, 15, 0, 10) {
		t.Error("circles should collide (overlapping)")
	}

	// Touching circles are not a hit
	if CheckCollision(0, 0, 10, 20, 0, 10) {
		t.Error("touching circles should not collide")
	}

	// Non-overlapping circles
	if CheckCollision(0, 0, 10, 25, 0, 10) {
		t.Error("circles should not collide")
	}

	// Same position
	if !CheckCollision(5, 5, 1, 5, 5, 1) {
		t.Error("same position should collide")
	}
}

func TestSegmentProjection(t *testing.T) {
	tests := []struct {
		px, py           float64
		wantAlong, wantD float64
	}{
		{50, 10, 50, 10},  // beside the middle
		{-20, 0, 0, 20},   // behind the start
		{130, 0, 100, 30}, // past the end
		{100, -5, 100, 5}, // beside the end
	}
	for _, tt := range tests {
		along, d := segmentProjection(0, 0, 100, 0, tt.px, tt.py)
		if math.Abs(along-tt.wantAlong) > 1e-9 || math.Abs(d-tt.wantD) > 1e-9 {
			t.Errorf("(%v,%v): expected along %v dist %v, got %v %v", tt.px, tt.py, tt.wantAlong, tt.wantD, along, d)
		}
	}

	// a zero-length segment measures from its start
	if _, d := segmentProjection(3, 4, 3, 4, 0, 0); d != 5 {
		t.Errorf("expected 5, got %v", d)
	}
}
