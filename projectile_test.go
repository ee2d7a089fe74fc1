package main

import (
	"math"
	"testing"
)

func TestTracerUpdate(t *testing.T) {
	b := NewTracer("shot_1", "a", 790, 300, 0, 25, 1, 1000)
	if b.VX != 1 || b.VY != 0 || b.SpawnTime != 1000 {
		t.Fatalf("unexpected tracer %+v", b)
	}

	if !b.Update(10, 800, 600) {
		t.Error("tracer on the canvas edge should stay")
	}
	if b.X != 800 {
		t.Errorf("expected x 800, got %v", b.X)
	}
	if b.Update(10, 800, 600) {
		t.Error("tracer past the edge should be removed")
	}
}

func TestTracerDirection(t *testing.T) {
	b := NewTracer("shot_1", "a", 400, 300, math.Pi/2, 10, 0, 0)
	b.Update(10, 800, 600)
	if math.Abs(b.X-400) > 1e-9 || math.Abs(b.Y-310) > 1e-9 {
		t.Errorf("expected (400, 310), got (%v, %v)", b.X, b.Y)
	}
}

func TestNewPowerUpDrop(t *testing.T) {
	tests := []struct {
		draw float64
		want PowerUpType
	}{
		{0.1, PowerUpSpeed},
		{0.3, PowerUpShield},
		{0.6, PowerUpFireRate},
		{0.9, PowerUpHealth},
	}
	for _, tt := range tests {
		d := NewPowerUpDrop("drop_1", 10, 20, 500, NewSeqRand(tt.draw))
		if d.Type != tt.want {
			t.Errorf("draw %v: expected %s, got %s", tt.draw, tt.want, d.Type)
		}
		if d.X != 10 || d.Y != 20 || d.SpawnTime != 500 {
			t.Errorf("unexpected drop %+v", d)
		}
	}
}

func TestPowerUpDropExpired(t *testing.T) {
	d := PowerUpDrop{SpawnTime: 1000}
	if d.Expired(30999, 30000) {
		t.Error("drop should still be live")
	}
	if !d.Expired(31000, 30000) {
		t.Error("drop should expire at its lifetime")
	}
}
