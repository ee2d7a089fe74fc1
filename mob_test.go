package main

import (
	"math"
	"testing"
)

func TestNewEnemyEdges(t *testing.T) {
	cfg := DefaultGameConfig()
	tests := []struct {
		edge, pos float64
		x, y      float64
	}{
		{0.1, 0.5, 400, -50}, // top
		{0.3, 0.5, 850, 300}, // right
		{0.6, 0.5, 400, 650}, // bottom
		{0.9, 0.5, -50, 300}, // left
	}
	for _, tt := range tests {
		e := NewEnemy("enemy_1", cfg, Modifiers{}, NewSeqRand(tt.edge, tt.pos))
		if e.X != tt.x || e.Y != tt.y {
			t.Errorf("edge draw %v: expected (%v, %v), got (%v, %v)", tt.edge, tt.x, tt.y, e.X, e.Y)
		}
		if e.Health != 100 || e.MaxHealth != 100 || e.Speed != 2 {
			t.Errorf("unexpected stats %+v", e)
		}
	}
}

func TestNewEnemyModifiers(t *testing.T) {
	e := NewEnemy("enemy_1", DefaultGameConfig(), Modifiers{EnemyHealth: 2, EnemySpeed: 1.5}, NewSeqRand(0))
	if e.Health != 200 || e.MaxHealth != 200 {
		t.Errorf("expected 200 health, got %v/%v", e.Health, e.MaxHealth)
	}
	if e.Speed != 3 {
		t.Errorf("expected speed 3, got %v", e.Speed)
	}
}

func TestEnemyTakeDamage(t *testing.T) {
	e := NewEnemy("enemy_1", DefaultGameConfig(), Modifiers{}, NewSeqRand(0))

	if e.TakeDamage(60) {
		t.Error("enemy should survive 60 damage")
	}
	if e.Health != 40 {
		t.Errorf("expected 40 health, got %v", e.Health)
	}
	if !e.TakeDamage(40) {
		t.Error("enemy should die at 0 health")
	}
	if e.TakeDamage(10) {
		t.Error("dead enemy should not report dying again")
	}
}

func TestEnemyUpdateSteps(t *testing.T) {
	e := Enemy{ID: "enemy_1", Speed: 2}
	players := []PlayerState{testPlayer("a", 30, 40)}

	e.Update(players)
	if math.Abs(e.X-1.2) > 1e-9 || math.Abs(e.Y-1.6) > 1e-9 {
		t.Errorf("expected (1.2, 1.6), got (%v, %v)", e.X, e.Y)
	}
	if e.TargetPlayerID != "a" {
		t.Errorf("expected target a, got %q", e.TargetPlayerID)
	}

	// never overshoots the target
	e = Enemy{ID: "enemy_2", Speed: 2, X: 29.5, Y: 40}
	e.Update(players)
	if e.X != 30 || e.Y != 40 {
		t.Errorf("expected to stop on the player, got (%v, %v)", e.X, e.Y)
	}
}

func TestEnemyIgnoresDeadPlayers(t *testing.T) {
	dead := testPlayer("dead", 10, 0)
	dead.IsDead = true
	players := []PlayerState{dead, testPlayer("far", 500, 0)}

	e := Enemy{ID: "enemy_1", Speed: 2, TargetPlayerID: "dead"}
	e.Update(players)
	if e.TargetPlayerID != "far" || e.X != 2 {
		t.Errorf("expected to chase far, got target %q at %v", e.TargetPlayerID, e.X)
	}

	players[1].IsDead = true
	e.Update(players)
	if e.TargetPlayerID != "" || e.X != 2 {
		t.Errorf("expected to hold with no target, got %q at %v", e.TargetPlayerID, e.X)
	}
}

func TestNextEntityID(t *testing.T) {
	m := &MatchState{}
	if id := m.nextID("enemy"); id != "enemy_1" {
		t.Errorf("expected enemy_1, got %s", id)
	}
	if id := m.nextID("drop"); id != "drop_2" {
		t.Errorf("expected drop_2, got %s", id)
	}
}
