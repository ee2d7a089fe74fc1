package main

import (
	"errors"
	"math"
	"testing"
)

func shotMatch(cfg GameConfig, enemyXs ...float64) *MatchState {
	m := newPlayingMatch(cfg, testPlayer("shooter", 0, 300))
	for i, x := range enemyXs {
		m.Enemies = append(m.Enemies, Enemy{
			ID:        "enemy_" + string(rune('a'+i)),
			X:         x,
			Y:         300,
			Health:    100,
			MaxHealth: 100,
			Speed:     2,
		})
	}
	return m
}

func TestShootPiercesNearestFirst(t *testing.T) {
	cfg := DefaultGameConfig()
	e := NewEngine(cfg, NewSeqRand(0.9), nil)
	// listed out of distance order on purpose
	m := shotMatch(cfg, 300, 100, 200, 400)

	res, ev, err := e.Shoot(m, ShootRequest{PlayerID: "shooter", X: 0, Y: 300, Angle: 0, Damage: 200, Piercing: 1}, 1000)
	if err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if res.Hits != 2 || res.Kills != 2 {
		t.Errorf("expected 2 hits 2 kills, got %+v", res)
	}
	if len(m.Enemies) != 2 {
		t.Fatalf("expected 2 enemies left, got %d", len(m.Enemies))
	}
	if m.Enemies[0].X != 300 || m.Enemies[1].X != 400 {
		t.Errorf("expected the far enemies to survive, got x=%v and x=%v", m.Enemies[0].X, m.Enemies[1].X)
	}
	shooter := m.Player("shooter")
	if shooter.EnemyKills != 2 || shooter.Score != 20 {
		t.Errorf("expected 2 enemy kills and score 20, got %d/%d", shooter.EnemyKills, shooter.Score)
	}
	if len(m.PowerUpDrops) != 0 {
		t.Errorf("expected no drops with a 0.9 roll, got %d", len(m.PowerUpDrops))
	}
	if len(m.Projectiles) != 1 || m.Projectiles[0].PlayerID != "shooter" {
		t.Errorf("expected one tracer, got %+v", m.Projectiles)
	}
	if len(ev) == 0 || ev[0].Type != ActionShoot {
		t.Errorf("expected the shot to be logged first, got %+v", ev)
	}
}

func TestShootHitsEachTargetOnce(t *testing.T) {
	cfg := DefaultGameConfig()
	e := NewEngine(cfg, NewSeqRand(0.9), nil)
	m := shotMatch(cfg, 200)

	res, _, err := e.Shoot(m, ShootRequest{PlayerID: "shooter", Y: 300, Damage: 40, Piercing: 5}, 1000)
	if err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if res.Hits != 1 || res.Kills != 0 {
		t.Errorf("expected 1 hit 0 kills, got %+v", res)
	}
	if m.Enemies[0].Health != 60 {
		t.Errorf("expected health 60, got %v", m.Enemies[0].Health)
	}
}

func TestShootMisses(t *testing.T) {
	cfg := DefaultGameConfig()
	e := NewEngine(cfg, NewSeqRand(0.9), nil)
	m := shotMatch(cfg, 200)

	res, _, err := e.Shoot(m, ShootRequest{PlayerID: "shooter", Y: 300, Angle: math.Pi / 2, Damage: 40}, 1000)
	if err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if res.Hits != 0 {
		t.Errorf("expected a miss, got %+v", res)
	}
}

func TestShootClampsDamageAndPiercing(t *testing.T) {
	cfg := DefaultGameConfig()
	e := NewEngine(cfg, NewSeqRand(0.9), nil)
	m := shotMatch(cfg, 100, 200)
	for i := range m.Enemies {
		m.Enemies[i].Health = 1000
	}

	res, _, err := e.Shoot(m, ShootRequest{PlayerID: "shooter", Y: 300, Damage: 1e9, Piercing: -3}, 1000)
	if err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if res.Hits != 1 {
		t.Errorf("negative piercing should hit one target, got %d", res.Hits)
	}
	if m.Enemies[0].Health != 1000-cfg.MaxShotDamage {
		t.Errorf("expected damage capped at %v, health %v", cfg.MaxShotDamage, m.Enemies[0].Health)
	}
}

func TestShootDropsPowerUp(t *testing.T) {
	cfg := DefaultGameConfig()
	// 0.1 passes the drop roll and selects the first power-up type
	e := NewEngine(cfg, NewSeqRand(0.1), nil)
	m := shotMatch(cfg, 150)

	if _, _, err := e.Shoot(m, ShootRequest{PlayerID: "shooter", Y: 300, Damage: 100}, 1000); err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if len(m.PowerUpDrops) != 1 {
		t.Fatalf("expected one drop, got %d", len(m.PowerUpDrops))
	}
	d := m.PowerUpDrops[0]
	if d.X != 150 || d.Y != 300 || d.SpawnTime != 1000 || d.Type != PowerUpSpeed {
		t.Errorf("unexpected drop %+v", d)
	}
}

func TestShootAppliesDamageModifier(t *testing.T) {
	cfg := DefaultGameConfig()
	e := NewEngine(cfg, NewSeqRand(0.9), nil)
	m := shotMatch(cfg, 200)
	m.Modifiers = Modifiers{PlayerDamage: 2, Score: 1.5}

	res, _, err := e.Shoot(m, ShootRequest{PlayerID: "shooter", Y: 300, Damage: 30}, 1000)
	if err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if m.Enemies[0].Health != 40 {
		t.Errorf("expected health 40, got %v", m.Enemies[0].Health)
	}

	res, _, _ = e.Shoot(m, ShootRequest{PlayerID: "shooter", Y: 300, Damage: 30}, 1100)
	if res.Kills != 1 {
		t.Fatalf("expected a kill, got %+v", res)
	}
	if s := m.Player("shooter").Score; s != 15 {
		t.Errorf("expected scaled score 15, got %d", s)
	}
}

func TestShootKillsPlayer(t *testing.T) {
	cfg := DefaultGameConfig()
	e := NewEngine(cfg, NewSeqRand(0.9), nil)
	m := shotMatch(cfg)
	m.Players = append(m.Players, testPlayer("victim", 100, 300))

	res, _, err := e.Shoot(m, ShootRequest{PlayerID: "shooter", Y: 300, Damage: 150}, 1000)
	if err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if res.Kills != 1 {
		t.Errorf("expected 1 kill, got %+v", res)
	}
	victim := m.Player("victim")
	if !victim.IsDead || victim.RespawnAt != 1000+cfg.RespawnCooldownMs {
		t.Errorf("expected dead victim respawning at %d, got %+v", 1000+cfg.RespawnCooldownMs, victim)
	}
	shooter := m.Player("shooter")
	if shooter.Kills != 1 || shooter.Score != cfg.PlayerKillScore {
		t.Errorf("expected 1 kill and score %d, got %d/%d", cfg.PlayerKillScore, shooter.Kills, shooter.Score)
	}
}

func TestShootSkipsProtectedPlayer(t *testing.T) {
	cfg := DefaultGameConfig()
	e := NewEngine(cfg, NewSeqRand(0.9), nil)
	m := shotMatch(cfg)
	p := testPlayer("victim", 100, 300)
	p.SpawnProtectionMs = 500
	m.Players = append(m.Players, p)

	res, _, err := e.Shoot(m, ShootRequest{PlayerID: "shooter", Y: 300, Damage: 150}, 1000)
	if err != nil {
		t.Fatalf("shoot: %v", err)
	}
	if res.Hits != 0 {
		t.Errorf("protected player should not be hit, got %+v", res)
	}
}

func TestShootRejects(t *testing.T) {
	cfg := DefaultGameConfig()
	e := NewEngine(cfg, NewSeqRand(0.9), nil)

	tests := []struct {
		name  string
		setup func(m *MatchState)
		req   ShootRequest
		want  error
	}{
		{"unknown shooter", nil, ShootRequest{PlayerID: "ghost", Damage: 10}, ErrNotFound},
		{"dead shooter", func(m *MatchState) { m.Players[0].IsDead = true }, ShootRequest{PlayerID: "shooter", Damage: 10}, ErrBadAction},
		{"not playing", func(m *MatchState) { m.Status = StatusCountdown }, ShootRequest{PlayerID: "shooter", Damage: 10}, ErrInvalidTransition},
		{"nan damage", nil, ShootRequest{PlayerID: "shooter", Damage: math.NaN()}, ErrBadAction},
		{"zero damage", nil, ShootRequest{PlayerID: "shooter"}, ErrBadAction},
		{"infinite angle", nil, ShootRequest{PlayerID: "shooter", Damage: 10, Angle: math.Inf(1)}, ErrBadAction},
	}
	for _, tt := range tests {
		m := shotMatch(cfg, 100)
		if tt.setup != nil {
			tt.setup(m)
		}
		_, _, err := e.Shoot(m, tt.req, 1000)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
		if m.Enemies[0].Health != 100 {
			t.Errorf("%s: rejected shot changed state", tt.name)
		}
	}
}
