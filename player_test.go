package main

import (
	"math"
	"testing"
)

func TestNewPlayerState(t *testing.T) {
	p := NewPlayerState("alice_1", "alice", 150, 250, 100)
	if p.Health != 100 || p.MaxHealth != 100 {
		t.Errorf("expected full health, got %d/%d", p.Health, p.MaxHealth)
	}
	if p.IsDead || p.Score != 0 || p.PowerUps == nil {
		t.Errorf("unexpected fresh player %+v", p)
	}
}

func TestPlayerTakeDamage(t *testing.T) {
	p := testPlayer("a", 0, 0)

	if p.TakeDamage(30, 1000, 3000) {
		t.Error("player should survive 30 damage")
	}
	if p.Health != 70 {
		t.Errorf("expected 70 health, got %d", p.Health)
	}

	p.IsDashing = true
	if !p.TakeDamage(90, 2000, 3000) {
		t.Error("player should die")
	}
	if p.Health != 0 || !p.IsDead || p.IsDashing {
		t.Errorf("unexpected dead player %+v", p)
	}
	if p.RespawnAt != 5000 {
		t.Errorf("expected respawn at 5000, got %d", p.RespawnAt)
	}
	if p.TakeDamage(10, 2500, 3000) {
		t.Error("dead player should not die again")
	}
}

func TestPlayerSpawnProtection(t *testing.T) {
	p := testPlayer("a", 0, 0)
	p.SpawnProtectionMs = 1
	if p.TakeDamage(50, 0, 3000) || p.Health != 100 {
		t.Errorf("protected player should be untouched, got %d", p.Health)
	}
	p.SpawnProtectionMs = 0
	p.TakeDamage(50, 0, 3000)
	if p.Health != 50 {
		t.Errorf("expected 50 health, got %d", p.Health)
	}
}

func TestPlayerShieldAbsorbs(t *testing.T) {
	cfg := DefaultGameConfig()
	p := testPlayer("a", 0, 0)
	p.ApplyPowerUp(PowerUpShield, 0, cfg, Modifiers{})

	p.TakeDamage(30, 10, 3000)
	if p.Health != 100 {
		t.Errorf("shield should absorb the hit, got %d health", p.Health)
	}
	if s := p.PowerUp(PowerUpShield); s == nil || s.Value != 20 {
		t.Fatalf("expected shield at 20, got %+v", s)
	}

	// the breaking hit is absorbed whole
	p.TakeDamage(30, 20, 3000)
	if p.Health != 100 || p.PowerUp(PowerUpShield) != nil {
		t.Errorf("expected the shield gone and health intact, got %d %+v", p.Health, p.PowerUps)
	}
	p.TakeDamage(30, 30, 3000)
	if p.Health != 70 {
		t.Errorf("expected 70 health, got %d", p.Health)
	}
}

func TestPlayerRespawn(t *testing.T) {
	cfg := DefaultGameConfig()
	p := testPlayer("a", 10, 10)
	p.ApplyPowerUp(PowerUpSpeed, 0, cfg, Modifiers{})
	p.TakeDamage(500, 0, 3000)

	p.Respawn(400, 300, 2000)
	if p.IsDead || p.Health != p.MaxHealth || p.RespawnAt != 0 {
		t.Errorf("unexpected respawned player %+v", p)
	}
	if p.X != 400 || p.Y != 300 || p.SpawnProtectionMs != 2000 {
		t.Errorf("expected (400,300) with protection, got (%v,%v) %d", p.X, p.Y, p.SpawnProtectionMs)
	}
	if len(p.PowerUps) != 0 {
		t.Errorf("respawn should clear power-ups, got %+v", p.PowerUps)
	}
}

func TestApplyPowerUp(t *testing.T) {
	cfg := DefaultGameConfig()
	p := testPlayer("a", 0, 0)

	p.ApplyPowerUp(PowerUpSpeed, 100, cfg, Modifiers{})
	p.ApplyPowerUp(PowerUpSpeed, 500, cfg, Modifiers{})
	if len(p.PowerUps) != 1 || p.PowerUps[0].StartTime != 500 || p.PowerUps[0].Value != 1.3 {
		t.Errorf("speed should refresh in place, got %+v", p.PowerUps)
	}

	p.ApplyPowerUp(PowerUpFireRate, 500, cfg, Modifiers{})
	if fr := p.PowerUp(PowerUpFireRate); fr == nil || fr.Value != 0.5 || fr.DurationMs != 10000 {
		t.Errorf("unexpected fire rate %+v", fr)
	}

	p.Health = 80
	p.ApplyPowerUp(PowerUpHealth, 600, cfg, Modifiers{})
	if p.Health != 100 || p.Score != 5 {
		t.Errorf("expected clamped heal and 5 points, got %d health %d score", p.Health, p.Score)
	}
	p.ApplyPowerUp(PowerUpHealth, 700, cfg, Modifiers{Score: 2})
	if p.Score != 15 {
		t.Errorf("challenge multiplier should double the heal score, got %d", p.Score)
	}
	if len(p.PowerUps) != 2 {
		t.Errorf("health is instant and should not be held, got %+v", p.PowerUps)
	}
}

func TestExpirePowerUps(t *testing.T) {
	cfg := DefaultGameConfig()
	p := testPlayer("a", 0, 0)
	p.ApplyPowerUp(PowerUpSpeed, 0, cfg, Modifiers{})
	p.ApplyPowerUp(PowerUpShield, 0, cfg, Modifiers{})

	p.expirePowerUps(9999)
	if len(p.PowerUps) != 2 {
		t.Fatalf("nothing should expire yet, got %+v", p.PowerUps)
	}
	p.expirePowerUps(10000)
	if len(p.PowerUps) != 1 || p.PowerUps[0].Type != PowerUpShield {
		t.Errorf("expected only the shield left, got %+v", p.PowerUps)
	}
}

func TestPlayerPatchApply(t *testing.T) {
	cfg := DefaultGameConfig()
	p := testPlayer("a", 100, 100)

	x, y, angle, dash := 900.0, -5.0, 7.0, true
	PlayerPatch{X: &x, Y: &y, Angle: &angle, IsDashing: &dash}.Apply(&p, cfg)
	if p.X != 800 || p.Y != 0 {
		t.Errorf("expected the position clamped to (800, 0), got (%v, %v)", p.X, p.Y)
	}
	if math.Abs(p.Angle-(7-2*math.Pi)) > 1e-9 {
		t.Errorf("expected a normalized angle, got %v", p.Angle)
	}
	if !p.IsDashing {
		t.Error("expected dashing")
	}

	nan := math.NaN()
	PlayerPatch{X: &nan}.Apply(&p, cfg)
	if p.X != 800 || p.Y != 0 || !p.IsDashing {
		t.Errorf("NaN and absent fields should leave the player alone, got %+v", p)
	}
}

func TestPatchFromMove(t *testing.T) {
	pp := patchFromMove(MovePayload{X: 1, Y: 2, Angle: 0.5, IsDashing: true})
	if *pp.X != 1 || *pp.Y != 2 || *pp.Angle != 0.5 || !*pp.IsDashing {
		t.Errorf("unexpected patch %+v", pp)
	}
}
