package main

// NewPlayerState creates a fresh player at the given position
func NewPlayerState(id, username string, x, y float64, maxHealth int) PlayerState {
	return PlayerState{
		ID:        id,
		Username:  username,
		X:         x,
		Y:         y,
		Health:    maxHealth,
		MaxHealth: maxHealth,
		PowerUps:  []ActivePowerUp{},
	}
}

// Vulnerable reports whether incoming damage applies to the player
func (p *PlayerState) Vulnerable() bool {
	return !p.IsDead && p.SpawnProtectionMs <= 0
}

// PowerUp returns the active power-up of the given type, or nil
func (p *PlayerState) PowerUp(t PowerUpType) *ActivePowerUp {
	for i := range p.PowerUps {
		if p.PowerUps[i].Type == t {
			return &p.PowerUps[i]
		}
	}
	return nil
}

func (p *PlayerState) removePowerUp(t PowerUpType) {
	kept := p.PowerUps[:0]
	for _, pu := range p.PowerUps {
		if pu.Type != t {
			kept = append(kept, pu)
		}
	}
	p.PowerUps = kept
}

// TakeDamage applies damage at time now and returns true if the player died.
// A shield absorbs the hit entirely; it is removed once depleted.
func (p *PlayerState) TakeDamage(dmg int, now int64, respawnCooldownMs int64) bool {
	if !p.Vulnerable() || dmg <= 0 {
		return false
	}
	if shield := p.PowerUp(PowerUpShield); shield != nil {
		shield.Value -= float64(dmg)
		if shield.Value <= 0 {
			p.removePowerUp(PowerUpShield)
		}
		return false
	}
	p.Health -= dmg
	if p.Health <= 0 {
		p.Health = 0
		p.IsDead = true
		p.IsDashing = false
		p.RespawnAt = now + respawnCooldownMs
		return true
	}
	return false
}

// Respawn resets the player after death
func (p *PlayerState) Respawn(x, y float64, protectionMs int64) {
	p.X = x
	p.Y = y
	p.Health = p.MaxHealth
	p.IsDead = false
	p.IsDashing = false
	p.RespawnAt = 0
	p.SpawnProtectionMs = protectionMs
	p.PowerUps = []ActivePowerUp{}
}

// expirePowerUps drops effects whose duration has elapsed at now
func (p *PlayerState) expirePowerUps(now int64) {
	kept := p.PowerUps[:0]
	for _, pu := range p.PowerUps {
		if now-pu.StartTime < pu.DurationMs {
			kept = append(kept, pu)
		}
	}
	p.PowerUps = kept
}

// ApplyPowerUp grants the effect of a collected drop
func (p *PlayerState) ApplyPowerUp(t PowerUpType, now int64, cfg GameConfig, mods Modifiers) {
	switch t {
	case PowerUpSpeed:
		p.removePowerUp(PowerUpSpeed)
		p.PowerUps = append(p.PowerUps, ActivePowerUp{Type: PowerUpSpeed, Value: cfg.SpeedBoost, StartTime: now, DurationMs: cfg.PowerUpDurationMs})
	case PowerUpShield:
		p.removePowerUp(PowerUpShield)
		p.PowerUps = append(p.PowerUps, ActivePowerUp{Type: PowerUpShield, Value: cfg.ShieldValue, StartTime: now, DurationMs: cfg.ShieldDurationMs})
	case PowerUpFireRate:
		p.removePowerUp(PowerUpFireRate)
		p.PowerUps = append(p.PowerUps, ActivePowerUp{Type: PowerUpFireRate, Value: cfg.FireRateBoost, StartTime: now, DurationMs: cfg.PowerUpDurationMs})
	case PowerUpHealth:
		p.Health += cfg.HealAmount
		if p.Health > p.MaxHealth {
			p.Health = p.MaxHealth
		}
		p.Score += mods.scaleScore(cfg.HealScore)
	}
}

// PlayerPatch is a merge-patch of a player's client-owned fields
type PlayerPatch struct {
	X         *float64
	Y         *float64
	Angle     *float64
	IsDashing *bool
}

// Apply merges the patch into p, ignoring non-finite numbers
func (pp PlayerPatch) Apply(p *PlayerState, cfg GameConfig) {
	if pp.X != nil && finite(*pp.X) {
		p.X = Clamp(*pp.X, 0, cfg.CanvasWidth)
	}
	if pp.Y != nil && finite(*pp.Y) {
		p.Y = Clamp(*pp.Y, 0, cfg.CanvasHeight)
	}
	if pp.Angle != nil && finite(*pp.Angle) {
		p.Angle = NormalizeAngle(*pp.Angle)
	}
	if pp.IsDashing != nil {
		p.IsDashing = *pp.IsDashing
	}
}

// patchFromMove builds a patch from a move payload
func patchFromMove(m MovePayload) PlayerPatch {
	return PlayerPatch{X: &m.X, Y: &m.Y, Angle: &m.Angle, IsDashing: &m.IsDashing}
}
