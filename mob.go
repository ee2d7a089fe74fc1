package main

import (
	"math"
	"strconv"
)

// Spawn edges, in the order a uniform draw selects them
const (
	edgeTop = iota
	edgeRight
	edgeBottom
	edgeLeft
)

// NewEnemy spawns an enemy just outside a random canvas edge
func NewEnemy(id string, cfg GameConfig, mods Modifiers, rng Rand) Enemy {
	e := Enemy{
		ID:        id,
		Health:    float64(cfg.EnemyHealth) * mult(mods.EnemyHealth),
		MaxHealth: float64(cfg.EnemyHealth) * mult(mods.EnemyHealth),
		Speed:     cfg.EnemySpeed * mult(mods.EnemySpeed),
	}
	switch pickIndex(rng, 4) {
	case edgeTop:
		e.X = rng.Float64() * cfg.CanvasWidth
		e.Y = -cfg.SpawnMargin
	case edgeRight:
		e.X = cfg.CanvasWidth + cfg.SpawnMargin
		e.Y = rng.Float64() * cfg.CanvasHeight
	case edgeBottom:
		e.X = rng.Float64() * cfg.CanvasWidth
		e.Y = cfg.CanvasHeight + cfg.SpawnMargin
	default:
		e.X = -cfg.SpawnMargin
		e.Y = rng.Float64() * cfg.CanvasHeight
	}
	return e
}

// nearestAlivePlayer returns the index of the closest living player, or -1
func nearestAlivePlayer(x, y float64, players []PlayerState) int {
	best := -1
	bestDist := math.Inf(1)
	for i := range players {
		if players[i].IsDead {
			continue
		}
		d := Distance(x, y, players[i].X, players[i].Y)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Update steers the enemy straight at the nearest living player.
// With nobody alive it holds position and clears its target.
func (e *Enemy) Update(players []PlayerState) {
	idx := nearestAlivePlayer(e.X, e.Y, players)
	if idx < 0 {
		e.TargetPlayerID = ""
		return
	}
	target := &players[idx]
	e.TargetPlayerID = target.ID
	dist := Distance(e.X, e.Y, target.X, target.Y)
	if dist == 0 {
		return
	}
	step := math.Min(e.Speed, dist)
	e.X += (target.X - e.X) / dist * step
	e.Y += (target.Y - e.Y) / dist * step
}

// TakeDamage reduces health and returns true if the enemy died
func (e *Enemy) TakeDamage(dmg float64) bool {
	if e.Health <= 0 {
		return false
	}
	e.Health -= dmg
	return e.Health <= 0
}

// nextID returns a match-unique entity id with the given prefix
func (m *MatchState) nextID(prefix string) string {
	m.NextEntityID++
	return prefix + "_" + strconv.Itoa(m.NextEntityID)
}
