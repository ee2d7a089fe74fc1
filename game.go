package main

import (
	"encoding/json"
	"math"

	"github.com/charmbracelet/log"
)

// ResultSink receives final standings when a match finishes. Implementations
// must not block the tick.
type ResultSink interface {
	Submit(results []MatchResult)
}

// Engine advances a MatchState. It holds no match state of its own: every
// call gets the stored state and returns events for the action log.
type Engine struct {
	cfg     GameConfig
	rng     Rand
	results ResultSink
}

// NewEngine creates an Engine
func NewEngine(cfg GameConfig, rng Rand, results ResultSink) *Engine {
	if rng == nil {
		rng = NewRand(0)
	}
	return &Engine{cfg: cfg, rng: rng, results: results}
}

// Config returns the engine's tunables
func (e *Engine) Config() GameConfig {
	return e.cfg
}

// Tick advances state by deltaMs at wall time now (unix ms). Only playing
// matches change. The returned actions describe what happened this tick.
func (e *Engine) Tick(state *MatchState, deltaMs, now int64) []GameAction {
	if state == nil || state.Status != StatusPlaying || deltaMs <= 0 {
		return nil
	}
	ev := &events{now: now}

	// 1. timer
	state.TimeRemainingMs -= deltaMs
	if state.TimeRemainingMs <= 0 {
		state.TimeRemainingMs = 0
		e.finish(state, now)
		return ev.list
	}

	// 2. players
	e.updatePlayers(state, deltaMs, now, ev)

	// 3. enemy AI; contact damage below uses where enemies stood before moving
	before := make([]point, len(state.Enemies))
	for i := range state.Enemies {
		before[i] = point{state.Enemies[i].X, state.Enemies[i].Y}
		state.Enemies[i].Update(state.Players)
	}

	// 4. spawning
	e.spawnEnemies(state, deltaMs)

	// 5. drop expiry
	kept := state.PowerUpDrops[:0]
	for _, d := range state.PowerUpDrops {
		if !d.Expired(now, e.cfg.PowerUpLifetimeMs) {
			kept = append(kept, d)
		}
	}
	state.PowerUpDrops = kept

	// 6. collisions
	e.updateTracers(state)
	grid := e.playerGrid(state)
	e.checkEnemyContacts(state, grid, before, now, ev)
	e.checkPickups(state, grid, now, ev)

	return ev.list
}

// finish transitions playing -> finished and reports the standings
func (e *Engine) finish(state *MatchState, now int64) {
	state.Status = StatusFinished
	state.EndedAt = now

	winner := -1
	for i := range state.Players {
		if winner < 0 || state.Players[i].Score > state.Players[winner].Score {
			winner = i
		}
	}
	if winner >= 0 {
		state.WinnerUsername = state.Players[winner].Username
	}
	log.Info("match finished", "arena", state.ArenaID, "match", state.MatchID, "winner", state.WinnerUsername)

	if e.results == nil || len(state.Players) == 0 {
		return
	}
	results := make([]MatchResult, 0, len(state.Players))
	for i, p := range state.Players {
		results = append(results, MatchResult{
			Username:   p.Username,
			ArenaID:    state.ArenaID,
			MatchID:    state.MatchID,
			Score:      p.Score,
			Kills:      p.Kills,
			EnemyKills: p.EnemyKills,
			Won:        i == winner,
			FinishedAt: now,
		})
	}
	e.results.Submit(results)
}

func (e *Engine) updatePlayers(state *MatchState, deltaMs, now int64, ev *events) {
	for i := range state.Players {
		p := &state.Players[i]
		if p.SpawnProtectionMs > 0 {
			p.SpawnProtectionMs -= deltaMs
			if p.SpawnProtectionMs < 0 {
				p.SpawnProtectionMs = 0
			}
		}
		if p.IsDead && p.RespawnAt > 0 && now >= p.RespawnAt {
			x, y := e.cfg.spawnPosition(e.rng)
			p.Respawn(x, y, e.cfg.SpawnProtectionMs)
			ev.add(ActionRespawn, p.ID, MovePayload{X: p.X, Y: p.Y, Angle: p.Angle})
		}
		p.expirePowerUps(now)
	}
}

// spawnInterval returns the current gap between spawns in milliseconds
func (e *Engine) spawnInterval(state *MatchState) float64 {
	elapsed := float64(state.MatchDurationMs - state.TimeRemainingMs)
	divisor := e.cfg.SpawnDivisor
	if divisor <= 0 {
		divisor = 1
	}
	interval := math.Max(e.cfg.SpawnFloorMs, e.cfg.SpawnBaseMs-elapsed/divisor)
	return interval / mult(state.Modifiers.EnemyCount)
}

func (e *Engine) spawnEnemies(state *MatchState, deltaMs int64) {
	state.SpawnTimerMs += float64(deltaMs)
	if state.SpawnTimerMs < e.spawnInterval(state) {
		return
	}
	state.SpawnTimerMs = 0
	enemy := NewEnemy(state.nextID("enemy"), e.cfg, state.Modifiers, e.rng)
	state.Enemies = append(state.Enemies, enemy)
	log.Debug("enemy spawned", "arena", state.ArenaID, "id", enemy.ID, "x", enemy.X, "y", enemy.Y)
}

func (e *Engine) updateTracers(state *MatchState) {
	kept := state.Projectiles[:0]
	for _, b := range state.Projectiles {
		if b.Update(e.cfg.TracerSpeed, e.cfg.CanvasWidth, e.cfg.CanvasHeight) {
			kept = append(kept, b)
		}
	}
	state.Projectiles = kept
}

func (e *Engine) checkEnemyContacts(state *MatchState, grid *SpatialGrid, before []point, now int64, ev *events) {
	reach := e.cfg.EnemyRadius + e.cfg.PlayerRadius
	var near []int
	for n, enemy := range state.Enemies {
		pos := point{enemy.X, enemy.Y}
		if n < len(before) {
			pos = before[n]
		}
		near = grid.QueryBuf(pos.x, pos.y, reach, near[:0])
		for _, i := range near {
			p := &state.Players[i]
			if !p.Vulnerable() {
				continue
			}
			if !CheckCollision(pos.x, pos.y, e.cfg.EnemyRadius, p.X, p.Y, e.cfg.PlayerRadius) {
				continue
			}
			died := p.TakeDamage(e.cfg.EnemyDamage, now, e.cfg.RespawnCooldownMs)
			ev.add(ActionDamage, p.ID, HitPayload{TargetID: p.ID, Damage: float64(e.cfg.EnemyDamage)})
			if died {
				ev.add(ActionKill, enemy.ID, KillPayload{VictimID: p.ID})
			}
		}
	}
}

func (e *Engine) checkPickups(state *MatchState, grid *SpatialGrid, now int64, ev *events) {
	reach := e.cfg.PlayerRadius + e.cfg.PowerUpPickupRadius
	var near []int
	kept := state.PowerUpDrops[:0]
	for _, d := range state.PowerUpDrops {
		collected := false
		near = grid.QueryBuf(d.X, d.Y, reach, near[:0])
		for _, i := range near {
			p := &state.Players[i]
			if p.IsDead {
				continue
			}
			if Distance(d.X, d.Y, p.X, p.Y) < reach {
				p.ApplyPowerUp(d.Type, now, e.cfg, state.Modifiers)
				ev.add(ActionPowerUp, p.ID, PowerUpPayload{DropID: d.ID, Type: d.Type})
				collected = true
				break
			}
		}
		if !collected {
			kept = append(kept, d)
		}
	}
	state.PowerUpDrops = kept
}

// damagePlayer applies a player-inflicted hit and credits the attacker on a kill
func (e *Engine) damagePlayer(state *MatchState, victim *PlayerState, attackerID string, dmg int, now int64, ev *events) bool {
	if !victim.TakeDamage(dmg, now, e.cfg.RespawnCooldownMs) {
		return false
	}
	if attacker := state.Player(attackerID); attacker != nil && attacker.ID != victim.ID {
		attacker.Kills++
		attacker.Score += state.Modifiers.scaleScore(e.cfg.PlayerKillScore)
	}
	ev.add(ActionKill, attackerID, KillPayload{VictimID: victim.ID})
	return true
}

type point struct{ x, y float64 }

// events collects actions emitted during one engine call
type events struct {
	now  int64
	list []GameAction
}

func (ev *events) add(t ActionType, playerID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn("dropping unencodable event", "type", t, "err", err)
		return
	}
	ev.list = append(ev.list, GameAction{Type: t, PlayerID: playerID, Data: data, Timestamp: ev.now})
}
