package main

import (
	"fmt"
	"math"
	"sort"
)

// ShotResult is what a single hit-scan shot achieved
type ShotResult struct {
	Hits  int
	Kills int
}

type shotTarget struct {
	along  float64
	enemy  int // index into Enemies, or -1
	player *PlayerState
}

// Shoot resolves a hit-scan shot fired by req.PlayerID. The ray runs from
// (req.X, req.Y) along req.Angle for HitscanRange units. Targets are taken in
// order of distance from the shooter, at most req.Piercing+1 of them, each at
// most once.
func (e *Engine) Shoot(state *MatchState, req ShootRequest, now int64) (ShotResult, []GameAction, error) {
	var res ShotResult
	if state.Status != StatusPlaying {
		return res, nil, fmt.Errorf("%w: match is %s", ErrInvalidTransition, state.Status)
	}
	shooter := state.Player(req.PlayerID)
	if shooter == nil {
		return res, nil, fmt.Errorf("%w: player %s", ErrNotFound, req.PlayerID)
	}
	if shooter.IsDead {
		return res, nil, fmt.Errorf("%w: shooter is dead", ErrBadAction)
	}
	if !finite(req.X, req.Y, req.Angle, req.Damage) || req.Damage <= 0 {
		return res, nil, fmt.Errorf("%w: malformed shot", ErrBadAction)
	}

	x := Clamp(req.X, 0, e.cfg.CanvasWidth)
	y := Clamp(req.Y, 0, e.cfg.CanvasHeight)
	damage := math.Min(req.Damage, e.cfg.MaxShotDamage) * mult(state.Modifiers.PlayerDamage)
	piercing := req.Piercing
	if piercing < 0 {
		piercing = 0
	}
	if piercing > e.cfg.MaxPiercing {
		piercing = e.cfg.MaxPiercing
	}
	endX := x + math.Cos(req.Angle)*e.cfg.HitscanRange
	endY := y + math.Sin(req.Angle)*e.cfg.HitscanRange

	var targets []shotTarget
	for i := range state.Enemies {
		en := &state.Enemies[i]
		if en.Health <= 0 {
			continue
		}
		along, dist := segmentProjection(x, y, endX, endY, en.X, en.Y)
		if dist < e.cfg.EnemyRadius {
			targets = append(targets, shotTarget{along: along, enemy: i})
		}
	}
	if e.cfg.HitscanPlayers {
		for i := range state.Players {
			p := &state.Players[i]
			if p.ID == shooter.ID || !p.Vulnerable() {
				continue
			}
			along, dist := segmentProjection(x, y, endX, endY, p.X, p.Y)
			if dist < e.cfg.PlayerRadius {
				targets = append(targets, shotTarget{along: along, enemy: -1, player: p})
			}
		}
	}
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].along < targets[j].along })
	if len(targets) > piercing+1 {
		targets = targets[:piercing+1]
	}

	ev := &events{now: now}
	ev.add(ActionShoot, shooter.ID, ShootPayload{X: x, Y: y, Angle: req.Angle})

	for _, t := range targets {
		if t.player != nil {
			res.Hits++
			ev.add(ActionHit, shooter.ID, HitPayload{TargetID: t.player.ID, Damage: damage})
			if e.damagePlayer(state, t.player, shooter.ID, int(math.Round(damage)), now, ev) {
				res.Kills++
			}
			continue
		}
		en := &state.Enemies[t.enemy]
		res.Hits++
		ev.add(ActionHit, shooter.ID, HitPayload{TargetID: en.ID, Damage: damage})
		if !en.TakeDamage(damage) {
			continue
		}
		res.Kills++
		shooter.EnemyKills++
		shooter.Score += state.Modifiers.scaleScore(e.cfg.EnemyKillScore)
		ev.add(ActionKill, shooter.ID, KillPayload{VictimID: en.ID, Enemy: true})
		if e.rng.Float64() < e.cfg.PowerUpDropChance {
			state.PowerUpDrops = append(state.PowerUpDrops, NewPowerUpDrop(state.nextID("drop"), en.X, en.Y, now, e.rng))
		}
	}

	alive := state.Enemies[:0]
	for _, en := range state.Enemies {
		if en.Health > 0 {
			alive = append(alive, en)
		}
	}
	state.Enemies = alive

	state.Projectiles = append(state.Projectiles,
		NewTracer(state.nextID("tracer"), shooter.ID, x, y, req.Angle, damage, piercing, now))

	return res, ev.list, nil
}
