package main

import "math"

// NewTracer records a shot for rendering. Tracers carry the shot's damage and
// pierce for display only; combat is resolved by hit-scan.
func NewTracer(id, playerID string, x, y, angle, damage float64, piercing int, now int64) Bullet {
	return Bullet{
		ID:        id,
		PlayerID:  playerID,
		X:         x,
		Y:         y,
		VX:        math.Cos(angle),
		VY:        math.Sin(angle),
		Damage:    damage,
		Piercing:  piercing,
		SpawnTime: now,
	}
}

// Update moves the tracer one tick and returns false once it leaves the canvas
func (b *Bullet) Update(speed, width, height float64) bool {
	b.X += b.VX * speed
	b.Y += b.VY * speed
	return b.X >= 0 && b.X <= width && b.Y >= 0 && b.Y <= height
}
