package main

// NewPowerUpDrop creates a drop of a random type at (x, y)
func NewPowerUpDrop(id string, x, y float64, now int64, rng Rand) PowerUpDrop {
	return PowerUpDrop{
		ID:        id,
		Type:      powerUpTypes[pickIndex(rng, len(powerUpTypes))],
		X:         x,
		Y:         y,
		SpawnTime: now,
	}
}

// Expired reports whether the drop has outlived lifetimeMs at now
func (d PowerUpDrop) Expired(now, lifetimeMs int64) bool {
	return now-d.SpawnTime >= lifetimeMs
}
