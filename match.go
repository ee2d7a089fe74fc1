package main

// MatchStatus represents the lifecycle of a match
type MatchStatus string

const (
	StatusWaiting   MatchStatus = "waiting"
	StatusCountdown MatchStatus = "countdown"
	StatusPlaying   MatchStatus = "playing"
	StatusFinished  MatchStatus = "finished"
)

// rank orders statuses so transitions can be checked as forward-only
func (s MatchStatus) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusCountdown:
		return 1
	case StatusPlaying:
		return 2
	case StatusFinished:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next is a forward transition
func (s MatchStatus) CanAdvanceTo(next MatchStatus) bool {
	return next.rank() > s.rank()
}

// Live reports whether the match still accepts players or simulation
func (s MatchStatus) Live() bool {
	return s != StatusFinished
}

// GameMode defines the type of match
type GameMode string

const (
	ModeClassic   GameMode = "classic"
	ModeChallenge GameMode = "challenge"
)

// GameConfig holds the gameplay tunables for a match. Times are milliseconds,
// distances are canvas units.
type GameConfig struct {
	MinPlayers      int
	MaxPlayers      int
	CountdownMs     int64
	MatchDurationMs int64
	ActionRetention int64
	RecordTTLMs     int64
	MaxTickDeltaMs  int64
	MinTickMs       int64
	ResultsHoldMs   int64

	CanvasWidth  float64
	CanvasHeight float64
	SpawnMargin  float64
	SafeInset    float64

	PlayerRadius    float64
	PlayerMaxHealth int

	EnemyRadius     float64
	EnemyHealth     int
	EnemySpeed      float64
	EnemyDamage     int
	EnemyKillScore  int
	PlayerKillScore int
	SpawnBaseMs     float64
	SpawnFloorMs    float64
	SpawnDivisor    float64

	RespawnCooldownMs   int64
	SpawnProtectionMs   int64
	PowerUpDurationMs   int64
	PowerUpLifetimeMs   int64
	PowerUpDropChance   float64
	PowerUpPickupRadius float64
	ShieldDurationMs    int64
	ShieldValue         float64
	SpeedBoost          float64
	FireRateBoost       float64
	HealAmount          int
	HealScore           int

	HitscanRange   float64
	MaxShotDamage  float64
	MaxPiercing    int
	HitscanPlayers bool
	TracerSpeed    float64
}

// DefaultGameConfig returns the stock survival rules
func DefaultGameConfig() GameConfig {
	return GameConfig{
		MinPlayers:      2,
		MaxPlayers:      12,
		CountdownMs:     15000,
		MatchDurationMs: 5 * 60 * 1000,
		ActionRetention: 60000,
		RecordTTLMs:     3600 * 1000,
		MaxTickDeltaMs:  1000,
		MinTickMs:       50,
		ResultsHoldMs:   10000,

		CanvasWidth:  800,
		CanvasHeight: 600,
		SpawnMargin:  50,
		SafeInset:    100,

		PlayerRadius:    30,
		PlayerMaxHealth: 100,

		EnemyRadius:     25,
		EnemyHealth:     100,
		EnemySpeed:      2,
		EnemyDamage:     25,
		EnemyKillScore:  10,
		PlayerKillScore: 100,
		SpawnBaseMs:     5000,
		SpawnFloorMs:    2000,
		SpawnDivisor:    60,

		RespawnCooldownMs:   3000,
		SpawnProtectionMs:   2000,
		PowerUpDurationMs:   10000,
		PowerUpLifetimeMs:   30000,
		PowerUpDropChance:   0.3,
		PowerUpPickupRadius: 20,
		ShieldDurationMs:    999999,
		ShieldValue:         50,
		SpeedBoost:          1.3,
		FireRateBoost:       0.5,
		HealAmount:          50,
		HealScore:           5,

		HitscanRange:   1000,
		MaxShotDamage:  200,
		MaxPiercing:    10,
		HitscanPlayers: true,
		TracerSpeed:    10,
	}
}

// spawnPosition returns a position inside the safe interior rectangle
func (c GameConfig) spawnPosition(rng Rand) (float64, float64) {
	w := c.CanvasWidth - 2*c.SafeInset
	h := c.CanvasHeight - 2*c.SafeInset
	return c.SafeInset + rng.Float64()*w, c.SafeInset + rng.Float64()*h
}
