package main

import (
	"fmt"
	"strings"
	"time"
)

// Modifiers are multipliers applied to base constants in a challenge match.
// A zero field means "unchanged".
type Modifiers struct {
	EnemySpeed   float64 `json:"enemySpeedMult,omitempty" msgpack:"enemySpeed"`
	EnemyHealth  float64 `json:"enemyHealthMult,omitempty" msgpack:"enemyHealth"`
	EnemyCount   float64 `json:"enemyCountMult,omitempty" msgpack:"enemyCount"`
	PlayerSpeed  float64 `json:"playerSpeedMult,omitempty" msgpack:"playerSpeed"`
	PlayerDamage float64 `json:"playerDamageMult,omitempty" msgpack:"playerDamage"`
	Score        float64 `json:"scoreMult,omitempty" msgpack:"score"`
}

func mult(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

// Combine multiplies two modifier sets field by field
func (m Modifiers) Combine(o Modifiers) Modifiers {
	return Modifiers{
		EnemySpeed:   mult(m.EnemySpeed) * mult(o.EnemySpeed),
		EnemyHealth:  mult(m.EnemyHealth) * mult(o.EnemyHealth),
		EnemyCount:   mult(m.EnemyCount) * mult(o.EnemyCount),
		PlayerSpeed:  mult(m.PlayerSpeed) * mult(o.PlayerSpeed),
		PlayerDamage: mult(m.PlayerDamage) * mult(o.PlayerDamage),
		Score:        mult(m.Score) * mult(o.Score),
	}
}

// scaleScore applies the score multiplier to a base award
func (m Modifiers) scaleScore(base int) int {
	return int(float64(base)*mult(m.Score) + 0.5)
}

// scaleMove applies the player speed multiplier to a client's per-frame
// movement. Player motion is client-owned, so only clients call it.
func (m Modifiers) scaleMove(base float64) float64 {
	return base * mult(m.PlayerSpeed)
}

// ChallengeModifier is one entry in the modifier catalog
type ChallengeModifier struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Effect      Modifiers `json:"effect"`
}

// DailyChallenge is the generated challenge for one day
type DailyChallenge struct {
	Date        string              `json:"date"`
	Seed        int64               `json:"seed"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Modifiers   []ChallengeModifier `json:"modifiers"`
	Combined    Modifiers           `json:"combined"`
}

var challengeCatalog = []ChallengeModifier{
	{ID: "speed_demons", Name: "Speed Demons", Description: "Enemies move 50% faster",
		Effect: Modifiers{EnemySpeed: 1.5, Score: 1.3}},
	{ID: "tank_mode", Name: "Tank Mode", Description: "Enemies have 2x health",
		Effect: Modifiers{EnemyHealth: 2.0, Score: 1.4}},
	{ID: "horde", Name: "The Horde", Description: "50% more enemies per wave",
		Effect: Modifiers{EnemyCount: 1.5, Score: 1.5}},
	{ID: "glass_cannon", Name: "Glass Cannon", Description: "You deal 2x damage but move slower",
		Effect: Modifiers{PlayerDamage: 2.0, PlayerSpeed: 0.7, Score: 1.2}},
	{ID: "bullet_time", Name: "Bullet Time", Description: "Everything moves slower",
		Effect: Modifiers{EnemySpeed: 0.7, PlayerSpeed: 0.7, Score: 0.9}},
	{ID: "nightmare_fuel", Name: "Nightmare Fuel", Description: "Enemies are faster AND tougher",
		Effect: Modifiers{EnemySpeed: 1.3, EnemyHealth: 1.5, Score: 1.8}},
	{ID: "one_shot", Name: "One Shot Wonder", Description: "You deal massive damage but enemies are faster",
		Effect: Modifiers{PlayerDamage: 3.0, EnemySpeed: 1.4, Score: 1.6}},
	{ID: "swarm", Name: "Swarm Mode", Description: "2x enemies, but they have less health",
		Effect: Modifiers{EnemyCount: 2.0, EnemyHealth: 0.6, Score: 1.4}},
}

var (
	challengePrefixes = []string{"Deadly", "Extreme", "Ultimate", "Insane", "Epic", "Brutal", "Chaos"}
	challengeSuffixes = []string{"Trial", "Gauntlet", "Ordeal", "Challenge", "Test", "Nightmare"}
)

// ChallengeProvider supplies the daily modifier set for a date
type ChallengeProvider interface {
	DailyModifiers(date time.Time) Modifiers
}

// DailyChallenges generates challenges from the date alone
type DailyChallenges struct{}

// DailyModifiers returns the combined multipliers for the day containing date
func (DailyChallenges) DailyModifiers(date time.Time) Modifiers {
	return GenerateChallenge(date).Combined
}

// lcg is the linear congruential generator the challenge seeds drive
type lcg struct {
	state uint64
}

func (g *lcg) Float64() float64 {
	g.state = (g.state*1664525 + 1013904223) % 4294967296
	return float64(g.state) / 4294967296
}

// DateKey formats a date as YYYY-MM-DD in UTC
func DateKey(date time.Time) string {
	return date.UTC().Format("2006-01-02")
}

// GenerateChallenge builds the deterministic challenge for a date
func GenerateChallenge(date time.Time) DailyChallenge {
	d := date.UTC()
	seed := int64(d.Year())*10000 + int64(d.Month())*100 + int64(d.Day())
	rng := &lcg{state: uint64(seed)}

	count := pickIndex(rng, 2) + 1
	available := append([]ChallengeModifier(nil), challengeCatalog...)
	selected := make([]ChallengeModifier, 0, count)
	for i := 0; i < count; i++ {
		idx := pickIndex(rng, len(available))
		selected = append(selected, available[idx])
		available = append(available[:idx], available[idx+1:]...)
	}

	name := fmt.Sprintf("%s %s",
		challengePrefixes[pickIndex(rng, len(challengePrefixes))],
		challengeSuffixes[pickIndex(rng, len(challengeSuffixes))])

	descs := make([]string, len(selected))
	combined := Modifiers{}
	for i, m := range selected {
		descs[i] = m.Description
		combined = combined.Combine(m.Effect)
	}

	return DailyChallenge{
		Date:        DateKey(d),
		Seed:        seed,
		Name:        name,
		Description: strings.Join(descs, " + "),
		Modifiers:   selected,
		Combined:    combined,
	}
}
