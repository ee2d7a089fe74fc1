package main

import (
	"testing"
	"time"
)

func TestGenerateChallengeDeterministic(t *testing.T) {
	day := time.Date(2026, 5, 17, 8, 0, 0, 0, time.UTC)
	a := GenerateChallenge(day)
	b := GenerateChallenge(day.Add(10 * time.Hour))

	if a.Date != "2026-05-17" || a.Seed != 20260517 {
		t.Errorf("unexpected date/seed %s %d", a.Date, a.Seed)
	}
	if a.Name != b.Name || a.Description != b.Description || a.Combined != b.Combined {
		t.Errorf("same day should give the same challenge: %+v vs %+v", a, b)
	}
	if n := len(a.Modifiers); n < 1 || n > 2 {
		t.Errorf("expected 1 or 2 modifiers, got %d", n)
	}
	if len(a.Modifiers) == 2 && a.Modifiers[0].ID == a.Modifiers[1].ID {
		t.Error("modifiers should not repeat")
	}
}

func TestGenerateChallengeCombinesEffects(t *testing.T) {
	for d := 0; d < 30; d++ {
		c := GenerateChallenge(time.Date(2026, 1, 1+d, 0, 0, 0, 0, time.UTC))
		want := Modifiers{}
		for _, m := range c.Modifiers {
			want = want.Combine(m.Effect)
		}
		if c.Combined != want {
			t.Errorf("%s: combined %+v, want %+v", c.Date, c.Combined, want)
		}
		if c.Combined.Score <= 0 {
			t.Errorf("%s: score multiplier should be set", c.Date)
		}
	}
}

func TestModifiersCombine(t *testing.T) {
	got := Modifiers{EnemySpeed: 1.5, Score: 1.3}.Combine(Modifiers{EnemySpeed: 2, EnemyHealth: 0.5})
	want := Modifiers{EnemySpeed: 3, EnemyHealth: 0.5, EnemyCount: 1, PlayerSpeed: 1, PlayerDamage: 1, Score: 1.3}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if s := (Modifiers{}).scaleScore(10); s != 10 {
		t.Errorf("unset score multiplier should keep 10, got %d", s)
	}
	if s := (Modifiers{Score: 1.5}).scaleScore(5); s != 8 {
		t.Errorf("expected 7.5 rounded to 8, got %d", s)
	}
}

func TestDailyChallengesProvider(t *testing.T) {
	day := time.Date(2026, 5, 17, 0, 0, 0, 0, time.UTC)
	if got := (DailyChallenges{}).DailyModifiers(day); got != GenerateChallenge(day).Combined {
		t.Errorf("provider should return the day's combined modifiers, got %+v", got)
	}
}

func TestScaleMove(t *testing.T) {
	if got := (Modifiers{}).scaleMove(3); got != 3 {
		t.Errorf("expected unscaled 3, got %v", got)
	}
	if got := (Modifiers{PlayerSpeed: 0.5}).scaleMove(3); got != 1.5 {
		t.Errorf("expected 1.5, got %v", got)
	}
}
