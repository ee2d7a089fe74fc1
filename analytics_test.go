package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStatsSink struct {
	mu      sync.Mutex
	results []MatchResult
	fail    bool
	gate    chan struct{}
}

func (f *fakeStatsSink) RecordMatchResult(ctx context.Context, r MatchResult) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("disk full")
	}
	f.results = append(f.results, r)
	return nil
}

func TestAnalyticsRecordsResults(t *testing.T) {
	sink := &fakeStatsSink{}
	a := NewAnalytics(sink)
	a.Submit([]MatchResult{{Username: "alice", Score: 10}, {Username: "bob", Score: 20}})
	a.Stop()

	if len(sink.results) != 2 || sink.results[0].Username != "alice" {
		t.Errorf("expected both results in order, got %+v", sink.results)
	}
	if c := a.Counters(); c.Recorded != 2 || c.Failed != 0 || c.Dropped != 0 {
		t.Errorf("unexpected counters %+v", c)
	}
}

func TestAnalyticsSwallowsSinkErrors(t *testing.T) {
	sink := &fakeStatsSink{fail: true}
	a := NewAnalytics(sink)
	a.Submit([]MatchResult{{Username: "alice"}})
	a.Stop()

	if c := a.Counters(); c.Failed != 1 || c.Recorded != 0 {
		t.Errorf("expected one failure, got %+v", c)
	}
}

func TestAnalyticsDropsWhenFull(t *testing.T) {
	sink := &fakeStatsSink{gate: make(chan struct{})}
	a := NewAnalytics(sink)

	batch := make([]MatchResult, 1100)
	for i := range batch {
		batch[i] = MatchResult{Username: "p"}
	}
	done := make(chan struct{})
	go func() {
		a.Submit(batch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a stalled sink")
	}

	close(sink.gate)
	a.Stop()
	c := a.Counters()
	if c.Dropped < 75 {
		t.Errorf("expected at least 75 dropped, got %d", c.Dropped)
	}
	if c.Recorded+c.Dropped != 1100 {
		t.Errorf("expected every result recorded or dropped, got %+v", c)
	}
}

func TestAnalyticsFeedsDatabase(t *testing.T) {
	db := openTestDB(t)
	a := NewAnalytics(db)
	e := NewEngine(DefaultGameConfig(), NewSeqRand(0.5), a)

	cfg := e.Config()
	m := newPlayingMatch(cfg, testPlayer("alice", 100, 100), testPlayer("bob", 300, 300))
	m.Players[1].Score = 70
	m.TimeRemainingMs = 10
	e.Tick(m, 10, testFinish.UnixMilli())
	a.Stop()

	s, err := db.GetPlayerStats(context.Background(), "bob")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.TotalWins != 1 || s.BestScore != 70 {
		t.Errorf("expected bob's win recorded, got %+v", s)
	}
}
