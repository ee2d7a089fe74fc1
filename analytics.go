package main

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// boardPruner is implemented by sinks that keep expiring leaderboards
type boardPruner interface {
	PruneBoards(ctx context.Context, now time.Time) (int64, error)
}

// RecorderCounters are live totals of the result writer
type RecorderCounters struct {
	Recorded int64 `json:"recorded"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
}

// Analytics queues match results and writes them to a StatsSink in the
// background. Sink failures are logged and never reach the engine.
type Analytics struct {
	sink     StatsSink
	results  chan MatchResult
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	timeout  time.Duration

	mu       sync.Mutex
	counters RecorderCounters
}

// NewAnalytics creates and starts the result writer
func NewAnalytics(sink StatsSink) *Analytics {
	a := &Analytics{
		sink:    sink,
		results: make(chan MatchResult, 1024),
		stop:    make(chan struct{}),
		timeout: 5 * time.Second,
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Submit enqueues results for async persistence (non-blocking)
func (a *Analytics) Submit(results []MatchResult) {
	for _, r := range results {
		select {
		case a.results <- r:
		default:
			// queue full: drop rather than stall the tick
			a.count(func(c *RecorderCounters) { c.Dropped++ })
			log.Warn("result queue full, dropping result", "user", r.Username, "match", r.MatchID)
		}
	}
}

// Counters returns a snapshot of the writer totals
func (a *Analytics) Counters() RecorderCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters
}

func (a *Analytics) count(f func(*RecorderCounters)) {
	a.mu.Lock()
	f(&a.counters)
	a.mu.Unlock()
}

// Stop drains queued results and shuts the writer down
func (a *Analytics) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
}

// writer is the background goroutine that persists results
func (a *Analytics) writer() {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case r := <-a.results:
			a.write(r)
		case now := <-ticker.C:
			a.prune(now)
		case <-a.stop:
			for {
				select {
				case r := <-a.results:
					a.write(r)
				default:
					return
				}
			}
		}
	}
}

func (a *Analytics) write(r MatchResult) {
	if a.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.sink.RecordMatchResult(ctx, r); err != nil {
		a.count(func(c *RecorderCounters) { c.Failed++ })
		log.Error("record match result failed", "user", r.Username, "arena", r.ArenaID, "err", err)
		return
	}
	a.count(func(c *RecorderCounters) { c.Recorded++ })
}

func (a *Analytics) prune(now time.Time) {
	p, ok := a.sink.(boardPruner)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	n, err := p.PruneBoards(ctx, now)
	if err != nil {
		log.Warn("leaderboard prune failed", "err", err)
		return
	}
	if n > 0 {
		log.Info("pruned leaderboard entries", "count", n)
	}
}
