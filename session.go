package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	maxUsernameLen = 32
	saveAttempts   = 5
)

// errNoChange tells update that the record is unchanged and needs no write
var errNoChange = errors.New("no change")

// JoinResult describes where a joining player ended up
type JoinResult struct {
	MatchID       string
	PlayerID      string
	Username      string
	QueuePosition int
	EstimatedWait int
}

// MatchmakingService owns the lifecycle of each arena's match and queue.
// Every read-modify-write of an arena record runs under the arena lock and
// is saved with a revision check.
type MatchmakingService struct {
	store      SessionStore
	engine     *Engine
	challenges ChallengeProvider
	locks      *keyedMutex
	now        func() time.Time
	onUpdate   func(arenaID string, m *MatchState)
}

// NewMatchmakingService creates a MatchmakingService
func NewMatchmakingService(store SessionStore, engine *Engine, challenges ChallengeProvider) *MatchmakingService {
	if challenges == nil {
		challenges = DailyChallenges{}
	}
	return &MatchmakingService{
		store:      store,
		engine:     engine,
		challenges: challenges,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// SetClock replaces the wall clock
func (s *MatchmakingService) SetClock(now func() time.Time) {
	s.now = now
}

// OnUpdate registers a callback run after every saved match change
func (s *MatchmakingService) OnUpdate(fn func(arenaID string, m *MatchState)) {
	s.onUpdate = fn
}

func (s *MatchmakingService) cfg() GameConfig {
	return s.engine.Config()
}

// update loads the arena record, applies fn and saves the result. fn may
// return errNoChange to skip the write. A record left with neither match
// nor queue is deleted.
func (s *MatchmakingService) update(ctx context.Context, arenaID string, create bool, fn func(rec *ArenaRecord, now int64) error) (*ArenaRecord, error) {
	release := s.locks.Lock(arenaID)
	defer release()

	for attempt := 0; attempt < saveAttempts; attempt++ {
		rec, rev, err := s.store.Load(ctx, arenaID)
		if errors.Is(err, ErrNotFound) && create {
			rec, rev, err = &ArenaRecord{}, 0, nil
		}
		if err != nil {
			return nil, err
		}

		if err := fn(rec, millis(s.now())); err != nil {
			if errors.Is(err, errNoChange) {
				return rec, nil
			}
			return nil, err
		}

		if rec.Match == nil && len(rec.Queue) == 0 {
			if rev != 0 {
				if err := s.store.Delete(ctx, arenaID); err != nil {
					return nil, err
				}
			}
			return rec, nil
		}

		_, err = s.store.Save(ctx, arenaID, rec, rev)
		if errors.Is(err, ErrConflict) {
			log.Debug("arena save conflict, retrying", "arena", arenaID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.Match != nil && s.onUpdate != nil {
			s.onUpdate(arenaID, rec.Match)
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%w: arena %s is busy", ErrConflict, arenaID)
}

// publish appends engine and lifecycle events to the arena action log.
// A failed append loses only the event, never the saved state.
func (s *MatchmakingService) publish(ctx context.Context, arenaID string, actions []GameAction) {
	for _, a := range actions {
		if err := s.store.AppendAction(ctx, arenaID, a); err != nil {
			log.Warn("append action failed", "arena", arenaID, "type", a.Type, "err", err)
		}
	}
}

func validArena(arenaID string) error {
	if strings.TrimSpace(arenaID) == "" {
		return fmt.Errorf("%w: arena id required", ErrBadRequest)
	}
	return nil
}

// JoinMatch seats username into the arena's waiting match or queues them for
// the next one. A playing, counting-down, full or just-finished match is never
// joined directly.
func (s *MatchmakingService) JoinMatch(ctx context.Context, arenaID, username string, mode GameMode) (JoinResult, error) {
	username = strings.TrimSpace(username)
	if err := validArena(arenaID); err != nil {
		return JoinResult{}, err
	}
	if username == "" || len(username) > maxUsernameLen {
		return JoinResult{}, fmt.Errorf("%w: username must be 1-%d characters", ErrBadRequest, maxUsernameLen)
	}
	if mode == "" {
		mode = ModeClassic
	}
	if mode != ModeClassic && mode != ModeChallenge {
		return JoinResult{}, fmt.Errorf("%w: unknown mode %q", ErrBadRequest, mode)
	}

	cfg := s.cfg()
	var res JoinResult
	_, err := s.update(ctx, arenaID, true, func(rec *ArenaRecord, now int64) error {
		res = JoinResult{Username: username, PlayerID: uniquePlayerID(rec, username, now)}
		m := rec.Match

		if m != nil && m.Status == StatusWaiting && len(m.Players) < cfg.MaxPlayers {
			s.seat(m, res.PlayerID, username, now)
			res.MatchID = m.MatchID
			log.Info("player seated", "arena", arenaID, "player", res.PlayerID, "players", len(m.Players), "status", m.Status)
			return nil
		}

		rec.Queue = append(rec.Queue, QueueEntry{PlayerID: res.PlayerID, Username: username, JoinedAt: now, Mode: mode})
		if s.canForm(rec, now) {
			s.formMatch(rec, arenaID, now)
			if rec.Match.Player(res.PlayerID) != nil {
				res.MatchID = rec.Match.MatchID
				return nil
			}
		}
		res.QueuePosition = queuePosition(rec.Queue, res.PlayerID)
		res.EstimatedWait = estimatedWait(rec.Match, cfg, now)
		log.Info("player queued", "arena", arenaID, "player", res.PlayerID, "position", res.QueuePosition)
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}
	return res, nil
}

// seat adds a player to a waiting match and arms the countdown once enough
// players are present. An armed countdown is never re-armed.
func (s *MatchmakingService) seat(m *MatchState, playerID, username string, now int64) {
	cfg := s.cfg()
	x, y := cfg.spawnPosition(s.engine.rng)
	m.Players = append(m.Players, NewPlayerState(playerID, username, x, y, cfg.PlayerMaxHealth))
	if m.Status == StatusWaiting && len(m.Players) >= cfg.MinPlayers {
		m.Status = StatusCountdown
		m.StartTime = now + cfg.CountdownMs
	}
}

// canForm reports whether the queue may be turned into a new match: there is
// no live match, and a finished one has been shown for the results hold.
func (s *MatchmakingService) canForm(rec *ArenaRecord, now int64) bool {
	if len(rec.Queue) == 0 {
		return false
	}
	m := rec.Match
	if m == nil {
		return true
	}
	return m.Status == StatusFinished && now-m.EndedAt >= s.cfg().ResultsHoldMs
}

// formMatch replaces the arena's match with a new one seated from the head
// of the queue. The match mode follows the longest-waiting player.
func (s *MatchmakingService) formMatch(rec *ArenaRecord, arenaID string, now int64) {
	cfg := s.cfg()
	n := len(rec.Queue)
	if n > cfg.MaxPlayers {
		n = cfg.MaxPlayers
	}
	seated := rec.Queue[:n]
	mode := seated[0].Mode

	m := &MatchState{
		MatchID:         fmt.Sprintf("match_%s_%d", arenaID, now),
		ArenaID:         arenaID,
		Mode:            mode,
		Players:         []PlayerState{},
		Enemies:         []Enemy{},
		Projectiles:     []Bullet{},
		PowerUpDrops:    []PowerUpDrop{},
		Status:          StatusWaiting,
		MatchDurationMs: cfg.MatchDurationMs,
		TimeRemainingMs: cfg.MatchDurationMs,
	}
	if mode == ModeChallenge {
		m.Modifiers = s.challenges.DailyModifiers(time.UnixMilli(now))
	}
	for _, q := range seated {
		s.seat(m, q.PlayerID, q.Username, now)
	}
	rec.Queue = append([]QueueEntry(nil), rec.Queue[n:]...)
	rec.Match = m
	log.Info("match created", "arena", arenaID, "match", m.MatchID, "mode", mode, "players", len(m.Players), "status", m.Status)
}

// uniquePlayerID derives username_joinMillis, bumping the suffix on collision
func uniquePlayerID(rec *ArenaRecord, username string, now int64) string {
	for ts := now; ; ts++ {
		id := username + "_" + strconv.FormatInt(ts, 10)
		if !recordHasPlayer(rec, id) {
			return id
		}
	}
}

func recordHasPlayer(rec *ArenaRecord, playerID string) bool {
	if rec.Match != nil && rec.Match.Player(playerID) != nil {
		return true
	}
	return queuePosition(rec.Queue, playerID) > 0
}

// queuePosition returns the 1-based queue position of playerID, or 0
func queuePosition(queue []QueueEntry, playerID string) int {
	for i, q := range queue {
		if q.PlayerID == playerID {
			return i + 1
		}
	}
	return 0
}

// estimatedWait guesses, in seconds, how long until a queued player plays
func estimatedWait(m *MatchState, cfg GameConfig, now int64) int {
	if m == nil {
		return 0
	}
	var ms int64
	switch m.Status {
	case StatusCountdown:
		ms = m.StartTime - now + m.MatchDurationMs + cfg.ResultsHoldMs
	case StatusPlaying:
		ms = m.TimeRemainingMs + cfg.ResultsHoldMs
	case StatusFinished:
		ms = m.EndedAt + cfg.ResultsHoldMs - now
	}
	if ms < 0 {
		ms = 0
	}
	return int((ms + 999) / 1000)
}

// startPlaying moves a waiting or counting-down match into play
func (s *MatchmakingService) startPlaying(m *MatchState, now int64) {
	cfg := s.cfg()
	m.Status = StatusPlaying
	m.StartTime = now
	m.LastTickAt = now
	m.MatchDurationMs = cfg.MatchDurationMs
	m.TimeRemainingMs = cfg.MatchDurationMs
	m.SpawnTimerMs = 0
	m.Enemies = []Enemy{}
	m.Projectiles = []Bullet{}
	m.PowerUpDrops = []PowerUpDrop{}
}

// StartMatch starts the arena's match now. Only waiting and countdown
// matches can start.
func (s *MatchmakingService) StartMatch(ctx context.Context, arenaID string) error {
	if err := validArena(arenaID); err != nil {
		return err
	}
	_, err := s.update(ctx, arenaID, false, func(rec *ArenaRecord, now int64) error {
		m := rec.Match
		if m == nil {
			return fmt.Errorf("%w: no match in arena %s", ErrNotFound, arenaID)
		}
		if !m.Status.CanAdvanceTo(StatusPlaying) {
			return fmt.Errorf("%w: match is %s", ErrInvalidTransition, m.Status)
		}
		if len(m.Players) == 0 {
			return fmt.Errorf("%w: match has no players", ErrInvalidTransition)
		}
		s.startPlaying(m, now)
		log.Info("match started", "arena", arenaID, "match", m.MatchID, "players", len(m.Players))
		return nil
	})
	return err
}

// GetMatch returns the arena's current match
func (s *MatchmakingService) GetMatch(ctx context.Context, arenaID string) (*MatchState, error) {
	rec, _, err := s.store.Load(ctx, arenaID)
	if err != nil {
		return nil, err
	}
	if rec.Match == nil {
		return nil, fmt.Errorf("%w: no match in arena %s", ErrNotFound, arenaID)
	}
	return rec.Match, nil
}

// UpdatePlayerState merges client-owned fields into a seated player.
// It returns false when the match or player does not exist.
func (s *MatchmakingService) UpdatePlayerState(ctx context.Context, arenaID, playerID string, patch PlayerPatch) (bool, error) {
	found := false
	_, err := s.update(ctx, arenaID, false, func(rec *ArenaRecord, now int64) error {
		if rec.Match == nil || !rec.Match.Status.Live() {
			return errNoChange
		}
		p := rec.Match.Player(playerID)
		if p == nil {
			return errNoChange
		}
		found = true
		if p.IsDead {
			return errNoChange
		}
		patch.Apply(p, s.cfg())
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return found, err
}

// BroadcastAction appends an action to the arena's log
func (s *MatchmakingService) BroadcastAction(ctx context.Context, arenaID string, action GameAction) error {
	if !action.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrBadAction, action.Type)
	}
	if action.Timestamp == 0 {
		action.Timestamp = millis(s.now())
	}
	return s.store.AppendAction(ctx, arenaID, action)
}

// GetActions returns logged actions strictly newer than since, oldest first
func (s *MatchmakingService) GetActions(ctx context.Context, arenaID string, since int64) ([]GameAction, error) {
	return s.store.Actions(ctx, arenaID, since)
}

// State returns the snapshot and action delta a polling client needs
func (s *MatchmakingService) State(ctx context.Context, arenaID string, since int64) (StateResponse, error) {
	m, err := s.GetMatch(ctx, arenaID)
	if err != nil {
		return StateResponse{}, err
	}
	actions, err := s.GetActions(ctx, arenaID, since)
	if err != nil {
		return StateResponse{}, err
	}
	return StateResponse{Match: m, Actions: actions}, nil
}

// ApplyAction validates a client action, applies its effect on the
// player and logs it. Only move, dash and shoot come from clients; shoot is
// logged for remote tracers and resolved by Shoot.
func (s *MatchmakingService) ApplyAction(ctx context.Context, arenaID string, action GameAction) error {
	if action.PlayerID == "" {
		return fmt.Errorf("%w: missing player id", ErrBadAction)
	}
	switch action.Type {
	case ActionMove, ActionDash:
		var mv MovePayload
		if err := json.Unmarshal(action.Data, &mv); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrBadAction, action.Type, err)
		}
		if !finite(mv.X, mv.Y, mv.Angle) {
			return fmt.Errorf("%w: non-finite position", ErrBadAction)
		}
		if action.Type == ActionDash {
			mv.IsDashing = true
		}
		ok, err := s.UpdatePlayerState(ctx, arenaID, action.PlayerID, patchFromMove(mv))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: player %s", ErrNotFound, action.PlayerID)
		}
	case ActionShoot:
		var sh ShootPayload
		if err := json.Unmarshal(action.Data, &sh); err != nil {
			return fmt.Errorf("%w: shoot payload: %v", ErrBadAction, err)
		}
		if !finite(sh.X, sh.Y, sh.Angle) {
			return fmt.Errorf("%w: non-finite shot", ErrBadAction)
		}
	default:
		return fmt.Errorf("%w: %q cannot be sent by clients", ErrBadAction, action.Type)
	}
	action.ID = ""
	action.Timestamp = millis(s.now())
	return s.BroadcastAction(ctx, arenaID, action)
}

// Tick advances the arena's match by deltaMs. Ticks arriving less than
// MinTickMs after the last applied one are ignored, so any number of polling
// clients moves enemies and deals contact damage at most once per window.
// The applied step is capped at the time elapsed since the previous tick.
// A countdown whose start time has passed begins playing; a finished match
// past its results hold, or an arena left with only a queue, is replaced
// from the queue.
func (s *MatchmakingService) Tick(ctx context.Context, arenaID string, deltaMs int64) (*MatchState, error) {
	if err := validArena(arenaID); err != nil {
		return nil, err
	}
	if deltaMs <= 0 {
		return nil, fmt.Errorf("%w: deltaTimeMs must be positive", ErrBadRequest)
	}
	cfg := s.cfg()
	if deltaMs > cfg.MaxTickDeltaMs {
		deltaMs = cfg.MaxTickDeltaMs
	}

	var events []GameAction
	rec, err := s.update(ctx, arenaID, false, func(rec *ArenaRecord, now int64) error {
		events = nil
		m := rec.Match
		if m == nil {
			if !s.canForm(rec, now) {
				return fmt.Errorf("%w: no match in arena %s", ErrNotFound, arenaID)
			}
			s.formMatch(rec, arenaID, now)
			return nil
		}
		switch m.Status {
		case StatusCountdown:
			if now < m.StartTime {
				return errNoChange
			}
			s.startPlaying(m, now)
			log.Info("match started", "arena", arenaID, "match", m.MatchID, "players", len(m.Players))
			return nil
		case StatusPlaying:
			step := now - m.LastTickAt
			if step <= 0 || step < cfg.MinTickMs {
				return errNoChange
			}
			if step > deltaMs {
				step = deltaMs
			}
			m.LastTickAt = now
			events = s.engine.Tick(m, step, now)
			return nil
		case StatusFinished:
			if !s.canForm(rec, now) {
				return errNoChange
			}
			s.formMatch(rec, arenaID, now)
			return nil
		}
		return errNoChange
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, arenaID, events)
	if rec.Match == nil {
		return nil, fmt.Errorf("%w: no match in arena %s", ErrNotFound, arenaID)
	}
	return rec.Match, nil
}

// Shoot resolves a hit-scan shot against the arena's match
func (s *MatchmakingService) Shoot(ctx context.Context, arenaID string, req ShootRequest) (ShotResult, error) {
	if err := validArena(arenaID); err != nil {
		return ShotResult{}, err
	}
	var (
		res    ShotResult
		events []GameAction
	)
	_, err := s.update(ctx, arenaID, false, func(rec *ArenaRecord, now int64) error {
		if rec.Match == nil {
			return fmt.Errorf("%w: no match in arena %s", ErrNotFound, arenaID)
		}
		var err error
		res, events, err = s.engine.Shoot(rec.Match, req, now)
		return err
	})
	if err != nil {
		return ShotResult{}, err
	}
	s.publish(ctx, arenaID, events)
	return res, nil
}

// LeaveMatch removes a player from the queue and the match. An emptied match
// is destroyed and the queue, if any, forms the next one; otherwise the
// others are told the player disconnected.
// Leaving an arena the player never joined is a no-op.
func (s *MatchmakingService) LeaveMatch(ctx context.Context, arenaID, playerID string) (bool, error) {
	found, notify := false, false
	_, err := s.update(ctx, arenaID, false, func(rec *ArenaRecord, now int64) error {
		found, notify = false, false
		if pos := queuePosition(rec.Queue, playerID); pos > 0 {
			rec.Queue = append(rec.Queue[:pos-1], rec.Queue[pos:]...)
			found = true
		}
		if m := rec.Match; m != nil && m.Player(playerID) != nil {
			kept := m.Players[:0]
			for _, p := range m.Players {
				if p.ID != playerID {
					kept = append(kept, p)
				}
			}
			m.Players = kept
			found = true
			if len(m.Players) == 0 {
				log.Info("match destroyed", "arena", arenaID, "match", m.MatchID)
				rec.Match = nil
			} else {
				notify = true
			}
		}
		if !found {
			return errNoChange
		}
		if rec.Match == nil && s.canForm(rec, now) {
			s.formMatch(rec, arenaID, now)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if notify {
		data, _ := json.Marshal(HitPayload{Disconnected: true})
		if err := s.BroadcastAction(ctx, arenaID, GameAction{Type: ActionHit, PlayerID: playerID, Data: data}); err != nil {
			log.Warn("disconnect broadcast failed", "arena", arenaID, "player", playerID, "err", err)
		}
	}
	return found, nil
}
