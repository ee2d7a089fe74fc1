package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	botPollInterval = 100 * time.Millisecond
	botShotEvery    = 5
	botShotDamage   = 25
	botStartAfter   = 20 * time.Second
	botMoveSpeed    = 3
)

// errSeatLost means the bot has nothing left to play in the match it polls
var errSeatLost = errors.New("bot no longer seated")

// Bot is a headless player that drives a match over the polling API the
// same way a browser client does: post input, tick, fetch the delta.
type Bot struct {
	baseURL  string
	arenaID  string
	name     string
	http     *http.Client
	rng      Rand
	playerID string
	token    string
	view     *RemoteView
	x, y     float64
	polls    int
	joinedAt time.Time
	queued   bool

	resultsHoldMs int64
}

// NewBot creates a bot that will join arenaID on the server at baseURL
func NewBot(baseURL, arenaID, name string, rng Rand) *Bot {
	if rng == nil {
		rng = NewRand(0)
	}
	return &Bot{
		baseURL: strings.TrimRight(baseURL, "/"),
		arenaID: arenaID,
		name:    name,
		http:    &http.Client{Timeout: 5 * time.Second},
		rng:     rng,

		resultsHoldMs: DefaultGameConfig().ResultsHoldMs,
	}
}

// localURL turns a listen address like ":8080" into a loopback base URL
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Run joins and plays until ctx is cancelled, then leaves
func (b *Bot) Run(ctx context.Context) error {
	if err := b.join(ctx); err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.post(leaveCtx, "/api/match/leave", LeaveRequest{ArenaID: b.arenaID, PlayerID: b.playerID}, nil); err != nil {
			log.Debug("bot leave failed", "bot", b.name, "err", err)
		}
	}()

	ticker := time.NewTicker(botPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := b.poll(ctx)
			if errors.Is(err, ErrNotFound) || errors.Is(err, errSeatLost) {
				log.Info("bot lost its match, rejoining", "bot", b.name, "reason", err)
				if err := b.rejoin(ctx); err != nil {
					log.Warn("bot rejoin failed", "bot", b.name, "err", err)
				}
				continue
			}
			if err != nil && ctx.Err() == nil {
				log.Debug("bot poll failed", "bot", b.name, "err", err)
			}
		}
	}
}

func (b *Bot) join(ctx context.Context) error {
	var resp JoinResponse
	if err := b.post(ctx, "/api/match/join", JoinRequest{ArenaID: b.arenaID, Username: b.name}, &resp); err != nil {
		return fmt.Errorf("bot %s join: %w", b.name, err)
	}
	b.playerID = resp.PlayerID
	b.token = resp.Token
	b.view = NewRemoteView(resp.PlayerID)
	b.joinedAt = time.Now()
	b.queued = resp.QueuePosition > 0
	log.Info("bot joined", "bot", b.name, "arena", b.arenaID, "player", b.playerID, "queue", resp.QueuePosition)
	return nil
}

// rejoin gives up the current seat, if any, and joins again
func (b *Bot) rejoin(ctx context.Context) error {
	if err := b.post(ctx, "/api/match/leave", LeaveRequest{ArenaID: b.arenaID, PlayerID: b.playerID}, nil); err != nil {
		log.Debug("bot leave before rejoin failed", "bot", b.name, "err", err)
	}
	return b.join(ctx)
}

// seatLost reports whether the polled match no longer has a future for the
// bot: its finished match has shown results for the hold, or the arena's
// match does not include it and it is not waiting in the queue.
func (b *Bot) seatLost(m *MatchState, now time.Time) bool {
	if m == nil {
		return false
	}
	if m.Player(b.playerID) == nil {
		return !b.queued
	}
	b.queued = false
	return m.Status == StatusFinished && now.UnixMilli()-m.EndedAt >= b.resultsHoldMs
}

// poll runs one client frame
func (b *Bot) poll(ctx context.Context) error {
	b.polls++
	m := b.view.Match()
	if m != nil && m.Player(b.playerID) != nil && m.Status == StatusPlaying {
		in := b.sample(m)
		if err := b.sendInput(ctx, in, m.Modifiers.scaleMove(botMoveSpeed)); err != nil {
			return err
		}
	}
	if m != nil && m.Status == StatusWaiting && time.Since(b.joinedAt) > botStartAfter {
		if err := b.post(ctx, "/api/match/start", ArenaRequest{ArenaID: b.arenaID}, nil); err != nil {
			log.Debug("bot start failed", "bot", b.name, "err", err)
		}
	}

	if err := b.post(ctx, "/api/match/tick", TickRequest{ArenaID: b.arenaID, DeltaTimeMs: botPollInterval.Milliseconds()}, nil); err != nil {
		return err
	}
	resp, err := b.fetchState(ctx)
	if err != nil {
		return err
	}
	b.view.Apply(resp)
	b.view.Step()
	if self := resp.Match.Player(b.playerID); self != nil && self.IsDead {
		b.x, b.y = self.X, self.Y
	}
	if b.seatLost(resp.Match, time.Now()) {
		return errSeatLost
	}
	return nil
}

// sample decides this frame's input: drift around, aim at the nearest enemy
func (b *Bot) sample(m *MatchState) InputState {
	self := m.Player(b.playerID)
	if b.polls == 1 || (b.x == 0 && b.y == 0) {
		b.x, b.y = self.X, self.Y
	}
	in := InputState{Timestamp: time.Now().UnixMilli()}
	in.MoveX = b.rng.Float64()*2 - 1
	in.MoveY = b.rng.Float64()*2 - 1
	in.Angle = math.Atan2(in.MoveY, in.MoveX)

	best := math.Inf(1)
	for _, e := range m.Enemies {
		if d := Distance(b.x, b.y, e.X, e.Y); d < best {
			best = d
			in.Angle = math.Atan2(e.Y-b.y, e.X-b.x)
			in.Shoot = b.polls%botShotEvery == 0
		}
	}
	return in
}

func (b *Bot) sendInput(ctx context.Context, in InputState, speed float64) error {
	cfg := DefaultGameConfig()
	b.x = Clamp(b.x+in.MoveX*speed, 0, cfg.CanvasWidth)
	b.y = Clamp(b.y+in.MoveY*speed, 0, cfg.CanvasHeight)

	data, _ := json.Marshal(MovePayload{X: b.x, Y: b.y, Angle: in.Angle, IsDashing: in.Dash})
	action := GameAction{Type: ActionMove, PlayerID: b.playerID, Data: data, Timestamp: in.Timestamp}
	if err := b.post(ctx, "/api/match/action", ActionRequest{ArenaID: b.arenaID, Action: action}, nil); err != nil {
		return err
	}
	if !in.Shoot {
		return nil
	}
	var shot ShootResponse
	err := b.post(ctx, "/api/match/shoot", ShootRequest{
		ArenaID:  b.arenaID,
		PlayerID: b.playerID,
		X:        b.x,
		Y:        b.y,
		Angle:    in.Angle,
		Damage:   botShotDamage,
	}, &shot)
	if err != nil && !errors.Is(err, ErrBadAction) {
		return err
	}
	if shot.Kills > 0 {
		log.Debug("bot scored", "bot", b.name, "kills", shot.Kills)
	}
	return nil
}

func (b *Bot) fetchState(ctx context.Context) (StateResponse, error) {
	q := url.Values{}
	q.Set("arena", b.arenaID)
	q.Set("since", fmt.Sprint(b.view.LastSync()))
	q.Set("format", "msgpack")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/match/state?"+q.Encode(), nil)
	if err != nil {
		return StateResponse{}, err
	}
	res, err := b.http.Do(req)
	if err != nil {
		return StateResponse{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return StateResponse{}, decodeAPIError(res)
	}
	var out StateResponse
	if err := msgpack.NewDecoder(res.Body).Decode(&out); err != nil {
		return StateResponse{}, err
	}
	return out, nil
}

func (b *Bot) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	res, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return decodeAPIError(res)
	}
	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// decodeAPIError maps an error response back onto the service sentinels
func decodeAPIError(res *http.Response) error {
	var body SuccessResponse
	json.NewDecoder(io.LimitReader(res.Body, maxBodyBytes)).Decode(&body)
	var base error
	switch res.StatusCode {
	case http.StatusNotFound:
		base = ErrNotFound
	case http.StatusConflict:
		base = ErrInvalidTransition
	case http.StatusBadRequest:
		base = ErrBadAction
	case http.StatusUnauthorized:
		base = ErrUnauthorized
	case http.StatusServiceUnavailable:
		base = ErrStore
	default:
		return fmt.Errorf("%s: %s", res.Status, body.Error)
	}
	return fmt.Errorf("%w: %s", base, body.Error)
}
