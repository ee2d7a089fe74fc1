package main

import (
	"encoding/json"
	"sort"
)

// interpolationFactor is the share of the remaining gap a remote player
// closes per Step
const interpolationFactor = 0.2

// InputState is the input a client samples once per poll
type InputState struct {
	MoveX     float64
	MoveY     float64
	Angle     float64
	Dash      bool
	Shoot     bool
	Timestamp int64
}

// RemotePlayer is a peer as seen by one client: where the server says it is
// and where it is drawn.
type RemotePlayer struct {
	ID        string
	Username  string
	TargetX   float64
	TargetY   float64
	TargetA   float64
	X         float64
	Y         float64
	Angle     float64
	IsDashing bool
	IsDead    bool
	Score     int
	seeded    bool
}

// RemoteView tracks every other player in a match from polled snapshots and
// action deltas. It is not safe for concurrent use.
type RemoteView struct {
	self     string
	players  map[string]*RemotePlayer
	lastSync int64
	match    *MatchState
}

// NewRemoteView creates a view for the client seated as selfID
func NewRemoteView(selfID string) *RemoteView {
	return &RemoteView{self: selfID, players: make(map[string]*RemotePlayer)}
}

// LastSync is the newest action timestamp seen, for the next since= poll
func (v *RemoteView) LastSync() int64 {
	return v.lastSync
}

// Match returns the last applied snapshot
func (v *RemoteView) Match() *MatchState {
	return v.match
}

// ApplySnapshot replaces the set of remote players with the snapshot's.
// Known players keep their drawn position and move toward the new target.
func (v *RemoteView) ApplySnapshot(m *MatchState) {
	if m == nil {
		return
	}
	v.match = m
	seen := make(map[string]bool, len(m.Players))
	for _, p := range m.Players {
		if p.ID == v.self {
			continue
		}
		seen[p.ID] = true
		rp, ok := v.players[p.ID]
		if !ok {
			rp = &RemotePlayer{ID: p.ID}
			v.players[p.ID] = rp
		}
		rp.Username = p.Username
		rp.IsDead = p.IsDead
		rp.Score = p.Score
		rp.setTarget(p.X, p.Y, p.Angle, p.IsDashing)
	}
	for id := range v.players {
		if !seen[id] {
			delete(v.players, id)
		}
	}
}

// ApplyActions folds an action delta into the view. Echoes of the client's
// own actions are skipped; a disconnect drops the player.
func (v *RemoteView) ApplyActions(actions []GameAction) {
	for _, a := range actions {
		if a.Timestamp > v.lastSync {
			v.lastSync = a.Timestamp
		}
		if a.PlayerID == v.self {
			continue
		}
		rp, ok := v.players[a.PlayerID]
		if !ok {
			continue
		}
		switch a.Type {
		case ActionMove, ActionDash, ActionRespawn:
			var mv MovePayload
			if json.Unmarshal(a.Data, &mv) != nil {
				continue
			}
			rp.setTarget(mv.X, mv.Y, mv.Angle, mv.IsDashing || a.Type == ActionDash)
			if a.Type == ActionRespawn {
				rp.IsDead = false
				rp.X, rp.Y, rp.Angle = mv.X, mv.Y, mv.Angle
			}
		case ActionHit:
			var hit HitPayload
			if json.Unmarshal(a.Data, &hit) != nil {
				continue
			}
			if hit.Disconnected {
				delete(v.players, a.PlayerID)
			}
		}
	}
}

// Apply takes one /api/match/state poll result
func (v *RemoteView) Apply(resp StateResponse) {
	v.ApplySnapshot(resp.Match)
	v.ApplyActions(resp.Actions)
}

// Step moves every drawn position a fixed share of the way to its target
func (v *RemoteView) Step() {
	for _, rp := range v.players {
		rp.X += (rp.TargetX - rp.X) * interpolationFactor
		rp.Y += (rp.TargetY - rp.Y) * interpolationFactor
		rp.Angle = NormalizeAngle(LerpAngle(rp.Angle, rp.TargetA, interpolationFactor))
	}
}

// Players returns the remote players ordered by id
func (v *RemoteView) Players() []RemotePlayer {
	out := make([]RemotePlayer, 0, len(v.players))
	for _, rp := range v.players {
		out = append(out, *rp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Player returns the remote player with the given id
func (v *RemoteView) Player(id string) (RemotePlayer, bool) {
	rp, ok := v.players[id]
	if !ok {
		return RemotePlayer{}, false
	}
	return *rp, true
}

func (rp *RemotePlayer) setTarget(x, y, angle float64, dashing bool) {
	rp.TargetX, rp.TargetY, rp.TargetA = x, y, angle
	rp.IsDashing = dashing
	if !rp.seeded {
		rp.X, rp.Y, rp.Angle = x, y, angle
		rp.seeded = true
	}
}
