package main

import "encoding/json"

// ActionType tags entries of the per-match action log
type ActionType string

const (
	ActionMove    ActionType = "move"
	ActionShoot   ActionType = "shoot"
	ActionDash    ActionType = "dash"
	ActionHit     ActionType = "hit"
	ActionKill    ActionType = "kill"
	ActionDamage  ActionType = "damage"
	ActionRespawn ActionType = "respawn"
	ActionPowerUp ActionType = "powerup"
)

// Valid reports whether t is a known action type
func (t ActionType) Valid() bool {
	switch t {
	case ActionMove, ActionShoot, ActionDash, ActionHit, ActionKill, ActionDamage, ActionRespawn, ActionPowerUp:
		return true
	}
	return false
}

// PowerUpType identifies a pickup effect
type PowerUpType string

const (
	PowerUpSpeed    PowerUpType = "speed"
	PowerUpShield   PowerUpType = "shield"
	PowerUpFireRate PowerUpType = "fireRate"
	PowerUpHealth   PowerUpType = "health"
)

var powerUpTypes = []PowerUpType{PowerUpSpeed, PowerUpShield, PowerUpFireRate, PowerUpHealth}

// ActivePowerUp is a timed effect held by a player
type ActivePowerUp struct {
	Type       PowerUpType `json:"type" msgpack:"type"`
	Value      float64     `json:"value" msgpack:"value"`
	StartTime  int64       `json:"startTime" msgpack:"startTime"`
	DurationMs int64       `json:"durationMs" msgpack:"durationMs"`
}

// PlayerState is the authoritative record of one seated player
type PlayerState struct {
	ID                string          `json:"id" msgpack:"id"`
	Username          string          `json:"username" msgpack:"username"`
	X                 float64         `json:"x" msgpack:"x"`
	Y                 float64         `json:"y" msgpack:"y"`
	Angle             float64         `json:"angle" msgpack:"angle"`
	Health            int             `json:"health" msgpack:"health"`
	MaxHealth         int             `json:"maxHealth" msgpack:"maxHealth"`
	IsDashing         bool            `json:"isDashing" msgpack:"isDashing"`
	IsDead            bool            `json:"isDead" msgpack:"isDead"`
	RespawnAt         int64           `json:"respawnAtMs,omitempty" msgpack:"respawnAt"`
	SpawnProtectionMs int64           `json:"spawnProtectionRemainingMs" msgpack:"spawnProtectionMs"`
	Kills             int             `json:"kills" msgpack:"kills"`
	EnemyKills        int             `json:"enemyKills" msgpack:"enemyKills"`
	Score             int             `json:"score" msgpack:"score"`
	PowerUps          []ActivePowerUp `json:"powerUps" msgpack:"powerUps"`
}

// Enemy is an AI-controlled chaser
type Enemy struct {
	ID             string  `json:"id" msgpack:"id"`
	X              float64 `json:"x" msgpack:"x"`
	Y              float64 `json:"y" msgpack:"y"`
	Health         float64 `json:"health" msgpack:"health"`
	MaxHealth      float64 `json:"maxHealth" msgpack:"maxHealth"`
	Speed          float64 `json:"speed" msgpack:"speed"`
	TargetPlayerID string  `json:"targetPlayerId,omitempty" msgpack:"targetPlayerId"`
}

// Bullet is a tracer for rendering a shot; it never deals damage
type Bullet struct {
	ID        string  `json:"id" msgpack:"id"`
	PlayerID  string  `json:"playerId" msgpack:"playerId"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	VX        float64 `json:"vx" msgpack:"vx"`
	VY        float64 `json:"vy" msgpack:"vy"`
	Damage    float64 `json:"damage" msgpack:"damage"`
	Piercing  int     `json:"piercing" msgpack:"piercing"`
	SpawnTime int64   `json:"spawnTime" msgpack:"spawnTime"`
}

// PowerUpDrop is a world pickup left by a killed enemy
type PowerUpDrop struct {
	ID        string      `json:"id" msgpack:"id"`
	Type      PowerUpType `json:"type" msgpack:"type"`
	X         float64     `json:"x" msgpack:"x"`
	Y         float64     `json:"y" msgpack:"y"`
	SpawnTime int64       `json:"spawnTime" msgpack:"spawnTime"`
}

// MatchState is the single unit of truth for one match
type MatchState struct {
	MatchID         string        `json:"matchId" msgpack:"matchId"`
	ArenaID         string        `json:"arenaId" msgpack:"arenaId"`
	Mode            GameMode      `json:"mode" msgpack:"mode"`
	Players         []PlayerState `json:"players" msgpack:"players"`
	Enemies         []Enemy       `json:"enemies" msgpack:"enemies"`
	Projectiles     []Bullet      `json:"projectiles" msgpack:"projectiles"`
	PowerUpDrops    []PowerUpDrop `json:"powerUpDrops" msgpack:"powerUpDrops"`
	Status          MatchStatus   `json:"status" msgpack:"status"`
	StartTime       int64         `json:"startTime,omitempty" msgpack:"startTime"`
	MatchDurationMs int64         `json:"matchDurationMs" msgpack:"matchDurationMs"`
	TimeRemainingMs int64         `json:"timeRemainingMs" msgpack:"timeRemainingMs"`
	WinnerUsername  string        `json:"winnerUsername,omitempty" msgpack:"winnerUsername"`
	EndedAt         int64         `json:"endedAt,omitempty" msgpack:"endedAt"`
	Modifiers       Modifiers     `json:"modifiers" msgpack:"modifiers"`

	SpawnTimerMs float64 `json:"-" msgpack:"spawnTimerMs"`
	LastTickAt   int64   `json:"lastTickAt,omitempty" msgpack:"lastTickAt"`
	NextEntityID int     `json:"-" msgpack:"nextEntityId"`
}

// Player returns the player with the given id, or nil
func (m *MatchState) Player(id string) *PlayerState {
	for i := range m.Players {
		if m.Players[i].ID == id {
			return &m.Players[i]
		}
	}
	return nil
}

// GameAction is one entry of the reconciliation feed
type GameAction struct {
	ID        string          `json:"id,omitempty" msgpack:"id"`
	Type      ActionType      `json:"type" msgpack:"type"`
	PlayerID  string          `json:"playerId" msgpack:"playerId"`
	Data      json.RawMessage `json:"data,omitempty" msgpack:"data"`
	Timestamp int64           `json:"timestamp" msgpack:"timestamp"`
}

// MovePayload is the data of a move action
type MovePayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Angle     float64 `json:"angle"`
	IsDashing bool    `json:"isDashing"`
}

// HitPayload is the data of a hit action
type HitPayload struct {
	Disconnected bool    `json:"disconnected,omitempty"`
	TargetID     string  `json:"targetId,omitempty"`
	Damage       float64 `json:"damage,omitempty"`
}

// KillPayload is the data of a kill action
type KillPayload struct {
	VictimID string `json:"victimId"`
	Enemy    bool   `json:"enemy,omitempty"`
}

// PowerUpPayload is the data of a powerup action
type PowerUpPayload struct {
	DropID string      `json:"dropId"`
	Type   PowerUpType `json:"type"`
}

// ShootPayload is the data of a shoot action
type ShootPayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// QueueEntry is a player waiting for the next match
type QueueEntry struct {
	PlayerID string   `msgpack:"playerId"`
	Username string   `msgpack:"username"`
	JoinedAt int64    `msgpack:"joinedAt"`
	Mode     GameMode `msgpack:"mode"`
}

// ArenaRecord is what the SessionStore keeps per arena
type ArenaRecord struct {
	Match *MatchState  `msgpack:"match"`
	Queue []QueueEntry `msgpack:"queue"`
}

// --- HTTP payloads ---

// JoinRequest is the body of POST /api/match/join
type JoinRequest struct {
	ArenaID  string   `json:"arenaId"`
	Username string   `json:"username"`
	Mode     GameMode `json:"mode,omitempty"`
}

// JoinResponse is returned by POST /api/match/join
type JoinResponse struct {
	Success       bool   `json:"success"`
	MatchID       string `json:"matchId"`
	PlayerID      string `json:"playerId"`
	Username      string `json:"username"`
	QueuePosition int    `json:"queuePosition"`
	EstimatedWait int    `json:"estimatedWait"`
	Token         string `json:"token,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ArenaRequest carries only the arena id
type ArenaRequest struct {
	ArenaID string `json:"arenaId"`
}

// TickRequest is the body of POST /api/match/tick
type TickRequest struct {
	ArenaID     string `json:"arenaId"`
	DeltaTimeMs int64  `json:"deltaTimeMs"`
}

// TickResponse is returned by POST /api/match/tick
type TickResponse struct {
	Success bool        `json:"success"`
	State   *MatchState `json:"state,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StateResponse is returned by GET /api/match/state
type StateResponse struct {
	Match   *MatchState  `json:"match" msgpack:"match"`
	Actions []GameAction `json:"actions" msgpack:"actions"`
}

// ActionRequest is the body of POST /api/match/action
type ActionRequest struct {
	ArenaID string     `json:"arenaId"`
	Action  GameAction `json:"action"`
}

// ShootRequest is the body of POST /api/match/shoot
type ShootRequest struct {
	ArenaID  string  `json:"arenaId"`
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Angle    float64 `json:"angle"`
	Damage   float64 `json:"damage"`
	Piercing int     `json:"piercing"`
}

// ShootResponse is returned by POST /api/match/shoot
type ShootResponse struct {
	Success bool   `json:"success"`
	Hits    int    `json:"hits"`
	Kills   int    `json:"kills"`
	Error   string `json:"error,omitempty"`
}

// LeaveRequest is the body of POST /api/match/leave
type LeaveRequest struct {
	ArenaID  string `json:"arenaId"`
	PlayerID string `json:"playerId"`
}

// SuccessResponse is the generic {success} reply
type SuccessResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
