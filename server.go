package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/invopop/jsonschema"
	"github.com/skip2/go-qrcode"
	"github.com/vmihailenco/msgpack/v5"
)

const maxBodyBytes = 64 << 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// App bundles what the HTTP handlers need
type App struct {
	Matches       *MatchmakingService
	Stats         *DB
	Auth          *Auth
	Hub           *Hub
	Recorder      *Analytics
	PublicURL     string
	RequireTokens bool
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response failed", "err", err)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrBadAction), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Error("request failed", "status", status, "err", err)
	} else {
		log.Debug("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, SuccessResponse{Success: false, Error: err.Error()})
}

// authorize enforces seat tokens on player-scoped requests when enabled
func (a *App) authorize(r *http.Request, arenaID, playerID string) error {
	if !a.RequireTokens {
		return nil
	}
	return a.Auth.Authorize(r, arenaID, playerID)
}

// SetupRoutes configures HTTP routes
func SetupRoutes(app *App) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/match/join", app.handleJoin)
	mux.HandleFunc("POST /api/match/start", app.handleStart)
	mux.HandleFunc("POST /api/match/tick", app.handleTick)
	mux.HandleFunc("GET /api/match/state", app.handleState)
	mux.HandleFunc("POST /api/match/action", app.handleAction)
	mux.HandleFunc("POST /api/match/shoot", app.handleShoot)
	mux.HandleFunc("POST /api/match/leave", app.handleLeave)

	mux.HandleFunc("GET /api/leaderboard", app.handleLeaderboard)
	mux.HandleFunc("GET /api/stats/player", app.handlePlayerStats)
	mux.HandleFunc("GET /api/stats/arena", app.handleArenaStats)
	mux.HandleFunc("GET /api/challenge/daily", app.handleDailyChallenge)
	mux.HandleFunc("GET /api/arena/qr", app.handleArenaQR)
	mux.HandleFunc("GET /api/schema", handleSchema)
	mux.HandleFunc("GET /api/health", app.handleHealth)

	// WebSocket spectator endpoint
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !app.Hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade error", "err", err)
			return
		}

		app.Hub.TrackConnect(ip)

		client := NewClient(app.Hub, conn, ip)
		arena := r.URL.Query().Get("arena")
		app.Hub.register <- subscription{client: client, arenaID: arena}

		go client.WritePump()
		go client.ReadPump()

		if arena != "" {
			go client.sendSnapshot(arena)
		}
	})

	return mux
}

func (a *App) handleJoin(w http.ResponseWriter, r *http.Request) {
	if !a.Auth.checkRate(extractIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, JoinResponse{Error: "too many join attempts, try again later"})
		return
	}
	var req JoinRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" {
		req.Username = GenerateGuestName()
	}
	res, err := a.Matches.JoinMatch(r.Context(), req.ArenaID, req.Username, req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := a.Auth.IssueSeat(Seat{ArenaID: req.ArenaID, PlayerID: res.PlayerID, Username: res.Username})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JoinResponse{
		Success:       true,
		MatchID:       res.MatchID,
		PlayerID:      res.PlayerID,
		Username:      res.Username,
		QueuePosition: res.QueuePosition,
		EstimatedWait: res.EstimatedWait,
		Token:         token,
	})
}

func (a *App) handleStart(w http.ResponseWriter, r *http.Request) {
	var req ArenaRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.Matches.StartMatch(r.Context(), req.ArenaID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (a *App) handleTick(w http.ResponseWriter, r *http.Request) {
	var req TickRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := a.Matches.Tick(r.Context(), req.ArenaID, req.DeltaTimeMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TickResponse{Success: true, State: state})
}

func (a *App) handleState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since int64
	if s := q.Get("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		since = n
	}
	resp, err := a.Matches.State(r.Context(), q.Get("arena"), since)
	if err != nil {
		writeError(w, err)
		return
	}
	if q.Get("format") == "msgpack" {
		data, err := msgpack.Marshal(resp)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/msgpack")
		w.Write(data)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.authorize(r, req.ArenaID, req.Action.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	if err := a.Matches.ApplyAction(r.Context(), req.ArenaID, req.Action); err != nil {
		if errors.Is(err, ErrBadAction) {
			log.Warn("dropping malformed action", "arena", req.ArenaID, "player", req.Action.PlayerID, "err", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (a *App) handleShoot(w http.ResponseWriter, r *http.Request) {
	var req ShootRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.authorize(r, req.ArenaID, req.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.Matches.Shoot(r.Context(), req.ArenaID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ShootResponse{Success: true, Hits: res.Hits, Kills: res.Kills})
}

func (a *App) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.authorize(r, req.ArenaID, req.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	if _, err := a.Matches.LeaveMatch(r.Context(), req.ArenaID, req.PlayerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (a *App) requireStats(w http.ResponseWriter) bool {
	if a.Stats == nil {
		writeError(w, fmt.Errorf("%w: stats are disabled", ErrStore))
		return false
	}
	return true
}

func (a *App) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !a.requireStats(w) {
		return
	}
	q := r.URL.Query()
	board, err := boardFor(q.Get("scope"), q.Get("arena"), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit > 100 {
		limit = 100
	}
	entries, err := a.Stats.Leaderboard(r.Context(), board, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"board": board, "entries": entries})
}

func (a *App) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	if !a.requireStats(w) {
		return
	}
	stats, err := a.Stats.GetPlayerStats(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *App) handleArenaStats(w http.ResponseWriter, r *http.Request) {
	if !a.requireStats(w) {
		return
	}
	arena := r.URL.Query().Get("arena")
	if err := validArena(arena); err != nil {
		writeError(w, err)
		return
	}
	stats, err := a.Stats.GetCommunityStats(r.Context(), arena, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *App) handleDailyChallenge(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		day = t
	}
	writeJSON(w, http.StatusOK, GenerateChallenge(day))
}

func (a *App) handleArenaQR(w http.ResponseWriter, r *http.Request) {
	arena := r.URL.Query().Get("arena")
	if err := validArena(arena); err != nil {
		writeError(w, err)
		return
	}
	link := a.PublicURL + "/?arena=" + url.QueryEscape(arena)
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "spectators": a.Hub.ClientCount()}
	if a.Recorder != nil {
		resp["results"] = a.Recorder.Counters()
	}
	writeJSON(w, http.StatusOK, resp)
}

// wireSchema reflects the JSON Schema of every request and response body
func wireSchema() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	types := map[string]any{
		"JoinRequest":    new(JoinRequest),
		"JoinResponse":   new(JoinResponse),
		"ArenaRequest":   new(ArenaRequest),
		"TickRequest":    new(TickRequest),
		"TickResponse":   new(TickResponse),
		"StateResponse":  new(StateResponse),
		"ActionRequest":  new(ActionRequest),
		"ShootRequest":   new(ShootRequest),
		"ShootResponse":  new(ShootResponse),
		"LeaveRequest":   new(LeaveRequest),
		"MovePayload":    new(MovePayload),
		"HitPayload":     new(HitPayload),
		"KillPayload":    new(KillPayload),
		"PowerUpPayload": new(PowerUpPayload),
		"ShootPayload":   new(ShootPayload),
		"DailyChallenge": new(DailyChallenge),
	}
	out := make(map[string]*jsonschema.Schema, len(types))
	for name, v := range types {
		out[name] = reflector.Reflect(v)
	}
	return out
}

func handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wireSchema())
}
