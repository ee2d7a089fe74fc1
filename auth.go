package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
)

const (
	seatTokenExpiry = 2 * time.Hour
	joinRateWindow  = 60 * time.Second
	maxJoinAttempts = 20
)

// settingsStore persists small server settings such as the signing secret
type settingsStore interface {
	GetSetting(key string) string
	SetSetting(key, value string) error
}

// Seat identifies the player a token was issued to
type Seat struct {
	ArenaID  string
	PlayerID string
	Username string
}

// Auth issues and checks seat tokens. A token is handed out by join and
// proves the caller owns that player id in that arena.
type Auth struct {
	jwtSecret []byte
	now       func() time.Time

	// Rate limiting for joins (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates a new Auth handler; settings may be nil
func NewAuth(settings settingsStore) *Auth {
	return &Auth{
		jwtSecret: loadOrCreateSecret(settings),
		now:       time.Now,
		rateMap:   make(map[string]*rateEntry),
	}
}

// loadOrCreateSecret loads the JWT secret from settings, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(settings settingsStore) []byte {
	if settings != nil {
		if h := settings.GetSetting("jwt_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if settings != nil {
		if err := settings.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			log.Warn("could not persist JWT secret", "err", err)
		}
	}
	return secret
}

// IssueSeat signs a token for a joined player
func (a *Auth) IssueSeat(seat Seat) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"arn": seat.ArenaID,
		"pid": seat.PlayerID,
		"usr": seat.Username,
		"exp": now.Add(seatTokenExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateSeat checks a token and returns the seat it was issued for
func (a *Auth) ValidateSeat(tokenStr string) (Seat, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return Seat{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Seat{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	var seat Seat
	seat.ArenaID, _ = claims["arn"].(string)
	seat.PlayerID, _ = claims["pid"].(string)
	seat.Username, _ = claims["usr"].(string)
	if seat.ArenaID == "" || seat.PlayerID == "" {
		return Seat{}, fmt.Errorf("%w: invalid token claims", ErrUnauthorized)
	}
	return seat, nil
}

// Authorize checks the request's bearer token against arenaID and playerID
func (a *Auth) Authorize(r *http.Request, arenaID, playerID string) error {
	h := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || tokenStr == "" {
		return fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	seat, err := a.ValidateSeat(tokenStr)
	if err != nil {
		return err
	}
	if seat.ArenaID != arenaID || seat.PlayerID != playerID {
		return fmt.Errorf("%w: token is for another seat", ErrUnauthorized)
	}
	return nil
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := a.now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(joinRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxJoinAttempts
}

// GenerateGuestName creates a guest name like "Guest_a3f2c1"
func GenerateGuestName() string {
	return "Guest_" + GenerateID(3)
}
