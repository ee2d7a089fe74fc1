package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

// Leaderboard retention, matching the daily and weekly board lifetimes
const (
	dailyBoardRetention  = 7 * 24 * time.Hour
	weeklyBoardRetention = 30 * 24 * time.Hour
)

// MatchResult is one player's final line of a finished match
type MatchResult struct {
	Username   string `json:"username"`
	ArenaID    string `json:"arenaId"`
	MatchID    string `json:"matchId"`
	Score      int    `json:"score"`
	Kills      int    `json:"kills"`
	EnemyKills int    `json:"enemyKills"`
	Won        bool   `json:"won"`
	FinishedAt int64  `json:"finishedAt"`
}

// StatsSink durably records match results
type StatsSink interface {
	RecordMatchResult(ctx context.Context, r MatchResult) error
}

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PlayerStats are the lifetime counters of one username
type PlayerStats struct {
	Username     string  `json:"username"`
	TotalKills   int     `json:"totalKills"`
	TotalLosses  int     `json:"totalDeaths"`
	TotalWins    int     `json:"totalWins"`
	TotalMatches int     `json:"totalMatches"`
	BestScore    int     `json:"bestScore"`
	EnemyKills   int     `json:"enemyKills"`
	PlayerKills  int     `json:"playerKills"`
	KDRatio      float64 `json:"kdRatio"`
	LastPlayed   int64   `json:"lastPlayed"`
	Rank         int     `json:"rank"`
}

// LeaderboardEntry represents one row in a leaderboard
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// CommunityStats aggregates results for one arena
type CommunityStats struct {
	ArenaID          string `json:"arenaId"`
	TotalEnemyKills  int    `json:"totalEnemiesKilled"`
	TotalMatches     int    `json:"totalMatches"`
	TotalPlayers     int    `json:"totalPlayers"`
	WeeklyEnemyKills int    `json:"weeklyEnemies"`
	WeeklyMatches    int    `json:"weeklyMatches"`
}

// Board names
const BoardGlobal = "global"

// ArenaBoard names the per-arena leaderboard
func ArenaBoard(arenaID string) string { return "arena:" + arenaID }

// DailyBoard names the leaderboard for the UTC day containing t
func DailyBoard(t time.Time) string { return "daily:" + DateKey(t) }

// WeeklyBoard names the leaderboard for the ISO week containing t
func WeeklyBoard(t time.Time) string { return "weekly:" + WeekKey(t) }

// WeekKey formats the ISO week of t as YYYY-Www
func WeekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS player_stats (
		username TEXT PRIMARY KEY,
		total_kills INTEGER NOT NULL DEFAULT 0,
		total_losses INTEGER NOT NULL DEFAULT 0,
		total_wins INTEGER NOT NULL DEFAULT 0,
		total_matches INTEGER NOT NULL DEFAULT 0,
		best_score INTEGER NOT NULL DEFAULT 0,
		enemy_kills INTEGER NOT NULL DEFAULT 0,
		player_kills INTEGER NOT NULL DEFAULT 0,
		last_played INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS leaderboard (
		board TEXT NOT NULL,
		username TEXT NOT NULL,
		score INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (board, username)
	);

	CREATE TABLE IF NOT EXISTS match_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		arena_id TEXT NOT NULL,
		username TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		enemy_kills INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0,
		week TEXT NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard(board, score DESC);
	CREATE INDEX IF NOT EXISTS idx_match_results_arena ON match_results(arena_id, week);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Error("db migration failed", "err", err)
	}
	return err
}

// RecordMatchResult updates lifetime stats, every leaderboard the result
// belongs to, and the arena history in one transaction. Boards keep each
// player's best score.
func (db *DB) RecordMatchResult(ctx context.Context, r MatchResult) error {
	if r.Username == "" {
		return errors.New("result without username")
	}
	finished := time.UnixMilli(r.FinishedAt)
	won := 0
	if r.Won {
		won = 1
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO player_stats (username, total_kills, total_losses, total_wins, total_matches, best_score, enemy_kills, player_kills, last_played)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			total_kills = total_kills + excluded.total_kills,
			total_losses = total_losses + excluded.total_losses,
			total_wins = total_wins + excluded.total_wins,
			total_matches = total_matches + 1,
			best_score = MAX(best_score, excluded.best_score),
			enemy_kills = enemy_kills + excluded.enemy_kills,
			player_kills = player_kills + excluded.player_kills,
			last_played = excluded.last_played`,
		r.Username, r.Kills, 1-won, won, r.Score, r.EnemyKills, r.Kills, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("player stats: %w", err)
	}

	for _, board := range []string{BoardGlobal, ArenaBoard(r.ArenaID), DailyBoard(finished), WeeklyBoard(finished)} {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO leaderboard (board, username, score, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(board, username) DO UPDATE SET
				score = MAX(score, excluded.score),
				updated_at = excluded.updated_at`,
			board, r.Username, r.Score, r.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("leaderboard %s: %w", board, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_results (match_id, arena_id, username, score, kills, enemy_kills, won, week, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MatchID, r.ArenaID, r.Username, r.Score, r.Kills, r.EnemyKills, won, WeekKey(finished), r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("match result: %w", err)
	}
	return tx.Commit()
}

// Leaderboard returns the top entries of a board, highest score first
func (db *DB) Leaderboard(ctx context.Context, board string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.QueryContext(ctx,
		"SELECT username, score FROM leaderboard WHERE board = ? ORDER BY score DESC, updated_at ASC LIMIT ?",
		board, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Score); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// PlayerRank returns the 1-based global rank of username, or 0 if unranked
func (db *DB) PlayerRank(ctx context.Context, username string) (int, error) {
	var score int
	err := db.conn.QueryRowContext(ctx,
		"SELECT score FROM leaderboard WHERE board = ? AND username = ?", BoardGlobal, username,
	).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var above int
	err = db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM leaderboard WHERE board = ? AND score > ?", BoardGlobal, score,
	).Scan(&above)
	return above + 1, err
}

// GetPlayerStats returns lifetime stats for username, or ErrNotFound
func (db *DB) GetPlayerStats(ctx context.Context, username string) (*PlayerStats, error) {
	s := &PlayerStats{Username: username}
	err := db.conn.QueryRowContext(ctx, `
		SELECT total_kills, total_losses, total_wins, total_matches, best_score, enemy_kills, player_kills, last_played
		FROM player_stats WHERE username = ?`, username,
	).Scan(&s.TotalKills, &s.TotalLosses, &s.TotalWins, &s.TotalMatches, &s.BestScore, &s.EnemyKills, &s.PlayerKills, &s.LastPlayed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	if s.TotalLosses > 0 {
		s.KDRatio = float64(s.TotalKills) / float64(s.TotalLosses)
	} else {
		s.KDRatio = float64(s.TotalKills)
	}
	s.Rank, err = db.PlayerRank(ctx, username)
	return s, err
}

// GetCommunityStats aggregates an arena's history, all-time and for the week of now
func (db *DB) GetCommunityStats(ctx context.Context, arenaID string, now time.Time) (*CommunityStats, error) {
	c := &CommunityStats{ArenaID: arenaID}
	err := db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(enemy_kills), 0), COUNT(DISTINCT match_id), COUNT(DISTINCT username)
		FROM match_results WHERE arena_id = ?`, arenaID,
	).Scan(&c.TotalEnemyKills, &c.TotalMatches, &c.TotalPlayers)
	if err != nil {
		return nil, err
	}
	err = db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(enemy_kills), 0), COUNT(DISTINCT match_id)
		FROM match_results WHERE arena_id = ? AND week = ?`, arenaID, WeekKey(now),
	).Scan(&c.WeeklyEnemyKills, &c.WeeklyMatches)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// PruneBoards drops daily and weekly entries past their retention
func (db *DB) PruneBoards(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for prefix, keep := range map[string]time.Duration{"daily:": dailyBoardRetention, "weekly:": weeklyBoardRetention} {
		res, err := db.conn.ExecContext(ctx,
			"DELETE FROM leaderboard WHERE board LIKE ? AND updated_at < ?",
			prefix+"%", now.Add(-keep).UnixMilli(),
		)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// GetSetting returns a stored setting, or "" if unset
func (db *DB) GetSetting(key string) string {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Warn("read setting failed", "key", key, "err", err)
	}
	return v
}

// SetSetting stores a setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// boardFor resolves a leaderboard scope from the API into a board name
func boardFor(scope, arenaID string, now time.Time) (string, error) {
	switch strings.ToLower(scope) {
	case "", "global":
		return BoardGlobal, nil
	case "arena":
		if arenaID == "" {
			return "", fmt.Errorf("%w: arena scope needs an arena id", ErrBadRequest)
		}
		return ArenaBoard(arenaID), nil
	case "daily":
		return DailyBoard(now), nil
	case "weekly":
		return WeeklyBoard(now), nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrBadRequest, scope)
}
