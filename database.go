package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const defaultHistorySize = 20

// History stores finished matches in SQLite. The server opens it in memory,
// so it lasts for the life of the process.
type History struct {
	conn *sql.DB
}

// MatchRow is one finished match with its players
type MatchRow struct {
	ID         int64            `json:"id"`
	RoomID     string           `json:"roomId"`
	Mode       GameMode         `json:"mode"`
	MapID      string           `json:"mapId"`
	Winner     string           `json:"winner,omitempty"`
	TeamScores *TeamScores      `json:"teamScores,omitempty"`
	Duration   float64          `json:"duration"` // seconds
	EndedAt    time.Time        `json:"endedAt"`
	Players    []MatchPlayerRow `json:"players"`
}

// MatchPlayerRow is one player's line in a finished match
type MatchPlayerRow struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Team     Team   `json:"team,omitempty"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
	Won      bool   `json:"won"`
}

// LeaderboardEntry represents one row in the leaderboard
type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	Name    string `json:"name"`
	Kills   int    `json:"kills"`
	Deaths  int    `json:"deaths"`
	Wins    int    `json:"wins"`
	Matches int    `json:"matches"`
}

// OpenHistory opens the SQLite database at path (":memory:" for a
// process-local store) and creates the schema.
func OpenHistory(path string) (*History, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" is a separate database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	h := &History{conn: conn}
	if err := h.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return h, nil
}

// Close closes the database connection
func (h *History) Close() error {
	return h.conn.Close()
}

func (h *History) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		map_id TEXT NOT NULL,
		winner TEXT NOT NULL DEFAULT '',
		red_score INTEGER,
		blue_score INTEGER,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		player_id TEXT NOT NULL,
		name TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, player_id)
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_name ON match_players(name);
	`
	if _, err := h.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	return nil
}

// RecordMatch stores a finished match and its scoreboard in one transaction.
func (h *History) RecordMatch(res MatchResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var red, blue sql.NullInt64
	if res.TeamScores != nil {
		red = sql.NullInt64{Int64: int64(res.TeamScores.Red), Valid: true}
		blue = sql.NullInt64{Int64: int64(res.TeamScores.Blue), Valid: true}
	}
	started := res.StartedAt
	if started.IsZero() {
		started = res.EndedAt
	}

	r, err := tx.ExecContext(ctx,
		`INSERT INTO matches (room_id, mode, map_id, winner, red_score, blue_score, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RoomID, string(res.Mode), res.MapID, res.Winner, red, blue,
		started.UnixMilli(), res.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	matchID, err := r.LastInsertId()
	if err != nil {
		return err
	}

	for _, s := range res.Scores {
		team := res.Teams[s.PlayerID]
		won := 0
		if res.Winner != "" && (res.Winner == s.PlayerID || res.Winner == string(team)) {
			won = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO match_players (match_id, player_id, name, team, kills, deaths, won)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			matchID, s.PlayerID, res.Names[s.PlayerID], string(team), s.Kills, s.Deaths, won,
		)
		if err != nil {
			return fmt.Errorf("insert match player: %w", err)
		}
	}
	return tx.Commit()
}

// RecentMatches returns the last limit matches, newest first.
func (h *History) RecentMatches(limit int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = defaultHistorySize
	}
	rows, err := h.conn.Query(`
		SELECT id, room_id, mode, map_id, winner, red_score, blue_score, started_at, ended_at
		FROM matches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var (
		result []MatchRow
		byID   = make(map[int64]int)
	)
	for rows.Next() {
		var (
			m                MatchRow
			red, blue        sql.NullInt64
			started, endedAt int64
			mode             string
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &mode, &m.MapID, &m.Winner, &red, &blue, &started, &endedAt); err != nil {
			rows.Close()
			return nil, err
		}
		m.Mode = GameMode(mode)
		if red.Valid && blue.Valid {
			m.TeamScores = &TeamScores{Red: int(red.Int64), Blue: int(blue.Int64)}
		}
		m.EndedAt = time.UnixMilli(endedAt).UTC()
		m.Duration = float64(endedAt-started) / 1000
		m.Players = []MatchPlayerRow{}
		byID[m.ID] = len(result)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(result) == 0 {
		return result, nil
	}

	prows, err := h.conn.Query(`
		SELECT match_id, player_id, name, team, kills, deaths, won
		FROM match_players WHERE match_id >= ? ORDER BY match_id, kills DESC, deaths ASC`,
		result[len(result)-1].ID)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var (
			matchID int64
			p       MatchPlayerRow
			team    string
		)
		if err := prows.Scan(&matchID, &p.PlayerID, &p.Name, &team, &p.Kills, &p.Deaths, &p.Won); err != nil {
			return nil, err
		}
		p.Team = Team(team)
		if i, ok := byID[matchID]; ok {
			result[i].Players = append(result[i].Players, p)
		}
	}
	return result, prows.Err()
}

// Leaderboard aggregates kills by display name across recorded matches.
func (h *History) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.conn.Query(`
		SELECT name, SUM(kills), SUM(deaths), SUM(won), COUNT(*)
		FROM match_players
		GROUP BY name
		ORDER BY SUM(kills) DESC, SUM(won) DESC, SUM(deaths) ASC, name ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []LeaderboardEntry{}
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Kills, &e.Deaths, &e.Wins, &e.Matches); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}
