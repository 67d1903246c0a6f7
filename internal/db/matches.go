package db

import (
	"database/sql"
	"fmt"
	"time"
)

type MatchRow struct {
	SessionID    string
	Mode         string
	PlayType     string
	PlayerAID    string
	PlayerAName  string
	PlayerAScore int
	PlayerALevel int
	PlayerALines int
	PlayerBID    string
	PlayerBName  string
	PlayerBScore int
	PlayerBLevel int
	PlayerBLines int
	WinnerID     string // empty = tie
	CompletedAt  time.Time
}

// InsertCompletedMatch writes one immutable history row. The session_id
// primary key makes a second insert for the same session fail; callers can
// detect that with IsUniqueViolation.
func (d *DB) InsertCompletedMatch(row MatchRow) error {
	var winner sql.NullString
	if row.WinnerID != "" {
		winner = sql.NullString{String: row.WinnerID, Valid: true}
	}
	_, err := d.conn.Exec(`
		INSERT INTO completed_matches (session_id, mode, play_type,
			player_a_id, player_a_name, player_a_score, player_a_level, player_a_lines,
			player_b_id, player_b_name, player_b_score, player_b_level, player_b_lines,
			winner_id, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, row.SessionID, row.Mode, row.PlayType,
		row.PlayerAID, row.PlayerAName, row.PlayerAScore, row.PlayerALevel, row.PlayerALines,
		row.PlayerBID, row.PlayerBName, row.PlayerBScore, row.PlayerBLevel, row.PlayerBLines,
		winner, row.CompletedAt)
	if err != nil {
		return fmt.Errorf("inserting completed match: %w", err)
	}
	return nil
}

// ListCompletedMatches returns all history rows, oldest first. Used to
// rebuild in-memory history at startup.
func (d *DB) ListCompletedMatches() ([]MatchRow, error) {
	rows, err := d.conn.Query(`
		SELECT session_id, mode, play_type,
			player_a_id, player_a_name, player_a_score, player_a_level, player_a_lines,
			player_b_id, player_b_name, player_b_score, player_b_level, player_b_lines,
			winner_id, completed_at
		FROM completed_matches
		ORDER BY completed_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing completed matches: %w", err)
	}
	defer rows.Close()

	var list []MatchRow
	for rows.Next() {
		var row MatchRow
		var winner sql.NullString
		if err := rows.Scan(&row.SessionID, &row.Mode, &row.PlayType,
			&row.PlayerAID, &row.PlayerAName, &row.PlayerAScore, &row.PlayerALevel, &row.PlayerALines,
			&row.PlayerBID, &row.PlayerBName, &row.PlayerBScore, &row.PlayerBLevel, &row.PlayerBLines,
			&winner, &row.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning completed match: %w", err)
		}
		row.WinnerID = winner.String
		list = append(list, row)
	}
	return list, rows.Err()
}
