package db

import (
	"fmt"
	"time"
)

type SessionRow struct {
	SessionID    string
	Mode         string
	PlayType     string
	State        string
	PlayerAID    string
	PlayerAName  string
	PlayerASkill int
	PlayerBID    string
	PlayerBName  string
	PlayerBSkill int
	CreatedAt    time.Time
}

func (d *DB) InsertActiveSession(row SessionRow) error {
	_, err := d.conn.Exec(`
		INSERT INTO active_sessions (session_id, mode, play_type, state,
			player_a_id, player_a_name, player_a_skill,
			player_b_id, player_b_name, player_b_skill, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, row.SessionID, row.Mode, row.PlayType, row.State,
		row.PlayerAID, row.PlayerAName, row.PlayerASkill,
		row.PlayerBID, row.PlayerBName, row.PlayerBSkill, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting active session: %w", err)
	}
	return nil
}

func (d *DB) UpdateSessionState(sessionID, state string) error {
	_, err := d.conn.Exec(`
		UPDATE active_sessions SET state = $2 WHERE session_id = $1
	`, sessionID, state)
	if err != nil {
		return fmt.Errorf("updating session state: %w", err)
	}
	return nil
}

func (d *DB) DeleteActiveSession(sessionID string) error {
	_, err := d.conn.Exec(`
		DELETE FROM active_sessions WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting active session: %w", err)
	}
	return nil
}
