package db

import (
	"fmt"
	"time"
)

type ChallengeRow struct {
	PlayerID    string
	Mode        string
	DisplayName string
	SkillLevel  int
	CreatedAt   time.Time
}

// InsertChallenge mirrors a queue entry. The (player_id, mode) primary key
// backs the one-entry-per-player-per-mode rule; callers can detect the
// second insert with IsUniqueViolation.
func (d *DB) InsertChallenge(row ChallengeRow) error {
	_, err := d.conn.Exec(`
		INSERT INTO challenge_queue (player_id, mode, display_name, skill_level, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, row.PlayerID, row.Mode, row.DisplayName, row.SkillLevel, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting challenge: %w", err)
	}
	return nil
}

func (d *DB) DeleteChallengesFor(playerID string) error {
	_, err := d.conn.Exec(`
		DELETE FROM challenge_queue WHERE player_id = $1
	`, playerID)
	if err != nil {
		return fmt.Errorf("deleting challenges: %w", err)
	}
	return nil
}

func (d *DB) ListChallenges() ([]ChallengeRow, error) {
	rows, err := d.conn.Query(`
		SELECT player_id, mode, display_name, skill_level, created_at
		FROM challenge_queue
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing challenges: %w", err)
	}
	defer rows.Close()

	var list []ChallengeRow
	for rows.Next() {
		var row ChallengeRow
		if err := rows.Scan(&row.PlayerID, &row.Mode, &row.DisplayName, &row.SkillLevel, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning challenge: %w", err)
		}
		list = append(list, row)
	}
	return list, rows.Err()
}
