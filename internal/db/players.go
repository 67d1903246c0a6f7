package db

import (
	"fmt"
	"time"
)

type PlayerRecord struct {
	ID        string
	Name      string
	Secret    string
	CreatedAt time.Time
}

func (d *DB) UpsertPlayer(id, name, secret string) error {
	_, err := d.conn.Exec(`
		INSERT INTO players (id, name, secret)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = $2, secret = $3
	`, id, name, secret)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

func (d *DB) GetPlayer(id string) (*PlayerRecord, error) {
	var p PlayerRecord
	err := d.conn.QueryRow(`
		SELECT id, name, secret, created_at FROM players WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Secret, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}
