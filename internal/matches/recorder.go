// Package matches records finished sessions, exactly once each, and serves
// the completed-match history that ratings are derived from.
package matches

import (
	"errors"
	"log"
	"sync"
	"time"

	"blockduel/internal/db"
	"blockduel/internal/game"
	"blockduel/internal/metrics"
	"blockduel/internal/sessions"
)

var ErrDuplicateResult = errors.New("result already recorded for this session")

// Match is one immutable history row.
type Match struct {
	SessionID   string
	Mode        game.Mode
	PlayType    game.PlayType
	PlayerA     sessions.Slot
	PlayerB     sessions.Slot
	StatsA      game.Stats
	StatsB      game.Stats
	WinnerID    string // empty = tie
	CompletedAt time.Time
}

// Recorder keeps history in memory, authoritative for this process, and
// mirrors rows to Postgres when a database is configured.
type Recorder struct {
	mu        sync.Mutex
	history   []*Match
	bySession map[string]*Match
	db        *db.DB // nil when running without a database
}

func NewRecorder(database *db.DB) *Recorder {
	return &Recorder{
		bySession: make(map[string]*Match),
		db:        database,
	}
}

// Load rebuilds history from the database. Call once at startup.
func (r *Recorder) Load() error {
	if r.db == nil {
		return nil
	}
	rows, err := r.db.ListCompletedMatches()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		m := &Match{
			SessionID:   row.SessionID,
			Mode:        game.Mode(row.Mode),
			PlayType:    game.PlayType(row.PlayType),
			PlayerA:     sessions.Slot{ID: row.PlayerAID, DisplayName: row.PlayerAName},
			PlayerB:     sessions.Slot{ID: row.PlayerBID, DisplayName: row.PlayerBName},
			StatsA:      game.Stats{Score: row.PlayerAScore, Level: row.PlayerALevel, Lines: row.PlayerALines},
			StatsB:      game.Stats{Score: row.PlayerBScore, Level: row.PlayerBLevel, Lines: row.PlayerBLines},
			WinnerID:    row.WinnerID,
			CompletedAt: row.CompletedAt,
		}
		r.history = append(r.history, m)
		r.bySession[m.SessionID] = m
	}
	if len(rows) > 0 {
		log.Printf("[Matches] Loaded %d completed matches from database\n", len(rows))
	}
	return nil
}

// Record persists the finished session. The caller's state machine is the
// primary guard against double completion; the in-memory duplicate check
// backstops it.
func (r *Recorder) Record(sess *sessions.Session, winnerID string) (*Match, error) {
	r.mu.Lock()
	if _, dup := r.bySession[sess.ID]; dup {
		r.mu.Unlock()
		return nil, ErrDuplicateResult
	}
	m := &Match{
		SessionID:   sess.ID,
		Mode:        sess.Mode,
		PlayType:    sess.PlayType,
		PlayerA:     sess.PlayerA,
		PlayerB:     sess.PlayerB,
		StatsA:      sess.StatsA,
		StatsB:      sess.StatsB,
		WinnerID:    winnerID,
		CompletedAt: time.Now(),
	}
	r.history = append(r.history, m)
	r.bySession[m.SessionID] = m
	r.mu.Unlock()

	metrics.MatchesCompleted.WithLabelValues(string(m.Mode), string(m.PlayType)).Inc()

	if r.db != nil {
		err := r.db.InsertCompletedMatch(db.MatchRow{
			SessionID:    m.SessionID,
			Mode:         string(m.Mode),
			PlayType:     string(m.PlayType),
			PlayerAID:    m.PlayerA.ID,
			PlayerAName:  m.PlayerA.DisplayName,
			PlayerAScore: m.StatsA.Score,
			PlayerALevel: m.StatsA.Level,
			PlayerALines: m.StatsA.Lines,
			PlayerBID:    m.PlayerB.ID,
			PlayerBName:  m.PlayerB.DisplayName,
			PlayerBScore: m.StatsB.Score,
			PlayerBLevel: m.StatsB.Level,
			PlayerBLines: m.StatsB.Lines,
			WinnerID:     m.WinnerID,
			CompletedAt:  m.CompletedAt,
		})
		if err != nil {
			// Best-effort mirror: the in-memory record stands either way. A
			// unique violation means Postgres already holds a row for this
			// session, left by an earlier process.
			if db.IsUniqueViolation(err) {
				log.Printf("[DB] Completed match %s already mirrored\n", m.SessionID)
			} else {
				log.Printf("[DB] InsertCompletedMatch error: %v\n", err)
			}
		}
		if err := r.db.DeleteActiveSession(m.SessionID); err != nil {
			log.Printf("[DB] DeleteActiveSession error: %v\n", err)
		}
	}
	return m, nil
}

// Get returns the recorded match for a session, or nil.
func (r *Recorder) Get(sessionID string) *Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bySession[sessionID]
}

// ForPlayer returns every match the player took part in, oldest first.
func (r *Recorder) ForPlayer(playerID string) []*Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*Match
	for _, m := range r.history {
		if m.PlayerA.ID == playerID || m.PlayerB.ID == playerID {
			list = append(list, m)
		}
	}
	return list
}

// RatingInputs derives the estimator's inputs from the player's history.
// A player with no matches gets the new-player defaults.
func (r *Recorder) RatingInputs(playerID string) (avgLevel float64, gamesPlayed, bestScore int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	levelSum := 0
	for _, m := range r.history {
		var st game.Stats
		switch playerID {
		case m.PlayerA.ID:
			st = m.StatsA
		case m.PlayerB.ID:
			st = m.StatsB
		default:
			continue
		}
		gamesPlayed++
		levelSum += st.Level
		if st.Score > bestScore {
			bestScore = st.Score
		}
	}
	if gamesPlayed == 0 {
		return 1, 0, 0
	}
	return float64(levelSum) / float64(gamesPlayed), gamesPlayed, bestScore
}
