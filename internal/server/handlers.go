package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"blockduel/internal/arena"
	"blockduel/internal/challenges"
	"blockduel/internal/db"
	"blockduel/internal/game"
	"blockduel/internal/live"
	"blockduel/internal/matches"
	"blockduel/internal/players"
	"blockduel/internal/sessions"
	"blockduel/internal/turnbased"
	"blockduel/internal/versus"
)

type Server struct {
	Engine    *arena.Engine
	TurnBased *turnbased.Coordinator
	Versus    *versus.Coordinator
	Players   *players.Directory
	Hub       *live.Hub
	DB        *db.DB // nil when running without a database
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Encode error: %v\n", err)
	}
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sessions.ErrNotFound),
		errors.Is(err, arena.ErrChallengeNotFound),
		errors.Is(err, arena.ErrUnknownPlayer):
		status = http.StatusNotFound
	case errors.Is(err, challenges.ErrAlreadyQueued),
		errors.Is(err, sessions.ErrAlreadyInSession),
		errors.Is(err, arena.ErrSelfJoin),
		errors.Is(err, turnbased.ErrNotTurnBased),
		errors.Is(err, versus.ErrNotSimultaneous):
		status = http.StatusConflict
	case errors.Is(err, turnbased.ErrNotYourTurn):
		status = http.StatusForbidden
	case errors.Is(err, sessions.ErrCompleted):
		status = http.StatusGone
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// POST /players
func (s *Server) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log.Println("[Handle:RegisterPlayer] Request Received")

	var req struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	p := s.Players.Register(req.ID, req.Name, req.Secret)
	if s.DB != nil {
		if err := s.DB.UpsertPlayer(p.ID, p.Name, req.Secret); err != nil {
			log.Printf("[DB] UpsertPlayer error: %v\n", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"skillLevel": s.Engine.SkillFor(p.ID),
	})
}

type challengeJSON struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	SkillLevel  int    `json:"skillLevel"`
	Mode        string `json:"mode"`
	WaitTimeMs  int64  `json:"waitTimeMs"`
}

func toChallengeJSON(e *challenges.Entry) challengeJSON {
	return challengeJSON{
		PlayerID:    e.PlayerID,
		DisplayName: e.DisplayName,
		SkillLevel:  e.SkillLevel,
		Mode:        string(e.Mode),
		WaitTimeMs:  time.Since(e.CreatedAt).Milliseconds(),
	}
}

// POST|DELETE|GET /challenges
func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createChallenge(w, r)
	case http.MethodDelete:
		s.cancelChallenge(w, r)
	case http.MethodGet:
		s.listChallenges(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createChallenge(w http.ResponseWriter, r *http.Request) {
	log.Println("[Handle:CreateChallenge] Request Received")

	var req struct {
		PlayerID string `json:"playerId"`
		Mode     string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeBadRequest(w, "playerId is required")
		return
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entry, err := s.Engine.CreateChallenge(req.PlayerID, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChallengeJSON(entry))
}

func (s *Server) cancelChallenge(w http.ResponseWriter, r *http.Request) {
	log.Println("[Handle:CancelChallenge] Request Received")

	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeBadRequest(w, "playerId is required")
		return
	}
	s.Engine.CancelChallenge(req.PlayerID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listChallenges(w http.ResponseWriter, r *http.Request) {
	excluding := r.URL.Query().Get("excluding")
	list := s.Engine.ListChallenges(excluding)
	out := make([]challengeJSON, 0, len(list))
	for _, e := range list {
		out = append(out, toChallengeJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type sessionJSON struct {
	SessionID    string        `json:"sessionId"`
	Mode         string        `json:"mode"`
	PlayType     string        `json:"playType"`
	State        string        `json:"state"`
	PlayerA      sessions.Slot `json:"playerA"`
	PlayerB      sessions.Slot `json:"playerB"`
	StatsA       game.Stats    `json:"statsA"`
	StatsB       game.Stats    `json:"statsB"`
	CurrentMover string        `json:"currentMover,omitempty"`
}

func toSessionJSON(sess sessions.Snapshot) sessionJSON {
	return sessionJSON{
		SessionID:    sess.ID,
		Mode:         string(sess.Mode),
		PlayType:     string(sess.PlayType),
		State:        string(sess.State),
		PlayerA:      sess.PlayerA,
		PlayerB:      sess.PlayerB,
		StatsA:       sess.StatsA,
		StatsB:       sess.StatsB,
		CurrentMover: sess.CurrentMover,
	}
}

// POST /challenges/join
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log.Println("[Handle:JoinChallenge] Request Received")

	var req struct {
		JoiningPlayerID string `json:"joiningPlayerId"`
		TargetPlayerID  string `json:"targetPlayerId"`
		Mode            string `json:"mode"`
		PlayType        string `json:"playType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.JoiningPlayerID == "" || req.TargetPlayerID == "" {
		writeBadRequest(w, "joiningPlayerId and targetPlayerId are required")
		return
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	playType, err := game.ParsePlayType(req.PlayType)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sess, err := s.Engine.JoinChallenge(req.JoiningPlayerID, req.TargetPlayerID, mode, playType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionJSON(sess.Snapshot()))
}

// POST /sessions/{id}/confirm
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log.Println("[Handle:ConfirmPresence] Request Received")

	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed body")
		return
	}

	err := s.Versus.ConfirmPresence(r.PathValue("id"), req.Secret)
	if errors.Is(err, versus.ErrPresenceNotConfirmed) {
		// Wrong secret leaves the session waiting so the device can retry.
		writeJSON(w, http.StatusForbidden, map[string]bool{"valid": false})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// POST /sessions/{id}/turn
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log.Println("[Handle:SubmitTurn] Request Received")

	var req struct {
		PlayerID string `json:"playerId"`
		Score    int    `json:"score"`
		Level    int    `json:"level"`
		Lines    int    `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeBadRequest(w, "playerId is required")
		return
	}

	res, err := s.TurnBased.SubmitTurn(r.PathValue("id"), req.PlayerID,
		game.Stats{Score: req.Score, Level: req.Level, Lines: req.Lines})
	if err != nil {
		writeError(w, err)
		return
	}

	out := map[string]any{"completed": res.Completed}
	if res.WinnerID != "" {
		out["winner"] = res.WinnerID
	}
	writeJSON(w, http.StatusOK, out)
}

type pendingJSON struct {
	SessionID string        `json:"sessionId"`
	Mode      string        `json:"mode"`
	Opponent  sessions.Slot `json:"opponent"`
	Target    *game.Stats   `json:"target,omitempty"`
}

// GET /sessions/pending?playerId=
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		writeBadRequest(w, "playerId is required")
		return
	}

	toJSON := func(list []turnbased.Pending) []pendingJSON {
		out := make([]pendingJSON, 0, len(list))
		for _, p := range list {
			opp, _ := p.Session.Opponent(playerID)
			out = append(out, pendingJSON{
				SessionID: p.Session.ID,
				Mode:      string(p.Session.Mode),
				Opponent:  opp,
				Target:    p.Target,
			})
		}
		return out
	}

	yourMove, theirMove := s.TurnBased.PendingFor(playerID)
	writeJSON(w, http.StatusOK, map[string]any{
		"waitingForYou":      toJSON(yourMove),
		"waitingForOpponent": toJSON(theirMove),
	})
}

// GET /sessions/{id}
func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.Engine.SessionState(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	// The session stays live in its coordinator; render a consistent copy.
	writeJSON(w, http.StatusOK, toSessionJSON(sess.Snapshot()))
}

type matchSideJSON struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Stats       game.Stats `json:"stats"`
}

type matchJSON struct {
	SessionID   string        `json:"sessionId"`
	Mode        string        `json:"mode"`
	PlayType    string        `json:"playType"`
	PlayerA     matchSideJSON `json:"playerA"`
	PlayerB     matchSideJSON `json:"playerB"`
	Winner      string        `json:"winner,omitempty"`
	CompletedAt time.Time     `json:"completedAt"`
}

func toMatchJSON(m *matches.Match) matchJSON {
	return matchJSON{
		SessionID:   m.SessionID,
		Mode:        string(m.Mode),
		PlayType:    string(m.PlayType),
		PlayerA:     matchSideJSON{ID: m.PlayerA.ID, DisplayName: m.PlayerA.DisplayName, Stats: m.StatsA},
		PlayerB:     matchSideJSON{ID: m.PlayerB.ID, DisplayName: m.PlayerB.DisplayName, Stats: m.StatsB},
		Winner:      m.WinnerID,
		CompletedAt: m.CompletedAt,
	}
}

// GET /matches?playerId=
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		writeBadRequest(w, "playerId is required")
		return
	}
	list := s.Engine.CompletedMatches(playerID)
	out := make([]matchJSON, 0, len(list))
	for _, m := range list {
		out = append(out, toMatchJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /sessions/{id}/board?player= upgrades to a WebSocket carrying one
// player's board events.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	playerID := r.URL.Query().Get("player")

	sess, err := s.Engine.SessionState(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !sess.Has(playerID) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "player is not in this session"})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[Handle:Board] Accept error: %v\n", err)
		return
	}
	defer conn.CloseNow()

	log.Printf("[Handle:Board] Device connected for %s/%s\n", sessionID, playerID)
	s.Hub.HandleConn(r.Context(), conn, sessionID, playerID)
	conn.Close(websocket.StatusNormalClosure, "")
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "not configured"}
	if s.DB != nil {
		status["database"] = "ok"
		if err := s.DB.Ping(); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, status)
}
