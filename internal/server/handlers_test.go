package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"blockduel/internal/arena"
	"blockduel/internal/challenges"
	"blockduel/internal/live"
	"blockduel/internal/matches"
	"blockduel/internal/players"
	"blockduel/internal/sessions"
	"blockduel/internal/turnbased"
	"blockduel/internal/versus"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := players.NewDirectory()
	queueStore := challenges.NewStore()
	sessionStore := sessions.NewStore()
	recorder := matches.NewRecorder(nil)
	hub := live.NewHub()

	srv := &Server{
		Engine:    arena.New(queueStore, sessionStore, dir, recorder, nil),
		TurnBased: turnbased.New(sessionStore, recorder, nil),
		Versus: versus.New(sessionStore, recorder, hub, dir.VerifySecret, nil,
			versus.Config{OnEnded: hub.NotifyEnded}),
		Players: dir,
		Hub:     hub,
	}

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, out.Bytes()
}

func registerPlayer(t *testing.T, ts *httptest.Server, id, name, secret string) {
	t.Helper()
	status, body := doJSON(t, ts, http.MethodPost, "/players",
		map[string]string{"id": id, "name": name, "secret": secret})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", id, status, body)
	}
}

func TestTurnBasedFlow(t *testing.T) {
	ts := newTestServer(t)
	registerPlayer(t, ts, "alice", "Alice", "s1")
	registerPlayer(t, ts, "bob", "Bob", "s2")

	status, body := doJSON(t, ts, http.MethodPost, "/challenges",
		map[string]string{"playerId": "alice", "mode": "sprint"})
	if status != http.StatusCreated {
		t.Fatalf("create challenge: status %d, body %s", status, body)
	}

	// Bob browses, excluding his own entries.
	status, body = doJSON(t, ts, http.MethodGet, "/challenges?excluding=bob", nil)
	if status != http.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0]["playerId"] != "alice" {
		t.Fatalf("list = %s", body)
	}
	if _, ok := list[0]["waitTimeMs"]; !ok {
		t.Error("listing should carry waitTimeMs")
	}

	status, body = doJSON(t, ts, http.MethodPost, "/challenges/join", map[string]string{
		"joiningPlayerId": "bob",
		"targetPlayerId":  "alice",
		"mode":            "sprint",
		"playType":        "turn_based",
	})
	if status != http.StatusCreated {
		t.Fatalf("join: status %d, body %s", status, body)
	}
	var sess map[string]any
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatal(err)
	}
	sessionID, _ := sess["sessionId"].(string)
	if sessionID == "" {
		t.Fatalf("join response missing sessionId: %s", body)
	}
	if sess["currentMover"] != "bob" {
		t.Errorf("joiner should move first, currentMover = %v", sess["currentMover"])
	}

	// Alice tries to move out of turn.
	status, _ = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/sessions/%s/turn", sessionID),
		map[string]any{"playerId": "alice", "score": 100})
	if status != http.StatusForbidden {
		t.Errorf("out-of-turn submit: status %d, want 403", status)
	}

	// Bob plays his run.
	status, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/sessions/%s/turn", sessionID),
		map[string]any{"playerId": "bob", "score": 4200, "level": 5, "lines": 22})
	if status != http.StatusOK {
		t.Fatalf("first turn: status %d, body %s", status, body)
	}

	// Alice now sees the score to beat.
	status, body = doJSON(t, ts, http.MethodGet, "/sessions/pending?playerId=alice", nil)
	if status != http.StatusOK {
		t.Fatalf("pending: status %d", status)
	}
	var pending struct {
		WaitingForYou []struct {
			SessionID string `json:"sessionId"`
			Target    *struct {
				Score int `json:"score"`
			} `json:"target"`
		} `json:"waitingForYou"`
	}
	if err := json.Unmarshal(body, &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending.WaitingForYou) != 1 || pending.WaitingForYou[0].SessionID != sessionID {
		t.Fatalf("pending = %s", body)
	}
	if pending.WaitingForYou[0].Target == nil || pending.WaitingForYou[0].Target.Score != 4200 {
		t.Errorf("target = %+v, want score 4200", pending.WaitingForYou[0].Target)
	}

	// Alice plays and wins.
	status, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/sessions/%s/turn", sessionID),
		map[string]any{"playerId": "alice", "score": 5100, "level": 6, "lines": 25})
	if status != http.StatusOK {
		t.Fatalf("second turn: status %d, body %s", status, body)
	}
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result["completed"] != true || result["winner"] != "alice" {
		t.Errorf("result = %s", body)
	}

	// The session is retired.
	status, _ = doJSON(t, ts, http.MethodGet, "/sessions/"+sessionID, nil)
	if status != http.StatusGone {
		t.Errorf("retired session lookup: status %d, want 410", status)
	}

	// Both histories carry the match.
	for _, id := range []string{"alice", "bob"} {
		status, body = doJSON(t, ts, http.MethodGet, "/matches?playerId="+id, nil)
		if status != http.StatusOK {
			t.Fatalf("matches for %s: status %d", id, status)
		}
		var hist []map[string]any
		if err := json.Unmarshal(body, &hist); err != nil {
			t.Fatal(err)
		}
		if len(hist) != 1 || hist[0]["winner"] != "alice" {
			t.Errorf("history for %s = %s", id, body)
		}
	}
}

func TestSimultaneousConfirmFlow(t *testing.T) {
	ts := newTestServer(t)
	registerPlayer(t, ts, "alice", "Alice", "hunter2")
	registerPlayer(t, ts, "bob", "Bob", "other")

	doJSON(t, ts, http.MethodPost, "/challenges",
		map[string]string{"playerId": "alice", "mode": "survival"})
	status, body := doJSON(t, ts, http.MethodPost, "/challenges/join", map[string]string{
		"joiningPlayerId": "bob",
		"targetPlayerId":  "alice",
		"mode":            "survival",
		"playType":        "simultaneous",
	})
	if status != http.StatusCreated {
		t.Fatalf("join: status %d, body %s", status, body)
	}
	var sess map[string]any
	json.Unmarshal(body, &sess)
	sessionID := sess["sessionId"].(string)
	if sess["state"] != "awaiting_confirm" {
		t.Errorf("state = %v, want awaiting_confirm", sess["state"])
	}

	// Wrong secret: rejected, session keeps waiting.
	status, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/sessions/%s/confirm", sessionID),
		map[string]string{"secret": "guess"})
	if status != http.StatusForbidden {
		t.Fatalf("bad secret: status %d, body %s", status, body)
	}

	// Challenger's secret: play starts.
	status, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/sessions/%s/confirm", sessionID),
		map[string]string{"secret": "hunter2"})
	if status != http.StatusOK {
		t.Fatalf("confirm: status %d, body %s", status, body)
	}

	status, body = doJSON(t, ts, http.MethodGet, "/sessions/"+sessionID, nil)
	if status != http.StatusOK {
		t.Fatalf("session state: status %d", status)
	}
	json.Unmarshal(body, &sess)
	if sess["state"] != "active" {
		t.Errorf("state = %v, want active", sess["state"])
	}
}

func TestMatchmakingErrors(t *testing.T) {
	ts := newTestServer(t)
	registerPlayer(t, ts, "alice", "Alice", "s1")
	registerPlayer(t, ts, "bob", "Bob", "s2")

	// Unknown player can't queue.
	status, _ := doJSON(t, ts, http.MethodPost, "/challenges",
		map[string]string{"playerId": "ghost", "mode": "ultra"})
	if status != http.StatusNotFound {
		t.Errorf("unknown player: status %d, want 404", status)
	}

	// Bad mode is a client error.
	status, _ = doJSON(t, ts, http.MethodPost, "/challenges",
		map[string]string{"playerId": "alice", "mode": "marathon"})
	if status != http.StatusBadRequest {
		t.Errorf("bad mode: status %d, want 400", status)
	}

	doJSON(t, ts, http.MethodPost, "/challenges",
		map[string]string{"playerId": "alice", "mode": "ultra"})

	// One open challenge per player and mode.
	status, _ = doJSON(t, ts, http.MethodPost, "/challenges",
		map[string]string{"playerId": "alice", "mode": "ultra"})
	if status != http.StatusConflict {
		t.Errorf("duplicate challenge: status %d, want 409", status)
	}

	// Joining your own challenge is refused.
	status, _ = doJSON(t, ts, http.MethodPost, "/challenges/join", map[string]string{
		"joiningPlayerId": "alice",
		"targetPlayerId":  "alice",
		"mode":            "ultra",
		"playType":        "simultaneous",
	})
	if status != http.StatusConflict {
		t.Errorf("self-join: status %d, want 409", status)
	}

	// Cancel, then join: the offer is gone.
	status, _ = doJSON(t, ts, http.MethodDelete, "/challenges",
		map[string]string{"playerId": "alice"})
	if status != http.StatusNoContent {
		t.Errorf("cancel: status %d, want 204", status)
	}
	status, _ = doJSON(t, ts, http.MethodPost, "/challenges/join", map[string]string{
		"joiningPlayerId": "bob",
		"targetPlayerId":  "alice",
		"mode":            "ultra",
		"playType":        "simultaneous",
	})
	if status != http.StatusNotFound {
		t.Errorf("join after cancel: status %d, want 404", status)
	}
}

func TestSessionQueryDuringPlay(t *testing.T) {
	ts := newTestServer(t)
	registerPlayer(t, ts, "alice", "Alice", "s1")
	registerPlayer(t, ts, "bob", "Bob", "s2")

	doJSON(t, ts, http.MethodPost, "/challenges",
		map[string]string{"playerId": "alice", "mode": "sprint"})
	_, body := doJSON(t, ts, http.MethodPost, "/challenges/join", map[string]string{
		"joiningPlayerId": "bob",
		"targetPlayerId":  "alice",
		"mode":            "sprint",
		"playType":        "turn_based",
	})
	var sess map[string]any
	json.Unmarshal(body, &sess)
	sessionID := sess["sessionId"].(string)

	// Poll the session while the turns land.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			status, _ := doJSON(t, ts, http.MethodGet, "/sessions/"+sessionID, nil)
			if status != http.StatusOK && status != http.StatusGone {
				t.Errorf("mid-play query: status %d", status)
				return
			}
		}
	}()

	doJSON(t, ts, http.MethodPost, fmt.Sprintf("/sessions/%s/turn", sessionID),
		map[string]any{"playerId": "bob", "score": 1000, "level": 2, "lines": 8})
	status, body := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/sessions/%s/turn", sessionID),
		map[string]any{"playerId": "alice", "score": 2000, "level": 3, "lines": 12})
	close(stop)
	<-done

	if status != http.StatusOK {
		t.Fatalf("second turn: status %d, body %s", status, body)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, body := doJSON(t, ts, http.MethodGet, "/health", nil)
	if status != http.StatusOK {
		t.Fatalf("health: status %d", status)
	}
	var health map[string]string
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" || health["database"] != "not configured" {
		t.Errorf("health = %s", body)
	}
}
