// Package live connects remote board devices to the engine over WebSockets.
// Each connection carries one player's board in one session: progress and
// game-over events flow in, start/stop control and the final verdict flow
// out. A Feed satisfies board.Simulation, so the versus coordinator drives
// remote boards the same way it would drive in-process ones.
package live

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/coder/websocket"

	"blockduel/internal/board"
	"blockduel/internal/game"
)

// ClientMessage is the JSON structure received from board devices.
type ClientMessage struct {
	Type  string `json:"t"` // "progress" or "game_over"
	Score int    `json:"s,omitempty"`
	Level int    `json:"l,omitempty"`
	Lines int    `json:"n,omitempty"`
}

// ServerMessage is the JSON structure sent to board devices.
type ServerMessage struct {
	Type     string `json:"t"` // "start", "stop", "ended"
	WinnerID string `json:"w,omitempty"`
}

// Feed is one player's board link. It buffers control messages until the
// device connects, so the coordinator can start a board whose socket is
// still on its way.
type Feed struct {
	SessionID string
	PlayerID  string

	mu      sync.Mutex
	obs     board.Observer
	send    chan []byte
	pending []ServerMessage
	bound   bool
}

func newFeed(sessionID, playerID string) *Feed {
	return &Feed{
		SessionID: sessionID,
		PlayerID:  playerID,
		send:      make(chan []byte, 16),
	}
}

// Attach registers the single consumer for this board's events.
func (f *Feed) Attach(obs board.Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = obs
}

func (f *Feed) Start() { f.control(ServerMessage{Type: "start"}) }
func (f *Feed) Stop()  { f.control(ServerMessage{Type: "stop"}) }

func (f *Feed) control(msg ServerMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.bound {
		f.pending = append(f.pending, msg)
		return
	}
	f.push(msg)
}

// push queues an outbound message. Caller holds f.mu. Non-blocking: a
// device that stopped reading loses messages rather than stalling the hub.
func (f *Feed) push(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Live] Marshal error: %v\n", err)
		return
	}
	select {
	case f.send <- data:
	default:
	}
}

// deliver routes one inbound message to the observer.
func (f *Feed) deliver(msg ClientMessage) {
	f.mu.Lock()
	obs := f.obs
	f.mu.Unlock()
	if obs == nil {
		return
	}
	stats := game.Stats{Score: msg.Score, Level: msg.Level, Lines: msg.Lines}
	switch msg.Type {
	case "progress":
		obs.OnProgress(stats)
	case "game_over":
		obs.OnGameOver(stats)
	}
}

// bind marks the device connected and flushes buffered control messages.
func (f *Feed) bind() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound = true
	for _, msg := range f.pending {
		f.push(msg)
	}
	f.pending = nil
}

// WritePump reads from the send channel and writes to the connection.
func (f *Feed) WritePump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-f.send:
			if !ok {
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

// Hub manages the board feeds, keyed by session and player.
type Hub struct {
	mu    sync.Mutex
	feeds map[string]map[string]*Feed // session id -> player id -> feed
}

func NewHub() *Hub {
	return &Hub{
		feeds: make(map[string]map[string]*Feed),
	}
}

// Board returns the simulation handle for one player's board, creating the
// feed if the device hasn't connected yet. Implements board.Provider.
func (h *Hub) Board(sessionID, playerID string) (board.Simulation, error) {
	return h.feed(sessionID, playerID), nil
}

func (h *Hub) feed(sessionID, playerID string) *Feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	byPlayer, ok := h.feeds[sessionID]
	if !ok {
		byPlayer = make(map[string]*Feed)
		h.feeds[sessionID] = byPlayer
	}
	f, ok := byPlayer[playerID]
	if !ok {
		f = newFeed(sessionID, playerID)
		byPlayer[playerID] = f
	}
	return f
}

// NotifyEnded pushes the final verdict to both devices and drops the
// session's feeds.
func (h *Hub) NotifyEnded(sessionID, winnerID string) {
	h.mu.Lock()
	byPlayer := h.feeds[sessionID]
	delete(h.feeds, sessionID)
	h.mu.Unlock()

	for _, f := range byPlayer {
		f.mu.Lock()
		f.push(ServerMessage{Type: "ended", WinnerID: winnerID})
		f.mu.Unlock()
	}
}

// HandleConn runs one device connection until it drops. Inbound messages go
// to the feed's observer; the write pump drains the outbound queue.
func (h *Hub) HandleConn(ctx context.Context, conn *websocket.Conn, sessionID, playerID string) {
	f := h.feed(sessionID, playerID)
	f.bind()

	go f.WritePump(ctx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[Live] Unmarshal error from %s/%s: %v\n", sessionID, playerID, err)
			continue
		}
		f.deliver(msg)
	}
}
