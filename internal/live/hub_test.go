package live

import (
	"encoding/json"
	"testing"

	"blockduel/internal/game"
)

type recordingObserver struct {
	progress []game.Stats
	final    []game.Stats
}

func (r *recordingObserver) OnProgress(st game.Stats) { r.progress = append(r.progress, st) }
func (r *recordingObserver) OnGameOver(st game.Stats) { r.final = append(r.final, st) }

func TestFeed_DeliverRoutesToObserver(t *testing.T) {
	h := NewHub()
	sim, err := h.Board("s1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	obs := &recordingObserver{}
	sim.Attach(obs)

	f := h.feed("s1", "p1")
	f.deliver(ClientMessage{Type: "progress", Score: 500, Level: 2, Lines: 5})
	f.deliver(ClientMessage{Type: "game_over", Score: 900, Level: 3, Lines: 9})
	f.deliver(ClientMessage{Type: "bogus", Score: 1})

	if len(obs.progress) != 1 || obs.progress[0] != (game.Stats{Score: 500, Level: 2, Lines: 5}) {
		t.Errorf("progress events = %+v", obs.progress)
	}
	if len(obs.final) != 1 || obs.final[0].Score != 900 {
		t.Errorf("game over events = %+v", obs.final)
	}
}

func TestFeed_DeliverWithoutObserverIsHarmless(t *testing.T) {
	h := NewHub()
	f := h.feed("s1", "p1")
	f.deliver(ClientMessage{Type: "progress", Score: 1})
}

func TestFeed_ControlBufferedUntilBind(t *testing.T) {
	h := NewHub()
	sim, _ := h.Board("s1", "p1")

	// Coordinator starts the board before the device has connected.
	sim.Start()

	f := h.feed("s1", "p1")
	select {
	case <-f.send:
		t.Fatal("nothing should be queued before the device binds")
	default:
	}

	f.bind()

	select {
	case data := <-f.send:
		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != "start" {
			t.Errorf("flushed message = %+v, want start", msg)
		}
	default:
		t.Fatal("buffered start should flush on bind")
	}
}

func TestFeed_ControlAfterBindGoesStraightOut(t *testing.T) {
	h := NewHub()
	f := h.feed("s1", "p1")
	f.bind()

	f.Stop()

	select {
	case data := <-f.send:
		var msg ServerMessage
		json.Unmarshal(data, &msg)
		if msg.Type != "stop" {
			t.Errorf("message = %+v, want stop", msg)
		}
	default:
		t.Fatal("stop should be queued immediately once bound")
	}
}

func TestHub_FeedsAreKeyedBySessionAndPlayer(t *testing.T) {
	h := NewHub()
	a := h.feed("s1", "p1")
	b := h.feed("s1", "p2")
	c := h.feed("s2", "p1")

	if a == b || a == c {
		t.Error("distinct players and sessions should get distinct feeds")
	}
	if h.feed("s1", "p1") != a {
		t.Error("same keys should return the same feed")
	}
}

func TestHub_NotifyEnded(t *testing.T) {
	h := NewHub()
	fA := h.feed("s1", "p1")
	fB := h.feed("s1", "p2")
	fA.bind()
	fB.bind()

	h.NotifyEnded("s1", "p2")

	for _, f := range []*Feed{fA, fB} {
		select {
		case data := <-f.send:
			var msg ServerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.Type != "ended" || msg.WinnerID != "p2" {
				t.Errorf("message = %+v, want ended/p2", msg)
			}
		default:
			t.Errorf("feed %s did not get the verdict", f.PlayerID)
		}
	}

	// The session's feeds are dropped: a new ask makes a fresh feed.
	if h.feed("s1", "p1") == fA {
		t.Error("feeds should be released after NotifyEnded")
	}
}
