package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"

	"blockduel/internal/arena"
	"blockduel/internal/challenges"
	"blockduel/internal/config"
	"blockduel/internal/db"
	"blockduel/internal/live"
	"blockduel/internal/matches"
	"blockduel/internal/metrics"
	"blockduel/internal/players"
	"blockduel/internal/sessions"
	"blockduel/internal/turnbased"
	"blockduel/internal/versus"
)

func Run() error {
	appCfg := config.Load()

	// Optional database connection
	var database *db.DB
	if appCfg.DatabaseURL != "" {
		d, err := db.Connect(appCfg.DatabaseURL)
		if err != nil {
			log.Printf("[DB] Failed to connect: %v (running without database)\n", err)
		} else {
			if err := d.Migrate(); err != nil {
				log.Printf("[DB] Migration failed: %v\n", err)
			}
			database = d
			log.Println("[DB] Database connected and migrations applied")
		}
	} else {
		log.Println("[DB] DATABASE_URL not set, running without database")
	}

	dir := players.NewDirectory()
	queueStore := challenges.NewStore()
	sessionStore := sessions.NewStore()
	recorder := matches.NewRecorder(database)
	if err := recorder.Load(); err != nil {
		log.Printf("[Matches] History load failed: %v\n", err)
	}

	hub := live.NewHub()
	srv := &Server{
		Engine:    arena.New(queueStore, sessionStore, dir, recorder, database),
		TurnBased: turnbased.New(sessionStore, recorder, database),
		Versus: versus.New(sessionStore, recorder, hub, dir.VerifySecret, database,
			versus.Config{OnEnded: hub.NotifyEnded}),
		Players: dir,
		Hub:     hub,
		DB:      database,
	}

	startSweeper(queueStore, time.Duration(appCfg.ChallengeTTLMin)*time.Minute)

	mux := srv.routes()
	addr := "0.0.0.0:" + appCfg.Port
	fmt.Printf("Server listening on http://localhost:%s\n", appCfg.Port)
	return http.ListenAndServe(addr, mux)
}

// startSweeper retires challenge entries nobody answered.
func startSweeper(queueStore *challenges.Store, ttl time.Duration) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Queue] Scheduler init failed: %v (stale sweep disabled)\n", err)
		return
	}
	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if n := queueStore.SweepStale(ttl); n > 0 {
				log.Printf("[Queue] Swept %d stale challenges\n", n)
			}
		}),
	)
	if err != nil {
		log.Printf("[Queue] Sweep job failed: %v\n", err)
		return
	}
	sched.Start()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/players", s.handleRegisterPlayer)
	mux.HandleFunc("/challenges", s.handleChallenges)
	mux.HandleFunc("/challenges/join", s.handleJoin)
	mux.HandleFunc("/sessions/pending", s.handlePending)
	mux.HandleFunc("/sessions/{id}", s.handleSessionState)
	mux.HandleFunc("/sessions/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("/sessions/{id}/turn", s.handleTurn)
	mux.HandleFunc("/sessions/{id}/board", s.handleBoard)
	mux.HandleFunc("/matches", s.handleMatches)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
