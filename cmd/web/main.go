package main

import (
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"

	"github.com/AdamBeresnev/op-tournament-engine/internal/config"
	"github.com/AdamBeresnev/op-tournament-engine/internal/db"
	"github.com/AdamBeresnev/op-tournament-engine/internal/service"
	"github.com/AdamBeresnev/op-tournament-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	database, err := db.InitDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// A fixed seed replays the same random draws
	seed1, seed2 := rand.Uint64(), rand.Uint64()
	if cfg.DrawSeed != nil {
		seed1, seed2 = *cfg.DrawSeed, *cfg.DrawSeed
	}
	rng := rand.New(rand.NewPCG(seed1, seed2))

	tournamentStore := store.NewTournamentStore(database)
	venueStore := store.NewVenueStore(database)
	statsStore := store.NewStatsStore(database)

	h := &handlers{
		tournaments: service.NewTournamentService(database, tournamentStore, venueStore, statsStore),
		entries:     service.NewEntryService(database, tournamentStore),
		brackets:    service.NewBracketService(database, tournamentStore, rng),
		matches:     service.NewMatchService(database, tournamentStore, venueStore, statsStore),
	}

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	slog.Info("server starting", "addr", addr)
	if err := http.ListenAndServe(addr, newRouter(h)); err != nil {
		log.Fatal(err)
	}
}
