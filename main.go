package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"zwords/internal/game"
	"zwords/internal/httpserver"
	"zwords/internal/presence"
	"zwords/internal/realtime"
	"zwords/internal/store"
	"zwords/internal/words"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	dbPath := getEnv("DB_PATH", "./data/zwords.db")
	db, err := openDB(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("failed to open database")
	}
	defer db.Close()
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	st := store.NewSQLite(db)

	// Warm the word bank so the first game create does not pay the load.
	ttl := time.Duration(getEnvInt("WORDS_TTL_MINUTES", 60)) * time.Minute
	bank := words.New(st, ttl)
	warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = bank.Ensure(warmCtx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word bank")
	}
	log.Info().Interface("byLength", bank.Distribution()).Msg("word bank ready")

	gen := &game.BankGenerator{Bank: bank}
	svc := game.NewService(st, gen, log.Logger, getEnvInt("GRID_SIZE", 10), time.Now().UnixNano())

	tracker := presence.NewTracker()
	rooms := realtime.NewRooms()
	coord := realtime.NewCoordinator(svc, tracker, rooms, log.Logger)
	hub := realtime.NewHub(coord, log.Logger)
	go hub.Run(context.Background())

	srv := httpserver.New(svc, hub, rooms)
	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Str("db", dbPath).Msg("starting zwords server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" { return v }
	return def
}

func getEnvInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil { return n }
	return def
}
