package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := LoadConfig()
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("db", cfg.DBPath).
		Str("rabbit", cfg.RabbitURL).
		Dur("wait", cfg.BorrowWait()).
		Msg("starting loans service")

	if err := os.MkdirAll("data", 0o755); err != nil {
		log.Fatal().Err(err).Msg("create data dir")
	}

	repo, err := NewRepository(cfg.DBPath)
	must(err)
	defer repo.Close()

	rabbit, err := NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
	must(err)
	defer rabbit.Close()

	orch := NewOrchestrator(NewSequence(repo.DB), repo, rabbit, cfg.BorrowWait())
	must(rabbit.Consume("loans", orch.HandleEvent))
	log.Info().Msg("bus consumer started")

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewServer(orch, repo, rabbit, rabbit).Handler(),
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Warn().Msg("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Info().Msg("http listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("serve")
	}
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
