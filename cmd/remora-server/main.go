// Command remora-server provides a REST API for modified base calling.
//
// Usage:
//
//	remora-server [options]
//
// Options:
//
//	-config      YAML configuration file
//	-addr        Address to listen on (overrides server.addr)
//	-checkpoint  Checkpoint file to serve; otherwise server.checkpoint is
//	             loaded from the configured store
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aria-lang/remora-go/api/handlers"
	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/logging"
	"github.com/aria-lang/remora-go/pkg/remora"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	addr := flag.String("addr", "", "Address to listen on")
	ckPath := flag.String("checkpoint", "", "Checkpoint file to serve")
	flag.Parse()

	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg, err := remora.LoadConfig(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("loading configuration")
	}
	log, err := logging.FromConfig(cfg.Log, os.Stderr)
	if err != nil {
		boot.Fatal().Err(err).Msg("configuring logger")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	server, ck, err := newServer(cfg, *ckPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("building server")
	}

	// Graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server is shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not shut down gracefully")
		}
		close(done)
	}()

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("checkpoint", ck.ID).
		Str("arch", ck.Arch()).
		Strs("classes", ck.Classes).
		Msg("remora API server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Str("addr", cfg.Server.Addr).Msg("could not listen")
	}

	<-done
	log.Info().Msg("server stopped")
}

// newServer loads the checkpoint and wires the inference API around it.
func newServer(cfg *remora.Config, ckPath string, log zerolog.Logger) (*http.Server, *remora.Checkpoint, error) {
	ck, err := loadCheckpoint(cfg, ckPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	engine, err := remora.NewEngine(ck, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building inference engine: %w", err)
	}
	aligner, err := cfg.Align.Aligner()
	if err != nil {
		return nil, nil, fmt.Errorf("building aligner: %w", err)
	}
	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handlers.NewRouter(log, handlers.NewInference(engine, aligner), cfg.Server.Timeout),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}, ck, nil
}

func loadCheckpoint(cfg *remora.Config, path string) (*remora.Checkpoint, error) {
	if path != "" {
		return remora.ReadCheckpointFile(path)
	}
	ctx := context.Background()
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer checkpoint.CloseIfSupported(store)
	return checkpoint.Load(ctx, store, cfg.Server.Checkpoint)
}
