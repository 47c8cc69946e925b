package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/ironsheep/pixel-palette/internal/config"
	"github.com/ironsheep/pixel-palette/internal/palette"
	"github.com/ironsheep/pixel-palette/internal/pipeline"
	"github.com/ironsheep/pixel-palette/internal/server"
	"github.com/ironsheep/pixel-palette/internal/storage"
	"github.com/ironsheep/pixel-palette/internal/web"
)

const shutdownTimeout = 10 * time.Second

// newProcessor wires the pipeline to the configured palette directory and
// upload store.
func newProcessor(cfg *config.Config) (*pipeline.Processor, error) {
	p, err := pipeline.New(cfg.PipelineSettings())
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.Palettes.Dir); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Palettes.Dir).Msg("palette directory is not readable")
	}
	lib := palette.NewLibrary(os.DirFS(cfg.Palettes.Dir))

	store, err := storage.New(cfg.Storage.Root, cfg.Storage.TTL, storage.WithMaxBytes(cfg.Storage.MaxUploadBytes))
	if err != nil {
		return nil, err
	}

	return pipeline.NewProcessor(p, lib, store, cfg.Encoding()), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(args []string, _, stderr io.Writer) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	cfg, err := loadConfig(fs, args, stderr)
	if err != nil {
		return err
	}

	proc, err := newProcessor(cfg)
	if err != nil {
		return err
	}
	handler, err := web.New(proc, web.Options{MaxUploadBytes: cfg.Storage.MaxUploadBytes})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	go proc.Store().Run(ctx, cfg.Storage.SweepInterval)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("palettes", cfg.Palettes.Dir).
			Str("storage", cfg.Storage.Root).
			Str("version", Version).
			Msg("serving web front end")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runMCP(args []string, _, stderr io.Writer) error {
	fs := pflag.NewFlagSet("mcp", pflag.ContinueOnError)
	cfg, err := loadConfig(fs, args, stderr)
	if err != nil {
		return err
	}

	proc, err := newProcessor(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	go proc.Store().Run(ctx, cfg.Storage.SweepInterval)

	log.Debug().Str("version", Version).Str("commit", GitCommit).Msg("starting MCP server")
	return server.New(proc, Version).Run(ctx)
}
