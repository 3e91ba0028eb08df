package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/albertopd/secureprompt/internal/access"
	"github.com/albertopd/secureprompt/internal/audit"
	"github.com/albertopd/secureprompt/internal/config"
	"github.com/albertopd/secureprompt/internal/roster"
	"github.com/albertopd/secureprompt/internal/scrub"
	"github.com/albertopd/secureprompt/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SecurePrompt HTTP API",
	Long: `Starts the HTTP API server: scrub and descrub endpoints, the audit
trail, and the nightly retention sweeper.

API keys are taken from the api_keys config map (SECUREPROMPT_API_KEYS);
each key maps to "corp_key:role".`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "listen address (overrides listen_addr config)")
}

// buildEngine assembles the scrub engine from operator config: embedded
// recognizer defaults, the optional override file, the optional employee
// roster, and the score floor.
func buildEngine(cfg *config.Config) (*scrub.Engine, error) {
	registry, err := scrub.NewDefaultRegistry(cfg.PatternsFile)
	if err != nil {
		return nil, fmt.Errorf("building recognizer registry: %w", err)
	}

	var opts []scrub.Option
	if cfg.MinScore > 0 {
		opts = append(opts, scrub.WithMinScore(cfg.MinScore))
	}
	if cfg.RosterCSV != "" {
		det, err := roster.Load(cfg.RosterCSV)
		if err != nil {
			return nil, fmt.Errorf("loading employee roster: %w", err)
		}
		opts = append(opts, scrub.WithModelDetector(roster.ModelRef, det))
		log.Info().Str("path", cfg.RosterCSV).Msg("Employee roster loaded")
	}

	return scrub.NewEngine(registry, opts...), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	cfg.WarnIfDefaultKeys()

	if len(cfg.APIKeys) == 0 {
		log.Warn().Msg("No API keys configured (SECUREPROMPT_API_KEYS) — all requests will be rejected")
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	accessEngine, err := access.NewEngine(ctx)
	if err != nil {
		return fmt.Errorf("compiling access policy: %w", err)
	}

	store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey, cfg.CryptoKey)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer store.Close()

	sweeper, err := audit.NewSweeper(store, cfg.RetentionDays)
	if err != nil {
		return fmt.Errorf("creating retention sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := server.NewServer(
		engine,
		accessEngine,
		store,
		cfg.APIKeys,
		server.WithRateLimiter(server.NewRateLimiter(cfg.GlobalRPM, cfg.PerKeyRPM)),
	)

	addr := cfg.ListenAddr
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		addr = v
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("SecurePrompt API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
