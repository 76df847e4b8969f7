package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tripdesk/backend/internal/auth"
	"github.com/tripdesk/backend/internal/config"
	"github.com/tripdesk/backend/internal/db"
	httpapi "github.com/tripdesk/backend/internal/http"
	"github.com/tripdesk/backend/internal/notify"
	"github.com/tripdesk/backend/internal/service"
)

var (
	migrateOnStart bool
	tokenSubject   string
	tokenRole      string
	tokenTTL       time.Duration
	tokenPerms     []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "tripdesk",
	Short:        "Travel agency back office API",
	RunE:         runServe,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the notification dispatcher",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for local testing",
	RunE:  runToken,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&migrateOnStart, "migrate", false, "apply migrations before serving")
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "user id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "admin", "admin or salesRep")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringSliceVar(&tokenPerms, "permission", nil, "extra permission grant, repeatable")
	_ = tokenCmd.MarkFlagRequired("sub")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func newLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return log.Level(level).With().Str("service", "tripdesk").Logger()
}

// openStore returns the configured store, its outbox view and a close func.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.Store, notify.Store, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		m := db.NewMemoryStore()
		return m, m, func() {}, nil
	case "postgres", "":
		if cfg.DatabaseURL == "" {
			return nil, nil, nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		s, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if migrateOnStart {
			if _, err := s.Migrate(ctx, logger); err != nil {
				s.Close()
				return nil, nil, nil, err
			}
		}
		return s, s, s.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET is empty, every authenticated request will be rejected")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, outbox, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open store")
		return err
	}
	defer closeStore()

	var sender notify.Sender = notify.LogSender{Logger: logger}
	if cfg.SMTPHost != "" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		logger.Info().Msg("SMTP_HOST not set, notifications are logged only")
	}
	dispatcher := &notify.Dispatcher{
		Store:       outbox,
		Sender:      sender,
		Logger:      logger.With().Str("component", "notify").Logger(),
		BaseURL:     cfg.AppBaseURL,
		Interval:    cfg.NotifyPollInterval,
		BatchSize:   cfg.NotifyBatchSize,
		MaxAttempts: cfg.NotifyMaxAttempts,
	}
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		dispatcher.Run(ctx)
	}()

	h := httpapi.NewHandler(cfg, store, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.Router(cfg, h, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		stop()
		<-dispatched
		return err
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-dispatched
	logger.Info().Msg("server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	store, err := db.New(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Migrate(cmd.Context(), logger)
	if err != nil {
		return err
	}
	logger.Info().Int("applied", n).Msg("migrations complete")
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	tok, err := auth.IssueToken([]byte(cfg.JWTSecret), auth.Principal{ID: tokenSubject, Role: tokenRole, Permissions: tokenPerms}, tokenTTL, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
