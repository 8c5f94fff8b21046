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

	"go.uber.org/zap"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/config"
	"gottabike.org/internal/guild"
	"gottabike.org/internal/httpapi"
	"gottabike.org/internal/migrate"
	"gottabike.org/internal/obs"
	"gottabike.org/internal/roster"
	"gottabike.org/internal/settings"
	"gottabike.org/internal/store/pg"
	"gottabike.org/internal/tasks"
	"gottabike.org/internal/team"
	"gottabike.org/internal/verification"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

const filterPurgeInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	obs.SetLogger(log)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	if err := run(cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	store, err := pg.Open(cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		applied, err := migrate.NewManager(store.DB(), nil).Up(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations applied", zap.Strings("files", applied))
	}

	settingsSvc, err := settings.NewService(store, time.Now)
	if err != nil {
		return err
	}
	accounts, err := auth.NewService(store, settingsSvc)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer(cfg.AuthSecret, auth.WithAccessTTL(cfg.AccessTTL), auth.WithMagicTTL(cfg.MagicTTL))
	if err != nil {
		return err
	}
	verif, err := verification.NewService(store, settingsSvc, time.Now)
	if err != nil {
		return err
	}
	readiness := roster.ReadinessFunc(func(ctx context.Context) (func(string, string) bool, error) {
		ev, err := verif.Evaluator(ctx)
		if err != nil {
			return nil, err
		}
		return ev.RaceReady, nil
	})
	rosterSvc, err := roster.NewService(store, store, store, readiness,
		roster.WithServiceLogger(log.Named("roster")),
		roster.WithFilterTTL(cfg.FilterTTL),
		roster.WithAnomalyHook(obs.RosterAnomaly),
	)
	if err != nil {
		return err
	}
	guildSvc, err := guild.NewService(store, store, log.Named("guild"), time.Now)
	if err != nil {
		return err
	}
	teamSvc, err := team.NewService(store, store, log.Named("team"), time.Now)
	if err != nil {
		return err
	}

	var publisher tasks.Publisher = tasks.NewLogPublisher(log.Named("tasks"))
	if cfg.NATSURL != "" {
		nc, err := tasks.Connect(cfg.NATSURL, "gottabike-api", log.Named("nats"))
		if err != nil {
			return err
		}
		defer nc.Drain()
		publisher = tasks.NewNATSPublisher(nc, cfg.NATSPrefix, log.Named("tasks"))
	}

	api, err := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Services{
		Accounts:     accounts,
		Tokens:       tokens,
		Verification: verif,
		Roster:       rosterSvc,
		Guild:        guildSvc,
		Settings:     settingsSvc,
		Team:         teamSvc,
		Tasks:        publisher,
	},
		httpapi.WithLogger(log),
		httpapi.WithBotAPIKey(cfg.BotAPIKey),
		httpapi.WithPublicURL(cfg.PublicURL),
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
	)
	if err != nil {
		return err
	}

	go purgeFilters(ctx, rosterSvc, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting gottabike-api", zap.String("version", version), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

func purgeFilters(ctx context.Context, svc *roster.Service, log *zap.Logger) {
	ticker := time.NewTicker(filterPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredFilters(ctx)
			if err != nil {
				log.Warn("purge roster filters", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged roster filters", zap.Int64("count", n))
			}
		}
	}
}
