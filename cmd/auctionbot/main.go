package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/bot"
	"github.com/jensholdgaard/discord-auction-bot/internal/bot/commands"
	"github.com/jensholdgaard/discord-auction-bot/internal/bot/publish"
	"github.com/jensholdgaard/discord-auction-bot/internal/cache"
	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/health"
	"github.com/jensholdgaard/discord-auction-bot/internal/httpapi"
	"github.com/jensholdgaard/discord-auction-bot/internal/leader"
	"github.com/jensholdgaard/discord-auction-bot/internal/participant"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
	"github.com/jensholdgaard/discord-auction-bot/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/discord-auction-bot/internal/store/memstore"
	_ "github.com/jensholdgaard/discord-auction-bot/internal/store/postgres"
	_ "github.com/jensholdgaard/discord-auction-bot/internal/store/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to database", slog.String("driver", cfg.Database.Driver))

	checkers := []health.Checker{{Name: "database", Check: repos.Ping}}

	session, err := bot.NewSession(cfg.Discord)
	if err != nil {
		return err
	}
	publisher := publish.New(session, cfg.Discord.LogsChannelID, logger)
	dispatcher := auction.NewDispatcher(publisher, publisher, publisher, cfg.Auction.DispatchQueue, logger, tp.TracerProvider)

	people := participant.NewManager(repos, logger, tp.TracerProvider)
	opts := []auction.Option{
		auction.WithCooldown(cfg.Auction.Cooldown),
		auction.WithSink(dispatcher),
	}
	if cfg.Cache.RedisAddr != "" {
		client := cache.NewClient(cfg.Cache)
		defer client.Close()
		listing := cache.NewListing(client, cfg.Cache.TTL, tp.TracerProvider)
		opts = append(opts, auction.WithListingCache(listing))
		checkers = append(checkers, health.Checker{Name: "cache", Check: listing.Ping})
		logger.InfoContext(ctx, "listing cache enabled", slog.String("addr", cfg.Cache.RedisAddr))
	}
	auctionMgr := auction.NewManager(repos, people, logger, tp.TracerProvider, tp.MeterProvider, clk, opts...)
	sweeper := auction.NewSweeper(auctionMgr, cfg.Auction.SweepInterval, logger, tp.TracerProvider)
	handlers := commands.NewHandlers(auctionMgr, people, session, cfg.Discord, cfg.Auction, clk, logger, tp.TracerProvider)

	// The HTTP API serves probes and read-only listings on every replica.
	healthHandler := health.NewHandler(clk, checkers...)
	router := httpapi.NewRouter(cfg.Telemetry.ServiceName, auctionMgr, healthHandler, logger, tp.TracerProvider)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	// lead is the work only one replica may do: take commands, finalize
	// expired auctions and deliver side effects.
	lead := func(ctx context.Context) error {
		discordBot := bot.New(session, cfg.Discord, handlers, logger)
		if err := discordBot.Start(ctx); err != nil {
			return fmt.Errorf("starting bot: %w", err)
		}
		defer func() {
			if stopErr := discordBot.Stop(); stopErr != nil {
				logger.Error("bot shutdown error", slog.Any("error", stopErr))
			}
		}()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			dispatcher.Run(ctx)
			return nil
		})
		g.Go(func() error {
			sweeper.Run(ctx)
			return nil
		})

		healthHandler.SetReady(true)
		defer healthHandler.SetReady(false)
		logger.InfoContext(ctx, "auctionbot is running", slog.String("version", version))

		return g.Wait()
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, func(ctx context.Context) {
			if err := lead(ctx); err != nil {
				logger.ErrorContext(ctx, "leader work failed", slog.Any("error", err))
				cancel()
			}
		}, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		})
		if leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else if err := lead(ctx); err != nil {
		return err
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
