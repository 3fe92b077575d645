package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliseohh/anydownbot/internal/bot"
	"github.com/eliseohh/anydownbot/internal/downloader"
	"github.com/eliseohh/anydownbot/internal/health"
	"github.com/eliseohh/anydownbot/internal/logger"
	"github.com/eliseohh/anydownbot/internal/queue"
	"github.com/eliseohh/anydownbot/internal/store"
)

const shutdownGrace = 30 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g)
		},
	}
}

func runServe(ctx context.Context, g *globalFlags) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.L()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.InitSchema(); err != nil {
		return err
	}

	// Downloads outlive the signal context so Stop can drain them.
	pool := queue.New(logger.WithLogger(context.Background(), log), cfg.Workers, cfg.QueueSize)

	b, err := bot.New(bot.Config{
		Token:         cfg.Token,
		PollTimeout:   time.Duration(cfg.PollTimeout),
		UploadTimeout: time.Duration(cfg.UploadTimeout),
		MaxVideoBytes: cfg.MaxVideoBytes(),
	}, bot.Deps{
		Downloader: downloader.New(cfg.DownloaderOptions()),
		History:    db,
		Queue:      pool,
		Logger:     log,
	})
	if err != nil {
		_ = pool.Stop(context.Background())
		return fmt.Errorf("bot init failed: %w", err)
	}

	if cfg.HealthAddr != "" {
		app := health.NewApp(health.NewHandler(pool, db))
		go func() {
			if err := app.Listen(cfg.HealthAddr); err != nil {
				log.Error("health.listen_failed", "addr", cfg.HealthAddr, "err", err)
			}
		}()
		defer app.Shutdown()
		log.Info("health.listening", "addr", cfg.HealthAddr)
	}

	go b.Start()
	<-ctx.Done()
	log.Info("bot.stopping")
	b.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := pool.Stop(stopCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.Warn("bot.drain_timeout", "grace", shutdownGrace)
	}
	log.Info("bot.stopped", "stats", pool.Stats())
	return nil
}
