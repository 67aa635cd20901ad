package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fradiavoloinvoice/fradiavolo-backend/config"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/cache"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/directory"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that refreshes the store, operator and product caches from the spreadsheet`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := rowstore.NewSheetsStore(ctx, cfg.Sheets)
	if err != nil {
		return errors.Wrap(err, "failed to connect to the spreadsheet")
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}
	defer func() {
		if err := redisCache.Close(); err != nil {
			log.Warn().Err(err).Msg("Redis close error")
		}
	}()

	dir := directory.New(store, redisCache)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}

	refresh := func() {
		if err := dir.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("Directory refresh failed")
			return
		}
		log.Info().Msg("Directory caches refreshed")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.RefreshInterval),
		gocron.NewTask(refresh),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule directory refresh")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Start()
		<-ctx.Done()
		return scheduler.Shutdown()
	})

	log.Info().Dur("interval", cfg.RefreshInterval).Msg("Worker started")

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "worker error")
	}

	log.Info().Msg("Shutting down worker")
	return nil
}
