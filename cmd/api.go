package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fradiavoloinvoice/fradiavolo-backend/config"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/api"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/artifact"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/cache"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/ddt"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/directory"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/metrics"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/notify"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/rowstore"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/search"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/services"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/tracing"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for invoice confirmation, discrepancy reports and stock transfers`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	var elasticClient *search.ElasticClient
	if cfg.Elastic.URL != "" {
		elasticClient, err = search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search")
			elasticClient = nil
		}
	}

	var notifier notify.Notifier
	if cfg.Notifier.ConnectionString != "" {
		serviceBus, err := notify.NewServiceBusNotifier(cfg.Notifier)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Service Bus notifier, continuing without notifications")
		} else {
			notifier = serviceBus
			defer func() {
				if err := serviceBus.Close(); err != nil {
					log.Warn().Err(err).Msg("Service Bus close error")
				}
			}()
		}
	}

	dir := directory.New(store, redisCache)
	if err := dir.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial directory refresh incomplete")
	}

	artifactDir, err := artifact.NewLocalDirectory(cfg.ArtifactDir)
	if err != nil {
		return err
	}
	artifacts := artifact.NewManager(artifactDir, dir)

	metricsCollector := metrics.NewMetrics()
	parser := ddt.Parser{StrictQuantities: cfg.StrictQuantities}

	var indexer services.Indexer
	if elasticClient != nil {
		indexer = elasticClient
	}

	invoiceService := services.NewInvoiceService(store, artifacts, notifier, indexer, dir, parser, metricsCollector)
	movementService := services.NewMovementService(store, dir)

	server := api.NewServer(cfg, api.Deps{
		Invoices:  invoiceService,
		Movements: movementService,
		Artifacts: artifacts,
		Directory: dir,
		Elastic:   elasticClient,
		Metrics:   metricsCollector,
		Tracer:    tracer,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
