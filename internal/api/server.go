package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/config"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/artifact"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/metrics"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/search"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/services"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/tracing"
)

// OperatorDirectory is the lookup surface the server needs from the
// directory package.
type OperatorDirectory interface {
	Operators
	Catalog
}

// Server represents the HTTP server.
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
}

// Deps are the collaborators the server routes requests into.
type Deps struct {
	Invoices  *services.InvoiceService
	Movements *services.MovementService
	Artifacts *artifact.Manager
	Directory OperatorDirectory
	Elastic   *search.ElasticClient
	Metrics   *metrics.Metrics
	Tracer    tracing.Tracer
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.Config, deps Deps) *Server {
	server := &Server{config: cfg}
	server.router = server.setupRouter(deps)
	server.httpServer = &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      server.router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}
	return server
}

// registerValidations adds the ISO-date check used by the request DTOs.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := time.Parse("2006-01-02", fl.Field().String())
			return err == nil
		})
	}
}

// setupRouter configures the HTTP router.
func (s *Server) setupRouter(deps Deps) *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidations()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(MetricsMiddleware(deps.Metrics))

	metricsHandler := NewMetricsHandler(deps.Metrics)
	router.GET("/metrics", metricsHandler.HandleGetMetrics)
	router.GET("/health", metricsHandler.HandleGetHealthCheck)

	invoiceHandler := NewInvoiceHandler(deps.Invoices, deps.Tracer)
	movementHandler := NewMovementHandler(deps.Movements)
	artifactHandler := NewArtifactHandler(deps.Artifacts)
	directoryHandler := NewDirectoryHandler(deps.Directory, deps.Elastic)

	authed := router.Group("/api", Auth(deps.Directory))
	{
		authed.GET("/invoices", invoiceHandler.List)
		authed.GET("/invoices/:id", invoiceHandler.Detail)
		authed.POST("/invoices/:id/confirm", invoiceHandler.Confirm)
		authed.PATCH("/invoices/:id", invoiceHandler.Update)
		authed.POST("/invoices/:id/errors", invoiceHandler.ReportError)
		authed.GET("/invoices/:id/artifact", invoiceHandler.Artifact)

		authed.POST("/movements", movementHandler.Create)
		authed.GET("/movements", movementHandler.List)

		authed.GET("/products", directoryHandler.Products)
	}

	admin := authed.Group("", RequireAdmin())
	{
		admin.GET("/dashboard", invoiceHandler.Dashboard)
		admin.POST("/search", directoryHandler.Search)

		admin.GET("/artifacts", artifactHandler.List)
		admin.GET("/artifacts/:name", artifactHandler.Read)
		admin.PUT("/artifacts/:name", artifactHandler.Edit)
		admin.DELETE("/artifacts/:name", artifactHandler.Delete)
	}

	return router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
