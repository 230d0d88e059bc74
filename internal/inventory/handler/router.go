package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bagtrack/bagtrack-backend/pkg/config"
	"github.com/bagtrack/bagtrack-backend/pkg/httputil"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const apiPrefix = "/api/v1/inventory"

// HealthCheck reports the state of one dependency
type HealthCheck func(ctx context.Context) map[string]string

// RouterConfig collects what the HTTP surface needs
type RouterConfig struct {
	Service        string
	Units          *UnitHandler
	Scan           *ScanHandler
	Stock          *StockHandler
	Auth           config.AuthConfig
	AllowedOrigins []string
	// Health maps a dependency name to its check. A check reporting
	// status "down" degrades the whole service.
	Health map[string]HealthCheck
	Logger *logger.Logger
}

// NewRouter builds the service router
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(cfg.Logger))
	r.Use(httputil.Recoverer(cfg.Logger))
	r.Use(middleware.Timeout(60 * time.Second))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-Request-ID",
			httputil.HeaderOperatorID, httputil.HeaderTerminalID,
		},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Use(httputil.OperatorMiddleware(cfg.Auth, "/health", apiPrefix+"/health"))

	health := healthHandler(cfg.Service, cfg.Health)
	r.Get("/health", health)

	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/health", health)

		r.Route("/imports", func(r chi.Router) {
			r.Post("/", cfg.Units.CreateImport)
			r.Get("/{id}", cfg.Units.GetImport)
		})

		r.Route("/units", func(r chi.Router) {
			r.Post("/", cfg.Units.CreateUnits)
			r.Get("/barcode/{barcode}", cfg.Units.GetByBarcode)
			r.Get("/{id}", cfg.Units.GetUnit)
			r.Get("/{id}/history", cfg.Units.History)
			r.Put("/{id}/status", cfg.Units.UpdateStatus)
		})

		r.Get("/barcodes/next", cfg.Units.PreviewBarcodes)

		r.Route("/scan", func(r chi.Router) {
			r.Post("/", cfg.Scan.Scan)
			r.Post("/confirm", cfg.Scan.Confirm)
			r.Post("/cancel", cfg.Scan.Cancel)
			r.Get("/pending", cfg.Scan.Pending)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/", cfg.Stock.Levels)
			r.Post("/recompute", cfg.Stock.Recompute)
		})
	})

	return r
}

func healthHandler(serviceName string, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		code := http.StatusOK
		body := map[string]interface{}{
			"service": serviceName,
		}
		for name, check := range checks {
			result := check(ctx)
			body[name] = result
			if result["status"] == "down" {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		body["status"] = status

		httputil.JSON(w, code, body)
	}
}
