// Package server wires the REST surface: signup and onboarding, the OAuth
// connect flow, the billing webhook, and the mounted MCP transport.
package server

import (
	"net/http"

	"github.com/buzzposter/buzzposter/internal/auth/apikey"
	"github.com/buzzposter/buzzposter/internal/auth/late"
	"github.com/buzzposter/buzzposter/internal/auth/quota"
	"github.com/buzzposter/buzzposter/internal/billing"
	"github.com/buzzposter/buzzposter/internal/config"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps holds everything the REST handlers need.
type Deps struct {
	Cfg     *config.Config
	DB      *gorm.DB
	Auth    *apikey.Authenticator
	Tokens  *late.Manager
	Limiter *quota.Limiter
	MCP     http.Handler
}

// NewRouter builds the chi router for the whole service.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Post("/signup", SignupHandler(d.DB))
	r.Get("/onboarding", OnboardingHandler(d))

	r.Get("/auth/late/connect", ConnectHandler(d))
	r.Get("/auth/late/callback", CallbackHandler(d))
	r.Get("/auth/late/status", StatusHandler(d))

	r.Post("/webhooks/billing", billing.WebhookHandler(d.DB, d.Cfg.Billing.WebhookSecret))

	r.Get("/healthz", HealthHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/mcp", d.MCP)

	return r
}
