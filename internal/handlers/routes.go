package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/auth"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/metrics"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth          *auth.AuthHandler
	Registrations *RegistrationHandler
	Balance       *BalanceHandler
	Donations     *DonationHandler
	Counsellors   *CounsellorHandler
	Webhooks      *WebhookHandler
	Admin         *AdminHandler
	APIKeys       *APIKeyHandler

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func RegisterRoutes(r *chi.Mux, h Handlers) huma.API {
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}

	config := huma.DefaultConfig("California Kids Camp API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"apiKeyAuth": {
			Type: "apiKey",
			In:   "header",
			Name: auth.APIKeyHeader,
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if h.Gatherer != nil {
		r.With(h.Auth.AuthMiddleware).Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}

	// Auth routes
	r.Get("/auth/discord/login", h.Auth.HandleLogin)
	r.Get("/auth/discord/callback", h.Auth.HandleCallback)

	h.Registrations.register(api)
	h.Balance.register(api)
	h.Donations.register(api)
	h.Counsellors.register(api)
	h.Webhooks.register(api)

	// Protected routes
	authenticate := h.Auth.HumaMiddleware(api)
	protect := func(o *huma.Operation) {
		o.Security = []map[string][]string{{"cookieAuth": {}}, {"apiKeyAuth": {}}}
		o.Middlewares = append(o.Middlewares, authenticate)
	}

	me := huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Signed-in organiser",
		Tags:        []string{"Auth"},
	}
	protect(&me)
	huma.Register(api, me, h.Auth.HandleMe)

	h.Admin.register(api, protect)
	h.APIKeys.register(api, protect)

	return api
}
