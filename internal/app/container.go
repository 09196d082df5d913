package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/auth"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/database"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/gateway/stripegw"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/handlers"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/mailer"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/metrics"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/notifier"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/queue"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/session"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/store"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/worker"
	"gorm.io/gorm"
)

const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

// Container holds the process-wide dependencies.
type Container struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *store.Store
	Sessions session.Store
	Gateway  gateway.Gateway
	Webhooks handlers.WebhookParser
	Mail     *mailer.Service
	Dispatch mailer.Dispatcher
	Engine   *reconcile.Engine
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	closers []func() error
}

// NewContainer connects storage and builds the reconciliation engine.
// Metrics are only collected when withMetrics is set.
func NewContainer(cfg *config.Config, withMetrics bool) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	c := &Container{Config: cfg, DB: db, Store: store.New(db)}
	if cfg.JWTSecret == "" {
		logger.Warnw("jwt_secret_empty", "impact", "organiser sign-in tokens are not secure")
	}

	if withMetrics {
		c.Registry = prometheus.NewRegistry()
		c.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		c.Metrics = metrics.New(c.Registry)
	}

	if err := c.initSessions(); err != nil {
		c.Close()
		return nil, err
	}
	c.initGateway()
	c.initMail()

	var notify notifier.Notifier
	discord, err := notifier.NewFromConfig(cfg)
	switch {
	case err != nil:
		logger.Warnw("discord_notifier_disabled", "error", err)
	case discord != nil:
		notify = discord
	}

	c.Engine = reconcile.New(reconcile.Deps{
		Store:    c.Store,
		Gateway:  c.Gateway,
		Sessions: c.Sessions,
		Mail:     c.Dispatch,
		Notifier: notify,
		Metrics:  c.Metrics,
	}, reconcile.Options{
		Currency:        cfg.Currency,
		StaleAfter:      cfg.StalePendingAfter,
		EarlyBirdCutoff: cfg.EarlyBirdCutoffTime(),
		MinAttendeeAge:  cfg.MinAttendeeAge,
		MaxAttendeeAge:  cfg.MaxAttendeeAge,
	})
	return c, nil
}

func (c *Container) initSessions() error {
	cfg := c.Config
	if !cfg.RedisEnabled {
		c.Sessions = session.NewMemoryStore(cfg.SessionTTL)
		return nil
	}
	redisStore := session.NewRedisStore(session.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   cfg.RedisPrefix,
		TTL:      cfg.SessionTTL,
	})
	if err := redisStore.Ping(context.Background()); err != nil {
		redisStore.Close()
		return fmt.Errorf("connect session redis: %w", err)
	}
	c.Sessions = redisStore
	c.closers = append(c.closers, redisStore.Close)
	return nil
}

func (c *Container) initGateway() {
	cfg := c.Config
	if !cfg.PaymentsEnabled() {
		logger.Warnw("payments_disabled", "reason", "STRIPE_API_KEY or STRIPE_PUBLISHABLE_KEY missing")
		c.Gateway = gateway.Disabled{}
		return
	}
	stripe := stripegw.New(cfg.StripeAPIKey, cfg.StripeWebhookSecret)
	c.Gateway = stripe
	c.Webhooks = stripe
}

func (c *Container) initMail() {
	cfg := c.Config
	var m mailer.Mailer = mailer.LogMailer{Logf: logger.S().Infof}
	if cfg.SMTPHost != "" {
		m = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}
	c.Mail = mailer.NewService(c.Store, m, cfg.AppName)

	if cfg.QueueEnabled {
		client := queue.NewClient(cfg)
		c.Dispatch = client
		c.closers = append(c.closers, client.Close)
		return
	}
	inline := mailer.NewInlineDispatcher(c.Mail)
	c.Dispatch = inline
	c.closers = append(c.closers, func() error {
		inline.Wait()
		return nil
	})
}

// Router mounts every HTTP route.
func (c *Container) Router() http.Handler {
	authHandler := auth.NewAuthHandler(c.Config, c.DB)

	h := handlers.Handlers{
		Auth:          authHandler,
		Registrations: handlers.NewRegistrationHandler(c.Engine, c.Config),
		Balance:       handlers.NewBalanceHandler(c.Engine, c.Config),
		Donations:     handlers.NewDonationHandler(c.Engine, c.Config),
		Counsellors:   handlers.NewCounsellorHandler(c.Engine),
		Webhooks:      handlers.NewWebhookHandler(c.Webhooks, c.Engine),
		Admin:         handlers.NewAdminHandler(c.Store, c.Engine, authHandler),
		APIKeys:       handlers.NewAPIKeyHandler(c.DB, authHandler),
		Metrics:       c.Metrics,
	}
	if c.Registry != nil {
		h.Gatherer = c.Registry
	}

	r := chi.NewRouter()
	handlers.RegisterRoutes(r, h)
	return r
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warnw("container_close_failed", "error", err)
		}
	}
	c.closers = nil
}

// BuildRunner assembles the services for mode.
func BuildRunner(c *Container, mode string) (*Runner, error) {
	if c == nil {
		return nil, errors.New("container is nil")
	}
	cfg := c.Config
	var services []Service

	if mode == ModeAll || mode == ModeAPI {
		services = append(services,
			NewHTTPService(":"+cfg.Port, c.Router()),
			worker.NewSweepService(c.Engine, cfg.SweepInterval),
		)
	}

	if (mode == ModeAll || mode == ModeWorker) && cfg.QueueEnabled {
		workerService, err := worker.NewService(cfg, worker.NewConsumer(c.Mail))
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("no services for mode %q (check mode and QUEUE_ENABLED)", mode)
	}
	return NewRunner(services...), nil
}
