package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/queue"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
)

// Service runs the asynq server that consumes mail tasks.
type Service struct {
	name   string
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.QueueEnabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:   "worker",
		server: asynq.NewServer(opt, serverCfg),
		mux:    mux,
	}, nil
}

func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start begins processing and blocks until ctx is done; Stop drains the server.
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}

// Sweeper is the subset of the reconciliation engine the sweep loop needs.
type Sweeper interface {
	SweepAbandoned(ctx context.Context, now time.Time) (reconcile.SweepResult, error)
}

// SweepService reclaims abandoned pending records on a fixed interval.
type SweepService struct {
	sweeper  Sweeper
	interval time.Duration
	now      func() time.Time
}

func NewSweepService(sweeper Sweeper, interval time.Duration) *SweepService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SweepService{sweeper: sweeper, interval: interval, now: time.Now}
}

func (s *SweepService) Name() string {
	return "sweeper"
}

// Start sweeps once immediately, then on every tick until ctx is done.
func (s *SweepService) Start(ctx context.Context) error {
	if s == nil || s.sweeper == nil {
		return errors.New("sweeper not initialized")
	}
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SweepService) Stop(_ context.Context) error {
	return nil
}

func (s *SweepService) runOnce(ctx context.Context) {
	if _, err := s.sweeper.SweepAbandoned(ctx, s.now()); err != nil {
		logger.Warnw("worker_sweep_failed", "error", err)
	}
}
