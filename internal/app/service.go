package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Service is a long-running component started by the Runner.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Runner struct {
	services []Service
}

func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

type Options struct {
	Signals         []os.Signal
	ShutdownTimeout time.Duration
}

// RunWithOptions runs until a signal arrives or a service fails.
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout)
}

// Run starts every service and stops all of them once ctx is done or the
// first one returns.
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range r.services {
		service := svc
		if service == nil {
			return errors.New("service is nil")
		}
		g.Go(func() error {
			logger.Infow("service_start", "service", service.Name())
			err := service.Start(gctx)
			logger.Infow("service_exit", "service", service.Name())
			if err == nil {
				err = errServiceExited
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if stopTimeout <= 0 {
			stopTimeout = 10 * time.Second
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		for _, svc := range r.services {
			if err := svc.Stop(stopCtx); err != nil {
				logger.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
			}
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, errServiceExited) {
		return nil
	}
	return err
}

// errServiceExited makes a cleanly returning service stop the others.
var errServiceExited = errors.New("service exited")
