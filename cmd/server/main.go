package main

import (
	"flag"
	"os"
	"syscall"
	"time"

	"github.com/ventura-coast-web-design/california-kids-camp/internal/app"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/config"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
)

func main() {
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "run mode: all, api, worker")
	flag.Parse()

	// Load Configuration
	cfg := config.LoadConfig()
	logger.Init(cfg.LogMode, logger.Options{Dir: cfg.LogDir})

	container, err := app.NewContainer(cfg, true)
	if err != nil {
		logger.Errorw("app_init_failed", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	runner, err := app.BuildRunner(container, mode)
	if err != nil {
		logger.Errorw("app_build_failed", "mode", mode, "error", err)
		container.Close()
		os.Exit(1)
	}

	logger.Infow("app_start", "port", cfg.Port, "mode", mode, "payments_enabled", cfg.PaymentsEnabled())
	if err := app.RunWithOptions(runner, app.Options{
		Signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
		ShutdownTimeout: 10 * time.Second,
	}); err != nil {
		logger.Errorw("app_exit", "error", err)
		container.Close()
		os.Exit(1)
	}
}
