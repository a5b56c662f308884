package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/reachd/internal/api"
	"github.com/dmdmdm-nz/reachd/internal/discovery"
	"github.com/dmdmdm-nz/reachd/internal/runtime"
	"github.com/dmdmdm-nz/reachd/internal/watchmgr"
	"github.com/dmdmdm-nz/reachd/pkg/cli"
	"github.com/dmdmdm-nz/reachd/pkg/version"
)

func main() {
	// Parse command line flags
	cfg := cli.ParseFlags()

	// Configure logging
	setLogLevel(cfg.LogLevel)
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FullTimestamp:   true,
	})

	log.Infof("Config: Host=%s", cfg.Host)
	log.Infof("Config: Port=%d", cfg.Port)
	log.Infof("Config: LogLevel=%s", cfg.LogLevel)
	log.Infof("Config: TargetsFile=%q", cfg.TargetsFile)
	log.Infof("Config: Advertise=%v", cfg.Advertise)

	defs, err := cfg.Definitions()
	if err != nil {
		log.WithError(err).Fatal("Invalid targets")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watchMgr, err := watchmgr.NewManager(defs)
	if err != nil {
		log.WithError(err).Fatal("Failed to create monitors")
	}
	apiSvc := api.NewService(cfg.Host, cfg.Port, watchMgr)
	apiSvc.AttachMetrics(watchMgr.Gatherer())

	// Start in dependency order: watchmgr → api → advertise
	super := runtime.NewSupervisor()
	super.Add("watchmgr", watchMgr.Start, watchMgr.Close)
	super.Add("api", apiSvc.Start, apiSvc.Close)
	if cfg.Advertise {
		adv := discovery.NewAdvertiser("", cfg.Port, version.Version)
		super.Add("advertise", adv.Start, adv.Close)
	}

	if err := super.Start(ctx); err != nil {
		log.WithError(err).Error("Supervisor start failed")
		os.Exit(1)
	}
	if err := super.Wait(); err != nil {
		log.WithError(err).Error("Supervisor stopped with error")
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	switch level {
	case "trace":
		log.SetLevel(log.TraceLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
