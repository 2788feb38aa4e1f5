package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/config"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/health"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/observability"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/server"
	"github.com/Janus-Aurelius/driver-proximity/internal/engine"
	"github.com/Janus-Aurelius/driver-proximity/internal/geocell"
	"github.com/Janus-Aurelius/driver-proximity/internal/index"
	"github.com/Janus-Aurelius/driver-proximity/internal/index/memindex"
	"github.com/Janus-Aurelius/driver-proximity/internal/index/redisgeo"
	"github.com/Janus-Aurelius/driver-proximity/internal/ingest/kafkaconsumer"
	"github.com/Janus-Aurelius/driver-proximity/internal/logger"
	"github.com/Janus-Aurelius/driver-proximity/internal/metrics"
	"github.com/Janus-Aurelius/driver-proximity/internal/overlay"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// overriding the default strategy via flag
	strategyFlag := flag.String("strategy", "", "default search strategy (flatscan|hierarchical)")
	flag.Parse()

	cfg := config.FromEnv()
	if *strategyFlag != "" {
		cfg.Strategy = strings.TrimSpace(*strategyFlag)
	}

	zl := logger.Build(logger.Config{
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
		Backend: cfg.Backend,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	defaultStrategy, err := model.ParseStrategy(cfg.Strategy)
	if err != nil {
		appLog.Error("bad STRATEGY", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The hierarchical strategy is selectable per request, so the grid
	// is built regardless of the configured default.
	grid, err := geocell.NewGrid(cfg.H3Res)
	if err != nil {
		appLog.Error("bad H3_RES", "err", err)
		return 1
	}

	var (
		store  index.PointStore
		cells  index.CellIndex
		pinger health.Pinger
	)
	switch cfg.Backend {
	case "redis":
		ix, err := redisgeo.New(ctx, cfg.RedisAddr, grid,
			redisgeo.WithReadTimeout(cfg.StoreOpTimeout),
			redisgeo.WithWriteTimeout(cfg.StoreOpTimeout),
		)
		if err != nil {
			appLog.Error("redis backend init failed", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = ix.Close() }()
		store, cells, pinger = ix, ix, ix
	case "memory":
		ix := memindex.NewWithGrid(grid)
		store, cells = ix, ix
	default:
		appLog.Error("unknown BACKEND", "backend", cfg.Backend)
		return 1
	}

	deps := server.Deps{
		Engine:          engine.New(store, cells, overlay.NewClassifier(cfg.GhostPrefix), cfg.ScanCeiling),
		Gateway:         engine.NewGateway(store),
		DefaultStrategy: defaultStrategy,
		StorePinger:     pinger,
	}

	if cfg.Metrics.Enabled {
		p := metrics.NewProvider(metrics.BuildInfo{
			Version:   cfg.Metrics.Version,
			Revision:  cfg.Metrics.Revision,
			Branch:    cfg.Metrics.Branch,
			BuildDate: cfg.Metrics.BuildDate,
		})
		observability.Init(p.Registerer(), true)
		observability.ExposeBuildInfo(Version)
		deps.Metrics = p.Handler()
	} else {
		observability.Init(nil, false)
	}

	if cfg.Ingest.Enabled {
		consumer := kafkaconsumer.New(kafkaconsumer.FromIngestCfg(cfg.Ingest), appLog, deps.Gateway)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("kafka consumer exited", "err", err)
			}
		}()
	}

	appLog.Info("starting proximityd",
		"addr", cfg.Addr,
		"version", Version,
		"backend", cfg.Backend,
		"strategy", string(defaultStrategy),
		"h3_res", cfg.H3Res,
		"ingest", cfg.Ingest.Enabled)

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
