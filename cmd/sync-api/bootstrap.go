package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/FleetSync/config"
	"github.com/BearBump/FleetSync/internal/api/http_api"
	"github.com/BearBump/FleetSync/internal/bootstrap"
	"github.com/BearBump/FleetSync/internal/broker/kafka"
	"github.com/BearBump/FleetSync/internal/integrations/providers"
)

var version = "dev"

type syncAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   syncAPIOpts
	deps   syncAPIDeps

	closers []func()
}

func mustBootstrapSyncAPI() *syncAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	d, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		cancel()
		panic(fmt.Sprintf("bootstrap: %v", err))
	}

	app := &syncAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: syncAPIOpts{
			grpcAddr:    cfg.FleetSync.GRPCAddr,
			httpAddr:    cfg.FleetSync.HTTPAddr,
			swaggerPath: swaggerPath,
			version:     version,
		},
		deps: syncAPIDeps{
			svc:       d.Shipments,
			probe:     d.Syncer,
			providers: providers.Statuses(cfg.Providers),
		},
		closers: []func(){d.Close},
	}
	for _, c := range d.Checks() {
		app.deps.checks = append(app.deps.checks, http_api.Check{Name: c.Name, Ping: c.Ping})
	}

	if cfg.Kafka.Enabled() {
		synced := kafka.NewConsumer(cfg.Kafka.Brokers(), cfg.Kafka.SyncedTopicName, cfg.Kafka.ConsumerGroup)
		// у каждого инстанса своя группа: websocket-клиенты висят на конкретном процессе
		host, _ := os.Hostname()
		alerts := kafka.NewConsumer(cfg.Kafka.Brokers(), cfg.Kafka.AlertsTopicName, cfg.Kafka.ConsumerGroup+"-ws-"+host)
		app.deps.synced = synced
		app.deps.alerts = alerts
		app.closers = append(app.closers, func() { _ = synced.Close() }, func() { _ = alerts.Close() })
	}
	return app
}

func (a *syncAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *syncAPIApp) Run() error {
	return runSyncAPI(a.ctx, a.opts, a.deps)
}
