// Package bootstrap собирает граф зависимостей из конфига. Используется всеми
// бинарями: sync-api, sync-worker и sync-lambda.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/FleetSync/config"
	"github.com/BearBump/FleetSync/internal/broker/kafka"
	"github.com/BearBump/FleetSync/internal/broker/natsbus"
	"github.com/BearBump/FleetSync/internal/cache/rediscache"
	"github.com/BearBump/FleetSync/internal/integrations/geocode"
	"github.com/BearBump/FleetSync/internal/integrations/geocode/bigdatacloud"
	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/BearBump/FleetSync/internal/integrations/providers"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/BearBump/FleetSync/internal/normalize"
	"github.com/BearBump/FleetSync/internal/services/alerts"
	"github.com/BearBump/FleetSync/internal/services/shipments"
	"github.com/BearBump/FleetSync/internal/services/syncer"
	"github.com/BearBump/FleetSync/internal/storage/dynamoalerts"
	"github.com/BearBump/FleetSync/internal/storage/pgshipments"
	"github.com/BearBump/FleetSync/internal/storage/sqliteshipments"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Store is what both storage backends provide.
type Store interface {
	UpsertShipments(ctx context.Context, ownerID string, items []*models.Shipment, day time.Time) error
	ListShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error)
	ListTrackedToday(ctx context.Context, ownerID string, day time.Time) ([]string, error)
	InsertAlerts(ctx context.Context, alerts []*models.Alert) error
	ListAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error)
	Ping(ctx context.Context) error
	Close()
}

type Deps struct {
	Cfg *config.Config

	Store    Store
	Postgres *pgshipments.Storage // nil for sqlite

	Redis    *redis.Client
	Producer *kafka.Producer
	NATS     *nats.Conn

	Syncer    *syncer.Syncer
	Shipments *shipments.Service

	closers []func()
}

// Checks returns readiness probes for the wired backends.
func (d *Deps) Checks() []NamedCheck {
	out := []NamedCheck{{Name: "storage", Ping: d.Store.Ping}}
	if d.Redis != nil {
		out = append(out, NamedCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		}})
	}
	if d.NATS != nil {
		out = append(out, NamedCheck{Name: "nats", Ping: func(context.Context) error {
			if !d.NATS.IsConnected() {
				return errors.New("nats is not connected")
			}
			return nil
		}})
	}
	return out
}

type NamedCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *Deps) onClose(f func()) { d.closers = append(d.closers, f) }

// Build wires storage, caches, sinks, providers and the sync orchestrator.
// Missing provider credentials come back as models.ErrConfiguration.
func Build(ctx context.Context, cfg *config.Config) (*Deps, error) {
	d := &Deps{Cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	if err := d.openStore(cfg); err != nil {
		return nil, err
	}

	var (
		cacheBackend *rediscache.RedisCache
		limiter      provider.Limiter
		cooldown     alerts.Cooldown = alerts.NewMemoryCooldown()
		locker       syncer.Locker
	)
	if cfg.Redis.Enabled() {
		d.Redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
		d.onClose(func() { _ = d.Redis.Close() })
		cacheBackend = rediscache.NewWithClient(d.Redis)
		limiter = rediscache.NewRateLimiterWithClient(d.Redis)
		cooldown = rediscache.NewCooldown(d.Redis)
		locker = rediscache.NewLocker(d.Redis)
	} else if d.Postgres != nil {
		// без Redis лок владельца и кулдаун держит Postgres, общий для api и воркера
		cooldown = pgshipments.NewCooldown(d.Postgres)
		locker = pgshipments.NewAdvisoryLocker(d.Postgres)
		slog.Warn("redis is not configured: locks and cooldown fall back to postgres")
	} else {
		slog.Warn("redis is not configured: cooldown and locks are process-local")
	}

	adapters, err := providers.Build(cfg.Providers, limiter)
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		slog.Warn("no providers enabled")
	}

	var resolver *geocode.Resolver
	if !cfg.Geocoder.Disabled {
		gtimeout := config.Seconds(cfg.Geocoder.TimeoutSeconds)
		resolver = geocode.NewResolver(bigdatacloud.New(cfg.Geocoder.BaseURL, gtimeout), gtimeout).
			WithConcurrency(cfg.Geocoder.Concurrency)
		if cacheBackend != nil {
			resolver = resolver.WithCache(cacheBackend, config.Seconds(cfg.Geocoder.CacheTTLSeconds))
		}
	}

	var sinks []alerts.Sink
	if cfg.Kafka.Enabled() {
		d.Producer = kafka.NewProducer(cfg.Kafka.Brokers())
		d.onClose(func() { _ = d.Producer.Close() })
		sinks = append(sinks, alerts.NewKafkaSink(d.Producer, cfg.Kafka.AlertsTopicName))
	}
	if cfg.NATS.URL != "" {
		nc, err := natsbus.Connect(cfg.NATS.URL)
		if err != nil {
			// NATS: необязательный канал доставки, без него синк работает
			slog.Warn("nats sink disabled", "error", err)
		} else {
			d.NATS = nc
			d.onClose(nc.Close)
			sinks = append(sinks, natsbus.NewAlertSink(nc, cfg.NATS.SubjectPrefix))
		}
	}
	if cfg.DynamoDB.Enabled() {
		client, err := dynamoalerts.NewClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			slog.Warn("dynamodb archive disabled", "error", err)
		} else {
			sinks = append(sinks, dynamoalerts.New(client, cfg.DynamoDB.TableName))
		}
	}

	evaluator := alerts.New(d.Store, cooldown).
		WithWindow(config.Seconds(cfg.FleetSync.AlertCooldownSeconds)).
		WithSinks(sinks...)

	f := cfg.FleetSync
	norm := normalize.New(f.DefaultBatteryLevel).WithThresholds(normalize.Thresholds{
		MovingKmh: f.StatusMovingKmh,
		Fresh:     time.Duration(f.StatusFreshMinutes) * time.Minute,
		Idle:      time.Duration(f.StatusIdleMinutes) * time.Minute,
		Stale:     time.Duration(f.StatusStaleMinutes) * time.Minute,
	})
	s := syncer.New(adapters, norm, resolver, d.Store, evaluator).
		WithTimeout(config.Seconds(f.SyncTimeoutSeconds)).
		WithLockTTL(config.Seconds(f.LockTTLSeconds)).
		WithLockWait(config.Seconds(f.LockWaitSeconds))
	if locker != nil {
		s = s.WithLocker(locker)
	}
	if d.Producer != nil {
		s = s.WithPublisher(d.Producer, cfg.Kafka.SyncedTopicName)
	}
	d.Syncer = s

	if cacheBackend != nil {
		d.Shipments = shipments.New(d.Store, s, cacheBackend, config.Seconds(f.ShipmentsCacheTTLSeconds))
	} else {
		d.Shipments = shipments.New(d.Store, s, nil, 0)
	}

	ok = true
	return d, nil
}

func (d *Deps) openStore(cfg *config.Config) error {
	switch cfg.Storage.Driver {
	case "sqlite":
		st, err := sqliteshipments.New(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		d.Store = st
		d.onClose(st.Close)
		return nil
	case "postgres", "":
		st, err := OpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
		if err != nil {
			return err
		}
		d.Store = st
		d.Postgres = st
		d.onClose(st.Close)
		return nil
	default:
		return errors.Wrap(models.ErrConfiguration, fmt.Sprintf("unknown storage driver %q", cfg.Storage.Driver))
	}
}

func OpenPostgresWithRetry(connString string, wait time.Duration) (*pgshipments.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipments.New(connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	return nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
}
