package shipments

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/FleetSync/internal/broker/messages"
	"github.com/BearBump/FleetSync/internal/cache"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
)

const (
	DefaultAlertsLimit = 50
	MaxAlertsLimit     = 500
)

type Repository interface {
	ListShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error)
	ListAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error)
	ListTrackedToday(ctx context.Context, ownerID string, day time.Time) ([]string, error)
}

type Runner interface {
	RunSync(ctx context.Context, ownerID string) (models.SyncResult, error)
}

// Service is the read side of the API plus the on-demand sync entry point.
type Service struct {
	repo   Repository
	runner Runner

	cache    cache.BytesCache
	cacheTTL time.Duration

	now func() time.Time
}

func New(repo Repository, runner Runner, c cache.BytesCache, cacheTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		runner:   runner,
		cache:    c,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) cacheOn() bool { return s.cache != nil && s.cacheTTL > 0 }

func shipmentsKey(ownerID string) string { return "shipments:" + ownerID }

// RunSync запускает синхронизацию и сбрасывает кэш владельца после любого завершённого запуска.
func (s *Service) RunSync(ctx context.Context, ownerID string) (models.SyncResult, error) {
	if ownerID == "" {
		return models.SyncResult{Error: models.ErrOwnerRequired.Error()}, models.ErrOwnerRequired
	}
	if s.runner == nil {
		return models.SyncResult{OwnerID: ownerID}, errors.Wrap(models.ErrConfiguration, "sync is not available")
	}
	res, err := s.runner.RunSync(ctx, ownerID)
	if !errors.Is(err, models.ErrSyncInProgress) {
		s.Invalidate(ctx, ownerID)
	}
	return res, err
}

func (s *Service) GetShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error) {
	if ownerID == "" {
		return nil, models.ErrOwnerRequired
	}

	if s.cacheOn() {
		b, ok, err := s.cache.Get(ctx, shipmentsKey(ownerID))
		if err == nil && ok {
			var out []*models.Shipment
			if json.Unmarshal(b, &out) == nil {
				return out, nil
			}
		}
	}

	out, err := s.repo.ListShipments(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list shipments")
	}
	if out == nil {
		out = []*models.Shipment{}
	}

	if s.cacheOn() {
		if b, err := json.Marshal(out); err == nil {
			_ = s.cache.Set(ctx, shipmentsKey(ownerID), b, s.cacheTTL)
		}
	}
	return out, nil
}

func (s *Service) GetAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error) {
	if ownerID == "" {
		return nil, models.ErrOwnerRequired
	}
	if limit <= 0 {
		limit = DefaultAlertsLimit
	}
	if limit > MaxAlertsLimit {
		limit = MaxAlertsLimit
	}
	out, err := s.repo.ListAlerts(ctx, ownerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list alerts")
	}
	if out == nil {
		out = []*models.Alert{}
	}
	return out, nil
}

// TrackedToday returns the shipment ids recorded in today's (UTC) ledger.
func (s *Service) TrackedToday(ctx context.Context, ownerID string) ([]string, error) {
	if ownerID == "" {
		return nil, models.ErrOwnerRequired
	}
	out, err := s.repo.ListTrackedToday(ctx, ownerID, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "list tracked today")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *Service) Invalidate(ctx context.Context, ownerID string) {
	if !s.cacheOn() {
		return
	}
	if err := s.cache.Delete(ctx, shipmentsKey(ownerID)); err != nil {
		slog.Warn("cache invalidate", "owner_id", ownerID, "error", err)
	}
}

// ApplySyncedEvent handles messages.ShipmentsSynced from another process (worker, lambda).
func (s *Service) ApplySyncedEvent(ctx context.Context, msg messages.ShipmentsSynced) error {
	if msg.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	s.Invalidate(ctx, msg.OwnerID)
	return nil
}
