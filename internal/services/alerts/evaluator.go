package alerts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/google/uuid"
)

const DefaultWindow = 24 * time.Hour

type AlertWriter interface {
	InsertAlerts(ctx context.Context, alerts []*models.Alert) error
}

type Evaluator struct {
	repo     AlertWriter
	cooldown Cooldown
	window   time.Duration
	rules    []Rule
	sinks    []Sink

	now   func() time.Time
	newID func() string
}

func New(repo AlertWriter, cooldown Cooldown) *Evaluator {
	if cooldown == nil {
		cooldown = NewMemoryCooldown()
	}
	return &Evaluator{
		repo:     repo,
		cooldown: cooldown,
		window:   DefaultWindow,
		rules:    DefaultRules(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (e *Evaluator) WithWindow(d time.Duration) *Evaluator {
	if d > 0 {
		e.window = d
	}
	return e
}

func (e *Evaluator) WithRules(rules []Rule) *Evaluator {
	e.rules = rules
	return e
}

func (e *Evaluator) WithSinks(sinks ...Sink) *Evaluator {
	e.sinks = append(e.sinks, sinks...)
	return e
}

func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// cooldownKey: при окне ровно в сутки ключ включает UTC-дату, то есть
// "не больше одного алерта типа на shipment в день".
func (e *Evaluator) cooldownKey(ownerID, shipmentID string, t models.AlertType, now time.Time) string {
	parts := []string{ownerID, shipmentID, string(t)}
	if e.window == DefaultWindow {
		parts = append(parts, now.UTC().Format("2006-01-02"))
	}
	return strings.Join(parts, "|")
}

// Evaluate runs every rule over the persisted shipments, stores the alerts
// that are not cooling down and hands them to the sinks.
func (e *Evaluator) Evaluate(ctx context.Context, ownerID string, shipments []*models.Shipment) ([]*models.Alert, error) {
	now := e.now().UTC()

	var (
		out  []*models.Alert
		keys []string
	)
	for _, s := range shipments {
		for _, r := range e.rules {
			msg, sev, ok := r.Check(s)
			if !ok {
				continue
			}

			key := e.cooldownKey(ownerID, s.ShipmentID, r.Type, now)
			acquired, err := e.cooldown.Acquire(ctx, key, e.window)
			switch {
			case err != nil:
				// кулдаун недоступен: лучше лишний алерт, чем потерянный
				slog.Warn("alert cooldown unavailable", "owner_id", ownerID, "shipment_id", s.ShipmentID, "error", err)
			case !acquired:
				continue
			default:
				keys = append(keys, key)
			}

			out = append(out, &models.Alert{
				ID:         e.newID(),
				OwnerID:    ownerID,
				ShipmentID: s.ShipmentID,
				AlertType:  r.Type,
				Message:    msg,
				Severity:   sev,
				CreatedAt:  now,
			})
		}
	}
	if len(out) == 0 {
		return nil, nil
	}

	if err := e.repo.InsertAlerts(ctx, out); err != nil {
		for _, k := range keys {
			_ = e.cooldown.Release(ctx, k)
		}
		return nil, err
	}

	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, out); err != nil {
			slog.Warn("alert sink failed", "sink", sink.Name(), "owner_id", ownerID, "alerts", len(out), "error", err)
		}
	}
	return out, nil
}
