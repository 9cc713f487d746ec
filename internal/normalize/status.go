package normalize

import (
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/BearBump/FleetSync/internal/models"
)

const knotsToKmh = 1.852

type Thresholds struct {
	MovingKmh float64
	Fresh     time.Duration
	Idle      time.Duration
	Stale     time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MovingKmh: 5,
		Fresh:     5 * time.Minute,
		Idle:      30 * time.Minute,
		Stale:     60 * time.Minute,
	}
}

// SpeedKmh returns the observation speed in km/h, nil when unknown.
func SpeedKmh(obs provider.RawObservation) *float64 {
	if obs.Speed == nil {
		return nil
	}
	v := *obs.Speed
	if obs.SpeedUnit == provider.SpeedKnots {
		v *= knotsToKmh
	}
	return &v
}

// DeriveStatus computes the canonical status from fix age and speed. Provider
// status strings are never copied through.
//
//	age <  5m  -> in-transit (speed > 5 km/h) / stopped
//	age < 30m  -> idle
//	age < 60m  -> stopped
//	otherwise  -> offline
func DeriveStatus(obs provider.RawObservation, now time.Time, th Thresholds) models.ShipmentStatus {
	if !obs.HasPosition() || obs.Timestamp == nil {
		return models.StatusOffline
	}

	age := now.Sub(*obs.Timestamp)
	if age < 0 {
		age = 0
	}

	switch {
	case age < th.Fresh:
		if s := SpeedKmh(obs); s != nil && *s > th.MovingKmh {
			return models.StatusInTransit
		}
		return models.StatusStopped
	case age < th.Idle:
		return models.StatusIdle
	case age < th.Stale:
		return models.StatusStopped
	default:
		return models.StatusOffline
	}
}
