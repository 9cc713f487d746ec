package normalize

import (
	"math"
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/BearBump/FleetSync/internal/models"
)

const DefaultBatteryLevel = 85

type Normalizer struct {
	defaultBattery int
	th             Thresholds
}

func New(defaultBattery int) *Normalizer {
	if defaultBattery <= 0 {
		defaultBattery = DefaultBatteryLevel
	}
	return &Normalizer{defaultBattery: defaultBattery, th: DefaultThresholds()}
}

func (n *Normalizer) WithThresholds(th Thresholds) *Normalizer {
	n.th = th
	return n
}

// Normalize builds the canonical record. OwnerID and CurrentLocation are
// filled in later by the caller.
func (n *Normalizer) Normalize(obs provider.RawObservation, now time.Time) *models.Shipment {
	status := DeriveStatus(obs, now, n.th)
	battery, estimated := DecodeBattery(obs.Battery, n.defaultBattery)

	s := &models.Shipment{
		ShipmentID:       obs.ShipmentID(),
		Name:             obs.Name,
		ShipmentType:     obs.ShipmentType,
		Provider:         obs.Provider,
		Status:           status,
		Latitude:         obs.Latitude,
		Longitude:        obs.Longitude,
		Course:           obs.Course,
		Altitude:         obs.Altitude,
		BatteryLevel:     battery,
		BatteryEstimated: estimated,
		Temperature:      obs.Temperature,
		Humidity:         obs.Humidity,
		TargetTempMin:    obs.TargetTempMin,
		TargetTempMax:    obs.TargetTempMax,
		CurrentGeofence:  obs.Geofence,
		TrackingActive:   status != models.StatusOffline,
		DeviceStatus:     obs.DeviceStatus,
	}
	if !obs.HasPosition() {
		s.Latitude, s.Longitude = nil, nil
	}
	if v := SpeedKmh(obs); v != nil {
		r := math.Round(*v*10) / 10
		s.Speed = &r
	}
	if s.DeviceStatus == "" {
		if s.TrackingActive {
			s.DeviceStatus = "online"
		} else {
			s.DeviceStatus = "offline"
		}
	}
	// без фикса LastUpdate остаётся nil
	if obs.Timestamp != nil {
		t := obs.Timestamp.UTC()
		s.LastUpdate = &t
	}

	s.ExceptionCount = exceptionCount(s)
	s.PriorityLevel = priority(s)
	return s
}

func hasTargetRange(s *models.Shipment) bool {
	return s.TargetTempMin != nil && s.TargetTempMax != nil
}

// TemperatureOutOfRange is true only when the reading and both bounds are present.
func TemperatureOutOfRange(s *models.Shipment) bool {
	if s.Temperature == nil || !hasTargetRange(s) {
		return false
	}
	t := *s.Temperature
	return t < *s.TargetTempMin || t > *s.TargetTempMax
}

func exceptionCount(s *models.Shipment) int {
	if TemperatureOutOfRange(s) {
		return 1
	}
	return 0
}

func priority(s *models.Shipment) models.PriorityLevel {
	switch {
	case s.BatteryLevel < 20:
		return models.PriorityCritical
	case s.BatteryLevel < 40 || hasTargetRange(s):
		return models.PriorityHigh
	default:
		return models.PriorityStandard
	}
}
