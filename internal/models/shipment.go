package models

import "time"

type ShipmentStatus string

// Канонические статусы. Провайдерские статусы сюда не попадают, статус всегда вычисляется.
const (
	StatusOffline       ShipmentStatus = "offline"
	StatusStopped       ShipmentStatus = "stopped"
	StatusIdle          ShipmentStatus = "idle"
	StatusInTransit     ShipmentStatus = "in-transit"
	StatusCritical      ShipmentStatus = "critical"
	StatusDelayed       ShipmentStatus = "delayed"
	StatusAtDestination ShipmentStatus = "at-destination"
)

type PriorityLevel string

const (
	PriorityStandard PriorityLevel = "standard"
	PriorityHigh     PriorityLevel = "high"
	PriorityCritical PriorityLevel = "critical"
)

// Shipment is the canonical, provider-agnostic record of one tracked asset.
type Shipment struct {
	OwnerID      string         `json:"owner_id"`
	ShipmentID   string         `json:"shipment_id"`
	Name         string         `json:"name"`
	ShipmentType string         `json:"shipment_type"`
	Provider     string         `json:"provider"`
	Status       ShipmentStatus `json:"status"`

	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	CurrentLocation string   `json:"current_location"`

	Speed    *float64 `json:"speed,omitempty"`
	Course   *float64 `json:"course,omitempty"`
	Altitude *float64 `json:"altitude,omitempty"`

	BatteryLevel     int  `json:"battery_level"`
	BatteryEstimated bool `json:"battery_estimated"`

	Temperature     *float64 `json:"temperature,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"`
	TargetTempMin   *float64 `json:"target_temp_min,omitempty"`
	TargetTempMax   *float64 `json:"target_temp_max,omitempty"`
	CurrentGeofence *string  `json:"current_geofence,omitempty"`

	TrackingActive bool          `json:"tracking_active"`
	DeviceStatus   string        `json:"device_status"`
	ExceptionCount int           `json:"exception_count"`
	PriorityLevel  PriorityLevel `json:"priority_level"`

	// LastUpdate is the provider's fix time; nil when the device never reported one.
	LastUpdate *time.Time `json:"last_update,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SameBusinessFields reports whether two records carry identical business data.
// Timestamps owned by the store (created_at, updated_at) are ignored.
func (s *Shipment) SameBusinessFields(o *Shipment) bool {
	if s == nil || o == nil {
		return s == o
	}
	a, b := s, o
	return a.OwnerID == b.OwnerID &&
		a.ShipmentID == b.ShipmentID &&
		a.Name == b.Name &&
		a.ShipmentType == b.ShipmentType &&
		a.Provider == b.Provider &&
		a.Status == b.Status &&
		eqFloat(a.Latitude, b.Latitude) &&
		eqFloat(a.Longitude, b.Longitude) &&
		a.CurrentLocation == b.CurrentLocation &&
		eqFloat(a.Speed, b.Speed) &&
		eqFloat(a.Course, b.Course) &&
		eqFloat(a.Altitude, b.Altitude) &&
		a.BatteryLevel == b.BatteryLevel &&
		a.BatteryEstimated == b.BatteryEstimated &&
		eqFloat(a.Temperature, b.Temperature) &&
		eqFloat(a.Humidity, b.Humidity) &&
		eqFloat(a.TargetTempMin, b.TargetTempMin) &&
		eqFloat(a.TargetTempMax, b.TargetTempMax) &&
		eqString(a.CurrentGeofence, b.CurrentGeofence) &&
		a.TrackingActive == b.TrackingActive &&
		a.DeviceStatus == b.DeviceStatus &&
		a.ExceptionCount == b.ExceptionCount &&
		a.PriorityLevel == b.PriorityLevel &&
		eqTime(a.LastUpdate, b.LastUpdate)
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
