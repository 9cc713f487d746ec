package models

import "time"

type AlertType string

const (
	AlertLowBattery           AlertType = "low_battery"
	AlertTemperatureExcursion AlertType = "temperature_excursion"
)

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is insert-only for the sync engine. Acknowledged and Muted are
// flipped by consumers out-of-band.
type Alert struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	ShipmentID   string        `json:"shipment_id"`
	AlertType    AlertType     `json:"alert_type"`
	Message      string        `json:"message"`
	Severity     AlertSeverity `json:"severity"`
	CreatedAt    time.Time     `json:"created_at"`
	Acknowledged bool          `json:"acknowledged"`
	Muted        bool          `json:"muted"`
}
