package messages

import (
	"time"

	"github.com/BearBump/FleetSync/internal/models"
)

type AlertRaised struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	ShipmentID string    `json:"shipment_id"`
	AlertType  string    `json:"alert_type"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewAlertRaised(a *models.Alert) AlertRaised {
	return AlertRaised{
		ID:         a.ID,
		OwnerID:    a.OwnerID,
		ShipmentID: a.ShipmentID,
		AlertType:  string(a.AlertType),
		Severity:   string(a.Severity),
		Message:    a.Message,
		CreatedAt:  a.CreatedAt,
	}
}
