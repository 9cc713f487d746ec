package messages

import (
	"time"

	"github.com/BearBump/FleetSync/internal/models"
)

// ShipmentsSynced is published after every finished sync. The API uses it to
// drop the owner's cached shipment list.
type ShipmentsSynced struct {
	RunID         string            `json:"run_id"`
	OwnerID       string            `json:"owner_id"`
	Success       bool              `json:"success"`
	TotalCount    int               `json:"total_count"`
	Breakdown     map[string]int    `json:"breakdown"`
	Failures      map[string]string `json:"failures,omitempty"`
	AlertsCreated int               `json:"alerts_created"`
	Error         string            `json:"error,omitempty"`
	FinishedAt    time.Time         `json:"finished_at"`
}

func NewShipmentsSynced(res models.SyncResult) ShipmentsSynced {
	return ShipmentsSynced{
		RunID:         res.RunID,
		OwnerID:       res.OwnerID,
		Success:       res.Success,
		TotalCount:    res.TotalCount,
		Breakdown:     res.Breakdown,
		Failures:      res.Failures,
		AlertsCreated: res.AlertsCreated,
		Error:         res.Error,
		FinishedAt:    res.FinishedAt,
	}
}
