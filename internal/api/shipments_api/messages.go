package shipments_api

import "github.com/BearBump/FleetSync/internal/models"

type RunSyncRequest struct {
	OwnerID string `json:"owner_id"`
}

type RunSyncResponse struct {
	Result models.SyncResult `json:"result"`
}

type GetShipmentsRequest struct {
	OwnerID string `json:"owner_id"`
}

type GetShipmentsResponse struct {
	Shipments []*models.Shipment `json:"shipments"`
}

type GetAlertsRequest struct {
	OwnerID string `json:"owner_id"`
	Limit   int    `json:"limit,omitempty"`
}

type GetAlertsResponse struct {
	Alerts []*models.Alert `json:"alerts"`
}
