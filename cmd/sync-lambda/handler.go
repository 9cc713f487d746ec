package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
)

type runner interface {
	RunSync(ctx context.Context, ownerID string) (models.SyncResult, error)
}

// tickDetail is the "detail" of the EventBridge rule, e.g. {"owner_id":"acme"}.
type tickDetail struct {
	OwnerID  string   `json:"owner_id"`
	OwnerIDs []string `json:"owner_ids"`
}

type tickResponse struct {
	Results []models.SyncResult `json:"results"`
	Failed  int                 `json:"failed"`
}

type handler struct {
	r             runner
	defaultOwners []string
}

func (h *handler) owners(ev events.CloudWatchEvent) ([]string, error) {
	var d tickDetail
	if len(ev.Detail) > 0 {
		if err := json.Unmarshal(ev.Detail, &d); err != nil {
			return nil, errors.Wrap(err, "decode event detail")
		}
	}
	var out []string
	if d.OwnerID != "" {
		out = append(out, d.OwnerID)
	}
	out = append(out, d.OwnerIDs...)
	if len(out) == 0 {
		out = h.defaultOwners
	}
	if len(out) == 0 {
		return nil, models.ErrOwnerRequired
	}
	return out, nil
}

// Handle runs one sync per owner sequentially. A failed owner does not stop the
// others; the invocation errors only when nothing succeeded.
func (h *handler) Handle(ctx context.Context, ev events.CloudWatchEvent) (tickResponse, error) {
	owners, err := h.owners(ev)
	if err != nil {
		return tickResponse{}, err
	}

	var resp tickResponse
	var lastErr error
	for _, owner := range owners {
		res, err := h.r.RunSync(ctx, owner)
		resp.Results = append(resp.Results, res)
		if err != nil {
			resp.Failed++
			lastErr = err
			slog.Error("scheduled sync failed", "owner_id", owner, "error", err)
		}
	}
	if resp.Failed == len(owners) && lastErr != nil {
		return resp, lastErr
	}
	return resp, nil
}
