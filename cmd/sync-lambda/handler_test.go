package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls []string
	fail  map[string]error
}

func (f *fakeRunner) RunSync(ctx context.Context, ownerID string) (models.SyncResult, error) {
	f.calls = append(f.calls, ownerID)
	if err := f.fail[ownerID]; err != nil {
		return models.SyncResult{OwnerID: ownerID, Error: err.Error()}, err
	}
	return models.SyncResult{OwnerID: ownerID, Success: true}, nil
}

func event(t *testing.T, detail any) events.CloudWatchEvent {
	b, err := json.Marshal(detail)
	require.NoError(t, err)
	return events.CloudWatchEvent{DetailType: "Scheduled Event", Source: "aws.events", Detail: b}
}

func TestHandle_OwnerFromDetail(t *testing.T) {
	r := &fakeRunner{}
	h := &handler{r: r, defaultOwners: []string{"default"}}

	resp, err := h.Handle(context.Background(), event(t, map[string]any{"owner_id": "acme"}))
	require.NoError(t, err)
	require.Equal(t, []string{"acme"}, r.calls)
	require.Len(t, resp.Results, 1)
	require.True(t, resp.Results[0].Success)
}

func TestHandle_DefaultOwners(t *testing.T) {
	r := &fakeRunner{fail: map[string]error{"b": models.ErrPersistence}}
	h := &handler{r: r, defaultOwners: []string{"a", "b"}}

	resp, err := h.Handle(context.Background(), events.CloudWatchEvent{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, r.calls)
	require.Equal(t, 1, resp.Failed)
}

func TestHandle_AllFailed(t *testing.T) {
	r := &fakeRunner{fail: map[string]error{"a": models.ErrSyncTimeout}}
	h := &handler{r: r}

	_, err := h.Handle(context.Background(), event(t, map[string]any{"owner_ids": []string{"a"}}))
	require.ErrorIs(t, err, models.ErrSyncTimeout)
}

func TestHandle_NoOwner(t *testing.T) {
	_, err := (&handler{r: &fakeRunner{}}).Handle(context.Background(), events.CloudWatchEvent{})
	require.ErrorIs(t, err, models.ErrOwnerRequired)
}
