package project44

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/pkg/errors"
)

// Client reads freight-visibility assets. Positions come from a separate
// endpoint and are joined to assets by asset id.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.project44.com/v1"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   provider.NewHTTPClient(timeout),
	}
}

func (c *Client) Name() string { return provider.Project44 }

var batteryRules = []provider.Rule{
	{Name: "batteryLevel", Path: []string{"batteryLevel"}, Unit: provider.BatteryUnknown},
}

var temperatureRules = []provider.Rule{
	{Name: "temperature", Path: []string{"temperature"}},
	{Name: "sensors.temperature", Path: []string{"sensors", "temperature"}},
}

type assetsResponse struct {
	Assets []map[string]any `json:"assets"`
}

type positionsResponse struct {
	Positions []map[string]any `json:"positions"`
}

func (c *Client) url(path string) string {
	return c.baseURL + path + "?apiKey=" + url.QueryEscape(c.apiKey)
}

func (c *Client) Fetch(ctx context.Context) ([]provider.RawObservation, error) {
	var (
		assets    assetsResponse
		positions positionsResponse
		assetsErr error
		posErr    error
		wg        sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		assetsErr = provider.GetJSON(ctx, c.httpc, c.url("/assets"), nil, &assets)
	}()
	go func() {
		defer wg.Done()
		posErr = provider.GetJSON(ctx, c.httpc, c.url("/positions/latest"), nil, &positions)
	}()
	wg.Wait()

	if assetsErr != nil {
		return nil, errors.Wrap(assetsErr, "project44 assets")
	}
	if posErr != nil {
		return nil, errors.Wrap(posErr, "project44 positions")
	}

	byAsset := make(map[string]map[string]any, len(positions.Positions))
	for _, p := range positions.Positions {
		id := provider.String(p, "assetId")
		if id == "" {
			continue
		}
		byAsset[id] = p
	}

	out := make([]provider.RawObservation, 0, len(assets.Assets))
	for _, a := range assets.Assets {
		id := provider.String(a, "id")
		if id == "" {
			continue
		}
		obs := provider.RawObservation{
			Provider:     provider.Project44,
			DeviceID:     id,
			Name:         provider.String(a, "name"),
			ShipmentType: provider.String(a, "type"),
			SpeedUnit:    provider.SpeedKmh,
			DeviceStatus: provider.String(a, "status"),
			Battery:      provider.BatteryReadings(a, batteryRules),
			Temperature:  provider.FirstNumber(a, temperatureRules),
		}
		if obs.Name == "" {
			obs.Name = "Project44 " + id
		}
		if obs.ShipmentType == "" {
			obs.ShipmentType = "asset-tracker"
		}
		if p, ok := byAsset[id]; ok {
			if lat, ok := provider.Number(p, "latitude"); ok {
				if lon, ok := provider.Number(p, "longitude"); ok {
					obs.Latitude, obs.Longitude = &lat, &lon
				}
			}
			if v, ok := provider.Number(p, "speed"); ok {
				obs.Speed = &v
			}
			if v, ok := provider.Number(p, "heading"); ok {
				obs.Course = &v
			}
			obs.Timestamp = provider.ParseTime(provider.String(p, "timestamp"))
		}
		if obs.Timestamp == nil {
			obs.Timestamp = provider.ParseTime(provider.String(a, "lastSeen"))
		}
		out = append(out, obs)
	}
	return out, nil
}
