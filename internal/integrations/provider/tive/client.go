package tive

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/pkg/errors"
)

// Client reads cold-chain trackers. Devices carry their target temperature range.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.tive.com/v1"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   provider.NewHTTPClient(timeout),
	}
}

func (c *Client) Name() string { return provider.Tive }

var batteryRules = []provider.Rule{
	{Name: "battery.percentage", Path: []string{"battery", "percentage"}, Unit: provider.BatteryPercent, KeepZero: true},
	{Name: "battery.voltage", Path: []string{"battery", "voltage"}, Unit: provider.BatteryVolts},
}

var temperatureRules = []provider.Rule{
	{Name: "sensors.temperature", Path: []string{"sensors", "temperature"}},
	{Name: "temperature", Path: []string{"temperature"}},
}

var humidityRules = []provider.Rule{
	{Name: "sensors.humidity", Path: []string{"sensors", "humidity"}},
	{Name: "humidity", Path: []string{"humidity"}},
}

type devicesResponse struct {
	Devices []map[string]any `json:"devices"`
}

func (c *Client) Fetch(ctx context.Context) ([]provider.RawObservation, error) {
	u := c.baseURL + "/devices?apiKey=" + url.QueryEscape(c.apiKey)

	var resp devicesResponse
	if err := provider.GetJSON(ctx, c.httpc, u, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "tive devices")
	}

	out := make([]provider.RawObservation, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		id := provider.String(d, "id")
		if id == "" {
			continue
		}
		obs := provider.RawObservation{
			Provider:     provider.Tive,
			DeviceID:     id,
			Name:         provider.String(d, "name"),
			ShipmentType: provider.String(d, "type"),
			SpeedUnit:    provider.SpeedKmh,
			DeviceStatus: provider.String(d, "status"),
			Battery:      provider.BatteryReadings(d, batteryRules),
			Temperature:  provider.FirstNumber(d, temperatureRules),
			Humidity:     provider.FirstNumber(d, humidityRules),
		}
		if obs.Name == "" {
			obs.Name = "Tive " + id
		}
		if obs.ShipmentType == "" {
			obs.ShipmentType = "multi-sensor"
		}
		if lat, ok := provider.Number(d, "location", "latitude"); ok {
			if lon, ok := provider.Number(d, "location", "longitude"); ok {
				obs.Latitude, obs.Longitude = &lat, &lon
			}
		}
		if v, ok := provider.Number(d, "location", "speed"); ok {
			obs.Speed = &v
		}
		if v, ok := provider.Number(d, "temperatureThreshold", "min"); ok {
			obs.TargetTempMin = &v
		}
		if v, ok := provider.Number(d, "temperatureThreshold", "max"); ok {
			obs.TargetTempMax = &v
		}
		obs.Geofence = provider.StringPtr(provider.String(d, "geofence"))

		obs.Timestamp = provider.ParseTime(provider.String(d, "location", "timestamp"))
		if obs.Timestamp == nil {
			obs.Timestamp = provider.ParseTime(provider.String(d, "lastSeen"))
		}
		out = append(out, obs)
	}
	return out, nil
}
