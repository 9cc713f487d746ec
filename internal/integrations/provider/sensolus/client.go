package sensolus

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
)

// Client reads IoT environmental trackers from the Sensolus cloud API.
// Auth is an apiKey query parameter.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://cloud.sensolus.com/rest/api/v2"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   provider.NewHTTPClient(timeout),
	}
}

func (c *Client) Name() string { return provider.Sensolus }

var batteryRules = []provider.Rule{
	{Name: "batteryInfo.batteryLevelPercentage", Path: []string{"batteryInfo", "batteryLevelPercentage"}, Unit: provider.BatteryPercent, KeepZero: true},
	{Name: "batteryInfo.batteryVoltage", Path: []string{"batteryInfo", "batteryVoltage"}, Unit: provider.BatteryVolts},
}

var temperatureRules = []provider.Rule{
	{Name: "lastMeasurements.temperature", Path: []string{"lastMeasurements", "temperature"}},
	{Name: "customData.temperature", Path: []string{"customData", "temperature"}},
}

var humidityRules = []provider.Rule{
	{Name: "lastMeasurements.humidity", Path: []string{"lastMeasurements", "humidity"}},
	{Name: "customData.humidity", Path: []string{"customData", "humidity"}},
}

func (c *Client) Fetch(ctx context.Context) ([]provider.RawObservation, error) {
	u, err := url.Parse(c.baseURL + "/devices")
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	q := u.Query()
	q.Set("deviceCategories", "TRACKER")
	q.Set("includeCustomData", "true")
	q.Set("includeSubscriptionInfo", "false")
	q.Set("includeProfileInfo", "true")
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()

	var raw json.RawMessage
	if err := provider.GetJSON(ctx, c.httpc, u.String(), nil, &raw); err != nil {
		return nil, errors.Wrap(err, "sensolus devices")
	}
	devices, err := decodeDevices(raw)
	if err != nil {
		return nil, err
	}

	out := make([]provider.RawObservation, 0, len(devices))
	for _, d := range devices {
		id := firstNonEmpty(provider.String(d, "serial"), provider.String(d, "imei"), provider.String(d, "name"))
		if id == "" {
			continue
		}
		obs := provider.RawObservation{
			Provider:     provider.Sensolus,
			DeviceID:     id,
			Name:         provider.String(d, "name"),
			ShipmentType: "iot-sensor",
			DeviceStatus: provider.String(d, "status"),
			Battery:      provider.BatteryReadings(d, batteryRules),
			Temperature:  provider.FirstNumber(d, temperatureRules),
			Humidity:     provider.FirstNumber(d, humidityRules),
		}
		if obs.Name == "" {
			obs.Name = "Sensolus " + id
		}
		if lat, ok := provider.Number(d, "lastLat"); ok {
			if lng, ok := provider.Number(d, "lastLng"); ok {
				obs.Latitude, obs.Longitude = &lat, &lng
			}
		}
		obs.Timestamp = provider.ParseTime(provider.String(d, "lastLocationUpdate"))
		if obs.Timestamp == nil {
			obs.Timestamp = provider.ParseTime(provider.String(d, "lastSeenAlive"))
		}
		if zones, ok := d["lastGeozones"].([]any); ok && len(zones) > 0 {
			switch z := zones[0].(type) {
			case string:
				obs.Geofence = provider.StringPtr(z)
			case map[string]any:
				obs.Geofence = provider.StringPtr(provider.String(z, "name"))
			}
		}
		out = append(out, obs)
	}
	return out, nil
}

// decodeDevices accepts both {"devices": [...]} and a bare array.
func decodeDevices(raw json.RawMessage) ([]map[string]any, error) {
	dec := func(b []byte, v any) error {
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		return d.Decode(v)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []map[string]any
		if err := dec(trimmed, &list); err != nil {
			return nil, errors.Wrap(models.ErrProviderUnavailable, "decode sensolus device list")
		}
		return list, nil
	}

	var wrapped struct {
		Devices []map[string]any `json:"devices"`
	}
	if err := dec(trimmed, &wrapped); err != nil {
		return nil, errors.Wrap(models.ErrProviderUnavailable, "decode sensolus devices")
	}
	return wrapped.Devices, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
