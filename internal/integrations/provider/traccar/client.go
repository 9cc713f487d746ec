package traccar

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/pkg/errors"
)

// Client talks to the Traccar REST API. Traccar reports speed in knots and
// keeps the device list and the latest positions behind two endpoints.
type Client struct {
	baseURL  string
	username string
	password string
	httpc    *http.Client
}

func New(baseURL, username, password string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://demo.traccar.org/api"
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpc:    provider.NewHTTPClient(timeout),
	}
}

func (c *Client) Name() string { return provider.Traccar }

type device struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	UniqueID string `json:"uniqueId"`
	Status   string `json:"status"`
	Disabled bool   `json:"disabled"`
	Category string `json:"category"`
}

type position struct {
	ID         int64          `json:"id"`
	DeviceID   int64          `json:"deviceId"`
	FixTime    string         `json:"fixTime"`
	ServerTime string         `json:"serverTime"`
	Latitude   *float64       `json:"latitude"`
	Longitude  *float64       `json:"longitude"`
	Altitude   *float64       `json:"altitude"`
	Speed      *float64       `json:"speed"`
	Course     *float64       `json:"course"`
	Attributes map[string]any `json:"attributes"`
}

var batteryRules = []provider.Rule{
	{Name: "attributes.batteryLevel", Path: []string{"batteryLevel"}, Unit: provider.BatteryPercent, KeepZero: true},
	{Name: "attributes.battery", Path: []string{"battery"}, Unit: provider.BatteryUnknown},
	{Name: "attributes.power", Path: []string{"power"}, Unit: provider.BatteryUnknown},
	{Name: "attributes.batteryVoltage", Path: []string{"batteryVoltage"}, Unit: provider.BatteryVolts},
}

var temperatureRules = []provider.Rule{
	{Name: "attributes.temp", Path: []string{"temp"}},
	{Name: "attributes.temperature", Path: []string{"temperature"}},
	{Name: "attributes.temp1", Path: []string{"temp1"}},
}

var humidityRules = []provider.Rule{
	{Name: "attributes.humidity", Path: []string{"humidity"}},
}

func (c *Client) Fetch(ctx context.Context) ([]provider.RawObservation, error) {
	auth := provider.BasicAuth(c.username, c.password)

	var (
		devices   []device
		positions []position
		devErr    error
		posErr    error
		wg        sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		devErr = provider.GetJSON(ctx, c.httpc, c.baseURL+"/devices", auth, &devices)
	}()
	go func() {
		defer wg.Done()
		posErr = provider.GetJSON(ctx, c.httpc, c.baseURL+"/positions", auth, &positions)
	}()
	wg.Wait()

	if devErr != nil {
		return nil, errors.Wrap(devErr, "traccar devices")
	}
	// Без позиций все устройства стали бы offline и затёрли бы последние координаты в БД.
	if posErr != nil {
		return nil, errors.Wrap(posErr, "traccar positions")
	}

	latest := latestByDevice(positions)

	out := make([]provider.RawObservation, 0, len(devices))
	for _, d := range devices {
		if d.UniqueID == "" {
			continue
		}
		obs := provider.RawObservation{
			Provider:     provider.Traccar,
			DeviceID:     d.UniqueID,
			Name:         d.Name,
			ShipmentType: "gps-device",
			SpeedUnit:    provider.SpeedKnots,
			DeviceStatus: d.Status,
		}
		if obs.Name == "" {
			obs.Name = "GPS Device " + d.UniqueID
		}
		if d.Category != "" {
			obs.ShipmentType = d.Category
		}
		if p, ok := latest[d.ID]; ok {
			obs.Latitude = p.Latitude
			obs.Longitude = p.Longitude
			obs.Speed = p.Speed
			obs.Course = p.Course
			obs.Altitude = p.Altitude
			obs.Timestamp = fixTime(p)
			obs.Battery = provider.BatteryReadings(p.Attributes, batteryRules)
			obs.Temperature = provider.FirstNumber(p.Attributes, temperatureRules)
			obs.Humidity = provider.FirstNumber(p.Attributes, humidityRules)
		}
		out = append(out, obs)
	}
	return out, nil
}

// latestByDevice keeps the newest fix per device.
func latestByDevice(positions []position) map[int64]position {
	m := make(map[int64]position, len(positions))
	for _, p := range positions {
		cur, ok := m[p.DeviceID]
		if !ok {
			m[p.DeviceID] = p
			continue
		}
		pt, ct := fixTime(p), fixTime(cur)
		if pt != nil && (ct == nil || pt.After(*ct)) {
			m[p.DeviceID] = p
		}
	}
	return m
}

func fixTime(p position) *time.Time {
	if t := provider.ParseTime(p.FixTime); t != nil {
		return t
	}
	return provider.ParseTime(p.ServerTime)
}
