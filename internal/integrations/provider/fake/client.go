package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
)

// Client: детерминированный провайдер для демо и тестов.
// Все значения выводятся из хеша (provider, device id), так что повторный sync
// даёт те же бизнес-поля.
type Client struct {
	name    string
	devices []string
	now     func() time.Time
	err     error
}

func New(name string, devices ...string) *Client {
	return &Client{name: name, devices: devices, now: time.Now}
}

// WithClock pins the observation timestamp.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// WithError makes every Fetch fail, e.g. to simulate an outage.
func (c *Client) WithError(err error) *Client {
	c.err = err
	return c
}

func (c *Client) Name() string { return c.name }

func (c *Client) Fetch(ctx context.Context) ([]provider.RawObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}

	ts := c.now().UTC().Truncate(time.Second)
	out := make([]provider.RawObservation, 0, len(c.devices))
	for _, id := range c.devices {
		v := hash(c.name, id)

		lat := 50 + float64(v%1000)/100
		lon := float64(v/1000%1000) / 100
		speed := float64(v % 90)
		temp := -5 + float64(v%300)/10

		obs := provider.RawObservation{
			Provider:     c.name,
			DeviceID:     id,
			Name:         fmt.Sprintf("Fake %s %s", c.name, id),
			ShipmentType: "fake-tracker",
			Latitude:     &lat,
			Longitude:    &lon,
			Speed:        &speed,
			SpeedUnit:    provider.SpeedKmh,
			Temperature:  &temp,
			Battery: []provider.BatteryReading{
				{Rule: "fake", Value: float64(v % 101), Unit: provider.BatteryPercent},
			},
			Timestamp:    &ts,
			DeviceStatus: "online",
		}
		out = append(out, obs)
	}
	return out, nil
}

func hash(parts ...string) uint32 {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte("|"))
	}
	return h.Sum32()
}
