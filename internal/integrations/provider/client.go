package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
)

const (
	Traccar   = "traccar"
	Sensolus  = "sensolus"
	Tive      = "tive"
	Project44 = "project44"
)

// ShipmentPrefix maps a provider name to the prefix of canonical shipment ids.
var ShipmentPrefix = map[string]string{
	Traccar:   "TRACCAR",
	Sensolus:  "SENSOLUS",
	Tive:      "TIVE",
	Project44: "P44",
}

type SpeedUnit string

const (
	SpeedKmh   SpeedUnit = "kmh"
	SpeedKnots SpeedUnit = "knots"
)

type BatteryUnit string

const (
	BatteryPercent    BatteryUnit = "percent"
	BatteryVolts      BatteryUnit = "volts"
	BatteryMillivolts BatteryUnit = "millivolts"
	BatteryUnknown    BatteryUnit = "unknown"
)

// BatteryReading is one value picked by a named extraction rule.
type BatteryReading struct {
	Rule  string
	Value float64
	Unit  BatteryUnit
}

// RawObservation is the provider-shaped view of one device during a single sync pass.
// Optional fields stay nil when the provider does not report them.
type RawObservation struct {
	Provider     string
	DeviceID     string
	Name         string
	ShipmentType string

	Latitude  *float64
	Longitude *float64

	Speed     *float64
	SpeedUnit SpeedUnit
	Course    *float64
	Altitude  *float64

	Battery []BatteryReading

	Temperature   *float64
	Humidity      *float64
	TargetTempMin *float64
	TargetTempMax *float64
	Geofence      *string

	Timestamp    *time.Time
	DeviceStatus string
}

func (o RawObservation) HasPosition() bool {
	return o.Latitude != nil && o.Longitude != nil
}

func (o RawObservation) ShipmentID() string {
	prefix, ok := ShipmentPrefix[o.Provider]
	if !ok {
		prefix = strings.ToUpper(o.Provider)
	}
	return prefix + "-" + o.DeviceID
}

type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]RawObservation, error)
}

// Failure is the diagnostic of a provider that contributed nothing to a sync.
type Failure struct {
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Provider, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// SafeFetch calls the adapter with its own deadline and turns any error or panic
// into a *Failure wrapping models.ErrProviderUnavailable.
func SafeFetch(ctx context.Context, a Adapter, timeout time.Duration) (out []RawObservation, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &Failure{
				Provider: a.Name(),
				Err:      errors.Wrap(models.ErrProviderUnavailable, fmt.Sprintf("panic: %v", r)),
			}
		}
	}()

	obs, ferr := a.Fetch(ctx)
	if ferr != nil {
		if !errors.Is(ferr, models.ErrProviderUnavailable) {
			ferr = errors.Wrap(models.ErrProviderUnavailable, ferr.Error())
		}
		return nil, &Failure{Provider: a.Name(), Err: ferr}
	}
	return obs, nil
}
