package normalize

import (
	"math"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
)

const (
	cellMinVolts = 3.0
	cellMaxVolts = 4.5
	cellSpan     = 1.2 // 3.0V..4.2V
)

// DecodeBattery turns the readings picked by a provider's rules into a percentage.
// Priority: an explicit percent field, then the first reading whose value
// decodes as percent, Li-ion volts or millivolts. With no usable reading it
// returns defaultLevel and estimated=true.
func DecodeBattery(readings []provider.BatteryReading, defaultLevel int) (level int, estimated bool) {
	for _, r := range readings {
		if r.Unit == provider.BatteryPercent && !math.IsNaN(r.Value) {
			return clampPct(math.Round(r.Value)), false
		}
	}
	for _, r := range readings {
		if pct, ok := decodeValue(r.Value, r.Unit); ok {
			return pct, false
		}
	}
	return clampPct(float64(defaultLevel)), true
}

func decodeValue(v float64, unit provider.BatteryUnit) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	switch unit {
	case provider.BatteryVolts:
		return fromVolts(v)
	case provider.BatteryMillivolts:
		return fromMillivolts(v)
	}

	if v >= 0 && v <= 100 {
		return clampPct(math.Round(v)), true
	}
	if pct, ok := fromVolts(v); ok {
		return pct, true
	}
	return fromMillivolts(v)
}

func fromVolts(v float64) (int, bool) {
	if v < cellMinVolts || v > cellMaxVolts {
		return 0, false
	}
	return clampPct(math.Round((v - cellMinVolts) / cellSpan * 100)), true
}

func fromMillivolts(v float64) (int, bool) {
	if v <= 1000 || v >= 5000 {
		return 0, false
	}
	return fromVolts(v / 1000)
}

func clampPct(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v)
	}
}
