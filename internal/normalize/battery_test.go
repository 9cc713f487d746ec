package normalize

import (
	"testing"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/stretchr/testify/require"
)

func TestDecodeBattery(t *testing.T) {
	r := func(v float64, u provider.BatteryUnit) provider.BatteryReading {
		return provider.BatteryReading{Rule: "test", Value: v, Unit: u}
	}

	cases := []struct {
		name      string
		in        []provider.BatteryReading
		want      int
		estimated bool
	}{
		{"percent", []provider.BatteryReading{r(87, provider.BatteryPercent)}, 87, false},
		{"percent rounded", []provider.BatteryReading{r(64.5, provider.BatteryPercent)}, 65, false},
		{"percent clamped", []provider.BatteryReading{r(130, provider.BatteryPercent)}, 100, false},
		{"explicit zero", []provider.BatteryReading{r(0, provider.BatteryPercent)}, 0, false},
		{"volts", []provider.BatteryReading{r(3.6, provider.BatteryVolts)}, 50, false},
		{"volts above 4.2 clamped", []provider.BatteryReading{r(4.4, provider.BatteryVolts)}, 100, false},
		{"volts out of range", []provider.BatteryReading{r(12.6, provider.BatteryVolts)}, 85, true},
		{"millivolts", []provider.BatteryReading{r(3700, provider.BatteryMillivolts)}, 58, false},
		{"unknown as percent", []provider.BatteryReading{r(42, provider.BatteryUnknown)}, 42, false},
		{"unknown as millivolts", []provider.BatteryReading{r(3700, provider.BatteryUnknown)}, 58, false},
		{"unknown garbage", []provider.BatteryReading{r(12000, provider.BatteryUnknown)}, 85, true},
		{"absent", nil, 85, true},
		{
			"percent wins over earlier reading",
			[]provider.BatteryReading{r(3.9, provider.BatteryVolts), r(20, provider.BatteryPercent)},
			20, false,
		},
		{
			"first decodable reading wins",
			[]provider.BatteryReading{r(9000, provider.BatteryUnknown), r(4.2, provider.BatteryVolts)},
			100, false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, est := DecodeBattery(tc.in, 85)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.estimated, est)
			require.GreaterOrEqual(t, got, 0)
			require.LessOrEqual(t, got, 100)
		})
	}
}
