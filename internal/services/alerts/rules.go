package alerts

import (
	"fmt"
	"strconv"

	"github.com/BearBump/FleetSync/internal/models"
)

// Rule inspects one freshly persisted shipment. ok=false means no alert.
type Rule struct {
	Type  models.AlertType
	Check func(s *models.Shipment) (message string, severity models.AlertSeverity, ok bool)
}

const (
	lowBatteryThreshold      = 30
	criticalBatteryThreshold = 20
)

func DefaultRules() []Rule {
	return []Rule{
		{Type: models.AlertLowBattery, Check: lowBattery},
		{Type: models.AlertTemperatureExcursion, Check: temperatureExcursion},
	}
}

func lowBattery(s *models.Shipment) (string, models.AlertSeverity, bool) {
	// оценочное значение батареи не алертим, это не показание устройства
	if s.BatteryEstimated || s.BatteryLevel >= lowBatteryThreshold {
		return "", "", false
	}
	sev := models.SeverityWarning
	if s.BatteryLevel < criticalBatteryThreshold {
		sev = models.SeverityCritical
	}
	return fmt.Sprintf("Battery critically low: %d%%", s.BatteryLevel), sev, true
}

func temperatureExcursion(s *models.Shipment) (string, models.AlertSeverity, bool) {
	if s.Temperature == nil || s.TargetTempMin == nil || s.TargetTempMax == nil {
		return "", "", false
	}
	t, lo, hi := *s.Temperature, *s.TargetTempMin, *s.TargetTempMax
	if t >= lo && t <= hi {
		return "", "", false
	}
	return fmt.Sprintf("Temperature out of range: %s°C (Target: %s°C to %s°C)", num(t), num(lo), num(hi)),
		models.SeverityCritical, true
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
