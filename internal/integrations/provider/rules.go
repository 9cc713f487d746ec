package provider

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Rule names one field of a provider payload. Path walks nested objects,
// e.g. []string{"batteryInfo", "batteryLevelPercentage"}.
type Rule struct {
	Name string
	Path []string
	Unit BatteryUnit
	// KeepZero keeps a literal 0; otherwise 0 is treated as "not reported".
	KeepZero bool
}

// BatteryReadings applies rules in order and returns every value found.
func BatteryReadings(doc map[string]any, rules []Rule) []BatteryReading {
	var out []BatteryReading
	for _, r := range rules {
		v, ok := Number(doc, r.Path...)
		if !ok || (v == 0 && !r.KeepZero) {
			continue
		}
		out = append(out, BatteryReading{Rule: r.Name, Value: v, Unit: r.Unit})
	}
	return out
}

// FirstNumber returns the value of the first rule that matches.
func FirstNumber(doc map[string]any, rules []Rule) *float64 {
	for _, r := range rules {
		v, ok := Number(doc, r.Path...)
		if !ok {
			continue
		}
		return &v
	}
	return nil
}

// Number reads a numeric value at path. Numeric strings are accepted, since
// several providers quote sensor values.
func Number(doc map[string]any, path ...string) (float64, bool) {
	v, ok := lookup(doc, path)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func String(doc map[string]any, path ...string) string {
	v, ok := lookup(doc, path)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func lookup(doc map[string]any, path []string) (any, bool) {
	if len(path) == 0 || doc == nil {
		return nil, false
	}
	var cur any = doc
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func Float(v float64) *float64 { return &v }

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
}

// ParseTime accepts the ISO-8601 flavours seen across providers. Empty or
// unparsable input yields nil.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
