package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	msg "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/messages"
)

// categoryRule classifies a sensor key by prefix/substring match. The rules
// are evaluated top to bottom, first match wins; keys matching nothing keep
// category UNKNOWN so no telemetry is silently discarded.
type categoryRule struct {
	match    func(key string) bool
	category msg.ReadingCategory
	unit     string
}

func hasPrefix(p string) func(string) bool {
	return func(k string) bool { return strings.HasPrefix(k, p) }
}

func contains(s string) func(string) bool {
	return func(k string) bool { return strings.Contains(k, s) }
}

func anyOf(ms ...func(string) bool) func(string) bool {
	return func(k string) bool {
		for _, m := range ms {
			if m(k) {
				return true
			}
		}
		return false
	}
}

// Two generations of controllers name their channels differently: the old
// ones in Spanish long form ("TEMPERATURA INVERNADERO 01"), the new ones
// with underscored short keys ("TEMP_01"). New conventions are added here.
var categoryRules = []categoryRule{
	{anyOf(contains("TEMPERATURA"), hasPrefix("TEMP")), msg.CategoryTemperature, "°C"},
	{anyOf(contains("HUMEDAD"), hasPrefix("HUM")), msg.CategoryHumidity, "%"},
	{anyOf(hasPrefix("SETPOINT"), contains("CONSIGNA")), msg.CategorySetpoint, ""},
	{hasPrefix("SENSOR"), msg.CategorySensor, ""},
	{contains("SECTOR"), msg.CategorySector, "%"},
	{hasPrefix("EXTRACTOR"), msg.CategoryExtractor, ""},
}

func classify(key string) (msg.ReadingCategory, string) {
	k := strings.ToUpper(strings.TrimSpace(key))
	for _, r := range categoryRules {
		if r.match(k) {
			return r.category, r.unit
		}
	}
	return msg.CategoryUnknown, ""
}

// fieldTable maps every recognized key alias (normalized to upper case) to
// the GreenhouseMessage field it fills.
var fieldTable = map[string]func(*msg.GreenhouseMessage, float64){
	"SENSOR_01": func(m *msg.GreenhouseMessage, v float64) { m.Sensor01 = &v },
	"SENSOR 01": func(m *msg.GreenhouseMessage, v float64) { m.Sensor01 = &v },
	"SENSOR_02": func(m *msg.GreenhouseMessage, v float64) { m.Sensor02 = &v },
	"SENSOR 02": func(m *msg.GreenhouseMessage, v float64) { m.Sensor02 = &v },
	"SENSOR_03": func(m *msg.GreenhouseMessage, v float64) { m.Sensor03 = &v },
	"SENSOR 03": func(m *msg.GreenhouseMessage, v float64) { m.Sensor03 = &v },
	"SENSOR_04": func(m *msg.GreenhouseMessage, v float64) { m.Sensor04 = &v },
	"SENSOR 04": func(m *msg.GreenhouseMessage, v float64) { m.Sensor04 = &v },

	"SETPOINT_01": func(m *msg.GreenhouseMessage, v float64) { m.Setpoint01 = &v },
	"CONSIGNA 01": func(m *msg.GreenhouseMessage, v float64) { m.Setpoint01 = &v },
	"SETPOINT_02": func(m *msg.GreenhouseMessage, v float64) { m.Setpoint02 = &v },
	"CONSIGNA 02": func(m *msg.GreenhouseMessage, v float64) { m.Setpoint02 = &v },
	"SETPOINT_03": func(m *msg.GreenhouseMessage, v float64) { m.Setpoint03 = &v },
	"CONSIGNA 03": func(m *msg.GreenhouseMessage, v float64) { m.Setpoint03 = &v },
	"SETPOINT_04": func(m *msg.GreenhouseMessage, v float64) { m.Setpoint04 = &v },
	"CONSIGNA 04": func(m *msg.GreenhouseMessage, v float64) { m.Setpoint04 = &v },

	"TEMP_01":                   func(m *msg.GreenhouseMessage, v float64) { m.Temperature01 = &v },
	"TEMPERATURA INVERNADERO 01": func(m *msg.GreenhouseMessage, v float64) { m.Temperature01 = &v },
	"TEMP_02":                   func(m *msg.GreenhouseMessage, v float64) { m.Temperature02 = &v },
	"TEMPERATURA INVERNADERO 02": func(m *msg.GreenhouseMessage, v float64) { m.Temperature02 = &v },

	"HUM_01":                func(m *msg.GreenhouseMessage, v float64) { m.Humidity01 = &v },
	"HUMEDAD INVERNADERO 01": func(m *msg.GreenhouseMessage, v float64) { m.Humidity01 = &v },
	"HUM_02":                func(m *msg.GreenhouseMessage, v float64) { m.Humidity02 = &v },
	"HUMEDAD INVERNADERO 02": func(m *msg.GreenhouseMessage, v float64) { m.Humidity02 = &v },

	"SECTOR_01":      func(m *msg.GreenhouseMessage, v float64) { m.Sector01 = &v },
	"RIEGO SECTOR 01": func(m *msg.GreenhouseMessage, v float64) { m.Sector01 = &v },
	"SECTOR_02":      func(m *msg.GreenhouseMessage, v float64) { m.Sector02 = &v },
	"RIEGO SECTOR 02": func(m *msg.GreenhouseMessage, v float64) { m.Sector02 = &v },
	"SECTOR_03":      func(m *msg.GreenhouseMessage, v float64) { m.Sector03 = &v },
	"RIEGO SECTOR 03": func(m *msg.GreenhouseMessage, v float64) { m.Sector03 = &v },
	"SECTOR_04":      func(m *msg.GreenhouseMessage, v float64) { m.Sector04 = &v },
	"RIEGO SECTOR 04": func(m *msg.GreenhouseMessage, v float64) { m.Sector04 = &v },
	"SECTOR_05":      func(m *msg.GreenhouseMessage, v float64) { m.Sector05 = &v },
	"RIEGO SECTOR 05": func(m *msg.GreenhouseMessage, v float64) { m.Sector05 = &v },
	"SECTOR_06":      func(m *msg.GreenhouseMessage, v float64) { m.Sector06 = &v },
	"RIEGO SECTOR 06": func(m *msg.GreenhouseMessage, v float64) { m.Sector06 = &v },

	"EXTRACTOR_01": func(m *msg.GreenhouseMessage, v float64) { m.Extractor01 = &v },
	"EXTRACTOR 01": func(m *msg.GreenhouseMessage, v float64) { m.Extractor01 = &v },
	"EXTRACTOR_02": func(m *msg.GreenhouseMessage, v float64) { m.Extractor02 = &v },
	"EXTRACTOR 02": func(m *msg.GreenhouseMessage, v float64) { m.Extractor02 = &v },
	"EXTRACTOR_03": func(m *msg.GreenhouseMessage, v float64) { m.Extractor03 = &v },
	"EXTRACTOR 03": func(m *msg.GreenhouseMessage, v float64) { m.Extractor03 = &v },
	"EXTRACTOR_04": func(m *msg.GreenhouseMessage, v float64) { m.Extractor04 = &v },
	"EXTRACTOR 04": func(m *msg.GreenhouseMessage, v float64) { m.Extractor04 = &v },

	"RESERVA":      func(m *msg.GreenhouseMessage, v float64) { m.Reserve = &v },
	"RESERVA AGUA": func(m *msg.GreenhouseMessage, v float64) { m.Reserve = &v },
}

// DecodePayload turns a raw JSON object into a GreenhouseMessage plus the
// flat reading sequence for every key present, recognized or not. A key
// whose value cannot be coerced to a number is skipped; everything else
// still decodes. No side effects, safe to call concurrently.
func DecodePayload(raw []byte, at time.Time) (msg.GreenhouseMessage, []msg.Reading, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return msg.GreenhouseMessage{}, nil, fmt.Errorf("invalid payload: %w", err)
	}

	out := msg.GreenhouseMessage{Timestamp: at.UnixMilli()}

	// iteration order of a map is random; sort so that decoding the same
	// payload twice yields the same reading sequence
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	readings := make([]msg.Reading, 0, len(keys))
	for _, k := range keys {
		v, ok := coerceNumeric(obj[k])
		if !ok {
			continue
		}
		category, unit := classify(k)
		readings = append(readings, msg.Reading{Key: k, Value: v, Category: category, Unit: unit})

		if assign, ok := fieldTable[strings.ToUpper(strings.TrimSpace(k))]; ok {
			assign(&out, v)
		}
	}
	return out, readings, nil
}

func coerceNumeric(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		// actuator states arrive as booleans from the newer controllers
		if x {
			return 1, true
		}
		return 0, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
