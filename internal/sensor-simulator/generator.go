package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Tunables for the synthetic greenhouse climate.
const (
	baseTemperature = 24.0 // °C, mid-day greenhouse air
	baseHumidity    = 65.0 // %
	driftPerMin     = 0.4  // random walk amplitude per tick
)

// PayloadGenerator produces synthetic telemetry payloads for one simulated
// greenhouse, alternating between the two historical key conventions so the
// decoder's legacy path gets exercised too.
type PayloadGenerator struct {
	mu          sync.Mutex
	last        time.Time
	temperature float64
	humidity    float64
	legacy      bool
	rng         *rand.Rand
}

func NewPayloadGenerator(seed int64) *PayloadGenerator {
	return &PayloadGenerator{
		temperature: baseTemperature,
		humidity:    baseHumidity,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Next advances the simulated climate and returns one raw payload object.
// Every other payload uses the legacy Spanish key names.
func (g *PayloadGenerator) Next() map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.temperature = clamp(g.temperature+g.step(), 10, 45)
	g.humidity = clamp(g.humidity+g.step()*2, 20, 100)
	g.last = time.Now().UTC()
	g.legacy = !g.legacy

	sensor := g.temperature + g.step()
	setpoint := baseTemperature
	sector := float64(g.rng.Intn(2)) * 100 // valve fully open or closed
	extractor := float64(g.rng.Intn(2))

	if g.legacy {
		return map[string]interface{}{
			"TEMPERATURA INVERNADERO 01": round1(g.temperature),
			"HUMEDAD INVERNADERO 01":     round1(g.humidity),
			"SENSOR 01":                  round1(sensor),
			"CONSIGNA 01":                setpoint,
			"RIEGO SECTOR 01":            sector,
			"EXTRACTOR 01":               extractor,
			"RESERVA AGUA":               round1(40 + g.step()*5),
		}
	}
	return map[string]interface{}{
		"TEMP_01":      round1(g.temperature),
		"HUM_01":       round1(g.humidity),
		"SENSOR_01":    round1(sensor),
		"SETPOINT_01":  setpoint,
		"SECTOR_01":    sector,
		"EXTRACTOR_01": extractor,
		"RESERVA":      round1(40 + g.step()*5),
	}
}

func (g *PayloadGenerator) step() float64 {
	return (g.rng.Float64()*2 - 1) * driftPerMin
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
