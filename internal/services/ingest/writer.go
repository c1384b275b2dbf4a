package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	msg "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/messages"
)

// InfluxWriter batch-appends accepted readings to the time-series store.
// One WritePoint call per inbound message amortizes the write overhead; the
// retry policy belongs to the Influx client, not to the pipeline.
type InfluxWriter struct {
	writeAPI    api.WriteAPIBlocking
	measurement string
}

func NewInfluxWriter(writeAPI api.WriteAPIBlocking, measurement string) *InfluxWriter {
	if measurement == "" {
		measurement = "greenhouse_telemetry"
	}
	return &InfluxWriter{writeAPI: writeAPI, measurement: sanitizeMeasurement(measurement)}
}

// WriteBatch appends one row per reading, all tagged with the same shared
// timestamp and the resolved tenant/greenhouse.
func (w *InfluxWriter) WriteBatch(ctx context.Context, tc TenantContext, readings []msg.Reading, at time.Time) error {
	if len(readings) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		tags := map[string]string{
			"sensor_id":     r.Key,
			"greenhouse_id": strconv.FormatInt(tc.GreenhouseID, 10),
			"tenant_id":     tc.TenantCode,
			"sensor_type":   string(r.Category),
		}
		if r.Unit != "" {
			tags["unit"] = r.Unit
		}
		fields := map[string]interface{}{
			"value": r.Value,
		}
		points = append(points, influxdb2.NewPoint(w.measurement, tags, fields, at))
	}

	if err := w.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx batch write (%d rows): %w", len(points), err)
	}
	return nil
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
