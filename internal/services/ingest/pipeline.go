package ingest

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	msg "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/messages"
)

// TopicPrefix is the inbound telemetry topic root; the tenant identifier is
// the first segment after it ("greenhouse/data/{tenant}").
const TopicPrefix = "greenhouse/data/"

// Pipeline processes one inbound payload end to end:
// decode → resolve → cache full message → per-field throttle + durable batch
// → fan-out. The cache and the broadcast always see the full-resolution
// message; only the durable batch is decimated by the throttle. The stages
// after the resolver are each best-effort and independently fallible.
type Pipeline struct {
	resolver *Resolver
	cache    *RecentMessageCache
	throttle *SensorThrottle
	writer   *InfluxWriter
	fanout   *Fanout

	now func() time.Time
}

func NewPipeline(resolver *Resolver, cache *RecentMessageCache, throttle *SensorThrottle, writer *InfluxWriter, fanout *Fanout) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		cache:    cache,
		throttle: throttle,
		writer:   writer,
		fanout:   fanout,
		now:      time.Now,
	}
}

// Process ingests a single payload for the given tenant identifier. The
// returned error is fatal-for-message only (unknown tenant, no active
// greenhouse, unreadable payload); downstream-system unavailability never
// surfaces here.
func (p *Pipeline) Process(ctx context.Context, tenantCode string, payload []byte) error {
	now := p.now()

	m, readings, err := DecodePayload(payload, now)
	if err != nil {
		messagesFailed.WithLabelValues("decode").Inc()
		return err
	}

	tc, err := p.resolver.Resolve(ctx, tenantCode)
	if err != nil {
		messagesFailed.WithLabelValues("resolve").Inc()
		return err
	}
	m.TenantID = tc.TenantCode
	m.GreenhouseID = strconv.FormatInt(tc.GreenhouseID, 10)

	// cache first, always the full message
	p.cache.Record(ctx, tc.TenantCode, m)

	// durable write is throttled per individual sensor key
	accepted := make([]msg.Reading, 0, len(readings))
	for _, r := range readings {
		if p.throttle.ShouldAccept(ctx, r.Key, tc.GreenhouseID, now) {
			accepted = append(accepted, r)
		} else {
			readingsThrottled.Inc()
		}
	}
	if err := p.writer.WriteBatch(ctx, tc, accepted, now); err != nil {
		durableWriteFailures.Inc()
		log.Printf("ingest: durable write failed for tenant %s: %v", tc.TenantCode, err)
	} else {
		readingsWritten.Add(float64(len(accepted)))
	}

	p.fanout.Publish(m)
	messagesProcessed.Inc()
	return nil
}

// MessageHandler adapts Process to the MQTT consumer signature.
func (p *Pipeline) MessageHandler(_ string, message mqtt.Message) error {
	tenantCode := tenantFromTopic(message.Topic())
	if tenantCode == "" {
		log.Printf("ingest: no tenant identifier in topic %q; skipping", message.Topic())
		return nil
	}
	if err := p.Process(context.Background(), tenantCode, message.Payload()); err != nil {
		// fatal for this message: log with full context, no retry here
		// (redelivery is the broker's concern)
		return fmt.Errorf("ingest: tenant=%q payload=%dB: %w", tenantCode, len(message.Payload()), err)
	}
	return nil
}

// tenantFromTopic extracts the tenant identifier from
// "greenhouse/data/{tenant}[/...]".
func tenantFromTopic(topic string) string {
	suffix := strings.TrimPrefix(topic, TopicPrefix)
	if suffix == topic {
		return ""
	}
	if i := strings.IndexByte(suffix, '/'); i >= 0 {
		suffix = suffix[:i]
	}
	return strings.TrimSpace(suffix)
}
