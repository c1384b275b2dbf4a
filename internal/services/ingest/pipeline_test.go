package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	msg "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/messages"
)

// fakeWriteAPI records every batch handed to the durable writer.
type fakeWriteAPI struct {
	mu      sync.Mutex
	batches [][]*write.Point
	err     error
}

func (f *fakeWriteAPI) WriteRecord(_ context.Context, _ ...string) error { return f.err }

func (f *fakeWriteAPI) WritePoint(_ context.Context, point ...*write.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, point)
	return nil
}

func (f *fakeWriteAPI) EnableBatching() {}

func (f *fakeWriteAPI) Flush(_ context.Context) error { return nil }

type pipelineHarness struct {
	pipeline   *Pipeline
	dir        *fakeDirectory
	msgStore   *fakeMessageStore
	thStore    *fakeThrottleStore
	writeAPI   *fakeWriteAPI
	cache      *RecentMessageCache
	broadcasts []msg.GreenhouseMessage
}

func newPipelineHarness(t *testing.T, throttleInterval time.Duration) *pipelineHarness {
	t.Helper()

	h := &pipelineHarness{
		dir:      newFakeDirectory(),
		msgStore: newFakeMessageStore(),
		thStore:  newFakeThrottleStore(),
		writeAPI: &fakeWriteAPI{},
	}
	h.dir.addTenant("T1", 1, 7)

	h.cache = NewRecentMessageCache(h.msgStore, 1000, 24*time.Hour)
	throttle := NewSensorThrottle(h.thStore, throttleInterval, true)
	writer := NewInfluxWriter(h.writeAPI, "greenhouse_telemetry")

	fanout := NewFanout()
	fanout.Subscribe(func(m msg.GreenhouseMessage) error {
		h.broadcasts = append(h.broadcasts, m)
		return nil
	})

	h.pipeline = NewPipeline(NewResolver(h.dir), h.cache, throttle, writer, fanout)
	return h
}

func TestPipelineEndToEnd(t *testing.T) {
	h := newPipelineHarness(t, 30*time.Second)
	t0 := time.UnixMilli(1000)
	h.pipeline.now = func() time.Time { return t0 }
	ctx := context.Background()

	err := h.pipeline.Process(ctx, "T1", []byte(`{"SENSOR_01": 1.23, "SETPOINT_01": 0.5}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	// durable store got one 2-row batch tagged with the shared timestamp
	if len(h.writeAPI.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(h.writeAPI.batches))
	}
	batch := h.writeAPI.batches[0]
	if len(batch) != 2 {
		t.Fatalf("batch rows = %d, want 2", len(batch))
	}
	for _, p := range batch {
		if !p.Time().Equal(t0) {
			t.Errorf("point time = %v, want %v", p.Time(), t0)
		}
	}

	// cache holds one full-resolution message
	if n := h.cache.Count(ctx, "T1"); n != 1 {
		t.Fatalf("cache count = %d, want 1", n)
	}
	cached := h.cache.Latest(ctx, "T1")
	if cached == nil || cached.Sensor01 == nil || *cached.Sensor01 != 1.23 {
		t.Errorf("cached message = %+v, want sensor01=1.23", cached)
	}
	if cached.Setpoint01 == nil || *cached.Setpoint01 != 0.5 {
		t.Errorf("cached setpoint = %+v, want 0.5", cached.Setpoint01)
	}
	if cached.TenantID != "T1" || cached.GreenhouseID != "7" {
		t.Errorf("cached routing = %s/%s, want T1/7", cached.TenantID, cached.GreenhouseID)
	}

	// exactly one broadcast event
	if len(h.broadcasts) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(h.broadcasts))
	}
	if h.broadcasts[0].TenantID != "T1" {
		t.Errorf("broadcast tenant = %s", h.broadcasts[0].TenantID)
	}
}

func TestPipelineThrottleGatesOnlyDurableWrites(t *testing.T) {
	h := newPipelineHarness(t, 30*time.Second)
	t0 := time.UnixMilli(1000)
	now := t0
	h.pipeline.now = func() time.Time { return now }
	ctx := context.Background()
	payload := []byte(`{"SENSOR_01": 1.0}`)

	if err := h.pipeline.Process(ctx, "T1", payload); err != nil {
		t.Fatalf("first process: %v", err)
	}
	now = t0.Add(time.Second)
	if err := h.pipeline.Process(ctx, "T1", payload); err != nil {
		t.Fatalf("second process: %v", err)
	}

	// only the first message reached the durable store
	if len(h.writeAPI.batches) != 1 {
		t.Errorf("batches = %d, want 1 (second reading throttled)", len(h.writeAPI.batches))
	}
	// cache and broadcast saw both: throttling never touches those paths
	if n := h.cache.Count(ctx, "T1"); n != 2 {
		t.Errorf("cache count = %d, want 2", n)
	}
	if len(h.broadcasts) != 2 {
		t.Errorf("broadcasts = %d, want 2", len(h.broadcasts))
	}
}

func TestPipelineCacheOutageDoesNotBlockIngestion(t *testing.T) {
	h := newPipelineHarness(t, 30*time.Second)
	h.msgStore.failing = true
	ctx := context.Background()

	err := h.pipeline.Process(ctx, "T1", []byte(`{"SENSOR_01": 1.23}`))
	if err != nil {
		t.Fatalf("cache outage must not fail the message: %v", err)
	}
	if len(h.writeAPI.batches) != 1 {
		t.Errorf("durable write skipped during cache outage: batches = %d", len(h.writeAPI.batches))
	}
	if len(h.broadcasts) != 1 {
		t.Errorf("broadcast skipped during cache outage: %d", len(h.broadcasts))
	}
}

func TestPipelineDurableOutageDoesNotBlockBroadcast(t *testing.T) {
	h := newPipelineHarness(t, 30*time.Second)
	h.writeAPI.err = errors.New("influx unreachable")
	ctx := context.Background()

	err := h.pipeline.Process(ctx, "T1", []byte(`{"SENSOR_01": 1.23}`))
	if err != nil {
		t.Fatalf("durable outage must not fail the message: %v", err)
	}
	if n := h.cache.Count(ctx, "T1"); n != 1 {
		t.Errorf("cache count = %d, want 1", n)
	}
	if len(h.broadcasts) != 1 {
		t.Errorf("broadcasts = %d, want 1", len(h.broadcasts))
	}
}

func TestPipelineUnknownTenantHasNoSideEffects(t *testing.T) {
	h := newPipelineHarness(t, 30*time.Second)
	ctx := context.Background()

	err := h.pipeline.Process(ctx, "GHOST", []byte(`{"SENSOR_01": 1.23}`))
	if !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("err = %v, want ErrTenantNotFound", err)
	}
	if len(h.writeAPI.batches) != 0 {
		t.Errorf("durable write for unknown tenant")
	}
	if len(h.broadcasts) != 0 {
		t.Errorf("broadcast for unknown tenant")
	}
	if n := h.cache.Count(ctx, "GHOST"); n != 0 {
		t.Errorf("cache write for unknown tenant")
	}
}

func TestPipelineNoActiveGreenhouseHasNoSideEffects(t *testing.T) {
	h := newPipelineHarness(t, 30*time.Second)
	h.dir.addTenant("T2", 2) // tenant exists, zero active greenhouses
	ctx := context.Background()

	err := h.pipeline.Process(ctx, "T2", []byte(`{"SENSOR_01": 1.23}`))
	if !errors.Is(err, ErrNoActiveGreenhouse) {
		t.Fatalf("err = %v, want ErrNoActiveGreenhouse", err)
	}
	if len(h.writeAPI.batches) != 0 || len(h.broadcasts) != 0 {
		t.Errorf("side effects for tenant without active greenhouse")
	}
	if n := h.cache.Count(ctx, "T2"); n != 0 {
		t.Errorf("cache write for tenant without active greenhouse")
	}
}

func TestTenantFromTopic(t *testing.T) {
	cases := []struct {
		topic string
		want  string
	}{
		{"greenhouse/data/T1", "T1"},
		{"greenhouse/data/T1/extra", "T1"},
		{"greenhouse/data/", ""},
		{"other/topic", ""},
	}
	for _, c := range cases {
		if got := tenantFromTopic(c.topic); got != c.want {
			t.Errorf("tenantFromTopic(%q) = %q, want %q", c.topic, got, c.want)
		}
	}
}
