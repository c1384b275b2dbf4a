package stats

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	msg "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse_pipeline/pkg/rabbitmq"
)

// TenantStats is the aggregate published to the statistics destination.
type TenantStats struct {
	TenantID  string    `json:"tenant_id"`
	Mean      float64   `json:"mean"`
	Max       float64   `json:"max"`
	Min       float64   `json:"min"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// Service buffers sensor values per tenant as messages flow through the
// fan-out and publishes aggregate statistics on a fixed interval.
type Service struct {
	publisher rabbitmq.IPublisher
	interval  time.Duration

	mu     sync.Mutex
	buffer map[string][]float64 // tenant -> sensor values since last cycle
}

func NewService(publisher rabbitmq.IPublisher, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		publisher: publisher,
		interval:  interval,
		buffer:    make(map[string][]float64),
	}
}

// Collect is registered as a fan-out subscriber; it records every sensor
// channel present in the message.
func (s *Service) Collect(m msg.GreenhouseMessage) error {
	values := make([]float64, 0, 4)
	for _, v := range []*float64{m.Sensor01, m.Sensor02, m.Sensor03, m.Sensor04} {
		if v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return nil
	}

	s.mu.Lock()
	s.buffer[m.TenantID] = append(s.buffer[m.TenantID], values...)
	s.mu.Unlock()
	return nil
}

// Start runs the aggregation ticker until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case <-ticker.C:
			s.aggregateAndPublish()
		}
	}
}

func (s *Service) aggregateAndPublish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tenant, values := range s.buffer {
		if len(values) == 0 {
			continue
		}
		out := TenantStats{
			TenantID:  tenant,
			Min:       values[0],
			Max:       values[0],
			Count:     len(values),
			Timestamp: time.Now().UTC(),
		}
		sum := 0.0
		for _, v := range values {
			sum += v
			if v > out.Max {
				out.Max = v
			}
			if v < out.Min {
				out.Min = v
			}
		}
		out.Mean = sum / float64(len(values))

		b, err := json.Marshal(out)
		if err != nil {
			log.Printf("stats: marshal err %v", err)
			continue
		}
		if err := s.publisher.PublishMessage(b); err != nil {
			log.Printf("stats: publish err for tenant %s: %v", tenant, err)
		}

		// reset buffer
		s.buffer[tenant] = values[:0]
	}
}
