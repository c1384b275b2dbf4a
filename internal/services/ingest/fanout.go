package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	msg "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/messages"
	"github.com/LeonardoBeccarini/greenhouse_pipeline/pkg/rabbitmq"
)

// Subscriber receives every accepted message. A returned error is logged,
// never propagated: delivery to live viewers is best-effort, not
// transactional with persistence.
type Subscriber func(m msg.GreenhouseMessage) error

// Fanout is an explicit in-process subscriber registry, invoked
// synchronously once per accepted message after the cache write.
type Fanout struct {
	mu   sync.RWMutex
	subs []Subscriber
}

func NewFanout() *Fanout {
	return &Fanout{}
}

func (f *Fanout) Subscribe(s Subscriber) {
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
}

// Publish delivers m to every registered subscriber.
func (f *Fanout) Publish(m msg.GreenhouseMessage) {
	f.mu.RLock()
	subs := f.subs
	f.mu.RUnlock()

	for _, s := range subs {
		if err := s(m); err != nil {
			log.Printf("fanout: subscriber error for tenant %s: %v", m.TenantID, err)
		}
	}
}

// NewLiveRelay returns the subscriber that forwards each message to the
// fixed real-time broadcast destination.
func NewLiveRelay(pub rabbitmq.IPublisher) Subscriber {
	return func(m msg.GreenhouseMessage) error {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("live relay marshal: %w", err)
		}
		if err := pub.PublishMessage(b); err != nil {
			return fmt.Errorf("live relay publish: %w", err)
		}
		return nil
	}
}
