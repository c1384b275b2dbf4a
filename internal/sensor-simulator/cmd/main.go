package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	sim "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/greenhouse_pipeline/pkg/rabbitmq"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	cfg := struct {
		Rabbit   rabbitmq.RabbitMQConfig
		Tenants  []string
		Interval time.Duration
	}{
		Rabbit: rabbitmq.RabbitMQConfig{
			Host:     envStr("MQTT_HOST", "localhost"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", "guest"),
			Password: envStr("MQTT_PASSWORD", "guest"),
			ClientID: envStr("HOSTNAME", "greenhouse-simulator"),
		},
		Tenants: func() []string {
			raw := envStr("SIM_TENANTS", "T1,T2")
			parts := strings.Split(raw, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if s := strings.TrimSpace(p); s != "" {
					out = append(out, s)
				}
			}
			return out
		}(),
		Interval: time.Duration(envInt("SIM_INTERVAL_S", 10)) * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := rabbitmq.NewRabbitMQConn(&cfg.Rabbit, ctx)
	if err != nil {
		log.Fatalf("mqtt connection error: %v", err)
	}
	defer rabbitmq.CloseRabbitMQConn(client)

	type sender struct {
		pub *rabbitmq.Publisher
		gen *sim.PayloadGenerator
	}
	senders := make(map[string]sender, len(cfg.Tenants))
	for i, tenant := range cfg.Tenants {
		senders[tenant] = sender{
			pub: rabbitmq.NewPublisher(client, "greenhouse/data/"+tenant),
			gen: sim.NewPayloadGenerator(int64(i) + time.Now().UnixNano()),
		}
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	log.Printf("simulator: publishing for %d tenants every %s", len(senders), cfg.Interval)
	for {
		select {
		case <-sigCh:
			log.Println("simulator: shutting down...")
			return
		case <-ticker.C:
			for tenant, s := range senders {
				b, err := json.Marshal(s.gen.Next())
				if err != nil {
					log.Printf("simulator: marshal err %v", err)
					continue
				}
				if err := s.pub.PublishMessage(b); err != nil {
					log.Printf("simulator: publish err for %s: %v", tenant, err)
				}
			}
		}
	}
}
