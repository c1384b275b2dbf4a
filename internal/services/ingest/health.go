package ingest

import (
	"encoding/json"
	"net/http"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/redis/go-redis/v9"
)

type healthHandler struct {
	mqtt   mqtt.Client
	influx influxdb2.Client
	rdb    *redis.Client
}

func NewHealthHandler(m mqtt.Client, i influxdb2.Client, rdb *redis.Client) http.Handler {
	return &healthHandler{mqtt: m, influx: i, rdb: rdb}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Status        string `json:"status"`
		MQTTConnected bool   `json:"mqtt_connected"`
		InfluxOK      bool   `json:"influx_ok"`
		RedisOK       bool   `json:"redis_ok"`
	}
	st := status{
		MQTTConnected: h.mqtt != nil && h.mqtt.IsConnectionOpen(),
		InfluxOK:      h.influx != nil,
		RedisOK:       h.rdb != nil && h.rdb.Ping(r.Context()).Err() == nil,
	}

	// redis down is degraded, not down: the pipeline keeps ingesting on the
	// local fallback
	switch {
	case st.MQTTConnected && st.InfluxOK && st.RedisOK:
		st.Status = "ok"
	case st.MQTTConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	mqtt   mqtt.Client
	influx influxdb2.Client
}

// NewReadyHandler answers 200 only once the transport and the store clients
// are up.
func NewReadyHandler(m mqtt.Client, i influxdb2.Client) http.Handler {
	return &readyHandler{mqtt: m, influx: i}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.mqtt != nil && h.mqtt.IsConnectionOpen() && h.influx != nil
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	w.Header().Set("Content-Type", "application/json")
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
