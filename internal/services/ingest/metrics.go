package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "greenhouse_messages_processed_total",
		Help: "Inbound payloads fully processed by the pipeline.",
	})
	messagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "greenhouse_messages_failed_total",
		Help: "Inbound payloads dropped, by reason.",
	}, []string{"reason"})
	readingsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "greenhouse_readings_written_total",
		Help: "Readings appended to the time-series store.",
	})
	readingsThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "greenhouse_readings_throttled_total",
		Help: "Readings dropped by the per-sensor write throttle.",
	})
	durableWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "greenhouse_durable_write_failures_total",
		Help: "Failed batch writes to the time-series store.",
	})
)
