package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type consumerMetrics struct {
	queueDepth    *prometheus.GaugeVec
	handleLatency *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &consumerMetrics{
		queueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "alphadesk_kafka_consumer_queue_depth", Help: "Messages waiting in the consumer queue"},
			[]string{"topic"},
		),
		handleLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "alphadesk_kafka_consumer_handle_seconds", Help: "Handling time per message", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{Name: "alphadesk_kafka_consumer_messages_total", Help: "Consumed messages by outcome"},
			[]string{"topic", "outcome"},
		),
	}
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &producerMetrics{
		messages: f.NewCounterVec(
			prometheus.CounterOpts{Name: "alphadesk_kafka_producer_messages_total", Help: "Messages published to Kafka"},
			[]string{"topic", "result"},
		),
		bytes: f.NewCounterVec(
			prometheus.CounterOpts{Name: "alphadesk_kafka_producer_bytes_total", Help: "Payload bytes published"},
			[]string{"topic"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "alphadesk_kafka_producer_publish_seconds", Help: "Publish latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		),
	}
}

func (m *producerMetrics) observe(topic string, size int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(topic, result).Inc()
	m.bytes.WithLabelValues(topic).Add(float64(size))
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
