package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waba_bridge",
			Name:      "webhook_events_total",
			Help:      "Total number of webhook envelopes dispatched.",
		},
		[]string{"event_type", "result"}, // result: "processed", "ignored", "error"
	)

	inboundMessagesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waba_bridge",
			Name:      "inbound_messages_total",
			Help:      "Total number of inbound messages persisted, by content kind.",
		},
		[]string{"kind"},
	)

	mediaDownloadFailuresCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "waba_bridge",
			Name:      "media_download_failures_total",
			Help:      "Inbound media downloads that degraded to a placeholder message.",
		},
	)

	ackEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waba_bridge",
			Name:      "ack_events_total",
			Help:      "Delivery-status events processed, by correlation result.",
		},
		[]string{"result"}, // "updated", "unknown_message", "unknown_status", "error"
	)

	outboundSendsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waba_bridge",
			Name:      "outbound_sends_total",
			Help:      "Outbound gateway submissions, by content kind and result.",
		},
		[]string{"kind", "result"}, // result: "submitted", "rejected", "error"
	)

	webhookProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "waba_bridge",
			Name:      "webhook_processing_duration_seconds",
			Help:      "Post-acknowledgment processing duration per envelope.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)
)
