package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the message pipeline. The fiberprometheus middleware
// covers HTTP-level metrics; these track routing and collaborator outcomes.
var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faqbridge_messages_total",
		Help: "Messages handled, labeled by routing decision",
	}, []string{"route"})

	replyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faqbridge_reply_failures_total",
		Help: "Failed LINE reply API calls",
	})

	llmFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faqbridge_llm_failures_total",
		Help: "Failed completion/embedding API calls, labeled by operation",
	}, []string{"op"})

	handoffNotifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faqbridge_handoff_notify_failures_total",
		Help: "Failed handoff notification webhook deliveries",
	})

	duplicateEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faqbridge_duplicate_events_total",
		Help: "Webhook events skipped as redeliveries",
	})

	faqCatalogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "faqbridge_faq_catalog_entries",
		Help: "Entries in the currently loaded FAQ catalog",
	})

	faqReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faqbridge_faq_reloads_total",
		Help: "Successful FAQ catalog reloads",
	})
)
