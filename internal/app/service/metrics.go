package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Notification outcomes.
const (
	outcomeSent        = "sent"
	outcomeFailed      = "failed"
	outcomeFiltered    = "filtered"
	outcomeNoWebhook   = "no_webhook"
	outcomeRateLimited = "rate_limited"
	outcomeError       = "error"
)

var (
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clickhook",
		Name:      "notifications_total",
		Help:      "Click notifications by pipeline outcome.",
	}, []string{"outcome"})

	keywordHintsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clickhook",
		Name:      "keyword_hints_total",
		Help:      "Creation-time keyword hints stored and consumed.",
	}, []string{"action"})

	ledgerSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clickhook",
		Name:      "ledger_entries_swept_total",
		Help:      "Rate-limit ledger entries removed by the sweeper.",
	})
)
