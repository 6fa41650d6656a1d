// Package services – Prometheus domain metrics.
//
// HTTP-level metrics (request counts, latency) live in the middleware layer;
// the collectors here track the business pipeline: issues published, rows
// fanned out into the delivery queue, idempotent replays served, and the
// worker's send outcomes.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	issuesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_issues_published_total",
		Help: "Total number of newsletter issues published.",
	})

	deliveriesEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_deliveries_enqueued_total",
		Help: "Total number of delivery queue rows written at publish time.",
	})

	replaysServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_idempotent_replays_total",
		Help: "Total number of responses replayed from the saved-response store.",
	})

	deliveriesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_deliveries_sent_total",
		Help: "Total number of issue emails successfully sent by the worker.",
	})

	deliveriesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_deliveries_failed_total",
		Help: "Total number of failed send attempts recorded by the worker.",
	})
)

func init() {
	prometheus.MustRegister(
		issuesPublished,
		deliveriesEnqueued,
		replaysServed,
		deliveriesSent,
		deliveriesFailed,
	)
}
