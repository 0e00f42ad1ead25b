// Package metrics holds the Prometheus collectors shared by the pollers and
// the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
	OutcomeRejected  = "rejected"
)

var (
	pollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daodash",
		Name:      "poll_total",
		Help:      "Poll invocations by poller and outcome.",
	}, []string{"poller", "outcome"})

	pollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "daodash",
		Name:      "poll_duration_seconds",
		Help:      "Duration of poll fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"poller"})

	lastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "daodash",
		Name:      "poll_last_success_timestamp_seconds",
		Help:      "Unix time of the last applied successful poll.",
	}, []string{"poller"})

	voteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daodash",
		Name:      "vote_submissions_total",
		Help:      "Vote submissions by outcome.",
	}, []string{"outcome"})
)

// ObservePoll records one finished fetch
func ObservePoll(poller, outcome string, seconds float64) {
	pollTotal.WithLabelValues(poller, outcome).Inc()
	pollDuration.WithLabelValues(poller).Observe(seconds)
}

// MarkSuccess records the time of an applied successful poll
func MarkSuccess(poller string, unixSeconds float64) {
	lastSuccess.WithLabelValues(poller).Set(unixSeconds)
}

// ObserveVote records one finished vote submission
func ObserveVote(outcome string) {
	voteTotal.WithLabelValues(outcome).Inc()
}
