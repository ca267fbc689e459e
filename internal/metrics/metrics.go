package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storefront_http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "route", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "storefront_http_in_flight_requests", Help: "In-flight HTTP requests"},
	)

	// VerificationPolls counts poll ticks by result: verified, pending, error, stale
	VerificationPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storefront_verification_polls_total", Help: "Verification poll attempts"},
		[]string{"result"},
	)
	// IdentityEvents counts identity changes seen by the resolver
	IdentityEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storefront_identity_events_total", Help: "Identity change events handled"},
		[]string{"kind"},
	)
	AuthFlows = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "storefront_auth_flows_total", Help: "Auth flow outcomes"},
		[]string{"flow", "outcome"},
	)
)

const (
	PollVerified = "verified"
	PollPending  = "pending"
	PollError    = "error"
	PollStale    = "stale"

	EventSignedIn         = "signed_in"
	EventSignedOut        = "signed_out"
	EventDeniedUnverified = "denied_unverified"

	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

func MustRegister() {
	prometheus.MustRegister(RequestsTotal, ReqDuration, InFlight, VerificationPolls, IdentityEvents, AuthFlows)
}
