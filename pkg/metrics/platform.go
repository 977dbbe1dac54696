package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every exported series.
const Namespace = "cardapy"

// Binding outcomes.
const (
	BindOK          = "ok"
	BindNotFound    = "not_found"
	BindProvisioned = "provisioned"
	BindUnavailable = "unavailable"
)

// Webhook outcomes.
const (
	WebhookApplied  = "applied"
	WebhookIgnored  = "ignored"
	WebhookRejected = "rejected"
	WebhookFailed   = "failed"
)

// Platform holds the request-path series. A nil *Platform records nothing.
type Platform struct {
	bindings      *prometheus.CounterVec
	bindDuration  prometheus.Histogram
	webhooks      *prometheus.CounterVec
	gateway       *prometheus.HistogramVec
	orderChanges  *prometheus.CounterVec
	httpResponses *prometheus.CounterVec
}

// NewPlatform registers the request-path metrics on reg.
func NewPlatform(reg prometheus.Registerer) *Platform {
	if reg == nil {
		return &Platform{}
	}
	p := &Platform{
		bindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tenant_bindings_total",
			Help:      "Tenant binding attempts by outcome.",
		}, []string{"outcome"}),
		bindDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tenant_binding_duration_seconds",
			Help:      "Time spent resolving a tenant and acquiring its shard.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 3},
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "payment_webhooks_total",
			Help:      "Payment notifications by outcome.",
		}, []string{"outcome"}),
		gateway: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		orderChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "order_transitions_total",
			Help:      "Applied order state transitions.",
		}, []string{"to"}),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_responses_total",
			Help:      "HTTP responses by route pattern and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(p.bindings, p.bindDuration, p.webhooks, p.gateway, p.orderChanges, p.httpResponses)
	return p
}

func (p *Platform) ObserveBinding(outcome string, took time.Duration) {
	if p == nil || p.bindings == nil {
		return
	}
	p.bindings.WithLabelValues(normalizeLabel(outcome)).Inc()
	p.bindDuration.Observe(took.Seconds())
}

func (p *Platform) IncWebhook(outcome string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGateway records one gateway call. status is the HTTP code, 0 on transport failure.
func (p *Platform) ObserveGateway(operation string, status int, took time.Duration) {
	if p == nil || p.gateway == nil {
		return
	}
	p.gateway.WithLabelValues(normalizeLabel(operation), strconv.Itoa(status)).Observe(took.Seconds())
}

func (p *Platform) IncOrderTransition(to string) {
	if p == nil || p.orderChanges == nil {
		return
	}
	p.orderChanges.WithLabelValues(normalizeLabel(to)).Inc()
}

func (p *Platform) IncHTTPResponse(route string, code int) {
	if p == nil || p.httpResponses == nil {
		return
	}
	p.httpResponses.WithLabelValues(normalizeLabel(route), strconv.Itoa(code)).Inc()
}
