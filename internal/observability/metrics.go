package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/huddle-backend/internal/platform/envutil"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	assistantRequests *prometheus.CounterVec
	llmRequests       *prometheus.CounterVec
	llmLatency        *prometheus.HistogramVec
	llmTokens         *prometheus.CounterVec
	moderation        *prometheus.CounterVec
	toolExecutions    *prometheus.CounterVec
	billingDebits     *prometheus.CounterVec
	billedUnits       prometheus.Counter
	rateLimited       *prometheus.CounterVec
	contextDropped    *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metrics when METRICS_ENABLED is set.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics(prometheus.NewRegistry())
		if log != nil {
			log.Info("prometheus metrics enabled")
		}
	})
	return instance
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_api_requests_total",
			Help: "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "huddle_api_request_duration_seconds",
			Help:    "API request latency by method, route and status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		assistantRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_assistant_requests_total",
			Help: "Assistant turns by final outcome.",
		}, []string{"outcome"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_llm_requests_total",
			Help: "LLM stream calls by provider, model and status.",
		}, []string{"provider", "model", "status"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "huddle_llm_request_duration_seconds",
			Help:    "LLM stream duration in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider", "model"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_llm_tokens_total",
			Help: "Estimated tokens by provider, model and kind.",
		}, []string{"provider", "model", "kind"}),
		moderation: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_moderation_verdicts_total",
			Help: "Moderation verdicts by direction, outcome and whether they blocked.",
		}, []string{"direction", "outcome", "blocked"}),
		toolExecutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_tool_executions_total",
			Help: "Tool executions by tool and status.",
		}, []string{"tool", "status"}),
		billingDebits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_billing_debits_total",
			Help: "Balance debit attempts by result.",
		}, []string{"result"}),
		billedUnits: f.NewCounter(prometheus.CounterOpts{
			Name: "huddle_billed_units_total",
			Help: "Cost units debited from workspace balances.",
		}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_rate_limited_total",
			Help: "Requests rejected by a rate limit window.",
		}, []string{"scope"}),
		contextDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_context_items_dropped_total",
			Help: "Context items skipped because the budget was exhausted.",
		}, []string{"section"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(orUnknown(method), orUnknown(route), orUnknown(status)).Inc()
	m.apiLatency.WithLabelValues(orUnknown(method), orUnknown(route), orUnknown(status)).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncAssistantOutcome(outcome string) {
	if m == nil {
		return
	}
	m.assistantRequests.WithLabelValues(orUnknown(outcome)).Inc()
}

func (m *Metrics) ObserveLLMRequest(provider, model, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	provider, model = orUnknown(provider), orUnknown(model)
	m.llmRequests.WithLabelValues(provider, model, orUnknown(status)).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
	}
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) IncModeration(direction, outcome string, blocked bool) {
	if m == nil {
		return
	}
	b := "false"
	if blocked {
		b = "true"
	}
	m.moderation.WithLabelValues(orUnknown(direction), orUnknown(outcome), b).Inc()
}

func (m *Metrics) IncToolExecution(tool, status string) {
	if m == nil {
		return
	}
	m.toolExecutions.WithLabelValues(orUnknown(tool), orUnknown(status)).Inc()
}

func (m *Metrics) ObserveDebit(ok bool, units int64) {
	if m == nil {
		return
	}
	if !ok {
		m.billingDebits.WithLabelValues("rejected").Inc()
		return
	}
	m.billingDebits.WithLabelValues("ok").Inc()
	if units > 0 {
		m.billedUnits.Add(float64(units))
	}
}

func (m *Metrics) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(orUnknown(scope)).Inc()
}

func (m *Metrics) IncContextDropped(section string) {
	if m == nil {
		return
	}
	m.contextDropped.WithLabelValues(orUnknown(section)).Inc()
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
