package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics содержит метрики жизненного цикла shopping-событий.
type LifecycleMetrics struct {
	// Счётчики операций
	eventsCreated       *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	transitionsRejected prometheus.Counter
	eventsClosed        *prometheus.CounterVec
	eventsCancelled     prometheus.Counter
	eventsChained       prometheus.Counter

	// Подачи смет по результату сравнения с потолком
	estimateSubmissions *prometheus.CounterVec

	// Отказы best-effort side effects; единственный канал наблюдаемости
	// для расхождений idle/triage, требующих сверки.
	sideEffectFailures *prometheus.CounterVec

	// Гистограмма времени выполнения перехода
	transitionDuration prometheus.Histogram

	// Счётчик событий outbox
	outboxEvents prometheus.Counter
}

// NewLifecycleMetrics создаёт новый экземпляр метрик жизненного цикла.
func NewLifecycleMetrics() *LifecycleMetrics {
	return newLifecycleMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newLifecycleMetricsWithRegisterer(registerer prometheus.Registerer) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &LifecycleMetrics{
		eventsCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sms_lifecycle_events_created_total",
			Help: "Total number of shopping events created",
		}, []string{"source"}),
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sms_lifecycle_transitions_total",
			Help: "Total number of successful state transitions",
		}, []string{"from", "to"}),
		transitionsRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sms_lifecycle_transitions_rejected_total",
			Help: "Total number of transitions rejected as illegal",
		}),
		eventsClosed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sms_lifecycle_events_closed_total",
			Help: "Total number of shopping events closed",
		}, []string{"disposition"}),
		eventsCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sms_lifecycle_events_cancelled_total",
			Help: "Total number of shopping events cancelled",
		}),
		eventsChained: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sms_lifecycle_events_chained_total",
			Help: "Total number of chain-shopping successor events",
		}),
		estimateSubmissions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sms_lifecycle_estimate_submissions_total",
			Help: "Total number of estimate submissions recorded",
		}, []string{"result"}),
		sideEffectFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sms_lifecycle_side_effect_failures_total",
			Help: "Total number of failed best-effort side effects",
		}, []string{"effect"}),
		transitionDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "sms_lifecycle_transition_duration_seconds",
			Help:    "Duration of lifecycle transition operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sms_outbox_events_total",
			Help: "Total number of analytics events enqueued to the outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordEventCreated увеличивает счётчик созданных событий.
func (m *LifecycleMetrics) RecordEventCreated(source string) {
	m.eventsCreated.WithLabelValues(source).Inc()
}

// RecordTransition увеличивает счётчик успешных переходов.
func (m *LifecycleMetrics) RecordTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

// RecordTransitionRejected увеличивает счётчик отклонённых переходов.
func (m *LifecycleMetrics) RecordTransitionRejected() {
	m.transitionsRejected.Inc()
}

// RecordEventClosed увеличивает счётчик закрытых событий.
func (m *LifecycleMetrics) RecordEventClosed(disposition string) {
	if disposition == "" {
		disposition = "none"
	}
	m.eventsClosed.WithLabelValues(disposition).Inc()
}

// RecordEventCancelled увеличивает счётчик отменённых событий.
func (m *LifecycleMetrics) RecordEventCancelled() {
	m.eventsCancelled.Inc()
}

// RecordEventChained увеличивает счётчик chain-shopping преемников.
func (m *LifecycleMetrics) RecordEventChained() {
	m.eventsChained.Inc()
}

// RecordEstimateSubmission увеличивает счётчик поданных смет.
func (m *LifecycleMetrics) RecordEstimateSubmission(exceedsLimit bool) {
	result := "within_limit"
	if exceedsLimit {
		result = "exceeds_limit"
	}
	m.estimateSubmissions.WithLabelValues(result).Inc()
}

// RecordSideEffectFailure увеличивает счётчик отказов side effects.
func (m *LifecycleMetrics) RecordSideEffectFailure(effect string) {
	m.sideEffectFailures.WithLabelValues(effect).Inc()
}

// RecordTransitionDuration записывает время выполнения перехода.
func (m *LifecycleMetrics) RecordTransitionDuration(duration time.Duration) {
	m.transitionDuration.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *LifecycleMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
