package metrics

import (
	"net/http"

	"monitoring/internal/command"
	"monitoring/internal/notifier"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "monitoring"

// Metrics holds service collectors on a private registry.
// Params: none.
// Returns: observation hooks for engine, transport, and command ingestion.
type Metrics struct {
	registry      *prometheus.Registry
	notifications *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	commands      *prometheus.CounterVec
	retentionSave *prometheus.CounterVec
	notifiers     *prometheus.GaugeVec
}

// New creates metrics with Go runtime and process collectors registered.
// Params: none.
// Returns: metrics set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by category and outcome (sent or suppressed).",
		}, []string{"category", "result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-contact channel deliveries by outcome.",
		}, []string{"channel", "result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "External commands executed by name and outcome.",
		}, []string{"name", "result"}),
		retentionSave: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_saves_total",
			Help:      "Retention save passes by outcome.",
		}, []string{"result"}),
		notifiers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifiers",
			Help:      "Monitored notifiers by kind and current state.",
		}, []string{"kind", "state"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.notifications,
		m.deliveries,
		m.commands,
		m.retentionSave,
		m.notifiers,
	)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterQueue exports depth and full-wait counters of one command queue.
// Params: queue label and queue.
// Returns: registration error (duplicate label).
func (m *Metrics) RegisterQueue(name string, queue *command.Queue) error {
	labels := prometheus.Labels{"queue": name}
	depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "command_queue_depth",
		Help:        "Commands buffered in the queue.",
		ConstLabels: labels,
	}, func() float64 { return float64(queue.Len()) })
	waits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "command_queue_full_waits_total",
		Help:        "Pushes that found the queue full.",
		ConstLabels: labels,
	}, func() float64 { return float64(queue.FullWaits()) })
	if err := m.registry.Register(depth); err != nil {
		return err
	}
	if err := m.registry.Register(waits); err != nil {
		m.registry.Unregister(depth)
		return err
	}
	return nil
}

// ObserveNotification counts one Notify outcome.
// Params: category and whether a notification was created.
// Returns: none.
func (m *Metrics) ObserveNotification(category notifier.Category, sent bool) {
	m.notifications.WithLabelValues(category.String(), outcome(sent, "sent", "suppressed")).Inc()
}

// ObserveDelivery counts one channel delivery; signature matches notify.Observer.
func (m *Metrics) ObserveDelivery(channel string, err error) {
	m.deliveries.WithLabelValues(channel, outcome(err == nil, "delivered", "failed")).Inc()
}

// ObserveCommand counts one executed command.
func (m *Metrics) ObserveCommand(name string, err error) {
	m.commands.WithLabelValues(name, outcome(err == nil, "ok", "error")).Inc()
}

// ObserveRetentionSave counts one retention save pass.
func (m *Metrics) ObserveRetentionSave(err error) {
	m.retentionSave.WithLabelValues(outcome(err == nil, "ok", "error")).Inc()
}

// SetNotifierStates replaces the notifier state gauge.
// Params: notifier list.
// Returns: none.
func (m *Metrics) SetNotifierStates(notifiers []*notifier.Notifier) {
	m.notifiers.Reset()
	for _, n := range notifiers {
		m.notifiers.WithLabelValues(n.Kind().String(), notifier.StateName(n.Kind(), n.CurrentState())).Inc()
	}
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
