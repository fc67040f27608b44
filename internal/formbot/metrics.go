package formbot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/colonyops/formbot/internal/core/form"
)

// Metrics counts the engine's externally visible work. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	formsDetected prometheus.Counter
	remindersSent *prometheus.CounterVec
	sendFailures  prometheus.Counter
	ticks         prometheus.Counter
}

// NewMetrics registers the formbot collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		formsDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "formbot",
			Name:      "forms_detected_total",
			Help:      "Number of form announcements detected and stored",
		}),
		remindersSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formbot",
			Name:      "reminders_sent_total",
			Help:      "Number of reminder messages delivered, per reminder kind",
		}, []string{"kind"}),
		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "formbot",
			Name:      "notification_failures_total",
			Help:      "Number of outbound messages the notifier failed to deliver",
		}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "formbot",
			Name:      "ticks_total",
			Help:      "Number of reminder ticks run",
		}),
	}
}

func (m *Metrics) formDetected() {
	if m == nil {
		return
	}
	m.formsDetected.Inc()
}

func (m *Metrics) reminderSent(k form.ReminderKind) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(string(k)).Inc()
}

func (m *Metrics) sendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}
