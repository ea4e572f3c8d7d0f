package metrics

import (
	"strconv"
	"sync"
	"time"

	"hanapbahay/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hanapbahay"

// Sync task outcomes.
const (
	SyncCompleted = "completed"
	SyncRetried   = "retried"
	SyncFailed    = "failed"
)

// Sweep results.
const (
	SweepOK     = "ok"
	SweepFailed = "failed"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	paymentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_transitions_total",
			Help:      "Rent payment status changes.",
		},
		[]string{"from", "to"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "PayMongo webhook events by type and result.",
		},
		[]string{"type", "result"},
	)

	sweeperRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_runs_total",
			Help:      "Overdue sweeper runs.",
		},
		[]string{"result"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_sync_tasks_total",
			Help:      "Ledger sync task outcomes.",
		},
		[]string{"type", "outcome"},
	)

	botCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_commands_total",
			Help:      "Telegram bot commands handled.",
		},
		[]string{"command"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, paymentTransitions, webhookEvents, sweeperRuns, syncTasks, botCommands)
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func IncPaymentTransition(from, to string) {
	paymentTransitions.WithLabelValues(from, to).Inc()
}

func IncWebhook(eventType, result string) {
	webhookEvents.WithLabelValues(eventType, result).Inc()
}

func IncSweep(result string) {
	sweeperRuns.WithLabelValues(result).Inc()
}

func IncSyncTask(taskType, outcome string) {
	syncTasks.WithLabelValues(taskType, outcome).Inc()
}

func IncBotCommand(command string) {
	botCommands.WithLabelValues(command).Inc()
}

var transitionEvents = []string{
	events.EventPaymentSubmitted,
	events.EventPaymentConfirmed,
	events.EventPaymentRejected,
	events.EventPaymentGateway,
	events.EventPaymentOverdue,
	events.EventPaymentRepaired,
}

// Subscribe counts payment status changes published on the bus.
func Subscribe(bus *events.EventBus) {
	for _, eventType := range transitionEvents {
		bus.Subscribe(eventType, func(event *events.Event) error {
			var p events.PaymentEventPayload
			if err := event.Decode(&p); err != nil {
				return err
			}
			if p.FromStatus != p.Status {
				IncPaymentTransition(p.FromStatus, p.Status)
			}
			return nil
		})
	}
}
