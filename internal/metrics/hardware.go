// Package metrics provides Prometheus metrics for the hardware controllers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Command results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rogd",
		Subsystem: "ctrl",
		Name:      "commands_total",
		Help:      "Commands handled per controller and result",
	}, []string{"controller", "result"})

	transferTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rogd",
		Subsystem: "device",
		Name:      "transfer_timeouts_total",
		Help:      "USB transfers that timed out and were treated as success",
	}, []string{"controller"})

	driftReconciliations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rogd",
		Subsystem: "fan",
		Name:      "drift_reconciliations_total",
		Help:      "Fan level changes made by firmware and picked up by polling",
	})

	pollSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rogd",
		Subsystem: "fan",
		Name:      "poll_skips_total",
		Help:      "Poll cycles skipped, by reason",
	}, []string{"reason"})

	fanLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rogd",
		Subsystem: "fan",
		Name:      "level",
		Help:      "Current fan level ordinal",
	})

	chargeLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rogd",
		Subsystem: "battery",
		Name:      "charge_limit_percent",
		Help:      "Current battery charge limit",
	})

	notificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rogd",
		Subsystem: "events",
		Name:      "notifications_dropped_total",
		Help:      "Notifications dropped because a subscriber fell behind, by sink",
	}, []string{"sink"})

	kbdBrightness = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rogd",
		Subsystem: "kbd",
		Name:      "brightness",
		Help:      "Current keyboard brightness level",
	})
)

// IncNotificationDropped counts a notification a slow subscriber missed.
func IncNotificationDropped(sink string) {
	notificationsDropped.WithLabelValues(sink).Inc()
}

// ObserveCommand counts one handled command.
func ObserveCommand(controller string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	commandsTotal.WithLabelValues(controller, result).Inc()
}

// IncTransferTimeout counts one absorbed USB timeout.
func IncTransferTimeout(controller string) {
	transferTimeouts.WithLabelValues(controller).Inc()
}

// IncDriftReconciliation counts one firmware-initiated fan change.
func IncDriftReconciliation() {
	driftReconciliations.Inc()
}

// IncPollSkip counts one skipped poll cycle ("busy" or "parse").
func IncPollSkip(reason string) {
	pollSkips.WithLabelValues(reason).Inc()
}

// SetFanLevel records the current fan level.
func SetFanLevel(level uint8) {
	fanLevel.Set(float64(level))
}

// SetChargeLimit records the current charge limit.
func SetChargeLimit(limit uint8) {
	chargeLimit.Set(float64(limit))
}

// SetKbdBrightness records the current keyboard brightness.
func SetKbdBrightness(level uint8) {
	kbdBrightness.Set(float64(level))
}

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
