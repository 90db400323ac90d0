// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huemotion_commands_processed_total",
		Help: "Commands handled by the run loop",
	}, []string{"command", "result"})

	FramesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huemotion_frames_emitted_total",
		Help: "Animation frames pushed to the transport",
	}, []string{"animation"})

	StateWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huemotion_state_writes_total",
		Help: "Per-light state writes sent to the transport",
	}, []string{"result"})

	SnapshotFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huemotion_snapshot_failures_total",
		Help: "Failed light snapshot fetches",
	})

	AnimationActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "huemotion_animation_active",
		Help: "1 for the animation kind currently playing",
	}, []string{"kind"})
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ResultLabel maps an error to a result label.
func ResultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
