// Package metrics defines the per-round measurements of a run and a
// Prometheus view over them for live inspection of long experiments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Round is one round's worth of measurements, computed by the engine
// after the round barrier.
type Round struct {
	Round           int     `json:"round"`
	PacketSuccess   float64 `json:"packet_success"`
	Delivered       int     `json:"delivered"`
	MeanLambda      float64 `json:"mean_lambda"`
	MeanAccepted    float64 `json:"mean_accepted"`
	WeakSupport     int     `json:"weak_support"`
	Degraded        int     `json:"degraded"`
	ChangeSignals   int     `json:"change_signals"`
	MeanAbsError    float64 `json:"mean_abs_error"`
	MaxAbsError     float64 `json:"max_abs_error"`
	HonestInsideEps int     `json:"honest_inside_eps"`
}

// Collector exposes the engine's round measurements as Prometheus
// series. One collector per run; register it on the registry the
// process serves.
type Collector struct {
	round         prometheus.Gauge
	packetSuccess prometheus.Gauge
	meanLambda    prometheus.Gauge
	meanAccepted  prometheus.Gauge
	meanAbsError  prometheus.Gauge
	insideEps     prometheus.Gauge

	delivered     prometheus.Counter
	weakSupport   prometheus.Counter
	degraded      prometheus.Counter
	changeSignals prometheus.Counter
}

func NewCollector(reg prometheus.Registerer, runID string) *Collector {
	labels := prometheus.Labels{"run_id": runID}
	c := &Collector{
		round: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_round", Help: "Current round number.", ConstLabels: labels,
		}),
		packetSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "channel_packet_success_ratio", Help: "ALOHA packet success probability this round.", ConstLabels: labels,
		}),
		meanLambda: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_mean_lambda", Help: "Mean contraction rate across honest nodes.", ConstLabels: labels,
		}),
		meanAccepted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_mean_accepted", Help: "Mean accepted messages per honest node.", ConstLabels: labels,
		}),
		meanAbsError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_mean_abs_error", Help: "Mean |center - truth| across honest nodes.", ConstLabels: labels,
		}),
		insideEps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "consensus_honest_inside_epsilon", Help: "Honest nodes currently inside the epsilon ball.", ConstLabels: labels,
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "channel_deliveries_total", Help: "Total successful receptions.", ConstLabels: labels,
		}),
		weakSupport: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consensus_weak_support_total", Help: "Rounds a node accepted zero messages.", ConstLabels: labels,
		}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aggregate_degraded_total", Help: "Aggregations that hit an iteration cap.", ConstLabels: labels,
		}),
		changeSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detect_change_signals_total", Help: "Change-detector triggers.", ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			c.round, c.packetSuccess, c.meanLambda, c.meanAccepted,
			c.meanAbsError, c.insideEps,
			c.delivered, c.weakSupport, c.degraded, c.changeSignals,
		)
	}
	return c
}

// Observe publishes one round's measurements.
func (c *Collector) Observe(r Round) {
	c.round.Set(float64(r.Round))
	c.packetSuccess.Set(r.PacketSuccess)
	c.meanLambda.Set(r.MeanLambda)
	c.meanAccepted.Set(r.MeanAccepted)
	c.meanAbsError.Set(r.MeanAbsError)
	c.insideEps.Set(float64(r.HonestInsideEps))

	c.delivered.Add(float64(r.Delivered))
	c.weakSupport.Add(float64(r.WeakSupport))
	c.degraded.Add(float64(r.Degraded))
	c.changeSignals.Add(float64(r.ChangeSignals))
}
