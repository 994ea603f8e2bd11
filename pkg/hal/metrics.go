//go:build !tinygo

package hal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pwmTop = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pcfan",
		Name:      "pwm_top_ticks",
		Help:      "PWM period register value in clock ticks",
	})
	pwmCompare = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pcfan",
		Name:      "pwm_compare_ticks",
		Help:      "PWM duty register value in clock ticks",
	})
	tachEdgeCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pcfan",
		Name:      "tach_edge_count",
		Help:      "Number of edges seen on the fan tachometer line",
	})
	halKind = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pcfan",
		Name:      "hal",
		Help:      "Active hardware abstraction layer",
	}, []string{"kind"})
)
