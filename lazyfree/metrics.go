package lazyfree

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes c as gauges on reg.
func RegisterMetrics(reg prometheus.Registerer, c *Counters) error {
	pending := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "lazyfree",
			Name:      "pending_objects",
			Help:      "Effort queued for background release and not yet released.",
		},
		func() float64 { return float64(c.PendingCount()) },
	)
	freed := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "lazyfree",
			Name:      "freed_objects",
			Help:      "Effort released by background jobs since the last stats reset.",
		},
		func() float64 { return float64(c.FreedCount()) },
	)
	if err := reg.Register(pending); err != nil {
		return err
	}
	return reg.Register(freed)
}
