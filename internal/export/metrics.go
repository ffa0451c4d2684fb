package export

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector publishes evaluation reports as Prometheus gauges on its own
// registry.
type Collector struct {
	registry *prometheus.Registry
	metric   *prometheus.GaugeVec
	images   *prometheus.GaugeVec
}

// NewCollector creates a Collector with an empty registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		metric: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cveval_metric",
				Help: "Evaluation metric value of a run",
			},
			[]string{"run_id", "task", "metric"},
		),
		images: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cveval_images",
				Help: "Number of images evaluated in a run",
			},
			[]string{"run_id", "task"},
		),
	}
	c.registry.MustRegister(c.metric, c.images)
	return c
}

// Observe sets one gauge per report entry of s.
func (c *Collector) Observe(s Summary) {
	task := string(s.Task)
	for k, v := range s.Report {
		c.metric.WithLabelValues(s.RunID, task, k).Set(v)
	}
	c.images.WithLabelValues(s.RunID, task).Set(float64(s.Images))
}

// Gatherer exposes the collector's registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteTextfile writes every gauge to path in the text exposition format
// read by the node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
