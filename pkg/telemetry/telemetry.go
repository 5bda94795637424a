// Package telemetry records per-run metrics and writes them in the
// Prometheus textfile format for node_exporter's textfile collector.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cropshap"

// TextfileName is the file written by Recorder.Write inside the save dir.
const TextfileName = "crop_shap.prom"

// Recorder holds the metrics of one run on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	R2            *prometheus.GaugeVec
	RMSE          *prometheus.GaugeVec
	MAE           *prometheus.GaugeVec
	TrainSeconds  *prometheus.GaugeVec
	ShapSeconds   *prometheus.GaugeVec
	CacheHits     *prometheus.CounterVec
	FilesTotal    *prometheus.CounterVec
	LastRunUnixTS prometheus.Gauge
}

// NewRecorder registers the run metrics on a fresh registry.
func NewRecorder() *Recorder {
	perFile := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"dataset"})
	}
	r := &Recorder{
		reg:          prometheus.NewRegistry(),
		R2:           perFile("r2", "Coefficient of determination on the test split"),
		RMSE:         perFile("rmse", "Root mean squared error on the test split"),
		MAE:          perFile("mae", "Mean absolute error on the test split"),
		TrainSeconds: perFile("train_seconds", "Wall time spent fitting the forest"),
		ShapSeconds:  perFile("shap_seconds", "Wall time spent computing SHAP values"),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Artifacts reused from the save directory by kind",
		}, []string{"kind"}),
		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Input files handled by status",
		}, []string{"status"}),
		LastRunUnixTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the metrics were written",
		}),
	}
	r.reg.MustRegister(r.R2, r.RMSE, r.MAE, r.TrainSeconds, r.ShapSeconds,
		r.CacheHits, r.FilesTotal, r.LastRunUnixTS)
	return r
}

// FileResult is what the pipeline reports for a processed file.
type FileResult struct {
	Dataset    string
	R2         float64
	RMSE       float64
	MAE        float64
	Train      time.Duration
	Shap       time.Duration
	ModelCache bool
	ShapCache  bool
}

// Observe records a successfully processed file.
func (r *Recorder) Observe(res FileResult) {
	r.R2.WithLabelValues(res.Dataset).Set(res.R2)
	r.RMSE.WithLabelValues(res.Dataset).Set(res.RMSE)
	r.MAE.WithLabelValues(res.Dataset).Set(res.MAE)
	r.TrainSeconds.WithLabelValues(res.Dataset).Set(res.Train.Seconds())
	r.ShapSeconds.WithLabelValues(res.Dataset).Set(res.Shap.Seconds())
	if res.ModelCache {
		r.CacheHits.WithLabelValues("model").Inc()
	}
	if res.ShapCache {
		r.CacheHits.WithLabelValues("shap").Inc()
	}
	r.FilesTotal.WithLabelValues("ok").Inc()
}

// Failed records a file that could not be processed.
func (r *Recorder) Failed() { r.FilesTotal.WithLabelValues("failed").Inc() }

// Write stores the metrics in dir/TextfileName.
func (r *Recorder) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	r.LastRunUnixTS.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(filepath.Join(dir, TextfileName), r.reg); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
