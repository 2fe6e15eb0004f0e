// Package metrics exposes build counters on a dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitekit"

// Outcome labels for build counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder records build and request metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	reg *prom.Registry

	builds        *prom.CounterVec
	buildDuration *prom.HistogramVec
	pages         prom.Gauge
	modules       prom.Gauge
	importDirs    prom.Gauge
	lastSuccess   prom.Gauge
	pageRequests  *prom.CounterVec
}

// NewRecorder registers the build metrics on reg, or on a fresh registry when
// reg is nil. Go runtime and process collectors are registered alongside.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		reg: reg,
		builds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Build passes by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of build passes",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"outcome"}),
		pages: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pages",
			Help:      "Pages in the active manifest",
		}),
		modules: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "modules",
			Help:      "Modules that ran for the active manifest",
		}),
		importDirs: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "import_dirs",
			Help:      "Import directories in the active manifest",
		}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_build_timestamp_seconds",
			Help:      "Unix time of the last successful build",
		}),
		pageRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "page_requests_total",
			Help:      "Page requests served by page name",
		}, []string{"page"}),
	}
	reg.MustRegister(
		r.builds, r.buildDuration,
		r.pages, r.modules, r.importDirs, r.lastSuccess,
		r.pageRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry the recorder writes to.
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveBuild records a finished build pass.
func (r *Recorder) ObserveBuild(trigger string, d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.builds.WithLabelValues(trigger, outcome).Inc()
	r.buildDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if err == nil {
		r.lastSuccess.SetToCurrentTime()
	}
}

// SetManifest updates the gauges describing the active manifest.
func (r *Recorder) SetManifest(pages, modules, importDirs int) {
	if r == nil {
		return
	}
	r.pages.Set(float64(pages))
	r.modules.Set(float64(modules))
	r.importDirs.Set(float64(importDirs))
}

// IncPageRequest counts one request served for page.
func (r *Recorder) IncPageRequest(page string) {
	if r == nil {
		return
	}
	r.pageRequests.WithLabelValues(page).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// GinHandler adapts Handler for a gin route.
func (r *Recorder) GinHandler() gin.HandlerFunc {
	return gin.WrapH(r.Handler())
}
