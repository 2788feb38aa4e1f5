// Package metrics owns the Prometheus registry for proximityd. The
// handler is mounted on the service router at /metrics; there is no
// separate metrics listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

// Provider wraps a private registry so the service's instruments never
// collide with whatever a host process registered globally.
type Provider struct {
	reg *prometheus.Registry
}

func NewProvider(build BuildInfo) *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	details := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_details",
			Help: "Build details for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	reg.MustRegister(details)
	if build.Version == "" {
		build.Version = "dev"
	}
	details.WithLabelValues(build.Version, build.Revision, build.Branch, build.BuildDate).Set(1)

	return &Provider{reg: reg}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
