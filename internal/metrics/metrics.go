// Package metrics exposes the station's /metrics gauges —
// capacity_score, tes_score, and pulse status — for tes-monitor --serve
// and bridge-pulse --serve. Built on prometheus/client_golang.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CapacityScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "calyx_capacity_score",
		Help: "Current scheduler capacity_score in [0,1].",
	})
	TESScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "calyx_tes_score",
		Help: "Most recent TES (tes_v2) score, 0-100.",
	})
	PulseStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "calyx_bridge_pulse_status",
		Help: "1 for the currently active GREEN/YELLOW/RED pulse status, 0 otherwise.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(CapacityScore, TESScore, PulseStatus)
}

// SetPulseStatus zeroes every known status gauge and sets only the active
// one, so a dashboard scrape never shows two statuses "on" at once.
func SetPulseStatus(active string) {
	for _, s := range []string{"GREEN", "YELLOW", "RED"} {
		v := 0.0
		if s == active {
			v = 1.0
		}
		PulseStatus.WithLabelValues(s).Set(v)
	}
}

// Serve starts a blocking HTTP server exposing /metrics on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
