// Package observability exposes the kiosk backend's prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the backend's prometheus collectors.
type Metrics struct {
	FramesIngested   prometheus.Counter
	FramesDropped    prometheus.Counter
	LinesUpdated     prometheus.Counter
	LockGrants       prometheus.Counter
	LockDenials      prometheus.Counter
	LayoutSaves      prometheus.Counter
	DashboardClients prometheus.Gauge
	SyncClients      prometheus.Gauge
	LockHeld         prometheus.Gauge
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_telemetry_frames_ingested_total",
			Help: "Telemetry frames accepted from sources.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_telemetry_frames_dropped_total",
			Help: "Telemetry frames dropped: unparseable or matching no configured line.",
		}),
		LinesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_telemetry_lines_updated_total",
			Help: "Line records updated in the telemetry store.",
		}),
		LockGrants: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_lock_grants_total",
			Help: "Edit-lock requests granted.",
		}),
		LockDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_lock_denials_total",
			Help: "Edit-lock requests denied due to a conflicting holder.",
		}),
		LayoutSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_layout_saves_total",
			Help: "Layout documents persisted and broadcast.",
		}),
		DashboardClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_dashboard_clients",
			Help: "Currently connected telemetry dashboard clients.",
		}),
		SyncClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_sync_clients",
			Help: "Currently connected layout-sync clients.",
		}),
		LockHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_lock_held",
			Help: "1 while the edit lock is held, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		m.FramesIngested, m.FramesDropped, m.LinesUpdated,
		m.LockGrants, m.LockDenials, m.LayoutSaves,
		m.DashboardClients, m.SyncClients, m.LockHeld,
	)
	return m
}

// NewNopMetrics creates unregistered collectors for tests.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
