package main

import (
	"sync"

	"github.com/miretskiy/fireworks/simulator"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Prometheus metrics (gauges are summed over live sessions)
	promMetrics = struct {
		sessions    prometheus.Gauge
		rockets     prometheus.Gauge
		particles   prometheus.Gauge
		queueLength prometheus.Gauge
		totalActive prometheus.Gauge
		events      *prometheus.CounterVec
		launches    *prometheus.CounterVec
		rejected    prometheus.Counter
	}{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fireworks_sessions",
			Help: "Connected clients with a running simulation",
		}),
		rockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fireworks_rockets",
			Help: "Rockets in flight",
		}),
		particles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fireworks_particles",
			Help: "Live explosion particles",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fireworks_queue_length",
			Help: "Launch requests waiting for capacity",
		}),
		totalActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fireworks_total_active",
			Help: "Active fireworks as counted by the admission policy",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fireworks_events_total",
			Help: "Simulation lifecycle events by type",
		}, []string{"type"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fireworks_launch_requests_total",
			Help: "Client launch requests by admission outcome",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fireworks_disabled_clients_total",
			Help: "Clients whose user agent disables fireworks",
		}),
	}
)

func initPrometheusMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		promMetrics.sessions,
		promMetrics.rockets,
		promMetrics.particles,
		promMetrics.queueLength,
		promMetrics.totalActive,
		promMetrics.events,
		promMetrics.launches,
		promMetrics.rejected,
	)
}

// sessionStats aggregates the latest stats of every live session into the
// occupancy gauges
type sessionStats struct {
	mu    sync.Mutex
	stats map[uint64]simulator.Stats
}

func newSessionStats() *sessionStats {
	return &sessionStats{stats: make(map[uint64]simulator.Stats)}
}

func (s *sessionStats) update(id uint64, stats simulator.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[id] = stats
	s.publishLocked()
}

func (s *sessionStats) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, id)
	s.publishLocked()
}

func (s *sessionStats) publishLocked() {
	var sum simulator.Stats
	for _, st := range s.stats {
		sum.Rockets += st.Rockets
		sum.Particles += st.Particles
		sum.QueueLength += st.QueueLength
		sum.TotalActive += st.TotalActive
	}
	promMetrics.sessions.Set(float64(len(s.stats)))
	promMetrics.rockets.Set(float64(sum.Rockets))
	promMetrics.particles.Set(float64(sum.Particles))
	promMetrics.queueLength.Set(float64(sum.QueueLength))
	promMetrics.totalActive.Set(float64(sum.TotalActive))
}

// recordEvent counts one simulator lifecycle event
func recordEvent(ev simulator.Event) {
	delta := 1.0
	if ev.Type == simulator.EventPruned {
		delta = float64(ev.Count)
	}
	promMetrics.events.WithLabelValues(ev.Type.String()).Add(delta)
}
