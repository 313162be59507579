package simulator

// Stats is the occupancy snapshot exposed to hosts
type Stats struct {
	Rockets     int `json:"rockets"`
	Particles   int `json:"particles"`
	QueueLength int `json:"queueLength"`
	TotalActive int `json:"totalActive"` // Per the configured admission policy
}

// Metrics tracks cumulative lifecycle counters
type Metrics struct {
	Frames uint64 `json:"frames"`

	// Admission
	Launched int `json:"launched"` // Rockets launched immediately
	Queued   int `json:"queued"`   // Requests that entered the wait queue
	Dropped  int `json:"dropped"`  // Requests discarded (queue full or shrunk)
	Promoted int `json:"promoted"` // Queued requests that became rockets
	Pruned   int `json:"pruned"`   // Queued requests discarded as stale

	// Explosions
	Explosions        int `json:"explosions"`        // Rocket bursts, including silent ones
	SkippedExplosions int `json:"skippedExplosions"` // Bursts that spawned nothing (ceiling reached)
	ParticlesSpawned  int `json:"particlesSpawned"`
	ParticlesExpired  int `json:"particlesExpired"`
	GroupsExhausted   int `json:"groupsExhausted"`

	// Peaks observed at frame boundaries
	PeakElements    int `json:"peakElements"`
	PeakTotalActive int `json:"peakTotalActive"`
	PeakQueueLength int `json:"peakQueueLength"`
}

// NewMetrics creates a zeroed metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record folds one event into the counters
func (m *Metrics) Record(ev Event) {
	switch ev.Type {
	case EventLaunch:
		m.Launched++
	case EventQueued:
		m.Queued++
	case EventDropped:
		m.Dropped++
	case EventPromoted:
		m.Promoted++
	case EventPruned:
		m.Pruned += ev.Count
	case EventRocketBurst:
		m.Explosions++
		m.ParticlesSpawned += ev.Count
		if ev.Count == 0 {
			m.SkippedExplosions++
		}
	case EventGroupExhausted:
		m.GroupsExhausted++
	}
}

// ObserveFrame updates frame count and peaks
func (m *Metrics) ObserveFrame(stats Stats) {
	m.Frames++
	m.PeakElements = max(m.PeakElements, stats.Rockets+stats.Particles)
	m.PeakTotalActive = max(m.PeakTotalActive, stats.TotalActive)
	m.PeakQueueLength = max(m.PeakQueueLength, stats.QueueLength)
}

// Clone creates a copy of the metrics
func (m *Metrics) Clone() *Metrics {
	clone := *m
	return &clone
}
