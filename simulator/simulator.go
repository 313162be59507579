package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"
)

// LaunchOutcome is the admission decision for one launch request
type LaunchOutcome int

const (
	OutcomeLaunched LaunchOutcome = iota // Rocket created immediately
	OutcomeQueued                        // Request stored in the wait queue
	OutcomeDropped                       // Queue full; request discarded
)

func (o LaunchOutcome) String() string {
	switch o {
	case OutcomeLaunched:
		return "launched"
	case OutcomeQueued:
		return "queued"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Option configures optional collaborators of a Simulator
type Option func(*Simulator)

// WithLogger sets the structured logger (default: no-op)
func WithLogger(logger *zap.Logger) Option {
	return func(s *Simulator) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source (default: SystemClock)
func WithClock(clock Clock) Option {
	return func(s *Simulator) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRand sets the random source (default: randomly seeded)
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) {
		s.rand = newSampler(rng)
	}
}

// Simulator owns the rocket and particle pools, the wait queue and every
// drawable it creates. It has NO concurrency primitives: all methods must be
// called from a single goroutine. Runner provides pacing and locking.
type Simulator struct {
	config   Config
	surface  Surface
	viewport Viewport
	clock    Clock
	rand     *sampler
	logger   *zap.Logger
	metrics  *Metrics

	rockets   []*Rocket
	particles []*Particle
	groups    map[EntityID]int // Live particle count per explosion
	queue     *WaitQueue

	nextID    EntityID
	frame     uint64
	lastPrune time.Time

	// Event logging callback (optional, for UI/debugging)
	LogEvent func(msg string)
	// OnEvent receives every lifecycle event after it has been recorded (optional)
	OnEvent func(ev Event)
}

// NewSimulator creates a simulator drawing into surface
func NewSimulator(config Config, surface Surface, viewport Viewport, opts ...Option) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, SimError{Message: "surface is required"}
	}
	if err := validateViewport(viewport); err != nil {
		return nil, err
	}

	s := &Simulator{
		config:   config.Clone(),
		surface:  surface,
		viewport: viewport,
		clock:    SystemClock{},
		logger:   zap.NewNop(),
		metrics:  NewMetrics(),
		groups:   make(map[EntityID]int),
		queue:    NewWaitQueue(config.MaxQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = newSampler(nil)
	}
	s.lastPrune = s.clock.Now()
	return s, nil
}

func validateViewport(v Viewport) error {
	if v.Width <= 0 || v.Height <= 0 || math.IsNaN(v.Width) || math.IsNaN(v.Height) {
		return SimError{Message: fmt.Sprintf("invalid viewport %gx%g", v.Width, v.Height)}
	}
	return nil
}

// RequestLaunch is the admission entry point for both user clicks and the
// auto-launch timer. x is not bounds-checked.
//
// A rocket launches when the active count is below MaxActiveFireworks and
// rockets+particles are below ElementCeiling. The second condition can queue
// a request that the active count alone would admit: under the coarse policy
// overlapping bursts count as one firework, so the pools could otherwise grow
// past the ceiling.
func (s *Simulator) RequestLaunch(x float64) LaunchOutcome {
	if s.hasCapacity() {
		s.launchRocket(x, EventLaunch)
		return OutcomeLaunched
	}
	if s.queue.Push(QueueEntry{X: x, EnqueuedAt: s.clock.Now()}) {
		s.emit(Event{Type: EventQueued, X: x, Count: s.queue.Len()})
		return OutcomeQueued
	}
	s.emit(Event{Type: EventDropped, X: x, Count: s.queue.Len()})
	return OutcomeDropped
}

// RequestRandomLaunch requests a launch at a uniformly random x across the viewport
func (s *Simulator) RequestRandomLaunch() LaunchOutcome {
	return s.RequestLaunch(s.rand.between(0, s.viewport.Width))
}

// activeCount is the occupancy figure admission and drain compare against
// MaxActiveFireworks. The coarse policy counts all live particles as a single
// slot, so it undercounts when several bursts overlap.
func (s *Simulator) activeCount() int {
	switch s.config.Admission {
	case AdmissionStrict:
		return len(s.rockets) + len(s.groups)
	default:
		active := len(s.rockets)
		if len(s.particles) > 0 {
			active++
		}
		return active
	}
}

// hasCapacity reports whether one more rocket may launch now: the active
// count is below the firework limit and the element ceiling is not reached
func (s *Simulator) hasCapacity() bool {
	return s.activeCount() < s.config.MaxActiveFireworks &&
		len(s.rockets)+len(s.particles) < s.config.ElementCeiling()
}

// launchRocket spawns a rocket at the bottom of the viewport
func (s *Simulator) launchRocket(x float64, evType EventType) *Rocket {
	cfg := s.config
	h := s.viewport.Height
	r := &Rocket{
		ID:      s.newID(),
		X:       x,
		Y:       h,
		VX:      (s.rand.unit() - 0.5) * 2,
		VY:      -cfg.RocketSpeed.Min - s.rand.unit()*(cfg.RocketSpeed.Max-cfg.RocketSpeed.Min),
		TargetY: h * (0.2 + s.rand.unit()*0.3),
		Radius:  cfg.RocketRadius,
		Color:   cfg.RocketColor,
	}
	r.handle = s.attach(r.attributes())
	s.rockets = append(s.rockets, r)
	s.emit(Event{Type: evType, RocketID: r.ID, X: r.X, Y: r.Y})
	return r
}

// explode spawns a particle burst at (x, y). Returns the explosion id and the
// number of particles created, which is zero once the element ceiling is hit.
func (s *Simulator) explode(x, y float64, rocketID EntityID) (EntityID, int) {
	cfg := s.config
	explosionID := s.newID()

	totalElements := len(s.rockets) + len(s.particles)
	ceiling := cfg.ElementCeiling()
	if totalElements >= ceiling {
		s.logger.Info("explosion skipped, element ceiling reached",
			zap.Uint64("rocket", uint64(rocketID)),
			zap.Int("elements", totalElements),
			zap.Int("ceiling", ceiling))
		s.logEvent("[frame=%d] explosion of rocket %d skipped: %d elements alive (ceiling %d)",
			s.frame, rocketID, totalElements, ceiling)
		return explosionID, 0
	}

	count := min(cfg.ParticlesPerFirework, ceiling-totalElements)
	for i := 0; i < count; i++ {
		angle := s.rand.angle()
		speed := s.rand.uniform(cfg.ParticleSpeed)
		p := &Particle{
			ExplosionID: explosionID,
			RocketID:    rocketID,
			X:           x,
			Y:           y,
			VX:          math.Cos(angle) * speed,
			VY:          math.Sin(angle) * speed,
			Life:        cfg.ParticleLife,
			MaxLife:     cfg.ParticleLife,
			Flicker:     s.rand.between(0, 10),
			Radius:      s.rand.uniform(cfg.ParticleRadius),
			Color:       s.rand.pick(cfg.Colors),
			Filter:      cfg.ParticleFilter,
		}
		p.handle = s.attach(p.attributes())
		s.particles = append(s.particles, p)
	}
	s.groups[explosionID] = count
	return explosionID, count
}

// drain promotes at most one queued request when there is room for it.
// Returns true if a rocket was launched.
func (s *Simulator) drain() bool {
	if !s.hasCapacity() || s.queue.IsEmpty() {
		return false
	}
	entry, _ := s.queue.Pop()
	s.launchRocket(entry.X, EventPromoted)
	return true
}

// Step advances the simulation by exactly one frame.
//
// A rocket bursts once it climbs to its target height. With BurstOnStall it
// also bursts where it is as soon as its vertical velocity reaches zero;
// without it, a rocket that decays before its target falls back off screen
// and keeps its slot and drawable until Reset.
func (s *Simulator) Step() {
	now := s.clock.Now()
	s.frame++

	s.stepRockets()
	s.stepParticles()
	s.maybePrune(now)

	s.metrics.ObserveFrame(s.Stats())
}

func (s *Simulator) stepRockets() {
	cfg := s.config
	// Back to front: removal at i never shifts an unvisited rocket, and
	// rockets appended by drain are not stepped until the next frame.
	for i := len(s.rockets) - 1; i >= 0; i-- {
		r := s.rockets[i]
		r.X += r.VX
		r.Y += r.VY
		r.VY += cfg.RocketDecay
		s.surface.SetAttributes(r.handle, r.attributes())

		if (r.Y <= r.TargetY || (cfg.BurstOnStall && r.VY >= 0)) && !r.Exploded {
			explosionID, count := s.explode(r.X, r.Y, r.ID)
			r.Exploded = true
			s.release(r.handle)
			s.rockets = slices.Delete(s.rockets, i, i+1)
			s.emit(Event{
				Type:        EventRocketBurst,
				RocketID:    r.ID,
				ExplosionID: explosionID,
				X:           r.X,
				Y:           r.Y,
				Count:       count,
			})
		}
	}
}

func (s *Simulator) stepParticles() {
	cfg := s.config
	for i := len(s.particles) - 1; i >= 0; i-- {
		p := s.particles[i]
		p.X += p.VX
		p.Y += p.VY
		p.VY += cfg.Gravity
		p.Life--
		p.Flicker += cfg.FlickerStep
		s.surface.SetAttributes(p.handle, p.attributes())

		if p.Life <= 0 {
			// Release and unpool before checking the group so the count
			// reflects this particle's removal.
			s.release(p.handle)
			s.particles = slices.Delete(s.particles, i, i+1)
			s.metrics.ParticlesExpired++

			s.groups[p.ExplosionID]--
			if s.groups[p.ExplosionID] <= 0 {
				delete(s.groups, p.ExplosionID)
				s.emit(Event{
					Type:        EventGroupExhausted,
					RocketID:    p.RocketID,
					ExplosionID: p.ExplosionID,
					X:           p.X,
					Y:           p.Y,
				})
			}
		}
	}
}

// maybePrune discards stale queue entries once per PruneInterval
func (s *Simulator) maybePrune(now time.Time) {
	if now.Sub(s.lastPrune) < s.config.PruneInterval() {
		return
	}
	s.lastPrune = now
	if removed := s.queue.Prune(now, s.config.QueueStaleAfter()); removed > 0 {
		s.emit(Event{Type: EventPruned, Count: removed})
	}
}

// emit records an event and, for pool removals, gives the wait queue a
// chance to drain. Every pool-freeing path goes through here.
func (s *Simulator) emit(ev Event) {
	ev.Time = s.clock.Now()
	ev.Frame = s.frame
	s.metrics.Record(ev)

	if ce := s.logger.Check(zap.DebugLevel, "fireworks event"); ce != nil {
		ce.Write(
			zap.String("type", ev.Type.String()),
			zap.Uint64("frame", ev.Frame),
			zap.Uint64("rocket", uint64(ev.RocketID)),
			zap.Uint64("explosion", uint64(ev.ExplosionID)),
			zap.Int("count", ev.Count),
			zap.Int("rockets", len(s.rockets)),
			zap.Int("particles", len(s.particles)),
			zap.Int("queue", s.queue.Len()))
	}
	if s.LogEvent != nil {
		s.LogEvent(ev.String())
	}
	if s.OnEvent != nil {
		s.OnEvent(ev)
	}

	if ev.Type.freesCapacity() {
		s.drain()
	}
}

// attach creates a drawable, applies attrs and appends it to the surface
func (s *Simulator) attach(attrs Attributes) Handle {
	h := s.surface.CreateElement(ElementCircle)
	s.surface.SetAttributes(h, attrs)
	s.surface.Append(h)
	return h
}

func (s *Simulator) release(h Handle) {
	s.surface.Remove(h)
}

func (s *Simulator) newID() EntityID {
	s.nextID++
	return s.nextID
}

// logEvent sends a log message to the UI callback (if set)
func (s *Simulator) logEvent(format string, args ...interface{}) {
	if s.LogEvent != nil {
		s.LogEvent(fmt.Sprintf(format, args...))
	}
}

// UpdateConfig applies a partial configuration update. The new configuration
// is validated first; on error the current one stays in effect.
func (s *Simulator) UpdateConfig(patch ConfigPatch) error {
	next := s.config.Apply(patch)
	if err := next.Validate(); err != nil {
		return err
	}
	s.config = next

	for _, entry := range s.queue.SetCapacity(next.MaxQueueSize) {
		s.emit(Event{Type: EventDropped, X: entry.X, Count: s.queue.Len()})
	}
	s.logger.Info("config updated",
		zap.Int("maxActiveFireworks", next.MaxActiveFireworks),
		zap.Int("particlesPerFirework", next.ParticlesPerFirework),
		zap.Int("maxQueueSize", next.MaxQueueSize),
		zap.Int("launchIntervalMs", next.LaunchIntervalMs),
		zap.Stringer("admission", next.Admission))
	return nil
}

// Resize changes the viewport used for new rockets and random launches.
// Live entities keep their positions.
func (s *Simulator) Resize(v Viewport) error {
	if err := validateViewport(v); err != nil {
		return err
	}
	s.viewport = v
	return nil
}

// Reset releases every drawable, empties pools and queue, and clears metrics.
// Configuration and viewport are kept.
func (s *Simulator) Reset() {
	for _, r := range s.rockets {
		s.release(r.handle)
	}
	for _, p := range s.particles {
		s.release(p.handle)
	}
	s.rockets = nil
	s.particles = nil
	s.groups = make(map[EntityID]int)
	s.queue.Clear()
	s.metrics = NewMetrics()
	s.frame = 0
	s.lastPrune = s.clock.Now()
}

// Stats returns the current pool and queue occupancy
func (s *Simulator) Stats() Stats {
	return Stats{
		Rockets:     len(s.rockets),
		Particles:   len(s.particles),
		QueueLength: s.queue.Len(),
		TotalActive: s.activeCount(),
	}
}

// Config returns a copy of the current configuration
func (s *Simulator) Config() Config {
	return s.config.Clone()
}

// Metrics returns a copy of current metrics
func (s *Simulator) Metrics() *Metrics {
	return s.metrics.Clone()
}

// Viewport returns the current drawing area
func (s *Simulator) Viewport() Viewport {
	return s.viewport
}

// Frame returns the number of frames stepped since creation or Reset
func (s *Simulator) Frame() uint64 {
	return s.frame
}

// QueueEntries returns the pending launch requests, oldest first
func (s *Simulator) QueueEntries() []QueueEntry {
	return s.queue.Entries()
}

// IsQuiescent reports whether nothing is alive or waiting
func (s *Simulator) IsQuiescent() bool {
	return len(s.rockets) == 0 && len(s.particles) == 0 && s.queue.IsEmpty()
}
