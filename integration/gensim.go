package integration

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miretskiy/fireworks/simulator"
	"go.uber.org/zap"
)

// FireworksConfig defines configuration for the fireworks component model
type FireworksConfig struct {
	// Capacity
	MaxActiveFireworks   int `yaml:"max_active_fireworks" json:"max_active_fireworks"`
	ParticlesPerFirework int `yaml:"particles_per_firework" json:"particles_per_firework"`
	MaxQueueSize         int `yaml:"max_queue_size" json:"max_queue_size"`

	// Physics
	Gravity      float64 `yaml:"gravity" json:"gravity"`
	ParticleLife int     `yaml:"particle_life" json:"particle_life"`

	// Pacing
	FrameRate        float64 `yaml:"frame_rate" json:"frame_rate"`                 // Frames per virtual second
	MaxCatchUpFrames int     `yaml:"max_catch_up_frames" json:"max_catch_up_frames"` // Bound on frames stepped per request

	// Viewport
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`

	AdmissionPolicy string `yaml:"admission_policy,omitempty" json:"admission_policy,omitempty"`
}

// GensimRequestContext contains information about the incoming request
type GensimRequestContext struct {
	Component   string
	CurrentTime float64  // Virtual seconds
	X           *float64 // Launch position; random across the viewport when nil
}

// GensimLogEntry represents a log emitted by the model
type GensimLogEntry struct {
	OffsetMs float64
	Status   string
	Message  string
}

// GensimMetricSample represents a custom metric emitted by the model
type GensimMetricSample struct {
	Name  string
	Type  string
	Value float64
	Tags  map[string]string
}

// GensimParameterDescriptor describes a mutable configuration field
type GensimParameterDescriptor struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	CurrentValue interface{} `json:"current_value"`
	Min          *float64    `json:"min,omitempty"`
	Max          *float64    `json:"max,omitempty"`
	Description  string      `json:"description,omitempty"`
}

// GensimResult represents the outcome of the model simulation for a request
type GensimResult struct {
	DurationMs float64
	WaitTimeMs float64
	Status     string
	ErrorType  *string
	ErrorMsg   *string
	Logs       []GensimLogEntry
	Metrics    []GensimMetricSample
}

// FireworksModel exposes a fireworks simulator as a component: every request
// is a launch request, and the simulator is stepped in virtual time between
// requests
type FireworksModel struct {
	component string
	cfg       *FireworksConfig
	mu        sync.Mutex
	sim       *simulator.Simulator
	scene     *simulator.Scene
	clock     *simulator.ManualClock
	logger    *zap.Logger

	lastTime     float64 // Virtual seconds of the last step
	nextLaunch   float64 // Virtual seconds of the next auto-launch
	outcomes     map[simulator.LaunchOutcome]int64
	autoLaunches map[simulator.LaunchOutcome]int64
}

// NewFireworksModel creates a new fireworks component model
func NewFireworksModel(component string, cfg *FireworksConfig, logger *zap.Logger) (*FireworksModel, error) {
	if cfg == nil {
		return nil, fmt.Errorf("fireworks config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 60
	}
	if cfg.MaxCatchUpFrames <= 0 {
		cfg.MaxCatchUpFrames = 600
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("viewport must be positive, got %gx%g", cfg.Width, cfg.Height)
	}

	simCfg := simulator.DefaultConfig()
	simCfg.MaxActiveFireworks = cfg.MaxActiveFireworks
	simCfg.ParticlesPerFirework = cfg.ParticlesPerFirework
	simCfg.MaxQueueSize = cfg.MaxQueueSize
	if cfg.Gravity > 0 {
		simCfg.Gravity = cfg.Gravity
	}
	if cfg.ParticleLife > 0 {
		simCfg.ParticleLife = cfg.ParticleLife
	}
	if cfg.AdmissionPolicy != "" {
		policy, err := simulator.ParseAdmissionPolicy(cfg.AdmissionPolicy)
		if err != nil {
			return nil, err
		}
		simCfg.Admission = policy
	}

	scene := simulator.NewScene()
	clock := simulator.NewManualClock(time.Unix(0, 0))
	sim, err := simulator.NewSimulator(simCfg, scene,
		simulator.Viewport{Width: cfg.Width, Height: cfg.Height},
		simulator.WithClock(clock),
		simulator.WithLogger(logger.Named(component)),
		simulator.WithRand(rand.New(rand.NewSource(time.Now().UnixNano()))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator: %w", err)
	}

	return &FireworksModel{
		component: component,
		cfg:       cfg,
		sim:       sim,
		scene:     scene,
		clock:     clock,
		logger:       logger,
		nextLaunch:   simCfg.LaunchInterval().Seconds(),
		outcomes:     make(map[simulator.LaunchOutcome]int64),
		autoLaunches: make(map[simulator.LaunchOutcome]int64),
	}, nil
}

// Name returns the component name
func (f *FireworksModel) Name() string {
	return f.component
}

// healthLocked maps occupancy to a generic and a detailed health status
func (f *FireworksModel) healthLocked() (string, string) {
	stats := f.sim.Stats()
	cfg := f.sim.Config()
	switch {
	case stats.QueueLength > 0 && stats.QueueLength >= cfg.MaxQueueSize:
		return "error", "saturated"
	case stats.QueueLength > 0:
		return "warn", "queued"
	default:
		return "ok", "normal"
	}
}

// Health returns the generic health status of the model
func (f *FireworksModel) Health() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	generic, _ := f.healthLocked()
	return generic
}

// HealthStatus returns the detailed health status of the model
func (f *FireworksModel) HealthStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, detailed := f.healthLocked()
	return detailed
}

// frameDuration is the virtual time covered by one simulator step
func (f *FireworksModel) frameDuration() time.Duration {
	return time.Duration(float64(time.Second) / f.cfg.FrameRate)
}

// advanceLocked steps the simulator up to virtual time now, firing random
// auto-launches every LaunchInterval along the way. Returns the number of
// frames stepped.
func (f *FireworksModel) advanceLocked(now float64) int {
	if now <= f.lastTime {
		return 0
	}
	gap := math.Floor((now - f.lastTime) * f.cfg.FrameRate)
	if gap < 1 {
		return 0
	}
	// Clamp before converting: a huge gap does not fit in an int
	stepped := f.cfg.MaxCatchUpFrames
	if gap < float64(stepped) {
		stepped = int(gap)
	}

	interval := f.sim.Config().LaunchInterval().Seconds()
	for i := 1; i <= stepped; i++ {
		f.clock.Advance(f.frameDuration())
		frameTime := f.lastTime + float64(i)/f.cfg.FrameRate
		for frameTime >= f.nextLaunch {
			f.autoLaunches[f.sim.RequestRandomLaunch()]++
			next := f.nextLaunch + interval
			if next <= f.nextLaunch {
				// interval is below float resolution at this virtual time
				next = math.Nextafter(frameTime, math.Inf(1))
			}
			f.nextLaunch = next
		}
		f.sim.Step()
	}

	// Time beyond the catch-up bound is skipped, not replayed
	f.lastTime += gap / f.cfg.FrameRate
	if f.nextLaunch <= f.lastTime {
		f.nextLaunch = f.lastTime + interval
	}
	return stepped
}

// HandleRequest simulates one launch request at ctx.CurrentTime
func (f *FireworksModel) HandleRequest(ctx *GensimRequestContext) (*GensimResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("request context is required")
	}
	if math.IsNaN(ctx.CurrentTime) || math.IsInf(ctx.CurrentTime, 0) {
		return nil, fmt.Errorf("invalid current time %v", ctx.CurrentTime)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	stepped := f.advanceLocked(ctx.CurrentTime)

	var outcome simulator.LaunchOutcome
	if ctx.X != nil {
		outcome = f.sim.RequestLaunch(*ctx.X)
	} else {
		outcome = f.sim.RequestRandomLaunch()
	}
	f.outcomes[outcome]++

	frameMs := float64(f.frameDuration()) / float64(time.Millisecond)
	result := &GensimResult{
		DurationMs: frameMs,
		Status:     "ok",
	}

	stats := f.sim.Stats()
	switch outcome {
	case simulator.OutcomeQueued:
		result.Status = "warn"
		result.Logs = append(result.Logs, GensimLogEntry{
			Status:  "warn",
			Message: fmt.Sprintf("%s launch queued (queue %d/%d)", f.component, stats.QueueLength, f.sim.Config().MaxQueueSize),
		})
	case simulator.OutcomeDropped:
		errType := "dropped"
		errMsg := fmt.Sprintf("%s launch dropped, queue full", f.component)
		result.Status = "error"
		result.ErrorType = &errType
		result.ErrorMsg = &errMsg
	}

	if stepped == f.cfg.MaxCatchUpFrames {
		result.Logs = append(result.Logs, GensimLogEntry{
			Status:  "info",
			Message: fmt.Sprintf("%s skipped ahead, catch-up bounded at %d frames", f.component, stepped),
		})
	}

	result.Metrics = f.buildMetrics(stats)
	return result, nil
}

// buildMetrics constructs metric samples from simulator state
func (f *FireworksModel) buildMetrics(stats simulator.Stats) []GensimMetricSample {
	tags := map[string]string{
		"component_model": "fireworks",
	}
	m := f.sim.Metrics()
	counters := f.scene.Counters()

	gauge := func(name string, v float64) GensimMetricSample {
		return GensimMetricSample{Name: name, Type: "gauge", Value: v, Tags: tags}
	}
	counter := func(name string, v float64) GensimMetricSample {
		return GensimMetricSample{Name: name, Type: "counter", Value: v, Tags: tags}
	}

	samples := []GensimMetricSample{
		gauge("fireworks.rockets", float64(stats.Rockets)),
		gauge("fireworks.particles", float64(stats.Particles)),
		gauge("fireworks.queue_length", float64(stats.QueueLength)),
		gauge("fireworks.total_active", float64(stats.TotalActive)),
		gauge("fireworks.live_elements", float64(counters.Live)),
		counter("fireworks.frames", float64(m.Frames)),
		counter("fireworks.explosions", float64(m.Explosions)),
		counter("fireworks.explosions_skipped", float64(m.SkippedExplosions)),
		counter("fireworks.particles_spawned", float64(m.ParticlesSpawned)),
		counter("fireworks.promoted", float64(m.Promoted)),
		counter("fireworks.pruned", float64(m.Pruned)),
	}

	byOutcome := func(name string, counts map[simulator.LaunchOutcome]int64) {
		for outcome, n := range counts {
			outcomeTags := make(map[string]string, len(tags)+1)
			for k, v := range tags {
				outcomeTags[k] = v
			}
			outcomeTags["outcome"] = outcome.String()
			samples = append(samples, GensimMetricSample{
				Name:  name,
				Type:  "counter",
				Value: float64(n),
				Tags:  outcomeTags,
			})
		}
	}
	byOutcome("fireworks.launch_requests", f.outcomes)
	byOutcome("fireworks.auto_launches", f.autoLaunches)

	return samples
}

// Config returns the current model configuration
func (f *FireworksModel) Config() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	cfg := f.sim.Config()
	return map[string]interface{}{
		"max_active_fireworks":   cfg.MaxActiveFireworks,
		"particles_per_firework": cfg.ParticlesPerFirework,
		"max_queue_size":         cfg.MaxQueueSize,
		"launch_interval":        cfg.LaunchInterval().String(),
		"gravity":                cfg.Gravity,
		"particle_life":          cfg.ParticleLife,
		"admission_policy":       cfg.Admission.String(),
		"frame_rate":             f.cfg.FrameRate,
	}
}

// MutableParameters returns descriptors for runtime-adjustable parameters
func (f *FireworksModel) MutableParameters() []GensimParameterDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()

	cfg := f.sim.Config()
	params := make([]GensimParameterDescriptor, 0)

	minActive := 1.0
	maxActive := 100.0
	params = append(params, GensimParameterDescriptor{
		Name:         "max_active_fireworks",
		Type:         "int",
		CurrentValue: cfg.MaxActiveFireworks,
		Min:          &minActive,
		Max:          &maxActive,
		Description:  "Number of fireworks allowed in flight at once. Raising it admits more launches immediately; lowering it sends more requests to the wait queue.",
	})

	minQueue := 0.0
	maxQueue := 100.0
	params = append(params, GensimParameterDescriptor{
		Name:         "max_queue_size",
		Type:         "int",
		CurrentValue: cfg.MaxQueueSize,
		Min:          &minQueue,
		Max:          &maxQueue,
		Description:  "Launch requests held while at capacity. Zero drops every request that cannot launch immediately. Shrinking the queue drops the newest waiting requests.",
	})

	minInterval := 10.0
	maxInterval := 60000.0
	params = append(params, GensimParameterDescriptor{
		Name:         "launch_interval",
		Type:         "duration",
		CurrentValue: cfg.LaunchIntervalMs,
		Min:          &minInterval,
		Max:          &maxInterval,
		Description:  "Period of the random auto-launches fired as virtual time advances, in milliseconds (accepts \"1.5s\", \"250ms\"). Shorter periods add background launches that compete with requests for capacity.",
	})

	minGravity := 0.0
	maxGravity := 1.0
	params = append(params, GensimParameterDescriptor{
		Name:         "gravity",
		Type:         "float",
		CurrentValue: cfg.Gravity,
		Min:          &minGravity,
		Max:          &maxGravity,
		Description:  "Downward acceleration applied to particles each frame. Low values keep bursts hanging in the air longer.",
	})

	params = append(params, GensimParameterDescriptor{
		Name:         "admission_policy",
		Type:         "string",
		CurrentValue: cfg.Admission.String(),
		Description:  "\"coarse\" counts all live particles as one firework; \"strict\" counts each live explosion separately.",
	})

	return params
}

// UpdateParameters applies runtime configuration changes. Either every
// parameter is applied or none is.
func (f *FireworksModel) UpdateParameters(params map[string]interface{}) error {
	if len(params) == 0 {
		return nil
	}

	var patch simulator.ConfigPatch

	if raw, ok := params["max_active_fireworks"]; ok {
		val, err := parseIntParam(raw)
		if err != nil {
			return fmt.Errorf("max_active_fireworks: %w", err)
		}
		patch.MaxActiveFireworks = &val
	}

	if raw, ok := params["max_queue_size"]; ok {
		val, err := parseIntParam(raw)
		if err != nil {
			return fmt.Errorf("max_queue_size: %w", err)
		}
		patch.MaxQueueSize = &val
	}

	if raw, ok := params["launch_interval"]; ok {
		d, err := parseDurationParam(raw)
		if err != nil {
			return fmt.Errorf("launch_interval: %w", err)
		}
		ms := int(d / time.Millisecond)
		patch.LaunchIntervalMs = &ms
	}

	if raw, ok := params["gravity"]; ok {
		val, err := parseFloatParam(raw)
		if err != nil {
			return fmt.Errorf("gravity: %w", err)
		}
		patch.Gravity = &val
	}

	if raw, ok := params["admission_policy"]; ok {
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("admission_policy: unsupported type %T", raw)
		}
		policy, err := simulator.ParseAdmissionPolicy(s)
		if err != nil {
			return fmt.Errorf("admission_policy: %w", err)
		}
		patch.Admission = &policy
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sim.UpdateConfig(patch); err != nil {
		return fmt.Errorf("failed to update simulator config: %w", err)
	}
	if patch.LaunchIntervalMs != nil {
		// The new period starts from the current virtual time
		f.nextLaunch = f.lastTime + f.sim.Config().LaunchInterval().Seconds()
	}
	return nil
}

// Helper functions for parameter parsing
func parseIntParam(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

func parseFloatParam(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

// parseDurationParam parses a duration that can be a number (assumed
// milliseconds) or a string with units (e.g., "250ms", "1.5s", "1500")
func parseDurationParam(value interface{}) (time.Duration, error) {
	if str, ok := value.(string); ok {
		return parseDurationString(str)
	}
	ms, err := parseFloatParam(value)
	if err != nil {
		return 0, err
	}
	return msToDuration(ms)
}

func parseDurationString(value string) (time.Duration, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return 0, fmt.Errorf("empty value")
	}

	// Plain number: milliseconds
	if ms, err := strconv.ParseFloat(value, 64); err == nil {
		return msToDuration(ms)
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("unable to parse duration value: %s", value)
	}
	return d, nil
}

func msToDuration(ms float64) (time.Duration, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return 0, fmt.Errorf("invalid numeric value")
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
