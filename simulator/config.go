package simulator

import (
	"fmt"
	"time"
)

// AdmissionPolicy selects how the active-firework count is computed when
// deciding whether a launch request may proceed
type AdmissionPolicy int

const (
	AdmissionCoarse AdmissionPolicy = iota // rockets + 1 if any particle is alive
	AdmissionStrict                        // rockets + number of live explosion groups
)

// String returns the string representation of AdmissionPolicy
func (p AdmissionPolicy) String() string {
	switch p {
	case AdmissionCoarse:
		return "coarse"
	case AdmissionStrict:
		return "strict"
	default:
		return "coarse"
	}
}

// ParseAdmissionPolicy parses a string into AdmissionPolicy
func ParseAdmissionPolicy(s string) (AdmissionPolicy, error) {
	switch s {
	case "coarse", "":
		return AdmissionCoarse, nil
	case "strict":
		return AdmissionStrict, nil
	default:
		return AdmissionCoarse, fmt.Errorf("invalid admission policy: %s (must be 'coarse' or 'strict')", s)
	}
}

// MarshalText implements encoding.TextMarshaler (used by json, toml and yaml)
func (p AdmissionPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *AdmissionPolicy) UnmarshalText(data []byte) error {
	parsed, err := ParseAdmissionPolicy(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Range is an inclusive [Min, Max] interval sampled uniformly
type Range struct {
	Min float64 `json:"min" toml:"min" yaml:"min"`
	Max float64 `json:"max" toml:"max" yaml:"max"`
}

func (r Range) validate(name string, allowZeroMin bool) error {
	if r.Min < 0 || (!allowZeroMin && r.Min == 0) {
		return ErrInvalidConfig(fmt.Sprintf("%s.min must be > 0", name))
	}
	if r.Min > r.Max {
		return ErrInvalidConfig(fmt.Sprintf("%s.min (%g) must be <= %s.max (%g)", name, r.Min, name, r.Max))
	}
	return nil
}

// Config holds all fireworks parameters.
// Durations are expressed in milliseconds, lifetimes in frames.
type Config struct {
	// Capacity
	MaxActiveFireworks   int `json:"maxActiveFireworks" toml:"max_active_fireworks" yaml:"maxActiveFireworks"`       // Concurrent fireworks allowed at admission time
	ParticlesPerFirework int `json:"particlesPerFirework" toml:"particles_per_firework" yaml:"particlesPerFirework"` // Particles per burst; also sizes the element ceiling
	MaxQueueSize         int `json:"maxQueueSize" toml:"max_queue_size" yaml:"maxQueueSize"`                         // Pending launch requests kept while at capacity (0 = drop all)

	// Scheduling
	LaunchIntervalMs  int `json:"launchInterval" toml:"launch_interval_ms" yaml:"launchInterval"`       // Auto-launch period
	PruneIntervalMs   int `json:"pruneInterval" toml:"prune_interval_ms" yaml:"pruneInterval"`          // How often stale queue entries are pruned
	QueueStaleAfterMs int `json:"queueStaleAfter" toml:"queue_stale_after_ms" yaml:"queueStaleAfter"` // Age at which a queued request is discarded

	// Physics (units are viewport pixels per frame)
	Gravity       float64 `json:"gravity" toml:"gravity" yaml:"gravity"`                   // Downward acceleration applied to particles
	RocketDecay   float64 `json:"rocketDecay" toml:"rocket_decay" yaml:"rocketDecay"`      // Deceleration applied to ascending rockets
	RocketSpeed   Range   `json:"rocketSpeed" toml:"rocket_speed" yaml:"rocketSpeed"`      // Initial upward speed
	ParticleSpeed Range   `json:"particleSpeed" toml:"particle_speed" yaml:"particleSpeed"` // Initial burst speed
	ParticleLife  int     `json:"particleLife" toml:"particle_life" yaml:"particleLife"`   // Frames a particle lives
	FlickerStep   float64 `json:"flickerStep" toml:"flicker_step" yaml:"flickerStep"`      // Flicker phase advance per frame
	BurstOnStall  bool    `json:"burstOnStall" toml:"burst_on_stall" yaml:"burstOnStall"`  // Burst rockets that stop climbing short of their target

	// Appearance
	Colors         []string        `json:"colors" toml:"colors" yaml:"colors"`
	ParticleRadius Range           `json:"particleRadius" toml:"particle_radius" yaml:"particleRadius"`
	ParticleFilter string          `json:"particleFilter" toml:"particle_filter" yaml:"particleFilter"`
	RocketRadius   float64         `json:"rocketRadius" toml:"rocket_radius" yaml:"rocketRadius"`
	RocketColor    string          `json:"rocketColor" toml:"rocket_color" yaml:"rocketColor"`
	Admission      AdmissionPolicy `json:"admissionPolicy" toml:"admission_policy" yaml:"admissionPolicy"`
}

// DefaultPalette is the warm palette used when no colors are configured
var DefaultPalette = []string{"#ff4500", "#ff0000", "#ffaa00", "#ff6600", "#ffd700"}

// DefaultConfig returns the stock fireworks settings
func DefaultConfig() Config {
	return Config{
		MaxActiveFireworks:   10,
		ParticlesPerFirework: 60,
		MaxQueueSize:         5,
		LaunchIntervalMs:     1500,
		PruneIntervalMs:      5000,
		QueueStaleAfterMs:    10000,
		Gravity:              0.02,
		RocketDecay:          0.03,
		RocketSpeed:          Range{Min: 8, Max: 10},
		ParticleSpeed:        Range{Min: 1, Max: 5},
		ParticleLife:         140,
		FlickerStep:          5,
		BurstOnStall:         true,
		Colors:               append([]string(nil), DefaultPalette...),
		ParticleRadius:       Range{Min: 2, Max: 5},
		ParticleFilter:       "url(#fireGlow)",
		RocketRadius:         3,
		RocketColor:          "white",
		Admission:            AdmissionCoarse,
	}
}

// NewYearConfig returns the lighter settings used by the greeting page:
// small bursts that hang in the air under weak gravity
func NewYearConfig() Config {
	cfg := DefaultConfig()
	cfg.ParticlesPerFirework = 20
	cfg.Gravity = 0.002
	return cfg
}

// LaunchInterval returns the auto-launch period
func (c Config) LaunchInterval() time.Duration {
	return time.Duration(c.LaunchIntervalMs) * time.Millisecond
}

// PruneInterval returns how often the wait queue is pruned
func (c Config) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalMs) * time.Millisecond
}

// QueueStaleAfter returns the maximum age of a queued request
func (c Config) QueueStaleAfter() time.Duration {
	return time.Duration(c.QueueStaleAfterMs) * time.Millisecond
}

// MaxElements bounds ElementCeiling so the product of the capacity limits
// always fits in an int
const MaxElements = 1 << 20

// ElementCeiling is the hard cap on rockets+particles alive at once
func (c Config) ElementCeiling() int {
	return c.MaxActiveFireworks * c.ParticlesPerFirework
}

// Clone returns a deep copy of c
func (c Config) Clone() Config {
	out := c
	out.Colors = append([]string(nil), c.Colors...)
	return out
}

// Validate checks if configuration values are reasonable
func (c *Config) Validate() error {
	if c.MaxActiveFireworks < 1 {
		return ErrInvalidConfig("maxActiveFireworks must be >= 1")
	}
	if c.ParticlesPerFirework < 1 {
		return ErrInvalidConfig("particlesPerFirework must be >= 1")
	}
	if c.MaxActiveFireworks > MaxElements/c.ParticlesPerFirework {
		return ErrInvalidConfig(fmt.Sprintf("maxActiveFireworks*particlesPerFirework must be <= %d", MaxElements))
	}
	if c.MaxQueueSize < 0 {
		return ErrInvalidConfig("maxQueueSize must be >= 0")
	}
	if c.LaunchIntervalMs <= 0 {
		return ErrInvalidConfig("launchInterval must be > 0")
	}
	if c.PruneIntervalMs <= 0 {
		return ErrInvalidConfig("pruneInterval must be > 0")
	}
	if c.QueueStaleAfterMs <= 0 {
		return ErrInvalidConfig("queueStaleAfter must be > 0")
	}
	if c.Gravity < 0 {
		return ErrInvalidConfig("gravity must be >= 0")
	}
	if c.RocketDecay < 0 {
		return ErrInvalidConfig("rocketDecay must be >= 0")
	}
	if err := c.RocketSpeed.validate("rocketSpeed", false); err != nil {
		return err
	}
	if err := c.ParticleSpeed.validate("particleSpeed", true); err != nil {
		return err
	}
	if err := c.ParticleRadius.validate("particleRadius", false); err != nil {
		return err
	}
	if c.ParticleLife < 1 {
		return ErrInvalidConfig("particleLife must be >= 1")
	}
	if len(c.Colors) == 0 {
		return ErrInvalidConfig("colors must not be empty")
	}
	for i, col := range c.Colors {
		if col == "" {
			return ErrInvalidConfig(fmt.Sprintf("colors[%d] is empty", i))
		}
	}
	if c.RocketRadius <= 0 {
		return ErrInvalidConfig("rocketRadius must be > 0")
	}
	return nil
}

// ConfigPatch is a partial configuration update. Nil fields are left unchanged.
type ConfigPatch struct {
	MaxActiveFireworks   *int             `json:"maxActiveFireworks,omitempty"`
	ParticlesPerFirework *int             `json:"particlesPerFirework,omitempty"`
	MaxQueueSize         *int             `json:"maxQueueSize,omitempty"`
	LaunchIntervalMs     *int             `json:"launchInterval,omitempty"`
	PruneIntervalMs      *int             `json:"pruneInterval,omitempty"`
	QueueStaleAfterMs    *int             `json:"queueStaleAfter,omitempty"`
	Gravity              *float64         `json:"gravity,omitempty"`
	RocketDecay          *float64         `json:"rocketDecay,omitempty"`
	RocketSpeed          *Range           `json:"rocketSpeed,omitempty"`
	ParticleSpeed        *Range           `json:"particleSpeed,omitempty"`
	ParticleLife         *int             `json:"particleLife,omitempty"`
	FlickerStep          *float64         `json:"flickerStep,omitempty"`
	BurstOnStall         *bool            `json:"burstOnStall,omitempty"`
	Colors               []string         `json:"colors,omitempty"`
	ParticleRadius       *Range           `json:"particleRadius,omitempty"`
	ParticleFilter       *string          `json:"particleFilter,omitempty"`
	RocketRadius         *float64         `json:"rocketRadius,omitempty"`
	RocketColor          *string          `json:"rocketColor,omitempty"`
	Admission            *AdmissionPolicy `json:"admissionPolicy,omitempty"`
}

// Apply returns a copy of c with every non-nil patch field applied
func (c Config) Apply(p ConfigPatch) Config {
	out := c.Clone()
	if p.MaxActiveFireworks != nil {
		out.MaxActiveFireworks = *p.MaxActiveFireworks
	}
	if p.ParticlesPerFirework != nil {
		out.ParticlesPerFirework = *p.ParticlesPerFirework
	}
	if p.MaxQueueSize != nil {
		out.MaxQueueSize = *p.MaxQueueSize
	}
	if p.LaunchIntervalMs != nil {
		out.LaunchIntervalMs = *p.LaunchIntervalMs
	}
	if p.PruneIntervalMs != nil {
		out.PruneIntervalMs = *p.PruneIntervalMs
	}
	if p.QueueStaleAfterMs != nil {
		out.QueueStaleAfterMs = *p.QueueStaleAfterMs
	}
	if p.Gravity != nil {
		out.Gravity = *p.Gravity
	}
	if p.RocketDecay != nil {
		out.RocketDecay = *p.RocketDecay
	}
	if p.RocketSpeed != nil {
		out.RocketSpeed = *p.RocketSpeed
	}
	if p.ParticleSpeed != nil {
		out.ParticleSpeed = *p.ParticleSpeed
	}
	if p.ParticleLife != nil {
		out.ParticleLife = *p.ParticleLife
	}
	if p.FlickerStep != nil {
		out.FlickerStep = *p.FlickerStep
	}
	if p.BurstOnStall != nil {
		out.BurstOnStall = *p.BurstOnStall
	}
	if p.Colors != nil {
		out.Colors = append([]string(nil), p.Colors...)
	}
	if p.ParticleRadius != nil {
		out.ParticleRadius = *p.ParticleRadius
	}
	if p.ParticleFilter != nil {
		out.ParticleFilter = *p.ParticleFilter
	}
	if p.RocketRadius != nil {
		out.RocketRadius = *p.RocketRadius
	}
	if p.RocketColor != nil {
		out.RocketColor = *p.RocketColor
	}
	if p.Admission != nil {
		out.Admission = *p.Admission
	}
	return out
}
