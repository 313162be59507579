package simulator

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 600, cfg.ElementCeiling())
	require.Equal(t, "url(#fireGlow)", cfg.ParticleFilter)

	ny := NewYearConfig()
	require.NoError(t, ny.Validate())
	require.Equal(t, 20, ny.ParticlesPerFirework)
	require.Equal(t, 0.002, ny.Gravity)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max active", func(c *Config) { c.MaxActiveFireworks = 0 }},
		{"zero particles", func(c *Config) { c.ParticlesPerFirework = 0 }},
		{"negative queue", func(c *Config) { c.MaxQueueSize = -1 }},
		{"zero launch interval", func(c *Config) { c.LaunchIntervalMs = 0 }},
		{"zero prune interval", func(c *Config) { c.PruneIntervalMs = 0 }},
		{"zero stale threshold", func(c *Config) { c.QueueStaleAfterMs = 0 }},
		{"negative gravity", func(c *Config) { c.Gravity = -0.1 }},
		{"negative decay", func(c *Config) { c.RocketDecay = -0.1 }},
		{"inverted rocket speed", func(c *Config) { c.RocketSpeed = Range{Min: 10, Max: 8} }},
		{"zero rocket speed", func(c *Config) { c.RocketSpeed = Range{Min: 0, Max: 8} }},
		{"negative particle speed", func(c *Config) { c.ParticleSpeed = Range{Min: -1, Max: 2} }},
		{"zero particle life", func(c *Config) { c.ParticleLife = 0 }},
		{"no colors", func(c *Config) { c.Colors = nil }},
		{"blank color", func(c *Config) { c.Colors = []string{"red", ""} }},
		{"zero particle radius", func(c *Config) { c.ParticleRadius = Range{} }},
		{"zero rocket radius", func(c *Config) { c.RocketRadius = 0 }},
		{"element ceiling too large", func(c *Config) {
			c.MaxActiveFireworks = 2000
			c.ParticlesPerFirework = 1000
		}},
		{"element ceiling overflows int", func(c *Config) {
			c.MaxActiveFireworks = math.MaxInt / 2
			c.ParticlesPerFirework = 4
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.IsType(t, SimError{}, err)
		})
	}

	t.Run("zero queue and zero particle speed are allowed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxQueueSize = 0
		cfg.ParticleSpeed = Range{Min: 0, Max: 1}
		require.NoError(t, cfg.Validate())
	})

	t.Run("element ceiling at the bound is allowed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxActiveFireworks = MaxElements / 64
		cfg.ParticlesPerFirework = 64
		require.NoError(t, cfg.Validate())
		require.Equal(t, MaxElements, cfg.ElementCeiling())
	})
}

func TestConfigApply(t *testing.T) {
	base := DefaultConfig()
	active := 3
	strict := AdmissionStrict
	speed := Range{Min: 2, Max: 4}

	next := base.Apply(ConfigPatch{
		MaxActiveFireworks: &active,
		Admission:          &strict,
		ParticleSpeed:      &speed,
		Colors:             []string{"#00ff00"},
	})
	require.Equal(t, 3, next.MaxActiveFireworks)
	require.Equal(t, AdmissionStrict, next.Admission)
	require.Equal(t, speed, next.ParticleSpeed)
	require.Equal(t, []string{"#00ff00"}, next.Colors)
	require.Equal(t, base.Gravity, next.Gravity)

	// The receiver is untouched
	require.Equal(t, 10, base.MaxActiveFireworks)
	require.Equal(t, DefaultPalette, base.Colors)
}

func TestConfigPatchFromJSON(t *testing.T) {
	var patch ConfigPatch
	require.NoError(t, json.Unmarshal([]byte(`{"launchInterval": 500, "admissionPolicy": "strict"}`), &patch))
	require.NotNil(t, patch.LaunchIntervalMs)
	require.Equal(t, 500, *patch.LaunchIntervalMs)
	require.Equal(t, AdmissionStrict, *patch.Admission)
	require.Nil(t, patch.Gravity)

	require.Error(t, json.Unmarshal([]byte(`{"admissionPolicy": "lenient"}`), &patch))
}

func TestAdmissionPolicyText(t *testing.T) {
	for _, p := range []AdmissionPolicy{AdmissionCoarse, AdmissionStrict} {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var parsed AdmissionPolicy
		require.NoError(t, parsed.UnmarshalText(text))
		require.Equal(t, p, parsed)
	}

	p, err := ParseAdmissionPolicy("")
	require.NoError(t, err)
	require.Equal(t, AdmissionCoarse, p)

	_, err = ParseAdmissionPolicy("bogus")
	require.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{
			"maxActiveFireworks": 4,
			"launchInterval": 800,
			"rocketSpeed": {"min": 6, "max": 7},
			"admissionPolicy": "strict"
		}`), "json")
		require.NoError(t, err)
		require.Equal(t, 4, cfg.MaxActiveFireworks)
		require.Equal(t, 800, cfg.LaunchIntervalMs)
		require.Equal(t, Range{Min: 6, Max: 7}, cfg.RocketSpeed)
		require.Equal(t, AdmissionStrict, cfg.Admission)
		require.Equal(t, 60, cfg.ParticlesPerFirework, "unset fields keep defaults")
	})

	t.Run("toml", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
max_active_fireworks = 2
particles_per_firework = 30
colors = ["#ffffff", "#ff00ff"]
admission_policy = "strict"

[particle_speed]
min = 0.5
max = 3.0
`), ".toml")
		require.NoError(t, err)
		require.Equal(t, 2, cfg.MaxActiveFireworks)
		require.Equal(t, 30, cfg.ParticlesPerFirework)
		require.Equal(t, []string{"#ffffff", "#ff00ff"}, cfg.Colors)
		require.Equal(t, Range{Min: 0.5, Max: 3}, cfg.ParticleSpeed)
		require.Equal(t, AdmissionStrict, cfg.Admission)
	})

	t.Run("yaml", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
maxQueueSize: 0
gravity: 0.05
particleRadius:
  min: 1
  max: 2
`), "yml")
		require.NoError(t, err)
		require.Equal(t, 0, cfg.MaxQueueSize)
		require.Equal(t, 0.05, cfg.Gravity)
		require.Equal(t, Range{Min: 1, Max: 2}, cfg.ParticleRadius)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		_, err := ParseConfig([]byte(`{"particleLife": 0}`), "json")
		require.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := ParseConfig([]byte(`x`), "ini")
		require.Error(t, err)
	})
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fireworks.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_queue_size = 9\n"), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.MaxQueueSize)

	_, err = LoadConfigFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}
