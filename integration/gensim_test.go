package integration

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, mutate func(*FireworksConfig)) *FireworksModel {
	t.Helper()
	cfg := &FireworksConfig{
		MaxActiveFireworks:   1,
		ParticlesPerFirework: 10,
		MaxQueueSize:         2,
		Width:                800,
		Height:               600,
	}
	if mutate != nil {
		mutate(cfg)
	}
	model, err := NewFireworksModel("fireworks-1", cfg, nil)
	require.NoError(t, err)
	return model
}

func metricValue(t *testing.T, samples []GensimMetricSample, name string) float64 {
	t.Helper()
	for _, s := range samples {
		if s.Name == name {
			return s.Value
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestNewFireworksModelValidation(t *testing.T) {
	_, err := NewFireworksModel("x", nil, nil)
	require.Error(t, err)

	_, err = NewFireworksModel("x", &FireworksConfig{MaxActiveFireworks: 1, ParticlesPerFirework: 1}, nil)
	require.Error(t, err, "zero viewport")

	_, err = NewFireworksModel("x", &FireworksConfig{ParticlesPerFirework: 1, Width: 1, Height: 1}, nil)
	require.Error(t, err, "zero max active")

	_, err = NewFireworksModel("x", &FireworksConfig{
		MaxActiveFireworks: 1, ParticlesPerFirework: 1, Width: 1, Height: 1, AdmissionPolicy: "greedy",
	}, nil)
	require.Error(t, err)
}

func TestHandleRequestOutcomes(t *testing.T) {
	model := newTestModel(t, nil)
	require.Equal(t, "fireworks-1", model.Name())
	x := 100.0

	res, err := model.HandleRequest(&GensimRequestContext{Component: "fireworks-1", X: &x})
	require.NoError(t, err)
	require.Equal(t, "ok", res.Status)
	require.Equal(t, 1.0, metricValue(t, res.Metrics, "fireworks.rockets"))
	require.Equal(t, "ok", model.Health())

	res, err = model.HandleRequest(&GensimRequestContext{X: &x})
	require.NoError(t, err)
	require.Equal(t, "warn", res.Status)
	require.Len(t, res.Logs, 1)
	require.Equal(t, "warn", model.Health())
	require.Equal(t, "queued", model.HealthStatus())

	_, err = model.HandleRequest(&GensimRequestContext{})
	require.NoError(t, err)
	require.Equal(t, "saturated", model.HealthStatus())

	res, err = model.HandleRequest(&GensimRequestContext{})
	require.NoError(t, err)
	require.Equal(t, "error", res.Status)
	require.NotNil(t, res.ErrorType)
	require.Equal(t, "dropped", *res.ErrorType)

	_, err = model.HandleRequest(nil)
	require.Error(t, err)
}

func TestHandleRequestAdvancesVirtualTime(t *testing.T) {
	model := newTestModel(t, func(c *FireworksConfig) { c.MaxCatchUpFrames = 120 })

	_, err := model.HandleRequest(&GensimRequestContext{CurrentTime: 0})
	require.NoError(t, err)

	// One second at 60 FPS
	res, err := model.HandleRequest(&GensimRequestContext{CurrentTime: 1})
	require.NoError(t, err)
	require.Equal(t, 60.0, metricValue(t, res.Metrics, "fireworks.frames"))

	// Ten more seconds are bounded by the catch-up limit
	res, err = model.HandleRequest(&GensimRequestContext{CurrentTime: 11})
	require.NoError(t, err)
	require.Equal(t, 180.0, metricValue(t, res.Metrics, "fireworks.frames"))
	require.NotEmpty(t, res.Logs)

	// Time never runs backwards
	res, err = model.HandleRequest(&GensimRequestContext{CurrentTime: 5})
	require.NoError(t, err)
	require.Equal(t, 180.0, metricValue(t, res.Metrics, "fireworks.frames"))
}

func metricSum(samples []GensimMetricSample, name string) float64 {
	var sum float64
	for _, s := range samples {
		if s.Name == name {
			sum += s.Value
		}
	}
	return sum
}

func TestAutoLaunchFollowsLaunchInterval(t *testing.T) {
	roomy := func(c *FireworksConfig) {
		c.MaxActiveFireworks = 100
		c.ParticlesPerFirework = 1
		c.MaxQueueSize = 0
	}
	slow := newTestModel(t, roomy)
	fast := newTestModel(t, roomy)
	require.NoError(t, fast.UpdateParameters(map[string]interface{}{"launch_interval": "250ms"}))

	x := 10.0
	slowRes, err := slow.HandleRequest(&GensimRequestContext{CurrentTime: 6, X: &x})
	require.NoError(t, err)
	fastRes, err := fast.HandleRequest(&GensimRequestContext{CurrentTime: 6, X: &x})
	require.NoError(t, err)

	// Same virtual time, same frames; only the launch period differs
	require.Equal(t, 360.0, metricValue(t, slowRes.Metrics, "fireworks.frames"))
	require.Equal(t, 360.0, metricValue(t, fastRes.Metrics, "fireworks.frames"))

	slowLaunches := metricSum(slowRes.Metrics, "fireworks.auto_launches")
	fastLaunches := metricSum(fastRes.Metrics, "fireworks.auto_launches")
	require.GreaterOrEqual(t, slowLaunches, 3.0)
	require.LessOrEqual(t, slowLaunches, 4.0)
	require.GreaterOrEqual(t, fastLaunches, 23.0)
	require.LessOrEqual(t, fastLaunches, 24.0)
}

func TestHandleRequestHugeTimeGap(t *testing.T) {
	model := newTestModel(t, func(c *FireworksConfig) { c.MaxCatchUpFrames = 120 })

	// 2^70 seconds is exact in float64 and its frame count overflows an int
	huge := math.Ldexp(1, 70)
	res, err := model.HandleRequest(&GensimRequestContext{CurrentTime: huge})
	require.NoError(t, err)
	require.Equal(t, 120.0, metricValue(t, res.Metrics, "fireworks.frames"))
	require.NotEmpty(t, res.Logs)

	// The skipped time is consumed, not recomputed on the next request
	res, err = model.HandleRequest(&GensimRequestContext{CurrentTime: huge})
	require.NoError(t, err)
	require.Equal(t, 120.0, metricValue(t, res.Metrics, "fireworks.frames"))

	_, err = model.HandleRequest(&GensimRequestContext{CurrentTime: math.Inf(1)})
	require.Error(t, err)
	_, err = model.HandleRequest(&GensimRequestContext{CurrentTime: math.NaN()})
	require.Error(t, err)
}

func TestMutableParameters(t *testing.T) {
	model := newTestModel(t, nil)
	params := model.MutableParameters()

	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{
		"max_active_fireworks", "max_queue_size", "launch_interval", "gravity", "admission_policy",
	}, names)
	require.Equal(t, 1, params[0].CurrentValue)
}

func TestUpdateParameters(t *testing.T) {
	model := newTestModel(t, nil)

	require.NoError(t, model.UpdateParameters(nil))
	require.NoError(t, model.UpdateParameters(map[string]interface{}{
		"max_active_fireworks": float64(4),
		"launch_interval":      "250ms",
		"gravity":              0.1,
		"admission_policy":     "strict",
	}))

	cfg := model.Config()
	require.Equal(t, 4, cfg["max_active_fireworks"])
	require.Equal(t, (250 * time.Millisecond).String(), cfg["launch_interval"])
	require.Equal(t, 0.1, cfg["gravity"])
	require.Equal(t, "strict", cfg["admission_policy"])

	t.Run("invalid update leaves config untouched", func(t *testing.T) {
		err := model.UpdateParameters(map[string]interface{}{
			"gravity":              0.5,
			"max_active_fireworks": 0,
		})
		require.Error(t, err)
		require.Equal(t, 0.1, model.Config()["gravity"])
	})

	t.Run("bad types are rejected", func(t *testing.T) {
		require.Error(t, model.UpdateParameters(map[string]interface{}{"max_queue_size": "lots"}))
		require.Error(t, model.UpdateParameters(map[string]interface{}{"admission_policy": 1}))
		require.Error(t, model.UpdateParameters(map[string]interface{}{"launch_interval": "soon"}))
	})
}

func TestParseDurationParam(t *testing.T) {
	tests := []struct {
		in   interface{}
		want time.Duration
	}{
		{1500, 1500 * time.Millisecond},
		{float64(250), 250 * time.Millisecond},
		{"1.5s", 1500 * time.Millisecond},
		{"100", 100 * time.Millisecond},
		{" 2S ", 2 * time.Second},
	}
	for _, tt := range tests {
		got, err := parseDurationParam(tt.in)
		require.NoError(t, err, "%v", tt.in)
		require.Equal(t, tt.want, got, "%v", tt.in)
	}

	_, err := parseDurationParam("")
	require.Error(t, err)
	_, err = parseDurationParam(true)
	require.Error(t, err)
}
