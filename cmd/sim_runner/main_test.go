package main

import (
	"testing"

	"github.com/miretskiy/fireworks/simulator"
	"github.com/stretchr/testify/require"
)

func TestParseClicks(t *testing.T) {
	clicks, err := parseClicks("120@0, 480.5@30")
	require.NoError(t, err)
	require.Equal(t, []click{{Frame: 0, X: 120}, {Frame: 30, X: 480.5}}, clicks)

	clicks, err = parseClicks("")
	require.NoError(t, err)
	require.Nil(t, clicks)

	for _, bad := range []string{"120", "x@1", "1@y", "1@-2"} {
		_, err := parseClicks(bad)
		require.Error(t, err, bad)
	}
}

func TestRunSimulationAutoLaunchAndDrain(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.LaunchIntervalMs = 100

	results, err := runSimulation(options{
		Config:     cfg,
		Frames:     500,
		FPS:        50,
		Viewport:   simulator.Viewport{Width: 800, Height: 600},
		AutoLaunch: true,
		Drain:      true,
		MaxDrain:   100000,
	})
	require.NoError(t, err)

	// Ten virtual seconds at one request per 100ms
	total := 0
	for _, n := range results.Outcomes {
		total += n
	}
	require.Equal(t, 100, total)
	require.Greater(t, results.Metrics.Launched, 0)

	require.True(t, results.Leak.Quiescent)
	require.True(t, results.Leak.OK)
	require.Zero(t, results.Leak.LeakedElements)
	require.Zero(t, results.Scene.Live)
	require.LessOrEqual(t, results.Metrics.PeakElements, cfg.ElementCeiling())
	require.LessOrEqual(t, results.Metrics.PeakQueueLength, cfg.MaxQueueSize)
	require.Greater(t, results.Frames, uint64(500))
}

func TestRunSimulationScriptedClicks(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.MaxActiveFireworks = 1
	cfg.MaxQueueSize = 1

	results, err := runSimulation(options{
		Config:   cfg,
		Frames:   10,
		FPS:      60,
		Viewport: simulator.Viewport{Width: 800, Height: 600},
		Clicks:   []click{{Frame: 0, X: 10}, {Frame: 0, X: 20}, {Frame: 1, X: 30}},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"launched": 1, "queued": 1, "dropped": 1}, results.Outcomes)
	require.Equal(t, uint64(10), results.Frames)
	require.False(t, results.Leak.Quiescent)
	require.True(t, results.Leak.OK, "live drawables are not a leak while entities are alive")
}

func TestRunSimulationRejectsBadOptions(t *testing.T) {
	_, err := runSimulation(options{Config: simulator.DefaultConfig(), FPS: 0, Viewport: simulator.Viewport{Width: 1, Height: 1}})
	require.Error(t, err)

	bad := simulator.DefaultConfig()
	bad.Colors = nil
	_, err = runSimulation(options{Config: bad, FPS: 60, Viewport: simulator.Viewport{Width: 1, Height: 1}})
	require.Error(t, err)
}

// TestRunSimulationClickTraffic verifies simulated clicks are admitted through
// the same policy and every request gets exactly one outcome
func TestRunSimulationClickTraffic(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.MaxActiveFireworks = 2

	results, err := runSimulation(options{
		Config:   cfg,
		Frames:   500,
		FPS:      50,
		Viewport: simulator.Viewport{Width: 800, Height: 600},
		Traffic:  &constantClicks{ratePerSec: 5},
		Drain:    true,
		MaxDrain: 100000,
	})
	require.NoError(t, err)

	total := 0
	for _, n := range results.Outcomes {
		total += n
	}
	require.Equal(t, 50, total)
	require.Equal(t, 50, results.Metrics.Launched+results.Metrics.Queued+results.Metrics.Dropped)
	require.Greater(t, results.Outcomes["dropped"], 0)
	require.True(t, results.Leak.OK)
	require.True(t, results.Leak.Quiescent)
}
