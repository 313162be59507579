package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/miretskiy/fireworks/simulator"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTerminal(t *testing.T, cols, rows int) (*terminal, *simulator.Simulator) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(cols, rows)
	t.Cleanup(screen.Fini)

	scene := simulator.NewScene()
	sim, err := simulator.NewSimulator(simulator.DefaultConfig(), scene, viewportFor(cols, rows),
		simulator.WithRand(rand.New(rand.NewSource(3))))
	require.NoError(t, err)

	return &terminal{
		screen: screen,
		runner: simulator.NewRunner(sim, 0),
		scene:  scene,
		logger: zap.NewNop(),
		colors: make(map[string]tcell.Color),
	}, sim
}

func TestViewportFor(t *testing.T) {
	require.Equal(t, simulator.Viewport{Width: 640, Height: 368}, viewportFor(80, 24))
	require.Equal(t, simulator.Viewport{Width: 8, Height: 16}, viewportFor(0, 0))

	col, row := cellFor(17, 33)
	require.Equal(t, 2, col)
	require.Equal(t, 2, row)
}

func TestGlyphFor(t *testing.T) {
	rocket := simulator.Element{Attributes: simulator.Attributes{Opacity: 1}}
	g, ok := glyphFor(rocket)
	require.True(t, ok)
	require.Equal(t, '^', g)

	particle := func(opacity float64) simulator.Element {
		return simulator.Element{Attributes: simulator.Attributes{Opacity: opacity, Filter: "url(#fireGlow)"}}
	}
	for _, tc := range []struct {
		opacity float64
		glyph   rune
	}{{0.9, '*'}, {0.5, '+'}, {0.1, '.'}} {
		g, ok := glyphFor(particle(tc.opacity))
		require.True(t, ok)
		require.Equal(t, tc.glyph, g)
	}
	_, ok = glyphFor(particle(0.01))
	require.False(t, ok)
}

func TestDrawRendersRocketAndStatus(t *testing.T) {
	term, _ := newTestTerminal(t, 80, 24)
	require.Equal(t, simulator.OutcomeLaunched, term.runner.RequestFirework(100))

	term.draw()

	// Rocket starts at the bottom edge of the viewport, which is the status row
	r, _, _, _ := term.screen.GetContent(0, 23)
	require.Equal(t, ' ', r)
	status := make([]rune, 0, 10)
	for i := 1; i <= 7; i++ {
		r, _, _, _ := term.screen.GetContent(i, 23)
		status = append(status, r)
	}
	require.Equal(t, "rockets", string(status))
}

func TestDrawAfterSteps(t *testing.T) {
	term, sim := newTestTerminal(t, 80, 24)
	term.runner.RequestFirework(100)
	sim.Step()

	term.draw()
	el := term.scene.Snapshot()[0]
	col, row := cellFor(el.X, el.Y)
	r, _, style, _ := term.screen.GetContent(col, row)
	require.Equal(t, '^', r)
	fg, _, _ := style.Decompose()
	require.Equal(t, tcell.GetColor("white"), fg)
}

func TestRunExitsOnQuitKey(t *testing.T) {
	term, _ := newTestTerminal(t, 80, 24)
	screen := term.screen.(tcell.SimulationScreen)

	done := make(chan struct{})
	go func() {
		term.run(time.Millisecond, time.Hour)
		close(done)
	}()
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after q")
	}
}

func TestHandleInput(t *testing.T) {
	term, _ := newTestTerminal(t, 80, 24)

	require.True(t, term.handleInput(tcell.NewEventMouse(10, 5, tcell.Button1, tcell.ModNone)))
	require.Equal(t, 1, term.runner.Stats().Rockets)

	require.True(t, term.handleInput(tcell.NewEventKey(tcell.KeyRune, 'c', tcell.ModNone)))
	require.Zero(t, term.runner.Stats().Rockets)

	require.True(t, term.handleInput(tcell.NewEventMouse(10, 5, tcell.ButtonNone, tcell.ModNone)))

	// Dragging with the button held launches once, at the press
	for col := 10; col <= 14; col++ {
		require.True(t, term.handleInput(tcell.NewEventMouse(col, 5, tcell.Button1, tcell.ModNone)))
	}
	require.True(t, term.handleInput(tcell.NewEventMouse(14, 5, tcell.ButtonNone, tcell.ModNone)))
	require.Equal(t, 1, term.runner.Stats().Rockets)

	// A second click after the release launches again
	require.True(t, term.handleInput(tcell.NewEventMouse(30, 5, tcell.Button1, tcell.ModNone)))
	require.True(t, term.handleInput(tcell.NewEventMouse(30, 5, tcell.ButtonNone, tcell.ModNone)))
	require.Equal(t, 2, term.runner.Stats().Rockets)

	require.True(t, term.handleInput(tcell.NewEventResize(40, 12)))

	require.False(t, term.handleInput(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	require.False(t, term.handleInput(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
}
