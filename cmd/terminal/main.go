package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/miretskiy/fireworks/internal/logging"
	"github.com/miretskiy/fireworks/simulator"
	"go.uber.org/zap"
)

// Each terminal cell stands for a block of surface units, so the physics
// tuned for browser pixels looks the same in a terminal
const (
	cellWidth  = 8.0
	cellHeight = 16.0
)

// viewportFor converts a terminal size to simulator units. The last row is
// reserved for the status line.
func viewportFor(cols, rows int) simulator.Viewport {
	return simulator.Viewport{
		Width:  float64(max(cols, 1)) * cellWidth,
		Height: float64(max(rows-1, 1)) * cellHeight,
	}
}

// cellFor maps a surface position to a terminal cell
func cellFor(x, y float64) (int, int) {
	return int(x / cellWidth), int(y / cellHeight)
}

// glyphFor picks a rune by brightness; faint particles are not drawn
func glyphFor(el simulator.Element) (rune, bool) {
	switch {
	case el.Filter == "" && el.Opacity >= 1:
		return '^', true // rocket
	case el.Opacity >= 0.66:
		return '*', true
	case el.Opacity >= 0.33:
		return '+', true
	case el.Opacity > 0.05:
		return '.', true
	default:
		return 0, false
	}
}

type terminal struct {
	screen tcell.Screen
	runner *simulator.Runner
	scene  *simulator.Scene
	logger *zap.Logger
	colors map[string]tcell.Color

	buttons tcell.ButtonMask // Mouse buttons held at the last mouse event
}

func (t *terminal) color(name string) tcell.Color {
	if c, ok := t.colors[name]; ok {
		return c
	}
	c := tcell.GetColor(name)
	t.colors[name] = c
	return c
}

// draw renders the scene snapshot and the status line
func (t *terminal) draw() {
	t.screen.Clear()
	cols, rows := t.screen.Size()

	for _, el := range t.scene.Snapshot() {
		glyph, ok := glyphFor(el)
		if !ok {
			continue
		}
		col, row := cellFor(el.X, el.Y)
		if col < 0 || row < 0 || col >= cols || row >= rows-1 {
			continue
		}
		style := tcell.StyleDefault.Foreground(t.color(el.Color))
		t.screen.SetContent(col, row, glyph, nil, style)
	}

	stats := t.runner.Stats()
	status := fmt.Sprintf(" rockets %d  particles %d  queue %d  active %d   [click] launch  [c] reset  [q] quit",
		stats.Rockets, stats.Particles, stats.QueueLength, stats.TotalActive)
	statusStyle := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
	for i := 0; i < cols; i++ {
		r := ' '
		if i < len(status) {
			r = rune(status[i])
		}
		t.screen.SetContent(i, rows-1, r, nil, statusStyle)
	}

	t.screen.Show()
}

// handleInput applies one terminal event. Returns false to quit.
func (t *terminal) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'q':
				return false
			case 'c':
				t.runner.Reset()
				t.logger.Info("scene reset")
			}
		}

	case *tcell.EventMouse:
		// Motion with the button held is reported as more Button1 events;
		// only the press launches.
		pressed := ev.Buttons()&tcell.Button1 != 0 && t.buttons&tcell.Button1 == 0
		t.buttons = ev.Buttons()
		if pressed {
			col, _ := ev.Position()
			outcome := t.runner.RequestFirework((float64(col) + 0.5) * cellWidth)
			t.logger.Debug("click", zap.Int("col", col), zap.Stringer("outcome", outcome))
		}

	case *tcell.EventResize:
		t.screen.Sync()
		cols, rows := t.screen.Size()
		if err := t.runner.Resize(viewportFor(cols, rows)); err != nil {
			t.logger.Warn("resize rejected", zap.Error(err))
		}
	}
	return true
}

func (t *terminal) run(renderInterval, statsInterval time.Duration) {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	eventChan := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				return // screen finalized
			}
			select {
			case eventChan <- ev:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			if !t.handleInput(ev) {
				return
			}

		case <-statsTicker.C:
			stats := t.runner.Stats()
			t.logger.Info("stats",
				zap.Int("rockets", stats.Rockets),
				zap.Int("particles", stats.Particles),
				zap.Int("queue", stats.QueueLength),
				zap.Int("totalActive", stats.TotalActive))

		case <-ticker.C:
			t.draw()
		}
	}
}

func run() error {
	configFile := flag.String("config", "", "Path to JSON, TOML or YAML fireworks configuration (defaults when empty)")
	logFile := flag.String("log", "fireworks.log", "Log file (the terminal is used for drawing)")
	logLevel := flag.String("log-level", "info", "Log level")
	fps := flag.Int("fps", 60, "Simulation frames per second")
	flag.Parse()

	config := simulator.DefaultConfig()
	if *configFile != "" {
		var err error
		config, err = simulator.LoadConfigFile(*configFile)
		if err != nil {
			return err
		}
	}
	if *fps <= 0 {
		return fmt.Errorf("fps must be > 0, got %d", *fps)
	}

	logger, err := logging.NewFile(logging.Config{Level: *logLevel}, *logFile)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	screen.EnableMouse()
	screen.HideCursor()

	scene := simulator.NewScene()
	sim, err := simulator.NewSimulator(config, scene, viewportFor(screen.Size()), simulator.WithLogger(logger))
	if err != nil {
		return err
	}
	runner := simulator.NewRunner(sim, time.Second/time.Duration(*fps))

	t := &terminal{
		screen: screen,
		runner: runner,
		scene:  scene,
		logger: logger,
		colors: make(map[string]tcell.Color),
	}

	runner.Start(context.Background())
	defer runner.Stop()
	logger.Info("terminal fireworks started",
		zap.Int("maxActiveFireworks", config.MaxActiveFireworks),
		zap.Int("launchIntervalMs", config.LaunchIntervalMs))

	t.run(33*time.Millisecond, 5*time.Second)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
