package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/miretskiy/fireworks/internal/logging"
	"github.com/miretskiy/fireworks/simulator"
	"go.uber.org/zap"
)

// options are the command line settings of one headless run
type options struct {
	Config     simulator.Config
	Frames     int
	FPS        int
	Viewport   simulator.Viewport
	Clicks     []click
	Traffic    clickTraffic // Simulated clicks at random positions (optional)
	AutoLaunch bool
	Drain      bool // Keep stepping (without auto-launch) until quiescent
	MaxDrain   int
	Logger     *zap.Logger
	LogEvent   func(string)
}

// click is a scripted launch request at a given frame
type click struct {
	Frame int     `json:"frame"`
	X     float64 `json:"x"`
}

// Results is the JSON document printed after a run
type Results struct {
	Config         simulator.Config        `json:"config"`
	Frames         uint64                  `json:"frames"`
	VirtualSeconds float64                 `json:"virtualSeconds"`
	RealTime       float64                 `json:"realTime"`
	Metrics        *simulator.Metrics      `json:"metrics"`
	Stats          simulator.Stats         `json:"stats"`
	Scene          simulator.SceneCounters `json:"scene"`
	Outcomes       map[string]int          `json:"outcomes"`
	Leak           LeakCheck               `json:"leakCheck"`
}

// LeakCheck reports whether every drawable was released exactly once
type LeakCheck struct {
	Quiescent      bool `json:"quiescent"`
	LeakedElements int  `json:"leakedElements"`
	DoubleRemovals int  `json:"doubleRemovals"`
	OK             bool `json:"ok"`
}

// parseClicks parses "x@frame" pairs separated by commas, e.g. "120@0,480@30"
func parseClicks(s string) ([]click, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var clicks []click
	for _, part := range strings.Split(s, ",") {
		xs, fs, ok := strings.Cut(strings.TrimSpace(part), "@")
		if !ok {
			return nil, fmt.Errorf("click %q: expected x@frame", part)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("click %q: %w", part, err)
		}
		frame, err := strconv.Atoi(fs)
		if err != nil {
			return nil, fmt.Errorf("click %q: %w", part, err)
		}
		if frame < 0 {
			return nil, fmt.Errorf("click %q: frame must be >= 0", part)
		}
		clicks = append(clicks, click{Frame: frame, X: x})
	}
	return clicks, nil
}

// runSimulation drives a simulator on a manual clock for opts.Frames frames
func runSimulation(opts options) (*Results, error) {
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("fps must be > 0, got %d", opts.FPS)
	}
	if opts.Frames < 0 {
		return nil, fmt.Errorf("frames must be >= 0, got %d", opts.Frames)
	}

	scene := simulator.NewScene()
	clock := simulator.NewManualClock(time.Unix(0, 0))
	sim, err := simulator.NewSimulator(opts.Config, scene, opts.Viewport,
		simulator.WithClock(clock), simulator.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	sim.LogEvent = opts.LogEvent

	frameInterval := time.Second / time.Duration(opts.FPS)
	launchInterval := opts.Config.LaunchInterval()
	nextLaunch := clock.Now().Add(launchInterval)
	outcomes := make(map[string]int)

	var nextClick time.Time
	if opts.Traffic != nil {
		nextClick = clock.Now().Add(secondsToDuration(opts.Traffic.nextIntervalSeconds()))
	}

	clicksAt := make(map[int][]float64)
	for _, c := range opts.Clicks {
		clicksAt[c.Frame] = append(clicksAt[c.Frame], c.X)
	}

	startTime := time.Now()
	for frame := 0; frame < opts.Frames; frame++ {
		for _, x := range clicksAt[frame] {
			outcomes[sim.RequestLaunch(x).String()]++
		}
		clock.Advance(frameInterval)
		// Auto-launch on virtual time, as the real-time ticker would
		if opts.AutoLaunch {
			for !clock.Now().Before(nextLaunch) {
				outcomes[sim.RequestRandomLaunch().String()]++
				nextLaunch = nextLaunch.Add(launchInterval)
			}
		}
		if opts.Traffic != nil {
			for !clock.Now().Before(nextClick) {
				outcomes[sim.RequestRandomLaunch().String()]++
				nextClick = nextClick.Add(secondsToDuration(opts.Traffic.nextIntervalSeconds()))
			}
		}
		sim.Step()
	}

	if opts.Drain {
		for i := 0; i < opts.MaxDrain && !sim.IsQuiescent(); i++ {
			clock.Advance(frameInterval)
			sim.Step()
		}
	}
	elapsed := time.Since(startTime)

	counters := scene.Counters()
	leak := LeakCheck{
		Quiescent:      sim.IsQuiescent(),
		LeakedElements: counters.Created - counters.Removed,
		DoubleRemovals: counters.DoubleRemovals,
	}
	// Live drawables are only a leak once nothing is alive
	leak.OK = leak.DoubleRemovals == 0 && (!leak.Quiescent || leak.LeakedElements == 0)

	return &Results{
		Config:         sim.Config(),
		Frames:         sim.Frame(),
		VirtualSeconds: float64(sim.Frame()) * frameInterval.Seconds(),
		RealTime:       elapsed.Seconds(),
		Metrics:        sim.Metrics(),
		Stats:          sim.Stats(),
		Scene:          counters,
		Outcomes:       outcomes,
		Leak:           leak,
	}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func run() error {
	// Parse command line flags
	configFile := flag.String("config", "", "Path to JSON, TOML or YAML configuration file (defaults when empty)")
	frames := flag.Int("frames", 3600, "Number of frames to simulate")
	fps := flag.Int("fps", 60, "Frames per virtual second")
	width := flag.Float64("width", 1280, "Viewport width")
	height := flag.Float64("height", 720, "Viewport height")
	clicksFlag := flag.String("clicks", "", "Scripted launches as x@frame pairs, e.g. 120@0,480@30")
	noAuto := flag.Bool("no-auto", false, "Disable the auto-launch timer")
	clickRate := flag.Float64("click-rate", 0, "Simulated clicks per virtual second (0 = none)")
	clickModel := flag.String("click-model", "constant", "Click arrival model: constant or bursty")
	drain := flag.Bool("drain", true, "After the run, keep stepping until nothing is alive")
	maxDrain := flag.Int("max-drain", 100000, "Upper bound on drain frames")
	outputFile := flag.String("output", "", "Path to output JSON file (optional, prints to stdout if not specified)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging from simulator")
	flag.Parse()

	config := simulator.DefaultConfig()
	if *configFile != "" {
		var err error
		config, err = simulator.LoadConfigFile(*configFile)
		if err != nil {
			return err
		}
	}

	clicks, err := parseClicks(*clicksFlag)
	if err != nil {
		return err
	}

	traffic, err := newClickTraffic(*clickModel, *clickRate, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return err
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: "console"})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	opts := options{
		Config:     config,
		Frames:     *frames,
		FPS:        *fps,
		Viewport:   simulator.Viewport{Width: *width, Height: *height},
		Clicks:     clicks,
		Traffic:    traffic,
		Drain:      *drain,
		MaxDrain:   *maxDrain,
		Logger:     logger,
		AutoLaunch: !*noAuto,
	}
	// Set up LogEvent callback to capture simulator logs
	if *verbose {
		opts.LogEvent = func(msg string) {
			fmt.Fprintf(os.Stderr, "[SIM] %s\n", msg)
		}
	}

	fmt.Fprintf(os.Stderr, "Starting simulation for %d frames at %d FPS...\n", *frames, *fps)
	results, err := runSimulation(opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Simulation completed in %.3fs (%d frames, %.1f virtual seconds)\n",
		results.RealTime, results.Frames, results.VirtualSeconds)

	// Output results
	output, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			return fmt.Errorf("write output %s: %w", *outputFile, err)
		}
		fmt.Fprintf(os.Stderr, "Results written to %s\n", *outputFile)
	} else {
		fmt.Println(string(output))
	}

	if !results.Leak.OK {
		return fmt.Errorf("leak check failed: %d leaked, %d double removals",
			results.Leak.LeakedElements, results.Leak.DoubleRemovals)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
