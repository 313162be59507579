package simulator

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameInterval paces the frame loop at roughly 60 FPS
const DefaultFrameInterval = time.Second / 60

// Runner drives a Simulator in real time. One goroutine owns the frame and
// auto-launch tickers; requests from other goroutines are serialised with the
// same mutex, so the simulator only ever sees one caller at a time.
type Runner struct {
	sim           *Simulator
	frameInterval time.Duration

	mu      sync.Mutex
	started bool
	stopped bool

	intervalCh chan time.Duration
	stopCh     chan struct{}
	done       chan struct{}
	stopOnce   sync.Once

	// OnFrame is called after each frame, outside the lock (optional).
	// It must not call Stop.
	OnFrame func(stats Stats)
}

// NewRunner wraps sim. frameInterval <= 0 selects DefaultFrameInterval.
func NewRunner(sim *Simulator, frameInterval time.Duration) *Runner {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Runner{
		sim:           sim,
		frameInterval: frameInterval,
		intervalCh:    make(chan time.Duration, 1),
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the frame loop and the auto-launch timer. It is a no-op if
// the runner was already started or stopped.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.started = true
	launchInterval := r.sim.Config().LaunchInterval()
	r.mu.Unlock()

	go r.loop(ctx, launchInterval)
}

func (r *Runner) loop(ctx context.Context, launchInterval time.Duration) {
	defer close(r.done)

	frameTicker := time.NewTicker(r.frameInterval)
	defer frameTicker.Stop()
	launchTicker := time.NewTicker(launchInterval)
	defer launchTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-r.stopCh:
			return

		case d := <-r.intervalCh:
			launchTicker.Reset(d)

		case <-frameTicker.C:
			r.mu.Lock()
			r.sim.Step()
			stats := r.sim.Stats()
			hook := r.OnFrame
			r.mu.Unlock()
			if hook != nil {
				hook(stats)
			}

		case <-launchTicker.C:
			r.mu.Lock()
			r.sim.RequestRandomLaunch()
			r.mu.Unlock()
		}
	}
}

// Stop cancels the frame loop and the auto-launch timer and waits for the
// loop to exit. Safe to call more than once and before Start. Live drawables
// are left as they are.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		started := r.started
		r.mu.Unlock()

		close(r.stopCh)
		if started {
			<-r.done
		} else {
			close(r.done)
		}
	})
}

// Done is closed when the loop has exited, or by Stop if it never started
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// RequestFirework submits a launch request at x (e.g. a click)
func (r *Runner) RequestFirework(x float64) LaunchOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.RequestLaunch(x)
}

// UpdateConfig applies a partial configuration update. A new launch interval
// takes effect on the running timer.
func (r *Runner) UpdateConfig(patch ConfigPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.sim.Config().LaunchIntervalMs
	if err := r.sim.UpdateConfig(patch); err != nil {
		return err
	}
	if after := r.sim.Config().LaunchIntervalMs; after != before {
		// Replace any interval the loop has not picked up yet
		select {
		case <-r.intervalCh:
		default:
		}
		r.intervalCh <- r.sim.Config().LaunchInterval()
	}
	return nil
}

// Resize changes the simulator viewport
func (r *Runner) Resize(v Viewport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Resize(v)
}

// Reset clears all entities and the queue
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sim.Reset()
}

// Stats returns current occupancy
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Stats()
}

// Metrics returns a copy of the cumulative counters
func (r *Runner) Metrics() *Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Metrics()
}

// Config returns the current configuration
func (r *Runner) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Config()
}

// IsRunning returns true while the loop is active
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}
