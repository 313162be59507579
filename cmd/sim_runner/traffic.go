package main

import (
	"fmt"
	"math"
	"math/rand"
)

// clickTraffic generates the arrival times of simulated user clicks
type clickTraffic interface {
	// nextIntervalSeconds returns the virtual time until the next click
	nextIntervalSeconds() float64
}

// constantClicks arrive at a fixed rate
type constantClicks struct {
	ratePerSec float64
}

func (c *constantClicks) nextIntervalSeconds() float64 {
	return 1 / c.ratePerSec
}

// burstyClicks is an ON/OFF model: Poisson arrivals at the base rate while
// OFF and at base*multiplier while ON, with exponentially distributed
// regime durations
type burstyClicks struct {
	baseRatePerSec  float64
	burstMultiplier float64
	onMeanSeconds   float64
	offMeanSeconds  float64

	isON      bool
	stateLeft float64 // Remaining time in the current regime
	rng       *rand.Rand
}

func newBurstyClicks(baseRate, multiplier, onMean, offMean float64, rng *rand.Rand) *burstyClicks {
	return &burstyClicks{
		baseRatePerSec:  baseRate,
		burstMultiplier: multiplier,
		onMeanSeconds:   onMean,
		offMeanSeconds:  offMean,
		stateLeft:       exponentialSample(rng, offMean), // Start in OFF state
		rng:             rng,
	}
}

func (b *burstyClicks) nextIntervalSeconds() float64 {
	elapsed := 0.0
	for {
		rate := b.baseRatePerSec
		if b.isON {
			rate *= b.burstMultiplier
		}
		// Arrivals are memoryless, so a gap that crosses a regime boundary
		// is redrawn at the new rate from the boundary
		gap := exponentialSample(b.rng, 1/rate)
		if gap <= b.stateLeft {
			b.stateLeft -= gap
			return elapsed + gap
		}
		elapsed += b.stateLeft
		b.isON = !b.isON
		if b.isON {
			b.stateLeft = exponentialSample(b.rng, b.onMeanSeconds)
		} else {
			b.stateLeft = exponentialSample(b.rng, b.offMeanSeconds)
		}
	}
}

// exponentialSample returns a sample with the given mean
func exponentialSample(rng *rand.Rand, mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	return -mean * math.Log(1-rng.Float64())
}

// newClickTraffic builds the traffic model named by model. rate <= 0 means
// no simulated clicks.
func newClickTraffic(model string, rate float64, rng *rand.Rand) (clickTraffic, error) {
	if rate <= 0 {
		return nil, nil
	}
	switch model {
	case "constant":
		return &constantClicks{ratePerSec: rate}, nil
	case "bursty":
		return newBurstyClicks(rate, 10, 2, 8, rng), nil
	default:
		return nil, fmt.Errorf("invalid click model: %s (must be 'constant' or 'bursty')", model)
	}
}
