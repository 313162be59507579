package simulator

import (
	"fmt"
	"time"
)

// EventType represents the type of simulation event
type EventType int

const (
	EventLaunch          EventType = iota // A rocket left the ground
	EventQueued                           // A request waits for capacity
	EventDropped                          // A request was discarded because the queue was full
	EventRocketBurst                      // A rocket reached its apex and left the pool
	EventGroupExhausted                   // The last particle of an explosion expired
	EventPromoted                         // A queued request was promoted to a rocket
	EventPruned                           // Stale queue entries were discarded
)

func (et EventType) String() string {
	switch et {
	case EventLaunch:
		return "launch"
	case EventQueued:
		return "queued"
	case EventDropped:
		return "dropped"
	case EventRocketBurst:
		return "rocket_burst"
	case EventGroupExhausted:
		return "group_exhausted"
	case EventPromoted:
		return "promoted"
	case EventPruned:
		return "pruned"
	default:
		return "unknown"
	}
}

// freesCapacity reports whether the event removed something from a pool,
// which is the signal to try draining the wait queue
func (et EventType) freesCapacity() bool {
	return et == EventRocketBurst || et == EventGroupExhausted
}

// Event describes one lifecycle transition
type Event struct {
	Type        EventType `json:"type"`
	Time        time.Time `json:"time"`
	Frame       uint64    `json:"frame"`
	RocketID    EntityID  `json:"rocketId,omitempty"`
	ExplosionID EntityID  `json:"explosionId,omitempty"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Count       int       `json:"count"` // Particles spawned, entries pruned, queue length, ...
}

func (e Event) String() string {
	switch e.Type {
	case EventLaunch, EventPromoted:
		return fmt.Sprintf("%s(frame=%d, rocket=%d, x=%.1f)", e.Type, e.Frame, e.RocketID, e.X)
	case EventQueued, EventDropped:
		return fmt.Sprintf("%s(frame=%d, x=%.1f, queue=%d)", e.Type, e.Frame, e.X, e.Count)
	case EventRocketBurst:
		return fmt.Sprintf("%s(frame=%d, rocket=%d, explosion=%d, particles=%d)", e.Type, e.Frame, e.RocketID, e.ExplosionID, e.Count)
	case EventGroupExhausted:
		return fmt.Sprintf("%s(frame=%d, explosion=%d)", e.Type, e.Frame, e.ExplosionID)
	case EventPruned:
		return fmt.Sprintf("%s(frame=%d, removed=%d)", e.Type, e.Frame, e.Count)
	default:
		return fmt.Sprintf("%s(frame=%d)", e.Type, e.Frame)
	}
}
