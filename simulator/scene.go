package simulator

import (
	"sort"
	"sync"
)

// Element is one drawable as seen by a Scene snapshot
type Element struct {
	Handle Handle      `json:"id"`
	Kind   ElementKind `json:"kind"`
	Attributes
}

// SceneCounters tracks drawable bookkeeping for leak detection
type SceneCounters struct {
	Created        int `json:"created"`
	Appended       int `json:"appended"`
	Removed        int `json:"removed"`
	DoubleRemovals int `json:"doubleRemovals"` // Remove called on an unknown or already removed handle
	Live           int `json:"live"`
}

type sceneElement struct {
	kind     ElementKind
	attrs    Attributes
	attached bool
}

// Scene is an in-memory Surface. Hosts snapshot it to render elsewhere
// (a browser over websocket, a terminal); tests use its counters.
// It is safe for concurrent use.
type Scene struct {
	mu       sync.Mutex
	next     Handle
	elements map[Handle]*sceneElement
	counters SceneCounters
}

// NewScene creates an empty scene
func NewScene() *Scene {
	return &Scene{elements: make(map[Handle]*sceneElement)}
}

func (sc *Scene) CreateElement(kind ElementKind) Handle {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.next++
	sc.elements[sc.next] = &sceneElement{kind: kind}
	sc.counters.Created++
	return sc.next
}

func (sc *Scene) Append(h Handle) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if el, ok := sc.elements[h]; ok && !el.attached {
		el.attached = true
		sc.counters.Appended++
	}
}

func (sc *Scene) Remove(h Handle) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, ok := sc.elements[h]; !ok {
		sc.counters.DoubleRemovals++
		return
	}
	delete(sc.elements, h)
	sc.counters.Removed++
}

func (sc *Scene) SetAttributes(h Handle, attrs Attributes) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if el, ok := sc.elements[h]; ok {
		el.attrs = attrs
	}
}

// Snapshot returns the attached elements ordered by handle
func (sc *Scene) Snapshot() []Element {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]Element, 0, len(sc.elements))
	for h, el := range sc.elements {
		if !el.attached {
			continue
		}
		out = append(out, Element{Handle: h, Kind: el.kind, Attributes: el.attrs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Counters returns a copy of the bookkeeping counters
func (sc *Scene) Counters() SceneCounters {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	c := sc.counters
	c.Live = len(sc.elements)
	return c
}
