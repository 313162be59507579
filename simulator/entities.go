package simulator

import "math"

// EntityID identifies rockets and explosions. IDs are issued by the
// simulator and never reused within its lifetime.
type EntityID uint64

// Rocket is an ascending projectile that bursts once it climbs past TargetY
type Rocket struct {
	ID       EntityID
	X, Y     float64
	VX, VY   float64
	TargetY  float64 // Apex threshold; smaller y is higher on screen
	Exploded bool
	Radius   float64
	Color    string

	handle Handle
}

func (r *Rocket) attributes() Attributes {
	return Attributes{X: r.X, Y: r.Y, Radius: r.Radius, Color: r.Color, Opacity: 1}
}

// Particle is a burst fragment that falls, flickers and fades out
type Particle struct {
	ExplosionID EntityID
	RocketID    EntityID
	X, Y        float64
	VX, VY      float64
	Life        int
	MaxLife     int
	Flicker     float64
	Radius      float64
	Color       string
	Filter      string

	handle Handle
}

// Opacity fades linearly with remaining life, modulated by the flicker phase
func (p *Particle) Opacity() float64 {
	return (float64(p.Life) / float64(p.MaxLife)) * math.Abs(math.Sin(p.Flicker))
}

func (p *Particle) attributes() Attributes {
	return Attributes{X: p.X, Y: p.Y, Radius: p.Radius, Color: p.Color, Opacity: p.Opacity(), Filter: p.Filter}
}
