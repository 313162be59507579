package simulator

// ElementKind names the shape a drawable is created as
type ElementKind string

const (
	ElementCircle ElementKind = "circle"
)

// Handle identifies a drawable element owned by exactly one entity
type Handle uint64

// Attributes is the full visual state pushed to a drawable
type Attributes struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Radius  float64 `json:"r"`
	Color   string  `json:"fill"`
	Opacity float64 `json:"opacity"`
	Filter  string  `json:"filter,omitempty"`
}

// Surface is the rendering container the simulator draws into.
// Every handle returned by CreateElement is appended once and removed once.
type Surface interface {
	CreateElement(kind ElementKind) Handle
	Append(h Handle)
	Remove(h Handle)
	SetAttributes(h Handle, attrs Attributes)
}

// Viewport is the size of the drawing area in surface units
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
