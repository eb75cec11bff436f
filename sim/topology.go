package sim

import "math"

// Well-known room names. The topology is open — collaborators may register
// arbitrary rooms at runtime — but pathways and the compiler's hand-off rule
// reference these fixed names.
const (
	RoomEntrance     = "ENT"
	RoomTriage       = "TRIAGE"
	RoomTreatmentBay = "TB"
	RoomLab          = "LAB"
	RoomICU          = "ICU"
)

// Point is a 2D room coordinate (the game world's x/z plane).
type Point struct {
	X float64
	Y float64
}

// Topology holds the physical room model: coordinates, healing
// effectiveness and nominal treatment durations. Rooms never seen before
// fall back to default constants instead of failing — an unknown location
// degrades the physics, it never aborts a simulation.
type Topology struct {
	Positions     map[string]Point
	Effectiveness map[string]float64
	TreatmentTime map[string]float64

	DefaultEffectiveness float64
	DefaultTreatmentTime float64
}

// NewTopology builds a Topology from a Config's room table.
func NewTopology(cfg *Config) *Topology {
	t := &Topology{
		Positions:            make(map[string]Point, len(cfg.Rooms)),
		Effectiveness:        make(map[string]float64, len(cfg.Rooms)),
		TreatmentTime:        make(map[string]float64, len(cfg.Rooms)),
		DefaultEffectiveness: cfg.Physics.DefaultEffectiveness,
		DefaultTreatmentTime: cfg.Physics.DefaultTreatmentTime,
	}
	for _, r := range cfg.Rooms {
		t.Positions[r.Name] = Point{X: r.X, Y: r.Y}
		// Partial room entries normalize to the defaults. A zero nominal
		// duration would divide out to NaN in the healing math.
		eff := r.Effectiveness
		if eff <= 0 {
			eff = t.DefaultEffectiveness
		}
		dur := r.TreatmentTime
		if dur <= 0 {
			dur = t.DefaultTreatmentTime
		}
		t.Effectiveness[r.Name] = eff
		t.TreatmentTime[r.Name] = dur
	}
	return t
}

// Distance returns the Euclidean distance between two rooms. Unknown rooms
// resolve to the origin.
func (t *Topology) Distance(a, b string) float64 {
	pa := t.Positions[a]
	pb := t.Positions[b]
	return math.Hypot(pa.X-pb.X, pa.Y-pb.Y)
}

// EffectivenessOf returns the healing multiplier for a room.
func (t *Topology) EffectivenessOf(room string) float64 {
	if e, ok := t.Effectiveness[room]; ok {
		return e
	}
	return t.DefaultEffectiveness
}

// TreatmentTimeOf returns the nominal treatment duration for a room.
func (t *Topology) TreatmentTimeOf(room string) float64 {
	if d, ok := t.TreatmentTime[room]; ok {
		return d
	}
	return t.DefaultTreatmentTime
}

// SetRooms merges coordinate updates from the game client. Only positions
// change; effectiveness and durations keep their configured or default
// values for rooms the config never named.
func (t *Topology) SetRooms(coords map[string]Point) {
	for name, p := range coords {
		t.Positions[name] = p
	}
}
