package sky

// Patch is the ordered sample sequence read at a fixed offset pattern
// around a center. Position i of any two patches built with the same
// radius and resolution refers to the same relative offset.
type Patch struct {
	Center   Direction
	Radius   float64 // radians
	Samples  []float64
	Mask     []bool // per-position validity
	Coverage float64
	Valid    bool
}

// Len returns the number of offset positions.
func (p Patch) Len() int { return len(p.Samples) }

// ValidPositions counts positions that landed on unmasked pixels.
func (p Patch) ValidPositions() int {
	n := 0
	for _, ok := range p.Mask {
		if ok {
			n++
		}
	}
	return n
}
