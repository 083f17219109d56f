package grid

import (
	"fmt"
	"sort"

	"loopscan/domain/core"
	"loopscan/domain/sky"
)

// Grid is the ordered set of scan centers: pixel centers of a coarse
// RING pixelization that fall on valid map pixels, sorted by
// ascending (Theta, Phi).
type Grid struct {
	nside int
	dirs  []sky.Direction
}

// Generate builds the scan grid for m at resolution nside.
func Generate(m *sky.SkyMap, nside int) (*Grid, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !sky.ValidNSide(nside) {
		return nil, core.NewConfigError("grid_nside", fmt.Sprintf("%d outside [1, %d]", nside, sky.MaxNSide))
	}
	npix := sky.NPix(nside)
	dirs := make([]sky.Direction, 0, npix)
	for p := 0; p < npix; p++ {
		theta, phi := sky.Pix2Ang(nside, p)
		d := sky.Direction{Theta: theta, Phi: phi}
		if m.IsValid(d) {
			dirs = append(dirs, d)
		}
	}
	// RING order is already theta-major; the sort pins ties in phi.
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Less(dirs[j]) })
	return &Grid{nside: nside, dirs: dirs}, nil
}

// FromDirections builds a grid over explicit centers.
func FromDirections(dirs []sky.Direction) *Grid {
	sorted := append([]sky.Direction(nil), dirs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return &Grid{dirs: sorted}
}

// NSide returns the grid resolution, or 0 for explicit grids.
func (g *Grid) NSide() int { return g.nside }

// Len returns the number of centers.
func (g *Grid) Len() int { return len(g.dirs) }

// At returns the i-th center.
func (g *Grid) At(i int) sky.Direction { return g.dirs[i] }

// Directions returns a copy of the centers in grid order.
func (g *Grid) Directions() []sky.Direction {
	return append([]sky.Direction(nil), g.dirs...)
}

// ThetaWindow returns the index range [lo, hi) of centers with
// theta in [thetaMin, thetaMax].
func (g *Grid) ThetaWindow(thetaMin, thetaMax float64) (lo, hi int) {
	lo = sort.Search(len(g.dirs), func(i int) bool { return g.dirs[i].Theta >= thetaMin })
	hi = sort.Search(len(g.dirs), func(i int) bool { return g.dirs[i].Theta > thetaMax })
	return lo, hi
}
