package sky

import (
	"fmt"
	"math"
)

// Direction is a point on the unit sphere: colatitude Theta in [0, π]
// and longitude Phi in [0, 2π), both in radians.
type Direction struct {
	Theta float64 `json:"theta"`
	Phi   float64 `json:"phi"`
}

// NewDirection validates theta and wraps phi into [0, 2π).
func NewDirection(theta, phi float64) (Direction, error) {
	if math.IsNaN(theta) || math.IsNaN(phi) || math.IsInf(theta, 0) || math.IsInf(phi, 0) {
		return Direction{}, fmt.Errorf("direction (%v, %v) is not finite", theta, phi)
	}
	if theta < 0 || theta > math.Pi {
		return Direction{}, fmt.Errorf("colatitude %v outside [0, π]", theta)
	}
	return Direction{Theta: theta, Phi: wrapPhi(phi)}, nil
}

// DirectionFromDegrees builds a direction from colatitude and longitude in degrees.
func DirectionFromDegrees(thetaDeg, phiDeg float64) (Direction, error) {
	return NewDirection(Radians(thetaDeg), Radians(phiDeg))
}

// DirectionFromVec converts a (not necessarily unit) cartesian vector.
func DirectionFromVec(v [3]float64) Direction {
	theta := math.Atan2(math.Hypot(v[0], v[1]), v[2])
	return Direction{Theta: theta, Phi: wrapPhi(math.Atan2(v[1], v[0]))}
}

func wrapPhi(phi float64) float64 {
	phi = math.Mod(phi, twoPi)
	if phi < 0 {
		phi += twoPi
	}
	if phi >= twoPi {
		phi -= twoPi
	}
	return phi
}

// Vec returns the unit cartesian vector.
func (d Direction) Vec() [3]float64 {
	st, ct := math.Sincos(d.Theta)
	sp, cp := math.Sincos(d.Phi)
	return [3]float64{st * cp, st * sp, ct}
}

// Less orders directions by (Theta, Phi).
func (d Direction) Less(o Direction) bool {
	if d.Theta != o.Theta {
		return d.Theta < o.Theta
	}
	return d.Phi < o.Phi
}

// Offset returns the direction reached by moving rho radians from d along
// position angle alpha, measured from local north toward east.
func (d Direction) Offset(rho, alpha float64) Direction {
	st, ct := math.Sincos(d.Theta)
	sp, cp := math.Sincos(d.Phi)
	sr, cr := math.Sincos(rho)
	sa, ca := math.Sincos(alpha)

	center := [3]float64{st * cp, st * sp, ct}
	north := [3]float64{-ct * cp, -ct * sp, st}
	east := [3]float64{-sp, cp, 0}

	var v [3]float64
	for i := range v {
		v[i] = cr*center[i] + sr*(ca*north[i]+sa*east[i])
	}
	return DirectionFromVec(v)
}

func (d Direction) String() string {
	return fmt.Sprintf("(%.4f°, %.4f°)", Degrees(d.Theta), Degrees(d.Phi))
}

// AngularDistance returns the great-circle distance in radians, in [0, π].
func AngularDistance(a, b Direction) float64 {
	va, vb := a.Vec(), b.Vec()
	c := cross(va, vb)
	return math.Atan2(math.Sqrt(dot(c, c)), dot(va, vb))
}

// Canonical orders a pair so that lo precedes hi under Less.
func Canonical(a, b Direction) (lo, hi Direction) {
	if b.Less(a) {
		return b, a
	}
	return a, b
}

// windingEps is the z-component of lo x hi below which a pair counts
// as lying on one meridian plane.
const windingEps = 1e-12

// DirectedSeparation returns the separation of a pair in degrees on
// [0, 360). The great-circle distance d is reported as d when the
// canonical pair winds counter-clockwise about the +z axis and as 360-d
// otherwise, so 90° and 270° are distinct while the value is the same
// whichever member of the pair is supplied first. Pairs whose winding
// is within windingEps of zero, such as two points on one meridian,
// count as counter-clockwise and report d.
func DirectedSeparation(a, b Direction) float64 {
	lo, hi := Canonical(a, b)
	vl, vh := lo.Vec(), hi.Vec()
	c := cross(vl, vh)
	d := Degrees(math.Atan2(math.Sqrt(dot(c, c)), dot(vl, vh)))
	if c[2] > -windingEps {
		return d
	}
	s := 360 - d
	if s >= 360 {
		s = 0
	}
	return s
}

func Radians(deg float64) float64 { return deg * math.Pi / 180 }
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
