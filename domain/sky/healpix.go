package sky

import (
	"fmt"
	"math"
)

const twoPi = 2 * math.Pi

// MaxNSide bounds the resolutions the engine accepts.
const MaxNSide = 1 << 13

// NPix returns the number of pixels at resolution nside (12·nside²).
func NPix(nside int) int {
	return 12 * nside * nside
}

// ValidNSide reports whether nside is in [1, MaxNSide]. RING ordering
// does not require a power of two.
func ValidNSide(nside int) bool {
	return nside >= 1 && nside <= MaxNSide
}

// NSideForPixels returns the resolution whose pixel count is npix.
func NSideForPixels(npix int) (int, error) {
	if npix <= 0 || npix%12 != 0 {
		return 0, fmt.Errorf("pixel count %d is not 12·nside²", npix)
	}
	n := int(math.Round(math.Sqrt(float64(npix / 12))))
	if NPix(n) != npix || !ValidNSide(n) {
		return 0, fmt.Errorf("pixel count %d is not 12·nside² for a supported nside", npix)
	}
	return n, nil
}

// PixelResolution returns the mean angular pixel size in radians.
func PixelResolution(nside int) float64 {
	return math.Sqrt(4 * math.Pi / float64(NPix(nside)))
}

// Ang2Pix returns the RING-ordered pixel containing (theta, phi).
func Ang2Pix(nside int, theta, phi float64) int {
	z := math.Cos(theta)
	za := math.Abs(z)

	tt := math.Mod(phi, twoPi)
	if tt < 0 {
		tt += twoPi
	}
	tt *= 2 / math.Pi // in [0, 4)

	if za <= 2.0/3.0 {
		// equatorial belt
		t1 := float64(nside) * (0.5 + tt)
		t2 := float64(nside) * z * 0.75
		jp := int(t1 - t2)
		jm := int(t1 + t2)

		ir := nside + 1 + jp - jm
		kshift := 1 - (ir & 1)
		ip := (jp + jm - nside + kshift + 1) / 2
		ip %= 4 * nside
		return 2*nside*(nside-1) + (ir-1)*4*nside + ip
	}

	// polar caps
	tp := tt - float64(int(tt))
	tmp := float64(nside) * math.Sqrt(3*(1-za))
	jp := int(tp * tmp)
	jm := int((1 - tp) * tmp)

	ir := jp + jm + 1
	ip := int(tt*float64(ir)) % (4 * ir)
	if z > 0 {
		return 2*ir*(ir-1) + ip
	}
	return NPix(nside) - 2*ir*(ir+1) + ip
}

// Pix2Ang returns the center (theta, phi) of a RING-ordered pixel.
func Pix2Ang(nside, pix int) (theta, phi float64) {
	npix := NPix(nside)
	ncap := 2 * nside * (nside - 1)
	fact2 := 4.0 / float64(npix)

	var z float64
	switch {
	case pix < ncap:
		ir := (1 + isqrt(1+2*pix)) >> 1
		iphi := pix + 1 - 2*ir*(ir-1)
		z = 1 - float64(ir*ir)*fact2
		phi = (float64(iphi) - 0.5) * math.Pi / float64(2*ir)
	case pix < npix-ncap:
		ip := pix - ncap
		ir := ip/(4*nside) + nside
		iphi := ip%(4*nside) + 1
		fodd := 0.5
		if (ir+nside)&1 == 1 {
			fodd = 1.0
		}
		z = float64((2*nside-ir)*2*nside) * fact2
		phi = (float64(iphi) - fodd) * math.Pi / float64(2*nside)
	default:
		ip := npix - pix
		ir := (1 + isqrt(2*ip-1)) >> 1
		iphi := 4*ir + 1 - (ip - 2*ir*(ir-1))
		z = -1 + float64(ir*ir)*fact2
		phi = (float64(iphi) - 0.5) * math.Pi / float64(2*ir)
	}
	return math.Acos(math.Max(-1, math.Min(1, z))), phi
}

// isqrt is the exact integer square root.
func isqrt(v int) int {
	r := int(math.Sqrt(float64(v)))
	for r*r > v {
		r--
	}
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}
