package sky

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelRoundTrip(t *testing.T) {
	for _, nside := range []int{1, 2, 3, 4, 8, 16} {
		nside := nside
		t.Run("", func(t *testing.T) {
			for p := 0; p < NPix(nside); p++ {
				theta, phi := Pix2Ang(nside, p)
				if got := Ang2Pix(nside, theta, phi); got != p {
					t.Fatalf("nside %d: pixel %d center maps back to %d", nside, p, got)
				}
			}
		})
	}
}

func TestNSide1Centers(t *testing.T) {
	north := Degrees(math.Acos(2.0 / 3.0))
	want := [][2]float64{
		{north, 45}, {north, 135}, {north, 225}, {north, 315},
		{90, 0}, {90, 90}, {90, 180}, {90, 270},
		{180 - north, 45}, {180 - north, 135}, {180 - north, 225}, {180 - north, 315},
	}
	for p, w := range want {
		theta, phi := Pix2Ang(1, p)
		assert.InDelta(t, w[0], Degrees(theta), 1e-9, "pixel %d theta", p)
		assert.InDelta(t, w[1], Degrees(phi), 1e-9, "pixel %d phi", p)
	}
}

func TestAng2PixCoversSphere(t *testing.T) {
	nside := 4
	counts := make([]int, NPix(nside))
	for i := 0; i < 1000; i++ {
		theta := math.Acos(1 - 2*(float64(i)+0.5)/1000)
		for j := 0; j < 400; j++ {
			phi := twoPi * float64(j) / 400
			p := Ang2Pix(nside, theta, phi)
			require.GreaterOrEqual(t, p, 0)
			require.Less(t, p, NPix(nside))
			counts[p]++
		}
	}
	// equal-area: every pixel receives roughly the same share of a uniform grid
	mean := 1000.0 * 400 / float64(NPix(nside))
	for p, c := range counts {
		assert.InEpsilon(t, mean, float64(c), 0.15, "pixel %d", p)
	}
}

func TestNSideValidation(t *testing.T) {
	assert.True(t, ValidNSide(1))
	assert.True(t, ValidNSide(3))
	assert.True(t, ValidNSide(64))
	assert.False(t, ValidNSide(0))
	assert.False(t, ValidNSide(MaxNSide+1))

	n, err := NSideForPixels(768)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	_, err = NSideForPixels(100)
	assert.Error(t, err)
}
