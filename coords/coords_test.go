package coords

import (
	"math"
	"testing"
)

func wantPoint(t *testing.T, got, want Point) {
	t.Helper()
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 {
		t.Errorf("point = %+v, want %+v", got, want)
	}
}

func TestRotateThenTranslate(t *testing.T) {
	m := RotateDegrees(90).Multiply(Translate(10, 20))
	wantPoint(t, m.Transform(Point{X: 1, Y: 0}), Point{X: 10, Y: 21})
}

func TestRotateRoundTrip(t *testing.T) {
	fwd := RotateDegrees(37)
	inv := RotateDegrees(-37)
	p := Point{X: 123.4, Y: -56.7}
	wantPoint(t, inv.Transform(fwd.Transform(p)), p)
}

func TestIdentity(t *testing.T) {
	p := Point{X: 3, Y: 4}
	wantPoint(t, Identity().Transform(p), p)
	wantPoint(t, Identity().Multiply(Scale(2, 3)).Transform(p), Point{X: 6, Y: 12})
}
