package world

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDistance(t *testing.T) {
	if d := Distance(HexCoord{0, 0}, HexCoord{2, -1}); d != 2 {
		t.Fatalf("expected distance 2, got %d", d)
	}
	if d := Distance(HexCoord{3, -3}, HexCoord{3, -3}); d != 0 {
		t.Fatalf("expected distance 0, got %d", d)
	}
	if d := Distance(HexCoord{-2, 0}, HexCoord{2, 0}); d != 4 {
		t.Fatalf("expected distance 4, got %d", d)
	}
	for _, n := range (HexCoord{5, -2}).Neighbors() {
		if d := Distance(HexCoord{5, -2}, n); d != 1 {
			t.Fatalf("expected neighbor %v at distance 1, got %d", n, d)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, rho := range []float64{0.5, 1, 3.7, 10} {
		for q := -12; q <= 12; q++ {
			for r := -12; r <= 12; r++ {
				c := HexCoord{Q: q, R: r}
				got := AxialRound(PlaneToAxialRaw(AxialToPlane(c, rho), rho))
				if got != c {
					t.Fatalf("radius %.2f: expected %v, got %v", rho, c, got)
				}
			}
		}
	}
}

func TestAxialToPlane(t *testing.T) {
	p := AxialToPlane(HexCoord{1, 2}, 0.5)
	wantX := 0.5 * math.Sqrt(3) * 2
	if math.Abs(p.X-wantX) > 1e-9 || math.Abs(p.Z-1.5) > 1e-9 {
		t.Fatalf("expected (%.4f, 1.5), got (%.4f, %.4f)", wantX, p.X, p.Z)
	}
}

func TestAxialRoundNearCorner(t *testing.T) {
	// Points nudged off a center must still land in that hex.
	c := HexCoord{Q: 2, R: -1}
	center := AxialToPlane(c, 1)
	for _, off := range []Point{{0.3, 0}, {-0.3, 0.2}, {0.1, -0.45}} {
		p := Point{X: center.X + off.X, Z: center.Z + off.Z}
		if got := PlaneToAxial(p, 1); got != c {
			t.Fatalf("offset %v: expected %v, got %v", off, c, got)
		}
	}
	got := AxialRound(0.4, 0.4)
	if got.Q+got.R+got.S() != 0 {
		t.Fatalf("expected cube constraint to hold, got %v", got)
	}
}

func TestRange(t *testing.T) {
	for R := 0; R <= 4; R++ {
		got := Range(HexCoord{1, -1}, R)
		want := 3*R*(R+1) + 1
		if len(got) != want {
			t.Fatalf("radius %d: expected %d coords, got %d", R, want, len(got))
		}
		seen := make(map[HexCoord]bool)
		for _, c := range got {
			if Distance(c, HexCoord{1, -1}) > R {
				t.Fatalf("radius %d: %v is out of range", R, c)
			}
			if seen[c] {
				t.Fatalf("radius %d: %v enumerated twice", R, c)
			}
			seen[c] = true
		}
	}

	want := []HexCoord{{-1, 0}, {-1, 1}, {0, -1}, {0, 0}, {0, 1}, {1, -1}, {1, 0}}
	if diff := cmp.Diff(want, Range(HexCoord{}, 1)); diff != "" {
		t.Fatalf("unexpected range order (-want +got):\n%s", diff)
	}
	if Range(HexCoord{}, -1) != nil {
		t.Fatalf("expected nil for negative radius")
	}
}

func TestPickRay(t *testing.T) {
	target := AxialToPlane(HexCoord{Q: -2, R: 3}, 0.5)
	ray := Ray{
		Origin:    Vec3{X: target.X, Y: 10, Z: target.Z - 5},
		Direction: Vec3{X: 0, Y: -2, Z: 1},
	}
	c, hit, ok := PickRay(ray, 0, 0.5)
	if !ok {
		t.Fatalf("expected a hit")
	}
	if c != (HexCoord{Q: -2, R: 3}) {
		t.Fatalf("expected (-2,3), got %v (hit %v)", c, hit)
	}

	if _, _, ok := PickRay(Ray{Origin: Vec3{Y: 1}, Direction: Vec3{X: 1}}, 0, 0.5); ok {
		t.Fatalf("expected parallel ray to miss")
	}
	if _, _, ok := PickRay(Ray{Origin: Vec3{Y: 1}, Direction: Vec3{Y: 1}}, 0, 0.5); ok {
		t.Fatalf("expected ray pointing away to miss")
	}
}
