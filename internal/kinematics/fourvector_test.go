package kinematics

import (
	"errors"
	"math"
	"testing"
)

const tol = 1e-9

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestFromPtEtaPhiM(t *testing.T) {
	testCases := []struct {
		name          string
		pt, eta, phi  float64
		m             float64
		wantPx, wantE float64
	}{
		{"central_massless", 100, 0, 0, 0, 100, 100},
		{"central_massive", 30, 0, 0, 40, 30, 50},
		{"forward", 10, 1, math.Pi / 2, 0, 0, 10 * math.Cosh(1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := FromPtEtaPhiM(tc.pt, tc.eta, tc.phi, tc.m)
			if !approxEqual(v.Px, tc.wantPx, tol) {
				t.Errorf("Px = %f, want %f", v.Px, tc.wantPx)
			}
			if !approxEqual(v.E, tc.wantE, tol) {
				t.Errorf("E = %f, want %f", v.E, tc.wantE)
			}
			if !approxEqual(v.Pt(), tc.pt, tol) {
				t.Errorf("Pt() = %f, want %f", v.Pt(), tc.pt)
			}
			if !approxEqual(v.Eta(), tc.eta, 1e-7) {
				t.Errorf("Eta() = %f, want %f", v.Eta(), tc.eta)
			}
			if !approxEqual(v.M(), tc.m, 1e-6) {
				t.Errorf("M() = %f, want %f", v.M(), tc.m)
			}
		})
	}
}

func TestWrapPhi(t *testing.T) {
	testCases := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{5 * math.Pi, math.Pi},
	}
	for _, tc := range testCases {
		if got := WrapPhi(tc.in); !approxEqual(got, tc.want, tol) {
			t.Errorf("WrapPhi(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestDeltaRWrapsAzimuth(t *testing.T) {
	a := FromPtEtaPhiM(50, 0, math.Pi-0.1, 0)
	b := FromPtEtaPhiM(50, 0, -math.Pi+0.1, 0)
	if got := DeltaR(a, b); !approxEqual(got, 0.2, 1e-9) {
		t.Errorf("DeltaR across ±π = %f, want 0.2", got)
	}

	c := FromPtEtaPhiM(50, 0.3, 0, 0)
	d := FromPtEtaPhiM(50, -0.1, 0.3, 0)
	if got := DeltaR(c, d); !approxEqual(got, 0.5, 1e-9) {
		t.Errorf("DeltaR = %f, want 0.5", got)
	}
}

func TestTwoParticleMass(t *testing.T) {
	p1 := FromPtEtaPhiM(100, 0, 0, 0)
	p2 := FromPtEtaPhiM(100, 0, 0.4, 0)
	want := 2 * 100 * math.Sin(0.2)
	if got := p1.Add(p2).M(); !approxEqual(got, want, 1e-9) {
		t.Errorf("M(p1+p2) = %f, want %f", got, want)
	}
}

func TestMassFloor(t *testing.T) {
	// Slightly spacelike from rounding.
	v := New(3, 4, 0, 5-1e-12)
	if v.M() != 0 {
		t.Errorf("M() = %g, want 0 for spacelike vector", v.M())
	}
}

func TestEtaAlongBeam(t *testing.T) {
	if got := New(0, 0, 10, 10).Eta(); got != MaxEta {
		t.Errorf("Eta() = %f, want %f", got, MaxEta)
	}
	if got := New(0, 0, -10, 10).Eta(); got != -MaxEta {
		t.Errorf("Eta() = %f, want %f", got, -MaxEta)
	}
	if got := New(0, 0, 0, 1).Eta(); got != 0 {
		t.Errorf("Eta() = %f, want 0 at rest", got)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		v       FourVector
		wantErr error
	}{
		{"ok", New(1, 2, 3, 10), nil},
		{"nan", New(math.NaN(), 0, 0, 1), ErrNonFinite},
		{"inf_energy", New(0, 0, 0, math.Inf(1)), ErrNonFinite},
		{"negative_energy", New(0, 0, 0, -1), ErrNegativeEnergy},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.v.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSum(t *testing.T) {
	vs := []FourVector{New(1, 0, 0, 2), New(0, 1, 0, 2), New(0, 0, 1, 2)}
	got := Sum(vs)
	want := New(1, 1, 1, 6)
	if got != want {
		t.Errorf("Sum() = %+v, want %+v", got, want)
	}
	if (Sum(nil) != FourVector{}) {
		t.Error("Sum(nil) should be the zero vector")
	}
}

func TestRapidity(t *testing.T) {
	massless := FromPtEtaPhiM(40, 1.3, 0.2, 0)
	if got := massless.Rapidity(); !approxEqual(got, 1.3, tol) {
		t.Errorf("massless Rapidity() = %f, want eta 1.3", got)
	}

	massive := FromPtEtaPhiM(50, 1.2, -0.7, 30)
	want := math.Atanh(massive.Pz / massive.E)
	if got := massive.Rapidity(); !approxEqual(got, want, tol) {
		t.Errorf("Rapidity() = %f, want %f", got, want)
	}
	if massive.Rapidity() >= massive.Eta() {
		t.Errorf("massive rapidity %f should be below eta %f", massive.Rapidity(), massive.Eta())
	}

	testCases := []struct {
		name string
		v    FourVector
		want float64
	}{
		{"zero vector", FourVector{}, 0},
		{"along +z", New(0, 0, 5, 5), MaxEta},
		{"along -z", New(0, 0, -5, 5), -MaxEta},
		{"at rest", New(0, 0, 0, 3), 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.Rapidity(); got != tc.want {
				t.Errorf("Rapidity() = %f, want %f", got, tc.want)
			}
		})
	}
}
