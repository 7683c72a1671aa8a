package kinematics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxEta is the pseudorapidity reported for vectors with zero transverse
// momentum. It keeps ΔR finite for purely longitudinal inputs.
const MaxEta = 1e5

var (
	// ErrNonFinite is returned when a component is NaN or ±Inf.
	ErrNonFinite = errors.New("non-finite momentum component")
	// ErrNegativeEnergy is returned when E < 0.
	ErrNegativeEnergy = errors.New("negative energy")
)

// FourVector is an immutable (px, py, pz, E) momentum.
type FourVector struct {
	Px, Py, Pz, E float64
}

// New returns the four-vector with the given Cartesian components.
func New(px, py, pz, e float64) FourVector {
	return FourVector{Px: px, Py: py, Pz: pz, E: e}
}

// FromPtEtaPhiM builds a four-vector from collider coordinates.
// Massless inputs get E = |p| exactly, so their M() is exactly 0.
func FromPtEtaPhiM(pt, eta, phi, m float64) FourVector {
	v := FourVector{Px: pt * math.Cos(phi), Py: pt * math.Sin(phi), Pz: pt * math.Sinh(eta)}
	p := v.P()
	if m == 0 {
		v.E = p
	} else {
		v.E = math.Sqrt(p*p + m*m)
	}
	return v
}

// Validate reports whether the vector is usable as clustering input.
func (v FourVector) Validate() error {
	for _, c := range [4]float64{v.Px, v.Py, v.Pz, v.E} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: (%g, %g, %g, %g)", ErrNonFinite, v.Px, v.Py, v.Pz, v.E)
		}
	}
	if v.E < 0 {
		return fmt.Errorf("%w: E=%g", ErrNegativeEnergy, v.E)
	}
	return nil
}

// P3 returns the three-momentum.
func (v FourVector) P3() r3.Vec {
	return r3.Vec{X: v.Px, Y: v.Py, Z: v.Pz}
}

// Add returns the E-scheme sum of v and w.
func (v FourVector) Add(w FourVector) FourVector {
	p := r3.Add(v.P3(), w.P3())
	return FourVector{Px: p.X, Py: p.Y, Pz: p.Z, E: v.E + w.E}
}

// Pt2 is the squared transverse momentum.
func (v FourVector) Pt2() float64 { return v.Px*v.Px + v.Py*v.Py }

// Pt is the transverse momentum.
func (v FourVector) Pt() float64 { return math.Hypot(v.Px, v.Py) }

// P is the magnitude of the three-momentum.
func (v FourVector) P() float64 {
	p := v.P3()
	return math.Sqrt(r3.Dot(p, p))
}

// Phi is the azimuth in (−π, π].
func (v FourVector) Phi() float64 {
	if v.Px == 0 && v.Py == 0 {
		return 0
	}
	return WrapPhi(math.Atan2(v.Py, v.Px))
}

// Eta is the pseudorapidity. Vectors along the beam axis get ±MaxEta.
func (v FourVector) Eta() float64 {
	pt := v.Pt()
	if pt == 0 {
		switch {
		case v.Pz > 0:
			return MaxEta
		case v.Pz < 0:
			return -MaxEta
		default:
			return 0
		}
	}
	return math.Asinh(v.Pz / pt)
}

// Rapidity is y = ½ ln((E+pz)/(E−pz)), clamped to ±MaxEta. The zero vector
// has rapidity 0.
func (v FourVector) Rapidity() float64 {
	num := v.E + v.Pz
	den := v.E - v.Pz
	if num <= 0 && den <= 0 {
		return 0
	}
	if den <= 0 {
		return MaxEta
	}
	if num <= 0 {
		return -MaxEta
	}
	y := 0.5 * math.Log(num/den)
	return math.Max(-MaxEta, math.Min(MaxEta, y))
}

// M2 is the squared invariant mass. It may be slightly negative from rounding.
func (v FourVector) M2() float64 {
	p := v.P()
	return (v.E - p) * (v.E + p)
}

// M is the invariant mass, floored at 0.
func (v FourVector) M() float64 {
	m2 := v.M2()
	if m2 <= 0 {
		return 0
	}
	return math.Sqrt(m2)
}

// WrapPhi maps an angle onto (−π, π].
func WrapPhi(phi float64) float64 {
	phi = math.Mod(phi, 2*math.Pi)
	if phi > math.Pi {
		phi -= 2 * math.Pi
	} else if phi <= -math.Pi {
		phi += 2 * math.Pi
	}
	return phi
}

// DeltaPhi is the azimuthal separation of a and b in (−π, π].
func DeltaPhi(a, b FourVector) float64 {
	return WrapPhi(a.Phi() - b.Phi())
}

// DeltaR2 is Δη² + Δφ².
func DeltaR2(a, b FourVector) float64 {
	deta := a.Eta() - b.Eta()
	dphi := DeltaPhi(a, b)
	return deta*deta + dphi*dphi
}

// DeltaR is the angular separation √(Δη² + Δφ²).
func DeltaR(a, b FourVector) float64 {
	return math.Sqrt(DeltaR2(a, b))
}

// Sum adds a list of four-vectors.
func Sum(vs []FourVector) FourVector {
	var total FourVector
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}
