package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/jetsub/internal/kinematics"
)

// ErrInvalidRadius is returned for a jet radius that is not a positive finite number.
var ErrInvalidRadius = errors.New("jet radius must be positive and finite")

// Metric is the generalized-kt distance measure:
//
//	d(i,j)    = min(kt_i^{2p}, kt_j^{2p}) · ΔR(i,j)² / R²
//	d_beam(i) = kt_i^{2p}
type Metric struct {
	P float64 // momentum exponent
	R float64 // jet radius
}

// NewMetric builds the metric for a known algorithm and radius.
func NewMetric(alg Algorithm, r float64) (Metric, error) {
	if !alg.Valid() {
		return Metric{}, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(alg))
	}
	if !(r > 0) || math.IsInf(r, 0) {
		return Metric{}, fmt.Errorf("%w: %g", ErrInvalidRadius, r)
	}
	return Metric{P: alg.Exponent(), R: r}, nil
}

// WithExponent returns a copy of m with a different momentum exponent.
func (m Metric) WithExponent(p float64) Metric {
	m.P = p
	return m
}

// momentumFactor returns kt^{2p}. kt = 0 with p < 0 is +Inf.
func (m Metric) momentumFactor(v kinematics.FourVector) float64 {
	pt2 := v.Pt2()
	switch {
	case m.P == 0:
		return 1
	case pt2 == 0 && m.P < 0:
		return math.Inf(1)
	case m.P == 1:
		return pt2
	case m.P == -1:
		return 1 / pt2
	}
	return math.Pow(pt2, m.P)
}

// Pair is the distance between two pseudojets.
func (m Metric) Pair(a, b kinematics.FourVector) float64 {
	f := math.Min(m.momentumFactor(a), m.momentumFactor(b))
	if math.IsInf(f, 1) {
		return f
	}
	return f * kinematics.DeltaR2(a, b) / (m.R * m.R)
}

// Beam is the distance between a pseudojet and the beam.
func (m Metric) Beam(a kinematics.FourVector) float64 {
	return m.momentumFactor(a)
}
