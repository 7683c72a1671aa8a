package volatility

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/jetsub/internal/cluster"
)

// RandomSelector is a cluster.Selector that samples near-minimal candidates.
//
// Before each step the momentum exponent is drawn uniformly from
// [ExpMin, ExpMax] (no draw when they are equal). Each candidate gets weight
// exp(−Rigidity·(d − d_min)/d_min); the minimum always has weight 1, so an
// infinite Rigidity reduces to the deterministic choice. When d_min is 0
// only zero-distance candidates can be picked. Beam candidates take part
// like pairs.
type RandomSelector struct {
	Rand           *rand.Rand
	ExpMin, ExpMax float64
	Rigidity       float64

	weights []float64
}

// NewRandomSelector returns a selector drawing from r.
func NewRandomSelector(r *rand.Rand, expMin, expMax, rigidity float64) *RandomSelector {
	return &RandomSelector{Rand: r, ExpMin: expMin, ExpMax: expMax, Rigidity: rigidity}
}

// Metric returns base with this step's exponent.
func (s *RandomSelector) Metric(base cluster.Metric) cluster.Metric {
	if s.ExpMax <= s.ExpMin {
		return base.WithExponent(s.ExpMin)
	}
	return base.WithExponent(s.ExpMin + s.Rand.Float64()*(s.ExpMax-s.ExpMin))
}

// Select samples one candidate index.
func (s *RandomSelector) Select(cands []cluster.Candidate) int {
	dmin := math.Inf(1)
	first := 0
	for i, c := range cands {
		if c.Distance < dmin {
			dmin, first = c.Distance, i
		}
	}
	if math.IsInf(dmin, 1) {
		return 0
	}

	s.weights = s.weights[:0]
	var total float64
	for _, c := range cands {
		w := s.weight(c.Distance, dmin)
		s.weights = append(s.weights, w)
		total += w
	}

	r := s.Rand.Float64() * total
	var cum float64
	for i, w := range s.weights {
		cum += w
		if w > 0 && r < cum {
			return i
		}
	}
	return first
}

func (s *RandomSelector) weight(d, dmin float64) float64 {
	switch {
	case d == dmin:
		return 1
	case math.IsInf(d, 1), dmin == 0:
		return 0
	}
	return math.Exp(-s.Rigidity * (d - dmin) / dmin)
}

var _ cluster.Selector = (*RandomSelector)(nil)
