package pruning

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/jetsub/internal/cluster"
)

// ErrInvalidParams is returned when pruning parameters are out of range.
var ErrInvalidParams = errors.New("invalid pruning parameters")

// Default pruning parameters, matching the usual CA R=0.8 reclustering with
// zcut 0.1 and Rcut factor 0.5.
const (
	DefaultJetSize    = 0.8
	DefaultZCut       = 0.1
	DefaultRCutFactor = 0.5
)

// Params configures one pruning pass.
type Params struct {
	Algorithm  cluster.Algorithm
	R          float64 // reclustering radius
	ZCut       float64 // momentum-fraction cut in [0, 1]
	RCutFactor float64 // scale of the angular veto, > 0
}

// DefaultParams returns CA reclustering with the default cuts.
func DefaultParams() Params {
	return Params{
		Algorithm:  cluster.CA,
		R:          DefaultJetSize,
		ZCut:       DefaultZCut,
		RCutFactor: DefaultRCutFactor,
	}
}

// Validate checks every field. Unknown algorithms are reported as
// cluster.ErrUnknownAlgorithm so callers can tell them apart.
func (p Params) Validate() error {
	if !p.Algorithm.Valid() {
		return fmt.Errorf("%w: %d", cluster.ErrUnknownAlgorithm, int(p.Algorithm))
	}
	if !(p.R > 0) || math.IsInf(p.R, 0) {
		return fmt.Errorf("%w: R must be positive and finite, got %g", ErrInvalidParams, p.R)
	}
	if !(p.ZCut >= 0 && p.ZCut <= 1) {
		return fmt.Errorf("%w: z_cut must be in [0,1], got %g", ErrInvalidParams, p.ZCut)
	}
	if !(p.RCutFactor > 0) || math.IsInf(p.RCutFactor, 0) {
		return fmt.Errorf("%w: r_cut_factor must be positive and finite, got %g", ErrInvalidParams, p.RCutFactor)
	}
	return nil
}

// Metric returns the reclustering distance measure.
func (p Params) Metric() (cluster.Metric, error) {
	return cluster.NewMetric(p.Algorithm, p.R)
}

// Policy returns the veto rule for these parameters.
func (p Params) Policy() Policy {
	return Policy{ZCut: p.ZCut, RCutFactor: p.RCutFactor}
}
