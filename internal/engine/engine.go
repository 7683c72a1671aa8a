package engine

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/jetsub/internal/kinematics"
	"github.com/banshee-data/jetsub/internal/monitoring"
	"github.com/banshee-data/jetsub/internal/pruning"
	"github.com/banshee-data/jetsub/internal/volatility"
)

// Config is the resolved configuration for a batch.
type Config struct {
	Pruning pruning.Params
	// Volatility.Pruning is ignored; Pruning above is used for both paths.
	Volatility        volatility.Params
	ComputeVolatility bool
	// Workers bounds concurrent jets. ≤ 0 uses GOMAXPROCS.
	Workers int
}

// DefaultConfig returns pruning defaults with volatility disabled.
func DefaultConfig() Config {
	return Config{
		Pruning:    pruning.DefaultParams(),
		Volatility: volatility.DefaultParams(),
	}
}

// Validate checks the configuration before any clustering starts.
func (c Config) Validate() error {
	if err := c.Pruning.Validate(); err != nil {
		return err
	}
	if c.ComputeVolatility {
		if err := c.volatilityParams().Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) volatilityParams() volatility.Params {
	vp := c.Volatility
	vp.Pruning = c.Pruning
	return vp
}

// JetError ties a per-jet failure to the jet's input index.
type JetError struct {
	Index int
	Err   error
}

func (e *JetError) Error() string { return fmt.Sprintf("jet %d: %v", e.Index, e.Err) }

func (e *JetError) Unwrap() error { return e.Err }

// JetResult holds the observables for one input jet.
type JetResult struct {
	Index           int
	NumConstituents int

	// Jet is the ungroomed jet, the sum of every constituent.
	Jet kinematics.FourVector

	PrunedJet    kinematics.FourVector
	PrunedMass   float64
	MassDrop     float64
	Subjets      []kinematics.FourVector
	SubjetMasses []float64

	// Volatility fields are zero unless the batch computed volatility.
	Volatility        float64
	VolatilityDefined bool
	VolatilityTrials  int
	Converged         bool
	TrialMasses       []float64

	// Err is a *JetError when the jet's input was rejected.
	Err error
}

// ProcessJet computes the result for a single jet.
func ProcessJet(ctx context.Context, index int, constituents []kinematics.FourVector, cfg Config) JetResult {
	res := JetResult{Index: index, NumConstituents: len(constituents), MassDrop: 1}
	for i, v := range constituents {
		if err := v.Validate(); err != nil {
			res.Err = &JetError{Index: index, Err: fmt.Errorf("constituent %d: %w", i, err)}
			return res
		}
	}
	res.Jet = kinematics.Sum(constituents)

	pr, err := pruning.Prune(constituents, cfg.Pruning)
	if err != nil {
		res.Err = &JetError{Index: index, Err: err}
		return res
	}
	res.PrunedJet = pr.Jet
	res.PrunedMass = pr.Mass
	res.MassDrop = pr.MassDrop
	res.Subjets = pr.Subjets
	res.SubjetMasses = pr.SubjetMasses

	if !cfg.ComputeVolatility {
		return res
	}
	vr, err := volatility.Estimate(ctx, constituents, cfg.volatilityParams())
	if err != nil {
		res.Err = &JetError{Index: index, Err: fmt.Errorf("volatility: %w", err)}
		return res
	}
	res.Volatility = vr.Volatility
	res.VolatilityDefined = vr.Defined
	res.VolatilityTrials = vr.Trials
	res.Converged = vr.Converged
	res.TrialMasses = vr.Masses
	monitoring.Debugf("jet %d: volatility %.4f after %d trials (converged=%v)", index, vr.Volatility, vr.Trials, vr.Converged)
	return res
}

// Process runs every jet and returns one result per input index. The error
// is non-nil only for an invalid configuration or a cancelled context;
// rejected jets carry their error in JetResult.Err.
func Process(ctx context.Context, jets [][]kinematics.FourVector, cfg Config) (map[int]JetResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]JetResult, len(jets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, constituents := range jets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := ProcessJet(gctx, i, constituents, cfg)
			if r.Err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int]JetResult, len(results))
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			monitoring.Logf("WARNING: %v", r.Err)
		}
		out[i] = r
	}
	monitoring.Debugf("processed %d jets (%d rejected) with %d workers", len(jets), failed, workers)
	return out, nil
}
