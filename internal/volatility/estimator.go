package volatility

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/jetsub/internal/cluster"
	"github.com/banshee-data/jetsub/internal/kinematics"
	"github.com/banshee-data/jetsub/internal/pruning"
)

// ErrInvalidParams is returned when volatility parameters are out of range.
var ErrInvalidParams = errors.New("invalid volatility parameters")

// Defaults follow the usual Qjets settings: 50 trials, angular-ordered
// sampling (exponent 0) and a soft rigidity.
const (
	DefaultTrials        = 50
	DefaultCutoff        = 0.01
	DefaultWindow        = 10
	DefaultRigidity      = 0.1
	DefaultSeed          = 1
	DefaultPreclustering = 50
)

// Params configures Estimate.
type Params struct {
	Pruning pruning.Params

	Trials   int     // upper bound on trials, > 0
	Cutoff   float64 // relative running-mean change treated as converged, in (0, 1]
	Window   int     // consecutive converged trials required to stop early, ≥ 1
	ExpMin   float64 // sampling exponent range
	ExpMax   float64
	Rigidity float64 // > 0; +Inf is the deterministic limit
	Seed     uint64

	// Preclustering reduces inputs with more constituents than this to that
	// many CA pseudojets before the trials. 0 disables it.
	Preclustering int

	// Workers bounds parallel trials. ≤ 0 uses GOMAXPROCS. Results do not
	// depend on it.
	Workers int
}

// DefaultParams returns the default estimator configuration.
func DefaultParams() Params {
	return Params{
		Pruning:       pruning.DefaultParams(),
		Trials:        DefaultTrials,
		Cutoff:        DefaultCutoff,
		Window:        DefaultWindow,
		Rigidity:      DefaultRigidity,
		Seed:          DefaultSeed,
		Preclustering: DefaultPreclustering,
	}
}

// Validate checks every field, including the embedded pruning parameters.
func (p Params) Validate() error {
	if err := p.Pruning.Validate(); err != nil {
		return err
	}
	switch {
	case p.Trials <= 0:
		return fmt.Errorf("%w: ntrial must be positive, got %d", ErrInvalidParams, p.Trials)
	case !(p.Cutoff > 0 && p.Cutoff <= 1):
		return fmt.Errorf("%w: cutoff must be in (0,1], got %g", ErrInvalidParams, p.Cutoff)
	case p.Window < 1:
		return fmt.Errorf("%w: convergence window must be at least 1, got %d", ErrInvalidParams, p.Window)
	case math.IsNaN(p.ExpMin) || math.IsNaN(p.ExpMax) || math.IsInf(p.ExpMin, 0) || math.IsInf(p.ExpMax, 0):
		return fmt.Errorf("%w: exponent range must be finite", ErrInvalidParams)
	case p.ExpMin > p.ExpMax:
		return fmt.Errorf("%w: exp_min %g exceeds exp_max %g", ErrInvalidParams, p.ExpMin, p.ExpMax)
	case !(p.Rigidity > 0):
		return fmt.Errorf("%w: rigidity must be positive, got %g", ErrInvalidParams, p.Rigidity)
	case p.Preclustering < 0:
		return fmt.Errorf("%w: preclustering must be non-negative, got %d", ErrInvalidParams, p.Preclustering)
	}
	return nil
}

// Result is the outcome of a volatility run.
type Result struct {
	// Volatility is StdDev/Mean. When Mean is 0 it is reported as 0 and
	// Defined is false.
	Volatility float64
	Defined    bool
	Mean       float64
	StdDev     float64 // sample standard deviation, 0 for a single trial
	Masses     []float64
	Trials     int // trials executed
	Converged  bool
}

// Estimate runs up to p.Trials randomized pruning trials on particles.
// The context is checked between batches, never inside a trial.
func Estimate(ctx context.Context, particles []kinematics.FourVector, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	for i, v := range particles {
		if err := v.Validate(); err != nil {
			return Result{}, fmt.Errorf("particle %d: %w", i, err)
		}
	}

	metric, err := p.Pruning.Metric()
	if err != nil {
		return Result{}, err
	}
	if p.Preclustering > 0 && len(particles) > p.Preclustering {
		ca := cluster.Metric{P: cluster.CA.Exponent(), R: p.Pruning.R}
		particles, err = cluster.Exclusive(particles, ca, p.Preclustering)
		if err != nil {
			return Result{}, fmt.Errorf("precluster: %w", err)
		}
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	masses := make([]float64, p.Trials)
	conv := Convergence{Cutoff: p.Cutoff, Window: p.Window}
	executed := 0
	converged := false

	for start := 0; start < p.Trials && !converged; start += workers {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		end := min(start+workers, p.Trials)

		g := new(errgroup.Group)
		g.SetLimit(workers)
		for t := start; t < end; t++ {
			g.Go(func() error {
				m, err := Trial(particles, metric, p, t)
				if err != nil {
					return fmt.Errorf("trial %d: %w", t, err)
				}
				masses[t] = m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}

		for t := start; t < end; t++ {
			executed = t + 1
			if conv.Add(masses[t]) {
				converged = true
				break
			}
		}
	}

	return summarize(masses[:executed], converged), nil
}

// Trial runs one randomized reclustering and returns its pruned mass.
func Trial(particles []kinematics.FourVector, metric cluster.Metric, p Params, trial int) (float64, error) {
	sel := NewRandomSelector(TrialRand(p.Seed, trial), p.ExpMin, p.ExpMax, p.Rigidity)
	seq, err := cluster.Build(particles, metric, cluster.Options{
		Recombiner: p.Pruning.Policy(),
		Selector:   sel,
	})
	if err != nil {
		return 0, err
	}
	return pruning.Extract(seq).Mass, nil
}

func summarize(masses []float64, converged bool) Result {
	est := Result{Masses: masses, Trials: len(masses), Converged: converged}
	switch {
	case len(masses) == 0:
		return est
	case floats.Min(masses) == floats.Max(masses):
		est.Mean = masses[0]
	default:
		est.Mean, est.StdDev = stat.MeanStdDev(masses, nil)
	}
	if est.Mean == 0 {
		return est
	}
	est.Defined = true
	est.Volatility = est.StdDev / est.Mean
	return est
}
