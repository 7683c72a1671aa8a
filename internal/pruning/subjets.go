package pruning

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/jetsub/internal/cluster"
	"github.com/banshee-data/jetsub/internal/kinematics"
)

// Result is the pruned jet and its decomposition.
type Result struct {
	Jet          kinematics.FourVector
	JetID        int // arena index of the pruned jet, cluster.NoParent when empty
	Mass         float64
	Subjets      []kinematics.FourVector // descending mass
	SubjetMasses []float64               // aligned with Subjets
	MassDrop     float64
	Sequence     *cluster.Sequence
}

// Empty reports whether there was no input to cluster.
func (r Result) Empty() bool { return r.JetID == cluster.NoParent }

// Extract reads the pruned jet off a completed sequence.
//
// The pruned jet is the hardest final object (ties to the lower arena
// index). Its subjets are the two parents of the last ordinary
// recombination above it; pruned steps are stepped through to the kept
// branch, and a jet that reaches an original without one has itself as the
// only subjet. Mass drop is the largest subjet mass over the pruned mass,
// 1 when the pruned mass is 0.
func Extract(seq *cluster.Sequence) Result {
	res := Result{JetID: cluster.NoParent, MassDrop: 1, Sequence: seq}
	if seq == nil {
		return res
	}

	best := cluster.NoParent
	for _, id := range seq.Finals() {
		if best == cluster.NoParent {
			best = id
			continue
		}
		pt, bestPt := seq.Jets[id].Momentum.Pt(), seq.Jets[best].Momentum.Pt()
		if pt > bestPt || (pt == bestPt && id < best) {
			best = id
		}
	}
	if best == cluster.NoParent {
		return res
	}

	res.JetID = best
	res.Jet = seq.Jets[best].Momentum
	res.Mass = res.Jet.M()

	for _, id := range subjetIDs(seq, best) {
		res.Subjets = append(res.Subjets, seq.Jets[id].Momentum)
	}
	sort.SliceStable(res.Subjets, func(i, j int) bool {
		return res.Subjets[i].M() > res.Subjets[j].M()
	})
	res.SubjetMasses = make([]float64, len(res.Subjets))
	for i, sj := range res.Subjets {
		res.SubjetMasses[i] = sj.M()
	}

	if res.Mass > 0 {
		res.MassDrop = floats.Max(res.SubjetMasses) / res.Mass
	}
	return res
}

func subjetIDs(seq *cluster.Sequence, id int) []int {
	for {
		pj := seq.Jets[id]
		if pj.IsOriginal() {
			return []int{id}
		}
		step := seq.History[seq.ProducingStep(id)]
		if !step.Pruned {
			return []int{step.Parent1, step.Parent2}
		}
		id = seq.KeptParent(step)
	}
}

// Prune reclusters particles with the veto and extracts the result.
func Prune(particles []kinematics.FourVector, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	metric, err := p.Metric()
	if err != nil {
		return Result{}, err
	}
	seq, err := cluster.Build(particles, metric, cluster.Options{Recombiner: p.Policy()})
	if err != nil {
		return Result{}, fmt.Errorf("recluster: %w", err)
	}
	return Extract(seq), nil
}
