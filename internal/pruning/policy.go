package pruning

import (
	"github.com/banshee-data/jetsub/internal/cluster"
	"github.com/banshee-data/jetsub/internal/kinematics"
)

// Policy is the pruning veto. It implements cluster.Recombiner.
type Policy struct {
	ZCut       float64
	RCutFactor float64
}

// Decision describes one evaluation of the veto.
type Decision struct {
	Z      float64 // softer pt over merged pt
	DeltaR float64 // separation of the two branches
	REff   float64 // RCutFactor · 2·m/pt of the merged candidate
	Prune  bool
}

// Evaluate applies the veto to a candidate merge of softer into harder.
// A merged candidate with zero pt never prunes.
func (p Policy) Evaluate(harder, softer kinematics.FourVector) Decision {
	merged := harder.Add(softer)
	ptMerged := merged.Pt()
	d := Decision{DeltaR: kinematics.DeltaR(harder, softer)}
	if ptMerged == 0 {
		return d
	}
	d.Z = min(harder.Pt(), softer.Pt()) / ptMerged
	d.REff = p.RCutFactor * 2 * merged.M() / ptMerged
	d.Prune = d.Z < p.ZCut && d.DeltaR > d.REff
	return d
}

// Recombine merges a and b, or keeps only the harder one when the veto fires.
// Equal pt resolves to a, the lower arena index.
func (p Policy) Recombine(a, b cluster.PseudoJet) cluster.Recombination {
	harder, softer := a, b
	if b.Momentum.Pt() > a.Momentum.Pt() {
		harder, softer = b, a
	}
	if p.Evaluate(harder.Momentum, softer.Momentum).Prune {
		return cluster.Recombination{Momentum: harder.Momentum, Pruned: true, Dropped: softer.ID}
	}
	return cluster.Recombination{Momentum: a.Momentum.Add(b.Momentum), Dropped: cluster.NoParent}
}

var _ cluster.Recombiner = Policy{}
