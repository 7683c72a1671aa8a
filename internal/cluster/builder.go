package cluster

import (
	"fmt"

	"github.com/banshee-data/jetsub/internal/kinematics"
)

// Candidate is a possible next step: the merge of two active pseudojets A
// and B (A < B), or the removal of A against the beam when B is BeamParent.
type Candidate struct {
	A, B     int
	Distance float64
}

// IsBeam reports whether the candidate is a beam distance.
func (c Candidate) IsBeam() bool { return c.B == BeamParent }

// Selector picks the next step of the recombination loop.
type Selector interface {
	// Metric returns the measure used to rank candidates for the next step.
	Metric(base Metric) Metric
	// Select returns the index into cands of the step to perform.
	// cands is never empty.
	Select(cands []Candidate) int
}

// MinSelector always takes the smallest distance. Candidates are listed as
// all pairs in ascending (A, B) order followed by all beam entries in
// ascending order, and the first minimum wins, so ties resolve towards the
// lowest insertion index and towards merging.
type MinSelector struct{}

// Metric returns base unchanged.
func (MinSelector) Metric(base Metric) Metric { return base }

// Select returns the first candidate with the smallest distance.
func (MinSelector) Select(cands []Candidate) int {
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Distance < cands[best].Distance {
			best = i
		}
	}
	return best
}

// Recombination is the outcome of a pair merge.
type Recombination struct {
	Momentum kinematics.FourVector
	Pruned   bool
	Dropped  int // arena index of the discarded branch when Pruned
}

// Recombiner decides what a pair merge produces.
type Recombiner interface {
	Recombine(a, b PseudoJet) Recombination
}

// SumRecombiner is the plain E-scheme: the child is the four-vector sum.
type SumRecombiner struct{}

// Recombine returns a + b.
func (SumRecombiner) Recombine(a, b PseudoJet) Recombination {
	return Recombination{Momentum: a.Momentum.Add(b.Momentum), Dropped: NoParent}
}

// Options configures Build. Zero values select MinSelector and SumRecombiner.
type Options struct {
	Recombiner Recombiner
	Selector   Selector
}

// Build runs inclusive clustering until every pseudojet has either been
// merged or removed against the beam.
func Build(particles []kinematics.FourVector, metric Metric, opts Options) (*Sequence, error) {
	seq, _, err := run(particles, metric, opts, 0, true)
	return seq, err
}

// Exclusive merges pairs with the plain E-scheme, never removing anything
// against the beam, until at most n pseudojets remain. It returns their
// momenta in arena order. Inputs with n or fewer particles come back as is.
func Exclusive(particles []kinematics.FourVector, metric Metric, n int) ([]kinematics.FourVector, error) {
	if n < 1 {
		return nil, fmt.Errorf("exclusive clustering needs n >= 1, got %d", n)
	}
	seq, active, err := run(particles, metric, Options{}, n, false)
	if err != nil {
		return nil, err
	}
	out := make([]kinematics.FourVector, len(active))
	for i, id := range active {
		out[i] = seq.Jets[id].Momentum
	}
	return out, nil
}

func run(particles []kinematics.FourVector, metric Metric, opts Options, stopAt int, beam bool) (*Sequence, []int, error) {
	rec := opts.Recombiner
	if rec == nil {
		rec = SumRecombiner{}
	}
	sel := opts.Selector
	if sel == nil {
		sel = MinSelector{}
	}

	n := len(particles)
	seq := &Sequence{
		Jets:         make([]PseudoJet, 0, 2*n),
		History:      make([]Step, 0, 2*n),
		NumOriginals: n,
	}
	active := make([]int, 0, n)
	for i, p := range particles {
		if err := p.Validate(); err != nil {
			return nil, nil, fmt.Errorf("particle %d: %w", i, err)
		}
		seq.Jets = append(seq.Jets, PseudoJet{Momentum: p, ID: i, Parent1: NoParent, Parent2: NoParent})
		active = append(active, i)
	}

	cands := make([]Candidate, 0, n*(n+1)/2)
	for len(active) > stopAt {
		m := sel.Metric(metric)

		cands = cands[:0]
		for x := 0; x < len(active); x++ {
			a := seq.Jets[active[x]].Momentum
			for y := x + 1; y < len(active); y++ {
				cands = append(cands, Candidate{A: active[x], B: active[y], Distance: m.Pair(a, seq.Jets[active[y]].Momentum)})
			}
		}
		if beam {
			for _, id := range active {
				cands = append(cands, Candidate{A: id, B: BeamParent, Distance: m.Beam(seq.Jets[id].Momentum)})
			}
		}
		if len(cands) == 0 {
			break
		}

		k := sel.Select(cands)
		if k < 0 || k >= len(cands) {
			return nil, nil, fmt.Errorf("selector returned candidate %d of %d", k, len(cands))
		}
		c := cands[k]

		if c.IsBeam() {
			seq.History = append(seq.History, Step{Parent1: c.A, Parent2: BeamParent, Child: BeamChild, Distance: c.Distance})
			active = remove(active, c.A, -1)
			continue
		}

		r := rec.Recombine(seq.Jets[c.A], seq.Jets[c.B])
		id := len(seq.Jets)
		seq.Jets = append(seq.Jets, PseudoJet{Momentum: r.Momentum, ID: id, Parent1: c.A, Parent2: c.B})
		if r.Pruned {
			seq.Jets[r.Dropped].Dropped = true
		}
		seq.History = append(seq.History, Step{Parent1: c.A, Parent2: c.B, Child: id, Distance: c.Distance, Pruned: r.Pruned})
		// id is the largest index so far, so active stays sorted.
		active = append(remove(active, c.A, c.B), id)
	}
	return seq, active, nil
}

// remove filters a and b out of active in place.
func remove(active []int, a, b int) []int {
	out := active[:0]
	for _, id := range active {
		if id != a && id != b {
			out = append(out, id)
		}
	}
	return out
}
