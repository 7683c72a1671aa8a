package cluster

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/jetsub/internal/kinematics"
)

const (
	// NoParent marks the parent slots of an original pseudojet.
	NoParent = -1
	// BeamParent is the second parent of a beam step.
	BeamParent = -1
	// BeamChild is the child of a beam step: the input became a final object.
	BeamChild = -1
)

// ErrBrokenHistory is returned by Sequence.Validate.
var ErrBrokenHistory = errors.New("inconsistent clustering history")

// PseudoJet is one node of the merge history.
type PseudoJet struct {
	Momentum kinematics.FourVector
	ID       int // index in Sequence.Jets
	Parent1  int // NoParent for originals
	Parent2  int // NoParent for originals
	Dropped  bool
}

// IsOriginal reports whether the pseudojet is an input particle.
func (p PseudoJet) IsOriginal() bool { return p.Parent1 == NoParent }

// Step is one entry of the merge history.
type Step struct {
	Parent1  int
	Parent2  int // BeamParent for a beam step
	Child    int // BeamChild for a beam step
	Distance float64
	Pruned   bool // the child carries only the harder parent's momentum
}

// IsBeam reports whether the step removed Parent1 as a final object.
func (s Step) IsBeam() bool { return s.Child == BeamChild }

// Sequence is the arena of pseudojets and the ordered merge history.
type Sequence struct {
	Jets         []PseudoJet
	History      []Step
	NumOriginals int
}

// Jet returns the pseudojet with the given arena index.
func (s *Sequence) Jet(id int) PseudoJet { return s.Jets[id] }

// Finals returns the arena indices removed against the beam, in history order.
func (s *Sequence) Finals() []int {
	var out []int
	for _, st := range s.History {
		if st.IsBeam() {
			out = append(out, st.Parent1)
		}
	}
	return out
}

// ProducingStep returns the history index of the step whose child is id,
// or -1 for originals.
func (s *Sequence) ProducingStep(id int) int {
	for i, st := range s.History {
		if st.Child == id {
			return i
		}
	}
	return -1
}

// Constituents returns the original indices whose momentum survives in id,
// in ascending order. Branches discarded by pruning are excluded.
func (s *Sequence) Constituents(id int) []int {
	var out []int
	var walk func(int)
	walk = func(n int) {
		pj := s.Jets[n]
		if pj.IsOriginal() {
			out = append(out, n)
			return
		}
		step := s.History[s.ProducingStep(n)]
		if step.Pruned {
			walk(s.KeptParent(step))
			return
		}
		walk(pj.Parent1)
		walk(pj.Parent2)
	}
	walk(id)
	sort.Ints(out)
	return out
}

// KeptParent returns the parent of a pruned step that was not dropped.
func (s *Sequence) KeptParent(st Step) int {
	if s.Jets[st.Parent1].Dropped {
		return st.Parent2
	}
	return st.Parent1
}

// Validate checks the arena/history invariants: every non-original pseudojet
// has exactly one producing step, and every pseudojet is consumed at most once.
func (s *Sequence) Validate() error {
	produced := make([]int, len(s.Jets))
	consumed := make([]int, len(s.Jets))
	for i, st := range s.History {
		inRange := func(id int) bool { return id >= 0 && id < len(s.Jets) }
		if !inRange(st.Parent1) {
			return fmt.Errorf("%w: step %d parent1 %d out of range", ErrBrokenHistory, i, st.Parent1)
		}
		consumed[st.Parent1]++
		if st.IsBeam() {
			continue
		}
		if !inRange(st.Parent2) || !inRange(st.Child) {
			return fmt.Errorf("%w: step %d references out of range", ErrBrokenHistory, i)
		}
		if st.Parent1 == st.Parent2 {
			return fmt.Errorf("%w: step %d merges %d with itself", ErrBrokenHistory, i, st.Parent1)
		}
		consumed[st.Parent2]++
		produced[st.Child]++
		child := s.Jets[st.Child]
		if child.Parent1 != st.Parent1 || child.Parent2 != st.Parent2 {
			return fmt.Errorf("%w: step %d child %d parents disagree", ErrBrokenHistory, i, st.Child)
		}
	}
	for id, pj := range s.Jets {
		if pj.ID != id {
			return fmt.Errorf("%w: jet at %d has ID %d", ErrBrokenHistory, id, pj.ID)
		}
		want := 1
		if id < s.NumOriginals {
			want = 0
		}
		if produced[id] != want {
			return fmt.Errorf("%w: jet %d produced %d times", ErrBrokenHistory, id, produced[id])
		}
		if consumed[id] > 1 {
			return fmt.Errorf("%w: jet %d consumed %d times", ErrBrokenHistory, id, consumed[id])
		}
	}
	return nil
}
