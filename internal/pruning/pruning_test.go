package pruning

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/jetsub/internal/cluster"
	"github.com/banshee-data/jetsub/internal/kinematics"
)

func twoProngs() []kinematics.FourVector {
	return []kinematics.FourVector{
		kinematics.FromPtEtaPhiM(100, 0, 0, 0),
		kinematics.FromPtEtaPhiM(100, 0, 0.4, 0),
	}
}

func TestPruneTwoProngsKept(t *testing.T) {
	params := Params{Algorithm: cluster.CA, R: 0.8, ZCut: 0.1, RCutFactor: 0.5}

	res, err := Prune(twoProngs(), params)
	require.NoError(t, err)

	wantMass := 2 * 100 * math.Sin(0.2)
	assert.InDelta(t, wantMass, res.Mass, 1e-9)
	assert.InDelta(t, 39.73, res.Mass, 0.01)
	require.Len(t, res.Subjets, 2)
	assert.Equal(t, []float64{0, 0}, res.SubjetMasses)
	assert.Equal(t, 0.0, res.MassDrop)
	assert.NoError(t, res.Sequence.Validate())
}

func TestPruneTwoProngsVetoed(t *testing.T) {
	params := Params{Algorithm: cluster.CA, R: 0.8, ZCut: 0.6, RCutFactor: 0.5}
	particles := twoProngs()

	d := params.Policy().Evaluate(particles[0], particles[1])
	require.True(t, d.Prune, "decision %+v", d)
	assert.Less(t, d.Z, 0.6)
	assert.Greater(t, d.DeltaR, d.REff)

	res, err := Prune(particles, params)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Mass)
	assert.Equal(t, 1.0, res.MassDrop)
	require.Len(t, res.Subjets, 1)
	// Equal pt: the lower index is the harder branch.
	assert.Equal(t, particles[0], res.Jet)
	assert.True(t, res.Sequence.Jet(1).Dropped)
	assert.False(t, res.Sequence.Jet(0).Dropped)
	assert.Equal(t, []int{0}, res.Sequence.Constituents(res.JetID))
	assert.NoError(t, res.Sequence.Validate())
}

func TestPruneEmptyAndSingle(t *testing.T) {
	params := DefaultParams()

	res, err := Prune(nil, params)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, 0.0, res.Mass)
	assert.Equal(t, 1.0, res.MassDrop)

	massive := kinematics.FromPtEtaPhiM(50, 0.5, 1.0, 12)
	res, err = Prune([]kinematics.FourVector{massive}, params)
	require.NoError(t, err)
	assert.InDelta(t, 12, res.Mass, 1e-9)
	assert.Equal(t, 1.0, res.MassDrop)
	assert.Len(t, res.Subjets, 1)
	assert.Empty(t, res.Sequence.History[:len(res.Sequence.History)-1], "only the beam step")
}

func TestPolicyThresholdTiesDoNotPrune(t *testing.T) {
	particles := twoProngs()
	ref := Policy{ZCut: 1, RCutFactor: 0.5}.Evaluate(particles[0], particles[1])

	// z exactly at the cut: z < ZCut is false.
	d := Policy{ZCut: ref.Z, RCutFactor: 0.5}.Evaluate(particles[0], particles[1])
	assert.False(t, d.Prune)

	// Angular veto switched off by a huge effective radius.
	d = Policy{ZCut: 1, RCutFactor: 1e6}.Evaluate(particles[0], particles[1])
	assert.False(t, d.Prune)
}

// exactREffTie looks for an RCutFactor whose computed R_eff equals ΔR bit for
// bit, stepping one ulp at a time around ΔR·pt/(2m).
func exactREffTie(harder, softer kinematics.FourVector) (float64, bool) {
	unit := Policy{ZCut: 1, RCutFactor: 1}.Evaluate(harder, softer)
	if unit.REff == 0 {
		return 0, false
	}
	f := unit.DeltaR / unit.REff
	for range 64 {
		f = math.Nextafter(f, 0)
	}
	for range 128 {
		if (Policy{ZCut: 1, RCutFactor: f}).Evaluate(harder, softer).REff == unit.DeltaR {
			return f, true
		}
		f = math.Nextafter(f, math.Inf(1))
	}
	return 0, false
}

func TestPolicyDeltaRTieDoesNotPrune(t *testing.T) {
	harder := kinematics.FromPtEtaPhiM(100, 0, 0, 0)
	var softer kinematics.FourVector
	var factor float64
	found := false
	for i := range 50 {
		softer = kinematics.FromPtEtaPhiM(30, 0.1, 0.3+0.01*float64(i), 0)
		if factor, found = exactREffTie(harder, softer); found {
			break
		}
	}
	require.True(t, found, "no RCutFactor gives R_eff == ΔR exactly")

	// ΔR == R_eff with z well below the cut: ΔR > R_eff is false.
	d := Policy{ZCut: 1, RCutFactor: factor}.Evaluate(harder, softer)
	require.Equal(t, d.DeltaR, d.REff)
	require.Less(t, d.Z, 1.0)
	assert.False(t, d.Prune, "tie at the angular threshold must not prune: %+v", d)

	// The next representable factors below move R_eff under ΔR, which prunes.
	below := factor
	for range 4 {
		below = math.Nextafter(below, 0)
		d = Policy{ZCut: 1, RCutFactor: below}.Evaluate(harder, softer)
		if d.REff < d.DeltaR {
			break
		}
	}
	require.Less(t, d.REff, d.DeltaR)
	assert.True(t, d.Prune, "R_eff one step under ΔR must prune: %+v", d)
}

func TestPolicyBackToBackNeverPrunes(t *testing.T) {
	a := kinematics.FromPtEtaPhiM(40, 0, 0, 0)
	b := kinematics.FromPtEtaPhiM(40, 0, math.Pi, 0)
	d := Policy{ZCut: 1, RCutFactor: 0.01}.Evaluate(a, b)
	assert.False(t, d.Prune)
}

func TestParamsValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Params)
		wantErr error
	}{
		{"defaults", func(*Params) {}, nil},
		{"unknown_algorithm", func(p *Params) { p.Algorithm = cluster.Algorithm(9) }, cluster.ErrUnknownAlgorithm},
		{"zero_radius", func(p *Params) { p.R = 0 }, ErrInvalidParams},
		{"negative_zcut", func(p *Params) { p.ZCut = -0.1 }, ErrInvalidParams},
		{"zcut_above_one", func(p *Params) { p.ZCut = 1.1 }, ErrInvalidParams},
		{"zcut_nan", func(p *Params) { p.ZCut = math.NaN() }, ErrInvalidParams},
		{"zero_rcut", func(p *Params) { p.RCutFactor = 0 }, ErrInvalidParams},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

// randomJet scatters n particles around a common axis.
func randomJet(rng *rand.Rand, n int) []kinematics.FourVector {
	out := make([]kinematics.FourVector, n)
	for i := range out {
		pt := 1 + rng.ExpFloat64()*30
		eta := rng.NormFloat64() * 0.3
		phi := rng.NormFloat64() * 0.3
		m := 0.0
		if rng.IntN(4) == 0 {
			m = rng.Float64() * 2
		}
		out[i] = kinematics.FromPtEtaPhiM(pt, eta, phi, m)
	}
	return out
}

func TestZeroZCutMatchesPlainClustering(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, alg := range []cluster.Algorithm{cluster.KT, cluster.CA, cluster.AntiKT} {
		for trial := 0; trial < 20; trial++ {
			particles := randomJet(rng, 2+rng.IntN(30))
			params := Params{Algorithm: alg, R: 0.8, ZCut: 0, RCutFactor: 0.5}

			pruned, err := Prune(particles, params)
			require.NoError(t, err)

			metric, err := params.Metric()
			require.NoError(t, err)
			seq, err := cluster.Build(particles, metric, cluster.Options{})
			require.NoError(t, err)
			plain := Extract(seq)

			assert.Equal(t, plain.Mass, pruned.Mass, "alg %v trial %d", alg, trial)
			for _, pj := range pruned.Sequence.Jets {
				assert.False(t, pj.Dropped)
			}
		}
	}
}

func TestMassDropBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 100; trial++ {
		particles := randomJet(rng, 1+rng.IntN(40))
		params := Params{Algorithm: cluster.CA, R: 0.8, ZCut: 0.1 + 0.4*rng.Float64(), RCutFactor: 0.5}

		res, err := Prune(particles, params)
		require.NoError(t, err)
		require.NoError(t, res.Sequence.Validate())

		assert.GreaterOrEqual(t, res.Mass, 0.0)
		if res.Mass > 0 {
			// Unclamped: a subjet heavier than the jet would show up here.
			assert.GreaterOrEqual(t, res.MassDrop, 0.0)
			assert.LessOrEqual(t, res.MassDrop, 1+1e-9)
			assert.InDelta(t, res.SubjetMasses[0]/res.Mass, res.MassDrop, 1e-15)
		} else {
			assert.Equal(t, 1.0, res.MassDrop)
		}
		for i := 1; i < len(res.SubjetMasses); i++ {
			assert.GreaterOrEqual(t, res.SubjetMasses[i-1], res.SubjetMasses[i])
		}

		// The pruned jet carries exactly its surviving constituents.
		var kept []kinematics.FourVector
		for _, id := range res.Sequence.Constituents(res.JetID) {
			kept = append(kept, particles[id])
		}
		sum := kinematics.Sum(kept)
		assert.InDelta(t, sum.E, res.Jet.E, 1e-6*math.Max(1, sum.E))
	}
}

func TestPruneRejectsBadInput(t *testing.T) {
	_, err := Prune([]kinematics.FourVector{kinematics.New(0, 0, 0, -3)}, DefaultParams())
	assert.ErrorIs(t, err, kinematics.ErrNegativeEnergy)

	bad := DefaultParams()
	bad.Algorithm = cluster.Algorithm(-1)
	_, err = Prune(twoProngs(), bad)
	assert.ErrorIs(t, err, cluster.ErrUnknownAlgorithm)
}
