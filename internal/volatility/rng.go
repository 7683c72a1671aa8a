package volatility

import "math/rand/v2"

// DeriveSeed mixes a base seed and a stream index into an independent seed
// with the SplitMix64 finalizer.
func DeriveSeed(parent, stream uint64) uint64 {
	x := parent ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// TrialRand returns the generator owned by one trial. It depends only on the
// base seed and the trial index.
func TrialRand(seed uint64, trial int) *rand.Rand {
	s := uint64(trial)
	return rand.New(rand.NewPCG(DeriveSeed(seed, s), DeriveSeed(^seed, s)))
}
