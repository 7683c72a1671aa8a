// Package volatility estimates how stable a jet's pruned mass is under
// randomized reclustering.
//
// Each trial reclusters the constituents with a RandomSelector that samples
// the next merge with weight exp(−rigidity·(d − d_min)/d_min) instead of
// always taking d_min, prunes with the same veto as the deterministic path,
// and records the pruned mass. Volatility is the coefficient of variation of
// those masses.
//
// Trials are pure functions of (constituents, params, trial index): every
// trial owns a generator seeded from DeriveSeed(Seed, index), so batches can
// run in parallel and still reproduce a sequential run bit for bit. Early
// stopping is evaluated in trial-index order after each batch completes.
package volatility
