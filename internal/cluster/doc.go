// Package cluster implements sequential-recombination clustering over a set
// of four-momenta.
//
// Responsibilities: the generalized-kt distance measure (kt, Cambridge/Aachen
// and anti-kt differ only by the momentum exponent p), the nearest-neighbour
// recombination loop, and the merge history it produces.
// Key types: Algorithm, Metric, PseudoJet, Step, Sequence.
//
// The history is an arena: every pseudojet is addressed by its index in
// Sequence.Jets and stores its parents' indices inline. Originals occupy
// indices 0..N-1 in input order.
//
// What happens at a pair merge is delegated to a Recombiner (the pruning
// package supplies one that can discard the softer branch), and which
// candidate is merged next is delegated to a Selector (the volatility
// package supplies a randomized one). The loop itself is single-threaded and
// allocation-light; naive O(N³) rescans are fine for jet constituents.
package cluster
