// Package engine runs pruning, and optionally volatility, over a batch of
// jets. Jets are independent, so they are fanned out over a bounded worker
// pool; every jet gets exactly one JetResult keyed by its input index.
package engine
