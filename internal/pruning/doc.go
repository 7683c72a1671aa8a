// Package pruning reclusters jet constituents while vetoing soft,
// wide-angle recombinations, and reads the pruned jet, its subjets and the
// mass drop off the resulting history.
//
// At every candidate merge of a softer branch into a harder one, with
// z = min(pt)/pt_merged and R_eff = RCutFactor · 2·m_merged/pt_merged, the
// softer branch is discarded when z < ZCut and ΔR > R_eff (both strict).
package pruning
