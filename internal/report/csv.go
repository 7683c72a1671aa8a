// Package report writes engine results as CSV, PNG histograms and HTML charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/banshee-data/jetsub/internal/engine"
)

// Columns is the CSV header written by CSVWriter.
var Columns = []string{
	"jet", "num_constituents",
	"pruned_mass", "mass_drop", "num_subjets", "subjet_masses",
	"pruned_pt", "pruned_eta", "pruned_phi",
	"jet_pt", "jet_eta", "jet_rapidity", "jet_mass",
	"volatility", "volatility_trials", "converged",
	"error",
}

// CSVWriter wraps csv.Writer with one row per jet.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a CSVWriter on w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the column names.
func (c *CSVWriter) WriteHeader() error {
	return c.w.Write(Columns)
}

// WriteRow writes one jet. Volatility is left blank when it was not computed
// or is undefined.
func (c *CSVWriter) WriteRow(r engine.JetResult) error {
	subjets := make([]string, len(r.SubjetMasses))
	for i, m := range r.SubjetMasses {
		subjets[i] = fmt.Sprintf("%.6f", m)
	}
	vol := ""
	if r.VolatilityDefined {
		vol = fmt.Sprintf("%.6f", r.Volatility)
	}
	errStr := ""
	if r.Err != nil {
		errStr = r.Err.Error()
	}

	row := []string{
		fmt.Sprintf("%d", r.Index),
		fmt.Sprintf("%d", r.NumConstituents),
		fmt.Sprintf("%.6f", r.PrunedMass),
		fmt.Sprintf("%.6f", r.MassDrop),
		fmt.Sprintf("%d", len(r.Subjets)),
		strings.Join(subjets, ";"),
		fmt.Sprintf("%.6f", r.PrunedJet.Pt()),
		fmt.Sprintf("%.6f", r.PrunedJet.Eta()),
		fmt.Sprintf("%.6f", r.PrunedJet.Phi()),
		fmt.Sprintf("%.6f", r.Jet.Pt()),
		fmt.Sprintf("%.6f", r.Jet.Eta()),
		fmt.Sprintf("%.6f", r.Jet.Rapidity()),
		fmt.Sprintf("%.6f", r.Jet.M()),
		vol,
		fmt.Sprintf("%d", r.VolatilityTrials),
		fmt.Sprintf("%t", r.Converged),
		errStr,
	}
	return c.w.Write(row)
}

// WriteResults writes the header and every jet in index order, then flushes.
func (c *CSVWriter) WriteResults(results map[int]engine.JetResult) error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	for _, r := range Ordered(results) {
		if err := c.WriteRow(r); err != nil {
			return fmt.Errorf("jet %d: %w", r.Index, err)
		}
	}
	return c.Flush()
}

// Flush flushes buffered rows and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// Ordered returns the results sorted by jet index.
func Ordered(results map[int]engine.JetResult) []engine.JetResult {
	out := make([]engine.JetResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
