package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/jetsub/internal/engine"
)

// Pruned-mass histogram binning, in GeV.
const (
	MassBins = 50
	MassMin  = 0.0
	MassMax  = 500.0
)

// Ungroomed jet histogram binning.
const (
	PtBins   = 60
	PtMin    = 0.0
	PtMax    = 300.0
	EtaBins  = 60
	EtaMin   = -3.0
	EtaMax   = 3.0
	MultBins = 15
	MultMin  = 0.0
	MultMax  = 15.0
)

// Histogram is a fixed-width histogram with under- and overflow counts.
type Histogram struct {
	Min, Max  float64
	Counts    []float64
	Underflow float64
	Overflow  float64
}

// NewHistogram bins values into n equal bins over [lo, hi). NaN values are
// ignored.
func NewHistogram(values []float64, n int, lo, hi float64) *Histogram {
	h := &Histogram{Min: lo, Max: hi, Counts: make([]float64, n)}
	width := (hi - lo) / float64(n)
	for _, v := range values {
		switch {
		case math.IsNaN(v):
			continue
		case v < lo:
			h.Underflow++
		case v >= hi:
			h.Overflow++
		default:
			bin := int((v - lo) / width)
			if bin >= n {
				bin = n - 1
			}
			h.Counts[bin]++
		}
	}
	return h
}

// Entries is the number of binned values, excluding under- and overflow.
func (h *Histogram) Entries() float64 { return floats.Sum(h.Counts) }

// BinWidth is the width of every bin.
func (h *Histogram) BinWidth() float64 { return (h.Max - h.Min) / float64(len(h.Counts)) }

// BinCenter returns the centre of bin i.
func (h *Histogram) BinCenter(i int) float64 { return h.Min + (float64(i)+0.5)*h.BinWidth() }

// PrunedMassHistogram bins the pruned masses of all accepted jets.
func PrunedMassHistogram(results map[int]engine.JetResult) *Histogram {
	return NewHistogram(accepted(results, func(r engine.JetResult) float64 { return r.PrunedMass }), MassBins, MassMin, MassMax)
}

// accepted collects one value per jet that was not rejected, in index order.
func accepted(results map[int]engine.JetResult, value func(engine.JetResult) float64) []float64 {
	var out []float64
	for _, r := range Ordered(results) {
		if r.Err == nil {
			out = append(out, value(r))
		}
	}
	return out
}

// JetPtHistogram bins the pt of the ungroomed jets.
func JetPtHistogram(results map[int]engine.JetResult) *Histogram {
	return NewHistogram(accepted(results, func(r engine.JetResult) float64 { return r.Jet.Pt() }), PtBins, PtMin, PtMax)
}

// JetEtaHistogram bins the pseudorapidity of the ungroomed jets.
func JetEtaHistogram(results map[int]engine.JetResult) *Histogram {
	return NewHistogram(accepted(results, func(r engine.JetResult) float64 { return r.Jet.Eta() }), EtaBins, EtaMin, EtaMax)
}

// MultiplicityHistogram bins the number of constituents per jet.
func MultiplicityHistogram(results map[int]engine.JetResult) *Histogram {
	return NewHistogram(accepted(results, func(r engine.JetResult) float64 { return float64(r.NumConstituents) }), MultBins, MultMin, MultMax)
}

func (h *Histogram) plot(title, xLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Jets"
	p.X.Min, p.X.Max = h.Min, h.Max

	bins := make([]plotter.HistogramBin, len(h.Counts))
	for i, c := range h.Counts {
		lo := h.Min + float64(i)*h.BinWidth()
		bins[i] = plotter.HistogramBin{Min: lo, Max: lo + h.BinWidth(), Weight: c}
	}
	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     h.BinWidth(),
		FillColor: color.RGBA{R: 70, G: 130, B: 180, A: 255},
		LineStyle: plotter.DefaultLineStyle,
	}
	p.Add(hist)
	p.Legend.Add(fmt.Sprintf("entries=%.0f under=%.0f over=%.0f", h.Entries(), h.Underflow, h.Overflow), hist)
	p.Legend.Top = true
	return p
}

// WritePNG renders the histogram as a PNG.
func (h *Histogram) WritePNG(w io.Writer, title, xLabel string) error {
	wt, err := h.plot(title, xLabel).WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePrunedMassPlot writes the pruned-mass histogram of results to path.
func SavePrunedMassPlot(results map[int]engine.JetResult, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	defer f.Close()

	h := PrunedMassHistogram(results)
	if err := h.WritePNG(f, "Pruned jet mass", "m_pruned (GeV)"); err != nil {
		return err
	}
	return f.Close()
}
