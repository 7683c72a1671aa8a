package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/jetsub/internal/engine"
)

const volatilityBins = 20

func histogramBar(h *Histogram, title, subtitle, series string) *charts.Bar {
	x := make([]string, len(h.Counts))
	y := make([]opts.BarData, len(h.Counts))
	for i, c := range h.Counts {
		x[i] = fmt.Sprintf("%.3g", h.BinCenter(i))
		y[i] = opts.BarData{Value: c}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries(series, y)
	return bar
}

// RenderHTML writes a page with the pruned-mass histogram, the ungroomed jet
// pt, eta and multiplicity histograms and, when any jet has a defined
// volatility, the volatility histogram.
func RenderHTML(w io.Writer, results map[int]engine.JetResult) error {
	mass := PrunedMassHistogram(results)

	page := components.NewPage()
	page.PageTitle = "Jet substructure"
	page.AddCharts(histogramBar(mass, "Pruned jet mass",
		fmt.Sprintf("jets=%d entries=%.0f overflow=%.0f", len(results), mass.Entries(), mass.Overflow),
		"pruned mass (GeV)"))

	for _, c := range []struct {
		h      *Histogram
		title  string
		series string
	}{
		{JetPtHistogram(results), "Jet pT", "pt (GeV)"},
		{JetEtaHistogram(results), "Jet eta", "eta"},
		{MultiplicityHistogram(results), "Jet multiplicity", "constituents"},
	} {
		page.AddCharts(histogramBar(c.h, c.title,
			fmt.Sprintf("entries=%.0f underflow=%.0f overflow=%.0f", c.h.Entries(), c.h.Underflow, c.h.Overflow),
			c.series))
	}

	var vols []float64
	for _, r := range Ordered(results) {
		if r.Err == nil && r.VolatilityDefined {
			vols = append(vols, r.Volatility)
		}
	}
	if len(vols) > 0 {
		hi := floats.Max(vols)
		if hi <= 0 {
			hi = 1
		}
		// Widen slightly so the maximum lands inside the last bin.
		vh := NewHistogram(vols, volatilityBins, 0, hi*1.0001)
		page.AddCharts(histogramBar(vh, "Mass volatility",
			fmt.Sprintf("jets=%d mean=%.4f", len(vols), floats.Sum(vols)/float64(len(vols))),
			"volatility"))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
