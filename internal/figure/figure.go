// Package figure renders spike records as PNG figures: a raster of the
// first neurons and a histogram of population spike counts per step.
package figure

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/nvandessel/brunel/internal/export"
)

// RasterNeurons is the number of leading neurons drawn in a raster.
const RasterNeurons = 30

const (
	width  = 8 * vg.Inch
	height = 4 * vg.Inch
)

// Raster returns a scatter of spike time against neuron index for neurons
// below RasterNeurons.
func Raster(records []export.Record, title string) (*plot.Plot, error) {
	pts := rasterPoints(records)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time [ms]"
	p.Y.Label.Text = "neuron identifier"
	p.Y.Min, p.Y.Max = -1, RasterNeurons

	if len(pts) == 0 {
		return p, nil
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build raster: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 204}
	p.Add(scatter)
	return p, nil
}

// Histogram returns the number of spikes per step across the population,
// one bin per stepSize milliseconds.
func Histogram(records []export.Record, stepSize float64, title string) (*plot.Plot, error) {
	if stepSize <= 0 {
		return nil, fmt.Errorf("histogram bin width must be positive, got %v", stepSize)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time [ms]"
	p.Y.Label.Text = fmt.Sprintf("number of spikes per %g ms", stepSize)
	if len(records) == 0 {
		return p, nil
	}

	h := &plotter.Histogram{
		Bins:      histogramBins(records, stepSize),
		Width:     stepSize,
		FillColor: color.RGBA{R: 31, G: 119, B: 180, A: 191},
		LineStyle: draw.LineStyle{Color: color.RGBA{R: 31, G: 119, B: 180, A: 255}, Width: vg.Points(0.25)},
	}
	p.Add(h)
	return p, nil
}

func rasterPoints(records []export.Record) plotter.XYs {
	pts := make(plotter.XYs, 0, len(records))
	for _, r := range records {
		if r.Neuron < RasterNeurons {
			pts = append(pts, plotter.XY{X: r.TimeMS, Y: float64(r.Neuron)})
		}
	}
	return pts
}

// histogramBins counts records per step between the first and last
// recorded step. records must not be empty.
func histogramBins(records []export.Record, stepSize float64) []plotter.HistogramBin {
	first, last := records[0].Step, records[0].Step
	for _, r := range records[1:] {
		first = min(first, r.Step)
		last = max(last, r.Step)
	}
	bins := make([]plotter.HistogramBin, last-first+1)
	for i := range bins {
		lo := float64(first+i) * stepSize
		bins[i] = plotter.HistogramBin{Min: lo, Max: lo + stepSize}
	}
	for _, r := range records {
		bins[r.Step-first].Weight++
	}
	return bins
}

// WritePNG encodes p as a PNG.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to render figure: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write figure: %w", err)
	}
	return nil
}

// Paths names the files written by SaveAll.
type Paths struct {
	Raster    string `json:"raster,omitempty"`
	Histogram string `json:"histogram,omitempty"`
}

// SaveAll renders both figures into dir, named after base.
func SaveAll(dir, base string, records []export.Record, stepSize float64) (Paths, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("failed to create figure directory: %w", err)
	}
	paths := Paths{
		Raster:    filepath.Join(dir, base+"_raster.png"),
		Histogram: filepath.Join(dir, base+"_histogram.png"),
	}

	raster, err := Raster(records, base+" raster")
	if err != nil {
		return Paths{}, err
	}
	if err := savePNG(paths.Raster, raster); err != nil {
		return Paths{}, err
	}
	hist, err := Histogram(records, stepSize, base+" population activity")
	if err != nil {
		return Paths{}, err
	}
	if err := savePNG(paths.Histogram, hist); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func savePNG(path string, p *plot.Plot) error {
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}
