package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg" // png/jpg/tif canvases
	_ "gonum.org/v1/plot/vg/vgpdf" // pdf canvas
	_ "gonum.org/v1/plot/vg/vgsvg" // svg canvas
)

// Default figure size.
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// Series is one named curve.
type Series struct {
	Name string
	X, Y []float64
}

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("report: nothing to plot")

// PlotCurves draws the series as lines with a legend and saves the figure
// to path. The file format follows the extension (.svg, .png, .pdf).
func PlotCurves(path, xlabel, ylabel string, series ...Series) error {
	p, err := newCurvePlot(xlabel, ylabel, series)
	if err != nil {
		return err
	}
	if err := p.Save(Width, Height, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// WriteCurves renders the same figure as PlotCurves to w in the given
// format ("svg", "png", "pdf").
func WriteCurves(w io.Writer, format, xlabel, ylabel string, series ...Series) error {
	p, err := newCurvePlot(xlabel, ylabel, series)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func newCurvePlot(xlabel, ylabel string, series []Series) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	drawn := 0
	for i, s := range series {
		if len(s.X) != len(s.Y) {
			return nil, fmt.Errorf("report: series %q has %d x values and %d y values", s.Name, len(s.X), len(s.Y))
		}
		if len(s.X) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.X))
		for j := range s.X {
			pts[j].X, pts[j].Y = s.X[j], s.Y[j]
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("report: series %q: %w", s.Name, err)
		}
		line.Width = vg.Points(2)
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		if s.Name != "" {
			p.Legend.Add(s.Name, line, points)
		}
		drawn++
	}
	if drawn == 0 {
		return nil, ErrNoData
	}
	return p, nil
}

// Grid is a single-channel image, row-major, row 0 at the top.
type Grid struct {
	Rows, Cols int
	Values     []float64
}

// Dims implements plotter.GridXYZ.
func (g Grid) Dims() (c, r int) {
	return g.Cols, g.Rows
}

// Z implements plotter.GridXYZ. Plot rows grow upwards, so they are
// flipped to keep the image upright.
func (g Grid) Z(c, r int) float64 {
	return g.Values[(g.Rows-1-r)*g.Cols+c]
}

// X implements plotter.GridXYZ.
func (g Grid) X(c int) float64 {
	return float64(c)
}

// Y implements plotter.GridXYZ.
func (g Grid) Y(r int) float64 {
	return float64(r)
}

// PlotFeatureMaps draws one heat map per grid, cols per row, and saves
// the figure to path. The file format follows the extension.
func PlotFeatureMaps(path string, maps []Grid, cols int) error {
	if len(maps) == 0 {
		return ErrNoData
	}
	if cols <= 0 {
		cols = len(maps)
	}
	rows := (len(maps) + cols - 1) / cols
	pal := moreland.SmoothBlueRed().Palette(255)

	plots := make([][]*plot.Plot, rows)
	for r := range plots {
		plots[r] = make([]*plot.Plot, cols)
		for c := range plots[r] {
			p := plot.New()
			p.HideAxes()
			plots[r][c] = p

			i := r*cols + c
			if i >= len(maps) {
				continue
			}
			g := maps[i]
			if g.Rows*g.Cols != len(g.Values) || len(g.Values) == 0 {
				return fmt.Errorf("report: feature map %d has %d values for %dx%d", i, len(g.Values), g.Rows, g.Cols)
			}
			hm := plotter.NewHeatMap(g, pal)
			if hm.Min == hm.Max {
				hm.Max = hm.Min + 1
			}
			p.Title.Text = fmt.Sprintf("channel %d", i)
			p.Add(hm)
		}
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	canvas, err := draw.NewFormattedCanvas(vg.Length(cols)*1.5*vg.Inch, vg.Length(rows)*1.7*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("failed to create canvas for %s: %w", path, err)
	}
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Points(2), PadBottom: vg.Points(2),
		PadLeft: vg.Points(2), PadRight: vg.Points(2),
	}
	canvases := plot.Align(plots, tiles, draw.New(canvas))
	for r := range plots {
		for c := range plots[r] {
			plots[r][c].Draw(canvases[r][c])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save feature maps: %w", err)
	}
	if _, err := canvas.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to save feature maps: %w", err)
	}
	return f.Close()
}
