/*
Copyright © 2026 the GridSelect authors.
This file is part of GridSelect.

GridSelect is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GridSelect is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GridSelect.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package render draws preview images of gridded dataset variables.
package render

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/spatialmodel/gridselect"
)

// Renderer draws heatmap previews of dataset variables. It implements
// gridselect.Renderer for readers that also implement
// gridselect.GridReader.
type Renderer struct {
	// Width and Height are the dimensions of the rendered image.
	Width, Height vg.Length

	// Colors is the number of colors in the heatmap palette.
	Colors int
}

// New creates a Renderer with default dimensions.
func New() *Renderer {
	return &Renderer{
		Width:  12 * vg.Centimeter,
		Height: 8 * vg.Centimeter,
		Colors: 100,
	}
}

// fillValuer is implemented by readers that know their variables' fill
// values.
type fillValuer interface {
	FillValue(variable string) (float64, bool)
}

// Render draws a heatmap of the given variable. For variables with more
// than two dimensions, the first index of each leading dimension is
// rendered.
func (rn *Renderer) Render(ctx context.Context, r gridselect.Reader, variable string) (image.Image, error) {
	gr, ok := r.(gridselect.GridReader)
	if !ok {
		return nil, fmt.Errorf("render: reader %T cannot supply gridded data", r)
	}
	data, err := gr.Grid(variable, nil)
	if err != nil {
		return nil, fmt.Errorf("render: %s: %v", variable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data.Shape) < 2 {
		return nil, fmt.Errorf("render: %s has %d dimensions; rendering requires at least 2", variable, len(data.Shape))
	}

	var fill float64
	var hasFill bool
	if fv, ok := r.(fillValuer); ok {
		fill, hasFill = fv.FillValue(variable)
	}
	g, err := newUnitGrid(data, fill, hasFill)
	if err != nil {
		return nil, fmt.Errorf("render: %s: %v", variable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := plot.New()
	if err != nil {
		return nil, fmt.Errorf("render: %s: %v", variable, err)
	}
	p.HideAxes()
	p.Add(plotter.NewHeatMap(g, palette.Heat(rn.Colors, 1)))

	c := vgimg.New(rn.Width, rn.Height)
	p.Draw(vgdraw.New(c))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Image(), nil
}

// unitGrid adapts the last two dimensions of a dense array to the
// plotter.GridXYZ interface, with unit spacing between grid cells.
// Invalid values are replaced with the minimum valid value so they read
// as background rather than breaking the color scale.
type unitGrid struct {
	data     *sparse.DenseArray
	rows     int
	cols     int
	leading  []int
	fill     float64
	hasFill  bool
	minValid float64
}

func newUnitGrid(data *sparse.DenseArray, fill float64, hasFill bool) (*unitGrid, error) {
	n := len(data.Shape)
	g := &unitGrid{
		data:    data,
		rows:    data.Shape[n-2],
		cols:    data.Shape[n-1],
		leading: make([]int, n-2),
		fill:    fill,
		hasFill: hasFill,
	}
	var valid []float64
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if v := g.at(c, r); !g.invalid(v) {
				valid = append(valid, v)
			}
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid data")
	}
	g.minValid = floats.Min(valid)
	return g, nil
}

func (g *unitGrid) invalid(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || (g.hasFill && v == g.fill)
}

func (g *unitGrid) at(c, r int) float64 {
	index := append(append([]int(nil), g.leading...), r, c)
	return g.data.Get(index...)
}

func (g *unitGrid) Dims() (c, r int) { return g.cols, g.rows }
func (g *unitGrid) X(c int) float64  { return float64(c) }
func (g *unitGrid) Y(r int) float64  { return float64(r) }

// Z inverts the row order so the first data row draws at the top of the
// image, matching how grids are usually displayed.
func (g *unitGrid) Z(c, r int) float64 {
	v := g.at(c, g.rows-1-r)
	if g.invalid(v) {
		return g.minValid
	}
	return v
}
