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

// Package ncf reads gridded geophysical datasets from NetCDF files.
package ncf

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"

	"github.com/spatialmodel/gridselect"
)

// File allows interaction with a NetCDF-formatted gridded dataset. It
// implements gridselect.GridReader. A File opened in browse mode skips
// building the geolocation index, so it opens faster but Locate is
// unavailable; full mode builds the index from the coordinate variables.
type File struct {
	cdf.File
	ff     *os.File
	source string
	mode   gridselect.Mode

	// vars holds the data variables in header order, excluding
	// coordinate variables.
	vars []string

	// index maps locations to grid cells. It is only built in full mode.
	index  *rtree.Rtree
	rowDim string
	colDim string

	// CacheSize specifies the number of grid reads to be held in the
	// memory cache. Larger numbers lead to faster operation but greater
	// memory use. The default is 100. CacheSize can only be changed
	// before the File is first read from.
	CacheSize int

	// gridCache is a cache for grid reads.
	gridCache *requestcache.Cache
	// gridInit is used to initialize gridCache.
	gridInit sync.Once
}

// gridCell is one horizontal grid cell, for the geolocation index.
type gridCell struct {
	geom.Polygonal
	Row, Col int
}

// Open opens the NetCDF file at filename. In full mode it also builds
// the geolocation index from the dataset's coordinate variables.
func Open(filename string, mode gridselect.Mode) (*File, error) {
	ff, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("ncf: opening %s: %w", filename, err)
	}
	cf, err := cdf.Open(ff)
	if err != nil {
		ff.Close()
		return nil, fmt.Errorf("ncf: opening %s: %v", filename, err)
	}
	f := &File{
		File:      *cf,
		ff:        ff,
		source:    filename,
		mode:      mode,
		CacheSize: 100,
	}

	coord := make(map[string]bool)
	for _, v := range f.Header.Variables() {
		dims := f.Header.Dimensions(v)
		if len(dims) == 1 && dims[0] == v {
			coord[v] = true
		}
	}
	for _, v := range f.Header.Variables() {
		if !coord[v] {
			f.vars = append(f.vars, v)
		}
	}
	if len(f.vars) == 0 {
		ff.Close()
		return nil, fmt.Errorf("ncf: %s contains no data variables", filename)
	}

	if mode == gridselect.ModeFull {
		if err := f.buildIndex(coord); err != nil {
			ff.Close()
			return nil, fmt.Errorf("ncf: indexing %s: %v", filename, err)
		}
	}
	return f, nil
}

// Opener adapts Open to the gridselect.Opener signature.
func Opener(ctx context.Context, source string, mode gridselect.Mode) (gridselect.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Open(source, mode)
}

// Source returns the name of the file the data comes from.
func (f *File) Source() string { return f.source }

// Mode returns the mode the file was opened in.
func (f *File) Mode() gridselect.Mode { return f.mode }

// Variables returns the names of the data variables in the file, in
// header order. Coordinate variables are not included.
func (f *File) Variables() []string {
	return append([]string(nil), f.vars...)
}

// Close closes the underlying file.
func (f *File) Close() error {
	if err := f.ff.Close(); err != nil {
		return fmt.Errorf("ncf: closing %s: %v", f.source, err)
	}
	return nil
}

// buildIndex creates the geolocation index from the coordinate variables
// for the horizontal dimensions of the first data variable. The cell
// edges are taken to be halfway between neighboring grid centers.
func (f *File) buildIndex(coord map[string]bool) error {
	dims := f.Header.Dimensions(f.vars[0])
	if len(dims) < 2 {
		return fmt.Errorf("variable %s has %d dimensions; geolocation requires 2", f.vars[0], len(dims))
	}
	rowDim := dims[len(dims)-2]
	colDim := dims[len(dims)-1]
	if !coord[rowDim] || !coord[colDim] {
		return fmt.Errorf("missing coordinate variables for dimensions %s and %s", rowDim, colDim)
	}
	y, err := f.readFloats(rowDim, nil, nil)
	if err != nil {
		return err
	}
	x, err := f.readFloats(colDim, nil, nil)
	if err != nil {
		return err
	}
	if len(y) < 2 || len(x) < 2 {
		return fmt.Errorf("coordinate variables %s and %s are too short to define cell edges", rowDim, colDim)
	}
	ye := edges(y)
	xe := edges(x)

	f.index = rtree.NewTree(25, 50)
	f.rowDim, f.colDim = rowDim, colDim
	for i := 0; i < len(y); i++ {
		for j := 0; j < len(x); j++ {
			y0, y1 := math.Min(ye[i], ye[i+1]), math.Max(ye[i], ye[i+1])
			x0, x1 := math.Min(xe[j], xe[j+1]), math.Max(xe[j], xe[j+1])
			cell := &gridCell{
				Polygonal: geom.Polygon{{
					{X: x0, Y: y0}, {X: x1, Y: y0},
					{X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}},
				Row: i, Col: j,
			}
			f.index.Insert(cell)
		}
	}
	return nil
}

// edges returns the n+1 cell edges implied by n cell centers.
func edges(centers []float64) []float64 {
	n := len(centers)
	e := make([]float64, n+1)
	e[0] = centers[0] - (centers[1]-centers[0])/2
	for i := 1; i < n; i++ {
		e[i] = (centers[i-1] + centers[i]) / 2
	}
	e[n] = centers[n-1] + (centers[n-1]-centers[n-2])/2
	return e
}

// Locate returns the row and column indices of the grid cell containing
// the point (x, y). It is only available in full mode.
func (f *File) Locate(x, y float64) (row, col int, err error) {
	if f.mode != gridselect.ModeFull {
		return 0, 0, fmt.Errorf("ncf: locating (%g, %g) in %s: geolocation requires full mode", x, y, f.source)
	}
	p := geom.Point{X: x, Y: y}
	for _, cI := range f.index.SearchIntersect(p.Bounds()) {
		c := cI.(*gridCell)
		if p.Within(c.Polygonal) == geom.Outside {
			continue
		}
		return c.Row, c.Col, nil
	}
	return 0, 0, fmt.Errorf("ncf: point (%g, %g) is outside the %s grid", x, y, f.source)
}

// Grid returns the data for the given variable as a dense array, read
// through the memory cache. If c is non-nil, only the constrained
// hyperslab is read and the array shape is the constrained extent.
// Changes to the returned array will alter the cached copy; callers
// wanting to modify the data should copy it first.
func (f *File) Grid(variable string, c *gridselect.Constraints) (*sparse.DenseArray, error) {
	f.gridInit.Do(func() {
		f.gridCache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			r := request.(gridRequest)
			return f.readGrid(r.variable, r.constraints)
		}, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(f.CacheSize))
	})
	key := variable
	if c != nil {
		key = fmt.Sprintf("%s_%v_%v", variable, c.Start, c.End)
	}
	req := f.gridCache.NewRequest(context.TODO(),
		gridRequest{variable: variable, constraints: c}, key)
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.(*sparse.DenseArray), nil
}

type gridRequest struct {
	variable    string
	constraints *gridselect.Constraints
}

// lengths returns the variable's dimension lengths. A record variable's
// outermost length is stored as zero in the header; the actual number of
// records is derived from the file size.
func (f *File) lengths(variable string) ([]int, error) {
	l := append([]int(nil), f.Header.Lengths(variable)...)
	if f.Header.IsRecordVariable(variable) {
		fi, err := f.ff.Stat()
		if err != nil {
			return nil, err
		}
		l[0] = int(f.Header.NumRecs(fi.Size()))
	}
	return l, nil
}

// readGrid reads a variable (or a hyperslab of it) from the file.
func (f *File) readGrid(variable string, c *gridselect.Constraints) (*sparse.DenseArray, error) {
	if !f.hasVariable(variable) {
		return nil, fmt.Errorf("ncf: %s has no variable %s", f.source, variable)
	}
	dims, err := f.lengths(variable)
	if err != nil {
		return nil, fmt.Errorf("ncf: reading %s from %s: %v", variable, f.source, err)
	}
	start := make([]int, len(dims))
	end := append([]int(nil), dims...)
	if c != nil {
		if len(c.Start) != len(dims) || len(c.End) != len(dims) {
			return nil, fmt.Errorf("ncf: reading %s from %s: constraint rank %d does not match variable rank %d",
				variable, f.source, len(c.Start), len(dims))
		}
		for i := range c.Start {
			if c.Start[i] < 0 || c.End[i] <= c.Start[i] || c.End[i] > dims[i] {
				return nil, fmt.Errorf("ncf: reading %s from %s: constraint [%d,%d) is outside dimension %d of length %d",
					variable, f.source, c.Start[i], c.End[i], i, dims[i])
			}
			start[i], end[i] = c.Start[i], c.End[i]
		}
	}
	shape := make([]int, len(dims))
	n := 1
	for i := range dims {
		shape[i] = end[i] - start[i]
		n *= shape[i]
	}

	if c == nil && !f.Header.IsRecordVariable(variable) {
		// A fixed-size variable is one contiguous span in the file.
		data, err := f.readFloats(variable, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("ncf: reading %s from %s: %v", variable, f.source, err)
		}
		a := sparse.ZerosDense(shape...)
		copy(a.Elements, data)
		return a, nil
	}

	// A corner-to-corner read covers the linear span between the corners,
	// not the hyperslab they bound, so the slab is assembled one contiguous
	// innermost run at a time, stepping an odometer over the outer
	// constrained indices.
	a := sparse.ZerosDense(shape...)
	last := len(dims) - 1
	run := shape[last]
	idx := append([]int(nil), start...)
	for off := 0; off < n; off += run {
		b := append([]int(nil), idx...)
		e := append([]int(nil), idx...)
		e[last] = end[last] - 1 // cdf reads are end-inclusive.
		data, err := f.readFloats(variable, b, e)
		if err != nil {
			return nil, fmt.Errorf("ncf: reading %s from %s: %v", variable, f.source, err)
		}
		copy(a.Elements[off:off+run], data)
		for i := last - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < end[i] {
				break
			}
			idx[i] = start[i]
		}
	}
	return a, nil
}

// readFloats reads float64 data from the file, regardless of the stored
// type. With nil corners it reads a whole fixed-size variable; otherwise
// it reads the end-inclusive span between the corners.
func (f *File) readFloats(variable string, start, end []int) ([]float64, error) {
	r := f.Reader(variable, start, end)
	n := -1
	if start != nil {
		n = 1
		for i := range start {
			n *= end[i] - start[i] + 1
		}
	}
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int8:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported variable type %T", buf)
	}
}

func (f *File) hasVariable(variable string) bool {
	for _, v := range f.vars {
		if v == variable {
			return true
		}
	}
	return false
}

// Statistics computes summary statistics for a variable, ignoring NaN
// values and values equal to the variable's fill value.
func (f *File) Statistics(variable string, c *gridselect.Constraints) (*gridselect.Stats, error) {
	a, err := f.Grid(variable, c)
	if err != nil {
		return nil, err
	}
	fill, hasFill := f.FillValue(variable)
	var d stats.Stats
	for _, v := range a.Elements {
		if math.IsNaN(v) || (hasFill && v == fill) {
			continue
		}
		d.Update(v)
	}
	out := &gridselect.Stats{
		Count: len(a.Elements),
		Valid: d.Count(),
	}
	if d.Count() > 0 {
		out.Min = d.Min()
		out.Max = d.Max()
		out.Mean = d.Mean()
	}
	if d.Count() > 1 {
		out.StdDev = d.SampleStandardDeviation()
	}
	return out, nil
}

// FillValue returns the variable's fill value, from the _FillValue
// attribute or, failing that, missing_value. ok is false if the variable
// has neither.
func (f *File) FillValue(variable string) (fill float64, ok bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := f.Header.GetAttribute(variable, name)
		if a == nil {
			continue
		}
		switch v := a.(type) {
		case []float64:
			if len(v) > 0 {
				return v[0], true
			}
		case []float32:
			if len(v) > 0 {
				return float64(v[0]), true
			}
		case []int32:
			if len(v) > 0 {
				return float64(v[0]), true
			}
		}
	}
	return 0, false
}

// Description returns the variable's description attribute, or "" if it
// has none.
func (f *File) Description(variable string) string {
	return f.stringAttribute(variable, "description", "long_name")
}

// Units returns the variable's units attribute, or "" if it has none.
func (f *File) Units(variable string) string {
	return f.stringAttribute(variable, "units")
}

func (f *File) stringAttribute(variable string, names ...string) string {
	for _, name := range names {
		if a := f.Header.GetAttribute(variable, name); a != nil {
			if s, ok := a.(string); ok {
				return s
			}
		}
	}
	return ""
}
