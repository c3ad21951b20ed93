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

package ncf

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"

	"github.com/spatialmodel/gridselect"
)

// Export writes the named variables from src to a new NetCDF file at
// outfile, preserving each variable's stored type, dimensions,
// description and units, along with the coordinate variables for the
// dimensions in use. If stats is non-nil, the summary statistics for
// each exported variable are recorded as variable attributes.
func Export(outfile string, src *File, variables []string, stats map[string]*gridselect.Stats) error {
	if len(variables) == 0 {
		return fmt.Errorf("ncf: exporting to %s: no variables selected", outfile)
	}
	for _, v := range variables {
		if !src.hasVariable(v) {
			return fmt.Errorf("ncf: exporting to %s: %s has no variable %s", outfile, src.source, v)
		}
	}

	// Read everything up front so a read failure cannot leave a
	// half-written output file behind.
	type varData struct {
		name string
		dims []string
		buf  interface{} // the raw typed buffer, written back as read.
	}
	var out []varData
	dimSet := make(map[string]bool)
	var dims []string
	addVar := func(v string) error {
		l, err := src.lengths(v)
		if err != nil {
			return fmt.Errorf("ncf: exporting to %s: reading %s: %v", outfile, v, err)
		}
		n := 1
		for _, d := range l {
			n *= d
		}
		r := src.Reader(v, nil, nil)
		buf := r.Zero(n)
		if _, err := r.Read(buf); err != nil {
			return fmt.Errorf("ncf: exporting to %s: reading %s: %v", outfile, v, err)
		}
		vdims := src.Header.Dimensions(v)
		for _, d := range vdims {
			if !dimSet[d] {
				dimSet[d] = true
				dims = append(dims, d)
			}
		}
		out = append(out, varData{name: v, dims: vdims, buf: buf})
		return nil
	}
	for _, v := range variables {
		if err := addVar(v); err != nil {
			return err
		}
	}
	// Coordinate variables for the dimensions in use.
	for _, c := range src.Header.Variables() {
		cdims := src.Header.Dimensions(c)
		if len(cdims) == 1 && cdims[0] == c && dimSet[c] {
			if err := addVar(c); err != nil {
				return err
			}
		}
	}

	lengths := make([]int, len(dims))
	for i, d := range dims {
		lengths[i] = dimLength(src, d)
		if lengths[i] == 0 {
			return fmt.Errorf("ncf: exporting to %s: cannot determine length of dimension %s", outfile, d)
		}
	}

	h := cdf.NewHeader(dims, lengths)
	for _, vd := range out {
		h.AddVariable(vd.name, vd.dims, template(vd.buf))
		if d := src.Description(vd.name); d != "" {
			h.AddAttribute(vd.name, "description", d)
		}
		if u := src.Units(vd.name); u != "" {
			h.AddAttribute(vd.name, "units", u)
		}
		if fill, ok := src.FillValue(vd.name); ok {
			h.AddAttribute(vd.name, "_FillValue", []float64{fill})
		}
		if st, ok := stats[vd.name]; ok {
			h.AddAttribute(vd.name, "min", []float64{st.Min})
			h.AddAttribute(vd.name, "max", []float64{st.Max})
			h.AddAttribute(vd.name, "mean", []float64{st.Mean})
		}
	}
	h.AddAttribute("", "source", src.source)
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("ncf: exporting to %s: %v", outfile, err)
	}

	ff, err := os.Create(outfile)
	if err != nil {
		return fmt.Errorf("ncf: exporting to %s: %v", outfile, err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("ncf: exporting to %s: %v", outfile, err)
	}
	for _, vd := range out {
		begin := make([]int, len(vd.dims))
		end := f.Header.Lengths(vd.name)
		w := f.Writer(vd.name, begin, end)
		if _, err := w.Write(vd.buf); err != nil {
			return fmt.Errorf("ncf: exporting to %s: writing %s: %v", outfile, vd.name, err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("ncf: exporting to %s: %v", outfile, err)
	}
	return nil
}

// dimLength returns the length of the named dimension by finding a
// variable that uses it. A record dimension's length is its current
// record count; the exported copy is a fixed-size snapshot.
func dimLength(src *File, dim string) int {
	for _, v := range src.Header.Variables() {
		for i, d := range src.Header.Dimensions(v) {
			if d == dim {
				l, err := src.lengths(v)
				if err != nil {
					return 0
				}
				return l[i]
			}
		}
	}
	return 0
}

// template returns a zero-length-compatible value of the buffer's element
// type, for declaring the variable in a new header.
func template(buf interface{}) interface{} {
	switch buf.(type) {
	case []float64:
		return []float64{0}
	case []float32:
		return []float32{0}
	case []int32:
		return []int32{0}
	case []int16:
		return []int16{0}
	case []int8:
		return []int8{0}
	default:
		return []float64{0}
	}
}
