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

package gridselectutil

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/cdf"

	"github.com/spatialmodel/gridselect"
	"github.com/spatialmodel/gridselect/ncf"
)

// writeTestDataset creates a small NetCDF dataset with lat/lon
// coordinate variables and two data variables.
func writeTestDataset(t *testing.T) string {
	t.Helper()
	h := cdf.NewHeader([]string{"lat", "lon"}, []int{3, 4})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("sst", []string{"lat", "lon"}, []float32{0})
	h.AddAttribute("sst", "description", "sea surface temperature")
	h.AddAttribute("sst", "units", "degC")
	h.AddVariable("chlor", []string{"lat", "lon"}, []float64{0})
	h.Define()
	for _, err := range h.Check() {
		t.Fatal(err)
	}

	name := filepath.Join(t.TempDir(), "test.nc")
	ff, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}
	write := func(v string, buf interface{}) {
		w := f.Writer(v, make([]int, len(f.Header.Dimensions(v))), f.Header.Lengths(v))
		if _, err := w.Write(buf); err != nil {
			t.Fatalf("writing %s: %v", v, err)
		}
	}
	write("lat", []float64{10, 20, 30})
	write("lon", []float64{100, 110, 120, 130})
	write("sst", []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12})
	write("chlor", []float64{
		0, 0.5, 1, 1.5,
		2, 2.5, 3, 3.5,
		4, 4.5, 5, 5.5})
	if err := cdf.UpdateNumRecs(ff); err != nil {
		t.Fatal(err)
	}
	if err := ff.Close(); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestVariablesCmd(t *testing.T) {
	Cfg.Set("source", writeTestDataset(t))
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	Root.SetArgs([]string{"variables"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "sst: sea surface temperature [degC]") {
		t.Errorf("output missing annotated sst line:\n%s", out)
	}
	if !strings.Contains(out, "chlor") {
		t.Errorf("output missing chlor:\n%s", out)
	}
	if strings.Contains(out, "lat") {
		t.Errorf("output lists a coordinate variable:\n%s", out)
	}
}

func TestStatsCmd(t *testing.T) {
	source := writeTestDataset(t)
	output := filepath.Join(t.TempDir(), "stats.toml")
	Cfg.Set("source", source)
	Cfg.Set("output", output)
	Cfg.Set("variables", []string{"sst"})
	Root.SetArgs([]string{"stats"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	var s summary
	if _, err := toml.DecodeFile(output, &s); err != nil {
		t.Fatal(err)
	}
	if s.Source != source {
		t.Errorf("summary source = %q; want %q", s.Source, source)
	}
	v, ok := s.Variables["sst"]
	if !ok {
		t.Fatal("summary missing sst")
	}
	if v.Min != 1 || v.Max != 12 || v.Valid != 12 {
		t.Errorf("sst summary = %+v", v)
	}
	if v.Units != "degC" {
		t.Errorf("sst units = %q; want degC", v.Units)
	}
	if _, ok := s.Variables["chlor"]; ok {
		t.Error("summary includes an unrequested variable")
	}
}

func TestPreviewCmd(t *testing.T) {
	output := filepath.Join(t.TempDir(), "preview.png")
	Cfg.Set("source", writeTestDataset(t))
	Cfg.Set("output", output)
	Cfg.Set("variable", "sst")
	Root.SetArgs([]string{"preview"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	ff, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	img, err := png.Decode(ff)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() == 0 {
		t.Error("preview image is empty")
	}
}

func TestExportCmd(t *testing.T) {
	source := writeTestDataset(t)
	output := filepath.Join(t.TempDir(), "out.nc")
	Cfg.Set("source", source)
	Cfg.Set("output", output)
	Cfg.Set("variables", []string{"sst"})
	Root.SetArgs([]string{"export"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	f, err := ncf.Open(output, gridselect.ModeBrowse)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if v := f.Variables(); len(v) != 1 || v[0] != "sst" {
		t.Errorf("exported variables = %v; want [sst]", v)
	}
	st, err := f.Statistics("sst", nil)
	if err != nil {
		t.Fatal(err)
	}
	if st.Min != 1 || st.Max != 12 {
		t.Errorf("exported sst min = %g, max = %g; want 1, 12", st.Min, st.Max)
	}
}

func TestLocateCmd(t *testing.T) {
	Cfg.Set("source", writeTestDataset(t))
	Cfg.Set("x", 112.0)
	Cfg.Set("y", 22.0)
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	Root.SetArgs([]string{"locate"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); !strings.Contains(got, "row: 1, col: 1") {
		t.Errorf("locate output = %q; want row 1, col 1", got)
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), gridselect.Version) {
		t.Errorf("version output = %q", buf.String())
	}
}

func TestMissingSource(t *testing.T) {
	Cfg.Set("source", "")
	Root.SetArgs([]string{"variables"})
	if err := Root.Execute(); err == nil {
		t.Error("variables with no source did not fail")
	}
}
