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
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spatialmodel/gridselect"
	"github.com/spatialmodel/gridselect/ncf"
	"github.com/spatialmodel/gridselect/render"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSessionConfirm(t *testing.T) {
	source := writeTestDataset(t)
	ss, err := NewSession(ncf.Opener, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()

	ctx := testContext(t)
	variables, err := ss.Choose(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(variables, []string{"sst", "chlor"}) {
		t.Fatalf("variables = %v", variables)
	}

	fr, err := ss.Confirm(ctx, []string{"sst"})
	if err != nil {
		t.Fatal(err)
	}
	defer fr.Reader.Close()
	if fr.Source != source {
		t.Errorf("result source = %q; want %q", fr.Source, source)
	}
	st, ok := fr.Stats["sst"]
	if !ok {
		t.Fatal("result missing sst statistics")
	}
	if st.Min != 1 || st.Max != 12 {
		t.Errorf("sst min = %g, max = %g; want 1, 12", st.Min, st.Max)
	}
	// The finalized reader is a full-mode instance, so geolocation works.
	f, ok := fr.Reader.(*ncf.File)
	if !ok {
		t.Fatalf("result reader is %T; want *ncf.File", fr.Reader)
	}
	if row, col, err := f.Locate(112, 22); err != nil || row != 1 || col != 1 {
		t.Errorf("Locate(112, 22) = (%d, %d), %v; want (1, 1)", row, col, err)
	}
}

func TestSessionPreview(t *testing.T) {
	source := writeTestDataset(t)
	ss, err := NewSession(ncf.Opener, render.New())
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()

	ctx := testContext(t)
	if _, err := ss.Choose(ctx, source); err != nil {
		t.Fatal(err)
	}
	img, err := ss.Preview(ctx, "sst")
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() == 0 {
		t.Error("preview image is empty")
	}
}

// TestSessionChooseDuplicate: choosing the dataset that is already open
// answers right away with the known variable list, without reopening the
// file or waiting for a selector notification.
func TestSessionChooseDuplicate(t *testing.T) {
	source := writeTestDataset(t)
	var opens int32
	opener := func(ctx context.Context, src string, mode gridselect.Mode) (gridselect.Reader, error) {
		atomic.AddInt32(&opens, 1)
		return ncf.Opener(ctx, src, mode)
	}
	ss, err := NewSession(opener, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()

	first, err := ss.Choose(testContext(t), source)
	if err != nil {
		t.Fatal(err)
	}

	// An expired context proves the repeat does not block on anything.
	expired, cancel := context.WithCancel(context.Background())
	cancel()
	again, err := ss.Choose(expired, source)
	if err != nil {
		t.Fatalf("choosing the open dataset again: %v", err)
	}
	if !reflect.DeepEqual(again, first) {
		t.Errorf("repeated choose returned %v; want %v", again, first)
	}
	if n := atomic.LoadInt32(&opens); n != 1 {
		t.Errorf("dataset opened %d times; want 1", n)
	}
}

func TestSessionChooseError(t *testing.T) {
	ss, err := NewSession(ncf.Opener, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()

	if _, err := ss.Choose(testContext(t), "no-such-file.nc"); err == nil {
		t.Error("choosing a missing dataset did not fail")
	}
}

func TestSessionConfirmNoVariables(t *testing.T) {
	ss, err := NewSession(ncf.Opener, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()

	if _, err := ss.Confirm(testContext(t), nil); err == nil {
		t.Error("confirming an empty selection did not fail")
	}
}
