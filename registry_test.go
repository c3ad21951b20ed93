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

package gridselect

import (
	"sync"
	"testing"
)

func TestRegistryAcquireRelease(t *testing.T) {
	g := NewRegistry()
	r := &fakeReader{source: "a.nc"}

	g.Acquire(r)
	g.Acquire(r)
	if c := g.Count(r); c != 2 {
		t.Errorf("count after two acquires: %d; want 2", c)
	}
	if err := g.Release(r); err != nil {
		t.Fatal(err)
	}
	if c := g.Count(r); c != 1 {
		t.Errorf("count after release: %d; want 1", c)
	}
	if n := r.closeCount(); n != 0 {
		t.Errorf("reader closed %d times while still referenced", n)
	}
	if err := g.Release(r); err != nil {
		t.Fatal(err)
	}
	if n := r.closeCount(); n != 1 {
		t.Errorf("reader closed %d times; want exactly 1", n)
	}
	if n := g.Tracked(); n != 0 {
		t.Errorf("%d tracked resources after final release; want 0", n)
	}
}

func TestRegistryReleaseNotTracked(t *testing.T) {
	g := NewRegistry()
	r := &fakeReader{source: "a.nc"}
	err := g.Release(r)
	if err == nil {
		t.Fatal("release of untracked resource did not fail")
	}
	nt, ok := err.(NotTrackedError)
	if !ok {
		t.Fatalf("release of untracked resource returned %T; want NotTrackedError", err)
	}
	if nt.Resource != Reader(r) {
		t.Error("NotTrackedError does not identify the released resource")
	}
	if n := r.closeCount(); n != 0 {
		t.Errorf("untracked resource closed %d times; want 0", n)
	}
}

// TestRegistryConcurrent checks that concurrent acquire/release pairs do
// not lose updates and that close still happens exactly once.
func TestRegistryConcurrent(t *testing.T) {
	g := NewRegistry()
	r := &fakeReader{source: "a.nc"}
	g.Acquire(r) // baseline reference held for the duration

	const workers = 32
	const rounds = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				g.Acquire(r)
				if err := g.Release(r); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if c := g.Count(r); c != 1 {
		t.Errorf("count after concurrent churn: %d; want 1", c)
	}
	if n := r.closeCount(); n != 0 {
		t.Errorf("reader closed %d times while still referenced", n)
	}
	if err := g.Release(r); err != nil {
		t.Fatal(err)
	}
	if n := r.closeCount(); n != 1 {
		t.Errorf("reader closed %d times; want exactly 1", n)
	}
}
