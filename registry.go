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
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// fatalf reports a resource accounting violation, which is a programming
// error rather than a runtime condition: continuing after one would sooner
// or later turn into a use-after-close. It panics. It is a variable so
// tests can intercept it.
var fatalf = func(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// NotTrackedError is returned by Registry.Release when the released reader
// has no matching Acquire. It indicates an accounting bug elsewhere in the
// program and must not be ignored.
type NotTrackedError struct {
	Resource Reader
}

func (e NotTrackedError) Error() string {
	return "gridselect: release of a resource with no matching acquire"
}

// A Registry reference-counts open readers and decides when each one is
// actually closed. All methods are safe for concurrent use; one lock around
// the count map prevents lost updates from concurrent acquire/release
// pairs.
type Registry struct {
	mx   sync.Mutex
	refs map[Reader]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{refs: make(map[Reader]int)}
}

// Acquire adds a reference to r, beginning at one if r is not currently
// tracked.
func (g *Registry) Acquire(r Reader) {
	g.mx.Lock()
	defer g.mx.Unlock()
	g.refs[r]++
}

// Release removes a reference from r. When the count reaches zero the entry
// is removed and r is closed synchronously, before Release returns; a close
// failure is logged but the resource is still considered closed. Releasing
// a reader that is not tracked returns a NotTrackedError.
func (g *Registry) Release(r Reader) error {
	g.mx.Lock()
	defer g.mx.Unlock()
	n, ok := g.refs[r]
	if !ok {
		return NotTrackedError{Resource: r}
	}
	if n > 1 {
		g.refs[r] = n - 1
		return nil
	}
	delete(g.refs, r)
	if err := r.Close(); err != nil {
		logrus.WithError(err).Warn("gridselect: closing released resource")
	}
	return nil
}

// Count returns the current reference count for r, or zero if r is not
// tracked.
func (g *Registry) Count(r Reader) int {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.refs[r]
}

// Tracked returns the number of readers currently holding at least one
// reference.
func (g *Registry) Tracked() int {
	g.mx.Lock()
	defer g.mx.Unlock()
	return len(g.refs)
}
