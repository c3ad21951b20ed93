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
	"context"
	"image"

	"github.com/ctessum/sparse"
)

// Mode specifies how much work opening a dataset should do.
type Mode int

const (
	// ModeBrowse opens a dataset quickly for metadata browsing and preview
	// rendering. Features that require expensive setup, such as geolocation
	// indexing, may be unavailable in this mode.
	ModeBrowse Mode = iota

	// ModeFull opens a dataset with all features enabled. It is used when a
	// selection is finalized and the resulting reader is handed to the
	// caller for further use.
	ModeFull
)

func (m Mode) String() string {
	switch m {
	case ModeBrowse:
		return "browse"
	case ModeFull:
		return "full"
	default:
		return "unknown"
	}
}

// A Reader is an open handle to a dataset. Readers are compared by identity;
// the same Reader value must never be handed out for two different open
// operations. A Reader is closed exactly once, by the Registry when its
// reference count reaches zero, or by whoever ends up owning it.
type Reader interface {
	// Variables returns the names of the data variables in the dataset.
	Variables() []string

	// Statistics computes summary statistics for the given variable,
	// optionally restricted by c. A nil c means the whole variable.
	Statistics(variable string, c *Constraints) (*Stats, error)

	// Close releases the resources held by the reader.
	Close() error
}

// A GridReader is a Reader that can also return the gridded values of a
// variable, which is what preview rendering needs.
type GridReader interface {
	Reader

	// Grid reads the values of the given variable, optionally restricted
	// by c, into a dense array.
	Grid(variable string, c *Constraints) (*sparse.DenseArray, error)
}

// An Opener creates a Reader for the dataset identified by source. It is
// called from a background goroutine and should honor cancellation of ctx
// during blocking work. The returned reader is owned by the caller.
type Opener func(ctx context.Context, source string, mode Mode) (Reader, error)

// A Renderer creates a preview image of one variable of a dataset. It is
// called from a background goroutine; it must not retain r after returning
// and should honor cancellation of ctx between expensive steps.
type Renderer interface {
	Render(ctx context.Context, r Reader, variable string) (image.Image, error)
}

// Constraints restricts an operation to a hyperslab of a variable. Start
// and End are per-dimension index bounds in the variable's dimension order,
// with End exclusive. A nil Constraints means the whole variable.
type Constraints struct {
	Start, End []int
}

// Stats holds summary statistics for one variable.
type Stats struct {
	Count int // number of values visited
	Valid int // values that were not fill values

	Min, Max float64
	Mean     float64
	StdDev   float64 // sample standard deviation
}
