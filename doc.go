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

// Package gridselect coordinates the lifecycle of expensive dataset readers
// while a user browses, previews, and finally exports gridded geophysical
// data.
//
// Opening a dataset can be slow (large headers must be parsed and
// geolocation indexes built), and an open reader may be shared by several
// concurrent cancellable activities at once: opening a candidate dataset,
// rendering a preview of one of its variables, and computing statistics for
// a final variable selection. The Selector type serializes all of these
// activities onto a single event loop, reference-counts the readers they
// share through a Registry, and exposes the result as a small observable
// state machine (Unselected, Ready, Selected).
//
// The package does not parse any particular file format itself; see the ncf
// subpackage for a NetCDF implementation of the Reader interface and the
// render subpackage for a preview renderer.
package gridselect

// Version gives the version number of this package.
const Version = "0.3.1"
