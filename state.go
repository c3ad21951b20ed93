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

// State is the externally observable condition of a selection session.
type State int

const (
	// Unselected is the initial state: no active dataset, or no variables
	// chosen from it.
	Unselected State = iota

	// Ready means an active dataset is present and at least one of its
	// variables is selected, so the selection can be confirmed.
	Ready

	// Selected means finalization has completed and the result is waiting
	// to be consumed. It is terminal for the session until the session is
	// cancelled or closed.
	Selected
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Ready:
		return "ready"
	case Selected:
		return "selected"
	default:
		return "invalid"
	}
}

// stateMachine derives the observable state and notifies an observer on
// transitions. It is driven only from the Selector's event loop; a
// notification fires only when the derived state actually differs from the
// previous one.
type stateMachine struct {
	current State
	notify  func(State)
}

func (m *stateMachine) transition(next State) {
	if next == m.current {
		return
	}
	m.current = next
	if m.notify != nil {
		m.notify(next)
	}
}
