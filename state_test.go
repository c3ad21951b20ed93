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
	"reflect"
	"testing"
)

func TestStateMachineNotifiesOnlyOnChange(t *testing.T) {
	var got []State
	m := stateMachine{notify: func(s State) { got = append(got, s) }}

	for _, s := range []State{Unselected, Ready, Ready, Selected, Selected, Unselected} {
		m.transition(s)
	}
	want := []State{Ready, Selected, Unselected}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v; want %v", got, want)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Unselected: "unselected",
		Ready:      "ready",
		Selected:   "selected",
		State(42):  "invalid",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q; want %q", int(s), s.String(), want)
		}
	}
}
