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
	"fmt"
	"image"

	"github.com/spatialmodel/gridselect"
)

// Session wraps a gridselect.Selector in a synchronous API for
// command-line use, where the caller works through one dataset at a
// time instead of reacting to interleaved events.
type Session struct {
	sel      *gridselect.Selector
	states   chan gridselect.State
	vars     chan []string
	previews chan image.Image
	errs     chan error

	// source and variables of the last successful Choose. The selector
	// suppresses a repeated candidate, so a repeat is answered from here
	// instead of waiting for a notification that will never arrive.
	chosen     string
	chosenVars []string
}

// NewSession creates a Session using the given opener and, optionally,
// renderer.
func NewSession(opener gridselect.Opener, renderer gridselect.Renderer) (*Session, error) {
	ss := &Session{
		states:   make(chan gridselect.State, 16),
		vars:     make(chan []string, 16),
		previews: make(chan image.Image, 1),
		errs:     make(chan error, 16),
	}
	// The callbacks run on the selector's event loop, so they must not
	// block; a full channel drops the notification rather than stalling
	// the selector.
	sel, err := gridselect.NewSelector(gridselect.Config{
		Opener:   opener,
		Renderer: renderer,
		OnState: func(st gridselect.State) {
			select {
			case ss.states <- st:
			default:
			}
		},
		OnVariables: func(source string, variables []string) {
			select {
			case ss.vars <- variables:
			default:
			}
		},
		OnPreview: func(img image.Image) {
			select {
			case ss.previews <- img:
			default:
			}
		},
		OnError: func(err error) {
			select {
			case ss.errs <- err:
			default:
			}
		},
	})
	if err != nil {
		return nil, err
	}
	ss.sel = sel
	return ss, nil
}

// Close shuts the underlying selector down, releasing any open datasets.
func (ss *Session) Close() {
	ss.sel.Close()
}

// Choose opens the given dataset and returns its variable list. Choosing
// the dataset that is already open returns its variables immediately.
func (ss *Session) Choose(ctx context.Context, source string) ([]string, error) {
	if source != "" && source == ss.chosen {
		return append([]string(nil), ss.chosenVars...), nil
	}
	ss.sel.OnCandidateChanged(source)
	select {
	case v := <-ss.vars:
		ss.chosen, ss.chosenVars = source, v
		return v, nil
	case err := <-ss.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Preview selects the single given variable and returns its rendered
// preview image. The Session must have been created with a renderer.
func (ss *Session) Preview(ctx context.Context, variable string) (image.Image, error) {
	ss.sel.OnVariableSelectionChanged([]string{variable})
	select {
	case img := <-ss.previews:
		return img, nil
	case err := <-ss.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Confirm selects the given variables, confirms the selection, and
// returns the finalized result. The caller owns the result's reader.
func (ss *Session) Confirm(ctx context.Context, variables []string) (*gridselect.FinalResult, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("gridselect: confirming selection: no variables selected")
	}
	ss.sel.OnVariableSelectionChanged(variables)
	if err := ss.waitState(ctx, gridselect.Ready); err != nil {
		return nil, err
	}
	ss.sel.OnConfirm()
	if err := ss.waitState(ctx, gridselect.Selected); err != nil {
		return nil, err
	}
	fr := ss.sel.FinalResult()
	if fr == nil {
		return nil, fmt.Errorf("gridselect: confirming selection: no result produced")
	}
	return fr, nil
}

func (ss *Session) waitState(ctx context.Context, want gridselect.State) error {
	if ss.sel.State() == want {
		return nil
	}
	for {
		select {
		case st := <-ss.states:
			if st == want {
				return nil
			}
		case err := <-ss.errs:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
