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

	"github.com/sirupsen/logrus"
)

// selectionChanged reacts to a change in the set of selected variables.
// Exactly one selected variable (with an active dataset and a configured
// renderer) starts a preview render; anything else cancels the in-flight
// preview, if any. At most one preview is ever in flight.
func (s *Selector) selectionChanged(variables []string) {
	if s.selected || s.finalizeOp != nil {
		logrus.Warn("gridselect: selection change ignored during or after finalization")
		return
	}
	s.selection = append([]string(nil), variables...)
	s.cancelPreview()

	if len(variables) == 1 && s.active != nil && s.cfg.Renderer != nil {
		r := s.active
		variable := variables[0]

		// The render holds its own reference so the reader cannot be
		// closed mid-render even if the user switches datasets. The
		// rendering context records which reference to release when the
		// operation completes.
		s.registry.Acquire(r)
		op := s.startOperation(func(op *operation) (interface{}, error) {
			img, err := s.cfg.Renderer.Render(op.Context(), r, variable)
			if err != nil {
				return nil, err
			}
			if op.Cancelled() {
				return nil, op.Context().Err()
			}
			return img, nil
		}, s.previewComplete)
		s.renderCtxs[op] = r
		s.previewOp = op
	}
	s.update()
}

// previewComplete releases the reference held for the render on every
// completion path, then delivers the image if the operation is still
// current.
func (s *Selector) previewComplete(op *operation, result interface{}, err error) {
	if r, ok := s.renderCtxs[op]; ok {
		s.mustRelease(r)
		delete(s.renderCtxs, op)
	}
	if op != s.previewOp {
		return
	}
	s.previewOp = nil
	if err != nil {
		if err != context.Canceled {
			logrus.WithError(err).Warn("gridselect: rendering preview")
			s.reportError(err)
		}
		return
	}
	if img, ok := result.(image.Image); ok && s.cfg.OnPreview != nil {
		s.cfg.OnPreview(img)
	}
}

func (s *Selector) cancelPreview() {
	if s.previewOp == nil {
		return
	}
	s.previewOp.Cancel()
	s.previewOp = nil
}
