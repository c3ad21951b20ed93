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

import "context"

// An operation is one cancellable unit of background work: a work function
// that runs in its own goroutine, followed by a completion function that
// runs on the Selector's event loop. Cancellation is cooperative; Cancel
// sets a flag (by cancelling the operation's context) that the work
// function is expected to poll at safe points.
//
// If work allocates a resource and then observes cancellation, work itself
// must close that resource before returning: a cancelled result is never
// allowed to carry a live resource to a completion that will keep it.
// Completions still run for cancelled and superseded operations so that the
// orchestrator can undo bookkeeping (release a held reference, discard a
// stray resource that work opened before it could observe the cancel).
type operation struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newOperation() *operation {
	ctx, cancel := context.WithCancel(context.Background())
	return &operation{ctx: ctx, cancel: cancel}
}

// Cancel requests cancellation. It is idempotent, does not block, and does
// not guarantee the work has stopped by the time it returns.
func (op *operation) Cancel() { op.cancel() }

// Cancelled reports whether Cancel has been called.
func (op *operation) Cancelled() bool { return op.ctx.Err() != nil }

// Context returns the context that is cancelled by Cancel, for use in
// blocking calls made by the work function.
func (op *operation) Context() context.Context { return op.ctx }

// startOperation runs work in a new goroutine and posts its completion to
// the event loop. Completions from different operations are therefore
// never concurrent with each other or with event intake.
func (s *Selector) startOperation(work func(op *operation) (interface{}, error),
	complete func(op *operation, result interface{}, err error)) *operation {
	op := newOperation()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := work(op)
		s.post(func() { complete(op, result, err) })
	}()
	return op
}
