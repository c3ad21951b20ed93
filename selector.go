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
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config holds the collaborators and policies for a Selector.
type Config struct {
	// Opener creates readers for candidate datasets. Required.
	Opener Opener

	// Renderer creates preview images. If nil, previews are disabled.
	Renderer Renderer

	// SameCandidate reports whether two source identifiers refer to the
	// same dataset, and is used to suppress spurious repeated
	// candidate-changed events. If nil, string equality is used.
	SameCandidate func(a, b string) bool

	// OnState, OnVariables, OnPreview, OnError, and OnProgress are
	// optional observers. OnState, OnVariables, OnPreview, and OnError
	// are invoked on the Selector's event loop and must not call back
	// into the Selector synchronously. OnProgress is invoked from the
	// finalization worker goroutine.
	OnState     func(State)
	OnVariables func(source string, variables []string)
	OnPreview   func(img image.Image)
	OnError     func(err error)
	OnProgress  func(variable string, i, n int)
}

// A Selector coordinates the lifecycle of dataset readers across the
// concurrent, cancellable activities of a selection session: opening a
// candidate dataset, rendering variable previews, and finalizing the
// chosen variable set. All event intake methods are safe to call from any
// goroutine; they post onto a single internal event loop that owns all
// session state, so completions and intake are never processed
// concurrently.
type Selector struct {
	cfg      Config
	registry *Registry

	events chan func()
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	// The fields below are owned by the event loop goroutine.
	machine      stateMachine
	active       Reader
	activeSource string
	variables    []string
	selection    []string
	selected     bool

	openOp        *operation
	openingSource string

	previewOp  *operation
	renderCtxs map[*operation]Reader

	finalizeOp *operation

	resultMx sync.Mutex
	result   *FinalResult
}

// NewSelector creates a Selector and starts its event loop. The caller must
// call Close when the session is no longer needed.
func NewSelector(cfg Config) (*Selector, error) {
	if cfg.Opener == nil {
		return nil, fmt.Errorf("gridselect: a Config.Opener is required")
	}
	if cfg.SameCandidate == nil {
		cfg.SameCandidate = func(a, b string) bool { return a == b }
	}
	s := &Selector{
		cfg:        cfg,
		registry:   NewRegistry(),
		events:     make(chan func()),
		closed:     make(chan struct{}),
		renderCtxs: make(map[*operation]Reader),
	}
	s.machine.notify = cfg.OnState
	go s.run()
	return s, nil
}

func (s *Selector) run() {
	for {
		select {
		case f := <-s.events:
			f()
		case <-s.closed:
			return
		}
	}
}

// post hands f to the event loop. Events posted after Close are dropped;
// any background work they would have retired has already been cancelled
// and has closed whatever it owned.
func (s *Selector) post(f func()) {
	select {
	case s.events <- f:
	case <-s.closed:
	}
}

// sync waits until all previously posted events have been processed.
func (s *Selector) sync() {
	done := make(chan struct{})
	s.post(func() { close(done) })
	select {
	case <-done:
	case <-s.closed:
	}
}

// Close cancels all in-flight operations, releases all references held by
// the session, and stops the event loop. It blocks until background work
// has finished and every completion has been processed, so that the
// exactly-once close guarantee holds through shutdown. Close is idempotent.
func (s *Selector) Close() {
	s.once.Do(func() {
		s.post(s.shutdown)
		// All in-flight work has been cancelled; wait for it to finish.
		// Each worker posts its completion before exiting, and the loop is
		// still running, so the completions below dispose of any stray
		// resources before the loop stops.
		s.wg.Wait()
		s.sync()
		close(s.closed)
	})
}

// shutdown runs on the event loop. It retires every operation so that the
// completions that follow take the superseded path and discard their
// results.
func (s *Selector) shutdown() {
	s.retireSession()
}

// OnCandidateChanged tells the Selector that the user chose a new candidate
// dataset. An empty source means "no candidate". Superseded open and
// preview work is cancelled; a duplicate of the current candidate (per
// Config.SameCandidate) is ignored.
func (s *Selector) OnCandidateChanged(source string) {
	s.post(func() { s.candidateChanged(source) })
}

// OnVariableSelectionChanged tells the Selector which variables of the
// active dataset are currently selected. Exactly one selected variable
// starts a preview render; zero or several cancels any in-flight preview.
func (s *Selector) OnVariableSelectionChanged(variables []string) {
	s.post(func() { s.selectionChanged(variables) })
}

// OnConfirm finalizes the current selection. It may only be called in the
// Ready state; calling it again while a finalization is still running is a
// programming error and fails loudly.
func (s *Selector) OnConfirm() {
	s.post(s.confirm)
}

// OnCancel abandons the session: all in-flight work is cancelled, the
// active reader is released, and the state returns to Unselected. An
// unconsumed final result is discarded and its reader closed. The Selector
// remains usable for a new session.
func (s *Selector) OnCancel() {
	s.post(func() {
		s.retireSession()
		s.update()
	})
}

// State returns the current session state. It returns Unselected after the
// Selector has been closed.
func (s *Selector) State() State {
	var st State
	done := make(chan struct{})
	s.post(func() {
		st = s.machine.current
		close(done)
	})
	select {
	case <-done:
		return st
	case <-s.closed:
		return Unselected
	}
}

// Variables returns the variable names of the active dataset, or nil if no
// dataset is active.
func (s *Selector) Variables() []string {
	var v []string
	done := make(chan struct{})
	s.post(func() {
		v = append([]string(nil), s.variables...)
		close(done)
	})
	select {
	case <-done:
		return v
	case <-s.closed:
		return nil
	}
}

// candidateChanged implements the selection orchestration of a
// candidate-changed event.
func (s *Selector) candidateChanged(source string) {
	if s.selected || s.finalizeOp != nil {
		logrus.WithField("source", source).Warn(
			"gridselect: candidate change ignored during finalization")
		return
	}

	// Suppress duplicates of the active dataset or of an open already in
	// flight.
	if source != "" {
		if s.active != nil && s.cfg.SameCandidate(source, s.activeSource) {
			return
		}
		if s.openOp != nil && s.cfg.SameCandidate(source, s.openingSource) {
			return
		}
	} else if s.active == nil && s.openOp == nil {
		return
	}

	// Retire the current dataset and everything that depends on it.
	s.cancelPreview()
	s.selection = nil
	s.clearActive()
	if s.openOp != nil {
		s.openOp.Cancel()
		s.openOp = nil
		s.openingSource = ""
	}

	if source != "" {
		s.openingSource = source
		s.openOp = s.startOperation(func(op *operation) (interface{}, error) {
			r, err := s.cfg.Opener(op.Context(), source, ModeBrowse)
			if err != nil {
				return nil, err
			}
			if op.Cancelled() {
				// The cancel arrived while the open was in progress; the
				// reader must not outlive this operation.
				closeDiscard(r, source)
				return nil, op.Context().Err()
			}
			return r, nil
		}, s.openComplete)
	}
	s.update()
}

// openComplete installs a successfully opened reader as the active
// resource, or disposes of the result of a superseded or failed open.
func (s *Selector) openComplete(op *operation, result interface{}, err error) {
	r, _ := result.(Reader)
	if op != s.openOp {
		// Superseded after the work function's last cancellation check.
		if r != nil {
			closeDiscard(r, "")
		}
		return
	}
	source := s.openingSource
	s.openOp = nil
	s.openingSource = ""
	if err != nil {
		if err != context.Canceled {
			logrus.WithField("source", source).WithError(err).Warn(
				"gridselect: opening dataset")
			s.reportError(fmt.Errorf("gridselect: opening %s: %v", source, err))
		}
		s.update()
		return
	}
	s.registry.Acquire(r)
	s.active = r
	s.activeSource = source
	s.variables = r.Variables()
	if s.cfg.OnVariables != nil {
		s.cfg.OnVariables(source, append([]string(nil), s.variables...))
	}
	s.update()
}

// retireSession cancels all in-flight operations and releases everything
// the session holds. In-flight previews keep their entries in renderCtxs;
// their completions, which are guaranteed to run before the loop stops,
// release the references they hold.
func (s *Selector) retireSession() {
	s.cancelPreview()
	if s.openOp != nil {
		s.openOp.Cancel()
		s.openOp = nil
		s.openingSource = ""
	}
	if s.finalizeOp != nil {
		s.finalizeOp.Cancel()
		s.finalizeOp = nil
	}
	s.selection = nil
	s.clearActive()
	s.selected = false
	if fr := s.FinalResult(); fr != nil {
		closeDiscard(fr.Reader, "")
	}
}

func (s *Selector) clearActive() {
	if s.active == nil {
		return
	}
	s.mustRelease(s.active)
	s.active = nil
	s.activeSource = ""
	s.variables = nil
}

// update recomputes the derived state after an orchestrator event.
func (s *Selector) update() {
	next := Unselected
	switch {
	case s.selected:
		next = Selected
	case s.active != nil && len(s.selection) > 0:
		next = Ready
	}
	s.machine.transition(next)
}

func (s *Selector) mustRelease(r Reader) {
	if err := s.registry.Release(r); err != nil {
		fatalf("gridselect: %v", err)
	}
}

func (s *Selector) reportError(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

// closeDiscard closes a reader that never entered the registry (a stray
// result of a cancelled or superseded operation). Close failures are
// logged and otherwise ignored.
func closeDiscard(r Reader, source string) {
	if r == nil {
		return
	}
	if err := r.Close(); err != nil {
		logrus.WithField("source", source).WithError(err).Warn(
			"gridselect: closing discarded resource")
	}
}
