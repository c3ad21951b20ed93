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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// FinalResult is the outcome of a confirmed selection. The Reader is a
// full-mode instance owned solely by whoever consumes the result; the
// Selector retains no reference to it. Variables lists the selected
// variables in selection order; Stats holds statistics for each variable
// whose computation succeeded.
type FinalResult struct {
	Source    string
	Reader    Reader
	Variables []string
	Stats     map[string]*Stats
}

// FinalResult returns the result of a completed finalization and clears
// it, transferring ownership of the contained reader to the caller. It
// returns nil if there is no unconsumed result. It is valid immediately
// after a Selected state notification and may be consumed at most once.
func (s *Selector) FinalResult() *FinalResult {
	s.resultMx.Lock()
	defer s.resultMx.Unlock()
	fr := s.result
	s.result = nil
	return fr
}

func (s *Selector) setResult(fr *FinalResult) {
	s.resultMx.Lock()
	s.result = fr
	s.resultMx.Unlock()
}

// confirm starts the one-shot finalization of the current selection.
func (s *Selector) confirm() {
	if s.finalizeOp != nil {
		fatalf("gridselect: confirm while a finalization is already running")
		return
	}
	if s.machine.current != Ready {
		logrus.WithField("state", s.machine.current).Warn(
			"gridselect: confirm ignored outside the ready state")
		return
	}
	source := s.activeSource
	variables := append([]string(nil), s.selection...)
	s.finalizeOp = s.startOperation(func(op *operation) (interface{}, error) {
		return s.finalize(op, source, variables)
	}, s.finalizeComplete)
}

// finalize is the finalization work function. It re-opens the dataset
// independently in full mode — the browse-mode instance backing the session
// may have geolocation features disabled for speed — and computes summary
// statistics for each selected variable. A per-variable failure is logged
// and that variable is skipped; it is not fatal to the batch.
func (s *Selector) finalize(op *operation, source string, variables []string) (*FinalResult, error) {
	var r Reader
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	err := backoff.RetryNotify(
		func() error {
			if op.Cancelled() {
				r = nil
				return nil
			}
			var err error
			r, err = s.cfg.Opener(op.Context(), source, ModeFull)
			if err != nil && !retryable(op, err) {
				return backoff.Permanent(err)
			}
			return err
		},
		b,
		func(err error, d time.Duration) {
			logrus.WithError(err).Infof("gridselect: reopening %s: retrying in %v", source, d)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gridselect: finalizing %s: %v", source, err)
	}
	if op.Cancelled() {
		closeDiscard(r, source)
		return nil, op.Context().Err()
	}

	fr := &FinalResult{
		Source:    source,
		Reader:    r,
		Variables: variables,
		Stats:     make(map[string]*Stats),
	}
	n := len(variables)
	for i, v := range variables {
		if op.Cancelled() {
			closeDiscard(r, source)
			return nil, op.Context().Err()
		}
		st, err := r.Statistics(v, nil)
		if err != nil {
			logrus.WithField("variable", v).WithError(err).Warn(
				"gridselect: computing statistics; skipping variable")
			continue
		}
		fr.Stats[v] = st
		if s.cfg.OnProgress != nil {
			s.cfg.OnProgress(v, i+1, n)
		}
	}
	return fr, nil
}

// retryable reports whether a failed reopen is worth retrying. A dataset
// that has gone missing or become unreadable will not reappear on its
// own, and a cancelled operation must stop retrying immediately.
func retryable(op *operation, err error) bool {
	if op.Cancelled() {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// finalizeComplete hands the finished reader to the caller through the
// consume-once result slot, or disposes of it if the finalization was
// superseded by a cancel.
func (s *Selector) finalizeComplete(op *operation, result interface{}, err error) {
	fr, _ := result.(*FinalResult)
	if op != s.finalizeOp {
		if fr != nil {
			closeDiscard(fr.Reader, fr.Source)
		}
		return
	}
	s.finalizeOp = nil
	if err != nil {
		if err != context.Canceled {
			logrus.WithError(err).Warn("gridselect: finalization failed")
			s.reportError(err)
		}
		s.update() // The session stays Ready; the user may confirm again.
		return
	}
	s.setResult(fr)
	s.selected = true
	s.update()
}
