package executors

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type undoStep struct {
	name string
	fn   func()
}

// Setup chains initialization steps. Every successful step may leave an undo
// closure; when a later step fails, the closures run in reverse order so the
// process never keeps a half-built environment around.
type Setup struct {
	undos []undoStep
	log   *logrus.Entry
}

func NewSetup(log *logrus.Entry) *Setup {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Setup{log: log.WithField("component", "Setup")}
}

// Step runs do. On success its undo, if any, is pushed onto the stack. On
// failure the stack is unwound and the error is returned wrapped with name.
func (s *Setup) Step(name string, do func() (undo func(), err error)) error {
	undo, err := do()
	if err != nil {
		s.log.WithError(err).WithField("step", name).Error("setup step failed, rolling back")
		s.Unwind()
		return fmt.Errorf("setup step %s: %w", name, err)
	}
	if undo != nil {
		s.undos = append(s.undos, undoStep{name: name, fn: undo})
	}
	s.log.WithField("step", name).Debug("setup step done")
	return nil
}

// Unwind runs the pending undo closures, newest first, and empties the stack.
// A panicking closure is logged and does not stop the others.
func (s *Setup) Unwind() {
	for i := len(s.undos) - 1; i >= 0; i-- {
		s.runUndo(s.undos[i])
	}
	s.undos = nil
}

// Len returns the number of pending undo closures.
func (s *Setup) Len() int { return len(s.undos) }

func (s *Setup) runUndo(step undoStep) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("step", step.name).WithError(fmt.Errorf("%+v", r)).Error("undo panicked")
		}
	}()
	step.fn()
	s.log.WithField("step", step.name).Debug("setup step undone")
}
