package librarian

import (
	"context"
	"errors"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"novamcp/internal/midiport"
)

// Error categories beyond the ftag defaults.
const (
	Timeout   ftag.Kind = "TIMEOUT"
	Transport ftag.Kind = "TRANSPORT"
	Device    ftag.Kind = "DEVICE"
)

var (
	ErrTimeout        = errors.New("timed out waiting for the device")
	ErrNoCCSupport    = errors.New("port cannot send control change")
	ErrNoControllers  = errors.New("no control change received")
	ErrUnexpectedFile = errors.New("file does not hold the expected dump")
)

func invalid(err error, issue string) error {
	return fault.Wrap(err, fmsg.WithDesc("invalid argument", issue), ftag.With(ftag.InvalidArgument))
}

func transport(err error, issue string) error {
	tag := Transport
	switch {
	case errors.Is(err, midiport.ErrPortNotFound):
		tag = ftag.NotFound
	case errors.Is(err, context.Canceled):
		tag = ftag.Cancelled
	}
	return fault.Wrap(err, fmsg.WithDesc("transport", issue), ftag.With(tag))
}

// waitErr turns the end of a wait into a tagged error. A deadline means the
// device did not answer; a cancelled parent is reported as such.
func waitErr(err error, what string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.Wrap(ErrTimeout, fmsg.WithDesc(what, "The Nova System did not answer in time. Check the MIDI cables and the unit's SysEx ID."), ftag.With(Timeout))
	}
	if errors.Is(err, context.Canceled) {
		return fault.Wrap(err, fmsg.With(what), ftag.With(ftag.Cancelled))
	}
	return transport(err, "The MIDI connection was lost while waiting for the Nova System.")
}

func deviceErr(err error, issue string) error {
	return fault.Wrap(err, fmsg.WithDesc("decode", issue), ftag.With(Device))
}

// Issue returns the user-facing message of err, falling back to its text.
func Issue(err error) string {
	if err == nil {
		return ""
	}
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue + " (" + err.Error() + ")"
	}
	return err.Error()
}

// Kind returns the category tag of err.
func Kind(err error) ftag.Kind {
	return ftag.Get(err)
}
