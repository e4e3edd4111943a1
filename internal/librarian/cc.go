package librarian

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/sirupsen/logrus"

	"novamcp/internal/midiport"
	"novamcp/internal/sysex"
)

// SendCC validates and transmits a Control Change.
func (l *Librarian) SendCC(ctx context.Context, channel, controller, value int) (sysex.CC, error) {
	cc, err := sysex.NewCC(channel, controller, value)
	if err != nil {
		return sysex.CC{}, invalid(err, "Invalid control change.")
	}
	sender, ok := l.port.(midiport.CCSender)
	if !ok {
		return sysex.CC{}, transport(ErrNoCCSupport, "This MIDI port cannot send control changes.")
	}
	if err := sender.SendCC(ctx, cc); err != nil {
		return sysex.CC{}, transport(err, "Could not send the control change.")
	}
	l.log.WithFields(logrus.Fields{"channel": cc.Channel, "controller": cc.Controller, "value": cc.Value}).Debug("cc sent")
	return cc, nil
}

// LearnCC waits up to timeout for the first incoming Control Change.
func (l *Librarian) LearnCC(ctx context.Context, timeout time.Duration) (sysex.CC, error) {
	if timeout <= 0 {
		return sysex.CC{}, invalid(fmt.Errorf("timeout must be positive, got %v", timeout), "The learn timeout must be positive.")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, err := l.port.ReceiveCC(ctx)
	if err != nil {
		return sysex.CC{}, transport(err, "The MIDI input is not open.")
	}
	l.log.WithField("timeout", timeout).Info("waiting for a control change")
	select {
	case cc, ok := <-ch:
		if !ok {
			if ctx.Err() != nil {
				return sysex.CC{}, waitErr(ctx.Err(), "learn cc")
			}
			return sysex.CC{}, waitErr(errors.New("input closed"), "learn cc")
		}
		l.log.WithField("controller", cc.Controller).Info("control change learned")
		return cc, nil
	case <-ctx.Done():
		return sysex.CC{}, waitErr(ctx.Err(), "learn cc")
	}
}

// PedalRange is the span of values seen while calibrating.
type PedalRange struct {
	Controller int `json:"controller"`
	Min        int `json:"min"`
	Max        int `json:"max"`
	Samples    int `json:"samples"`
}

// CalibratePedal records incoming Control Change values for window and
// returns their minimum and maximum. A negative controller accepts any
// controller; the first one seen is reported.
func (l *Librarian) CalibratePedal(ctx context.Context, window time.Duration, controller int) (PedalRange, error) {
	if window <= 0 {
		return PedalRange{}, invalid(fmt.Errorf("window must be positive, got %v", window), "The calibration time must be positive.")
	}
	if controller > 127 {
		return PedalRange{}, invalid(fmt.Errorf("controller %d out of range", controller), "Controller must be between 0 and 127.")
	}
	wctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	ch, err := l.port.ReceiveCC(wctx)
	if err != nil {
		return PedalRange{}, transport(err, "The MIDI input is not open.")
	}
	l.log.WithField("window", window).Info("move the expression pedal through its full range")

	r := PedalRange{Controller: controller, Min: 128, Max: -1}
	for cc := range ch {
		if r.Controller < 0 {
			r.Controller = int(cc.Controller)
		}
		if int(cc.Controller) != r.Controller {
			continue
		}
		v := int(cc.Value)
		if v < r.Min {
			r.Min = v
		}
		if v > r.Max {
			r.Max = v
		}
		r.Samples++
	}
	if ctx.Err() != nil {
		return PedalRange{}, waitErr(ctx.Err(), "calibrate pedal")
	}
	if r.Samples == 0 {
		return PedalRange{}, fault.Wrap(ErrNoControllers,
			fmsg.WithDesc("calibrate pedal", "No pedal movement was received. Move the pedal while calibrating."),
			ftag.With(Timeout))
	}
	l.log.WithFields(logrus.Fields{"min": r.Min, "max": r.Max, "samples": r.Samples}).Info("pedal calibrated")
	return r, nil
}
