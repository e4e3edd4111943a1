package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"novamcp/internal/librarian"
	"novamcp/internal/sysex"
)

const (
	ccGap  = 60 * time.Millisecond
	ccRest = 360 * time.Millisecond
)

// ccStep is one token of a CC text: a controller change or a pause.
type ccStep struct {
	Rest       bool
	Controller int
	Value      int
}

// parseCCText splits text on whitespace and , ; | into steps.
func parseCCText(text string) ([]ccStep, error) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '|'
	})
	if len(tokens) == 0 {
		return nil, usageErr(errors.New("no control changes provided"), "Give at least one controller:value pair.")
	}
	steps := make([]ccStep, 0, len(tokens))
	for _, tok := range tokens {
		s, err := parseCCToken(tok)
		if err != nil {
			return nil, usageErr(err, fmt.Sprintf("Invalid token %q.", tok))
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// parseCCToken reads "controller:value". The controller is a number or a
// known name such as "drive" or "tap-tempo"; the value is a number or on/off.
// "r" and "rest" are pauses.
func parseCCToken(tok string) (ccStep, error) {
	t := strings.TrimSpace(tok)
	if t == "" {
		return ccStep{}, errors.New("empty token")
	}
	if strings.EqualFold(t, "r") || strings.EqualFold(t, "rest") {
		return ccStep{Rest: true}, nil
	}

	ctrlText, valueText, ok := strings.Cut(t, ":")
	if !ok {
		ctrlText, valueText, ok = strings.Cut(t, "=")
	}
	if !ok || ctrlText == "" || valueText == "" {
		return ccStep{}, errors.New("want controller:value")
	}

	var step ccStep
	if n, err := strconv.Atoi(ctrlText); err == nil {
		step.Controller = n
	} else if cc, found := sysex.LookupController(ctrlText); found {
		step.Controller = int(cc)
	} else {
		return ccStep{}, fmt.Errorf("unknown controller %q", ctrlText)
	}
	if step.Controller < 0 || step.Controller > 127 {
		return ccStep{}, fmt.Errorf("controller out of range: %d", step.Controller)
	}

	switch strings.ToLower(valueText) {
	case "on":
		step.Value = 127
	case "off":
		step.Value = 0
	default:
		v, err := strconv.Atoi(valueText)
		if err != nil {
			return ccStep{}, fmt.Errorf("invalid value: %w", err)
		}
		if v < 0 || v > 127 {
			return ccStep{}, fmt.Errorf("value out of range: %d", v)
		}
		step.Value = v
	}
	return step, nil
}

// sendCCText sends every step of text on channel, pausing between them.
func sendCCText(ctx context.Context, lib *librarian.Librarian, channel int, text string) ([]sysex.CC, error) {
	steps, err := parseCCText(text)
	if err != nil {
		return nil, err
	}
	var sent []sysex.CC
	for _, s := range steps {
		wait := ccGap
		if s.Rest {
			wait = ccRest
		} else {
			cc, err := lib.SendCC(ctx, channel, s.Controller, s.Value)
			if err != nil {
				return sent, err
			}
			sent = append(sent, cc)
		}
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-time.After(wait):
		}
	}
	return sent, nil
}

func runCC(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("cc", flag.ExitOnError)
	c.register(fs)
	channel := fs.Int("ch", -1, "MIDI channel 1-16 (default: config)")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	ch := e.cfg.MIDI.Channel
	if *channel > 0 {
		ch = *channel - 1
	}
	sent, err := sendCCText(ctx, e.lib, ch, strings.Join(fs.Args(), " "))
	for _, cc := range sent {
		fmt.Println(cc)
	}
	return err
}

func runLearn(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("learn", flag.ExitOnError)
	c.register(fs)
	timeout := fs.Duration("timeout", 10*time.Second, "how long to wait")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	fmt.Println("move a controller on the unit or a pedal board...")
	cc, err := e.lib.LearnCC(ctx, *timeout)
	if err != nil {
		return err
	}
	fmt.Println(cc)
	return nil
}

func runCalibrate(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("calibrate", flag.ExitOnError)
	c.register(fs)
	window := fs.Duration("window", 5*time.Second, "how long to watch the pedal")
	controller := fs.Int("cc", -1, "controller to watch (-1: first one seen)")
	_ = fs.Parse(args)

	e, err := c.setup(ctx, true)
	if err != nil {
		return err
	}
	defer e.close()

	fmt.Printf("sweep the pedal heel to toe for %s...\n", *window)
	r, err := e.lib.CalibratePedal(ctx, *window, *controller)
	if err != nil {
		return err
	}
	return printJSON(r)
}
