package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"novamcp/internal/config"
	"novamcp/internal/librarian"
	"novamcp/internal/midiport"
)

// Overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var run func(context.Context, []string) error
	switch os.Args[1] {
	case "ports":
		run = runPorts
	case "get":
		run = runGet
	case "bank":
		run = runBank
	case "system":
		run = runSystem
	case "send":
		run = runSend
	case "rename":
		run = runRename
	case "delete":
		run = runDelete
	case "copy":
		run = runCopy
	case "cc":
		run = runCC
	case "learn":
		run = runLearn
	case "calibrate":
		run = runCalibrate
	case "inspect":
		run = runInspect
	case "config":
		run = runConfig
	case "mcp":
		run = runMCP
	case "version", "-v", "--version":
		printVersion()
		return
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err := run(ctx, os.Args[2:]); err != nil {
		logrus.Error(librarian.Issue(err))
		stop()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("novamcp - preset librarian for the TC Electronic Nova System")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  novamcp <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports       list MIDI inputs and outputs")
	fmt.Println("  get         read a preset (-n) and print it as JSON")
	fmt.Println("  bank        download all user presets")
	fmt.Println("  system      read the system dump")
	fmt.Println("  send        save a preset from a .syx file or JSON edits on stdin")
	fmt.Println("  rename      rename a user preset")
	fmt.Println("  delete      reset a user preset to the init preset")
	fmt.Println("  copy        copy a preset into a user slot")
	fmt.Println("  cc          send control changes, e.g. \"drive:on r delay:off 11:64\"")
	fmt.Println("  learn       wait for the first incoming control change")
	fmt.Println("  calibrate   watch an expression pedal and report its range")
	fmt.Println("  inspect     decode a .syx file without a device")
	fmt.Println("  config      print or save the effective configuration")
	fmt.Println("  mcp         serve MCP tools over stdio")
	fmt.Println("  version     print the version")
	fmt.Println("")
	fmt.Println("Common options: -config FILE -in NAME -out NAME -device ID -log-level LEVEL")
}

func printVersion() {
	fmt.Printf("novamcp %s\n", version)
}

// common holds the flags shared by every command that talks to the unit.
type common struct {
	configPath string
	in, out    string
	device     int
	logLevel   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file (default: user config dir)")
	fs.StringVar(&c.in, "in", "", "MIDI input name fragment")
	fs.StringVar(&c.out, "out", "", "MIDI output name fragment")
	fs.IntVar(&c.device, "device", -1, "SysEx device id (0-127)")
	fs.StringVar(&c.logLevel, "log-level", "", "log level (error, warn, info, debug)")
}

// load reads the config file and applies flag overrides.
func (c *common) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.in != "" {
		cfg.MIDI.Input = c.in
	}
	if c.out != "" {
		cfg.MIDI.Output = c.out
	}
	if c.device >= 0 {
		cfg.MIDI.DeviceID = c.device
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	// stdout carries command output and the MCP transport.
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.Level())
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

type env struct {
	cfg  *config.Config
	log  *logrus.Logger
	port *midiport.GoMIDI
	lib  *librarian.Librarian
}

// setup builds the librarian. With connect set it also opens the ports named
// by the config.
func (c *common) setup(ctx context.Context, connect bool) (*env, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)
	port := midiport.NewGoMIDI(log)
	lib := librarian.New(port, log, librarian.Options{
		DeviceID:       byte(cfg.MIDI.DeviceID),
		RequestTimeout: cfg.RequestTimeout(),
		BankTimeout:    cfg.BankTimeout(),
		SendGap:        cfg.SendGap(),
		VerifyDelay:    cfg.VerifyDelay(),
	})
	e := &env{cfg: cfg, log: log, port: port, lib: lib}
	if connect {
		if err := lib.Connect(ctx, midiport.Selection{Input: cfg.MIDI.Input, Output: cfg.MIDI.Output}); err != nil {
			port.Close()
			return nil, err
		}
		log.WithFields(logrus.Fields{"in": cfg.MIDI.Input, "out": cfg.MIDI.Output}).Debug("connected")
	}
	return e, nil
}

func (e *env) close() {
	if err := e.port.Close(); err != nil {
		e.log.WithError(err).Warn("closing MIDI ports")
	}
}
