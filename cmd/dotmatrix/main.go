package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"
	"github.com/valerio/dotmatrix/dmg"
	"github.com/valerio/dotmatrix/dmg/backend"
	ebitenbackend "github.com/valerio/dotmatrix/dmg/backend/ebiten"
	"github.com/valerio/dotmatrix/dmg/backend/headless"
	"github.com/valerio/dotmatrix/dmg/backend/sdl2"
	"github.com/valerio/dotmatrix/dmg/backend/terminal"
	"github.com/valerio/dotmatrix/dmg/debug"
	"github.com/valerio/dotmatrix/dmg/statsview"
	"github.com/valerio/dotmatrix/dmg/timing"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "dotmatrix"
	app.Description = "A Game Boy (DMG) emulator"
	app.Usage = "dotmatrix [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "Presentation backend: terminal, sdl2 or ebiten",
			Value: "terminal",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the emulator without any display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode (required for headless)",
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save PNG snapshots every N frames in headless mode (0 = disabled)",
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory for snapshots (default: temp directory in headless mode, working directory otherwise)",
		},
		cli.IntFlag{
			Name:  "scale",
			Usage: "Window scale for the windowed backends",
			Value: 3,
		},
		cli.StringFlag{
			Name:   "boot-rom",
			Usage:  "Path to a 256 byte DMG boot ROM to run before the cartridge",
			EnvVar: "DOTMATRIX_BOOT_ROM",
		},
		cli.BoolFlag{
			Name:  "ignore-checksum",
			Usage: "Load images whose header checksum does not match",
		},
		cli.BoolFlag{
			Name:  "serial-stdout",
			Usage: "Copy bytes sent over the serial port to stdout",
		},
		cli.StringFlag{
			Name:   "log-level",
			Usage:  "Log level: debug, info, warn or error (default info, debug when headless)",
			EnvVar: "DOTMATRIX_LOG_LEVEL",
		},
		cli.BoolFlag{
			Name:  "statsview",
			Usage: "Serve runtime statistics on " + statsview.DefaultAddress + " (needs -tags statsview)",
		},
		cli.StringFlag{
			Name:  "state-graph",
			Usage: "Write a Graphviz graph of the machine state to this file on exit",
		},
		cli.BoolFlag{
			Name:  "no-save-ram",
			Usage: "Neither load nor write the <rom>.sav battery file",
		},
	}
	app.Action = runEmulator
	return app
}

func runEmulator(c *cli.Context) error {
	level, err := logLevel(c.String("log-level"), c.Bool("headless"))
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() == 0 {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
		romPath = c.Args().Get(0)
	}

	opts, err := sessionOptions(c, romPath)
	if err != nil {
		return err
	}

	session, err := dmg.LoadFile(romPath, opts...)
	if err != nil {
		return err
	}

	if c.Bool("statsview") {
		stop := statsview.Launch("")
		defer stop()
	}

	b, limiter, err := newBackend(c, romPath, level)
	if err != nil {
		return err
	}

	loop := backend.NewLoop(session, b,
		backend.WithLimiter(limiter),
		backend.WithSnapshotDir(c.String("snapshot-dir")))

	runErr := loop.Run(backend.BackendConfig{
		Title:  session.Title(),
		Scale:  c.Int("scale"),
		Status: func() string { return statusLine(session) },
	})

	if !c.Bool("no-save-ram") {
		if err := saveRAM(session, savePath(romPath)); err != nil {
			slog.Error("Failed to save cartridge RAM", "error", err)
		}
	}
	if path := c.String("state-graph"); path != "" {
		if err := writeStateGraph(session, path); err != nil {
			slog.Error("Failed to write state graph", "error", err)
		}
	}

	return runErr
}

func sessionOptions(c *cli.Context, romPath string) ([]dmg.Option, error) {
	var opts []dmg.Option

	if path := c.String("boot-rom"); path != "" {
		boot, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading boot ROM: %w", err)
		}
		opts = append(opts, dmg.WithBootROM(boot))
	}
	if c.Bool("ignore-checksum") {
		opts = append(opts, dmg.WithoutHeaderChecksum())
	}
	if c.Bool("serial-stdout") {
		opts = append(opts, dmg.WithSerialWriter(os.Stdout))
	}

	if !c.Bool("no-save-ram") {
		ram, err := os.ReadFile(savePath(romPath))
		switch {
		case err == nil:
			slog.Info("Restoring cartridge RAM", "path", savePath(romPath), "bytes", len(ram))
			opts = append(opts, dmg.WithCartridgeRAM(ram))
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading save file: %w", err)
		}
	}
	return opts, nil
}

func newBackend(c *cli.Context, romPath string, level slog.Level) (backend.Backend, timing.Limiter, error) {
	if c.Bool("headless") {
		frames := c.Int("frames")
		if frames <= 0 {
			return nil, nil, errors.New("headless mode requires --frames option with a positive value")
		}
		snapshots, err := headless.CreateSnapshotConfig(c.Int("snapshot-interval"), c.String("snapshot-dir"), romPath)
		if err != nil {
			return nil, nil, err
		}
		return headless.New(frames, snapshots), timing.NewNoOpLimiter(), nil
	}

	switch name := c.String("backend"); name {
	case "terminal":
		return terminal.New(terminal.WithLogLevel(level)), timing.NewAdaptiveLimiter(), nil
	case "sdl2":
		return sdl2.New(), timing.NewAdaptiveLimiter(), nil
	case "ebiten":
		// ebiten paces its own ticks
		return ebitenbackend.New(), timing.NewNoOpLimiter(), nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
}

func logLevel(name string, headless bool) (slog.Level, error) {
	if name == "" {
		if headless {
			return slog.LevelDebug, nil
		}
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// savePath puts the battery file next to the ROM: game.gb -> game.sav.
func savePath(romPath string) string {
	return strings.TrimSuffix(romPath, filepath.Ext(romPath)) + ".sav"
}

func saveRAM(session *dmg.Session, path string) error {
	ram := session.CartridgeRAM()
	if ram == nil {
		return nil
	}
	if err := os.WriteFile(path, ram, 0o644); err != nil {
		return err
	}
	slog.Info("Saved cartridge RAM", "path", path, "bytes", len(ram))
	return nil
}

func writeStateGraph(session *dmg.Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := debug.WriteStateGraph(f, session); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func statusLine(session *dmg.Session) string {
	mode, ly := session.PPUMode()
	return fmt.Sprintf(" %s | %-14s | LY:%3d %s ", session.String(), session.Disassemble(), ly, mode)
}
