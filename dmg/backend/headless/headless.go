package headless

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/valerio/dotmatrix/dmg/backend"
	"github.com/valerio/dotmatrix/dmg/debug"
	"github.com/valerio/dotmatrix/dmg/input/action"
	"github.com/valerio/dotmatrix/dmg/input/event"
	"github.com/valerio/dotmatrix/dmg/video"
)

// Backend runs a fixed number of frames with no display, optionally saving
// PNG snapshots along the way.
type Backend struct {
	frameCount     int
	maxFrames      int
	snapshotConfig SnapshotConfig
	saved          []string
}

// SnapshotConfig holds configuration for frame snapshots
type SnapshotConfig struct {
	Enabled   bool
	Interval  int    // Save snapshot every N frames
	Directory string // Directory to save snapshots
	ROMName   string // ROM name for snapshot filenames
}

func New(maxFrames int, snapshotConfig SnapshotConfig) *Backend {
	return &Backend{
		maxFrames:      maxFrames,
		snapshotConfig: snapshotConfig,
	}
}

func (h *Backend) Init(config backend.BackendConfig) error {
	if h.maxFrames <= 0 {
		return fmt.Errorf("headless mode needs a positive frame count, got %d", h.maxFrames)
	}
	slog.Info("Running headless mode",
		"frames", h.maxFrames,
		"snapshot_interval", h.snapshotConfig.Interval,
		"snapshot_dir", h.snapshotConfig.Directory)
	return nil
}

// Update counts the frame, saves snapshots and asks to quit after the last
// frame.
func (h *Backend) Update(frame *video.FrameBuffer) ([]backend.InputEvent, error) {
	h.frameCount++

	if h.snapshotConfig.Enabled && h.frameCount%h.snapshotConfig.Interval == 0 {
		h.saveSnapshot(frame)
	}

	if h.frameCount%60 == 0 {
		slog.Info("Frame progress", "completed", h.frameCount, "total", h.maxFrames)
	}

	if h.frameCount < h.maxFrames {
		return nil, nil
	}

	// final frame, unless it was just saved
	if h.snapshotConfig.Enabled && h.frameCount%h.snapshotConfig.Interval != 0 {
		h.saveSnapshot(frame)
	}

	if h.snapshotConfig.Enabled {
		slog.Info("Headless execution completed", "frames", h.frameCount, "png_snapshots_saved_to", h.snapshotConfig.Directory)
	} else {
		slog.Info("Headless execution completed", "frames", h.frameCount)
	}
	return []backend.InputEvent{{Action: action.EmulatorQuit, Type: event.Press}}, nil
}

func (h *Backend) Cleanup() error {
	return nil
}

// Snapshots returns the paths of the PNGs written so far.
func (h *Backend) Snapshots() []string {
	return h.saved
}

// CreateSnapshotConfig creates a snapshot configuration from CLI parameters
func CreateSnapshotConfig(interval int, directory, romPath string) (SnapshotConfig, error) {
	config := SnapshotConfig{
		Enabled:  interval > 0,
		Interval: interval,
	}

	if !config.Enabled {
		return config, nil
	}

	if directory == "" {
		tempDir, err := os.MkdirTemp("", "dotmatrix-snapshots-*")
		if err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = tempDir
	} else {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = directory
	}

	config.ROMName = strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))
	return config, nil
}

func (h *Backend) saveSnapshot(frame *video.FrameBuffer) {
	baseName := fmt.Sprintf("%s_frame_%d", h.snapshotConfig.ROMName, h.frameCount)

	path, err := debug.SaveFramePNGToDir(frame, baseName, h.snapshotConfig.Directory)
	if err != nil {
		slog.Error("Failed to save PNG snapshot", "frame", h.frameCount, "error", err)
		return
	}
	h.saved = append(h.saved, path)
}
