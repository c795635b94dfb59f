// Package debug holds developer tooling around a running session: PNG frame
// snapshots and a Graphviz dump of the machine state.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/valerio/dotmatrix/dmg/video"
)

// FrameImage converts a framebuffer to an 8-bit grayscale image.
func FrameImage(frame *video.FrameBuffer) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, frame.Width(), frame.Height()))
	copy(img.Pix, frame.ToGrayscale())
	return img
}

// EncodePNG writes frame to w as a PNG.
func EncodePNG(w io.Writer, frame *video.FrameBuffer) error {
	if err := png.Encode(w, FrameImage(frame)); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// SaveFramePNGToDir saves a framebuffer as <baseName>_<timestamp>.png in
// directory, or the working directory when it is empty. It returns the path
// written.
func SaveFramePNGToDir(frame *video.FrameBuffer, baseName, directory string) (string, error) {
	if frame == nil {
		return "", fmt.Errorf("no frame to save")
	}

	outputDir := directory
	if outputDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		outputDir = cwd
	}

	timestamp := time.Now().Format("20060102_150405")
	filePath := filepath.Join(outputDir, fmt.Sprintf("%s_%s.png", baseName, timestamp))

	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	if err := EncodePNG(file, frame); err != nil {
		return "", err
	}

	slog.Info("Snapshot saved", "path", filePath, "size", fmt.Sprintf("%dx%d", frame.Width(), frame.Height()))
	return filePath, nil
}

// TakeSnapshot handles the snapshot hotkey of interactive backends.
func TakeSnapshot(frame *video.FrameBuffer, directory string) {
	if _, err := SaveFramePNGToDir(frame, "dotmatrix_snapshot", directory); err != nil {
		slog.Error("Failed to save snapshot", "error", err)
	}
}
