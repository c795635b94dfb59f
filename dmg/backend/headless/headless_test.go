package headless

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/dotmatrix/dmg/backend"
	"github.com/valerio/dotmatrix/dmg/memory"
	"github.com/valerio/dotmatrix/dmg/video"
)

type countingEmulator struct {
	frames int
	fb     *video.FrameBuffer
}

func (e *countingEmulator) RunUntilFrame() error {
	e.frames++
	return nil
}

func (e *countingEmulator) Framebuffer() *video.FrameBuffer { return e.fb }
func (e *countingEmulator) SetInput(memory.Button) {}

func TestHeadless_runsFixedFrames(t *testing.T) {
	emu := &countingEmulator{fb: video.NewFrameBuffer()}
	h := New(7, SnapshotConfig{})

	loop := backend.NewLoop(emu, h)
	require.NoError(t, loop.Run(backend.BackendConfig{}))

	assert.Equal(t, 7, emu.frames)
	assert.Equal(t, 7, loop.Frames())
	assert.Empty(t, h.Snapshots())
}

func TestHeadless_snapshots(t *testing.T) {
	dir := t.TempDir()
	cfg, err := CreateSnapshotConfig(2, dir, "/roms/tetris.gb")
	require.NoError(t, err)
	assert.Equal(t, "tetris", cfg.ROMName)

	emu := &countingEmulator{fb: video.NewFrameBuffer()}
	h := New(5, cfg)
	require.NoError(t, backend.NewLoop(emu, h).Run(backend.BackendConfig{}))

	saved := h.Snapshots()
	require.Len(t, saved, 3)
	for i, frame := range []string{"tetris_frame_2_", "tetris_frame_4_", "tetris_frame_5_"} {
		assert.Equal(t, dir, filepath.Dir(saved[i]))
		assert.True(t, strings.HasPrefix(filepath.Base(saved[i]), frame), saved[i])
	}
}

func TestHeadless_requiresFrames(t *testing.T) {
	emu := &countingEmulator{fb: video.NewFrameBuffer()}
	err := backend.NewLoop(emu, New(0, SnapshotConfig{})).Run(backend.BackendConfig{})
	assert.Error(t, err)
	assert.Zero(t, emu.frames)
}

func TestCreateSnapshotConfig_disabled(t *testing.T) {
	cfg, err := CreateSnapshotConfig(0, "", "rom.gb")
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Empty(t, cfg.Directory)
}
