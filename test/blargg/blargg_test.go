package blargg

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/dotmatrix/dmg"
	"github.com/valerio/dotmatrix/dmg/debug"
)

const (
	blarggDir      = "../../test-roms/game-boy-test-roms/blargg"
	cpuInstrsDir   = blarggDir + "/cpu_instrs/individual"
	instrTimingDir = blarggDir + "/instr_timing"
)

type blarggTestCase struct {
	dir       string
	name      string
	maxFrames int
}

var blarggTests = []blarggTestCase{
	{dir: cpuInstrsDir, name: "01-special", maxFrames: 500},
	{dir: cpuInstrsDir, name: "02-interrupts", maxFrames: 500},
	{dir: cpuInstrsDir, name: "03-op sp,hl", maxFrames: 500},
	{dir: cpuInstrsDir, name: "04-op r,imm", maxFrames: 500},
	{dir: cpuInstrsDir, name: "05-op rp", maxFrames: 500},
	{dir: cpuInstrsDir, name: "06-ld r,r", maxFrames: 500},
	{dir: cpuInstrsDir, name: "07-jr,jp,call,ret,rst", maxFrames: 500},
	{dir: cpuInstrsDir, name: "08-misc instrs", maxFrames: 500},
	{dir: cpuInstrsDir, name: "09-op r,r", maxFrames: 1000},
	{dir: cpuInstrsDir, name: "10-bit ops", maxFrames: 1000},
	{dir: cpuInstrsDir, name: "11-op a,(hl)", maxFrames: 1500},
	{dir: instrTimingDir, name: "instr_timing", maxFrames: 500},
}

// runBlarggTest runs a test ROM until it reports on the serial port,
// then compares the final screen against the golden hash in testdata.
func runBlarggTest(t *testing.T, tc blarggTestCase) {
	romPath := filepath.Join(tc.dir, tc.name+".gb")
	if _, err := os.Stat(romPath); os.IsNotExist(err) {
		t.Skipf("ROM file not found: %s", romPath)
	}

	session, err := dmg.LoadFile(romPath, dmg.WithSerialTiming())
	require.NoError(t, err)

	for frame := 0; frame < tc.maxFrames; frame++ {
		require.NoError(t, session.RunUntilFrame(), "frame %d", frame)
		out := session.SerialOutput()
		if strings.Contains(out, "Passed") || strings.Contains(out, "Failed") {
			break
		}
	}

	out := session.SerialOutput()
	require.Contains(t, out, "Passed", "serial output:\n%s", out)

	screen := session.Framebuffer().ToGrayscale()
	hash := fmt.Sprintf("%x", md5.Sum(screen))
	goldenPath := filepath.Join("testdata", tc.name+".bin")

	if os.Getenv("BLARGG_GENERATE_GOLDEN") == "true" {
		require.NoError(t, os.MkdirAll(filepath.Join("testdata", "snapshots"), 0o755))
		require.NoError(t, os.WriteFile(goldenPath, screen, 0o644))
		_, err := debug.SaveFramePNGToDir(session.Framebuffer(), tc.name, filepath.Join("testdata", "snapshots"))
		require.NoError(t, err)
		t.Logf("Reference files generated - hash: %s", hash)
		return
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		t.Logf("no golden screen for %s, set BLARGG_GENERATE_GOLDEN=true to create it", tc.name)
		return
	}
	require.NoError(t, err)

	if !assert.Equal(t, fmt.Sprintf("%x", md5.Sum(golden)), hash, "screen differs from golden") {
		path, err := debug.SaveFramePNGToDir(session.Framebuffer(), tc.name+"_actual", t.TempDir())
		if err == nil {
			t.Logf("actual screen saved to %s", path)
		}
	}
}

func TestBlarggSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping ROM tests in short mode")
	}
	for _, tc := range blarggTests {
		t.Run(tc.name, func(t *testing.T) {
			runBlarggTest(t, tc)
		})
	}
}
