package serial

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/bit"
	"github.com/valerio/dotmatrix/dmg/interrupt"
	"github.com/valerio/dotmatrix/dmg/state"
)

// transferCycles is one byte at the internal 8192 Hz clock.
const transferCycles = 4096

// LogSink is a serial device with nothing on the other end of the cable. It
// logs outgoing bytes as text lines and keeps a transcript, which is how test
// ROMs report their results.
type LogSink struct {
	irq            interrupt.Requester
	sb, sc         byte
	transferActive bool
	countdown      int
	logger         *slog.Logger // nil logs through slog.Default at the time of logging

	immediate bool
	defaultRX byte // shifted in when the transfer completes

	line       []byte
	transcript bytes.Buffer
	mirror     io.Writer
}

type LogSinkOption func(*LogSink)

// WithFixedTiming completes transfers after 4096 cycles instead of
// immediately.
func WithFixedTiming() LogSinkOption { return func(s *LogSink) { s.immediate = false } }

// WithWriter copies every outgoing byte to w.
func WithWriter(w io.Writer) LogSinkOption { return func(s *LogSink) { s.mirror = w } }

// WithLogger sends the line log to l instead of slog.Default.
func WithLogger(l *slog.Logger) LogSinkOption { return func(s *LogSink) { s.logger = l } }

func (s *LogSink) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// NewLogSink creates the serial device. Completed transfers request the
// serial interrupt on irq.
func NewLogSink(irq interrupt.Requester, opts ...LogSinkOption) *LogSink {
	s := &LogSink{
		irq:       irq,
		immediate: true,
		defaultRX: 0xFF,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

func (s *LogSink) Write(address uint16, value byte) {
	switch address {
	case addr.SB:
		s.sb = value
	case addr.SC:
		s.sc = value
		s.maybeStartTransfer()
	}
}

// Read returns SB and SC. SC bits 1-6 are unused and read as 1.
func (s *LogSink) Read(address uint16) byte {
	switch address {
	case addr.SB:
		return s.sb
	case addr.SC:
		return s.sc | 0x7E
	}
	return 0xFF
}

func (s *LogSink) Tick(cycles int) {
	if s.immediate || !s.transferActive {
		return
	}
	s.countdown -= cycles
	if s.countdown <= 0 {
		s.completeTransfer()
		s.countdown = 0
	}
}

func (s *LogSink) Reset() {
	s.sb = 0x00
	s.sc = 0x00
	s.transferActive = false
	s.countdown = 0
	s.line = s.line[:0]
	s.transcript.Reset()
}

// Output returns everything sent so far.
func (s *LogSink) Output() string {
	return s.transcript.String()
}

func (s *LogSink) maybeStartTransfer() {
	if s.transferActive {
		return
	}
	// start (bit 7) with the internal clock (bit 0); an external clock never
	// ticks with no peer attached
	if !bit.IsSet(7, s.sc) || !bit.IsSet(0, s.sc) {
		return
	}

	b := s.sb
	s.transcript.WriteByte(b)
	if s.mirror != nil {
		if _, err := s.mirror.Write([]byte{b}); err != nil {
			s.log().Warn("serial mirror write failed", "err", err)
			s.mirror = nil
		}
	}

	if b == 0 || b == '\n' || b == '\r' {
		if len(s.line) > 0 {
			s.log().Info("serial", "line", string(s.line))
			s.line = s.line[:0]
		}
	} else {
		s.line = append(s.line, b)
	}

	if s.immediate {
		s.completeTransfer()
		return
	}

	s.transferActive = true
	s.countdown = transferCycles
}

func (s *LogSink) completeTransfer() {
	s.sb = s.defaultRX
	s.sc = bit.Reset(7, s.sc)
	s.transferActive = false
	s.irq.Request(addr.SerialInterrupt)
}

type sinkState struct {
	SB, SC    byte
	Active    bool
	Countdown int
}

func (s *LogSink) SaveState() []byte {
	return state.Encode("serial", sinkState{SB: s.sb, SC: s.sc, Active: s.transferActive, Countdown: s.countdown})
}

func (s *LogSink) LoadState(data []byte) error {
	var st sinkState
	if err := state.Decode(data, &st); err != nil {
		return err
	}
	s.sb, s.sc, s.transferActive, s.countdown = st.SB, st.SC, st.Active, st.Countdown
	return nil
}
