package memory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/valerio/dotmatrix/dmg/state"
)

// MBC is a Memory Bank Controller. It owns the banking registers and
// translates CPU addresses into offsets in the cartridge ROM and RAM.
type MBC interface {
	// MapROM translates an address in 0000-7FFF into a ROM offset.
	MapROM(address uint16) int
	// MapRAM translates an address in A000-BFFF into a RAM offset. ok is
	// false when RAM is disabled or absent.
	MapRAM(address uint16) (offset int, ok bool)
	// Write updates the banking registers for a write in 0000-7FFF.
	Write(address uint16, value uint8)

	SaveState() []byte
	LoadState(data []byte) error
}

// banks holds the cartridge geometry every controller masks against.
type banks struct {
	romMask int
	ramSize int
}

func (b banks) rom(bank int, address uint16) int {
	return (bank&b.romMask)*romBankSize + int(address&0x3FFF)
}

func (b banks) ram(bank int, address uint16) (int, bool) {
	if b.ramSize == 0 {
		return 0, false
	}
	return (bank*ramBankSize + int(address-0xA000)) % b.ramSize, true
}

// ramEnableValue is the low nibble that enables external RAM.
const ramEnableValue = 0x0A

// NoMBC represents cartridges with no memory banking capabilities.
// The ROM is mapped directly to 0x0000-0x7FFF. ROM+RAM carts expose up to
// 8KB of RAM at 0xA000 with no enable register.
type NoMBC struct {
	banks
}

func NewNoMBC(b banks) *NoMBC {
	return &NoMBC{banks: b}
}

func (m *NoMBC) MapROM(address uint16) int {
	return int(address) & (m.romMask*romBankSize | 0x3FFF)
}

func (m *NoMBC) MapRAM(address uint16) (int, bool) {
	return m.ram(0, address)
}

func (m *NoMBC) Write(address uint16, value uint8) {
	slog.Debug("Ignoring write to ROM", "addr", fmt.Sprintf("0x%04X", address), "value", fmt.Sprintf("0x%02X", value))
}

func (m *NoMBC) SaveState() []byte           { return nil }
func (m *NoMBC) LoadState(data []byte) error { return nil }

// MBC1 supports up to 2MB ROM and 32KB RAM.
//
//   - 0000-1FFF: RAM enable (0x0A in the low nibble)
//   - 2000-3FFF: BANK1, low 5 bits of the ROM bank; 0 is coerced to 1
//   - 4000-5FFF: BANK2, 2 bits used as ROM bank bits 5-6 or as RAM bank
//   - 6000-7FFF: mode; in mode 1 BANK2 also applies to 0000-3FFF and RAM
//
// The coercion looks at the 5 bit register only, so bank 0x20 is reachable
// in the 0000-3FFF window in mode 1 but never in the switchable window.
type MBC1 struct {
	banks
	bank1      uint8
	bank2      uint8
	mode       uint8
	ramEnabled bool
}

func NewMBC1(b banks) *MBC1 {
	return &MBC1{banks: b, bank1: 1}
}

func (m *MBC1) MapROM(address uint16) int {
	if address < romBankSize {
		if m.mode == 0 {
			return int(address)
		}
		return m.rom(int(m.bank2)<<5, address)
	}
	return m.rom(int(m.bank2)<<5|int(m.bank1), address)
}

func (m *MBC1) MapRAM(address uint16) (int, bool) {
	if !m.ramEnabled {
		return 0, false
	}
	bank := 0
	if m.mode == 1 {
		bank = int(m.bank2)
	}
	return m.ram(bank, address)
}

func (m *MBC1) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == ramEnableValue
	case address <= 0x3FFF:
		m.bank1 = value & 0x1F
		if m.bank1 == 0 {
			m.bank1 = 1
		}
	case address <= 0x5FFF:
		m.bank2 = value & 0x03
	default:
		m.mode = value & 0x01
	}
}

type mbc1State struct {
	Bank1, Bank2, Mode uint8
	RAMEnabled         bool
}

func (m *MBC1) SaveState() []byte {
	return state.Encode("mbc", mbc1State{m.bank1, m.bank2, m.mode, m.ramEnabled})
}

func (m *MBC1) LoadState(data []byte) error {
	var s mbc1State
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	m.bank1, m.bank2, m.mode, m.ramEnabled = s.Bank1, s.Bank2, s.Mode, s.RAMEnabled
	return nil
}

// MBC2 has up to 256KB ROM and 512 half-bytes of built-in RAM, mirrored
// across A000-BFFF. Bit 8 of the address selects between the RAM enable
// register (clear) and the ROM bank register (set) in 0000-3FFF.
type MBC2 struct {
	banks
	romBank    uint8
	ramEnabled bool
}

func NewMBC2(b banks) *MBC2 {
	return &MBC2{banks: b, romBank: 1}
}

func (m *MBC2) MapROM(address uint16) int {
	if address < romBankSize {
		return int(address)
	}
	return m.rom(int(m.romBank), address)
}

func (m *MBC2) MapRAM(address uint16) (int, bool) {
	if !m.ramEnabled {
		return 0, false
	}
	return int(address-0xA000) & (mbc2RAMSize - 1), true
}

func (m *MBC2) Write(address uint16, value uint8) {
	if address > 0x3FFF {
		return
	}
	if address&0x0100 == 0 {
		m.ramEnabled = value&0x0F == ramEnableValue
		return
	}
	m.romBank = value & 0x0F
	if m.romBank == 0 {
		m.romBank = 1
	}
}

type mbc2State struct {
	ROMBank    uint8
	RAMEnabled bool
}

func (m *MBC2) SaveState() []byte {
	return state.Encode("mbc", mbc2State{m.romBank, m.ramEnabled})
}

func (m *MBC2) LoadState(data []byte) error {
	var s mbc2State
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	m.romBank, m.ramEnabled = s.ROMBank, s.RAMEnabled
	return nil
}

// Clock is the time source of the MBC3 real time clock.
type Clock interface {
	Now() time.Time
}

type systemClockFunc func() time.Time

func (s systemClockFunc) Now() time.Time {
	return s()
}

const (
	rtcSeconds uint8 = 0x08 + iota
	rtcMinutes
	rtcHours
	rtcDaysLow
	rtcDaysHigh
)

const (
	secondsPerDay = 24 * 60 * 60
	rtcDayLimit   = 512
)

// MBC3 supports up to 2MB ROM, 32KB RAM and an optional real time clock.
// Selecting 0x08-0x0C in the RAM bank register maps an RTC register at
// A000-BFFF. Writing 0 then 1 to 6000-7FFF latches the clock.
type MBC3 struct {
	banks
	romBank    uint8
	ramBank    uint8
	ramEnabled bool

	hasRTC     bool
	clock      Clock
	base       time.Time // the moment the counter read zero
	halted     bool
	haltedAt   int64
	dayCarry   bool
	latched    [5]uint8
	latchArmed bool
}

func NewMBC3(b banks, hasRTC bool, clock Clock) *MBC3 {
	if clock == nil {
		clock = systemClockFunc(time.Now)
	}
	return &MBC3{
		banks:   b,
		romBank: 1,
		hasRTC:  hasRTC,
		clock:   clock,
		base:    clock.Now(),
	}
}

func (m *MBC3) MapROM(address uint16) int {
	if address < romBankSize {
		return int(address)
	}
	return m.rom(int(m.romBank), address)
}

func (m *MBC3) MapRAM(address uint16) (int, bool) {
	if !m.ramEnabled || m.ramBank > 0x03 {
		return 0, false
	}
	return m.ram(int(m.ramBank), address)
}

func (m *MBC3) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == ramEnableValue
	case address <= 0x3FFF:
		m.romBank = value & 0x7F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case address <= 0x5FFF:
		m.ramBank = value & 0x0F
	default:
		if m.latchArmed && value == 0x01 {
			m.latch()
		}
		m.latchArmed = value == 0x00
	}
}

func (m *MBC3) rtcSelected() bool {
	return m.hasRTC && m.ramEnabled && m.ramBank >= rtcSeconds && m.ramBank <= rtcDaysHigh
}

// readRTC returns the latched register when one is mapped.
func (m *MBC3) readRTC() (uint8, bool) {
	if !m.rtcSelected() {
		return 0, false
	}
	return m.latched[m.ramBank-rtcSeconds], true
}

// writeRTC sets the live counter register when one is mapped.
func (m *MBC3) writeRTC(value uint8) bool {
	if !m.rtcSelected() {
		return false
	}

	s := m.elapsed()
	secs, mins, hours, days := s%60, s/60%60, s/3600%24, s/secondsPerDay
	switch m.ramBank {
	case rtcSeconds:
		secs = int64(value % 60)
	case rtcMinutes:
		mins = int64(value % 60)
	case rtcHours:
		hours = int64(value % 24)
	case rtcDaysLow:
		days = days&0x100 | int64(value)
	case rtcDaysHigh:
		days = days&0xFF | int64(value&0x01)<<8
		m.dayCarry = value&0x80 != 0
		m.setHalted(value&0x40 != 0, s)
	}
	m.setElapsed(days*secondsPerDay + hours*3600 + mins*60 + secs)
	m.latched[m.ramBank-rtcSeconds] = value
	return true
}

func (m *MBC3) elapsed() int64 {
	if m.halted {
		return m.haltedAt
	}
	return int64(m.clock.Now().Sub(m.base) / time.Second)
}

func (m *MBC3) setElapsed(seconds int64) {
	if m.halted {
		m.haltedAt = seconds
		return
	}
	m.base = m.clock.Now().Add(-time.Duration(seconds) * time.Second)
}

func (m *MBC3) setHalted(halted bool, current int64) {
	if halted == m.halted {
		return
	}
	if halted {
		m.haltedAt = current
		m.halted = true
		return
	}
	m.halted = false
	m.setElapsed(m.haltedAt)
}

func (m *MBC3) latch() {
	s := m.elapsed()
	days := s / secondsPerDay
	if days >= rtcDayLimit {
		m.dayCarry = true
		s -= rtcDayLimit * secondsPerDay * (days / rtcDayLimit)
		m.setElapsed(s)
		days = s / secondsPerDay
	}

	m.latched[0] = uint8(s % 60)
	m.latched[1] = uint8(s / 60 % 60)
	m.latched[2] = uint8(s / 3600 % 24)
	m.latched[3] = uint8(days)
	dh := uint8(days>>8) & 0x01
	if m.halted {
		dh |= 0x40
	}
	if m.dayCarry {
		dh |= 0x80
	}
	m.latched[4] = dh
}

type mbc3State struct {
	ROMBank, RAMBank uint8
	RAMEnabled       bool
	Elapsed          int64
	Halted           bool
	DayCarry         bool
	Latched          [5]uint8
	LatchArmed       bool
}

func (m *MBC3) SaveState() []byte {
	return state.Encode("mbc", mbc3State{
		ROMBank:    m.romBank,
		RAMBank:    m.ramBank,
		RAMEnabled: m.ramEnabled,
		Elapsed:    m.elapsed(),
		Halted:     m.halted,
		DayCarry:   m.dayCarry,
		Latched:    m.latched,
		LatchArmed: m.latchArmed,
	})
}

func (m *MBC3) LoadState(data []byte) error {
	var s mbc3State
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	m.romBank, m.ramBank, m.ramEnabled = s.ROMBank, s.RAMBank, s.RAMEnabled
	m.halted, m.dayCarry = s.Halted, s.DayCarry
	m.latched, m.latchArmed = s.Latched, s.LatchArmed
	m.haltedAt = 0
	m.setElapsed(s.Elapsed)
	return nil
}

// MBC5 supports up to 8MB ROM and 128KB RAM with a 9 bit ROM bank register.
// Unlike the older controllers, bank 0 can be mapped at 4000-7FFF. On rumble
// carts bit 3 of the RAM bank register drives the motor instead.
type MBC5 struct {
	banks
	romBank    uint16
	ramBank    uint8
	ramEnabled bool
	hasRumble  bool
	rumbling   bool
}

func NewMBC5(b banks, hasRumble bool) *MBC5 {
	return &MBC5{banks: b, romBank: 1, hasRumble: hasRumble}
}

func (m *MBC5) MapROM(address uint16) int {
	if address < romBankSize {
		return int(address)
	}
	return m.rom(int(m.romBank), address)
}

func (m *MBC5) MapRAM(address uint16) (int, bool) {
	if !m.ramEnabled {
		return 0, false
	}
	return m.ram(int(m.ramBank), address)
}

func (m *MBC5) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == ramEnableValue
	case address <= 0x2FFF:
		m.romBank = m.romBank&0x100 | uint16(value)
	case address <= 0x3FFF:
		m.romBank = m.romBank&0xFF | uint16(value&0x01)<<8
	case address <= 0x5FFF:
		if m.hasRumble {
			m.rumbling = value&0x08 != 0
			value &= 0x07
		}
		m.ramBank = value & 0x0F
	}
}

// Rumbling reports whether the rumble motor is on.
func (m *MBC5) Rumbling() bool {
	return m.rumbling
}

type mbc5State struct {
	ROMBank    uint16
	RAMBank    uint8
	RAMEnabled bool
	Rumbling   bool
}

func (m *MBC5) SaveState() []byte {
	return state.Encode("mbc", mbc5State{m.romBank, m.ramBank, m.ramEnabled, m.rumbling})
}

func (m *MBC5) LoadState(data []byte) error {
	var s mbc5State
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	m.romBank, m.ramBank, m.ramEnabled, m.rumbling = s.ROMBank, s.RAMBank, s.RAMEnabled, s.Rumbling
	return nil
}
