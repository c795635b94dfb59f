package interrupt

import (
	"github.com/valerio/dotmatrix/dmg/addr"
	"github.com/valerio/dotmatrix/dmg/state"
)

const (
	baseVector uint16 = 0x40
	// ifUnusedBits always read back as 1 from IF.
	ifUnusedBits uint8 = 0xE0
	// validMask covers the five interrupt sources.
	validMask uint8 = 0x1F
)

// Requester is implemented by anything that can raise an interrupt request.
// Timer, PPU, joypad and serial only ever see this side of the controller.
type Requester interface {
	Request(interrupt addr.Interrupt)
}

// Controller holds the IE/IF masks and the master enable flag (IME).
//
// The one-instruction delay of EI is not modelled here: the CPU decides when
// to flip the master enable.
type Controller struct {
	enabled   uint8
	requested uint8
	master    bool
}

func New() *Controller {
	return &Controller{}
}

// Request sets the requested bit for the interrupt.
func (c *Controller) Request(interrupt addr.Interrupt) {
	c.requested |= uint8(interrupt) & validMask
}

// Acknowledge clears the requested bit for the interrupt.
func (c *Controller) Acknowledge(interrupt addr.Interrupt) {
	c.requested &^= uint8(interrupt)
}

// SetEnabled replaces the enabled mask (IE).
func (c *Controller) SetEnabled(mask uint8) {
	c.enabled = mask
}

func (c *Controller) Enabled() uint8 {
	return c.enabled
}

// SetRequested replaces the requested mask (IF).
func (c *Controller) SetRequested(mask uint8) {
	c.requested = mask & validMask
}

func (c *Controller) Requested() uint8 {
	return c.requested
}

// Pending returns the interrupts that are both requested and enabled,
// regardless of the master enable.
func (c *Controller) Pending() uint8 {
	return c.enabled & c.requested & validMask
}

func (c *Controller) SetMasterEnable(enabled bool) {
	c.master = enabled
}

func (c *Controller) MasterEnabled() bool {
	return c.master
}

// Next returns the highest priority pending interrupt, if any.
func (c *Controller) Next() (addr.Interrupt, bool) {
	pending := c.Pending()
	if pending == 0 {
		return 0, false
	}
	for _, i := range addr.Interrupts {
		if pending&uint8(i) != 0 {
			return i, true
		}
	}
	return 0, false
}

// Vector returns the handler address for an interrupt: 0x40, 0x48, 0x50, 0x58, 0x60.
func Vector(interrupt addr.Interrupt) uint16 {
	for n, i := range addr.Interrupts {
		if i == interrupt {
			return baseVector + uint16(n)*8
		}
	}
	return baseVector
}

// Read serves CPU reads of IF and IE.
func (c *Controller) Read(address uint16) byte {
	switch address {
	case addr.IF:
		return c.requested | ifUnusedBits
	case addr.IE:
		return c.enabled
	default:
		return 0xFF
	}
}

// Write serves CPU writes of IF and IE.
func (c *Controller) Write(address uint16, value byte) {
	switch address {
	case addr.IF:
		c.SetRequested(value)
	case addr.IE:
		c.SetEnabled(value)
	}
}

type controllerState struct {
	Enabled   uint8
	Requested uint8
	Master    bool
}

func (c *Controller) SaveState() []byte {
	return state.Encode("interrupts", controllerState{Enabled: c.enabled, Requested: c.requested, Master: c.master})
}

func (c *Controller) LoadState(data []byte) error {
	var s controllerState
	if err := state.Decode(data, &s); err != nil {
		return err
	}
	c.enabled, c.requested, c.master = s.Enabled, s.Requested&validMask, s.Master
	return nil
}
