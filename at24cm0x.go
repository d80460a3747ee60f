// Package at24cm0x controls an AT24CM01/AT24CM02 serial EEPROM via TWI/I2C.
//
// The AT24CM0X family are byte-addressable EEPROMs of up to 2 Mbit that fold
// the top bits of the memory address into the I2C device-select byte.
//
// See the examples for how to use this package.
package at24cm0x

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Operation results. Every public operation returns nil on success or one of
// these values; callers match with errors.Is.
var (
	// ErrAddress is returned when a byte address is outside the memory array.
	ErrAddress = errors.New("at24cm0x: address out of range")
	// ErrPage is returned when a page index is outside the page count.
	ErrPage = errors.New("at24cm0x: page out of range")
	// ErrSize is returned when a transfer length is zero or, for page writes,
	// not below the page size.
	ErrSize = errors.New("at24cm0x: invalid transfer size")
	// ErrData is returned when a read-back verification does not match the
	// data that was written.
	ErrData = errors.New("at24cm0x: read-back mismatch")
	// ErrTransport is returned for any fault on the two-wire bus. The chip
	// does not distinguish an address NACK from a data NACK and neither does
	// the driver.
	ErrTransport = errors.New("at24cm0x: bus transfer failed")
	// ErrGeneral is reserved. No operation currently returns it.
	ErrGeneral = errors.New("at24cm0x: general failure")
)

// Dir is the transfer direction of an addressed bus phase.
type Dir bool

const (
	// DirWrite opens the phase in write direction.
	DirWrite Dir = false
	// DirRead opens the phase in read direction.
	DirRead Dir = true
)

// String returns "W" or "R".
func (d Dir) String() string {
	if d == DirRead {
		return "R"
	}
	return "W"
}

// Bus is a bit-level two-wire (TWI/I2C) master.
//
// Bus is lower level than a transaction-oriented I2C port: the driver needs
// control over start/stop generation and over the master's ACK/NACK answer
// after each received byte, because the terminal NACK is the only signal that
// tells the chip a sequential read is over.
//
// Address emits the addressed phase for the 7-bit address b with the R/W bit
// from dir, and returns a non-nil error if the device does not acknowledge.
// ReadByte receives one byte; ack selects the master's answer after the byte
// (true = ACK, more data wanted; false = NACK, last byte).
type Bus interface {
	Start() error
	Stop() error
	Address(b byte, dir Dir) error
	WriteByte(b byte) error
	ReadByte(ack bool) (byte, error)
}

// WPMode is the state of the hardware write-protect line.
type WPMode int

const (
	// WPEnabled asserts write protection; the chip ignores write transactions.
	WPEnabled WPMode = iota
	// WPDisabled releases write protection.
	WPDisabled
)

// Default device geometry and timing for the 2 Mbit AT24CM02.
const (
	DefaultMemorySize     = 262144
	DefaultPageSize       = 256
	DefaultBaseAddr       = 0x50
	DefaultWriteCycleTime = 10 * time.Millisecond
)

// Opts is the configuration for the AT24CM0X device.
type Opts struct {
	// Device geometry. Pages*PageSize must equal MemorySize.
	MemorySize uint32 // Total bytes (default: 262144 for 2 Mbit)
	Pages      uint32 // Page count (default: MemorySize/PageSize)
	PageSize   uint32 // Bytes per page (default: 256)

	// Addressing
	BaseAddr byte // 7-bit device family address (default: 0x50)
	A1, A2   bool // Hardware address pin straps; A1 is only meaningful below 2 Mbit

	// MultiDevice leaves the strap bits unset at construction; the target
	// device is chosen with SelectDevice.
	MultiDevice bool

	// WP is the write-protect pin (optional, nil if hard-wired).
	WP gpio.PinOut

	// Write-completion wait. With AckPolling the driver probes the chip with
	// address-only transactions until it answers ACK; the probe loop has no
	// bound, so a dead chip blocks forever. Without it the driver sleeps for
	// WriteCycleTime after every write.
	AckPolling     bool
	WriteCycleTime time.Duration // default: 10ms

	// VerifyWrites reads every written byte back and compares.
	VerifyWrites bool

	// Sleep is the blocking delay source (default: time.Sleep).
	Sleep func(time.Duration)
}

// Dev is the device handle for the AT24CM0X EEPROM.
type Dev struct {
	// Communication
	bus   Bus               // Two-wire master
	wp    gpio.PinOut       // Write-protect pin (optional)
	sleep func(time.Duration)

	// Geometry
	memorySize uint32
	pages      uint32
	pageSize   uint32

	// Addressing
	baseAddr byte
	highMask byte // device-select bits carrying A17/A16
	pinMask  byte // device-select bits driven by the A2/A1 straps
	multi    bool

	// Write behavior
	ackPolling bool
	writeCycle time.Duration
	verify     bool

	// State: 7-bit device-select byte with the highMask bits left zero; the
	// bank bits are folded in per transaction.
	deviceSelect byte
}

// New creates a new AT24CM0X device over the given two-wire bus.
//
// opts can be nil to use defaults (2 Mbit part, base address 0x50, all strap
// pins low, fixed 10ms write delay). If a WP pin is configured the pin is
// driven to the protected level before New returns.
func New(bus Bus, opts *Opts) (*Dev, error) {
	if bus == nil {
		return nil, errors.New("at24cm0x: bus is required")
	}
	if opts == nil {
		opts = &Opts{}
	}

	// Apply defaults and validate geometry
	memorySize := opts.MemorySize
	if memorySize == 0 {
		memorySize = DefaultMemorySize
	}
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	pages := opts.Pages
	if pages == 0 {
		pages = memorySize / pageSize
	}

	if memorySize > 1<<18 {
		return nil, errors.New("at24cm0x: memory size above 2 Mbit is not addressable")
	}
	if pageSize == 0 || pageSize > memorySize {
		return nil, errors.New("at24cm0x: page size must be between 1 and the memory size")
	}
	if pages*pageSize != memorySize {
		return nil, errors.New("at24cm0x: pages * page size must equal the memory size")
	}

	baseAddr := opts.BaseAddr
	if baseAddr == 0 {
		baseAddr = DefaultBaseAddr
	}
	if baseAddr > 0x7F {
		return nil, errors.New("at24cm0x: base address must be a 7-bit value")
	}

	writeCycle := opts.WriteCycleTime
	if writeCycle == 0 {
		writeCycle = DefaultWriteCycleTime
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	// The chip multiplexes the top 1-2 memory address bits into the
	// device-select byte. A 2 Mbit part uses two bank bits and keeps only
	// the A2 strap; smaller parts use one bank bit and A2/A1.
	highMask, pinMask := byte(0x01), byte(0x06)
	if memorySize >= 1<<18 {
		highMask, pinMask = 0x03, 0x04
	}

	d := &Dev{
		bus:        bus,
		wp:         opts.WP,
		sleep:      sleep,
		memorySize: memorySize,
		pages:      pages,
		pageSize:   pageSize,
		baseAddr:   baseAddr,
		highMask:   highMask,
		pinMask:    pinMask,
		multi:      opts.MultiDevice,
		ackPolling: opts.AckPolling,
		writeCycle: writeCycle,
		verify:     opts.VerifyWrites,
	}

	if err := d.init(opts); err != nil {
		return nil, err
	}

	return d, nil
}

// init establishes the device-select byte and the initial WP state.
func (d *Dev) init(opts *Opts) error {
	if d.wp != nil {
		if err := d.WP(WPEnabled); err != nil {
			return fmt.Errorf("at24cm0x: failed to assert write protection: %w", err)
		}
	}

	d.deviceSelect = d.baseAddr
	if !d.multi {
		var pins byte
		if opts.A1 {
			pins |= 1 << 1
		}
		if opts.A2 {
			pins |= 1 << 2
		}
		d.deviceSelect |= pins & d.pinMask
	}

	return nil
}

// SelectDevice selects the EEPROM with the given strap pin identifier as the
// target of all following operations. Bits of id outside the strap pin mask
// are ignored. No bus traffic is generated.
//
// SelectDevice is only available when Opts.MultiDevice was set.
func (d *Dev) SelectDevice(id byte) error {
	if !d.multi {
		return errors.New("at24cm0x: multi-device support not enabled")
	}
	d.deviceSelect = d.baseAddr | (id & d.pinMask)
	return nil
}

// WP drives the hardware write-protect line. WPEnabled pulls the pin to the
// protected level.
func (d *Dev) WP(mode WPMode) error {
	if d.wp == nil {
		return errors.New("at24cm0x: no write-protect pin configured")
	}
	level := gpio.Low
	if mode == WPEnabled {
		level = gpio.High
	}
	return d.wp.Out(level)
}

// selectByte folds the bank bits of addr into the device-select byte.
func (d *Dev) selectByte(addr uint32) byte {
	return d.deviceSelect | (byte(addr>>16) & d.highMask)
}

// sendAddress issues the three-byte address phase: device-select byte with
// the bank bits, then the high and low internal word-address bytes. All
// three bytes are issued even after a fault; the first error is kept.
func (d *Dev) sendAddress(addr uint32) error {
	err := d.bus.Address(d.selectByte(addr), DirWrite)
	if e := d.bus.WriteByte(byte(addr >> 8)); err == nil {
		err = e
	}
	if e := d.bus.WriteByte(byte(addr)); err == nil {
		err = e
	}
	return err
}

// waitWriteCycle blocks until the chip has finished its internal write cycle.
func (d *Dev) waitWriteCycle() {
	if !d.ackPolling {
		d.sleep(d.writeCycle)
		return
	}
	// The chip NACKs its own address while the write cycle is in progress.
	// No iteration bound; callers needing one wrap the operation.
	for {
		_ = d.bus.Start()
		if d.bus.Address(d.deviceSelect, DirWrite) == nil {
			break
		}
	}
	_ = d.bus.Stop()
}

// WriteByte writes one byte at the given memory address and waits out the
// chip's internal write cycle.
func (d *Dev) WriteByte(addr uint32, data byte) error {
	if addr >= d.memorySize {
		return ErrAddress
	}

	var err error
	if d.wp != nil {
		err = d.WP(WPDisabled)
	}

	if e := d.bus.Start(); err == nil {
		err = e
	}
	if e := d.sendAddress(addr); err == nil {
		err = e
	}
	if e := d.bus.WriteByte(data); err == nil {
		err = e
	}
	if e := d.bus.Stop(); err == nil {
		err = e
	}

	d.waitWriteCycle()

	// Re-assert on every exit path so the chip is never left unlocked.
	if d.wp != nil {
		if e := d.WP(WPEnabled); err == nil {
			err = e
		}
	}

	if err != nil {
		return ErrTransport
	}

	if d.verify {
		r, err := d.ReadByte(addr)
		if err != nil {
			return err
		}
		if r != data {
			return ErrData
		}
	}

	return nil
}

// WritePage writes data to the start of the given page in a single
// transaction and waits out the chip's internal write cycle.
//
// The length must be at least 1 and strictly below the page size; a
// full-page write is rejected with ErrSize.
func (d *Dev) WritePage(page int, data []byte) error {
	if page < 0 || uint32(page) >= d.pages {
		return ErrPage
	}
	if len(data) == 0 || uint32(len(data)) >= d.pageSize {
		return ErrSize
	}

	addr := uint32(page) * d.pageSize

	var err error
	if d.wp != nil {
		err = d.WP(WPDisabled)
	}

	if e := d.bus.Start(); err == nil {
		err = e
	}
	if e := d.sendAddress(addr); err == nil {
		err = e
	}
	for _, b := range data {
		if e := d.bus.WriteByte(b); err == nil {
			err = e
		}
	}
	if e := d.bus.Stop(); err == nil {
		err = e
	}

	d.waitWriteCycle()

	if d.wp != nil {
		if e := d.WP(WPEnabled); err == nil {
			err = e
		}
	}

	if err != nil {
		return ErrTransport
	}

	if d.verify {
		buf := make([]byte, len(data))
		if err := d.ReadSequential(addr, buf); err != nil {
			return err
		}
		if !bytes.Equal(buf, data) {
			return ErrData
		}
	}

	return nil
}

// ReadCurrentByte reads the byte at the chip's internal address pointer. The
// pointer holds the address following the last accessed byte, modulo the
// memory size.
func (d *Dev) ReadCurrentByte() (byte, error) {
	err := d.bus.Start()
	if e := d.bus.Address(d.deviceSelect, DirRead); err == nil {
		err = e
	}
	b, e := d.bus.ReadByte(false)
	if err == nil {
		err = e
	}
	if e := d.bus.Stop(); err == nil {
		err = e
	}

	if err != nil {
		return 0, ErrTransport
	}
	return b, nil
}

// position sets the chip's internal address pointer without transferring
// data: start, three-byte address phase, stop.
func (d *Dev) position(addr uint32) error {
	err := d.bus.Start()
	if e := d.sendAddress(addr); err == nil {
		err = e
	}
	if e := d.bus.Stop(); err == nil {
		err = e
	}
	return err
}

// ReadByte reads one byte at the given memory address (random read).
func (d *Dev) ReadByte(addr uint32) (byte, error) {
	if addr >= d.memorySize {
		return 0, ErrAddress
	}

	err := d.position(addr)

	if e := d.bus.Start(); err == nil {
		err = e
	}
	if e := d.bus.Address(d.selectByte(addr), DirRead); err == nil {
		err = e
	}
	b, e := d.bus.ReadByte(false)
	if err == nil {
		err = e
	}
	if e := d.bus.Stop(); err == nil {
		err = e
	}

	if err != nil {
		return 0, ErrTransport
	}
	return b, nil
}

// ReadSequential reads len(buf) bytes starting at the given memory address.
// The chip auto-increments its internal pointer; the master answers ACK after
// every byte except the last, which gets the terminal NACK.
func (d *Dev) ReadSequential(addr uint32, buf []byte) error {
	if addr >= d.memorySize {
		return ErrAddress
	}
	if len(buf) == 0 {
		return ErrSize
	}

	err := d.position(addr)

	if e := d.bus.Start(); err == nil {
		err = e
	}
	if e := d.bus.Address(d.selectByte(addr), DirRead); err == nil {
		err = e
	}
	for i := range buf {
		b, e := d.bus.ReadByte(i < len(buf)-1)
		if err == nil {
			err = e
		}
		buf[i] = b
	}
	if e := d.bus.Stop(); err == nil {
		err = e
	}

	if err != nil {
		return ErrTransport
	}
	return nil
}

// MemorySize returns the total addressable bytes of the configured device.
func (d *Dev) MemorySize() uint32 {
	return d.memorySize
}

// PageSize returns the configured page size in bytes.
func (d *Dev) PageSize() uint32 {
	return d.pageSize
}

// Pages returns the configured page count.
func (d *Dev) Pages() uint32 {
	return d.pages
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("at24cm0x.Dev{%dKB@%#02x}", d.memorySize/1024, d.deviceSelect)
}
