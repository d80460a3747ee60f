// Package bustest provides a simulated AT24CM0X chip behind the at24cm0x.Bus
// interface, with a wire trace and fault injection for tests.
package bustest

import (
	"errors"
	"fmt"

	"periph.io/x/devices/v3/at24cm0x"
)

// Errors returned by the simulated bus.
var (
	// ErrNACK is returned when the addressed device does not acknowledge.
	ErrNACK = errors.New("bustest: no acknowledge")
	// ErrFault is the injected fault, see Device.FailAt.
	ErrFault = errors.New("bustest: injected fault")
)

// Device simulates an AT24CM0X EEPROM on a two-wire bus.
//
// It decodes device-select bytes (strap pins plus bank bits), latches the
// two word-address bytes, auto-increments its internal address pointer, and
// wraps data writes inside the addressed page the way the chip does. Every
// bus primitive is appended to Trace in a printable form:
//
//	"S", "P", "addr(0x54,W)", "send(0x7e)", "recv(ACK)", "recv(NACK)"
type Device struct {
	// Mem is the backing storage; its length is the memory size.
	Mem []byte
	// Select is the device-select byte the chip answers to, bank bits zero.
	Select byte
	// HighMask is the set of device-select bits carrying bank bits.
	HighMask byte
	// PageSize bounds the write wrap-around (default set by New: 256).
	PageSize int

	// Trace holds one entry per bus primitive issued.
	Trace []string
	// Calls counts bus primitives, including start and stop conditions.
	Calls int

	// FailAt makes the FailAt-th primitive (1-based) return ErrFault.
	FailAt int
	// BusyPolls makes the chip NACK its address for that many addressed
	// phases after each completed write transaction, emulating the internal
	// write cycle for acknowledge polling.
	BusyPolls int
	// CorruptWrites is XORed into every stored data byte, emulating a bad
	// cell for write-verification tests.
	CorruptWrites byte

	started   bool
	selected  bool
	dir       at24cm0x.Dir
	bank      uint32
	addrPhase int // 0 = data phase, 1 = expecting high byte, 2 = expecting low byte
	wordHi    byte
	pointer   uint32
	wrote     bool
	busy      int
	ended     bool
}

// New creates a simulated chip of the given size answering to the given
// device-select byte. The bank bit mask is derived from the size and the
// page size defaults to 256.
func New(size int, sel byte) *Device {
	d := &Device{
		Mem:      make([]byte, size),
		Select:   sel,
		HighMask: 0x01,
		PageSize: 256,
	}
	if size >= 1<<18 {
		d.HighMask = 0x03
	}
	return d
}

// ClearTrace drops the recorded trace and resets the call counter.
func (d *Device) ClearTrace() {
	d.Trace = nil
	d.Calls = 0
}

// call records one primitive and applies fault injection.
func (d *Device) call(op string) error {
	d.Calls++
	d.Trace = append(d.Trace, op)
	if d.FailAt != 0 && d.Calls == d.FailAt {
		return ErrFault
	}
	return nil
}

// Start implements at24cm0x.Bus.
func (d *Device) Start() error {
	err := d.call("S")
	d.started = true
	d.selected = false
	d.addrPhase = 0
	return err
}

// Stop implements at24cm0x.Bus.
func (d *Device) Stop() error {
	err := d.call("P")
	d.started = false
	d.selected = false
	d.addrPhase = 0
	if d.wrote {
		d.busy = d.BusyPolls
		d.wrote = false
	}
	return err
}

// Address implements at24cm0x.Bus.
func (d *Device) Address(b byte, dir at24cm0x.Dir) error {
	if err := d.call(fmt.Sprintf("addr(%#02x,%s)", b, dir)); err != nil {
		return err
	}
	if !d.started {
		return ErrNACK
	}
	if b&^d.HighMask != d.Select {
		return ErrNACK
	}
	if d.busy > 0 {
		d.busy--
		return ErrNACK
	}

	d.selected = true
	d.dir = dir
	d.bank = uint32(b&d.HighMask) << 16
	if dir == at24cm0x.DirWrite {
		d.addrPhase = 1
	} else {
		// Reads take the bank from this transaction's select byte and the
		// low 16 bits from the internal pointer.
		d.pointer = d.bank | (d.pointer & 0xFFFF)
		d.ended = false
	}
	return nil
}

// WriteByte implements at24cm0x.Bus.
func (d *Device) WriteByte(b byte) error {
	if err := d.call(fmt.Sprintf("send(%#02x)", b)); err != nil {
		return err
	}
	if !d.selected || d.dir != at24cm0x.DirWrite {
		return ErrNACK
	}

	switch d.addrPhase {
	case 1:
		d.wordHi = b
		d.addrPhase = 2
	case 2:
		d.pointer = d.bank | uint32(d.wordHi)<<8 | uint32(b)
		d.addrPhase = 0
	default:
		d.Mem[int(d.pointer)%len(d.Mem)] = b ^ d.CorruptWrites
		d.wrote = true
		// Data writes wrap inside the addressed page.
		next := d.pointer + 1
		if int(next)%d.PageSize == 0 {
			next -= uint32(d.PageSize)
		}
		d.pointer = next
	}
	return nil
}

// ReadByte implements at24cm0x.Bus.
func (d *Device) ReadByte(ack bool) (byte, error) {
	op := "recv(NACK)"
	if ack {
		op = "recv(ACK)"
	}
	if err := d.call(op); err != nil {
		return 0, err
	}
	if !d.selected || d.dir != at24cm0x.DirRead || d.ended {
		// Nobody drives the line; the master samples it high.
		return 0xFF, nil
	}

	b := d.Mem[int(d.pointer)%len(d.Mem)]
	d.pointer = (d.pointer + 1) % uint32(len(d.Mem))
	if !ack {
		d.ended = true
	}
	return b, nil
}
