// Package bitbang implements a software two-wire (TWI/I2C) master over two
// GPIO pins, for hosts without a bit-level I2C controller.
//
// Both lines are driven open drain: low is actively driven, high is released
// and pulled up by the bus's external resistors. The master tolerates slave
// clock stretching up to a fixed bound.
package bitbang

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/at24cm0x"
)

// ErrNACK is returned when the addressed device does not acknowledge a byte.
var ErrNACK = errors.New("bitbang: no acknowledge")

// stretchTimeout bounds how long a slave may hold SCL low.
const stretchTimeout = 25 * time.Millisecond

// TWI is a software two-wire master implementing at24cm0x.Bus.
type TWI struct {
	scl  gpio.PinIO
	sda  gpio.PinIO
	half time.Duration // half clock period
}

// New creates a software two-wire master on the given clock and data pins.
//
// f is the bus clock frequency, at most 400kHz. Both lines are released
// (bus idle) before New returns.
func New(scl, sda gpio.PinIO, f physic.Frequency) (*TWI, error) {
	if scl == nil || sda == nil {
		return nil, errors.New("bitbang: scl and sda pins are required")
	}
	if f <= 0 || f > 400*physic.KiloHertz {
		return nil, errors.New("bitbang: frequency must be between 1Hz and 400kHz")
	}

	t := &TWI{scl: scl, sda: sda, half: f.Period() / 2}
	if err := t.release(t.sda); err != nil {
		return nil, fmt.Errorf("bitbang: failed to release SDA: %w", err)
	}
	if err := t.release(t.scl); err != nil {
		return nil, fmt.Errorf("bitbang: failed to release SCL: %w", err)
	}
	return t, nil
}

// release stops driving the pin and lets the pull-up raise the line.
func (t *TWI) release(p gpio.PinIO) error {
	return p.In(gpio.PullUp, gpio.NoEdge)
}

func (t *TWI) tick() {
	time.Sleep(t.half)
}

// clockUp releases SCL and waits for it to actually rise, which a slave may
// delay by holding the line low (clock stretching).
func (t *TWI) clockUp() error {
	if err := t.release(t.scl); err != nil {
		return err
	}
	deadline := time.Now().Add(stretchTimeout)
	for t.scl.Read() != gpio.High {
		if time.Now().After(deadline) {
			return errors.New("bitbang: clock stretched beyond timeout")
		}
	}
	t.tick()
	return nil
}

// Start implements at24cm0x.Bus. It also generates a valid repeated start
// when the bus is already claimed.
func (t *TWI) Start() error {
	if err := t.release(t.sda); err != nil {
		return err
	}
	if err := t.clockUp(); err != nil {
		return err
	}
	// SDA falling while SCL is high.
	if err := t.sda.Out(gpio.Low); err != nil {
		return err
	}
	t.tick()
	if err := t.scl.Out(gpio.Low); err != nil {
		return err
	}
	t.tick()
	return nil
}

// Stop implements at24cm0x.Bus.
func (t *TWI) Stop() error {
	if err := t.sda.Out(gpio.Low); err != nil {
		return err
	}
	t.tick()
	if err := t.clockUp(); err != nil {
		return err
	}
	// SDA rising while SCL is high.
	if err := t.release(t.sda); err != nil {
		return err
	}
	t.tick()
	return nil
}

func (t *TWI) writeBit(b bool) error {
	var err error
	if b {
		err = t.release(t.sda)
	} else {
		err = t.sda.Out(gpio.Low)
	}
	if err != nil {
		return err
	}
	t.tick()
	if err := t.clockUp(); err != nil {
		return err
	}
	return t.scl.Out(gpio.Low)
}

func (t *TWI) readBit() (bool, error) {
	if err := t.release(t.sda); err != nil {
		return false, err
	}
	if err := t.clockUp(); err != nil {
		return false, err
	}
	b := t.sda.Read() == gpio.High
	if err := t.scl.Out(gpio.Low); err != nil {
		return false, err
	}
	t.tick()
	return b, nil
}

// writeOctet sends one byte MSB first and samples the slave's acknowledge.
func (t *TWI) writeOctet(b byte) error {
	for i := 7; i >= 0; i-- {
		if err := t.writeBit(b&(1<<i) != 0); err != nil {
			return err
		}
	}
	nack, err := t.readBit()
	if err != nil {
		return err
	}
	if nack {
		return ErrNACK
	}
	return nil
}

// Address implements at24cm0x.Bus.
func (t *TWI) Address(b byte, dir at24cm0x.Dir) error {
	v := b << 1
	if dir == at24cm0x.DirRead {
		v |= 1
	}
	return t.writeOctet(v)
}

// WriteByte implements at24cm0x.Bus.
func (t *TWI) WriteByte(b byte) error {
	return t.writeOctet(b)
}

// ReadByte implements at24cm0x.Bus.
func (t *TWI) ReadByte(ack bool) (byte, error) {
	var v byte
	for i := 0; i < 8; i++ {
		bit, err := t.readBit()
		if err != nil {
			return 0, err
		}
		v <<= 1
		if bit {
			v |= 1
		}
	}
	// The master answers ACK (line low) for more data, NACK for the last byte.
	if err := t.writeBit(!ack); err != nil {
		return 0, err
	}
	return v, nil
}

// String returns a string representation of the master.
func (t *TWI) String() string {
	return fmt.Sprintf("bitbang.TWI{%s, %s}", t.scl, t.sda)
}
