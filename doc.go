// Package at24cm0x controls an AT24CM01/AT24CM02 serial EEPROM via TWI/I2C.
//
// The AT24CM0X family are two-wire serial EEPROMs of up to 2 Mbit (256 KB).
// The driver provides random-access byte and page I/O on top of the chip's
// wire protocol and hides the three mechanical concerns that dominate
// correctness: the 17/18-bit address encoding split between the device-select
// byte and two word-address bytes, the wait for the chip's internal write
// cycle, and the terminal NACK that ends a sequential read.
//
// # Device Characteristics
//
//   - Up to 262144 bytes (2 Mbit), byte addressable
//   - 256-byte pages, programmed in a single internal write cycle
//   - The top 1-2 address bits travel inside the I2C device-select byte, so
//     the physical bus address changes with the upper address region
//   - Typical 10ms internal write cycle after every write transaction
//   - Optional hardware write-protect (WP) input
//
// # Hardware Connection
//
// Connect the EEPROM to your system's two-wire bus:
//
//	EEPROM Pin → System Pin
//	GND        → GND
//	VCC        → 1.7-5.5V
//	SCL        → I2C clock
//	SDA        → I2C data
//	WP         → Optional: GPIO for write-protect control (or GND)
//	A1, A2     → Address straps (A1 is a no-connect on 2 Mbit parts)
//
// # Basic Usage
//
//	package main
//
//	import (
//		"log"
//
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/physic"
//		"periph.io/x/devices/v3/at24cm0x"
//		"periph.io/x/devices/v3/at24cm0x/bitbang"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		host.Init()
//
//		scl := gpioreg.ByName("GPIO3")
//		sda := gpioreg.ByName("GPIO2")
//		bus, err := bitbang.New(scl, sda, 100*physic.KiloHertz)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		dev, err := at24cm0x.New(bus, &at24cm0x.Opts{A2: true})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := dev.WriteByte(0x1234, 0x7E); err != nil {
//			log.Fatal(err)
//		}
//		b, err := dev.ReadByte(0x1234)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("read back %#02x", b)
//	}
//
// Any implementation of the Bus interface works; bitbang is provided for
// hosts without a bit-level I2C controller, and bustest provides a simulated
// chip for tests.
//
// # Address Encoding
//
// A memory address is sent as three bytes: the device-select byte carrying
// the top one or two address bits (A16 on 1 Mbit parts, A17/A16 on 2 Mbit
// parts), then the middle and low word-address bytes. The driver computes
// the combined device-select byte per transaction; both phases of a random
// read use it.
//
// # Write Cycle Handling
//
// Every write transaction is followed by the chip's internal write cycle,
// during which it ignores all bus traffic. The driver either sleeps for
// Opts.WriteCycleTime (default 10ms) or, with Opts.AckPolling, probes the
// chip with address-only transactions until it answers ACK. The polling loop
// is unbounded: on a dead or absent chip the call does not return, so
// callers that need robustness impose an external timeout.
//
// # Write Protection
//
// When Opts.WP is set, the driver holds the WP line asserted and releases it
// only for the duration of each write transaction, re-asserting it on every
// exit path including faults.
//
// # Write Verification
//
// With Opts.VerifyWrites, every write is read back and compared; a mismatch
// is reported as ErrData, turning a silent hardware corruption into an
// explicit error.
//
// # Multiple Devices
//
// Up to two 2 Mbit (or four 1 Mbit) devices can share the bus, distinguished
// by their strap pins. With Opts.MultiDevice, the target is chosen at
// runtime:
//
//	dev, _ := at24cm0x.New(bus, &at24cm0x.Opts{MultiDevice: true})
//	dev.SelectDevice(1 << 2) // A2 high
//
// # Concurrency
//
// The driver assumes exclusive use of the bus, the delay source and the WP
// pin for the duration of each operation. Concurrent callers must serialize
// externally.
//
// # Datasheet
//
// https://ww1.microchip.com/downloads/en/DeviceDoc/AT24CM02-DS20006197.pdf
package at24cm0x
