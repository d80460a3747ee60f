// Package bustest provides a simulated AT24CM0X chip for testing code built
// on the at24cm0x driver without hardware.
//
// Device implements at24cm0x.Bus and models the chip's observable protocol
// behavior:
//
// - Device-select decode including the bank bits of large parts
// - The two-byte word-address phase and the internal address pointer
// - Pointer auto-increment on reads, wrapping at the end of the array
// - Data writes wrapping inside the addressed page
// - A configurable number of address NACKs after each write, emulating the
//   internal write cycle for acknowledge-polling tests
//
// Every bus primitive is recorded in Trace in a printable form, so tests can
// assert the bit-exact wire layout of a transaction:
//
//	dev := bustest.New(262144, 0x54)
//	d, _ := at24cm0x.New(dev, &at24cm0x.Opts{A2: true})
//	d.WriteByte(0, 0x7E)
//	// dev.Trace is now:
//	//   S addr(0x54,W) send(0x00) send(0x00) send(0x7e) P
//
// Fault injection covers the two failure modes the driver reports: FailAt
// makes the n-th primitive fail outright, and CorruptWrites flips stored
// bits so a write-verification pass sees a mismatch.
package bustest
