package bustest

import (
	"errors"
	"testing"

	"periph.io/x/devices/v3/at24cm0x"
)

func TestAddressDecode(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		sel     byte
		addr    byte
		wantAck bool
	}{
		{"exact match", 1 << 18, 0x54, 0x54, true},
		{"bank bit 0 set", 1 << 18, 0x54, 0x55, true},
		{"bank bit 1 set", 1 << 18, 0x54, 0x56, true},
		{"both bank bits", 1 << 18, 0x54, 0x57, true},
		{"wrong strap pins", 1 << 18, 0x54, 0x50, false},
		{"wrong family", 1 << 18, 0x54, 0x24, false},
		{"small part bank bit", 1 << 17, 0x56, 0x57, true},
		{"small part A1 is not a bank bit", 1 << 17, 0x54, 0x56, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.size, tt.sel)
			if err := d.Start(); err != nil {
				t.Fatal(err)
			}
			err := d.Address(tt.addr, at24cm0x.DirWrite)
			if tt.wantAck && err != nil {
				t.Errorf("Address(%#04x) = %v, want ACK", tt.addr, err)
			}
			if !tt.wantAck && !errors.Is(err, ErrNACK) {
				t.Errorf("Address(%#04x) = %v, want ErrNACK", tt.addr, err)
			}
		})
	}
}

func TestAddressWithoutStart(t *testing.T) {
	d := New(1<<18, 0x54)
	if err := d.Address(0x54, at24cm0x.DirWrite); !errors.Is(err, ErrNACK) {
		t.Errorf("Address before Start = %v, want ErrNACK", err)
	}
}

func TestPointerAutoIncrement(t *testing.T) {
	d := New(1<<18, 0x54)
	d.Mem[0x10] = 0xAA
	d.Mem[0x11] = 0xBB
	d.Mem[0x12] = 0xCC

	// Position the pointer at 0x10.
	d.Start()
	d.Address(0x54, at24cm0x.DirWrite)
	d.WriteByte(0x00)
	d.WriteByte(0x10)
	d.Stop()

	d.Start()
	d.Address(0x54, at24cm0x.DirRead)
	for i, want := range []byte{0xAA, 0xBB, 0xCC} {
		ack := i < 2
		got, err := d.ReadByte(ack)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("read %d = %#04x, want %#04x", i, got, want)
		}
	}

	// The terminal NACK ended the data phase; nobody drives the line.
	if got, _ := d.ReadByte(false); got != 0xFF {
		t.Errorf("read after terminal NACK = %#04x, want 0xff", got)
	}
	d.Stop()
}

func TestWriteWrapsInsidePage(t *testing.T) {
	d := New(64, 0x50)
	d.PageSize = 4

	d.Start()
	d.Address(0x50, at24cm0x.DirWrite)
	d.WriteByte(0x00)
	d.WriteByte(0x06) // page 1, offset 2
	for _, b := range []byte{1, 2, 3, 4} {
		d.WriteByte(b)
	}
	d.Stop()

	want := []byte{3, 4, 1, 2}
	for i, w := range want {
		if d.Mem[4+i] != w {
			t.Errorf("Mem[%d] = %d, want %d", 4+i, d.Mem[4+i], w)
		}
	}
}

func TestBusyPolls(t *testing.T) {
	d := New(1<<18, 0x54)
	d.BusyPolls = 2

	// A completed write transaction arms the busy countdown.
	d.Start()
	d.Address(0x54, at24cm0x.DirWrite)
	d.WriteByte(0x00)
	d.WriteByte(0x00)
	d.WriteByte(0x42)
	d.Stop()

	for i := 0; i < 2; i++ {
		d.Start()
		if err := d.Address(0x54, at24cm0x.DirWrite); !errors.Is(err, ErrNACK) {
			t.Fatalf("poll %d = %v, want ErrNACK", i, err)
		}
	}
	d.Start()
	if err := d.Address(0x54, at24cm0x.DirWrite); err != nil {
		t.Fatalf("poll after write cycle = %v, want ACK", err)
	}
	d.Stop()
}

func TestFailAt(t *testing.T) {
	d := New(1<<18, 0x54)
	d.FailAt = 3

	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	if err := d.Address(0x54, at24cm0x.DirWrite); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteByte(0x00); !errors.Is(err, ErrFault) {
		t.Errorf("third call = %v, want ErrFault", err)
	}
}

func TestCorruptWrites(t *testing.T) {
	d := New(64, 0x50)
	d.CorruptWrites = 0x01

	d.Start()
	d.Address(0x50, at24cm0x.DirWrite)
	d.WriteByte(0x00)
	d.WriteByte(0x00)
	d.WriteByte(0x10)
	d.Stop()

	if d.Mem[0] != 0x11 {
		t.Errorf("Mem[0] = %#04x, want corrupted 0x11", d.Mem[0])
	}
}

func TestTrace(t *testing.T) {
	d := New(1<<18, 0x54)
	d.Start()
	d.Address(0x54, at24cm0x.DirWrite)
	d.WriteByte(0x00)
	d.Stop()

	want := []string{"S", "addr(0x54,W)", "send(0x00)", "P"}
	if len(d.Trace) != len(want) {
		t.Fatalf("Trace = %v, want %v", d.Trace, want)
	}
	for i := range want {
		if d.Trace[i] != want[i] {
			t.Errorf("Trace[%d] = %q, want %q", i, d.Trace[i], want[i])
		}
	}
	if d.Calls != 4 {
		t.Errorf("Calls = %d, want 4", d.Calls)
	}

	d.ClearTrace()
	if len(d.Trace) != 0 || d.Calls != 0 {
		t.Error("ClearTrace did not reset the recorder")
	}
}
