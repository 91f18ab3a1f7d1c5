package cec

import (
	"sync"
	"testing"
)

func TestEnsureSerialAssignsOnce(t *testing.T) {
	c := NewCommand(KindConnect)
	first := c.EnsureSerial()
	if first == serialUnset {
		t.Fatalf("EnsureSerial() = %d, want assigned", first)
	}
	if again := c.EnsureSerial(); again != first {
		t.Errorf("second EnsureSerial() = %d, want %d", again, first)
	}
}

func TestEnsureSerialUniqueUnderConcurrency(t *testing.T) {
	const n = 200

	var wg sync.WaitGroup
	serials := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewCommand(KindConnect)
			serials <- c.EnsureSerial()
		}()
	}
	wg.Wait()
	close(serials)

	seen := make(map[int]bool, n)
	for s := range serials {
		if seen[s] {
			t.Fatalf("serial %d allocated twice", s)
		}
		seen[s] = true
	}
}

func TestEnsureSerialWraps(t *testing.T) {
	serialAllocator.mu.Lock()
	saved := serialAllocator.next
	serialAllocator.next = maxSerial
	serialAllocator.mu.Unlock()
	defer func() {
		serialAllocator.mu.Lock()
		serialAllocator.next = saved
		serialAllocator.mu.Unlock()
	}()

	a := NewCommand(KindConnect)
	b := NewCommand(KindConnect)
	if got := a.EnsureSerial(); got != maxSerial {
		t.Errorf("first serial = %d, want %d", got, maxSerial)
	}
	if got := b.EnsureSerial(); got != 1 {
		t.Errorf("serial after wrap = %d, want 1", got)
	}
}

func TestConstructorShapes(t *testing.T) {
	dev := NewDevice(0x1000, AddressPlayback1)

	plain := NewCommand(KindExit)
	if plain.Serial != serialUnset || plain.Opcode != OpcodeNone {
		t.Errorf("NewCommand: serial=%d opcode=%d, want unset sentinels", plain.Serial, plain.Opcode)
	}

	key := NewDeviceCommand(KindHostKeyPress, 42, dev)
	if key.Val != 42 || key.Device != dev {
		t.Errorf("NewDeviceCommand: val=%d device=%v", key.Val, key.Device)
	}

	shell := NewShellCommand("echo hi")
	if shell.Kind != KindExecShell || shell.Shell != "echo hi" {
		t.Errorf("NewShellCommand: kind=%v shell=%q", shell.Kind, shell.Shell)
	}

	toggle := NewToggleCommand(dev, []Command{plain}, nil)
	if toggle.Kind != KindExecToggle || len(toggle.PowerOn) != 1 || toggle.PowerOff != nil {
		t.Errorf("NewToggleCommand: kind=%v on=%d off=%d", toggle.Kind, len(toggle.PowerOn), len(toggle.PowerOff))
	}

	bus := NewBusCommand(OpcodeStandby, AddressTV)
	if bus.Opcode != OpcodeStandby || bus.Source != AddressTV {
		t.Errorf("NewBusCommand: opcode=%v source=%v", bus.Opcode, bus.Source)
	}
}

func TestParseOpcode(t *testing.T) {
	tests := []struct {
		name    string
		want    Opcode
		wantErr bool
	}{
		{"STANDBY", OpcodeStandby, false},
		{"standby", OpcodeStandby, false},
		{" Image_View_On ", OpcodeImageViewOn, false},
		{"ACTIVE_SOURCE", OpcodeActiveSource, false},
		{"NOT_AN_OPCODE", OpcodeNone, true},
	}
	for _, tt := range tests {
		got, err := ParseOpcode(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOpcode(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOpcode(%q) = 0x%02X, want 0x%02X", tt.name, int(got), int(tt.want))
		}
	}
}

func TestParsePhysicalAddress(t *testing.T) {
	got, err := ParsePhysicalAddress("1.2.0.0")
	if err != nil {
		t.Fatalf("ParsePhysicalAddress: %v", err)
	}
	if got != 0x1200 {
		t.Errorf("ParsePhysicalAddress(1.2.0.0) = 0x%04X, want 0x1200", uint16(got))
	}
	if got.String() != "1.2.0.0" {
		t.Errorf("String() = %q, want 1.2.0.0", got.String())
	}
	if _, err := ParsePhysicalAddress("1.2.3"); err == nil {
		t.Error("ParsePhysicalAddress(1.2.3) succeeded, want error")
	}
	if _, err := ParsePhysicalAddress("16.0.0.0"); err == nil {
		t.Error("ParsePhysicalAddress(16.0.0.0) succeeded, want error")
	}
}
