package keymap

import (
	"testing"

	"github.com/nerrad567/cecbridge/internal/cec"
)

func TestDefaultMapRoundTrip(t *testing.T) {
	m := Default()

	keys := m.BusToHost(ccPlay)
	if len(keys) != 1 || HostKey(keys[0]) != KeyPlay {
		t.Fatalf("BusToHost(play) = %v, want [%d]", keys, KeyPlay)
	}

	code, ok := m.HostToBus(int(KeyPlay))
	if !ok || code != ccPlay {
		t.Errorf("HostToBus(KeyPlay) = %v %v, want %v true", code, ok, ccPlay)
	}
}

func TestMenuAliasKeepsPrimaryReverseMapping(t *testing.T) {
	m := Default()

	// Both root and setup menu map to KeyMenu on the way in.
	for _, code := range []cec.UserControlCode{ccRootMenu, ccSetupMenu} {
		keys := m.BusToHost(code)
		if len(keys) != 1 || HostKey(keys[0]) != KeyMenu {
			t.Errorf("BusToHost(0x%02X) = %v, want [%d]", int(code), keys, KeyMenu)
		}
	}

	// The reverse direction keeps the first binding.
	code, ok := m.HostToBus(int(KeyMenu))
	if !ok || code != ccRootMenu {
		t.Errorf("HostToBus(KeyMenu) = 0x%02X %v, want 0x%02X true", int(code), ok, int(ccRootMenu))
	}
}

func TestBindMultipleHostKeys(t *testing.T) {
	m := New("custom")
	m.Bind(ccPower, KeyPower)
	m.Bind(ccPower, KeyBack)

	keys := m.BusToHost(ccPower)
	if len(keys) != 2 || HostKey(keys[0]) != KeyPower || HostKey(keys[1]) != KeyBack {
		t.Errorf("BusToHost(power) = %v, want power then back", keys)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	base := Default()
	clone := base.Clone("tv")
	clone.ClearBus(ccPlay)
	clone.Bind(ccPlay, KeyOk)

	if keys := base.BusToHost(ccPlay); len(keys) != 1 || HostKey(keys[0]) != KeyPlay {
		t.Errorf("base map mutated through clone: %v", keys)
	}
	if keys := clone.BusToHost(ccPlay); len(keys) != 1 || HostKey(keys[0]) != KeyOk {
		t.Errorf("clone override missing: %v", keys)
	}
}

func TestSetSelect(t *testing.T) {
	s := NewSet()
	tv := Default().Clone("tv")
	s.Add(tv)

	if got := s.Select("tv"); got != tv {
		t.Error("Select(tv) did not return the registered map")
	}
	if got := s.Select(""); got.Name() != "default" {
		t.Errorf("Select(\"\") = %q, want default", got.Name())
	}
	if got := s.Select("missing"); got.Name() != "default" {
		t.Errorf("Select(missing) = %q, want default fallback", got.Name())
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    HostKey
		wantErr bool
	}{
		{"OK", KeyOk, false},
		{"volup", KeyVolUp, false},
		{" Menu ", KeyMenu, false},
		{"7", Key7, false},
		{"NOPE", KeyNone, true},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKey(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseKey(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
