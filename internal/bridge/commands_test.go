package bridge

import (
	"testing"

	"github.com/nerrad567/cecbridge/internal/cec"
	"github.com/nerrad567/cecbridge/internal/infrastructure/config"
	"github.com/nerrad567/cecbridge/internal/keymap"
)

func intPtr(v int) *int { return &v }

// createTestDeviceConfigs returns sample device configs for testing.
func createTestDeviceConfigs() map[string]config.DeviceConfig {
	return map[string]config.DeviceConfig{
		"tv": {
			LogicalAddress: intPtr(0),
		},
		"audio": {
			PhysicalAddress: "3.0.0.0",
			LogicalAddress:  intPtr(5),
		},
		"replay": {
			PhysicalAddress: "1.0.0.0",
		},
	}
}

func createTestBuilder(t *testing.T) *Builder {
	t.Helper()
	devices, err := BuildDevices(createTestDeviceConfigs())
	if err != nil {
		t.Fatalf("BuildDevices() error: %v", err)
	}
	return NewBuilder(devices, keymap.Default())
}

func TestBuildDevices(t *testing.T) {
	devices, err := BuildDevices(createTestDeviceConfigs())
	if err != nil {
		t.Fatalf("BuildDevices() error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("len(devices) = %d, want 3", len(devices))
	}

	audio := devices["audio"]
	if audio == nil {
		t.Fatal("audio device missing")
	}
	if audio.Physical.String() != "3.0.0.0" {
		t.Errorf("audio physical = %s, want 3.0.0.0", audio.Physical)
	}
	if audio.Defined != cec.AddressAudioSystem {
		t.Errorf("audio defined = %v, want %v", audio.Defined, cec.AddressAudioSystem)
	}

	replay := devices["replay"]
	if replay.Defined != cec.AddressUnknown {
		t.Errorf("replay defined = %v, want AddressUnknown", replay.Defined)
	}
}

func TestBuildDevicesInvalidPhysical(t *testing.T) {
	_, err := BuildDevices(map[string]config.DeviceConfig{
		"bad": {PhysicalAddress: "not.an.address"},
	})
	if err == nil {
		t.Error("BuildDevices() expected error for invalid physical address")
	}
}

func TestBuildDevicesInvalidLogical(t *testing.T) {
	_, err := BuildDevices(map[string]config.DeviceConfig{
		"bad": {LogicalAddress: intPtr(16)},
	})
	if err == nil {
		t.Error("BuildDevices() expected error for logical address 16")
	}
}

func TestBuilderBuildActions(t *testing.T) {
	b := createTestBuilder(t)

	tests := []struct {
		name       string
		cc         config.CommandConfig
		wantKind   cec.Kind
		wantVal    int
		wantDevice bool
	}{
		{
			name:       "poweron",
			cc:         config.CommandConfig{Action: "poweron", Device: "tv"},
			wantKind:   cec.KindPowerOn,
			wantVal:    -1,
			wantDevice: true,
		},
		{
			name:       "poweroff",
			cc:         config.CommandConfig{Action: "poweroff", Device: "audio"},
			wantKind:   cec.KindPowerOff,
			wantVal:    -1,
			wantDevice: true,
		},
		{
			name:     "makeactive ignores device",
			cc:       config.CommandConfig{Action: "makeactive"},
			wantKind: cec.KindMakeActive,
			wantVal:  -1,
		},
		{
			name:     "makeinactive",
			cc:       config.CommandConfig{Action: "makeinactive"},
			wantKind: cec.KindMakeInactive,
			wantVal:  -1,
		},
		{
			name:       "textviewon",
			cc:         config.CommandConfig{Action: "textviewon", Device: "tv"},
			wantKind:   cec.KindTextViewOn,
			wantVal:    -1,
			wantDevice: true,
		},
		{
			name:     "keypress carries bus code",
			cc:       config.CommandConfig{Action: "keypress", Key: "volup"},
			wantKind: cec.KindKeyPress,
			wantVal:  0x41,
		},
		{
			name:       "hostkey carries host key",
			cc:         config.CommandConfig{Action: "hostkey", Key: "play", Device: "replay"},
			wantKind:   cec.KindHostKeyPress,
			wantVal:    int(keymap.KeyPlay),
			wantDevice: true,
		},
		{
			name:     "connect",
			cc:       config.CommandConfig{Action: "connect"},
			wantKind: cec.KindConnect,
			wantVal:  -1,
		},
		{
			name:     "disconnect",
			cc:       config.CommandConfig{Action: "disconnect"},
			wantKind: cec.KindDisconnect,
			wantVal:  -1,
		},
		{
			name:     "reconnect",
			cc:       config.CommandConfig{Action: "reconnect"},
			wantKind: cec.KindReconnect,
			wantVal:  -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := b.Build(tt.cc)
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			if cmd.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", cmd.Kind, tt.wantKind)
			}
			if cmd.Val != tt.wantVal {
				t.Errorf("Val = %d, want %d", cmd.Val, tt.wantVal)
			}
			if tt.wantDevice && cmd.Device == nil {
				t.Error("Device = nil, want set")
			}
			if !tt.wantDevice && cmd.Device != nil {
				t.Error("Device set, want nil")
			}
		})
	}
}

func TestBuilderBuildExec(t *testing.T) {
	b := createTestBuilder(t)

	cmd, err := b.Build(config.CommandConfig{Action: "exec", Shell: "systemctl restart kodi"})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if cmd.Kind != cec.KindExecShell {
		t.Errorf("Kind = %v, want KindExecShell", cmd.Kind)
	}
	if cmd.Shell != "systemctl restart kodi" {
		t.Errorf("Shell = %q", cmd.Shell)
	}
}

func TestBuilderBuildExecMissingShell(t *testing.T) {
	b := createTestBuilder(t)
	if _, err := b.Build(config.CommandConfig{Action: "exec"}); err == nil {
		t.Error("Build() expected error for exec without shell")
	}
}

func TestBuilderBuildToggle(t *testing.T) {
	b := createTestBuilder(t)

	cmd, err := b.Build(config.CommandConfig{
		Action: "toggle",
		Device: "audio",
		OnPowerOn: []config.CommandConfig{
			{Action: "poweron", Device: "audio"},
		},
		OnPowerOff: []config.CommandConfig{
			{Action: "poweroff", Device: "audio"},
			{Action: "makeinactive"},
		},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if cmd.Kind != cec.KindExecToggle {
		t.Errorf("Kind = %v, want KindExecToggle", cmd.Kind)
	}
	if cmd.Device == nil {
		t.Fatal("Device = nil, want audio")
	}
	if len(cmd.PowerOn) != 1 || cmd.PowerOn[0].Kind != cec.KindPowerOn {
		t.Errorf("PowerOn = %v, want one power-on", cmd.PowerOn)
	}
	if len(cmd.PowerOff) != 2 {
		t.Errorf("len(PowerOff) = %d, want 2", len(cmd.PowerOff))
	}
}

func TestBuilderBuildToggleMissingDevice(t *testing.T) {
	b := createTestBuilder(t)
	if _, err := b.Build(config.CommandConfig{Action: "toggle"}); err == nil {
		t.Error("Build() expected error for toggle without device")
	}
}

func TestBuilderBuildUnknownAction(t *testing.T) {
	b := createTestBuilder(t)
	if _, err := b.Build(config.CommandConfig{Action: "explode"}); err == nil {
		t.Error("Build() expected error for unknown action")
	}
}

func TestBuilderBuildUnknownDevice(t *testing.T) {
	b := createTestBuilder(t)
	if _, err := b.Build(config.CommandConfig{Action: "poweron", Device: "toaster"}); err == nil {
		t.Error("Build() expected error for unknown device")
	}
}

func TestBuilderBuildUnknownKey(t *testing.T) {
	b := createTestBuilder(t)
	if _, err := b.Build(config.CommandConfig{Action: "keypress", Key: "hyperspace"}); err == nil {
		t.Error("Build() expected error for unknown key name")
	}
}

func TestBuildList(t *testing.T) {
	b := createTestBuilder(t)

	cmds, err := b.BuildList([]config.CommandConfig{
		{Action: "poweron", Device: "tv"},
		{Action: "makeactive"},
	})
	if err != nil {
		t.Fatalf("BuildList() error: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("len(cmds) = %d, want 2", len(cmds))
	}
	if cmds[0].Kind != cec.KindPowerOn || cmds[1].Kind != cec.KindMakeActive {
		t.Errorf("kinds = %v, %v", cmds[0].Kind, cmds[1].Kind)
	}
}

func TestBuildListEmpty(t *testing.T) {
	b := createTestBuilder(t)
	cmds, err := b.BuildList(nil)
	if err != nil {
		t.Fatalf("BuildList() error: %v", err)
	}
	if cmds != nil {
		t.Errorf("BuildList(nil) = %v, want nil", cmds)
	}
}

func TestBuildListPropagatesError(t *testing.T) {
	b := createTestBuilder(t)
	_, err := b.BuildList([]config.CommandConfig{
		{Action: "makeactive"},
		{Action: "explode"},
	})
	if err == nil {
		t.Error("BuildList() expected error from second entry")
	}
}

func TestBuildHandlerTable(t *testing.T) {
	b := createTestBuilder(t)

	table, err := b.BuildHandlerTable([]config.HandlerConfig{
		{
			Opcode:   "STANDBY",
			Device:   "tv",
			StopMenu: "kodi",
		},
		{
			Opcode: "standby",
			Commands: []config.CommandConfig{
				{Action: "makeinactive"},
			},
		},
		{
			Opcode:   "IMAGE_VIEW_ON",
			ExecMenu: "kodi",
		},
	})
	if err != nil {
		t.Fatalf("BuildHandlerTable() error: %v", err)
	}

	standby := table[cec.OpcodeStandby]
	if len(standby) != 2 {
		t.Fatalf("len(standby handlers) = %d, want 2", len(standby))
	}
	if standby[0].Initiator == nil {
		t.Error("first standby handler initiator = nil, want tv")
	}
	if standby[0].StopMenu != "kodi" {
		t.Errorf("StopMenu = %q, want kodi", standby[0].StopMenu)
	}
	if standby[1].Initiator != nil {
		t.Error("second standby handler initiator set, want nil (any source)")
	}
	if len(standby[1].Commands) != 1 {
		t.Errorf("len(Commands) = %d, want 1", len(standby[1].Commands))
	}

	imageViewOn := table[cec.OpcodeImageViewOn]
	if len(imageViewOn) != 1 || imageViewOn[0].ExecMenu != "kodi" {
		t.Errorf("image_view_on handlers = %v", imageViewOn)
	}
}

func TestBuildHandlerTableUnknownOpcode(t *testing.T) {
	b := createTestBuilder(t)
	_, err := b.BuildHandlerTable([]config.HandlerConfig{{Opcode: "NOT_AN_OPCODE"}})
	if err == nil {
		t.Error("BuildHandlerTable() expected error for unknown opcode")
	}
}

func TestBuildHandlerTableUnknownDevice(t *testing.T) {
	b := createTestBuilder(t)
	_, err := b.BuildHandlerTable([]config.HandlerConfig{{Opcode: "STANDBY", Device: "toaster"}})
	if err == nil {
		t.Error("BuildHandlerTable() expected error for unknown device")
	}
}

func TestBuildKeymaps(t *testing.T) {
	set, active, err := BuildKeymaps(config.KeymapsConfig{
		Active: "kodi",
		Maps: map[string][]config.KeyBindingConfig{
			"kodi": {
				{Code: 0x00, Keys: []string{"ok", "info"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("BuildKeymaps() error: %v", err)
	}
	if active.Name() != "kodi" {
		t.Errorf("active map = %q, want kodi", active.Name())
	}

	keys := active.BusToHost(0x00)
	if len(keys) != 2 || keys[0] != int(keymap.KeyOk) || keys[1] != int(keymap.KeyInfo) {
		t.Errorf("BusToHost(0x00) = %v, want [ok info]", keys)
	}

	// Bindings inherited from the default map survive the clone.
	if inherited := active.BusToHost(0x01); len(inherited) != 1 || inherited[0] != int(keymap.KeyUp) {
		t.Errorf("BusToHost(0x01) = %v, want [up]", inherited)
	}

	if _, ok := set.Get("default"); !ok {
		t.Error("set is missing the default map")
	}
}

func TestBuildKeymapsUnknownKey(t *testing.T) {
	_, _, err := BuildKeymaps(config.KeymapsConfig{
		Maps: map[string][]config.KeyBindingConfig{
			"broken": {{Code: 0x00, Keys: []string{"warp"}}},
		},
	})
	if err == nil {
		t.Error("BuildKeymaps() expected error for unknown key name")
	}
}

func TestBuildKeymapsFallbackToDefault(t *testing.T) {
	_, active, err := BuildKeymaps(config.KeymapsConfig{Active: "nonexistent"})
	if err != nil {
		t.Fatalf("BuildKeymaps() error: %v", err)
	}
	if active.Name() != "default" {
		t.Errorf("active map = %q, want default", active.Name())
	}
}
