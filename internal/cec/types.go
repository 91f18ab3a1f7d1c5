package cec

import (
	"fmt"
	"strings"
)

// LogicalAddress identifies a device's role on the CEC bus (0-15).
// AddressUnknown is the sentinel for "not resolved / not present".
type LogicalAddress int

// Well-known logical addresses.
const (
	AddressUnknown     LogicalAddress = -1
	AddressTV          LogicalAddress = 0
	AddressRecorder1   LogicalAddress = 1
	AddressRecorder2   LogicalAddress = 2
	AddressTuner1      LogicalAddress = 3
	AddressPlayback1   LogicalAddress = 4
	AddressAudioSystem LogicalAddress = 5
	AddressTuner2      LogicalAddress = 6
	AddressTuner3      LogicalAddress = 7
	AddressPlayback2   LogicalAddress = 8
	AddressRecorder3   LogicalAddress = 9
	AddressTuner4      LogicalAddress = 10
	AddressPlayback3   LogicalAddress = 11
	AddressReserved1   LogicalAddress = 12
	AddressReserved2   LogicalAddress = 13
	AddressFreeUse     LogicalAddress = 14
	AddressBroadcast   LogicalAddress = 15
)

// logicalAddressCount is the number of addressable slots on the bus.
const logicalAddressCount = 16

// Valid reports whether the address is a real bus slot (0-15).
func (a LogicalAddress) Valid() bool {
	return a >= 0 && a < logicalAddressCount
}

func (a LogicalAddress) String() string {
	names := map[LogicalAddress]string{
		AddressTV:          "TV",
		AddressRecorder1:   "Recorder 1",
		AddressRecorder2:   "Recorder 2",
		AddressTuner1:      "Tuner 1",
		AddressPlayback1:   "Playback 1",
		AddressAudioSystem: "Audio System",
		AddressTuner2:      "Tuner 2",
		AddressTuner3:      "Tuner 3",
		AddressPlayback2:   "Playback 2",
		AddressRecorder3:   "Recorder 3",
		AddressTuner4:      "Tuner 4",
		AddressPlayback3:   "Playback 3",
		AddressReserved1:   "Reserved 1",
		AddressReserved2:   "Reserved 2",
		AddressFreeUse:     "Free Use",
		AddressBroadcast:   "Broadcast",
	}
	if n, ok := names[a]; ok {
		return n
	}
	return "Unknown"
}

// PhysicalAddress encodes a device's position in the HDMI topology tree
// as four nibbles (e.g. 0x1200 renders as "1.2.0.0"). Zero means unset.
type PhysicalAddress uint16

// ParsePhysicalAddress parses the dotted "a.b.c.d" form.
func ParsePhysicalAddress(s string) (PhysicalAddress, error) {
	var a, b, c, d uint8
	if _, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d); err != nil {
		return 0, fmt.Errorf("invalid physical address %q: %w", s, err)
	}
	if a > 15 || b > 15 || c > 15 || d > 15 {
		return 0, fmt.Errorf("invalid physical address %q: nibble out of range", s)
	}
	return PhysicalAddress(uint16(a)<<12 | uint16(b)<<8 | uint16(c)<<4 | uint16(d)), nil
}

func (p PhysicalAddress) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", p>>12&0xF, p>>8&0xF, p>>4&0xF, p&0xF)
}

// PowerStatus is a device's reported power state. Values follow the CEC
// REPORT_POWER_STATUS encoding.
type PowerStatus int

const (
	PowerOn                    PowerStatus = 0x00
	PowerStandby               PowerStatus = 0x01
	PowerTransitionStandbyToOn PowerStatus = 0x02
	PowerTransitionOnToStandby PowerStatus = 0x03
	PowerUnknown               PowerStatus = 0x99
)

func (p PowerStatus) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerStandby:
		return "standby"
	case PowerTransitionStandbyToOn:
		return "standby->on"
	case PowerTransitionOnToStandby:
		return "on->standby"
	default:
		return "unknown"
	}
}

// UserControlCode is a CEC remote key code carried by USER_CONTROL_PRESSED.
type UserControlCode int

// MaxUserControlCode bounds the valid key-code range (0x00-0x76).
const MaxUserControlCode UserControlCode = 0x76

// Opcode is a CEC protocol command identifier. OpcodeNone marks commands
// that carry no opcode payload.
type Opcode int

const OpcodeNone Opcode = -1

// Opcodes referenced directly by the engine and its default handlers.
const (
	OpcodeFeatureAbort       Opcode = 0x00
	OpcodeImageViewOn        Opcode = 0x04
	OpcodeTextViewOn         Opcode = 0x0D
	OpcodeSetMenuLanguage    Opcode = 0x32
	OpcodeStandby            Opcode = 0x36
	OpcodePlay               Opcode = 0x41
	OpcodeDeckControl        Opcode = 0x42
	OpcodeUserControlPressed Opcode = 0x44
	OpcodeUserControlRelease Opcode = 0x45
	OpcodeGiveOSDName        Opcode = 0x46
	OpcodeSetOSDName         Opcode = 0x47
	OpcodeRoutingChange      Opcode = 0x80
	OpcodeActiveSource       Opcode = 0x82
	OpcodeReportPhysAddr     Opcode = 0x84
	OpcodeSetStreamPath      Opcode = 0x86
	OpcodeDeviceVendorID     Opcode = 0x87
	OpcodeVendorCommand      Opcode = 0x89
	OpcodeGivePowerStatus    Opcode = 0x8F
	OpcodeReportPowerStatus  Opcode = 0x90
	OpcodeInactiveSource     Opcode = 0x9D
	OpcodeAbort              Opcode = 0xFF
)

// opcodeNames maps the symbolic names accepted in configuration files to
// opcode values. Names follow the CEC specification without prefix.
var opcodeNames = map[string]Opcode{
	"FEATURE_ABORT":                 0x00,
	"IMAGE_VIEW_ON":                 0x04,
	"TUNER_STEP_INCREMENT":          0x05,
	"TUNER_STEP_DECREMENT":          0x06,
	"TUNER_DEVICE_STATUS":           0x07,
	"GIVE_TUNER_DEVICE_STATUS":      0x08,
	"RECORD_ON":                     0x09,
	"RECORD_STATUS":                 0x0A,
	"RECORD_OFF":                    0x0B,
	"TEXT_VIEW_ON":                  0x0D,
	"RECORD_TV_SCREEN":              0x0F,
	"GIVE_DECK_STATUS":              0x1A,
	"DECK_STATUS":                   0x1B,
	"SET_MENU_LANGUAGE":             0x32,
	"CLEAR_ANALOGUE_TIMER":          0x33,
	"SET_ANALOGUE_TIMER":            0x34,
	"TIMER_STATUS":                  0x35,
	"STANDBY":                       0x36,
	"PLAY":                          0x41,
	"DECK_CONTROL":                  0x42,
	"TIMER_CLEARED_STATUS":          0x43,
	"USER_CONTROL_PRESSED":          0x44,
	"USER_CONTROL_RELEASE":          0x45,
	"GIVE_OSD_NAME":                 0x46,
	"SET_OSD_NAME":                  0x47,
	"SET_OSD_STRING":                0x64,
	"SET_TIMER_PROGRAM_TITLE":       0x67,
	"SYSTEM_AUDIO_MODE_REQUEST":     0x70,
	"GIVE_AUDIO_STATUS":             0x71,
	"SET_SYSTEM_AUDIO_MODE":         0x72,
	"REPORT_AUDIO_STATUS":           0x7A,
	"GIVE_SYSTEM_AUDIO_MODE_STATUS": 0x7D,
	"SYSTEM_AUDIO_MODE_STATUS":      0x7E,
	"ROUTING_CHANGE":                0x80,
	"ROUTING_INFORMATION":           0x81,
	"ACTIVE_SOURCE":                 0x82,
	"GIVE_PHYSICAL_ADDRESS":         0x83,
	"REPORT_PHYSICAL_ADDRESS":       0x84,
	"REQUEST_ACTIVE_SOURCE":         0x85,
	"SET_STREAM_PATH":               0x86,
	"DEVICE_VENDOR_ID":              0x87,
	"VENDOR_COMMAND":                0x89,
	"VENDOR_REMOTE_BUTTON_DOWN":     0x8A,
	"VENDOR_REMOTE_BUTTON_UP":       0x8B,
	"GIVE_DEVICE_VENDOR_ID":         0x8C,
	"MENU_REQUEST":                  0x8D,
	"MENU_STATUS":                   0x8E,
	"GIVE_DEVICE_POWER_STATUS":      0x8F,
	"REPORT_POWER_STATUS":           0x90,
	"GET_MENU_LANGUAGE":             0x91,
	"SELECT_ANALOGUE_SERVICE":       0x92,
	"SELECT_DIGITAL_SERVICE":        0x93,
	"SET_DIGITAL_TIMER":             0x97,
	"CLEAR_DIGITAL_TIMER":           0x99,
	"SET_AUDIO_RATE":                0x9A,
	"INACTIVE_SOURCE":               0x9D,
	"CEC_VERSION":                   0x9E,
	"GET_CEC_VERSION":               0x9F,
	"VENDOR_COMMAND_WITH_ID":        0xA0,
	"CLEAR_EXTERNAL_TIMER":          0xA1,
	"SET_EXTERNAL_TIMER":            0xA2,
	"REPORT_SHORT_AUDIO_DESCRIPTOR": 0xA3,
	"REQUEST_SHORT_AUDIO_DESCRIPTOR": 0xA4,
	"START_ARC":                     0xC0,
	"REPORT_ARC_STARTED":            0xC1,
	"REPORT_ARC_ENDED":              0xC2,
	"REQUEST_ARC_START":             0xC3,
	"REQUEST_ARC_END":               0xC4,
	"END_ARC":                       0xC5,
	"CDC":                           0xF8,
	"ABORT":                         0xFF,
}

// ParseOpcode converts a symbolic opcode name (e.g. "STANDBY") to its
// numeric value. Matching is case-insensitive.
func ParseOpcode(name string) (Opcode, error) {
	op, ok := opcodeNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return OpcodeNone, fmt.Errorf("%w: %q", ErrUnknownOpcode, name)
	}
	return op, nil
}

func (o Opcode) String() string {
	for name, op := range opcodeNames {
		if op == o {
			return name
		}
	}
	return fmt.Sprintf("0x%02X", int(o))
}
