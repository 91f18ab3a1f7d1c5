// Package keymap translates between CEC user-control codes and host key
// identifiers. Maps are named so configuration can select or extend them;
// one bus key may expand to several host keys.
package keymap

import (
	"fmt"
	"strings"

	"github.com/nerrad567/cecbridge/internal/cec"
)

// HostKey identifies a key on the host side of the translation.
type HostKey int

const (
	KeyNone HostKey = iota - 1
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyOk
	KeyBack
	KeyMenu
	KeyInfo
	KeyPlay
	KeyPause
	KeyStop
	KeyRecord
	KeyFastFwd
	KeyFastRew
	KeyNext
	KeyPrev
	KeyPower
	KeyChanUp
	KeyChanDown
	KeyVolUp
	KeyVolDown
	KeyMute
	KeyAudio
	KeySubtitles
	KeyRed
	KeyGreen
	KeyYellow
	KeyBlue
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
)

var keyNames = map[string]HostKey{
	"UP":        KeyUp,
	"DOWN":      KeyDown,
	"LEFT":      KeyLeft,
	"RIGHT":     KeyRight,
	"OK":        KeyOk,
	"BACK":      KeyBack,
	"MENU":      KeyMenu,
	"INFO":      KeyInfo,
	"PLAY":      KeyPlay,
	"PAUSE":     KeyPause,
	"STOP":      KeyStop,
	"RECORD":    KeyRecord,
	"FASTFWD":   KeyFastFwd,
	"FASTREW":   KeyFastRew,
	"NEXT":      KeyNext,
	"PREV":      KeyPrev,
	"POWER":     KeyPower,
	"CHANUP":    KeyChanUp,
	"CHANDOWN":  KeyChanDown,
	"VOLUP":     KeyVolUp,
	"VOLDOWN":   KeyVolDown,
	"MUTE":      KeyMute,
	"AUDIO":     KeyAudio,
	"SUBTITLES": KeySubtitles,
	"RED":       KeyRed,
	"GREEN":     KeyGreen,
	"YELLOW":    KeyYellow,
	"BLUE":      KeyBlue,
	"0":         Key0,
	"1":         Key1,
	"2":         Key2,
	"3":         Key3,
	"4":         Key4,
	"5":         Key5,
	"6":         Key6,
	"7":         Key7,
	"8":         Key8,
	"9":         Key9,
}

// ParseKey converts a symbolic host key name from configuration.
// Matching is case-insensitive.
func ParseKey(name string) (HostKey, error) {
	k, ok := keyNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return KeyNone, fmt.Errorf("%w: %q", cec.ErrUnknownKey, name)
	}
	return k, nil
}

func (k HostKey) String() string {
	for name, key := range keyNames {
		if key == k {
			return name
		}
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// CEC user-control codes referenced by the default map.
const (
	ccSelect      cec.UserControlCode = 0x00
	ccUp          cec.UserControlCode = 0x01
	ccDown        cec.UserControlCode = 0x02
	ccLeft        cec.UserControlCode = 0x03
	ccRight       cec.UserControlCode = 0x04
	ccRootMenu    cec.UserControlCode = 0x09
	ccSetupMenu   cec.UserControlCode = 0x0A
	ccExit        cec.UserControlCode = 0x0D
	ccNumber0     cec.UserControlCode = 0x20
	ccChannelUp   cec.UserControlCode = 0x30
	ccChannelDown cec.UserControlCode = 0x31
	ccDisplayInfo cec.UserControlCode = 0x35
	ccPower       cec.UserControlCode = 0x40
	ccVolumeUp    cec.UserControlCode = 0x41
	ccVolumeDown  cec.UserControlCode = 0x42
	ccMute        cec.UserControlCode = 0x43
	ccPlay        cec.UserControlCode = 0x44
	ccStop        cec.UserControlCode = 0x45
	ccPause       cec.UserControlCode = 0x46
	ccRecord      cec.UserControlCode = 0x47
	ccRewind      cec.UserControlCode = 0x48
	ccFastForward cec.UserControlCode = 0x49
	ccForward     cec.UserControlCode = 0x4B
	ccBackward    cec.UserControlCode = 0x4C
	ccSubPicture  cec.UserControlCode = 0x51
	ccBlue        cec.UserControlCode = 0x71
	ccRed         cec.UserControlCode = 0x72
	ccGreen       cec.UserControlCode = 0x73
	ccYellow      cec.UserControlCode = 0x74
)

// Map is one named bidirectional key translation table. It satisfies
// cec.KeyMapper.
type Map struct {
	name      string
	busToHost map[cec.UserControlCode][]HostKey
	hostToBus map[HostKey]cec.UserControlCode
}

// New returns an empty named map.
func New(name string) *Map {
	return &Map{
		name:      name,
		busToHost: make(map[cec.UserControlCode][]HostKey),
		hostToBus: make(map[HostKey]cec.UserControlCode),
	}
}

// Default builds the standard translation table.
func Default() *Map {
	m := New("default")

	pairs := []struct {
		cc  cec.UserControlCode
		key HostKey
	}{
		{ccSelect, KeyOk},
		{ccUp, KeyUp},
		{ccDown, KeyDown},
		{ccLeft, KeyLeft},
		{ccRight, KeyRight},
		{ccRootMenu, KeyMenu},
		{ccSetupMenu, KeyMenu},
		{ccExit, KeyBack},
		{ccChannelUp, KeyChanUp},
		{ccChannelDown, KeyChanDown},
		{ccDisplayInfo, KeyInfo},
		{ccPower, KeyPower},
		{ccVolumeUp, KeyVolUp},
		{ccVolumeDown, KeyVolDown},
		{ccMute, KeyMute},
		{ccPlay, KeyPlay},
		{ccStop, KeyStop},
		{ccPause, KeyPause},
		{ccRecord, KeyRecord},
		{ccRewind, KeyFastRew},
		{ccFastForward, KeyFastFwd},
		{ccForward, KeyNext},
		{ccBackward, KeyPrev},
		{ccSubPicture, KeySubtitles},
		{ccRed, KeyRed},
		{ccGreen, KeyGreen},
		{ccYellow, KeyYellow},
		{ccBlue, KeyBlue},
	}
	for _, p := range pairs {
		m.Bind(p.cc, p.key)
	}
	for i := 0; i < 10; i++ {
		m.Bind(ccNumber0+cec.UserControlCode(i), Key0+HostKey(i))
	}
	return m
}

// Name returns the map's name.
func (m *Map) Name() string { return m.name }

// Bind maps a bus code to an additional host key and, for the first
// binding of that host key, the reverse direction as well. Setup-menu
// style aliases therefore do not clobber the primary host-to-bus entry.
func (m *Map) Bind(code cec.UserControlCode, key HostKey) {
	m.busToHost[code] = append(m.busToHost[code], key)
	if _, exists := m.hostToBus[key]; !exists {
		m.hostToBus[key] = code
	}
}

// ClearBus removes all host keys for a bus code. Used by configuration
// overrides before rebinding.
func (m *Map) ClearBus(code cec.UserControlCode) {
	delete(m.busToHost, code)
}

// BindHost sets or replaces the host-to-bus direction only.
func (m *Map) BindHost(key HostKey, code cec.UserControlCode) {
	m.hostToBus[key] = code
}

// Clone returns a named deep copy, the basis for configured variants.
func (m *Map) Clone(name string) *Map {
	c := New(name)
	for code, keys := range m.busToHost {
		c.busToHost[code] = append([]HostKey(nil), keys...)
	}
	for key, code := range m.hostToBus {
		c.hostToBus[key] = code
	}
	return c
}

// BusToHost implements cec.KeyMapper.
func (m *Map) BusToHost(code cec.UserControlCode) []int {
	keys := m.busToHost[code]
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = int(k)
	}
	return out
}

// HostToBus implements cec.KeyMapper.
func (m *Map) HostToBus(key int) (cec.UserControlCode, bool) {
	code, ok := m.hostToBus[HostKey(key)]
	return code, ok
}

// Set holds the named maps known to the daemon.
type Set struct {
	maps map[string]*Map
}

// NewSet returns a set seeded with the default map.
func NewSet() *Set {
	s := &Set{maps: make(map[string]*Map)}
	d := Default()
	s.maps[d.Name()] = d
	return s
}

// Add registers a map under its name, replacing any previous entry.
func (s *Set) Add(m *Map) {
	s.maps[m.Name()] = m
}

// Get returns the named map.
func (s *Set) Get(name string) (*Map, bool) {
	m, ok := s.maps[name]
	return m, ok
}

// Select returns the named map, falling back to the default when name is
// empty or unknown.
func (s *Set) Select(name string) *Map {
	if name != "" {
		if m, ok := s.maps[name]; ok {
			return m
		}
	}
	return s.maps["default"]
}
