package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/cecbridge/internal/cec"
	"github.com/nerrad567/cecbridge/internal/device"
	"github.com/nerrad567/cecbridge/internal/infrastructure/config"
	"github.com/nerrad567/cecbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cecbridge/internal/keymap"
)

// Bridge operation constants.
const (
	// statusInterval is how often the retained status message is refreshed.
	statusInterval = 30 * time.Second

	// powerWaitTimeout bounds the completion wait for power commands so
	// their telemetry records whether dispatch finished in time.
	powerWaitTimeout = 30 * time.Second

	// keyEventBuffer is the capacity of the key event channel between the
	// engine worker and the MQTT publisher goroutine.
	keyEventBuffer = 32
)

// Bridge connects the CEC engine to MQTT. It handles:
//   - Receiving commands and requests from controllers via MQTT
//   - Publishing key, volume, mode, and device events
//   - Periodic retained status reporting
//
// It implements cec.KeySink, cec.MenuRunner, and cec.DeviceObserver so
// the engine can be wired straight to it.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	engine Engine
	mqtt   MQTTClient
	topics mqtt.Topics
	qos    byte

	builder *Builder
	menus   map[string]menu

	// Built lifecycle command lists from the engine config.
	volumeUp   []cec.Command
	volumeDown []cec.Command
	modeLists  map[string][]cec.Command

	// firstVolume suppresses the first volume call after startup; the
	// desktop session replays one stale volume signal when the monitor
	// attaches.
	firstVolume atomic.Bool

	events   EventSink    // optional
	registry DeviceLister // optional

	version   string
	logLevel  string
	startTime time.Time

	keyCh chan KeyEventMessage

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// Engine is the command-queue surface the bridge drives.
// Satisfied by *cec.Engine.
type Engine interface {
	Submit(c cec.Command)
	SubmitQueue(cmds []cec.Command)
	SubmitAndWait(c cec.Command, timeout time.Duration) error
	IsConnected() bool
	WorkQueueSize() int
	ExecQueueSize() int
	ListDevices() string
	Startup()
	Reconnect()
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// EventSink records bus activity to a time-series store.
// Satisfied by *telemetry.Client. Optional; nil disables recording.
type EventSink interface {
	RecordKeyPress(key string, code int)
	RecordPowerEvent(device string, on bool, completed bool)
	RecordVolumeEvent(direction string)
	RecordReconnect(reason string, success bool)
	RecordQueueDepth(work int, exec int)
}

// DeviceLister exposes the persisted device registry for requests.
// Satisfied by *device.Registry. Optional; nil disables the listing.
type DeviceLister interface {
	List(ctx context.Context) ([]device.Record, error)
}

// Logger is the minimal logging interface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// QoS is the quality of service for all bridge traffic.
	QoS byte

	// Builder translates configuration and inbound messages into engine
	// commands. Required.
	Builder *Builder

	// Engine is the engine configuration section; its volume, mode, and
	// audio-device settings are built here.
	Engine config.EngineConfig

	// Menus are the configured named menus.
	Menus map[string]config.MenuConfig

	// Events is the optional telemetry sink.
	Events EventSink

	// Registry is the optional persisted device registry.
	Registry DeviceLister

	// Logger is optional structured logging.
	Logger Logger

	// Version is the bridge software version for status messages.
	Version string

	// LogLevel is the configured logging level, reported in status.
	LogLevel string
}

// New creates a bridge. Call SetEngine before Start; the engine is
// attached late because its options reference the bridge as key sink
// and menu runner.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Builder == nil {
		return nil, fmt.Errorf("command builder is required")
	}

	menus, err := buildMenus(opts.Menus, opts.Builder)
	if err != nil {
		return nil, err
	}

	volumeUp, err := buildVolumeList(opts.Builder, opts.Engine.OnVolumeUp, opts.Engine.AudioDevice, "volup")
	if err != nil {
		return nil, fmt.Errorf("on_volume_up: %w", err)
	}
	volumeDown, err := buildVolumeList(opts.Builder, opts.Engine.OnVolumeDown, opts.Engine.AudioDevice, "voldown")
	if err != nil {
		return nil, fmt.Errorf("on_volume_down: %w", err)
	}

	modeLists := make(map[string][]cec.Command, 3)
	for mode, cfgs := range map[string][]config.CommandConfig{
		"tv":     opts.Engine.OnSwitchToTV,
		"radio":  opts.Engine.OnSwitchToRadio,
		"replay": opts.Engine.OnSwitchToReplay,
	} {
		cmds, err := opts.Builder.BuildList(cfgs)
		if err != nil {
			return nil, fmt.Errorf("on_switch_to_%s: %w", mode, err)
		}
		modeLists[mode] = cmds
	}

	b := &Bridge{
		mqtt:       opts.MQTT,
		qos:        opts.QoS,
		builder:    opts.Builder,
		menus:      menus,
		volumeUp:   volumeUp,
		volumeDown: volumeDown,
		modeLists:  modeLists,
		events:     opts.Events,
		registry:   opts.Registry,
		version:    opts.Version,
		logLevel:   opts.LogLevel,
		keyCh:      make(chan KeyEventMessage, keyEventBuffer),
		done:       make(chan struct{}),
		logger:     opts.Logger,
	}
	b.firstVolume.Store(true)
	return b, nil
}

// buildVolumeList builds a configured volume command list. When the
// list is absent and an audio device is named, the default is a single
// forwarded key press to that device.
func buildVolumeList(b *Builder, cfgs []config.CommandConfig, audioDevice, key string) ([]cec.Command, error) {
	if len(cfgs) == 0 && audioDevice != "" {
		cfgs = []config.CommandConfig{{Action: "hostkey", Key: key, Device: audioDevice}}
	}
	return b.BuildList(cfgs)
}

// SetEngine attaches the engine. Must be called before Start.
func (b *Bridge) SetEngine(e Engine) {
	b.engine = e
}

// Start subscribes to command and request topics and begins status
// reporting and key event publishing.
func (b *Bridge) Start() error {
	if b.engine == nil {
		return fmt.Errorf("engine not attached")
	}
	b.startTime = time.Now()

	if err := b.mqtt.Subscribe(b.topics.Command(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", b.topics.Command())

	if err := b.mqtt.Subscribe(b.topics.Request(), b.qos, b.handleRequest); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", b.topics.Request())

	b.wg.Add(2)
	go b.publishKeyEvents()
	go b.statusLoop()

	b.publishStatus()
	return nil
}

// Stop shuts down the bridge loops. The engine and MQTT client are
// stopped by the caller.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// handleCommand processes a fire-and-forget command message.
func (b *Bridge) handleCommand(_ string, payload []byte) error {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	b.logDebug("command received", "action", msg.Action, "device", msg.Device, "source", msg.Source)

	switch msg.Action {
	case "volume_up":
		b.VolumeUp()
		return nil
	case "volume_down":
		b.VolumeDown()
		return nil
	case "switch_tv":
		return b.SwitchTo("tv")
	case "switch_radio":
		return b.SwitchTo("radio")
	case "switch_replay":
		return b.SwitchTo("replay")
	case "menu":
		b.ExecMenu(msg.Menu)
		return nil
	case "menu_stop":
		b.StopMenu(msg.Menu)
		return nil
	case "startup":
		b.engine.Startup()
		return nil
	case "reconnect":
		b.engine.Reconnect()
		if b.events != nil {
			b.events.RecordReconnect("manual", true)
		}
		return nil
	}

	cmd, err := b.builder.Build(config.CommandConfig{
		Action: msg.Action,
		Device: msg.Device,
		Key:    msg.Key,
		Shell:  msg.Shell,
	})
	if err != nil {
		return fmt.Errorf("command %q: %w", msg.Action, err)
	}

	// Power commands get a completion wait so telemetry can tell whether
	// dispatch (including the status poll) finished inside the window.
	if b.events != nil && (cmd.Kind == cec.KindPowerOn || cmd.Kind == cec.KindPowerOff) {
		on := cmd.Kind == cec.KindPowerOn
		devName := msg.Device
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			err := b.engine.SubmitAndWait(cmd, powerWaitTimeout)
			b.events.RecordPowerEvent(devName, on, err == nil)
		}()
		return nil
	}

	b.engine.Submit(cmd)
	return nil
}

// handleRequest processes a request/response query.
func (b *Bridge) handleRequest(_ string, payload []byte) error {
	var msg RequestMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("unmarshal request message: %w", err)
	}
	if msg.RequestID == "" {
		msg.RequestID = uuid.New().String()
	}
	b.logDebug("request received", "action", msg.Action, "request_id", msg.RequestID)

	var resp ResponseMessage
	switch msg.Action {
	case "ping":
		resp = newResponse(msg.RequestID, map[string]any{"pong": true})

	case "status":
		resp = newResponse(msg.RequestID, map[string]any{
			"connected":      b.engine.IsConnected(),
			"work_queue":     b.engine.WorkQueueSize(),
			"exec_queue":     b.engine.ExecQueueSize(),
			"uptime_seconds": int64(time.Since(b.startTime).Seconds()),
			"version":        b.version,
			"log_level":      b.logLevel,
		})

	case "devices":
		data := map[string]any{"listing": b.engine.ListDevices()}
		if b.registry != nil {
			records, err := b.registry.List(context.Background())
			if err != nil {
				b.logWarn("registry list failed", "error", err)
			} else {
				data["known"] = deviceRecordsData(records)
			}
		}
		resp = newResponse(msg.RequestID, data)

	default:
		resp = newErrorResponse(msg.RequestID, "unknown action %q", msg.Action)
	}

	return b.publishJSON(b.topics.Response(msg.RequestID), resp, false)
}

// deviceRecordsData flattens registry records for a JSON response.
func deviceRecordsData(records []device.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"logical":    rec.Logical,
			"physical":   rec.Physical,
			"name":       rec.OSDName,
			"vendor":     rec.Vendor,
			"power":      rec.Power,
			"first_seen": rec.FirstSeen.UTC().Format(time.RFC3339),
			"last_seen":  rec.LastSeen.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// Put implements cec.KeySink. Key events are handed to a publisher
// goroutine so a slow broker cannot stall the engine worker.
func (b *Bridge) Put(key int) {
	msg := KeyEventMessage{
		Timestamp: time.Now().UTC(),
		Key:       keymap.HostKey(key).String(),
		Code:      key,
	}
	select {
	case b.keyCh <- msg:
	default:
		b.logWarn("key event buffer full, dropping", "key", msg.Key)
	}
}

// publishKeyEvents drains the key event channel until Stop.
func (b *Bridge) publishKeyEvents() {
	defer b.wg.Done()
	for {
		select {
		case msg := <-b.keyCh:
			if err := b.publishJSON(b.topics.EventKey(), msg, false); err != nil {
				b.logWarn("key event publish failed", "error", err)
			}
			if b.events != nil {
				b.events.RecordKeyPress(msg.Key, msg.Code)
			}
		case <-b.done:
			return
		}
	}
}

// VolumeUp forwards one volume-up step to the audio device.
//
// The first volume call after startup is dropped: the desktop session
// replays one stale volume signal when the status monitor attaches.
func (b *Bridge) VolumeUp() { b.volume("up", b.volumeUp) }

// VolumeDown forwards one volume-down step to the audio device.
func (b *Bridge) VolumeDown() { b.volume("down", b.volumeDown) }

func (b *Bridge) volume(direction string, cmds []cec.Command) {
	if b.firstVolume.CompareAndSwap(true, false) {
		b.logDebug("ignoring first volume signal", "direction", direction)
		return
	}
	b.engine.SubmitQueue(cmds)

	event := VolumeEventMessage{Timestamp: time.Now().UTC(), Direction: direction}
	if err := b.publishJSON(b.topics.EventVolume(), event, false); err != nil {
		b.logWarn("volume event publish failed", "error", err)
	}
	if b.events != nil {
		b.events.RecordVolumeEvent(direction)
	}
}

// SwitchTo runs the configured command list for a source mode and
// publishes the mode change.
func (b *Bridge) SwitchTo(mode string) error {
	cmds, ok := b.modeLists[mode]
	if !ok {
		return fmt.Errorf("unknown mode %q", mode)
	}
	b.engine.SubmitQueue(cmds)

	event := ModeEventMessage{Timestamp: time.Now().UTC(), Mode: mode}
	return b.publishJSON(b.topics.EventMode(), event, true)
}

// DeviceSeen implements cec.DeviceObserver by announcing the sighting.
func (b *Bridge) DeviceSeen(info cec.DeviceInfo) {
	msg := DeviceEventMessage{
		Timestamp: time.Now().UTC(),
		Logical:   int(info.Logical),
		Physical:  info.Physical.String(),
		Name:      info.OSDName,
		Vendor:    info.Vendor,
		Power:     info.Power.String(),
	}
	if err := b.publishJSON(b.topics.EventDevice(), msg, false); err != nil {
		b.logWarn("device event publish failed", "error", err)
	}
}

// statusLoop refreshes the retained status message until Stop.
func (b *Bridge) statusLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.publishStatus()
		case <-b.done:
			return
		}
	}
}

// publishStatus publishes the retained status snapshot and records
// queue depths to the event sink.
func (b *Bridge) publishStatus() {
	work := b.engine.WorkQueueSize()
	exec := b.engine.ExecQueueSize()

	msg := StatusMessage{
		Status:        "online",
		Timestamp:     time.Now().UTC(),
		Version:       b.version,
		UptimeSeconds: int64(time.Since(b.startTime).Seconds()),
		Connected:     b.engine.IsConnected(),
		WorkQueue:     work,
		ExecQueue:     exec,
	}
	if err := b.publishJSON(b.topics.SystemStatus(), msg, true); err != nil {
		b.logWarn("status publish failed", "error", err)
	}
	if b.events != nil {
		b.events.RecordQueueDepth(work, exec)
	}
}

// publishJSON marshals and publishes a message.
func (b *Bridge) publishJSON(topic string, msg any, retained bool) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", msg, err)
	}
	return b.mqtt.Publish(topic, payload, b.qos, retained)
}

// MultiObserver fans one device sighting out to several observers,
// typically the SQLite registry and the bridge's event publisher.
type MultiObserver []cec.DeviceObserver

// DeviceSeen implements cec.DeviceObserver.
func (m MultiObserver) DeviceSeen(info cec.DeviceInfo) {
	for _, o := range m {
		if o != nil {
			o.DeviceSeen(info)
		}
	}
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}
