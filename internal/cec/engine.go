package cec

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Engine timing constants. The matching Engine fields exist so tests can
// shrink the intervals.
const (
	// defaultQueueWait bounds each blocking wait on the normal queue so
	// the worker never sleeps forever.
	defaultQueueWait = 2 * time.Second

	// defaultReconnectPause separates the disconnect and connect halves
	// of a reconnect.
	defaultReconnectPause = 1 * time.Second

	// defaultPowerPollInterval and defaultPowerPollAttempts bound the
	// wait for a device to reach a requested power status (~5s total).
	defaultPowerPollInterval = 100 * time.Millisecond
	defaultPowerPollAttempts = 50

	// defaultExecPollInterval bounds each wait on the reentrant queue
	// while a shell command is running.
	defaultExecPollInterval = 250 * time.Millisecond
)

// cmdQueue is a FIFO of commands with a wake-up signal. Producers push
// and signal; only the worker pops.
type cmdQueue struct {
	mu     sync.Mutex
	items  []Command
	signal chan struct{}
}

func newCmdQueue() *cmdQueue {
	return &cmdQueue{signal: make(chan struct{}, 1)}
}

func (q *cmdQueue) push(c Command) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
	q.wake()
}

// pushFront jumps the queue. Used only for reconnect requests raised by
// connection-loss alerts.
func (q *cmdQueue) pushFront(c Command) {
	q.mu.Lock()
	q.items = append([]Command{c}, q.items...)
	q.mu.Unlock()
	q.wake()
}

func (q *cmdQueue) pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Command{}, false
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c, true
}

func (q *cmdQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *cmdQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// notifier is a broadcast channel: broadcast closes the current channel
// and replaces it, waking every goroutine blocked on the previous one.
// Waiters re-check their condition after each wake-up.
type notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{})}
}

func (n *notifier) wait() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

func (n *notifier) broadcast() {
	n.mu.Lock()
	close(n.ch)
	n.ch = make(chan struct{})
	n.mu.Unlock()
}

// Logger is the minimal structured logger the engine needs. Satisfied by
// the logging package's wrapper; nil disables logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a new Engine.
type Options struct {
	// Opener opens the bus adapter. Required.
	Opener Opener

	// Adapter holds the open parameters passed to Opener.
	Adapter AdapterConfig

	// KeyMap translates bus key codes to host keys and back. Required
	// for key-press dispatch; nil drops key commands with a log line.
	KeyMap KeyMapper

	// Keys receives translated host key events. Optional.
	Keys KeySink

	// Menus starts/stops named menus for handler dispatch. Optional.
	Menus MenuRunner

	// Handlers is the inbound bus-command handler table. Optional.
	Handlers HandlerTable

	// Observer is notified of devices discovered during connect. Optional.
	Observer DeviceObserver

	// Logger is optional structured logging.
	Logger Logger

	// StartupDelay postpones the initial connect attempt.
	StartupDelay time.Duration

	// Command lists run at lifecycle points.
	OnStart       []Command
	OnStop        []Command
	OnManualStart []Command

	// ManualStart marks a user-initiated start; the OnManualStart list
	// runs before OnStart.
	ManualStart bool
}

// Engine is the command-queue engine. One worker goroutine owns the
// adapter and drains the queues; any number of producers submit.
type Engine struct {
	opener Opener
	cfg    AdapterConfig

	keymap   KeyMapper
	keys     KeySink
	menus    MenuRunner
	handlers HandlerTable
	observer DeviceObserver
	logger   Logger

	worker *cmdQueue
	exec   *cmdQueue

	adapterMu sync.RWMutex
	adapter   Adapter

	// processed holds the serial of the most recently dispatched command;
	// completed wakes waiters after every store.
	processed atomic.Int32
	completed *notifier

	inExec          atomic.Bool
	deferredStartup atomic.Bool

	// lastKey filters key repeats delivered by the adapter.
	keyMu   sync.Mutex
	lastKey UserControlCode

	startupDelay  time.Duration
	onStart       []Command
	onStop        []Command
	onManualStart []Command
	manualStart   bool

	// Timing knobs, defaulted from the package constants.
	queueWait        time.Duration
	reconnectPause   time.Duration
	powerPollInterval time.Duration
	powerPollAttempts int
	execPollInterval time.Duration

	// stopped is worker-local: set when the exit command is dispatched.
	stopped bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates an engine. Call Start to launch the worker.
func New(opts Options) (*Engine, error) {
	if opts.Opener == nil {
		return nil, fmt.Errorf("adapter opener is required")
	}

	e := &Engine{
		opener:   opts.Opener,
		cfg:      opts.Adapter,
		keymap:   opts.KeyMap,
		keys:     opts.Keys,
		menus:    opts.Menus,
		handlers: opts.Handlers,
		observer: opts.Observer,
		logger:   opts.Logger,

		worker:    newCmdQueue(),
		exec:      newCmdQueue(),
		completed: newNotifier(),

		lastKey: UserControlCode(-1),

		startupDelay:  opts.StartupDelay,
		onStart:       opts.OnStart,
		onStop:        opts.OnStop,
		onManualStart: opts.OnManualStart,
		manualStart:   opts.ManualStart,

		queueWait:         defaultQueueWait,
		reconnectPause:    defaultReconnectPause,
		powerPollInterval: defaultPowerPollInterval,
		powerPollAttempts: defaultPowerPollAttempts,
		execPollInterval:  defaultExecPollInterval,
	}
	e.processed.Store(serialUnset)
	return e, nil
}

// Start launches the worker goroutine. The worker connects to the
// adapter (after the configured startup delay) and begins draining the
// normal queue.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
}

// Startup runs the start-of-life command lists. If the adapter is not
// connected yet the lists are deferred and flushed by the next
// successful connect.
func (e *Engine) Startup() {
	if !e.IsConnected() {
		e.deferredStartup.Store(true)
		e.logInfo("startup deferred until adapter connects")
		return
	}
	e.submitStartupLists()
}

// Stop runs the stop list, then submits exit synchronously and waits for
// the worker to finish. Safe to call more than once.
func (e *Engine) Stop(timeout time.Duration) {
	e.stopOnce.Do(func() {
		e.SubmitQueue(e.onStop)
		if err := e.SubmitAndWait(NewCommand(KindExit), timeout); err != nil {
			e.logWarn("exit wait expired", "error", err)
		}
		e.wg.Wait()
	})
}

// Submit appends a command to the normal queue. Fire and forget.
func (e *Engine) Submit(c Command) {
	e.worker.push(c)
}

// SubmitQueue appends a list of commands to the normal queue. Unlike
// Submit it refuses the whole list when no adapter is connected, so
// configured command lists do not pile up while disconnected.
func (e *Engine) SubmitQueue(cmds []Command) {
	if len(cmds) == 0 {
		return
	}
	if !e.IsConnected() {
		e.logInfo("not connected, dropping command list", "commands", len(cmds))
		return
	}
	for _, c := range cmds {
		e.worker.push(c)
	}
}

// SubmitAndWait submits a command and blocks until the worker publishes
// its serial as completed or the timeout expires. On timeout the command
// remains queued and will still execute; the caller must not assume the
// side effect happened.
//
// While a shell command is running, connect and disconnect are routed to
// the reentrant queue so they are serviced without waiting for the child.
func (e *Engine) SubmitAndWait(c Command, timeout time.Duration) error {
	serial := c.EnsureSerial()

	if e.inExec.Load() && (c.Kind == KindConnect || c.Kind == KindDisconnect) {
		e.exec.push(c)
	} else {
		e.worker.push(c)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		// Grab the wait channel before checking, so a broadcast between
		// the check and the select is not lost.
		ch := e.completed.wait()
		if int(e.processed.Load()) == serial {
			return nil
		}
		select {
		case <-ch:
		case <-timer.C:
			if int(e.processed.Load()) == serial {
				return nil
			}
			e.logWarn("command completion wait timed out",
				"kind", c.Kind.String(), "serial", serial)
			return ErrWaitTimeout
		}
	}
}

// Reconnect enqueues a reconnect at the front of the active queue. Called
// from the connection-loss alert path; safe from any goroutine.
func (e *Engine) Reconnect() {
	c := NewCommand(KindReconnect)
	if e.inExec.Load() {
		e.exec.pushFront(c)
	} else {
		e.worker.pushFront(c)
	}
}

// IsConnected reports whether an adapter is currently open. Producers may
// call this at any time; a false result during a reconnect window means
// "operation not possible right now", not an error.
func (e *Engine) IsConnected() bool {
	return e.getAdapter() != nil
}

// WorkQueueSize returns the depth of the normal queue.
func (e *Engine) WorkQueueSize() int {
	return e.worker.len()
}

// ExecQueueSize returns the depth of the reentrant queue.
func (e *Engine) ExecQueueSize() int {
	return e.exec.len()
}

// ListDevices renders a human-readable table of active bus devices.
func (e *Engine) ListDevices() string {
	a := e.getAdapter()
	if a == nil {
		return "not connected\n"
	}
	var b strings.Builder
	active := a.ActiveDevices()
	for i := range active {
		if !active[i] {
			continue
		}
		addr := LogicalAddress(i)
		fmt.Fprintf(&b, "%2d %-12s %-9s %-14s %s\n",
			i, addr, a.PhysicalAddressOf(addr), a.OSDName(addr), a.PowerStatus(addr))
	}
	if b.Len() == 0 {
		return "no devices found\n"
	}
	return b.String()
}

// Callbacks returns the handler set to register with the adapter. Every
// handler only constructs a command and enqueues it, or logs.
func (e *Engine) Callbacks() Callbacks {
	return Callbacks{
		KeyPress:        e.onKeyPress,
		Command:         e.onBusCommand,
		Alert:           e.onAlert,
		SourceActivated: e.onSourceActivated,
	}
}

// run is the worker loop. All adapter calls happen here.
func (e *Engine) run() {
	defer e.wg.Done()

	if e.startupDelay > 0 {
		e.logDebug("delaying startup", "delay", e.startupDelay.String())
		time.Sleep(e.startupDelay)
	}
	e.connect()

	for !e.stopped {
		c := e.waitCmd(e.worker)
		e.dispatch(c)
		e.finish(c)
	}

	e.disconnect()
	e.logInfo("worker stopped")
}

// waitCmd blocks until a command is available on q. The wait is bounded
// by queueWait per iteration so the worker never sleeps unboundedly.
func (e *Engine) waitCmd(q *cmdQueue) Command {
	for {
		if c, ok := q.pop(); ok {
			return c
		}
		select {
		case <-q.signal:
		case <-time.After(e.queueWait):
		}
	}
}

// finish publishes the command's serial as completed and wakes waiters.
// Publication happens after every dispatch, including internally failed
// ones: completion means "attempted", not "succeeded on the bus".
func (e *Engine) finish(c Command) {
	if c.Serial == serialUnset {
		return
	}
	e.processed.Store(int32(c.Serial))
	e.completed.broadcast()
}

func (e *Engine) dispatch(c Command) {
	e.logDebug("dispatch", "kind", c.Kind.String(), "serial", c.Serial)

	switch c.Kind {
	case KindExit:
		e.stopped = true

	case KindKeyPress:
		e.dispatchKeyPress(c)

	case KindPowerOn:
		e.dispatchPower(c, true)

	case KindPowerOff:
		e.dispatchPower(c, false)

	case KindTextViewOn:
		e.dispatchTextViewOn(c)

	case KindMakeActive:
		if a := e.getAdapter(); a != nil {
			if err := a.SetActiveSource(); err != nil {
				e.logError("set active source failed", err)
			}
		} else {
			e.logInfo("not connected, skipping make-active")
		}

	case KindMakeInactive:
		if a := e.getAdapter(); a != nil {
			if err := a.SetInactiveView(); err != nil {
				e.logError("set inactive view failed", err)
			}
		} else {
			e.logInfo("not connected, skipping make-inactive")
		}

	case KindHostKeyPress:
		e.dispatchHostKeyPress(c)

	case KindExecShell:
		e.runShell(c)

	case KindExecToggle:
		e.dispatchToggle(c)

	case KindReconnect:
		e.reconnect()

	case KindConnect:
		e.connect()

	case KindDisconnect:
		e.disconnect()

	case KindBusCommand:
		e.dispatchBusCommand(c)

	default:
		e.logWarn("unknown command kind", "kind", int(c.Kind))
	}
}

func (e *Engine) dispatchKeyPress(c Command) {
	if c.Val < 0 || UserControlCode(c.Val) > MaxUserControlCode {
		e.logWarn("key code out of range", "code", c.Val)
		return
	}
	if e.keymap == nil || e.keys == nil {
		e.logDebug("no key map configured, dropping key", "code", c.Val)
		return
	}
	for _, k := range e.keymap.BusToHost(UserControlCode(c.Val)) {
		e.keys.Put(k)
	}
}

func (e *Engine) dispatchHostKeyPress(c Command) {
	a := e.getAdapter()
	if a == nil {
		e.logInfo("not connected, skipping host key press", "key", c.Val)
		return
	}
	if e.keymap == nil {
		e.logDebug("no key map configured, dropping host key", "key", c.Val)
		return
	}
	code, ok := e.keymap.HostToBus(c.Val)
	if !ok {
		e.logDebug("host key has no bus mapping", "key", c.Val)
		return
	}
	addr := e.resolve(c.Device)
	if addr == AddressUnknown {
		e.logInfo("device unresolved, skipping host key press", "key", c.Val)
		return
	}
	if err := a.SendKeyPress(addr, code); err != nil {
		e.logError("key press failed", err)
		return
	}
	if err := a.SendKeyRelease(addr); err != nil {
		e.logError("key release failed", err)
	}
}

func (e *Engine) dispatchPower(c Command, on bool) {
	a := e.getAdapter()
	if a == nil {
		e.logInfo("not connected, skipping power command")
		return
	}
	addr := e.resolve(c.Device)
	if addr == AddressUnknown {
		e.logInfo("device unresolved, skipping power command")
		return
	}

	var err error
	want := PowerStandby
	if on {
		want = PowerOn
		err = a.PowerOn(addr)
	} else {
		err = a.Standby(addr)
	}
	if err != nil {
		e.logError("power request failed", err, "address", int(addr))
		return
	}
	e.waitForPowerStatus(a, addr, want)
}

func (e *Engine) dispatchTextViewOn(c Command) {
	a := e.getAdapter()
	if a == nil {
		e.logInfo("not connected, skipping text-view-on")
		return
	}
	addr := e.resolve(c.Device)
	if addr == AddressUnknown {
		e.logInfo("device unresolved, skipping text-view-on")
		return
	}
	if err := a.TextViewOn(addr); err != nil {
		e.logError("text-view-on failed", err, "address", int(addr))
	}
}

// dispatchToggle replays one of the two embedded sub-queues depending on
// the device's observed power status. Sub-commands run inline on the
// worker so their order is preserved relative to the toggle itself.
func (e *Engine) dispatchToggle(c Command) {
	a := e.getAdapter()
	if a == nil {
		e.logInfo("not connected, skipping toggle")
		return
	}
	addr := e.resolve(c.Device)
	if addr == AddressUnknown {
		e.logInfo("device unresolved, skipping toggle")
		return
	}

	status := a.PowerStatus(addr)
	list := c.PowerOn
	if status == PowerOn || status == PowerTransitionStandbyToOn {
		list = c.PowerOff
	}
	e.logDebug("toggle", "address", int(addr), "status", status.String(), "commands", len(list))
	for _, sub := range list {
		e.dispatch(sub)
		e.finish(sub)
	}
}

// dispatchBusCommand runs every handler matching the opcode and
// initiator. Handlers with a nil initiator match any device.
func (e *Engine) dispatchBusCommand(c Command) {
	matched := false
	for _, h := range e.handlers[c.Opcode] {
		if h.Initiator != nil && e.resolve(h.Initiator) != c.Source {
			continue
		}
		matched = true
		if e.menus != nil {
			if h.ExecMenu != "" {
				e.menus.ExecMenu(h.ExecMenu)
			}
			if h.StopMenu != "" {
				e.menus.StopMenu(h.StopMenu)
			}
		}
		for _, hc := range h.Commands {
			e.Submit(hc)
		}
	}
	if !matched {
		e.logDebug("no handler for bus command",
			"opcode", c.Opcode.String(), "source", int(c.Source))
	}
}

// waitForPowerStatus polls until the device reports want, an unknown
// status, or the attempt budget is spent. Unknown is unrecoverable for
// this wait and ends it early.
func (e *Engine) waitForPowerStatus(a Adapter, addr LogicalAddress, want PowerStatus) PowerStatus {
	var status PowerStatus
	for i := 0; i < e.powerPollAttempts; i++ {
		status = a.PowerStatus(addr)
		if status == want || status == PowerUnknown {
			return status
		}
		time.Sleep(e.powerPollInterval)
	}
	e.logInfo("power status wait exhausted",
		"address", int(addr), "want", want.String(), "last", status.String())
	return status
}

// resolve maps a device descriptor to a live logical address, caching the
// result on the descriptor. Returns AddressUnknown when resolution fails;
// callers skip the dependent bus call.
func (e *Engine) resolve(d *Device) LogicalAddress {
	if d == nil {
		return AddressUnknown
	}
	if d.used != AddressUnknown {
		return d.used
	}
	a := e.getAdapter()
	if a == nil {
		return AddressUnknown
	}

	if d.Physical != 0 {
		active := a.ActiveDevices()
		fallback := AddressUnknown
		for i := 0; i < logicalAddressCount; i++ {
			if !active[i] {
				continue
			}
			addr := LogicalAddress(i)
			if a.PhysicalAddressOf(addr) != d.Physical {
				continue
			}
			if addr == d.Defined {
				// Exact match on both physical and logical wins outright.
				d.used = addr
				return d.used
			}
			if fallback == AddressUnknown {
				fallback = addr
			}
		}
		if fallback != AddressUnknown {
			d.used = fallback
			return d.used
		}
	}

	if d.Defined == AddressUnknown {
		e.logWarn("device resolution failed, no fallback configured",
			"physical", d.Physical.String())
		return AddressUnknown
	}
	if d.Defined.Valid() && a.OwnAddresses()[d.Defined] {
		e.logWarn("configured logical address belongs to this host",
			"address", int(d.Defined))
		return AddressUnknown
	}
	if !a.Poll(d.Defined) {
		e.logWarn("device not responding to poll", "address", int(d.Defined))
		return AddressUnknown
	}
	d.used = d.Defined
	return d.used
}

// connect opens the adapter if not already open, scans the bus and
// flushes deferred startup lists. Idempotent.
func (e *Engine) connect() {
	if e.IsConnected() {
		e.logDebug("already connected")
		return
	}
	e.logInfo("connecting to adapter", "port", e.cfg.Port)

	a, err := e.opener(e.cfg, e.Callbacks())
	if err != nil {
		e.logError("adapter open failed", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		return
	}

	e.adapterMu.Lock()
	e.adapter = a
	e.adapterMu.Unlock()

	e.scanBus(a)

	if e.deferredStartup.CompareAndSwap(true, false) {
		e.submitStartupLists()
	}
	e.logInfo("adapter connected")
}

// disconnect withdraws the active source and closes the adapter.
// Idempotent.
func (e *Engine) disconnect() {
	e.adapterMu.Lock()
	a := e.adapter
	e.adapter = nil
	e.adapterMu.Unlock()

	if a == nil {
		e.logDebug("already disconnected")
		return
	}
	if err := a.SetInactiveView(); err != nil {
		e.logDebug("set inactive view on disconnect failed", "error", err)
	}
	a.Close()
	e.logInfo("adapter disconnected")
}

func (e *Engine) reconnect() {
	e.logInfo("reconnecting")
	e.disconnect()
	time.Sleep(e.reconnectPause)
	e.connect()
}

// scanBus logs the active devices and reports them to the observer.
func (e *Engine) scanBus(a Adapter) {
	active := a.ActiveDevices()
	for i := range active {
		if !active[i] {
			continue
		}
		addr := LogicalAddress(i)
		info := DeviceInfo{
			Logical:  addr,
			Physical: a.PhysicalAddressOf(addr),
			OSDName:  a.OSDName(addr),
			Vendor:   a.VendorID(addr),
			Power:    a.PowerStatus(addr),
		}
		e.logInfo("bus device",
			"address", i,
			"name", info.OSDName,
			"physical", info.Physical.String(),
			"power", info.Power.String())
		if e.observer != nil {
			e.observer.DeviceSeen(info)
		}
	}
}

func (e *Engine) submitStartupLists() {
	if e.manualStart {
		e.SubmitQueue(e.onManualStart)
	}
	e.SubmitQueue(e.onStart)
}

func (e *Engine) getAdapter() Adapter {
	e.adapterMu.RLock()
	defer e.adapterMu.RUnlock()
	return e.adapter
}

// onKeyPress is the adapter key-event handler. Repeat events (nonzero
// duration for the key we saw last) are suppressed.
func (e *Engine) onKeyPress(code UserControlCode, duration time.Duration) {
	e.keyMu.Lock()
	repeat := duration > 0 && code == e.lastKey
	e.lastKey = code
	e.keyMu.Unlock()

	if repeat {
		return
	}
	e.Submit(NewDeviceCommand(KindKeyPress, int(code), nil))
}

func (e *Engine) onBusCommand(op Opcode, initiator LogicalAddress) {
	e.Submit(NewBusCommand(op, initiator))
}

func (e *Engine) onAlert(alert Alert) {
	e.logWarn("adapter alert", "alert", alert.String())
	if alert == AlertConnectionLost {
		e.Reconnect()
	}
}

func (e *Engine) onSourceActivated(addr LogicalAddress, active bool) {
	e.logDebug("source activation", "address", int(addr), "active", active)
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) logError(msg string, err error, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, append([]any{"error", err}, args...)...)
	}
}
