package pulse8

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/nerrad567/cecbridge/internal/cec"
)

const (
	// baudRate is fixed by the adapter firmware.
	baudRate = 38400

	// txTimeout bounds the wait for a transmit acknowledgement.
	txTimeout = 1 * time.Second

	// replyTimeout bounds the wait for a device's response to a query.
	replyTimeout = 2 * time.Second

	// scanTTL is how long a bus scan result stays fresh. Resolution and
	// device listings within this window reuse the cached scan.
	scanTTL = 10 * time.Second
)

var errClosed = errors.New("pulse8: adapter closed")

// candidateAddresses are the playback logical addresses tried when
// claiming a spot on the bus, in preference order.
var candidateAddresses = []cec.LogicalAddress{
	cec.AddressPlayback1,
	cec.AddressPlayback2,
	cec.AddressPlayback3,
}

type pendingKey struct {
	op  byte
	src byte
}

// Client talks the Pulse-Eight serial protocol and implements
// cec.Adapter. Bus operations are driven from the engine worker only;
// the internal reader goroutine handles inbound traffic and transmit
// acknowledgements.
type Client struct {
	port   serial.Port
	logger cec.Logger
	cb     cec.Callbacks

	logical  cec.LogicalAddress
	physical cec.PhysicalAddress
	osdName  string

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[pendingKey]chan []byte
	txResult chan bool

	physCache   map[cec.LogicalAddress]cec.PhysicalAddress
	nameCache   map[cec.LogicalAddress]string
	vendorCache map[cec.LogicalAddress]uint32

	scanMu     sync.Mutex
	lastScan   [16]bool
	lastScanAt time.Time

	keyMu      sync.Mutex
	lastKey    cec.UserControlCode
	lastKeyAt  time.Time
	haveKey    bool

	// rx assembles one bus message from FRAME_START/FRAME_DATA frames.
	rx []byte

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	alertOnce sync.Once
}

// Open connects to the adapter, claims a logical address and announces
// the host on the bus. The returned client satisfies cec.Adapter.
func Open(cfg cec.AdapterConfig, cb cec.Callbacks, logger cec.Logger) (*Client, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}

	c := &Client{
		port:        port,
		logger:      logger,
		cb:          cb,
		logical:     cec.AddressUnknown,
		pending:     make(map[pendingKey]chan []byte),
		txResult:    make(chan bool, 1),
		physCache:   make(map[cec.LogicalAddress]cec.PhysicalAddress),
		nameCache:   make(map[cec.LogicalAddress]string),
		vendorCache: make(map[cec.LogicalAddress]uint32),
		osdName:     cfg.DeviceName,
		done:        make(chan struct{}),
	}
	if c.osdName == "" {
		c.osdName = "cecbridge"
	}

	c.wg.Add(1)
	go c.readLoop()

	if err := c.sendControl(codeSetControlled, 1); err != nil {
		c.Close()
		return nil, fmt.Errorf("enable controlled mode: %w", err)
	}

	c.physical = cfg.PhysicalAddress
	if c.physical == 0 {
		port := cfg.HDMIPort
		if port < 1 || port > 15 {
			port = 1
		}
		c.physical = cec.PhysicalAddress(port) << 12
	}

	if err := c.claimAddress(); err != nil {
		c.Close()
		return nil, err
	}
	c.announce()

	c.logDebug("adapter ready",
		"logical", int(c.logical), "physical", c.physical.String())
	return c, nil
}

// claimAddress polls the candidate playback addresses and takes the
// first free one.
func (c *Client) claimAddress() error {
	for _, addr := range candidateAddresses {
		if c.transmit(addr, byte(addr), nil) == nil {
			// Acked: somebody already owns it.
			continue
		}
		c.logical = addr
		mask := uint16(1) << uint(addr)
		return c.sendControl(codeSetAckMask, byte(mask>>8), byte(mask))
	}
	return errors.New("pulse8: no free logical address")
}

// announce broadcasts the physical address and OSD name.
func (c *Client) announce() {
	payload := []byte{byte(c.physical >> 8), byte(c.physical), 0x04} // playback device
	if err := c.transmit(cec.AddressBroadcast, byte(cec.OpcodeReportPhysAddr), payload); err != nil {
		c.logDebug("report physical address failed", "error", err)
	}
	if err := c.transmit(cec.AddressBroadcast, byte(cec.OpcodeSetOSDName), []byte(c.osdName)); err != nil {
		c.logDebug("set osd name failed", "error", err)
	}
}

// Close shuts down the reader and releases the port. Safe to call twice.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.port.Close()
		c.wg.Wait()
	})
}

// ActiveDevices polls every bus slot, reusing a recent scan when fresh.
func (c *Client) ActiveDevices() [16]bool {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	if time.Since(c.lastScanAt) < scanTTL {
		return c.lastScan
	}
	var active [16]bool
	for i := 0; i < 15; i++ { // broadcast slot is never polled
		addr := cec.LogicalAddress(i)
		if addr == c.logical {
			continue
		}
		active[i] = c.Poll(addr)
	}
	c.lastScan = active
	c.lastScanAt = time.Now()
	return active
}

// OwnAddresses reports the single logical address claimed at open.
func (c *Client) OwnAddresses() [16]bool {
	var own [16]bool
	if c.logical.Valid() {
		own[c.logical] = true
	}
	return own
}

func (c *Client) PhysicalAddressOf(addr cec.LogicalAddress) cec.PhysicalAddress {
	c.mu.Lock()
	if p, ok := c.physCache[addr]; ok {
		c.mu.Unlock()
		return p
	}
	c.mu.Unlock()

	payload, err := c.request(addr, byte(0x83), byte(cec.OpcodeReportPhysAddr)) // GIVE_PHYSICAL_ADDRESS
	if err != nil || len(payload) < 2 {
		return 0
	}
	p := cec.PhysicalAddress(payload[0])<<8 | cec.PhysicalAddress(payload[1])
	c.mu.Lock()
	c.physCache[addr] = p
	c.mu.Unlock()
	return p
}

func (c *Client) OSDName(addr cec.LogicalAddress) string {
	c.mu.Lock()
	if n, ok := c.nameCache[addr]; ok {
		c.mu.Unlock()
		return n
	}
	c.mu.Unlock()

	payload, err := c.request(addr, byte(cec.OpcodeGiveOSDName), byte(cec.OpcodeSetOSDName))
	if err != nil {
		return ""
	}
	name := string(payload)
	c.mu.Lock()
	c.nameCache[addr] = name
	c.mu.Unlock()
	return name
}

func (c *Client) VendorID(addr cec.LogicalAddress) uint32 {
	c.mu.Lock()
	if v, ok := c.vendorCache[addr]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	payload, err := c.request(addr, byte(0x8C), byte(cec.OpcodeDeviceVendorID)) // GIVE_DEVICE_VENDOR_ID
	if err != nil || len(payload) < 3 {
		return 0
	}
	v := uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
	c.mu.Lock()
	c.vendorCache[addr] = v
	c.mu.Unlock()
	return v
}

func (c *Client) PowerStatus(addr cec.LogicalAddress) cec.PowerStatus {
	payload, err := c.request(addr, byte(cec.OpcodeGivePowerStatus), byte(cec.OpcodeReportPowerStatus))
	if err != nil || len(payload) < 1 {
		return cec.PowerUnknown
	}
	return cec.PowerStatus(payload[0])
}

// PowerOn wakes a device. IMAGE_VIEW_ON doubles as the wake request and
// is understood by every display.
func (c *Client) PowerOn(addr cec.LogicalAddress) error {
	return c.transmit(addr, byte(cec.OpcodeImageViewOn), nil)
}

func (c *Client) Standby(addr cec.LogicalAddress) error {
	return c.transmit(addr, byte(cec.OpcodeStandby), nil)
}

func (c *Client) SetActiveSource() error {
	payload := []byte{byte(c.physical >> 8), byte(c.physical)}
	return c.transmit(cec.AddressBroadcast, byte(cec.OpcodeActiveSource), payload)
}

func (c *Client) SetInactiveView() error {
	payload := []byte{byte(c.physical >> 8), byte(c.physical)}
	return c.transmit(cec.AddressTV, byte(cec.OpcodeInactiveSource), payload)
}

func (c *Client) TextViewOn(addr cec.LogicalAddress) error {
	return c.transmit(addr, byte(cec.OpcodeTextViewOn), nil)
}

// Poll sends a header-only frame; an acknowledgement means the address
// is in use.
func (c *Client) Poll(addr cec.LogicalAddress) bool {
	return c.transmitRaw(addr, nil) == nil
}

func (c *Client) SendKeyPress(addr cec.LogicalAddress, code cec.UserControlCode) error {
	return c.transmit(addr, byte(cec.OpcodeUserControlPressed), []byte{byte(code)})
}

func (c *Client) SendKeyRelease(addr cec.LogicalAddress) error {
	return c.transmit(addr, byte(cec.OpcodeUserControlRelease), nil)
}

// transmit sends one CEC message (opcode plus parameters) to addr and
// waits for the adapter's transmit acknowledgement.
func (c *Client) transmit(addr cec.LogicalAddress, op byte, params []byte) error {
	msg := append([]byte{op}, params...)
	return c.transmitRaw(addr, msg)
}

// transmitRaw sends the message bytes after the bus header. A nil
// message is a bare poll. The adapter answers every transmit with a
// success or failure code.
func (c *Client) transmitRaw(addr cec.LogicalAddress, msg []byte) error {
	src := c.logical
	if !src.Valid() {
		src = cec.AddressPlayback1
	}
	header := byte(src)<<4 | byte(addr)&0x0F

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Drain a stale result from an earlier timed-out transmit.
	select {
	case <-c.txResult:
	default:
	}

	frames := make([]frame, 0, len(msg)+1)
	if len(msg) == 0 {
		frames = append(frames, frame{code: codeTransmitEOM, payload: []byte{header}})
	} else {
		frames = append(frames, frame{code: codeTransmit, payload: []byte{header}})
		for i, b := range msg {
			code := codeTransmit
			if i == len(msg)-1 {
				code = codeTransmitEOM
			}
			frames = append(frames, frame{code: code, payload: []byte{b}})
		}
	}
	for _, f := range frames {
		if _, err := c.port.Write(encodeFrame(f)); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}

	select {
	case ok := <-c.txResult:
		if !ok {
			return fmt.Errorf("transmit to %d not acknowledged", int(addr))
		}
		return nil
	case <-time.After(txTimeout):
		return fmt.Errorf("transmit to %d timed out", int(addr))
	case <-c.done:
		return errClosed
	}
}

// sendControl sends an adapter control message (no bus traffic) and
// waits for COMMAND_ACCEPTED.
func (c *Client) sendControl(code msgCode, params ...byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.txResult:
	default:
	}
	if _, err := c.port.Write(encodeFrame(frame{code: code, payload: params})); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	select {
	case ok := <-c.txResult:
		if !ok {
			return fmt.Errorf("control message %d rejected", code)
		}
		return nil
	case <-time.After(txTimeout):
		return fmt.Errorf("control message %d timed out", code)
	case <-c.done:
		return errClosed
	}
}

// request transmits a query opcode and waits for the matching response
// opcode from the same device.
func (c *Client) request(addr cec.LogicalAddress, reqOp, respOp byte) ([]byte, error) {
	ch := make(chan []byte, 1)
	key := pendingKey{op: respOp, src: byte(addr)}

	c.mu.Lock()
	c.pending[key] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	if err := c.transmit(addr, reqOp, nil); err != nil {
		return nil, err
	}
	select {
	case payload := <-ch:
		return payload, nil
	case <-time.After(replyTimeout):
		return nil, fmt.Errorf("no reply from %d to opcode 0x%02X", int(addr), reqOp)
	case <-c.done:
		return nil, errClosed
	}
}

// readLoop decodes adapter frames until the port closes.
func (c *Client) readLoop() {
	defer c.wg.Done()

	var dec decoder
	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logDebug("serial read failed", "error", err)
				c.alertOnce.Do(func() {
					if c.cb.Alert != nil {
						c.cb.Alert(cec.AlertConnectionLost)
					}
				})
			}
			return
		}
		for _, b := range buf[:n] {
			if f, ok := dec.feed(b); ok {
				c.handleFrame(f)
			}
		}
	}
}

func (c *Client) handleFrame(f frame) {
	switch f.code {
	case codeCommandAccepted:
		// Per-message accept; the final verdict arrives separately.

	case codeTransmitSucceeded:
		c.deliverTxResult(true)

	case codeCommandRejected,
		codeTransmitFailedLine,
		codeTransmitFailedAck,
		codeTransmitFailedTimeoutData,
		codeTransmitFailedTimeoutLine:
		c.deliverTxResult(false)

	case codeFrameStart:
		c.rx = append(c.rx[:0], f.payload...)
		if f.eom {
			c.handleBusMessage(c.rx)
		}

	case codeFrameData:
		c.rx = append(c.rx, f.payload...)
		if f.eom {
			c.handleBusMessage(c.rx)
		}

	case codeReceiveFailed:
		c.rx = c.rx[:0]

	default:
		c.logDebug("unhandled adapter message", "code", int(f.code))
	}
}

func (c *Client) deliverTxResult(ok bool) {
	select {
	case c.txResult <- ok:
	default:
	}
}

// handleBusMessage processes one complete CEC message from the bus.
func (c *Client) handleBusMessage(msg []byte) {
	if len(msg) == 0 {
		return
	}
	src := cec.LogicalAddress(msg[0] >> 4)
	dst := cec.LogicalAddress(msg[0] & 0x0F)
	if len(msg) == 1 {
		// Bare poll, nothing to do.
		return
	}
	op := msg[1]
	params := append([]byte(nil), msg[2:]...)

	// Fulfil a pending query first.
	c.mu.Lock()
	if ch, ok := c.pending[pendingKey{op: op, src: byte(src)}]; ok {
		delete(c.pending, pendingKey{op: op, src: byte(src)})
		c.mu.Unlock()
		ch <- params
		return
	}
	c.mu.Unlock()

	switch cec.Opcode(op) {
	case cec.OpcodeUserControlPressed:
		if len(params) < 1 {
			return
		}
		code := cec.UserControlCode(params[0])
		c.keyMu.Lock()
		c.lastKey = code
		c.lastKeyAt = time.Now()
		c.haveKey = true
		c.keyMu.Unlock()
		if c.cb.KeyPress != nil {
			c.cb.KeyPress(code, 0)
		}

	case cec.OpcodeUserControlRelease:
		c.keyMu.Lock()
		have := c.haveKey
		code := c.lastKey
		held := time.Since(c.lastKeyAt)
		c.haveKey = false
		c.keyMu.Unlock()
		if have && c.cb.KeyPress != nil {
			c.cb.KeyPress(code, held)
		}

	case cec.OpcodeActiveSource:
		if len(params) >= 2 && c.cb.SourceActivated != nil {
			phys := cec.PhysicalAddress(params[0])<<8 | cec.PhysicalAddress(params[1])
			c.cb.SourceActivated(src, phys == c.physical)
		}

	case cec.OpcodeGivePowerStatus:
		// The bus asks us; answer directly so the TV sees us as alive.
		go func() {
			_ = c.transmit(src, byte(cec.OpcodeReportPowerStatus), []byte{byte(cec.PowerOn)})
		}()

	default:
		if dst == c.logical || dst == cec.AddressBroadcast {
			if c.cb.Command != nil {
				c.cb.Command(cec.Opcode(op), src)
			}
		}
	}
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
