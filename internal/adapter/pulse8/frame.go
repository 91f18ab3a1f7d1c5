// Package pulse8 drives a Pulse-Eight USB-CEC adapter over its serial
// protocol and exposes it as a cec.Adapter.
package pulse8

// Wire framing: messages are delimited by msgStart/msgEnd; payload bytes
// at or above msgEsc are sent as msgEsc followed by the byte minus
// escOffset.
const (
	msgStart  byte = 0xFF
	msgEnd    byte = 0xFE
	msgEsc    byte = 0xFD
	escOffset byte = 3
)

// msgCode identifies an adapter protocol message. The upper two bits of
// the code byte carry the EOM and ACK flags for bus frames.
type msgCode byte

const (
	codeNothing msgCode = iota
	codePing
	codeTimeoutError
	codeHighError
	codeLowError
	codeFrameStart
	codeFrameData
	codeReceiveFailed
	codeCommandAccepted
	codeCommandRejected
	codeSetAckMask
	codeTransmit
	codeTransmitEOM
	codeTransmitIdletime
	codeTransmitAckPolarity
	codeTransmitLineTimeout
	codeTransmitSucceeded
	codeTransmitFailedLine
	codeTransmitFailedAck
	codeTransmitFailedTimeoutData
	codeTransmitFailedTimeoutLine
	codeFirmwareVersion
	codeStartBootloader
	codeGetBuildDate
	codeSetControlled
)

const (
	codeMask     byte = 0x3F
	flagFrameEOM byte = 0x80
	flagFrameACK byte = 0x40
)

// frame is one decoded adapter message.
type frame struct {
	code    msgCode
	eom     bool
	ack     bool
	payload []byte
}

// encodeFrame renders a frame to wire bytes, escaping where required.
func encodeFrame(f frame) []byte {
	out := make([]byte, 0, len(f.payload)+4)
	out = append(out, msgStart)

	code := byte(f.code) & codeMask
	if f.eom {
		code |= flagFrameEOM
	}
	if f.ack {
		code |= flagFrameACK
	}
	out = appendEscaped(out, code)
	for _, b := range f.payload {
		out = appendEscaped(out, b)
	}
	return append(out, msgEnd)
}

func appendEscaped(dst []byte, b byte) []byte {
	if b >= msgEsc {
		return append(dst, msgEsc, b-escOffset)
	}
	return append(dst, b)
}

// decoder is a streaming frame parser fed one byte at a time by the
// reader goroutine. Bytes outside a frame are discarded.
type decoder struct {
	buf     []byte
	inFrame bool
	escaped bool
}

// feed consumes one wire byte and returns a completed frame when the
// terminator arrives.
func (d *decoder) feed(b byte) (frame, bool) {
	switch b {
	case msgStart:
		d.buf = d.buf[:0]
		d.inFrame = true
		d.escaped = false
		return frame{}, false

	case msgEnd:
		if !d.inFrame || len(d.buf) == 0 {
			d.inFrame = false
			return frame{}, false
		}
		d.inFrame = false
		code := d.buf[0]
		f := frame{
			code:    msgCode(code & codeMask),
			eom:     code&flagFrameEOM != 0,
			ack:     code&flagFrameACK != 0,
			payload: append([]byte(nil), d.buf[1:]...),
		}
		return f, true

	case msgEsc:
		if d.inFrame {
			d.escaped = true
		}
		return frame{}, false

	default:
		if !d.inFrame {
			return frame{}, false
		}
		if d.escaped {
			b += escOffset
			d.escaped = false
		}
		d.buf = append(d.buf, b)
		return frame{}, false
	}
}
