package pulse8

import (
	"bytes"
	"testing"
)

func TestEncodeFrameEscapesHighBytes(t *testing.T) {
	f := frame{
		code:    codeTransmit,
		payload: []byte{0xFD, 0xFE, 0xFF, 0x10},
	}
	got := encodeFrame(f)
	want := []byte{
		msgStart,
		byte(codeTransmit),
		msgEsc, 0xFD - escOffset,
		msgEsc, 0xFE - escOffset,
		msgEsc, 0xFF - escOffset,
		0x10,
		msgEnd,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("encodeFrame() = % X, want % X", got, want)
	}
}

func TestEncodeFrameFlags(t *testing.T) {
	f := frame{code: codeFrameStart, eom: true, ack: true, payload: []byte{0x05}}
	got := encodeFrame(f)

	code := got[1]
	if code&flagFrameEOM == 0 || code&flagFrameACK == 0 {
		t.Errorf("code byte = 0x%02X, want EOM and ACK flags set", code)
	}
	if code&codeMask != byte(codeFrameStart) {
		t.Errorf("code bits = 0x%02X, want 0x%02X", code&codeMask, byte(codeFrameStart))
	}
}

func TestDecoderRoundTrip(t *testing.T) {
	in := frame{
		code:    codeFrameData,
		eom:     true,
		payload: []byte{0x44, 0xFD, 0x01, 0xFF},
	}

	var dec decoder
	var out frame
	decoded := false
	for _, b := range encodeFrame(in) {
		if f, ok := dec.feed(b); ok {
			out = f
			decoded = true
		}
	}

	if !decoded {
		t.Fatal("decoder produced no frame")
	}
	if out.code != in.code || out.eom != in.eom || out.ack != in.ack {
		t.Errorf("decoded header = %+v, want %+v", out, in)
	}
	if !bytes.Equal(out.payload, in.payload) {
		t.Errorf("decoded payload = % X, want % X", out.payload, in.payload)
	}
}

func TestDecoderDiscardsBytesOutsideFrame(t *testing.T) {
	var dec decoder
	for _, b := range []byte{0x01, 0x02, msgEnd, 0x03} {
		if _, ok := dec.feed(b); ok {
			t.Fatal("decoder produced a frame from stray bytes")
		}
	}

	// A proper frame after garbage still decodes.
	var got frame
	decoded := false
	for _, b := range encodeFrame(frame{code: codePing}) {
		if f, ok := dec.feed(b); ok {
			got = f
			decoded = true
		}
	}
	if !decoded || got.code != codePing {
		t.Errorf("decoded = %v %+v, want ping frame", decoded, got)
	}
}

func TestDecoderResyncsOnNewStart(t *testing.T) {
	var dec decoder

	// Truncated frame followed immediately by a fresh start.
	partial := []byte{msgStart, byte(codeTransmit), 0x10}
	full := encodeFrame(frame{code: codePing})

	var got frame
	decoded := false
	for _, b := range append(partial, full...) {
		if f, ok := dec.feed(b); ok {
			got = f
			decoded = true
		}
	}
	if !decoded || got.code != codePing {
		t.Errorf("decoded = %v %+v, want ping after resync", decoded, got)
	}
	if len(got.payload) != 0 {
		t.Errorf("payload = % X, want empty (stale bytes leaked)", got.payload)
	}
}
