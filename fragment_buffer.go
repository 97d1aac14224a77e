// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"github.com/gotls/tlsengine/pkg/protocol/handshake"
	"github.com/gotls/tlsengine/pkg/protocol/recordlayer"
)

// fragmentBuffer reassembles whole records out of a reliable, ordered
// byte stream, and whole handshake messages out of a (possibly empty)
// run of consecutive Handshake-content records. A DTLS-style
// out-of-order/duplicate fragment reassembler is not needed here: the
// transport is assumed reliable and ordered (spec.md §9 "Not a DTLS
// engine"), so both reassembly problems collapse to "keep buffering
// until enough bytes have arrived."
type fragmentBuffer struct {
	buf []byte

	// handshakeCarry holds the partially accumulated body of a
	// handshake message that is still shorter than its declared
	// length, spanning record boundaries (RFC 8446 Section 5.1 permits
	// a handshake message to be fragmented across multiple records).
	handshakeCarry []byte
	handshakeWant  int
}

func newFragmentBuffer() *fragmentBuffer {
	return &fragmentBuffer{}
}

// push appends freshly read transport bytes to the internal buffer.
func (f *fragmentBuffer) push(data []byte) {
	f.buf = append(f.buf, data...)
}

// popRecord removes and returns exactly one complete record's raw bytes
// (header included) from the front of the buffer, or ok=false if the
// buffer does not yet hold a complete record.
func (f *fragmentBuffer) popRecord() (raw []byte, ok bool) {
	if len(f.buf) < recordlayer.FixedHeaderSize {
		return nil, false
	}
	var h recordlayer.Header
	if err := h.Unmarshal(f.buf); err != nil {
		return nil, false
	}
	total := h.Size() + int(h.ContentLen)
	if len(f.buf) < total {
		return nil, false
	}
	raw = append([]byte{}, f.buf[:total]...)
	f.buf = f.buf[total:]
	return raw, true
}

// pushHandshakeBody feeds the plaintext body of one Handshake-content
// record into the in-progress handshake message reassembly, returning
// the complete message bytes (header included) once enough has arrived.
func (f *fragmentBuffer) pushHandshakeBody(body []byte) (complete []byte, ok bool) {
	f.handshakeCarry = append(f.handshakeCarry, body...)
	for {
		if f.handshakeWant == 0 {
			length, haveHeader := handshake.FindMessageLength(f.handshakeCarry)
			if !haveHeader {
				return nil, false
			}
			f.handshakeWant = length
		}
		if len(f.handshakeCarry) < f.handshakeWant {
			return nil, false
		}
		complete = append([]byte{}, f.handshakeCarry[:f.handshakeWant]...)
		f.handshakeCarry = f.handshakeCarry[f.handshakeWant:]
		f.handshakeWant = 0
		return complete, true
	}
}
