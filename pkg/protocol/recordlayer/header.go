// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package recordlayer implements the TLS record framing described in
// RFC 5246 Section 6.2 (TLS 1.2) and RFC 8446 Section 5.1 (TLS 1.3): a
// fixed 5-byte outer header followed by a length-bounded body, with
// TLS 1.3 additionally wrapping an inner content type and zero padding
// inside the AEAD-protected body (Section 5.2).
package recordlayer

import (
	"encoding/binary"

	"github.com/gotls/tlsengine/pkg/protocol"
)

// FixedHeaderSize is the number of bytes always present in a record's
// outer header: type(1) + legacy_version(2) + length(2).
const FixedHeaderSize = 5

// MaxSequenceNumber is the largest value sequence_number may take before
// an attempted increment becomes a fatal RecordOverflow. TLS uses a
// 64-bit counter per direction per epoch.
const MaxSequenceNumber = 0xFFFFFFFFFFFFFFFF

// MaxPlaintextLen is the largest number of plaintext bytes a single record
// may carry (2^14), RFC 8446 Section 5.1 / RFC 5246 Section 6.2.1.
const MaxPlaintextLen = 1 << 14

// MaxCiphertextLen bounds a protected record's body: plaintext length plus
// the worst-case AEAD/CBC expansion allowed by RFC 8446 Section 5.2.
const MaxCiphertextLen = MaxPlaintextLen + 256

// Header is the outer record header transmitted (and used as AEAD
// associated data) on every record.
type Header struct {
	ContentType protocol.ContentType
	Version     protocol.Version
	ContentLen  uint16
}

// Size returns the number of bytes a marshaled Header occupies.
func (h *Header) Size() int { return FixedHeaderSize }

// Marshal encodes the Header
func (h *Header) Marshal() ([]byte, error) {
	out := make([]byte, FixedHeaderSize)
	out[0] = byte(h.ContentType)
	out[1] = h.Version.Major
	out[2] = h.Version.Minor
	binary.BigEndian.PutUint16(out[3:], h.ContentLen)
	return out, nil
}

// Unmarshal populates the Header from encoded data
func (h *Header) Unmarshal(data []byte) error {
	if len(data) < FixedHeaderSize {
		return ErrInvalidPacketLength
	}
	h.ContentType = protocol.ContentType(data[0])
	h.Version = protocol.Version{Major: data[1], Minor: data[2]}
	h.ContentLen = binary.BigEndian.Uint16(data[3:5])
	if h.ContentLen > MaxCiphertextLen {
		return ErrRecordOverflow
	}
	return nil
}
