// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// RandomLength is the length of the Random bytes portion, excluding the
// GMT Unix Time.
const RandomLength = 28

// Random represents a handshake message's random value, RFC 5246 Section
// 7.4.1.2. TLS 1.3 keeps the wire field shape (Section 4.1.2) but does not
// treat the first four bytes as a real timestamp.
type Random struct {
	GMTUnixTime time.Time
	RandomBytes [RandomLength]byte
}

// MarshalFixed encodes the Random to its wire form.
func (r *Random) MarshalFixed() [32]byte {
	var out [32]byte
	binary.BigEndian.PutUint32(out[0:4], uint32(r.GMTUnixTime.Unix())) //nolint:gosec
	copy(out[4:], r.RandomBytes[:])
	return out
}

// UnmarshalFixed populates the Random from its wire form.
func (r *Random) UnmarshalFixed(data [32]byte) {
	r.GMTUnixTime = time.Unix(int64(binary.BigEndian.Uint32(data[0:4])), 0)
	copy(r.RandomBytes[:], data[4:])
}

// Populate fills GMTUnixTime/RandomBytes from a CSPRNG, RFC 5246 Section
// 7.4.1.2 (TLS 1.2 clients are encouraged, not required, to use wall-clock
// time in the first four bytes; TLS 1.3 clients per RFC 8446 Section 4.1.2
// MUST use 32 fully random bytes). now and rng are injected so callers (and
// tests) control both.
func (r *Random) Populate(now time.Time, rng randReader) error {
	r.GMTUnixTime = now
	_, err := rng.Read(r.RandomBytes[:])
	return err
}

type randReader interface {
	Read(p []byte) (n int, err error)
}

// helloRetryRequestRandom is the fixed SHA-256 of "HelloRetryRequest" that
// a ServerHello's random field is set to when that ServerHello is in fact
// a HelloRetryRequest, RFC 8446 Section 4.1.3.
var helloRetryRequestRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11, 0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E, 0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// downgradeSentinelTLS12 is placed in the trailing 8 bytes of a TLS 1.2
// ServerHello.random by a server that detects a downgrade attack, RFC 8446
// Section 4.1.3.
var downgradeSentinelTLS12 = [8]byte{0x44, 0x4F, 0x57, 0x4E, 0x47, 0x52, 0x44, 0x01}

// downgradeSentinelTLS11OrBelow is the equivalent sentinel for TLS 1.1 and
// below.
var downgradeSentinelTLS11OrBelow = [8]byte{0x44, 0x4F, 0x57, 0x4E, 0x47, 0x52, 0x44, 0x00}

// IsHelloRetryRequest reports whether this Random is the RFC 8446
// HelloRetryRequest marker.
func (r *Random) IsHelloRetryRequest() bool {
	fixed := r.MarshalFixed()
	return bytes.Equal(fixed[:], helloRetryRequestRandom[:])
}

// SetHelloRetryRequest overwrites this Random with the HelloRetryRequest
// marker.
func (r *Random) SetHelloRetryRequest() {
	var fixed [32]byte
	copy(fixed[:], helloRetryRequestRandom[:])
	r.UnmarshalFixed(fixed)
}

// SetDowngradeSentinelTLS12 overwrites the trailing 8 bytes of RandomBytes
// with the RFC 8446 Section 4.1.3 downgrade-protection sentinel a server
// negotiating TLS 1.2 (while capable of TLS 1.3) places there.
func (r *Random) SetDowngradeSentinelTLS12() {
	copy(r.RandomBytes[RandomLength-8:], downgradeSentinelTLS12[:])
}

// HasDowngradeSentinel reports whether the trailing 8 bytes of RandomBytes
// equal one of the two RFC 8446 Section 4.1.3 downgrade-protection
// sentinels.
func (r *Random) HasDowngradeSentinel() (tls12 bool, tls11OrBelow bool) {
	tail := r.RandomBytes[RandomLength-8:]
	return bytes.Equal(tail, downgradeSentinelTLS12[:]), bytes.Equal(tail, downgradeSentinelTLS11OrBelow[:])
}

// defaultRandReader is crypto/rand wrapped to satisfy randReader without
// importing crypto/rand at every call site.
var defaultRandReader randReader = rand.Reader
