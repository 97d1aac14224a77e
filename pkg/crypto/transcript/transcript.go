// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package transcript implements the running handshake-message hash used by
// both the TLS 1.2 Finished/CertificateVerify computation and the TLS 1.3
// key schedule (RFC 8446 Section 4.4.1), grounded on the teacher's
// handshakeCache need to replay and hash the message sequence and
// generalized here to a true running digest with Clone/Sum/Reset, since
// spec.md Section 4.2 and Section 9 require snapshotting the transcript
// hash at multiple points (CertificateVerify, Finished, NewSessionTicket)
// without disturbing the live accumulator.
package transcript

import (
	"crypto"
	"encoding"
	"hash"

	_ "crypto/sha256" // register crypto.SHA256
	_ "crypto/sha512" // register crypto.SHA384
)

// Hash is a running handshake transcript digest. It is not safe for
// concurrent use; callers serialize handshake message processing already.
type Hash struct {
	algo crypto.Hash
	h    hash.Hash
}

// New returns an empty Hash using the given crypto.Hash (the negotiated
// ciphersuite's hash: SHA-256 or SHA-384 among the suites this engine
// ships, RFC 8446 Section 7.1).
func New(algo crypto.Hash) *Hash {
	return &Hash{algo: algo, h: algo.New()}
}

// Write feeds raw handshake message bytes (header included) into the
// transcript, RFC 8446 Section 4.4.1 / RFC 5246 Section 7.4.9.
func (t *Hash) Write(p []byte) {
	t.h.Write(p) //nolint:errcheck // hash.Hash.Write never errors
}

// Sum returns the current digest without mutating the accumulator.
func (t *Hash) Sum() []byte {
	return t.h.Sum(nil)
}

// Size returns the digest size in bytes.
func (t *Hash) Size() int {
	return t.h.Size()
}

// Clone returns an independent copy of the transcript at its current
// state, so a snapshot (e.g. for CertificateVerify) can keep accumulating
// separately from the live transcript used for Finished. It round-trips
// the underlying hash.Hash's marshaled state, the same trick Go's own
// crypto/tls uses to fork a transcript hash, since hash.Hash itself has
// no Clone method.
func (t *Hash) Clone() (*Hash, bool) {
	marshaler, ok := t.h.(encoding.BinaryMarshaler)
	if !ok {
		return nil, false
	}
	state, err := marshaler.MarshalBinary()
	if err != nil {
		return nil, false
	}
	clone := t.algo.New()
	unmarshaler, ok := clone.(encoding.BinaryUnmarshaler)
	if !ok {
		return nil, false
	}
	if err := unmarshaler.UnmarshalBinary(state); err != nil {
		return nil, false
	}
	return &Hash{algo: t.algo, h: clone}, true
}

// Reset clears the transcript back to empty. Used when a HelloRetryRequest
// replaces the original ClientHello with a synthetic message_hash entry,
// RFC 8446 Section 4.4.1.
func (t *Hash) Reset() {
	t.h.Reset()
}

// ReplaceWithMessageHash resets the transcript and seeds it with the
// RFC 8446 Section 4.4.1 "message_hash" synthetic handshake message,
// used after a HelloRetryRequest to fold the original ClientHello's hash
// back in without keeping the full message around.
func (t *Hash) ReplaceWithMessageHash(clientHello1Hash []byte) {
	t.Reset()
	header := []byte{254, 0, 0, byte(len(clientHello1Hash))} // handshake.MessageHash, 3-byte length
	t.h.Write(header)          //nolint:errcheck
	t.h.Write(clientHello1Hash) //nolint:errcheck
}
