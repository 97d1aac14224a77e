// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package ciphersuite implements the AEAD record protection this engine
// ships by default (spec.md Section 6's AEAD collaborator) and the
// ciphersuite registry that pairs an AEAD with its key schedule hash.
// Adapted from the teacher's DTLS-only pkg/crypto/ciphersuite/gcm.go,
// split into a TLS 1.2 explicit-nonce variant (kept close to the
// original) and a TLS 1.3 fully-implicit-nonce variant (RFC 8446 Section
// 5.3), with a ChaCha20-Poly1305 sibling for both versions (RFC 7905 /
// RFC 8446).
package ciphersuite

import (
	"encoding/binary"
	"errors"

	"github.com/gotls/tlsengine/pkg/protocol"
)

// AEAD is the per-direction record protection primitive, spec.md
// Section 6's AEAD collaborator. seq is the 64-bit record sequence number
// of the current key (reset to zero whenever a new key is installed). It
// enters the TLS 1.2 additional data, and it builds the nonce for every
// variant except TLS 1.2 AES-GCM, which puts a random explicit nonce on
// the wire instead.
type AEAD interface {
	// Seal encrypts plaintext and returns the on-wire ciphertext,
	// including any explicit nonce prefix the variant requires.
	Seal(seq uint64, header protocol.ContentType, plaintext []byte) ([]byte, error)
	// Open decrypts an on-wire ciphertext back to plaintext.
	Open(seq uint64, header protocol.ContentType, ciphertext []byte) ([]byte, error)
	// Overhead is the number of bytes Seal adds beyond the plaintext
	// length (explicit nonce, if any, plus the authentication tag).
	Overhead() int
}

var (
	errNotEnoughRoomForNonce = errors.New("ciphersuite: ciphertext too short for explicit nonce")
	errDecryptPacket         = errors.New("ciphersuite: decrypt failed")
)

// buildNonceImplicit XORs the fixed IV with the big-endian sequence
// number, RFC 8446 Section 5.3 (also used by TLS 1.2 ChaCha20-Poly1305,
// RFC 7905 Section 2).
func buildNonceImplicit(fixedIV []byte, seq uint64) []byte {
	nonce := make([]byte, len(fixedIV))
	copy(nonce, fixedIV)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	offset := len(nonce) - 8
	for i := 0; i < 8; i++ {
		nonce[offset+i] ^= seqBytes[i]
	}
	return nonce
}

// additionalDataTLS12 builds the AEAD additional data for TLS 1.2,
// RFC 5246 Section 6.2.3.3: seq_num(8) || type(1) || version(2) || length(2).
func additionalDataTLS12(seq uint64, contentType protocol.ContentType, version protocol.Version, length int) []byte {
	ad := make([]byte, 13)
	binary.BigEndian.PutUint64(ad, seq)
	ad[8] = byte(contentType)
	ad[9] = version.Major
	ad[10] = version.Minor
	binary.BigEndian.PutUint16(ad[11:], uint16(length))
	return ad
}

// additionalDataTLS13 builds the AEAD additional data for TLS 1.3,
// RFC 8446 Section 5.2: opaque_type(1) || legacy_record_version(2) ||
// length(2), the record's own plaintext header bytes.
func additionalDataTLS13(length int) []byte {
	ad := make([]byte, 5)
	ad[0] = byte(protocol.ContentTypeApplicationData)
	ad[1] = 0x03
	ad[2] = 0x03
	binary.BigEndian.PutUint16(ad[3:], uint16(length))
	return ad
}
