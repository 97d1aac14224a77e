// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package ciphersuite

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/gotls/tlsengine/pkg/protocol"
)

// chacha20Poly1305 is ChaCha20-Poly1305 record protection. Unlike GCM,
// RFC 7905 gives TLS 1.2 the same fully-implicit nonce construction TLS
// 1.3 uses natively (RFC 8446 Section 5.3): no explicit nonce ever
// travels on the wire, so one implementation covers both versions and
// only the additional-data shape differs.
type chacha20Poly1305 struct {
	aead    cipher.AEAD
	fixedIV []byte // 12 bytes
	tls13   bool
	version protocol.Version
}

// NewChaCha20Poly1305 constructs a ChaCha20-Poly1305 AEAD for either
// protocol version; tls13 selects the RFC 8446 Section 5.2 additional
// data shape over RFC 5246/7905's.
func NewChaCha20Poly1305(key, fixedIV []byte, tls13 bool, version protocol.Version) (AEAD, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &chacha20Poly1305{aead: aead, fixedIV: fixedIV, tls13: tls13, version: version}, nil
}

func (c *chacha20Poly1305) Overhead() int { return c.aead.Overhead() }

func (c *chacha20Poly1305) Seal(seq uint64, header protocol.ContentType, plaintext []byte) ([]byte, error) {
	nonce := buildNonceImplicit(c.fixedIV, seq)
	ad := c.additionalData(seq, header, len(plaintext))
	return c.aead.Seal(nil, nonce, plaintext, ad), nil
}

func (c *chacha20Poly1305) Open(seq uint64, header protocol.ContentType, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.Overhead() {
		return nil, errNotEnoughRoomForNonce
	}
	nonce := buildNonceImplicit(c.fixedIV, seq)
	ad := c.additionalData(seq, header, len(ciphertext)-c.aead.Overhead())
	plaintext, err := c.aead.Open(ciphertext[:0], nonce, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecryptPacket, err) //nolint:errorlint
	}
	return plaintext, nil
}

func (c *chacha20Poly1305) additionalData(seq uint64, header protocol.ContentType, plaintextLen int) []byte {
	if c.tls13 {
		return additionalDataTLS13(plaintextLen + c.aead.Overhead())
	}
	return additionalDataTLS12(seq, header, c.version, plaintextLen)
}
