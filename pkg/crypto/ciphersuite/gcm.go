// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package ciphersuite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/gotls/tlsengine/pkg/protocol"
)

const (
	gcmTagLength           = 16
	gcmNonceLength         = 12
	gcmExplicitNonceLength = 8
)

// gcmTLS12 is AES-GCM with TLS 1.2's explicit-nonce construction,
// RFC 5288: the low 8 bytes of the 12-byte nonce travel on the wire
// alongside the ciphertext. Grounded on the teacher's GCM type, kept
// close to its Encrypt/Decrypt shape.
type gcmTLS12 struct {
	aead    cipher.AEAD
	fixedIV []byte // 4 bytes, RFC 5288 Section 3
	version protocol.Version
}

// NewGCM12 constructs a TLS 1.2 AES-GCM AEAD. fixedIV must be 4 bytes
// (RFC 5288 Section 3's salt).
func NewGCM12(key, fixedIV []byte, version protocol.Version) (AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &gcmTLS12{aead: aead, fixedIV: fixedIV, version: version}, nil
}

func (g *gcmTLS12) Overhead() int { return gcmExplicitNonceLength + gcmTagLength }

func (g *gcmTLS12) Seal(seq uint64, header protocol.ContentType, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, gcmNonceLength)
	copy(nonce, g.fixedIV)
	if _, err := rand.Read(nonce[4:]); err != nil {
		return nil, err
	}
	ad := additionalDataTLS12(seq, header, g.version, len(plaintext))
	sealed := g.aead.Seal(nil, nonce, plaintext, ad)

	out := make([]byte, gcmExplicitNonceLength+len(sealed))
	copy(out, nonce[4:])
	copy(out[gcmExplicitNonceLength:], sealed)
	return out, nil
}

func (g *gcmTLS12) Open(seq uint64, header protocol.ContentType, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < gcmExplicitNonceLength+gcmTagLength {
		return nil, errNotEnoughRoomForNonce
	}
	nonce := make([]byte, 0, gcmNonceLength)
	nonce = append(append(nonce, g.fixedIV...), ciphertext[:gcmExplicitNonceLength]...)
	sealed := ciphertext[gcmExplicitNonceLength:]

	ad := additionalDataTLS12(seq, header, g.version, len(sealed)-gcmTagLength)
	plaintext, err := g.aead.Open(sealed[:0], nonce, sealed, ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecryptPacket, err) //nolint:errorlint
	}
	return plaintext, nil
}

// gcmTLS13 is AES-GCM with TLS 1.3's fully implicit nonce construction,
// RFC 8446 Section 5.3: the nonce is the fixed per-direction IV XORed
// with the sequence number, nothing travels on the wire beyond the tag.
type gcmTLS13 struct {
	aead    cipher.AEAD
	fixedIV []byte // 12 bytes, RFC 8446 Section 5.3
}

// NewGCM13 constructs a TLS 1.3 AES-GCM AEAD. fixedIV must be 12 bytes
// (the full nonce length, derived via HKDF-Expand-Label "iv").
func NewGCM13(key, fixedIV []byte) (AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &gcmTLS13{aead: aead, fixedIV: fixedIV}, nil
}

func (g *gcmTLS13) Overhead() int { return gcmTagLength }

func (g *gcmTLS13) Seal(seq uint64, _ protocol.ContentType, plaintext []byte) ([]byte, error) {
	nonce := buildNonceImplicit(g.fixedIV, seq)
	ad := additionalDataTLS13(len(plaintext) + g.Overhead())
	return g.aead.Seal(nil, nonce, plaintext, ad), nil
}

func (g *gcmTLS13) Open(seq uint64, _ protocol.ContentType, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < gcmTagLength {
		return nil, errNotEnoughRoomForNonce
	}
	nonce := buildNonceImplicit(g.fixedIV, seq)
	ad := additionalDataTLS13(len(ciphertext))
	plaintext, err := g.aead.Open(ciphertext[:0], nonce, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecryptPacket, err) //nolint:errorlint
	}
	return plaintext, nil
}
