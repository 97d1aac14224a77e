// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package ciphersuite

import (
	"crypto"

	"github.com/gotls/tlsengine/pkg/protocol"

	_ "crypto/sha256" // register crypto.SHA256
	_ "crypto/sha512" // register crypto.SHA384
)

// ID is the two-byte ciphersuite identifier, RFC 8446 Section B.4 / the
// IANA "TLS Cipher Suites" registry.
type ID uint16

// ID enums this engine negotiates.
const (
	TLSAES128GCMSHA256        ID = 0x1301
	TLSAES256GCMSHA384        ID = 0x1302
	TLSChaCha20Poly1305SHA256 ID = 0x1303

	TLSECDHERSAWithAES128GCMSHA256          ID = 0xc02f
	TLSECDHERSAWithAES256GCMSHA384          ID = 0xc030
	TLSECDHEECDSAWithAES128GCMSHA256        ID = 0xc02b
	TLSECDHEECDSAWithAES256GCMSHA384        ID = 0xc02c
	TLSECDHERSAWithChaCha20Poly1305SHA256   ID = 0xcca8
	TLSECDHEECDSAWithChaCha20Poly1305SHA256 ID = 0xcca9
)

// Key/IV lengths in bytes per suite family.
const (
	keyLenAES128 = 16
	keyLenAES256 = 32
	keyLenChaCha = 32
	ivLenTLS13   = 12
	ivLenGCM12   = 4
)

// Suite describes one negotiable ciphersuite: its key schedule hash and
// how to build the AEAD that protects records under it, spec.md
// Section 6's CipherSuite descriptor.
type Suite struct {
	ID      ID
	Name    string
	Hash    crypto.Hash
	KeyLen  int
	IVLen   int
	IsTLS13 bool

	// NewAEAD constructs the AEAD for one direction given its derived
	// key and fixed IV.
	NewAEAD func(key, fixedIV []byte, version protocol.Version) (AEAD, error)
}

var registry = map[ID]Suite{}

func register(s Suite) { registry[s.ID] = s }

func init() { //nolint:gochecknoinits
	register(Suite{
		ID: TLSAES128GCMSHA256, Name: "TLS_AES_128_GCM_SHA256",
		Hash: crypto.SHA256, KeyLen: keyLenAES128, IVLen: ivLenTLS13, IsTLS13: true,
		NewAEAD: func(key, iv []byte, _ protocol.Version) (AEAD, error) { return NewGCM13(key, iv) },
	})
	register(Suite{
		ID: TLSAES256GCMSHA384, Name: "TLS_AES_256_GCM_SHA384",
		Hash: crypto.SHA384, KeyLen: keyLenAES256, IVLen: ivLenTLS13, IsTLS13: true,
		NewAEAD: func(key, iv []byte, _ protocol.Version) (AEAD, error) { return NewGCM13(key, iv) },
	})
	register(Suite{
		ID: TLSChaCha20Poly1305SHA256, Name: "TLS_CHACHA20_POLY1305_SHA256",
		Hash: crypto.SHA256, KeyLen: keyLenChaCha, IVLen: ivLenTLS13, IsTLS13: true,
		NewAEAD: func(key, iv []byte, v protocol.Version) (AEAD, error) {
			return NewChaCha20Poly1305(key, iv, true, v)
		},
	})
	register(Suite{
		ID: TLSECDHERSAWithAES128GCMSHA256, Name: "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
		Hash: crypto.SHA256, KeyLen: keyLenAES128, IVLen: ivLenGCM12,
		NewAEAD: func(key, iv []byte, v protocol.Version) (AEAD, error) { return NewGCM12(key, iv, v) },
	})
	register(Suite{
		ID: TLSECDHERSAWithAES256GCMSHA384, Name: "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
		Hash: crypto.SHA384, KeyLen: keyLenAES256, IVLen: ivLenGCM12,
		NewAEAD: func(key, iv []byte, v protocol.Version) (AEAD, error) { return NewGCM12(key, iv, v) },
	})
	register(Suite{
		ID: TLSECDHEECDSAWithAES128GCMSHA256, Name: "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
		Hash: crypto.SHA256, KeyLen: keyLenAES128, IVLen: ivLenGCM12,
		NewAEAD: func(key, iv []byte, v protocol.Version) (AEAD, error) { return NewGCM12(key, iv, v) },
	})
	register(Suite{
		ID: TLSECDHEECDSAWithAES256GCMSHA384, Name: "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
		Hash: crypto.SHA384, KeyLen: keyLenAES256, IVLen: ivLenGCM12,
		NewAEAD: func(key, iv []byte, v protocol.Version) (AEAD, error) { return NewGCM12(key, iv, v) },
	})
	register(Suite{
		ID: TLSECDHERSAWithChaCha20Poly1305SHA256, Name: "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
		Hash: crypto.SHA256, KeyLen: keyLenChaCha, IVLen: ivLenTLS13,
		NewAEAD: func(key, iv []byte, v protocol.Version) (AEAD, error) {
			return NewChaCha20Poly1305(key, iv, false, v)
		},
	})
	register(Suite{
		ID: TLSECDHEECDSAWithChaCha20Poly1305SHA256, Name: "TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256",
		Hash: crypto.SHA256, KeyLen: keyLenChaCha, IVLen: ivLenTLS13,
		NewAEAD: func(key, iv []byte, v protocol.Version) (AEAD, error) {
			return NewChaCha20Poly1305(key, iv, false, v)
		},
	})
}

// ByID looks up a registered Suite.
func ByID(id ID) (Suite, bool) {
	s, ok := registry[id]
	return s, ok
}

// DefaultTLS13 is the TLS 1.3 suite preference order, RFC 8446 Appendix B.4.
var DefaultTLS13 = []ID{TLSAES128GCMSHA256, TLSChaCha20Poly1305SHA256, TLSAES256GCMSHA384}

// DefaultTLS12 is the TLS 1.2 suite preference order this engine offers.
var DefaultTLS12 = []ID{
	TLSECDHEECDSAWithAES128GCMSHA256,
	TLSECDHERSAWithAES128GCMSHA256,
	TLSECDHEECDSAWithChaCha20Poly1305SHA256,
	TLSECDHERSAWithChaCha20Poly1305SHA256,
	TLSECDHEECDSAWithAES256GCMSHA384,
	TLSECDHERSAWithAES256GCMSHA384,
}
