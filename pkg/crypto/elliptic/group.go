// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package elliptic is the registry of named key-exchange groups this
// engine can negotiate (RFC 8446 Section 4.2.7, RFC 8422). It is a
// capability registry, not a primitive implementation: each Group here is
// either backed by a concrete KeyAgreement below or declared-but-rejected
// when the engine ships no primitive for it (spec.md Section 6 treats
// KeyAgreement as a swappable collaborator).
package elliptic

// Group is a named key-exchange group, RFC 8446 Section 4.2.7.
type Group uint16

// Group enums, IANA "Supported Groups" registry.
const (
	X25519    Group = 0x001d
	Secp256r1 Group = 0x0017
	Secp384r1 Group = 0x0018
	Secp521r1 Group = 0x0019
	Ffdhe2048 Group = 0x0100
	MLKem768  Group = 0x0202 // hybrid X25519MLKEM768 placeholder id, declared not implemented
)

func (g Group) String() string {
	switch g {
	case X25519:
		return "x25519"
	case Secp256r1:
		return "secp256r1"
	case Secp384r1:
		return "secp384r1"
	case Secp521r1:
		return "secp521r1"
	case Ffdhe2048:
		return "ffdhe2048"
	case MLKem768:
		return "mlkem768"
	default:
		return "unknown"
	}
}

// DefaultGroups is the key-exchange group preference order used when a
// Config does not specify one, RFC 8446 Section 9.1's minimal set plus the
// NIST curves most servers still offer.
var DefaultGroups = []Group{X25519, Secp256r1, Secp384r1}

// Supported reports whether this engine ships a KeyAgreement
// implementation for g. Groups declared in the registry above but not
// backed by a primitive (Ffdhe2048, MLKem768) return false: the engine
// negotiates honestly (never offers/accepts them) rather than silently
// failing later. See SPEC_FULL.md section 6 for why no FFDHE/ML-KEM
// primitive is vendored.
func Supported(g Group) bool {
	switch g {
	case X25519, Secp256r1, Secp384r1, Secp521r1:
		return true
	default:
		return false
	}
}
