// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package elliptic

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/curve25519"
)

// KeyAgreement is the per-group capability object named in spec.md
// Section 6: generate an ephemeral keypair, export the public key on the
// wire, and derive the shared secret from a peer's public bytes.
type KeyAgreement interface {
	GenerateKeyPair() (priv, pub []byte, err error)
	DeriveShared(priv, peerPub []byte) ([]byte, error)
}

// NewKeyAgreement returns the default KeyAgreement for g, or false if this
// engine ships no primitive for it.
func NewKeyAgreement(g Group) (KeyAgreement, bool) {
	switch g {
	case X25519:
		return x25519Agreement{}, true
	case Secp256r1:
		return ecdhAgreement{curve: ecdh.P256()}, true
	case Secp384r1:
		return ecdhAgreement{curve: ecdh.P384()}, true
	case Secp521r1:
		return ecdhAgreement{curve: ecdh.P521()}, true
	default:
		return nil, false
	}
}

type x25519Agreement struct{}

func (x25519Agreement) GenerateKeyPair() (priv, pub []byte, err error) {
	priv = make([]byte, curve25519.ScalarSize)
	if _, err = rand.Read(priv); err != nil {
		return nil, nil, err
	}
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func (x25519Agreement) DeriveShared(priv, peerPub []byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv, peerPub)
	if err != nil {
		return nil, err
	}
	// RFC 7748: reject an all-zero output, which would result from a
	// small-order peer public key.
	zero := true
	for _, b := range shared {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, errAllZeroSharedSecret
	}
	return shared, nil
}

// ecdhAgreement adapts crypto/ecdh's NIST curve implementations. This is
// the one primitive in the registry backed directly by the standard
// library rather than a pack dependency: no third-party NIST-curve ECDH
// implementation appears anywhere in the retrieved pack, and crypto/ecdh
// is the same primitive stdlib's own crypto/tls reaches for, so it is not
// a workaround here — see DESIGN.md.
type ecdhAgreement struct {
	curve ecdh.Curve
}

func (e ecdhAgreement) GenerateKeyPair() (priv, pub []byte, err error) {
	key, err := e.curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return key.Bytes(), key.PublicKey().Bytes(), nil
}

func (e ecdhAgreement) DeriveShared(priv, peerPub []byte) ([]byte, error) {
	key, err := e.curve.NewPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	peer, err := e.curve.NewPublicKey(peerPub)
	if err != nil {
		return nil, err
	}
	return key.ECDH(peer)
}

var errAllZeroSharedSecret = errors.New("elliptic: derived shared secret is all-zero (invalid peer key)")
