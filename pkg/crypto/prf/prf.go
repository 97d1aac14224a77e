// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package prf implements the TLS 1.2 pseudorandom function and the key
// derivation steps built on it, RFC 5246 Section 5 and Section 6.3, plus
// the RFC 7627 extended master secret variant. TLS 1.3's key schedule
// replaces this entirely with HKDF; see pkg/crypto/keyschedule.
package prf

import (
	"crypto/hmac"
	"errors"
	"hash"

	"github.com/gotls/tlsengine/pkg/crypto/elliptic"
)

const (
	masterSecretLabel         = "master secret"
	extendedMasterSecretLabel = "extended master secret"
	keyExpansionLabel         = "key expansion"
	clientFinishedLabel       = "client finished"
	serverFinishedLabel       = "server finished"
	masterSecretLength        = 48
	verifyDataLength          = 12
)

// PreMasterSecret derives the (EC)DHE pre-master secret from a peer's
// public key bytes and the local private key bytes, RFC 8446's
// predecessor shape (RFC 4492 Section 5.10 / RFC 7748), still used as the
// TLS 1.2 key exchange input.
func PreMasterSecret(publicKey, privateKey []byte, curve elliptic.Group) ([]byte, error) {
	ka, ok := elliptic.NewKeyAgreement(curve)
	if !ok {
		return nil, errInvalidCurve
	}
	return ka.DeriveShared(privateKey, publicKey)
}

// pHash is the RFC 5246 Section 5 data expansion function P_hash.
func pHash(secret, seed []byte, requestedLength int, h func() hash.Hash) []byte {
	hmacSHA := func(key, data []byte) []byte {
		mac := hmac.New(h, key)
		mac.Write(data) //nolint:errcheck
		return mac.Sum(nil)
	}

	var out []byte
	aCur := seed
	for len(out) < requestedLength {
		aCur = hmacSHA(secret, aCur)
		out = append(out, hmacSHA(secret, append(append([]byte{}, aCur...), seed...))...)
	}
	return out[:requestedLength]
}

// prf is RFC 5246 Section 5's PRF(secret, label, seed) = P_hash(secret,
// label + seed).
func prf(secret []byte, label string, seed []byte, requestedLength int, h func() hash.Hash) []byte {
	labeledSeed := append([]byte(label), seed...)
	return pHash(secret, labeledSeed, requestedLength, h)
}

// MasterSecret computes the classic (non-extended) master secret,
// RFC 5246 Section 8.1.
func MasterSecret(preMasterSecret, clientRandom, serverRandom []byte, h func() hash.Hash) ([]byte, error) {
	seed := append(append([]byte{}, clientRandom...), serverRandom...)
	return prf(preMasterSecret, masterSecretLabel, seed, masterSecretLength, h), nil
}

// ExtendedMasterSecret computes the RFC 7627 extended master secret from
// the handshake transcript hash taken up to and including ClientKeyExchange,
// replacing clientRandom||serverRandom with the session_hash.
func ExtendedMasterSecret(preMasterSecret, sessionHash []byte, h func() hash.Hash) ([]byte, error) {
	return prf(preMasterSecret, extendedMasterSecretLabel, sessionHash, masterSecretLength, h), nil
}

// EncryptionKeys is the key_block expansion, RFC 5246 Section 6.3. MAC
// keys are empty for AEAD ciphersuites, whose nonce is built from the
// fixed IV plus either the sequence number (ChaCha20-Poly1305) or an
// explicit per-record nonce sent on the wire (AES-GCM).
type EncryptionKeys struct {
	MasterSecret   []byte
	ClientMACKey   []byte
	ServerMACKey   []byte
	ClientWriteKey []byte
	ServerWriteKey []byte
	ClientWriteIV  []byte
	ServerWriteIV  []byte
}

// GenerateEncryptionKeys expands the master secret into the per-direction
// key material, RFC 5246 Section 6.3.
func GenerateEncryptionKeys(masterSecret, clientRandom, serverRandom []byte, macLen, keyLen, ivLen int, h func() hash.Hash) (*EncryptionKeys, error) {
	seed := append(append([]byte{}, serverRandom...), clientRandom...)
	keyBlock := prf(masterSecret, keyExpansionLabel, seed, (2*macLen)+(2*keyLen)+(2*ivLen), h)

	offset := 0
	next := func(n int) []byte {
		out := keyBlock[offset : offset+n]
		offset += n
		return out
	}

	clientMACKey := next(macLen)
	serverMACKey := next(macLen)
	clientWriteKey := next(keyLen)
	serverWriteKey := next(keyLen)
	clientWriteIV := next(ivLen)
	serverWriteIV := next(ivLen)

	return &EncryptionKeys{
		MasterSecret:   masterSecret,
		ClientMACKey:   clientMACKey,
		ServerMACKey:   serverMACKey,
		ClientWriteKey: clientWriteKey,
		ServerWriteKey: serverWriteKey,
		ClientWriteIV:  clientWriteIV,
		ServerWriteIV:  serverWriteIV,
	}, nil
}

func verifyData(masterSecret, transcriptHash []byte, h func() hash.Hash, label string) ([]byte, error) {
	return prf(masterSecret, label, transcriptHash, verifyDataLength, h), nil
}

// VerifyDataClient computes the client's Finished.verify_data,
// RFC 5246 Section 7.4.9. transcriptHash is the running handshake
// transcript digest (pkg/crypto/transcript.Hash.Sum) taken at the point
// this Finished is sent/verified, not the raw message bytes.
func VerifyDataClient(masterSecret, transcriptHash []byte, h func() hash.Hash) ([]byte, error) {
	return verifyData(masterSecret, transcriptHash, h, clientFinishedLabel)
}

// VerifyDataServer computes the server's Finished.verify_data,
// RFC 5246 Section 7.4.9. transcriptHash is the running handshake
// transcript digest taken at the point this Finished is sent/verified.
func VerifyDataServer(masterSecret, transcriptHash []byte, h func() hash.Hash) ([]byte, error) {
	return verifyData(masterSecret, transcriptHash, h, serverFinishedLabel)
}

var errInvalidCurve = errors.New("prf: no key agreement primitive for curve")
