// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package signaturehash implements the signature scheme registry and the
// Signer/Verifier capability objects named in spec.md Section 6
// (RFC 8446 Section 4.2.3, RFC 5246 Section 7.4.1.4.1).
package signaturehash

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"

	_ "crypto/sha256" // register crypto.SHA256
	_ "crypto/sha512" // register crypto.SHA384, crypto.SHA512
)

// Algorithm is a signature scheme identifier, RFC 8446 Section 4.2.3.
type Algorithm uint16

// Algorithm enums, IANA "TLS SignatureScheme" registry.
const (
	RSAPSSRSAESHA256     Algorithm = 0x0804
	RSAPSSRSAESHA384     Algorithm = 0x0805
	RSAPSSRSAESHA512     Algorithm = 0x0806
	ECDSASecp256r1Sha256 Algorithm = 0x0403
	ECDSASecp384r1Sha384 Algorithm = 0x0503
	ECDSASecp521r1Sha512 Algorithm = 0x0603
	Ed25519              Algorithm = 0x0807

	// Legacy RFC 5246 schemes, TLS 1.2 only.
	RSAPKCS1SHA256 Algorithm = 0x0401
	RSAPKCS1SHA384 Algorithm = 0x0501
	RSAPKCS1SHA512 Algorithm = 0x0601
)

// DefaultSchemes is the signature scheme preference order used when a
// Config does not specify one.
var DefaultSchemes = []Algorithm{
	Ed25519,
	ECDSASecp256r1Sha256,
	ECDSASecp384r1Sha384,
	RSAPSSRSAESHA256,
	RSAPSSRSAESHA384,
	RSAPKCS1SHA256,
}

// ParseSchemes filters the caller-requested scheme list down to ones this
// engine can actually use, honoring insecureHashes to optionally allow the
// legacy PKCS#1 v1.5 schemes. Mirrors the teacher's
// signaturehash.ParseSignatureSchemes contract.
func ParseSchemes(requested []Algorithm, insecureHashes bool) ([]Algorithm, error) {
	if len(requested) == 0 {
		requested = DefaultSchemes
	}
	var out []Algorithm
	for _, a := range requested {
		if !insecureHashes && isLegacyPKCS1(a) {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, errNoSignatureSchemes
	}
	return out, nil
}

func isLegacyPKCS1(a Algorithm) bool {
	return a == RSAPKCS1SHA256 || a == RSAPKCS1SHA384 || a == RSAPKCS1SHA512
}

// cryptoHash maps an Algorithm to the crypto.Hash that digests its signing
// input, RFC 8446 Section 4.2.3 / RFC 5246 Section 7.4.1.4.1.
func cryptoHash(alg Algorithm) crypto.Hash {
	switch alg {
	case RSAPSSRSAESHA256, RSAPKCS1SHA256, ECDSASecp256r1Sha256:
		return crypto.SHA256
	case RSAPSSRSAESHA384, RSAPKCS1SHA384, ECDSASecp384r1Sha384:
		return crypto.SHA384
	case RSAPSSRSAESHA512, RSAPKCS1SHA512, ECDSASecp521r1Sha512:
		return crypto.SHA512
	default:
		return 0
	}
}

// Sign produces a signature over msg under alg using private key pk,
// spec.md Section 6's Signer collaborator.
func Sign(alg Algorithm, pk crypto.Signer, msg []byte) ([]byte, error) {
	if alg == Ed25519 {
		edKey, ok := pk.(ed25519.PrivateKey)
		if !ok {
			return nil, errWrongKeyType
		}
		return ed25519.Sign(edKey, msg), nil
	}

	h := cryptoHash(alg)
	if h == 0 {
		return nil, errUnsupportedScheme
	}
	digest := h.New()
	digest.Write(msg)
	sum := digest.Sum(nil)

	switch alg {
	case RSAPSSRSAESHA256, RSAPSSRSAESHA384, RSAPSSRSAESHA512:
		rsaKey, ok := pk.(*rsa.PrivateKey)
		if !ok {
			return nil, errWrongKeyType
		}
		return rsa.SignPSS(rand.Reader, rsaKey, h, sum, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h})
	case RSAPKCS1SHA256, RSAPKCS1SHA384, RSAPKCS1SHA512:
		rsaKey, ok := pk.(*rsa.PrivateKey)
		if !ok {
			return nil, errWrongKeyType
		}
		return rsa.SignPKCS1v15(rand.Reader, rsaKey, h, sum)
	case ECDSASecp256r1Sha256, ECDSASecp384r1Sha384, ECDSASecp521r1Sha512:
		ecKey, ok := pk.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errWrongKeyType
		}
		return ecdsa.SignASN1(rand.Reader, ecKey, sum)
	default:
		return nil, errUnsupportedScheme
	}
}

// Verify checks sig over msg under alg using public key pub.
func Verify(alg Algorithm, pub crypto.PublicKey, msg, sig []byte) error {
	if alg == Ed25519 {
		edKey, ok := pub.(ed25519.PublicKey)
		if !ok {
			return errWrongKeyType
		}
		if !ed25519.Verify(edKey, msg, sig) {
			return errSignatureVerificationFailed
		}
		return nil
	}

	h := cryptoHash(alg)
	if h == 0 {
		return errUnsupportedScheme
	}
	digest := h.New()
	digest.Write(msg)
	sum := digest.Sum(nil)

	switch alg {
	case RSAPSSRSAESHA256, RSAPSSRSAESHA384, RSAPSSRSAESHA512:
		rsaKey, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errWrongKeyType
		}
		return rsa.VerifyPSS(rsaKey, h, sum, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h})
	case RSAPKCS1SHA256, RSAPKCS1SHA384, RSAPKCS1SHA512:
		rsaKey, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errWrongKeyType
		}
		return rsa.VerifyPKCS1v15(rsaKey, h, sum, sig)
	case ECDSASecp256r1Sha256, ECDSASecp384r1Sha384, ECDSASecp521r1Sha512:
		ecKey, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return errWrongKeyType
		}
		if !ecdsa.VerifyASN1(ecKey, sum, sig) {
			return errSignatureVerificationFailed
		}
		return nil
	default:
		return errUnsupportedScheme
	}
}

var (
	errUnsupportedScheme           = errors.New("signaturehash: unsupported signature scheme")
	errWrongKeyType                = errors.New("signaturehash: key type does not match signature scheme")
	errSignatureVerificationFailed = errors.New("signaturehash: signature verification failed")
	errNoSignatureSchemes          = errors.New("signaturehash: no acceptable signature schemes requested")
)
