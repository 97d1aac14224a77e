// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package signaturehash

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func TestParseSchemes(t *testing.T) {
	out, err := ParseSchemes(nil, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range out {
		if isLegacyPKCS1(a) {
			t.Fatalf("ParseSchemes leaked legacy scheme %x without insecureHashes", a)
		}
	}

	out, err = ParseSchemes([]Algorithm{RSAPKCS1SHA256}, false)
	if err == nil {
		t.Fatalf("expected error, got %v", out)
	}

	out, err = ParseSchemes([]Algorithm{RSAPKCS1SHA256}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != RSAPKCS1SHA256 {
		t.Fatalf("unexpected schemes: %v", out)
	}
}

func TestSignVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("tls 1.3 certificate verify context string")
	sig, err := Sign(Ed25519, priv, msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(Ed25519, pub, msg, sig); err != nil {
		t.Fatal(err)
	}
	if err := Verify(Ed25519, pub, append(msg, 0), sig); err == nil {
		t.Fatal("expected verification failure on tampered message")
	}
}

func TestSignVerifyECDSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("handshake transcript hash")
	sig, err := Sign(ECDSASecp256r1Sha256, priv, msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(ECDSASecp256r1Sha256, &priv.PublicKey, msg, sig); err != nil {
		t.Fatal(err)
	}
}

func TestSignVerifyRSAPSS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("handshake transcript hash")
	sig, err := Sign(RSAPSSRSAESHA256, priv, msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(RSAPSSRSAESHA256, &priv.PublicKey, msg, sig); err != nil {
		t.Fatal(err)
	}
}

func TestSignWrongKeyType(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Sign(Ed25519, priv, []byte("x")); err != errWrongKeyType {
		t.Fatalf("expected errWrongKeyType, got %v", err)
	}
}
