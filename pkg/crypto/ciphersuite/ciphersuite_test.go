// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package ciphersuite

import (
	"bytes"
	"testing"

	"github.com/gotls/tlsengine/pkg/protocol"
)

func TestGCM13RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 16)
	iv := bytes.Repeat([]byte{0x02}, 12)
	aead, err := NewGCM13(key, iv)
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("application data protected under TLS 1.3")
	ciphertext, err := aead.Seal(0, protocol.ContentTypeApplicationData, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	got, err := aead.Open(0, protocol.ContentTypeApplicationData, ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}

	if _, err := aead.Open(1, protocol.ContentTypeApplicationData, ciphertext); err == nil {
		t.Fatal("expected failure decrypting under wrong sequence number")
	}
}

func TestGCM12ExplicitNonceRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x03}, 16)
	fixedIV := bytes.Repeat([]byte{0x04}, 4)
	aead, err := NewGCM12(key, fixedIV, protocol.Version1_2)
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("application data protected under TLS 1.2")
	ciphertext, err := aead.Seal(5, protocol.ContentTypeApplicationData, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if len(ciphertext) != len(plaintext)+aead.Overhead() {
		t.Fatalf("unexpected ciphertext length: %d", len(ciphertext))
	}
	got, err := aead.Open(5, protocol.ContentTypeApplicationData, ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestChaCha20Poly1305RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x05}, 32)
	iv := bytes.Repeat([]byte{0x06}, 12)
	aead, err := NewChaCha20Poly1305(key, iv, true, protocol.Version1_3)
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("0-RTT or post-handshake data")
	ciphertext, err := aead.Seal(0, protocol.ContentTypeApplicationData, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	got, err := aead.Open(0, protocol.ContentTypeApplicationData, ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestByID(t *testing.T) {
	suite, ok := ByID(TLSAES128GCMSHA256)
	if !ok {
		t.Fatal("expected TLS_AES_128_GCM_SHA256 to be registered")
	}
	if !suite.IsTLS13 {
		t.Fatal("TLS_AES_128_GCM_SHA256 must be marked IsTLS13")
	}
	if _, ok := ByID(0xffff); ok {
		t.Fatal("unregistered ID unexpectedly resolved")
	}
}
