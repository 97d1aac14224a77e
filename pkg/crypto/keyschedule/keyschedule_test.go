// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package keyschedule

import (
	"bytes"
	"crypto"
	"testing"
)

// TestHkdfExtractNilPSKIsZeroIKM checks that a nil PSK is treated as a
// zero-filled IKM of hash length, RFC 8446 Section 7.1's Early Secret
// derivation for a non-PSK handshake.
func TestHkdfExtractNilPSKIsZeroIKM(t *testing.T) {
	zeroIKM := make([]byte, crypto.SHA256.Size())
	want := HkdfExtract(crypto.SHA256, nil, zeroIKM)
	got := HkdfExtract(crypto.SHA256, nil, nil)
	if !bytes.Equal(want, got) {
		t.Fatal("nil PSK did not behave as a zero-filled IKM")
	}
	if len(got) != crypto.SHA256.Size() {
		t.Fatalf("unexpected early secret length: %d", len(got))
	}
}

func TestScheduleDerivesDistinctSecretsPerStage(t *testing.T) {
	h := crypto.SHA256
	psk := make([]byte, h.Size())
	s := New(h, psk)

	transcript1 := bytes.Repeat([]byte{0x01}, h.Size())
	transcript2 := bytes.Repeat([]byte{0x02}, h.Size())

	s.AdvanceToHandshakeSecret(bytes.Repeat([]byte{0xAB}, 32))
	chs := s.ClientHandshakeTrafficSecret(transcript1)
	shs := s.ServerHandshakeTrafficSecret(transcript1)
	if bytes.Equal(chs, shs) {
		t.Fatal("client and server handshake traffic secrets must differ")
	}

	s.AdvanceToMasterSecret()
	cap0 := s.ClientApplicationTrafficSecret0(transcript2)
	sap0 := s.ServerApplicationTrafficSecret0(transcript2)
	if bytes.Equal(cap0, sap0) {
		t.Fatal("client and server application traffic secrets must differ")
	}
	if bytes.Equal(cap0, chs) {
		t.Fatal("application and handshake traffic secrets must differ")
	}
}

func TestNextGenerationTrafficSecretRatchets(t *testing.T) {
	h := crypto.SHA256
	secret := bytes.Repeat([]byte{0x42}, h.Size())
	s := &Schedule{hash: h}

	next := s.NextGenerationTrafficSecret(secret)
	if bytes.Equal(next, secret) {
		t.Fatal("KeyUpdate ratchet produced the same secret")
	}
	if len(next) != h.Size() {
		t.Fatalf("unexpected ratcheted secret length: %d", len(next))
	}

	again := s.NextGenerationTrafficSecret(next)
	if bytes.Equal(again, next) {
		t.Fatal("ratchet is not advancing on repeated calls")
	}
}

func TestDeriveTrafficKeysLengths(t *testing.T) {
	h := crypto.SHA256
	secret := bytes.Repeat([]byte{0x07}, h.Size())
	keys := DeriveTrafficKeys(h, secret, 16, 12)
	if len(keys.Key) != 16 || len(keys.IV) != 12 {
		t.Fatalf("unexpected key/IV lengths: %d/%d", len(keys.Key), len(keys.IV))
	}
}
