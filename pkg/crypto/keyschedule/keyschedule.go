// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package keyschedule implements the TLS 1.3 key schedule, RFC 8446
// Section 7.1: HKDF-Extract, HKDF-Expand-Label and Derive-Secret chained
// through early/handshake/master secret stages. Naming follows the
// HkdfExpandLabel/labelXxx shape used by the bifurcation/mint TLS 1.3
// implementation; the HKDF primitive itself comes from
// golang.org/x/crypto/hkdf, this engine's sole source for HMAC-based key
// derivation (the teacher never needed HKDF, being TLS 1.2 DTLS only).
package keyschedule

import (
	"crypto"
	"encoding/binary"

	"golang.org/x/crypto/hkdf"
)

// Labels used by HkdfExpandLabel, RFC 8446 Section 7.1.
const (
	labelDerived                         = "derived"
	labelExternalBinder                  = "ext binder"
	labelResumptionBinder                = "res binder"
	labelClientEarlyTrafficSecret        = "c e traffic"
	labelEarlyExporterMasterSecret       = "e exp master"
	labelClientHandshakeTrafficSecret    = "c hs traffic"
	labelServerHandshakeTrafficSecret    = "s hs traffic"
	labelClientApplicationTrafficSecret  = "c ap traffic"
	labelServerApplicationTrafficSecret  = "s ap traffic"
	labelExporterMasterSecret            = "exp master"
	labelResumptionMasterSecret          = "res master"
	labelResumption                      = "resumption"
	labelKey                             = "key"
	labelIV                              = "iv"
	labelFinished                        = "finished"
)

// HkdfExtract is RFC 8446 Section 7.1's HKDF-Extract(salt, ikm), delegating
// to golang.org/x/crypto/hkdf's extract step.
func HkdfExtract(h crypto.Hash, salt, ikm []byte) []byte {
	if ikm == nil {
		ikm = make([]byte, h.Size())
	}
	if salt == nil {
		salt = make([]byte, h.Size())
	}
	return hkdf.Extract(h.New, ikm, salt)
}

// hkdfExpand is plain RFC 5869 HKDF-Expand, used internally by
// HkdfExpandLabel.
func hkdfExpand(h crypto.Hash, secret, info []byte, length int) []byte {
	out := make([]byte, length)
	reader := hkdf.Expand(h.New, secret, info)
	if _, err := reader.Read(out); err != nil {
		panic(err) // hkdf.Expand only errors when length exceeds 255*hash size
	}
	return out
}

// HkdfExpandLabel is RFC 8446 Section 7.1's HKDF-Expand-Label(Secret,
// Label, Context, Length).
func HkdfExpandLabel(h crypto.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label

	info := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	lengthBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(lengthBytes, uint16(length))
	info = append(info, lengthBytes...)
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, byte(len(context)))
	info = append(info, context...)

	return hkdfExpand(h, secret, info, length)
}

// DeriveSecret is RFC 8446 Section 7.1's Derive-Secret(Secret, Label,
// Messages), where Messages is a transcript hash already computed by the
// caller (pkg/crypto/transcript).
func DeriveSecret(h crypto.Hash, secret []byte, label string, transcriptHash []byte) []byte {
	return HkdfExpandLabel(h, secret, label, transcriptHash, h.Size())
}

// Schedule drives the three-stage RFC 8446 Section 7.1 secret chain:
// Early Secret -> Handshake Secret -> Master Secret, yielding every
// traffic secret a handshake needs at each stage.
type Schedule struct {
	hash crypto.Hash

	earlySecret     []byte
	handshakeSecret []byte
	masterSecret    []byte
}

// New starts a Schedule. psk is the resumption or external PSK, or nil for
// a full (EC)DHE-only handshake (RFC 8446 treats a nil PSK as a
// zero-filled IKM of hash-length, handled inside HkdfExtract).
func New(h crypto.Hash, psk []byte) *Schedule {
	s := &Schedule{hash: h}
	s.earlySecret = HkdfExtract(h, nil, psk)
	return s
}

// EarlySecret returns the Early Secret, the root of the 0-RTT branch.
func (s *Schedule) EarlySecret() []byte { return s.earlySecret }

// BinderKey derives the PSK binder key, external or resumption depending
// on isExternal, RFC 8446 Section 4.2.11.2.
func (s *Schedule) BinderKey(isExternal bool) []byte {
	label := labelResumptionBinder
	if isExternal {
		label = labelExternalBinder
	}
	emptyTranscript := emptyTranscriptHash(s.hash)
	return DeriveSecret(s.hash, s.earlySecret, label, emptyTranscript)
}

// ClientEarlyTrafficSecret derives the 0-RTT client application data key,
// RFC 8446 Section 7.1, from the transcript hash through ClientHello.
func (s *Schedule) ClientEarlyTrafficSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.hash, s.earlySecret, labelClientEarlyTrafficSecret, transcriptHash)
}

// EarlyExporterMasterSecret derives the 0-RTT exporter secret,
// RFC 8446 Section 7.1 / Section 7.5.
func (s *Schedule) EarlyExporterMasterSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.hash, s.earlySecret, labelEarlyExporterMasterSecret, transcriptHash)
}

// AdvanceToHandshakeSecret folds in the (EC)DHE shared secret and derives
// the Handshake Secret, RFC 8446 Section 7.1.
func (s *Schedule) AdvanceToHandshakeSecret(dheSharedSecret []byte) {
	derivedSalt := DeriveSecret(s.hash, s.earlySecret, labelDerived, emptyTranscriptHash(s.hash))
	s.handshakeSecret = HkdfExtract(s.hash, derivedSalt, dheSharedSecret)
}

// ClientHandshakeTrafficSecret derives the handshake-phase client traffic
// secret from the transcript hash through ServerHello.
func (s *Schedule) ClientHandshakeTrafficSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.hash, s.handshakeSecret, labelClientHandshakeTrafficSecret, transcriptHash)
}

// ServerHandshakeTrafficSecret derives the handshake-phase server traffic
// secret from the transcript hash through ServerHello.
func (s *Schedule) ServerHandshakeTrafficSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.hash, s.handshakeSecret, labelServerHandshakeTrafficSecret, transcriptHash)
}

// AdvanceToMasterSecret derives the Master Secret, RFC 8446 Section 7.1.
func (s *Schedule) AdvanceToMasterSecret() {
	derivedSalt := DeriveSecret(s.hash, s.handshakeSecret, labelDerived, emptyTranscriptHash(s.hash))
	s.masterSecret = HkdfExtract(s.hash, derivedSalt, nil)
}

// ClientApplicationTrafficSecret0 derives the initial post-handshake
// client traffic secret from the transcript hash through
// server Finished.
func (s *Schedule) ClientApplicationTrafficSecret0(transcriptHash []byte) []byte {
	return DeriveSecret(s.hash, s.masterSecret, labelClientApplicationTrafficSecret, transcriptHash)
}

// ServerApplicationTrafficSecret0 derives the initial post-handshake
// server traffic secret from the transcript hash through
// server Finished.
func (s *Schedule) ServerApplicationTrafficSecret0(transcriptHash []byte) []byte {
	return DeriveSecret(s.hash, s.masterSecret, labelServerApplicationTrafficSecret, transcriptHash)
}

// ExporterMasterSecret derives the post-handshake exporter secret,
// RFC 8446 Section 7.5, from the transcript hash through server
// Finished.
func (s *Schedule) ExporterMasterSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.hash, s.masterSecret, labelExporterMasterSecret, transcriptHash)
}

// ResumptionMasterSecret derives the secret NewSessionTicket resumption
// PSKs are minted from, RFC 8446 Section 7.1, from the transcript hash
// through client Finished.
func (s *Schedule) ResumptionMasterSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.hash, s.masterSecret, labelResumptionMasterSecret, transcriptHash)
}

// NextGenerationTrafficSecret implements the KeyUpdate ratchet,
// RFC 8446 Section 7.2: application_traffic_secret_N+1 = HKDF-Expand-Label
// (application_traffic_secret_N, "traffic upd", "", Hash.length).
func (s *Schedule) NextGenerationTrafficSecret(currentSecret []byte) []byte {
	return HkdfExpandLabel(s.hash, currentSecret, "traffic upd", nil, s.hash.Size())
}

// ResumptionPSK derives a resumption PSK from a NewSessionTicket's
// ticket_nonce, RFC 8446 Section 4.6.1.
func (s *Schedule) ResumptionPSK(resumptionMasterSecret, ticketNonce []byte) []byte {
	return HkdfExpandLabel(s.hash, resumptionMasterSecret, labelResumption, ticketNonce, s.hash.Size())
}

// TrafficKeys derives the record-protection key and IV from a traffic
// secret, RFC 8446 Section 7.3.
type TrafficKeys struct {
	Key []byte
	IV  []byte
}

// DeriveTrafficKeys expands a traffic secret into its record-layer key
// and IV, RFC 8446 Section 7.3.
func DeriveTrafficKeys(h crypto.Hash, trafficSecret []byte, keyLen, ivLen int) TrafficKeys {
	return TrafficKeys{
		Key: HkdfExpandLabel(h, trafficSecret, labelKey, nil, keyLen),
		IV:  HkdfExpandLabel(h, trafficSecret, labelIV, nil, ivLen),
	}
}

// FinishedKey derives the MAC key Finished is computed under,
// RFC 8446 Section 4.4.4.
func FinishedKey(h crypto.Hash, trafficSecret []byte) []byte {
	return HkdfExpandLabel(h, trafficSecret, labelFinished, nil, h.Size())
}

func emptyTranscriptHash(h crypto.Hash) []byte {
	digest := h.New()
	return digest.Sum(nil)
}
