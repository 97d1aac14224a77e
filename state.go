// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"sync/atomic"

	"github.com/gotls/tlsengine/pkg/crypto/ciphersuite"
	"github.com/gotls/tlsengine/pkg/crypto/keyschedule"
	"github.com/gotls/tlsengine/pkg/crypto/transcript"
	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/gotls/tlsengine/pkg/protocol/handshake"
	"github.com/gotls/tlsengine/pkg/protocol/recordlayer"
)

// ConnState is the per-direction cryptographic state of the record
// layer, spec.md §3's ConnState entity. It is replaced wholesale (not
// mutated) on every key install: the old value is simply dropped, which
// is what makes "sequence number resets to 0 on epoch change" trivially
// true (invariant 1/4).
type ConnState struct {
	aead           ciphersuite.AEAD
	sequenceNumber uint64
}

func (cs *ConnState) nextSequenceNumber() (uint64, error) {
	seq := atomic.AddUint64(&cs.sequenceNumber, 1) - 1
	if seq == recordlayer.MaxSequenceNumber {
		return 0, errSequenceNumberOverflow
	}
	return seq, nil
}

// HandshakeState carries everything the handshake driver accumulates
// across messages: negotiated parameters, the running transcript, and
// whichever key-schedule flavor matches the negotiated version. Exactly
// one of schedule13/legacy12 is populated once the version is chosen.
type HandshakeState struct {
	isClient bool
	version  protocol.Version

	clientRandom handshake.Random
	serverRandom handshake.Random

	suite ciphersuite.Suite

	transcript *transcript.Hash

	// TLS 1.3
	schedule13 *keyschedule.Schedule
	// HelloRetryRequest bookkeeping: at most one is permitted, spec.md's
	// confirmed Open Question decision (always fatal on a second one).
	sawHelloRetryRequest bool

	// TLS 1.2
	preMasterSecret []byte
	masterSecret    []byte
	extendedMasterSecret bool
	encryptThenMAC       bool

	session *Session
}

// installTrafficKeys builds direction ConnStates from a TLS 1.3 traffic
// secret, RFC 8446 Section 7.3.
func installTrafficKeys(suite ciphersuite.Suite, secret []byte, version protocol.Version) (*ConnState, []byte, error) {
	keys := keyschedule.DeriveTrafficKeys(suite.Hash, secret, suite.KeyLen, suite.IVLen)
	aead, err := suite.NewAEAD(keys.Key, keys.IV, version)
	if err != nil {
		return nil, nil, err
	}
	return &ConnState{aead: aead}, secret, nil
}

// installTLS12KeyState builds both direction ConnStates from the TLS 1.2 key
// block, RFC 5246 Section 6.3.
func installTLS12KeyState(suite ciphersuite.Suite, clientWriteKey, serverWriteKey, clientWriteIV, serverWriteIV []byte, version protocol.Version) (client, server *ConnState, err error) {
	clientAEAD, err := suite.NewAEAD(clientWriteKey, clientWriteIV, version)
	if err != nil {
		return nil, nil, err
	}
	serverAEAD, err := suite.NewAEAD(serverWriteKey, serverWriteIV, version)
	if err != nil {
		return nil, nil, err
	}
	return &ConnState{aead: clientAEAD}, &ConnState{aead: serverAEAD}, nil
}
