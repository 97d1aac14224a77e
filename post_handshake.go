// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"encoding/binary"
	"time"

	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/gotls/tlsengine/pkg/protocol/handshake"
)

// heartbeatPaddingLength is the padding this engine attaches to every
// heartbeat it sends, RFC 6520 Section 4's minimum of 16 bytes.
const heartbeatPaddingLength = 16

// sessionTicketLifetime is the lifetime a server-issued TLS 1.3
// NewSessionTicket advertises, RFC 8446 Section 4.6.1 (bounded at 7 days
// by the RFC regardless of what a server requests).
const sessionTicketLifetime = 24 * time.Hour

// handlePostHandshakeMessage dispatches a Handshake-content-type message
// arriving after the handshake has completed, spec.md's post-handshake
// control operations: KeyUpdate (both directions) and NewSessionTicket
// (client side only). Grounded on the teacher's alertHandler dispatch
// pattern in Conn.readAndBuffer, generalized from DTLS's single
// post-handshake case (renegotiation rejection) to this engine's two.
func (c *Connection) handlePostHandshakeMessage(msg handshake.Message) error {
	switch m := msg.(type) {
	case *handshake.MessageKeyUpdate:
		return c.handlePeerKeyUpdate(m)
	case *handshake.MessageNewSessionTicket:
		return c.handleNewSessionTicket(m)
	default:
		return NewError(KindUnexpectedMessage, errUnexpectedPostHandshakeMessage)
	}
}

// handlePeerKeyUpdate ratchets the read traffic secret forward on a
// peer-initiated KeyUpdate, RFC 8446 Section 4.6.3, answering in kind if
// the peer asked this side to also update its own sending keys.
func (c *Connection) handlePeerKeyUpdate(m *handshake.MessageKeyUpdate) error {
	if !c.negotiatedVersion.Equal(protocol.Version1_3) {
		return NewError(KindUnexpectedMessage, errKeyUpdateRequiresTLS13)
	}

	c.trafficSecretMu.Lock()
	var current []byte
	if c.isClient {
		current = c.serverTrafficSecret
	} else {
		current = c.clientTrafficSecret
	}
	next := c.schedule13.NextGenerationTrafficSecret(current)
	if c.isClient {
		c.serverTrafficSecret = next
	} else {
		c.clientTrafficSecret = next
	}
	c.trafficSecretMu.Unlock()

	newState, _, err := installTrafficKeys(c.suite, next, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.setReadState(newState)

	if m.RequestUpdate == handshake.KeyUpdateRequested {
		return c.SendKeyUpdate(false)
	}
	return nil
}

// SendKeyUpdate ratchets this side's sending traffic secret forward and
// announces it to the peer, RFC 8446 Section 4.6.3. Set updateRequested
// to ask the peer to ratchet its own sending keys in response.
func (c *Connection) SendKeyUpdate(updateRequested bool) error {
	if !c.negotiatedVersion.Equal(protocol.Version1_3) {
		return NewError(KindUnexpectedMessage, errKeyUpdateRequiresTLS13)
	}

	c.trafficSecretMu.Lock()
	var current []byte
	if c.isClient {
		current = c.clientTrafficSecret
	} else {
		current = c.serverTrafficSecret
	}
	next := c.schedule13.NextGenerationTrafficSecret(current)
	c.trafficSecretMu.Unlock()

	newState, _, err := installTrafficKeys(c.suite, next, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	req := handshake.KeyUpdateNotRequested
	if updateRequested {
		req = handshake.KeyUpdateRequested
	}
	// Sent under the current (pre-ratchet) key; the new key takes effect
	// for everything written after this call returns.
	if err := c.writeContent(&handshake.Handshake{Message: &handshake.MessageKeyUpdate{RequestUpdate: req}}); err != nil {
		return err
	}

	c.trafficSecretMu.Lock()
	if c.isClient {
		c.clientTrafficSecret = next
	} else {
		c.serverTrafficSecret = next
	}
	c.trafficSecretMu.Unlock()
	c.setWriteState(newState)
	return nil
}

// handleNewSessionTicket stores the resumption Session a TLS 1.3 server
// offered in the caller's SessionCache, RFC 8446 Section 4.6.1. Servers
// never receive this message; isClient guards against a misbehaving peer.
func (c *Connection) handleNewSessionTicket(m *handshake.MessageNewSessionTicket) error {
	if !c.isClient {
		return NewError(KindUnexpectedMessage, errUnexpectedNewSessionTicket)
	}
	if c.config.SessionCache == nil || c.session == nil {
		return nil
	}
	sess := c.session.clone()
	sess.Ticket = &Tls13Ticket{
		Ticket:       m.Ticket,
		Lifetime:     m.TicketLifetime,
		AgeAdd:       m.TicketAgeAdd,
		Nonce:        m.TicketNonce,
		IssuedAt:     time.Now(),
		MaxEarlyData: 0,
	}
	c.config.SessionCache.Put(c.config.ServerName, sess)
	return nil
}

// issueSessionTicket sends a NewSessionTicket to a just-handshaken TLS
// 1.3 client and records the Session under the ticket bytes, so a later
// ClientHello presenting that ticket as a pre_shared_key identity can be
// looked up directly in serverPSK's binder check.
func (c *Connection) issueSessionTicket() error {
	if c.config.SessionCache == nil {
		return nil
	}
	nonce := make([]byte, 8)
	if _, err := c.config.rand().Read(nonce); err != nil {
		return NewError(KindInternalError, err)
	}
	ticketOpaque := make([]byte, 32)
	if _, err := c.config.rand().Read(ticketOpaque); err != nil {
		return NewError(KindInternalError, err)
	}
	ageAddRaw := make([]byte, 4)
	if _, err := c.config.rand().Read(ageAddRaw); err != nil {
		return NewError(KindInternalError, err)
	}

	msg := &handshake.MessageNewSessionTicket{
		TicketLifetime: uint32(sessionTicketLifetime.Seconds()),
		TicketAgeAdd:   binary.BigEndian.Uint32(ageAddRaw),
		TicketNonce:    nonce,
		Ticket:         ticketOpaque,
	}
	if err := c.writeContent(&handshake.Handshake{Message: msg}); err != nil {
		return err
	}

	sess := c.session.clone()
	sess.Ticket = &Tls13Ticket{
		Ticket:   ticketOpaque,
		Lifetime: msg.TicketLifetime,
		AgeAdd:   msg.TicketAgeAdd,
		Nonce:    nonce,
		IssuedAt: time.Now(),
	}
	c.config.SessionCache.Put(string(ticketOpaque), sess)
	return nil
}

// handlePostHandshakeHeartbeat answers a heartbeat_request and silently
// drops a heartbeat_response, RFC 6520. This engine never correlates
// responses against an outstanding SendHeartbeatRequest (no payload
// nonce bookkeeping); a caller that needs that does it above this layer.
func (c *Connection) handlePostHandshakeHeartbeat(v *protocol.Heartbeat) error {
	if !c.heartbeatNegotiated {
		return NewError(KindUnexpectedMessage, errHeartbeatNotNegotiated)
	}
	switch v.MessageType {
	case protocol.HeartbeatMessageTypeRequest:
		padding := make([]byte, heartbeatPaddingLength)
		if _, err := c.config.rand().Read(padding); err != nil {
			return NewError(KindInternalError, err)
		}
		resp := &protocol.Heartbeat{
			MessageType: protocol.HeartbeatMessageTypeResponse,
			Payload:     v.Payload,
			Padding:     padding,
		}
		return c.writeContent(resp)
	case protocol.HeartbeatMessageTypeResponse:
		return nil
	default:
		return NewError(KindDecodeError, errInvalidHeartbeatMessageType)
	}
}

// SendHeartbeatRequest sends a heartbeat_request carrying payload, RFC
// 6520 Section 3. paddingLen controls how much random padding accompanies
// it; callers wanting RFC 6520's minimum can pass heartbeatPaddingLength.
// Returns an error if heartbeat was not negotiated.
func (c *Connection) SendHeartbeatRequest(payload []byte, paddingLen int) error {
	if !c.heartbeatNegotiated {
		return NewError(KindUnexpectedMessage, errHeartbeatNotNegotiated)
	}
	padding := make([]byte, paddingLen)
	if _, err := c.config.rand().Read(padding); err != nil {
		return NewError(KindInternalError, err)
	}
	return c.writeContent(&protocol.Heartbeat{
		MessageType: protocol.HeartbeatMessageTypeRequest,
		Payload:     payload,
		Padding:     padding,
	})
}
