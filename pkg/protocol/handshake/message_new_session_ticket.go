// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/gotls/tlsengine/pkg/protocol/handshake/extension"
)

// MessageNewSessionTicket is a post-handshake message a TLS 1.3 server
// sends to establish a resumption PSK, RFC 8446 Section 4.6.1. The
// disk/store side of a ticket (spec.md's explicit non-goal) is the
// SessionCache collaborator's job; this type only carries the wire
// fields.
type MessageNewSessionTicket struct {
	TicketLifetime uint32
	TicketAgeAdd   uint32
	TicketNonce    []byte
	Ticket         []byte
	Extensions     []extension.Extension
}

// Type returns the Handshake Type
func (m MessageNewSessionTicket) Type() Type {
	return TypeNewSessionTicket
}

// Marshal encodes the Handshake
func (m *MessageNewSessionTicket) Marshal() ([]byte, error) {
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out, m.TicketLifetime)
	binary.BigEndian.PutUint32(out[4:], m.TicketAgeAdd)

	out = append(out, byte(len(m.TicketNonce)))
	out = append(out, m.TicketNonce...)

	ticketLen := make([]byte, 2)
	binary.BigEndian.PutUint16(ticketLen, uint16(len(m.Ticket)))
	out = append(out, ticketLen...)
	out = append(out, m.Ticket...)

	extRaw, err := extension.Marshal(m.Extensions)
	if err != nil {
		return nil, err
	}
	return append(out, extRaw...), nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageNewSessionTicket) Unmarshal(data []byte) error {
	if len(data) < 9 {
		return errBufferTooSmall
	}
	m.TicketLifetime = binary.BigEndian.Uint32(data)
	m.TicketAgeAdd = binary.BigEndian.Uint32(data[4:])

	nonceLen := int(data[8])
	offset := 9
	if len(data) < offset+nonceLen {
		return errBufferTooSmall
	}
	m.TicketNonce = append([]byte{}, data[offset:offset+nonceLen]...)
	offset += nonceLen

	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	ticketLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+ticketLen {
		return errBufferTooSmall
	}
	m.Ticket = append([]byte{}, data[offset:offset+ticketLen]...)
	offset += ticketLen

	if len(data) <= offset {
		m.Extensions = []extension.Extension{}
		return nil
	}
	exts, err := extension.Unmarshal(data[offset:], extension.ContextOther)
	if err != nil {
		return err
	}
	m.Extensions = exts
	return nil
}
