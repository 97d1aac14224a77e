// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// PSKIdentity is one offered identity, RFC 8446 Section 4.2.11.
type PSKIdentity struct {
	Identity            []byte
	ObfuscatedTicketAge uint32
}

// PreSharedKey is the pre_shared_key extension, RFC 8446 Section 4.2.11.
// Its wire shape differs between ClientHello (identities plus binders,
// always the last extension) and ServerHello (a single selected-identity
// index), hence the fromServerHello flag threaded in from the extension
// Context.
type PreSharedKey struct {
	fromServerHello bool

	Identities []PSKIdentity // ClientHello form
	Binders    [][]byte      // ClientHello form

	SelectedIdentity uint16 // ServerHello form
}

// NewPreSharedKeySelected builds the ServerHello form of pre_shared_key:
// the index into the ClientHello's offered identities that the server
// accepted.
func NewPreSharedKeySelected(index uint16) *PreSharedKey {
	return &PreSharedKey{fromServerHello: true, SelectedIdentity: index}
}

// Type returns the extension Type
func (p PreSharedKey) Type() Type { return TypePreSharedKey }

// Marshal encodes the PreSharedKey extension
func (p *PreSharedKey) Marshal() ([]byte, error) {
	if p.fromServerHello {
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, p.SelectedIdentity)
		return out, nil
	}

	var idBody []byte
	for _, id := range p.Identities {
		entry := make([]byte, 2+len(id.Identity)+4)
		binary.BigEndian.PutUint16(entry, uint16(len(id.Identity)))
		copy(entry[2:], id.Identity)
		binary.BigEndian.PutUint32(entry[2+len(id.Identity):], id.ObfuscatedTicketAge)
		idBody = append(idBody, entry...)
	}

	var binderBody []byte
	for _, b := range p.Binders {
		binderBody = append(binderBody, byte(len(b)))
		binderBody = append(binderBody, b...)
	}

	out := make([]byte, 0, 2+len(idBody)+2+len(binderBody))
	idLen := make([]byte, 2)
	binary.BigEndian.PutUint16(idLen, uint16(len(idBody)))
	out = append(out, idLen...)
	out = append(out, idBody...)
	binderLen := make([]byte, 2)
	binary.BigEndian.PutUint16(binderLen, uint16(len(binderBody)))
	out = append(out, binderLen...)
	out = append(out, binderBody...)
	return out, nil
}

// Unmarshal populates the PreSharedKey extension from encoded data
func (p *PreSharedKey) Unmarshal(data []byte) error { //nolint:cyclop
	if p.fromServerHello {
		if len(data) < 2 {
			return errBufferTooSmall
		}
		p.SelectedIdentity = binary.BigEndian.Uint16(data)
		return nil
	}

	if len(data) < 2 {
		return errBufferTooSmall
	}
	idListLen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < idListLen {
		return errBufferTooSmall
	}
	idData := data[:idListLen]
	data = data[idListLen:]

	for len(idData) > 0 {
		if len(idData) < 2 {
			return errBufferTooSmall
		}
		l := int(binary.BigEndian.Uint16(idData))
		idData = idData[2:]
		if len(idData) < l+4 {
			return errBufferTooSmall
		}
		id := PSKIdentity{
			Identity:            idData[:l],
			ObfuscatedTicketAge: binary.BigEndian.Uint32(idData[l:]),
		}
		p.Identities = append(p.Identities, id)
		idData = idData[l+4:]
	}

	if len(data) < 2 {
		return errBufferTooSmall
	}
	binderListLen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < binderListLen {
		return errBufferTooSmall
	}
	binderData := data[:binderListLen]
	for len(binderData) > 0 {
		l := int(binderData[0])
		binderData = binderData[1:]
		if len(binderData) < l {
			return errBufferTooSmall
		}
		p.Binders = append(p.Binders, binderData[:l])
		binderData = binderData[l:]
	}
	return nil
}
