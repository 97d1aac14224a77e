// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "github.com/gotls/tlsengine/pkg/protocol/handshake/extension"

// MessageEncryptedExtensions carries TLS 1.3 ServerHello extensions that
// do not need to be sent in cleartext, RFC 8446 Section 4.3.1. It has no
// TLS 1.2 equivalent.
type MessageEncryptedExtensions struct {
	Extensions []extension.Extension
}

// Type returns the Handshake Type
func (m MessageEncryptedExtensions) Type() Type {
	return TypeEncryptedExtensions
}

// Marshal encodes the Handshake
func (m *MessageEncryptedExtensions) Marshal() ([]byte, error) {
	return extension.Marshal(m.Extensions)
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageEncryptedExtensions) Unmarshal(data []byte) error {
	exts, err := extension.Unmarshal(data, extension.ContextOther)
	if err != nil {
		return err
	}
	m.Extensions = exts
	return nil
}
