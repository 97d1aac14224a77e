// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

// MessageServerHelloDone signals the end of the TLS 1.2 server's first
// handshake flight (ServerHello ... ServerHelloDone), RFC 5246 Section
// 7.4.5. It carries no body. TLS 1.3 has no equivalent message; the end
// of the server's flight there is implicit in EncryptedExtensions/
// Certificate/CertificateVerify/Finished ordering.
type MessageServerHelloDone struct{}

// Type returns the Handshake Type
func (m MessageServerHelloDone) Type() Type {
	return TypeServerHelloDone
}

// Marshal encodes the Handshake
func (m *MessageServerHelloDone) Marshal() ([]byte, error) {
	return []byte{}, nil
}

// Unmarshal populates the Handshake from encoded data
func (m *MessageServerHelloDone) Unmarshal(data []byte) error {
	if len(data) != 0 {
		return errInvalidMessageLength
	}
	return nil
}
