// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package recordlayer

import "github.com/gotls/tlsengine/pkg/protocol"

// InnerPlaintext is the structure TLS 1.3 AEAD-protects in place of the
// plaintext record body directly: TLSInnerPlaintext = content ||
// ContentType || zeros, RFC 8446 Section 5.2. The outer record header
// always carries ContentType application_data and Version 0x0303 once
// traffic keys are installed (Section 5.1); the real content type travels
// inside here.
type InnerPlaintext struct {
	Content  []byte
	RealType protocol.ContentType
	// Zeros is the number of zero padding bytes appended after RealType,
	// used to obscure the true length of Content.
	Zeros uint
}

// Marshal encodes the InnerPlaintext
func (i *InnerPlaintext) Marshal() ([]byte, error) {
	out := make([]byte, len(i.Content)+1+int(i.Zeros))
	copy(out, i.Content)
	out[len(i.Content)] = byte(i.RealType)
	return out, nil
}

// Unmarshal populates the InnerPlaintext from encoded data, stripping
// trailing zero padding to recover the real content type and content.
func (i *InnerPlaintext) Unmarshal(data []byte) error {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	if end == 0 {
		return errEmptyInnerPlaintext
	}
	i.RealType = protocol.ContentType(data[end-1])
	i.Content = append([]byte{}, data[:end-1]...)
	i.Zeros = uint(len(data) - end)
	return nil
}
