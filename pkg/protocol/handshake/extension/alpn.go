// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// ALPN is the application_layer_protocol_negotiation extension, RFC 7301.
type ALPN struct {
	ProtocolNameList []string
}

// Type returns the extension Type
func (a ALPN) Type() Type { return TypeALPN }

// Marshal encodes the ALPN extension
func (a *ALPN) Marshal() ([]byte, error) {
	var list []byte
	for _, p := range a.ProtocolNameList {
		list = append(list, byte(len(p)))
		list = append(list, p...)
	}
	out := make([]byte, 2+len(list))
	binary.BigEndian.PutUint16(out, uint16(len(list)))
	copy(out[2:], list)
	return out, nil
}

// Unmarshal populates the ALPN extension from encoded data
func (a *ALPN) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return errBufferTooSmall
	}
	listLen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < listLen {
		return errBufferTooSmall
	}
	data = data[:listLen]
	for len(data) > 0 {
		l := int(data[0])
		data = data[1:]
		if len(data) < l {
			return errBufferTooSmall
		}
		a.ProtocolNameList = append(a.ProtocolNameList, string(data[:l]))
		data = data[l:]
	}
	return nil
}
