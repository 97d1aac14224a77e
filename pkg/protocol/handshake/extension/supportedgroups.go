// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// SupportedGroups is the supported_groups extension, RFC 8446 Section 4.2.7
// (formerly elliptic_curves, RFC 8422 Section 5.1.1).
type SupportedGroups struct {
	Groups []uint16
}

// Type returns the extension Type
func (s SupportedGroups) Type() Type { return TypeSupportedGroups }

// Marshal encodes the SupportedGroups extension
func (s *SupportedGroups) Marshal() ([]byte, error) {
	out := make([]byte, 2+2*len(s.Groups))
	binary.BigEndian.PutUint16(out, uint16(2*len(s.Groups)))
	for i, g := range s.Groups {
		binary.BigEndian.PutUint16(out[2+2*i:], g)
	}
	return out, nil
}

// Unmarshal populates the SupportedGroups extension from encoded data
func (s *SupportedGroups) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return errBufferTooSmall
	}
	listLen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < listLen || listLen%2 != 0 {
		return errBufferTooSmall
	}
	for i := 0; i < listLen; i += 2 {
		s.Groups = append(s.Groups, binary.BigEndian.Uint16(data[i:]))
	}
	return nil
}
