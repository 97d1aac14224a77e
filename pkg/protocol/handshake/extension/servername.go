// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

const serverNameTypeHostName = 0

// ServerName is the SNI extension, RFC 6066 Section 3. Only the
// host_name variant is defined on the wire; the engine's caller is
// expected to have already normalized the name to an A-label (see
// golang.org/x/net/idna usage in the Config layer) before it is placed
// here.
type ServerName struct {
	HostName string
}

// Type returns the extension Type
func (s ServerName) Type() Type { return TypeServerName }

// Marshal encodes the ServerName extension
func (s *ServerName) Marshal() ([]byte, error) {
	if s.HostName == "" {
		return []byte{}, nil
	}
	name := []byte(s.HostName)
	entry := make([]byte, 3+len(name))
	entry[0] = serverNameTypeHostName
	binary.BigEndian.PutUint16(entry[1:], uint16(len(name)))
	copy(entry[3:], name)

	out := make([]byte, 2+len(entry))
	binary.BigEndian.PutUint16(out, uint16(len(entry)))
	copy(out[2:], entry)
	return out, nil
}

// Unmarshal populates the ServerName extension from encoded data
func (s *ServerName) Unmarshal(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) < 2 {
		return errBufferTooSmall
	}
	listLen := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < listLen {
		return errBufferTooSmall
	}
	for len(data) > 0 {
		if len(data) < 3 {
			return errBufferTooSmall
		}
		nameType := data[0]
		l := int(binary.BigEndian.Uint16(data[1:]))
		data = data[3:]
		if len(data) < l {
			return errBufferTooSmall
		}
		if nameType == serverNameTypeHostName {
			s.HostName = string(data[:l])
		}
		data = data[l:]
	}
	return nil
}
