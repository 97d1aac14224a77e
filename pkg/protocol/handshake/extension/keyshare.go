// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// KeyShareEntry is one (group, key_exchange) pair, RFC 8446 Section 4.2.8.
type KeyShareEntry struct {
	Group       uint16
	KeyExchange []byte
}

// KeyShare is the key_share extension, RFC 8446 Section 4.2.8. ClientHello
// carries a list of entries, ServerHello/HelloRetryRequest carries exactly
// one (the HRR form reuses ServerHello's single-entry shape, a
// group-only selection with no key_exchange bytes, distinguished by the
// caller via the HelloRetryRequest marker on the enclosing Random).
type KeyShare struct {
	fromServerHello bool

	ClientShares []KeyShareEntry // ClientHello form
	ServerShare  KeyShareEntry   // ServerHello form
	SelectedGroupOnly bool       // HelloRetryRequest form: ServerShare.Group only
}

// NewKeyShareServerHello builds the ServerHello form of key_share: one
// entry, the server's chosen group and key_exchange.
func NewKeyShareServerHello(group uint16, keyExchange []byte) *KeyShare {
	return &KeyShare{fromServerHello: true, ServerShare: KeyShareEntry{Group: group, KeyExchange: keyExchange}}
}

// NewKeyShareHelloRetryRequest builds the HelloRetryRequest form of
// key_share: the group-only selection the client must resend a share for.
func NewKeyShareHelloRetryRequest(group uint16) *KeyShare {
	return &KeyShare{fromServerHello: true, SelectedGroupOnly: true, ServerShare: KeyShareEntry{Group: group}}
}

// Type returns the extension Type
func (k KeyShare) Type() Type { return TypeKeyShare }

// Marshal encodes the KeyShare extension
func (k *KeyShare) Marshal() ([]byte, error) {
	if k.fromServerHello {
		if k.SelectedGroupOnly {
			out := make([]byte, 2)
			binary.BigEndian.PutUint16(out, k.ServerShare.Group)
			return out, nil
		}
		return marshalKeyShareEntry(k.ServerShare), nil
	}
	var body []byte
	for _, e := range k.ClientShares {
		body = append(body, marshalKeyShareEntry(e)...)
	}
	out := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	copy(out[2:], body)
	return out, nil
}

func marshalKeyShareEntry(e KeyShareEntry) []byte {
	out := make([]byte, 4+len(e.KeyExchange))
	binary.BigEndian.PutUint16(out, e.Group)
	binary.BigEndian.PutUint16(out[2:], uint16(len(e.KeyExchange)))
	copy(out[4:], e.KeyExchange)
	return out
}

// Unmarshal populates the KeyShare extension from encoded data
func (k *KeyShare) Unmarshal(data []byte) error {
	if k.fromServerHello {
		if len(data) == 2 {
			k.SelectedGroupOnly = true
			k.ServerShare.Group = binary.BigEndian.Uint16(data)
			return nil
		}
		e, _, err := unmarshalKeyShareEntry(data)
		if err != nil {
			return err
		}
		k.ServerShare = e
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
	data = data[:listLen]
	for len(data) > 0 {
		e, rest, err := unmarshalKeyShareEntry(data)
		if err != nil {
			return err
		}
		k.ClientShares = append(k.ClientShares, e)
		data = rest
	}
	return nil
}

func unmarshalKeyShareEntry(data []byte) (KeyShareEntry, []byte, error) {
	if len(data) < 4 {
		return KeyShareEntry{}, nil, errBufferTooSmall
	}
	group := binary.BigEndian.Uint16(data)
	l := int(binary.BigEndian.Uint16(data[2:]))
	data = data[4:]
	if len(data) < l {
		return KeyShareEntry{}, nil, errBufferTooSmall
	}
	return KeyShareEntry{Group: group, KeyExchange: data[:l]}, data[l:], nil
}
