// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package recordlayer

import (
	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/gotls/tlsengine/pkg/protocol/alert"
	"github.com/gotls/tlsengine/pkg/protocol/handshake"
)

// RecordLayer which handles all data transport.
// The record layer is assumed to always have a reliable underlying
// transport such that records arrive in order, RFC 5246 Section 6.2.
type RecordLayer struct {
	Header  Header
	Content protocol.Content
}

// Marshal encodes the RecordLayer. The Header's ContentLen is derived
// from the marshaled Content, matching RFC 5246 Section 6.2.1's
// length-prefixed framing.
func (r *RecordLayer) Marshal() ([]byte, error) {
	if r.Content == nil {
		return nil, errContentUnset
	}

	contentRaw, err := r.Content.Marshal()
	if err != nil {
		return nil, err
	}

	r.Header.ContentLen = uint16(len(contentRaw))
	headerRaw, err := r.Header.Marshal()
	if err != nil {
		return nil, err
	}

	return append(headerRaw, contentRaw...), nil
}

// Unmarshal populates the RecordLayer from encoded data. The caller is
// expected to have already gathered exactly Header.Size()+Header.ContentLen
// bytes (the defragmenter/reader's job on a stream transport); Unmarshal
// dispatches to the right Content type by the header's ContentType.
func (r *RecordLayer) Unmarshal(data []byte) error {
	if err := r.Header.Unmarshal(data); err != nil {
		return err
	}

	body := data[r.Header.Size():]
	if len(body) < int(r.Header.ContentLen) {
		return ErrInvalidPacketLength
	}
	body = body[:r.Header.ContentLen]

	switch r.Header.ContentType {
	case protocol.ContentTypeChangeCipherSpec:
		r.Content = &protocol.ChangeCipherSpec{}
	case protocol.ContentTypeAlert:
		r.Content = &alert.Alert{}
	case protocol.ContentTypeHandshake:
		r.Content = &handshake.Handshake{}
	case protocol.ContentTypeApplicationData:
		r.Content = &protocol.ApplicationData{}
	case protocol.ContentTypeHeartbeat:
		r.Content = &protocol.Heartbeat{}
	default:
		return ErrUnsupportedContentType
	}

	return r.Content.Unmarshal(body)
}
