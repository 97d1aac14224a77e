// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package recordlayer

import "errors"

var (
	// ErrInvalidPacketLength is returned when a packet is too small to
	// contain a valid record header.
	ErrInvalidPacketLength = errors.New("recordlayer: packet is too short to contain a valid header")
	// ErrRecordOverflow is returned when a record's declared content
	// length exceeds the maximum permitted by RFC 8446 Section 5.1.
	ErrRecordOverflow = errors.New("recordlayer: record length exceeds maximum")
	// ErrUnsupportedContentType is returned when a record's content type
	// is not one recognized by this engine.
	ErrUnsupportedContentType = errors.New("recordlayer: unsupported content type")

	errContentUnset        = errors.New("recordlayer: content not set")
	errEmptyInnerPlaintext  = errors.New("recordlayer: TLSInnerPlaintext has no non-zero content type byte")
)
