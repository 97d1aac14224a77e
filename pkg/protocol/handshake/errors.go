// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "errors"

var (
	errBufferTooSmall           = errors.New("handshake: buffer too small")
	errMessageUnset             = errors.New("handshake: message not set")
	errInvalidHandshakeType     = errors.New("handshake: invalid or unsupported message type")
	errCipherSuiteUnset         = errors.New("handshake: cipher suite not set")
	errCompressionMethodUnset   = errors.New("handshake: compression method not set")
	errInvalidCompressionMethod = errors.New("handshake: invalid compression method")
	errInvalidExtensionLength   = errors.New("handshake: invalid extension length")
	errInvalidMessageLength     = errors.New("handshake: message must carry no body")
	errUnsupportedCurveType     = errors.New("handshake: unsupported ECCurveType")
	errInvalidKeyUpdateRequest  = errors.New("handshake: invalid KeyUpdate request_update value")
)
