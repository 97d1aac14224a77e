// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package protocol

import "errors"

var errInvalidCipherSpec = errors.New("protocol: invalid change_cipher_spec content")
var errBufferTooSmall = errors.New("protocol: buffer too small")
var errHeartbeatPaddingTooShort = errors.New("protocol: heartbeat padding must be at least 16 bytes")
var errHeartbeatMalformedLength = errors.New("protocol: heartbeat payload_length exceeds available padding")
