// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"errors"
	"fmt"

	"github.com/gotls/tlsengine/pkg/protocol/alert"
)

// Kind classifies why a Connection failed, independent of the wire
// alert sent/received for it.
type Kind int

// Kind enums, spec.md's error taxonomy.
const (
	KindDecodeError Kind = iota
	KindUnexpectedMessage
	KindBadRecordMac
	KindRecordOverflow
	KindIllegalParameter
	KindMissingExtension
	KindHandshakeFailure
	KindBadCertificate
	KindCertificateUnknown
	KindProtocolVersion
	KindInsufficientSecurity
	KindInternalError
	KindCloseNotify
)

func (k Kind) String() string {
	switch k {
	case KindDecodeError:
		return "DecodeError"
	case KindUnexpectedMessage:
		return "UnexpectedMessage"
	case KindBadRecordMac:
		return "BadRecordMac"
	case KindRecordOverflow:
		return "RecordOverflow"
	case KindIllegalParameter:
		return "IllegalParameter"
	case KindMissingExtension:
		return "MissingExtension"
	case KindHandshakeFailure:
		return "HandshakeFailure"
	case KindBadCertificate:
		return "BadCertificate"
	case KindCertificateUnknown:
		return "CertificateUnknown"
	case KindProtocolVersion:
		return "ProtocolVersion"
	case KindInsufficientSecurity:
		return "InsufficientSecurity"
	case KindInternalError:
		return "InternalError"
	case KindCloseNotify:
		return "CloseNotify"
	default:
		return "Unknown"
	}
}

// alertForKind maps a Kind to the alert description the engine sends when
// that Kind originates locally, spec.md §7's taxonomy table.
func alertForKind(k Kind) alert.Description {
	switch k {
	case KindDecodeError:
		return alert.DecodeError
	case KindUnexpectedMessage:
		return alert.UnexpectedMessage
	case KindBadRecordMac:
		return alert.BadRecordMac
	case KindRecordOverflow:
		return alert.RecordOverflow
	case KindIllegalParameter:
		return alert.IllegalParameter
	case KindMissingExtension:
		return alert.MissingExtension
	case KindHandshakeFailure:
		return alert.HandshakeFailure
	case KindBadCertificate:
		return alert.BadCertificate
	case KindCertificateUnknown:
		return alert.CertificateUnknown
	case KindProtocolVersion:
		return alert.ProtocolVersion
	case KindInsufficientSecurity:
		return alert.InsufficientSecurity
	case KindCloseNotify:
		return alert.CloseNotify
	default:
		return alert.InternalError
	}
}

// Error is the single typed error this engine ever surfaces to a caller
// for a handshake or connection failure, grounded on the teacher's
// alertError wrapping pattern (conn.go's IsFatalOrCloseNotify checks)
// generalized from "one fixed alert type" to the full Kind taxonomy.
type Error struct {
	Kind  Kind
	Alert alert.Alert
	Err   error
}

// NewError builds an Error for a locally detected condition, deriving the
// alert that would be (or was) sent for it.
func NewError(kind Kind, cause error) *Error {
	level := alert.Fatal
	if kind == KindCloseNotify {
		level = alert.Warning
	}
	return &Error{
		Kind:  kind,
		Alert: alert.Alert{Level: level, Description: alertForKind(kind)},
		Err:   cause,
	}
}

// NewErrorFromAlert builds an Error for an alert received from the peer.
func NewErrorFromAlert(a alert.Alert) *Error {
	return &Error{Kind: kindFromAlert(a.Description), Alert: a}
}

func kindFromAlert(d alert.Description) Kind { //nolint:cyclop
	switch d {
	case alert.CloseNotify:
		return KindCloseNotify
	case alert.UnexpectedMessage:
		return KindUnexpectedMessage
	case alert.BadRecordMac:
		return KindBadRecordMac
	case alert.RecordOverflow:
		return KindRecordOverflow
	case alert.IllegalParameter:
		return KindIllegalParameter
	case alert.MissingExtension:
		return KindMissingExtension
	case alert.HandshakeFailure:
		return KindHandshakeFailure
	case alert.BadCertificate:
		return KindBadCertificate
	case alert.CertificateUnknown:
		return KindCertificateUnknown
	case alert.ProtocolVersion:
		return KindProtocolVersion
	case alert.InsufficientSecurity:
		return KindInsufficientSecurity
	case alert.DecodeError:
		return KindDecodeError
	default:
		return KindInternalError
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tlsengine: %s (%s): %v", e.Kind, e.Alert.Description, e.Err)
	}
	return fmt.Sprintf("tlsengine: %s (%s)", e.Kind, e.Alert.Description)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatalOrCloseNotify reports whether this Error terminates the
// connection: any fatal-level alert, or a close_notify at any level.
func (e *Error) IsFatalOrCloseNotify() bool {
	return e.Alert.IsFatalOrCloseNotify()
}

// TransportError wraps a failure returned by the caller-supplied
// Transport, distinguished from protocol errors so callers can retry
// transport-layer conditions without misreading them as a handshake
// failure.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("tlsengine: transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

func netError(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Err: err}
}

var (
	errBufferTooSmall                = errors.New("tlsengine: buffer too small")
	errNoConfigProvided               = errors.New("tlsengine: no Config provided")
	errNilTransport                   = errors.New("tlsengine: nil Transport")
	errHandshakeInProgress            = errors.New("tlsengine: handshake has not completed")
	errConnClosed                     = errors.New("tlsengine: connection closed by user")
	errDeadlineExceeded               = errors.New("tlsengine: deadline exceeded")
	errSequenceNumberOverflow         = errors.New("tlsengine: sequence number would overflow")
	errApplicationDataBeforeFinished  = errors.New("tlsengine: application data received before handshake finished")
	errUnhandledContentType           = errors.New("tlsengine: unhandled record content type")
	errNoCertificates                 = errors.New("tlsengine: no certificate configured")
	errCertificateRequired            = errors.New("tlsengine: peer requires a client certificate")
	errSecondHelloRetryRequest        = errors.New("tlsengine: received a second HelloRetryRequest")
	errNoSupportedVersion             = errors.New("tlsengine: no mutually supported protocol version")
	errNoSupportedCipherSuite         = errors.New("tlsengine: no mutually supported cipher suite")
	errNoSupportedGroup               = errors.New("tlsengine: no mutually supported key-exchange group")
	errInvalidBinder                  = errors.New("tlsengine: pre_shared_key binder verification failed")
	errUnexpectedKeyUpdate            = errors.New("tlsengine: KeyUpdate received before handshake finished")
	errDowngradeDetected              = errors.New("tlsengine: downgrade protection sentinel present in ServerHello.random")
	errHeartbeatNotNegotiated         = errors.New("tlsengine: heartbeat received but not negotiated")
	errNoClientCertificate            = errors.New("tlsengine: server requires a client certificate but none is configured")
	errUnexpectedPostHandshakeMessage = errors.New("tlsengine: unexpected post-handshake handshake message")
	errKeyUpdateRequiresTLS13         = errors.New("tlsengine: KeyUpdate is a TLS 1.3-only message")
	errUnexpectedNewSessionTicket     = errors.New("tlsengine: NewSessionTicket received by a non-client connection")
	errInvalidHeartbeatMessageType    = errors.New("tlsengine: invalid heartbeat message type")
	errClientCertVerifyFailed         = errors.New("tlsengine: TLS 1.2 client CertificateVerify signature is invalid")
)

// ErrConnClosed is wrapped in the *Error a handshake returns when the read
// loop stops before the driver receives the message it is waiting for.
// Read and Write after Close do not return it; they surface the
// transport's own error as a *TransportError. Exported so callers can
// errors.Is against it.
var ErrConnClosed = errConnClosed
