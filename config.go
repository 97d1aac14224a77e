// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"io"
	"time"

	"github.com/gotls/tlsengine/pkg/crypto/ciphersuite"
	"github.com/gotls/tlsengine/pkg/crypto/elliptic"
	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/pion/logging"
	"golang.org/x/net/idna"
)

// Transport is the bidirectional byte stream a Connection is built over,
// spec.md §6. Any io.ReadWriteCloser satisfies it; net.Conn does.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// RandomSource is a CSPRNG, spec.md §6. crypto/rand.Reader satisfies it.
type RandomSource interface {
	Read(p []byte) (n int, err error)
}

// CertificateVerifier validates a peer's certificate chain, spec.md §6.
// Certificate path validation itself (chain building, trust anchors,
// revocation) is out of scope for this engine; DefaultCertificateVerifier
// defers entirely to crypto/x509.
type CertificateVerifier interface {
	VerifyChain(rawCerts [][]byte, serverName string, now time.Time) (leaf *x509.Certificate, err error)
}

// SessionCache stores resumption Sessions keyed by an opaque lookup key
// (the ServerName for a client, the ticket bytes for a server),
// spec.md §5's single externally-shared object. Implementations MUST be
// internally synchronized.
type SessionCache interface {
	Get(key string) (*Session, bool)
	Put(key string, s *Session)
	Remove(key string)
}

// Certificate pairs a certificate chain (leaf first) with its private
// key, mirroring crypto/tls.Certificate so callers can reuse existing
// key material.
type Certificate struct {
	Chain      [][]byte
	PrivateKey crypto.Signer
}

// Config is the immutable HandshakeSettings input to a Connection,
// spec.md §3's HandshakeSettings entity.
type Config struct {
	// MinVersion/MaxVersion bound the protocol.Version this engine will
	// negotiate. Zero values default to TLS 1.2..TLS 1.3.
	MinVersion protocol.Version
	MaxVersion protocol.Version

	// CipherSuites restricts the negotiable ciphersuite.ID set. Nil uses
	// ciphersuite.DefaultTLS13/DefaultTLS12.
	CipherSuites []ciphersuite.ID

	// Groups restricts the negotiable elliptic.Group set. Nil uses
	// elliptic.DefaultGroups.
	Groups []elliptic.Group

	// SignatureSchemes restricts the negotiable signature algorithms. Nil
	// uses signaturehash.DefaultSchemes.
	SignatureSchemes []uint16
	// InsecureHashes allows legacy rsa_pkcs1 schemes to be offered/accepted.
	InsecureHashes bool

	// ServerName is the SNI value a client sends, normalized to an
	// A-label via golang.org/x/net/idna before being placed on the wire
	// (RFC 6066 Section 3).
	ServerName string

	// ALPNProtocols is the client's offered application-protocol list,
	// RFC 7301, most-preferred first.
	ALPNProtocols []string

	// ExtendedMasterSecret/EncryptThenMAC control whether this engine
	// offers the matching TLS 1.2 extensions, RFC 7627/RFC 7366.
	ExtendedMasterSecret bool
	EncryptThenMAC       bool

	// Certificates is this side's certificate chain(s); the first whose
	// signature algorithm the peer accepts is used.
	Certificates []Certificate
	// ClientAuth requests (server) or requires sending (client use is
	// implicit) a client certificate.
	ClientAuth bool

	// RootCAs/InsecureSkipVerify configure DefaultCertificateVerifier;
	// ignored if CertificateVerifier is set.
	RootCAs            *x509.CertPool
	InsecureSkipVerify bool
	// CertificateVerifier overrides peer chain validation entirely.
	CertificateVerifier CertificateVerifier

	// PSK and PSKIdentityHint describe out-of-band pre-shared key
	// material, keyed by identity hint. The handshake drivers do not
	// consult either field: the only PSKs this engine uses are derived
	// from session tickets.
	PSK             func(identityHint []byte) ([]byte, error)
	PSKIdentityHint []byte

	// SessionCache enables TLS 1.3 session-ticket resumption; TLS 1.2
	// sessions are not resumed. Nil disables resumption entirely.
	SessionCache SessionCache

	// EnableHeartbeat offers/accepts the heartbeat extension, RFC 6520.
	// Heartbeat negotiation requires both sides to set this; see the
	// Open Question decision in DESIGN.md.
	EnableHeartbeat bool

	// HandshakeTimeout bounds the handshake Dial runs, which has no
	// caller-supplied context.Context; Client and Server use the deadline
	// of the context they are given instead.
	HandshakeTimeout time.Duration

	Rand RandomSource

	LoggerFactory logging.LoggerFactory
}

func (c *Config) rand() io.Reader {
	if c != nil && c.Rand != nil {
		return c.Rand
	}
	return rand.Reader
}

func (c *Config) minVersion() protocol.Version {
	if c != nil && !c.MinVersion.Equal(protocol.Version{}) {
		return c.MinVersion
	}
	return protocol.Version1_2
}

func (c *Config) maxVersion() protocol.Version {
	if c != nil && !c.MaxVersion.Equal(protocol.Version{}) {
		return c.MaxVersion
	}
	return protocol.Version1_3
}

func (c *Config) cipherSuites() []ciphersuite.ID {
	if c != nil && len(c.CipherSuites) > 0 {
		return c.CipherSuites
	}
	return append(append([]ciphersuite.ID{}, ciphersuite.DefaultTLS13...), ciphersuite.DefaultTLS12...)
}

func (c *Config) groups() []elliptic.Group {
	if c != nil && len(c.Groups) > 0 {
		return c.Groups
	}
	return elliptic.DefaultGroups
}

func (c *Config) normalizedServerName() (string, error) {
	if c == nil || c.ServerName == "" {
		return "", nil
	}
	return idna.Lookup.ToASCII(c.ServerName)
}

func (c *Config) handshakeTimeout() time.Duration {
	if c != nil && c.HandshakeTimeout > 0 {
		return c.HandshakeTimeout
	}
	return 30 * time.Second
}

func (c *Config) connectContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.handshakeTimeout())
}

func (c *Config) loggerFactory() logging.LoggerFactory {
	if c != nil && c.LoggerFactory != nil {
		return c.LoggerFactory
	}
	return logging.NewDefaultLoggerFactory()
}

func (c *Config) certificateVerifier() CertificateVerifier {
	if c != nil && c.CertificateVerifier != nil {
		return c.CertificateVerifier
	}
	return &defaultCertificateVerifier{roots: c.rootCAs(), insecureSkipVerify: c != nil && c.InsecureSkipVerify}
}

func (c *Config) rootCAs() *x509.CertPool {
	if c != nil {
		return c.RootCAs
	}
	return nil
}

// defaultCertificateVerifier defers entirely to crypto/x509, spec.md §6's
// explicit instruction that a thin default is enough (full PKI policy is
// a caller concern, not protocol-engine scope).
type defaultCertificateVerifier struct {
	roots              *x509.CertPool
	insecureSkipVerify bool
}

func (v *defaultCertificateVerifier) VerifyChain(rawCerts [][]byte, serverName string, now time.Time) (*x509.Certificate, error) {
	if len(rawCerts) == 0 {
		return nil, errNoCertificates
	}
	leaf, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return nil, err
	}
	if v.insecureSkipVerify {
		return leaf, nil
	}

	intermediates := x509.NewCertPool()
	for _, raw := range rawCerts[1:] {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, err
		}
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		DNSName:       serverName,
	}
	if _, err := leaf.Verify(opts); err != nil {
		return nil, err
	}
	return leaf, nil
}

