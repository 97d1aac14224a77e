// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"sync"
	"time"

	"github.com/gotls/tlsengine/pkg/crypto/ciphersuite"
	"github.com/gotls/tlsengine/pkg/protocol"
)

// Session is resumption material produced at the end of a successful
// handshake, spec.md §3's Session entity. A Connection clones the Session
// it fetches from a SessionCache before ever mutating it, per spec.md
// §5's shared-resource policy.
type Session struct {
	Version      protocol.Version
	CipherSuite  ciphersuite.ID
	ALPNProtocol string

	ExtendedMasterSecret bool
	EncryptThenMAC       bool

	// MasterSecret is the TLS 1.2 master_secret, or the TLS 1.3
	// resumption_master_secret the ticket's PSK is derived from.
	MasterSecret []byte

	PeerCertificates [][]byte

	// Ticket is non-nil for a TLS 1.3 session; TLS12SessionID is
	// non-empty for a TLS 1.2 session.
	Ticket         *Tls13Ticket
	TLS12SessionID []byte

	// EarlyDataAccepted is always false: this engine gates 0-RTT at the
	// server (always rejects early data) rather than implementing a
	// 0-RTT data-plane path, spec.md's explicit "implementations MAY
	// reject always" 0-RTT open question.
	EarlyDataAccepted bool

	CreatedAt time.Time
}

// Resumable reports whether this Session still has usable resumption
// material attached (spec.md scenario 4's session.resumable).
func (s *Session) Resumable() bool {
	if s == nil {
		return false
	}
	return s.Ticket != nil || len(s.TLS12SessionID) > 0
}

// clone returns a deep-enough copy for a Connection to mutate without
// disturbing what is stored in a shared SessionCache, spec.md §5: "The
// engine never mutates a Session fetched from the cache in place; it
// clones before modification."
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.MasterSecret = append([]byte{}, s.MasterSecret...)
	out.PeerCertificates = append([][]byte{}, s.PeerCertificates...)
	if s.Ticket != nil {
		t := *s.Ticket
		t.Ticket = append([]byte{}, s.Ticket.Ticket...)
		t.Nonce = append([]byte{}, s.Ticket.Nonce...)
		out.Ticket = &t
	}
	return &out
}

// Ticket is a TLS 1.2 session-ticket-like opaque identifier (RFC 5077);
// this engine never persists one itself (disk persistence is a non-goal)
// but a caller's SessionCache may.
type Ticket struct {
	Opaque    []byte
	CreatedAt time.Time
}

// Tls13Ticket is the resumption material carried by a TLS 1.3
// NewSessionTicket message, RFC 8446 Section 4.6.1.
type Tls13Ticket struct {
	Ticket         []byte
	Lifetime       uint32
	AgeAdd         uint32
	Nonce          []byte
	IssuedAt       time.Time
	MaxEarlyData   uint32
}

// Expired reports whether this ticket has exceeded its advertised
// lifetime, spec.md invariant 5(a).
func (t *Tls13Ticket) Expired(now time.Time) bool {
	if t == nil {
		return true
	}
	return now.After(t.IssuedAt.Add(time.Duration(t.Lifetime) * time.Second))
}

// mapSessionCache is the built-in in-memory SessionCache for
// same-process resumption (e.g. tests). It is not installed
// automatically: a Config whose SessionCache is nil has resumption
// disabled.
type mapSessionCache struct {
	mu sync.Mutex
	m  map[string]*Session
}

// NewMapSessionCache returns an unbounded in-memory SessionCache.
func NewMapSessionCache() SessionCache {
	return &mapSessionCache{m: make(map[string]*Session)}
}

func (c *mapSessionCache) Get(key string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[key]
	return s, ok
}

func (c *mapSessionCache) Put(key string, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = s
}

func (c *mapSessionCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}
