// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"context"
	"crypto"
	"io"
	"sync"
	"time"

	"github.com/gotls/tlsengine/pkg/crypto/ciphersuite"
	"github.com/gotls/tlsengine/pkg/crypto/keyschedule"
	"github.com/gotls/tlsengine/pkg/crypto/signaturehash"
	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/gotls/tlsengine/pkg/protocol/alert"
	"github.com/gotls/tlsengine/pkg/protocol/handshake"
	"github.com/gotls/tlsengine/pkg/protocol/recordlayer"
	"github.com/pion/logging"
	"github.com/pion/transport/v3/deadline"
)

// Connection is a single TLS connection layered over a caller-supplied
// Transport, spec.md §3's Connection entity. It owns the record layer, the
// running transcript hash (during the handshake), the negotiated Session,
// and a settings snapshot taken from the Config it was built with.
type Connection struct {
	transport Transport
	config    *Config
	isClient  bool
	log       logging.LeveledLogger

	fragment *fragmentBuffer

	// stateMu guards readState/writeState/ccsGatesReadKey: the read loop
	// goroutine and the handshake-driver goroutine both touch them (the
	// driver installs keys as the handshake derives them, the read loop
	// consults readState on every incoming record), so plain field
	// access would race between the two. Mirrors the teacher's lock
	// sync.RWMutex in conn.go, used for the same class of cross-goroutine
	// connection state.
	stateMu    sync.Mutex
	readState  *ConnState
	writeState *ConnState

	// ccsGatesReadKey and pendingReadStateCh implement TLS 1.2's
	// requirement that the record immediately following a peer's
	// ChangeCipherSpec is the first one protected under the new key
	// (RFC 5246 Section 7.1): the driver computes the key but must not
	// let the read loop start using it until the read loop has actually
	// observed the peer's ChangeCipherSpec on the wire, since that
	// record itself always arrives unencrypted.
	ccsGatesReadKey    bool
	pendingReadStateCh chan *ConnState

	negotiatedVersion protocol.Version
	suite             ciphersuite.Suite
	alpnProtocol      string
	peerCertificates  [][]byte
	session           *Session

	// schedule13 is kept alive past the handshake (TLS 1.3 only) so a
	// post-handshake KeyUpdate can ratchet the traffic secrets via
	// keyschedule.Schedule.NextGenerationTrafficSecret.
	schedule13             *keyschedule.Schedule
	resumptionMasterSecret []byte

	// trafficSecretMu guards the current-generation traffic secrets a
	// KeyUpdate ratchets forward, since a KeyUpdate can be triggered by
	// either the read path (peer-initiated) or a caller goroutine calling
	// SendKeyUpdate concurrently with Read.
	trafficSecretMu     sync.Mutex
	clientTrafficSecret []byte
	serverTrafficSecret []byte

	heartbeatNegotiated bool

	// clientCertForVerify/clientCertKey/clientCertAlg carry the client
	// certificate chosen for a TLS 1.2 CertificateRequest across the gap
	// between ClientKeyExchange (where the master secret becomes
	// available) and the CertificateVerify that must follow it, since
	// RFC 5246 Section 7.4.8 signs the transcript only after the key
	// exchange message has been hashed in.
	clientCertForVerify bool
	clientCertKey       crypto.Signer
	clientCertAlg       signaturehash.Algorithm

	handshakeOnce    sync.Once
	handshakeErr     error
	handshakeDone    chan struct{}
	handshakeLoopsWG sync.WaitGroup

	closeLock sync.Mutex
	closed    bool

	readLock  sync.Mutex
	writeLock sync.Mutex

	readDeadline  *deadline.Deadline
	writeDeadline *deadline.Deadline

	// appDataBuf holds application_data plaintext decoded from the most
	// recent record that Read has not yet fully drained to the caller.
	appDataBuf []byte

	// pendingContent holds Content values already decoded from records
	// but not yet consumed by readContent's caller. A single record's
	// plaintext can yield zero complete handshake messages (still
	// fragmented), one, or several coalesced ones, so decodeRecord
	// queues here instead of returning directly.
	pendingContent []protocol.Content

	handshakeLog *HandshakeLog
}

func newConnection(transport Transport, config *Config, isClient bool) (*Connection, error) {
	if transport == nil {
		return nil, errNilTransport
	}
	if config == nil {
		config = &Config{}
	}
	return &Connection{
		transport:          transport,
		config:             config,
		isClient:           isClient,
		log:                config.loggerFactory().NewLogger("tlsengine"),
		fragment:           newFragmentBuffer(),
		handshakeDone:      make(chan struct{}),
		readDeadline:       deadline.New(),
		writeDeadline:      deadline.New(),
		pendingReadStateCh: make(chan *ConnState, 1),
	}, nil
}

// Client establishes a TLS connection over transport acting as the client,
// blocking until the handshake completes or ctx is done.
func Client(ctx context.Context, transport Transport, config *Config) (*Connection, error) {
	c, err := newConnection(transport, config, true)
	if err != nil {
		return nil, err
	}
	return c, c.handshake(ctx)
}

// Server establishes a TLS connection over transport acting as the server.
func Server(ctx context.Context, transport Transport, config *Config) (*Connection, error) {
	c, err := newConnection(transport, config, false)
	if err != nil {
		return nil, err
	}
	return c, c.handshake(ctx)
}

// Dial is a convenience combining Client with the Config's own handshake
// timeout when the caller has no context of its own.
func Dial(transport Transport, config *Config) (*Connection, error) {
	if config == nil {
		return nil, errNoConfigProvided
	}
	ctx, cancel := config.connectContext()
	defer cancel()
	return Client(ctx, transport, config)
}

// handshakeItem is one thing the read loop hands the FSM: a handshake
// message, a received alert, or a terminal error. hs is carried whole
// (not just hs.Message) because Certificate/CertificateRequest need
// hs.RawBody reparsed once the negotiated version is known.
type handshakeItem struct {
	hs  *handshake.Handshake
	alt *alert.Alert
	err error
}

// handshake drives the negotiation to completion. Grounded in the
// teacher's Conn.handshake: one goroutine pumps raw transport bytes into
// complete handshake-layer items (handshake messages, alerts), the other
// drives the FSM that consumes them and writes responses. Both are joined
// via handshakeLoopsWG before handshake returns, so ctx cancellation
// always leaves the Connection in a well-defined state.
func (c *Connection) handshake(ctx context.Context) error {
	c.handshakeOnce.Do(func() {
		items := make(chan handshakeItem, 4)

		c.handshakeLoopsWG.Add(2)
		go func() {
			defer c.handshakeLoopsWG.Done()
			defer close(items)
			c.handshakeReadLoop(ctx, items)
		}()

		go func() {
			defer c.handshakeLoopsWG.Done()
			var err error
			if c.isClient {
				err = c.runClientHandshake(ctx, items)
			} else {
				err = c.runServerHandshake(ctx, items)
			}
			c.handshakeErr = err
			close(c.handshakeDone)
		}()

		select {
		case <-c.handshakeDone:
		case <-ctx.Done():
			c.handshakeErr = netError(ctx.Err())
			_ = c.transport.Close()
		}
		c.handshakeLoopsWG.Wait()
	})
	return c.handshakeErr
}

func (c *Connection) handshakeReadLoop(ctx context.Context, items chan<- handshakeItem) {
	for {
		content, err := c.readContent()
		if err != nil {
			select {
			case items <- handshakeItem{err: err}:
			case <-ctx.Done():
			}
			return
		}
		switch v := content.(type) {
		case *handshake.Handshake:
			select {
			case items <- handshakeItem{hs: v}:
			case <-ctx.Done():
				return
			}
		case *alert.Alert:
			select {
			case items <- handshakeItem{alt: v}:
			case <-ctx.Done():
			}
			return
		case *protocol.ChangeCipherSpec:
			// In TLS 1.3 this is purely a middlebox-compatibility
			// signal and carries no state of its own. In TLS 1.2 it
			// marks the exact boundary at which the peer's records
			// start being protected under the key the driver derived;
			// armCCSGate arranges for that key to become active here,
			// not whenever the driver happens to finish deriving it.
			c.stateMu.Lock()
			gated := c.ccsGatesReadKey
			c.stateMu.Unlock()
			if gated {
				newState := <-c.pendingReadStateCh
				c.stateMu.Lock()
				c.readState = newState
				c.ccsGatesReadKey = false
				c.stateMu.Unlock()
			}
			continue
		default:
			select {
			case items <- handshakeItem{err: NewError(KindUnexpectedMessage, errUnhandledContentType)}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// readContent reads and decrypts (once keys are installed) exactly one
// Content, growing the fragment buffer across transport reads as a
// record may span multiple stream reads and a handshake message may
// span multiple records.
func (c *Connection) readContent() (protocol.Content, error) {
	for {
		if len(c.pendingContent) > 0 {
			item := c.pendingContent[0]
			c.pendingContent = c.pendingContent[1:]
			return item, nil
		}
		if raw, ok := c.fragment.popRecord(); ok {
			if err := c.decodeRecord(raw); err != nil {
				return nil, err
			}
			continue
		}
		buf := make([]byte, recordlayer.MaxCiphertextLen+recordlayer.FixedHeaderSize)
		n, err := c.transport.Read(buf)
		if n > 0 {
			c.fragment.push(buf[:n])
		}
		if err != nil {
			if n > 0 {
				continue
			}
			return nil, netError(err)
		}
	}
}

// setReadState installs the key state used to decrypt incoming records
// outside of the TLS 1.2 ChangeCipherSpec-gated path (TLS 1.3 handshake
// and application traffic secret switches, KeyUpdate), under stateMu
// since it races with decodeRecord reading readState on every record.
func (c *Connection) setReadState(s *ConnState) {
	c.stateMu.Lock()
	c.readState = s
	c.stateMu.Unlock()
}

// setWriteState installs the key state used to encrypt outgoing records,
// under stateMu since it races with writeContent reading writeState and
// with a caller's SendKeyUpdate from outside the handshake goroutine.
func (c *Connection) setWriteState(s *ConnState) {
	c.stateMu.Lock()
	c.writeState = s
	c.stateMu.Unlock()
}

// armCCSGate stages newState as the read key a TLS 1.2 driver has
// derived for the peer's direction, activated by handshakeReadLoop the
// moment it actually observes the peer's ChangeCipherSpec rather than as
// soon as the driver goroutine finishes computing it. pendingReadStateCh
// is buffered so this never blocks the driver on the read loop's pace.
func (c *Connection) armCCSGate(newState *ConnState) {
	c.stateMu.Lock()
	c.ccsGatesReadKey = true
	c.stateMu.Unlock()
	c.pendingReadStateCh <- newState
}

// decodeRecord decrypts one record and queues the Content(s) it yields
// onto pendingContent: zero if it is a still-incomplete handshake
// fragment, one for every other content type, or several if it
// completes a coalesced run of handshake messages.
func (c *Connection) decodeRecord(raw []byte) error {
	var hdr recordlayer.Header
	if err := hdr.Unmarshal(raw); err != nil {
		return NewError(KindRecordOverflow, err)
	}
	body := raw[hdr.Size():]
	ct := hdr.ContentType
	plain := body

	c.stateMu.Lock()
	readState := c.readState
	c.stateMu.Unlock()

	if readState != nil && readState.aead != nil {
		seq, err := readState.nextSequenceNumber()
		if err != nil {
			return NewError(KindRecordOverflow, err)
		}
		plain, err = readState.aead.Open(seq, hdr.ContentType, body)
		if err != nil {
			return NewError(KindBadRecordMac, err)
		}
		if c.negotiatedVersion.Equal(protocol.Version1_3) {
			var inner recordlayer.InnerPlaintext
			if err := inner.Unmarshal(plain); err != nil {
				return NewError(KindDecodeError, err)
			}
			ct = inner.RealType
			plain = inner.Content
		}
	}
	return c.queueContent(ct, plain)
}

func (c *Connection) queueContent(ct protocol.ContentType, plain []byte) error {
	if ct == protocol.ContentTypeHandshake {
		complete, ok := c.fragment.pushHandshakeBody(plain)
		for ok {
			hs := &handshake.Handshake{}
			if err := hs.Unmarshal(complete); err != nil {
				return NewError(KindDecodeError, err)
			}
			c.pendingContent = append(c.pendingContent, hs)
			complete, ok = c.fragment.pushHandshakeBody(nil)
		}
		return nil
	}
	content, err := contentFromInner(ct, plain)
	if err != nil {
		return err
	}
	c.pendingContent = append(c.pendingContent, content)
	return nil
}

// contentFromInner builds and unmarshals the concrete Content for every
// content type except Handshake, which queueContent reassembles first.
func contentFromInner(ct protocol.ContentType, body []byte) (protocol.Content, error) {
	var content protocol.Content
	switch ct {
	case protocol.ContentTypeChangeCipherSpec:
		content = &protocol.ChangeCipherSpec{}
	case protocol.ContentTypeAlert:
		content = &alert.Alert{}
	case protocol.ContentTypeApplicationData:
		content = &protocol.ApplicationData{}
	case protocol.ContentTypeHeartbeat:
		content = &protocol.Heartbeat{}
	default:
		return nil, recordlayer.ErrUnsupportedContentType
	}
	if err := content.Unmarshal(body); err != nil {
		return nil, NewError(KindDecodeError, err)
	}
	return content, nil
}

// writeContent encrypts (once keys are installed) and writes exactly one
// record carrying content.
func (c *Connection) writeContent(content protocol.Content) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	// TLS 1.3 always advertises the legacy record version on the wire,
	// RFC 8446 Section 5.1; TLS 1.2 advertises the negotiated version.
	wireVersion := c.negotiatedVersion
	if wireVersion.Equal(protocol.Version{}) || wireVersion.Equal(protocol.Version1_3) {
		wireVersion = protocol.Version1_2
	}

	c.stateMu.Lock()
	writeState := c.writeState
	c.stateMu.Unlock()

	if writeState != nil && writeState.aead != nil {
		plain, err := content.Marshal()
		if err != nil {
			return err
		}
		realType := content.ContentType()
		if c.negotiatedVersion.Equal(protocol.Version1_3) {
			inner := recordlayer.InnerPlaintext{Content: plain, RealType: realType}
			plain, err = inner.Marshal()
			if err != nil {
				return err
			}
			realType = protocol.ContentTypeApplicationData
		}
		seq, err := writeState.nextSequenceNumber()
		if err != nil {
			return NewError(KindRecordOverflow, err)
		}
		sealed, err := writeState.aead.Seal(seq, realType, plain)
		if err != nil {
			return err
		}
		raw, err := marshalRawRecord(recordlayer.Header{ContentType: realType, Version: wireVersion}, sealed)
		if err != nil {
			return err
		}
		_, err = c.transport.Write(raw)
		return netError(err)
	}

	plain, err := content.Marshal()
	if err != nil {
		return err
	}
	raw, err := marshalRawRecord(recordlayer.Header{ContentType: content.ContentType(), Version: wireVersion}, plain)
	if err != nil {
		return err
	}
	_, err = c.transport.Write(raw)
	return netError(err)
}

func marshalRawRecord(hdr recordlayer.Header, body []byte) ([]byte, error) {
	hdr.ContentLen = uint16(len(body))
	headerRaw, err := hdr.Marshal()
	if err != nil {
		return nil, err
	}
	return append(headerRaw, body...), nil
}

// Read returns decrypted application data, blocking until some is
// available, the peer sends close_notify, or the read deadline expires.
func (c *Connection) Read(p []byte) (int, error) {
	c.readLock.Lock()
	defer c.readLock.Unlock()

	select {
	case <-c.handshakeDone:
	default:
		return 0, errHandshakeInProgress
	}
	if c.handshakeErr != nil {
		return 0, c.handshakeErr
	}

	for len(c.appDataBuf) == 0 {
		select {
		case <-c.readDeadline.Done():
			return 0, errDeadlineExceeded
		default:
		}
		content, err := c.readContent()
		if err != nil {
			return 0, err
		}
		switch v := content.(type) {
		case *protocol.ApplicationData:
			c.appDataBuf = v.Data
		case *alert.Alert:
			if v.IsFatalOrCloseNotify() {
				c.closeTransportLocked()
				if v.Description == alert.CloseNotify {
					return 0, io.EOF
				}
				return 0, NewErrorFromAlert(*v)
			}
		case *protocol.Heartbeat:
			if err := c.handlePostHandshakeHeartbeat(v); err != nil {
				return 0, err
			}
		case *handshake.Handshake:
			if err := c.handlePostHandshakeMessage(v.Message); err != nil {
				return 0, err
			}
		default:
			return 0, NewError(KindUnexpectedMessage, errUnhandledContentType)
		}
	}

	n := copy(p, c.appDataBuf)
	c.appDataBuf = c.appDataBuf[n:]
	return n, nil
}

// Write encrypts and sends p as one or more application_data records,
// each bounded by recordlayer.MaxPlaintextLen.
func (c *Connection) Write(p []byte) (int, error) {
	select {
	case <-c.handshakeDone:
	default:
		return 0, errHandshakeInProgress
	}
	if c.handshakeErr != nil {
		return 0, c.handshakeErr
	}

	total := 0
	for len(p) > 0 {
		select {
		case <-c.writeDeadline.Done():
			return total, errDeadlineExceeded
		default:
		}
		chunk := p
		if len(chunk) > recordlayer.MaxPlaintextLen {
			chunk = chunk[:recordlayer.MaxPlaintextLen]
		}
		if err := c.writeContent(&protocol.ApplicationData{Data: chunk}); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

// Close sends close_notify (best effort) and closes the underlying
// Transport.
func (c *Connection) Close() error {
	c.closeLock.Lock()
	defer c.closeLock.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	select {
	case <-c.handshakeDone:
		_ = c.writeContent(&alert.Alert{Level: alert.Warning, Description: alert.CloseNotify})
	default:
	}
	return c.transport.Close()
}

func (c *Connection) closeTransportLocked() {
	c.closeLock.Lock()
	defer c.closeLock.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.transport.Close()
}

// SetDeadline mirrors net.Conn, layered over the abstract Transport of
// spec.md §6 via pion/transport/v3/deadline, same as the teacher's Conn.
func (c *Connection) SetDeadline(t time.Time) error {
	c.readDeadline.Set(t)
	c.writeDeadline.Set(t)
	return nil
}

// SetReadDeadline sets the deadline for future Read calls.
func (c *Connection) SetReadDeadline(t time.Time) error {
	c.readDeadline.Set(t)
	return nil
}

// SetWriteDeadline sets the deadline for future Write calls.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	c.writeDeadline.Set(t)
	return nil
}

// ConnectionState returns a snapshot of the negotiated Session, usable for
// resumption bookkeeping by the caller's SessionCache.
func (c *Connection) ConnectionState() *Session {
	if c.session == nil {
		return nil
	}
	return c.session.clone()
}

// HandshakeLog returns the zcrypto-shaped fingerprint export captured
// during the handshake, or nil if the handshake never completed.
func (c *Connection) HandshakeLog() *HandshakeLog {
	return c.handshakeLog
}
