// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"io"
	"time"

	"github.com/gotls/tlsengine/pkg/crypto/ciphersuite"
	"github.com/gotls/tlsengine/pkg/crypto/elliptic"
	"github.com/gotls/tlsengine/pkg/crypto/keyschedule"
	"github.com/gotls/tlsengine/pkg/crypto/prf"
	"github.com/gotls/tlsengine/pkg/crypto/signaturehash"
	"github.com/gotls/tlsengine/pkg/crypto/transcript"
	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/gotls/tlsengine/pkg/protocol/alert"
	"github.com/gotls/tlsengine/pkg/protocol/handshake"
	"github.com/gotls/tlsengine/pkg/protocol/handshake/extension"
)

// TLS 1.3 state names follow mint's naming (WaitSH, WaitEE, WaitCertOrCertReq,
// WaitCert, WaitCV, WaitFinished, Established). TLS 1.2 state names follow
// RFC 5246's message flow (SendClientHello -> WaitServerHello ->
// WaitCertificate -> WaitServerKeyExchange -> WaitServerHelloDone ->
// SendClientKeyExchange -> SendChangeCipherSpec -> SendFinished ->
// WaitChangeCipherSpec -> WaitFinished -> Established). They appear here as
// section comments rather than a literal state-enum/transition table: both
// flows are a fixed linear sequence of messages (the only branch points are
// HelloRetryRequest, PSK resumption, and optional client-certificate
// auth), so a straight-line driver with named sections is the idiomatic
// shape for it, the same way crypto/tls's own handshake_client.go reads.

const certificateVerifyContextServer = "TLS 1.3, server CertificateVerify"
const certificateVerifyContextClient = "TLS 1.3, client CertificateVerify"

// nextHandshakeItem waits for the read loop's next handshake message,
// surfacing a received alert or read error as the same *Error the rest of
// the driver returns.
func (c *Connection) nextHandshakeItem(ctx context.Context, items <-chan handshakeItem) (*handshake.Handshake, error) {
	select {
	case item, ok := <-items:
		if !ok {
			return nil, NewError(KindInternalError, errConnClosed)
		}
		if item.err != nil {
			return nil, item.err
		}
		if item.alt != nil {
			return nil, NewErrorFromAlert(*item.alt)
		}
		return item.hs, nil
	case <-ctx.Done():
		return nil, netError(ctx.Err())
	}
}

// rawHandshakeBytes reconstructs the exact wire bytes Unmarshal last saw
// for hs, for feeding into the transcript hash: Header.Length and
// len(RawBody) agree by construction, so header+RawBody is the original
// message verbatim, even for Certificate/CertificateRequest where Message
// is left nil.
func rawHandshakeBytes(hs *handshake.Handshake) ([]byte, error) {
	header, err := hs.Header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(header, hs.RawBody...), nil
}

// sendHandshake marshals msg, feeds its raw wire bytes into tr (if tr is
// non-nil), and writes it as one record.
func (c *Connection) sendHandshake(msg handshake.Message, tr *transcript.Hash) error {
	hs := &handshake.Handshake{Message: msg}
	raw, err := hs.Marshal()
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if tr != nil {
		tr.Write(raw)
	}
	return c.writeContent(hs)
}

// abortHandshake sends the fatal alert an *Error carries (best effort)
// before returning it, so a failed handshake leaves the peer with an
// explicit reason instead of a transport that just stops responding.
func (c *Connection) abortHandshake(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		_ = c.writeContent(&e.Alert)
	}
	return err
}

func wireVersion(v protocol.Version) uint16 { return uint16(v.Major)<<8 | uint16(v.Minor) }

func versionOrdinal(v protocol.Version) int { return int(v.Major)<<8 | int(v.Minor) }

func versionInRange(v, minV, maxV protocol.Version) bool {
	x := versionOrdinal(v)
	return x >= versionOrdinal(minV) && x <= versionOrdinal(maxV)
}

func toAlgorithms(ids []uint16) []signaturehash.Algorithm {
	out := make([]signaturehash.Algorithm, len(ids))
	for i, id := range ids {
		out[i] = signaturehash.Algorithm(id)
	}
	return out
}

func toSchemeIDs(algs []signaturehash.Algorithm) []uint16 {
	out := make([]uint16, len(algs))
	for i, a := range algs {
		out[i] = uint16(a)
	}
	return out
}

func findExtension[T extension.Extension](exts []extension.Extension) (T, bool) {
	var zero T
	for _, e := range exts {
		if t, ok := e.(T); ok {
			return t, true
		}
	}
	return zero, false
}

func (c *Connection) newRandom() (handshake.Random, error) {
	var r handshake.Random
	if err := r.Populate(time.Now(), c.config.rand()); err != nil {
		return handshake.Random{}, NewError(KindInternalError, err)
	}
	return r, nil
}

// pickCertificate returns the first configured Certificate whose leaf key
// type is compatible with one of the peer-acceptable schemes, and the
// scheme to sign with.
func pickCertificate(certs []Certificate, peerSchemes []uint16) (Certificate, signaturehash.Algorithm, bool) {
	accept := make(map[uint16]bool, len(peerSchemes))
	for _, s := range peerSchemes {
		accept[s] = true
	}
	for _, cert := range certs {
		for _, alg := range signaturehash.DefaultSchemes {
			if !accept[uint16(alg)] {
				continue
			}
			if !schemeMatchesKey(alg, cert.PrivateKey) {
				continue
			}
			return cert, alg, true
		}
	}
	return Certificate{}, 0, false
}

func schemeMatchesKey(alg signaturehash.Algorithm, signer crypto.Signer) bool {
	switch signer.Public().(type) {
	case ed25519.PublicKey:
		return alg == signaturehash.Ed25519
	case *ecdsa.PublicKey:
		switch alg {
		case signaturehash.ECDSASecp256r1Sha256, signaturehash.ECDSASecp384r1Sha384, signaturehash.ECDSASecp521r1Sha512:
			return true
		}
	case *rsa.PublicKey:
		switch alg {
		case signaturehash.RSAPSSRSAESHA256, signaturehash.RSAPSSRSAESHA384, signaturehash.RSAPSSRSAESHA512,
			signaturehash.RSAPKCS1SHA256, signaturehash.RSAPKCS1SHA384, signaturehash.RSAPKCS1SHA512:
			return true
		}
	}
	return false
}

// ---- ClientHello construction -------------------------------------------------

type clientOffer struct {
	msg       *handshake.MessageClientHello
	priv      map[elliptic.Group][]byte
	offerGroup elliptic.Group
	session   *Session // resumption candidate, nil if none offered
	raw       []byte   // marshaled ClientHello as actually sent
}

func (c *Connection) buildClientHello(cacheKey string) (*clientOffer, error) {
	random, err := c.newRandom()
	if err != nil {
		return nil, err
	}
	sessionID := make([]byte, 32)
	if _, err := c.config.rand().Read(sessionID); err != nil {
		return nil, NewError(KindInternalError, err)
	}

	groups := c.config.groups()
	if len(groups) == 0 {
		return nil, NewError(KindInternalError, errNoSupportedGroup)
	}
	offerGroup := groups[0]
	ka, ok := elliptic.NewKeyAgreement(offerGroup)
	if !ok {
		return nil, NewError(KindInternalError, errNoSupportedGroup)
	}
	priv, pub, err := ka.GenerateKeyPair()
	if err != nil {
		return nil, NewError(KindInternalError, err)
	}
	privs := map[elliptic.Group][]byte{offerGroup: priv}

	groupIDs := make([]uint16, len(groups))
	for i, g := range groups {
		groupIDs[i] = uint16(g)
	}

	schemes, err := signaturehash.ParseSchemes(toAlgorithms(c.config.SignatureSchemes), c.config.InsecureHashes)
	if err != nil {
		return nil, NewError(KindInsufficientSecurity, err)
	}

	cipherIDs := make([]uint16, len(c.config.cipherSuites()))
	for i, id := range c.config.cipherSuites() {
		cipherIDs[i] = uint16(id)
	}

	minV, maxV := c.config.minVersion(), c.config.maxVersion()
	var versions []uint16
	for _, v := range []protocol.Version{protocol.Version1_3, protocol.Version1_2} {
		if versionInRange(v, minV, maxV) {
			versions = append(versions, wireVersion(v))
		}
	}
	if len(versions) == 0 {
		return nil, NewError(KindInternalError, errNoSupportedVersion)
	}
	offersTLS13 := versionInRange(protocol.Version1_3, minV, maxV)
	offersTLS12 := versionInRange(protocol.Version1_2, minV, maxV)

	exts := []extension.Extension{
		&extension.SupportedVersions{Versions: versions},
		&extension.SupportedGroups{Groups: groupIDs},
		&extension.SignatureAlgorithms{Schemes: toSchemeIDs(schemes)},
		&extension.RenegotiationInfo{},
	}
	if offersTLS13 {
		exts = append(exts, &extension.KeyShare{ClientShares: []extension.KeyShareEntry{{Group: uint16(offerGroup), KeyExchange: pub}}})
	}
	serverName, err := c.config.normalizedServerName()
	if err != nil {
		return nil, NewError(KindInternalError, err)
	}
	if serverName != "" {
		exts = append(exts, &extension.ServerName{HostName: serverName})
	}
	if len(c.config.ALPNProtocols) > 0 {
		exts = append(exts, &extension.ALPN{ProtocolNameList: c.config.ALPNProtocols})
	}
	if offersTLS12 {
		if c.config.ExtendedMasterSecret {
			exts = append(exts, &extension.UseExtendedMasterSecret{})
		}
		if c.config.EncryptThenMAC {
			exts = append(exts, &extension.EncryptThenMAC{})
		}
	}
	if c.config.EnableHeartbeat {
		exts = append(exts, &extension.Heartbeat{Mode: extension.HeartbeatPeerAllowedToSend})
	}

	var session *Session
	if offersTLS13 && c.config.SessionCache != nil {
		if s, ok := c.config.SessionCache.Get(cacheKey); ok && s.Resumable() && s.Ticket != nil && !s.Ticket.Expired(time.Now()) {
			session = s.clone()
			exts = append(exts, &extension.PSKKeyExchangeModes{Modes: []extension.PSKKeyExchangeMode{extension.PSKDHEKE}})
		}
	}

	msg := &handshake.MessageClientHello{
		Version:        protocol.Version1_2, // legacy_version, RFC 8446 Section 4.1.2
		Random:         random,
		SessionID:      sessionID,
		CipherSuiteIDs: cipherIDs,
		Extensions:     exts,
	}

	offer := &clientOffer{msg: msg, priv: privs, offerGroup: offerGroup, session: session}
	if session == nil {
		hs := &handshake.Handshake{Message: msg}
		raw, err := hs.Marshal()
		if err != nil {
			return nil, NewError(KindInternalError, err)
		}
		offer.raw = raw
		return offer, nil
	}

	ticketSuite, ok := ciphersuite.ByID(session.CipherSuite)
	if !ok {
		offer.session = nil
		hs := &handshake.Handshake{Message: msg}
		raw, err := hs.Marshal()
		if err != nil {
			return nil, NewError(KindInternalError, err)
		}
		offer.raw = raw
		return offer, nil
	}

	age := uint32(time.Since(session.Ticket.IssuedAt) / time.Millisecond)
	age += session.Ticket.AgeAdd
	psk := &extension.PreSharedKey{
		Identities: []extension.PSKIdentity{{Identity: session.Ticket.Ticket, ObfuscatedTicketAge: age}},
		Binders:    [][]byte{make([]byte, ticketSuite.Hash.Size())},
	}
	msg.Extensions = append(msg.Extensions, psk)

	hs := &handshake.Handshake{Message: msg}
	raw, err := hs.Marshal()
	if err != nil {
		return nil, NewError(KindInternalError, err)
	}
	truncated := raw[:len(raw)-ticketSuite.Hash.Size()]
	digest := ticketSuite.Hash.New()
	digest.Write(truncated)

	resumptionPSK := keyschedule.New(ticketSuite.Hash, nil).ResumptionPSK(session.MasterSecret, session.Ticket.Nonce)
	pskSchedule := keyschedule.New(ticketSuite.Hash, resumptionPSK)
	binder := computeBinder(pskSchedule, ticketSuite, digest.Sum(nil))
	psk.Binders[0] = binder

	hs2 := &handshake.Handshake{Message: msg}
	raw2, err := hs2.Marshal()
	if err != nil {
		return nil, NewError(KindInternalError, err)
	}
	offer.raw = raw2
	return offer, nil
}

func computeBinder(schedule *keyschedule.Schedule, suite ciphersuite.Suite, truncatedTranscriptHash []byte) []byte {
	finishedKey := keyschedule.FinishedKey(suite.Hash, schedule.BinderKey(false))
	mac := hmac.New(suite.Hash.New, finishedKey)
	mac.Write(truncatedTranscriptHash)
	return mac.Sum(nil)
}

// ---- Client driver -------------------------------------------------------

func (c *Connection) runClientHandshake(ctx context.Context, items chan handshakeItem) error {
	if err := c.doClientHandshake(ctx, items); err != nil {
		return c.abortHandshake(err)
	}
	return nil
}

func (c *Connection) doClientHandshake(ctx context.Context, items chan handshakeItem) error { //nolint:cyclop
	cacheKey := c.config.ServerName

	// SendClientHello
	offer, err := c.buildClientHello(cacheKey)
	if err != nil {
		return err
	}
	if err := c.writeContent(&handshake.Handshake{Message: offer.msg}); err != nil {
		return err
	}

	// WaitServerHello (or HelloRetryRequest)
	hs, err := c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeServerHello {
		return NewError(KindUnexpectedMessage, errors.New("expected ServerHello"))
	}
	sh, ok := hs.Message.(*handshake.MessageServerHello)
	if !ok || sh.CipherSuiteID == nil {
		return NewError(KindDecodeError, errors.New("malformed ServerHello"))
	}

	ch1Raw := offer.raw
	if sh.Random.IsHelloRetryRequest() {
		suite, ok := ciphersuite.ByID(ciphersuite.ID(*sh.CipherSuiteID))
		if !ok || !suite.IsTLS13 {
			return NewError(KindIllegalParameter, errors.New("HelloRetryRequest selected a non-TLS1.3 suite"))
		}
		hrrRaw, err := rawHandshakeBytes(hs)
		if err != nil {
			return NewError(KindInternalError, err)
		}
		tr := transcript.New(suite.Hash)
		hash1 := suite.Hash.New()
		hash1.Write(ch1Raw)
		tr.ReplaceWithMessageHash(hash1.Sum(nil))
		tr.Write(hrrRaw)

		ks, _ := findExtension[*extension.KeyShare](sh.Extensions)
		if ks == nil || !ks.SelectedGroupOnly {
			return NewError(KindMissingExtension, errors.New("HelloRetryRequest missing key_share"))
		}
		newGroup := elliptic.Group(ks.ServerShare.Group)
		ka, ok := elliptic.NewKeyAgreement(newGroup)
		if !ok {
			return NewError(KindIllegalParameter, errNoSupportedGroup)
		}
		priv, pub, err := ka.GenerateKeyPair()
		if err != nil {
			return NewError(KindInternalError, err)
		}
		offer.priv[newGroup] = priv
		offer.offerGroup = newGroup

		var newExts []extension.Extension
		for _, e := range offer.msg.Extensions {
			switch e.(type) {
			case *extension.KeyShare, *extension.PreSharedKey:
				continue
			default:
				newExts = append(newExts, e)
			}
		}
		newExts = append(newExts, &extension.KeyShare{ClientShares: []extension.KeyShareEntry{{Group: uint16(newGroup), KeyExchange: pub}}})
		if cookie, ok := findExtension[*extension.Cookie](sh.Extensions); ok {
			newExts = append(newExts, cookie)
		}
		offer.msg.Extensions = newExts
		offer.session = nil // PSK across an HRR is a simplification this engine does not support; fall back to a full handshake.

		hs2 := &handshake.Handshake{Message: offer.msg}
		raw2, err := hs2.Marshal()
		if err != nil {
			return NewError(KindInternalError, err)
		}
		tr.Write(raw2)
		if err := c.writeContent(hs2); err != nil {
			return err
		}

		hs, err = c.nextHandshakeItem(ctx, items)
		if err != nil {
			return err
		}
		if hs.Header.Type != handshake.TypeServerHello {
			return NewError(KindUnexpectedMessage, errors.New("expected ServerHello after HelloRetryRequest"))
		}
		sh, ok = hs.Message.(*handshake.MessageServerHello)
		if !ok || sh.CipherSuiteID == nil {
			return NewError(KindDecodeError, errors.New("malformed ServerHello"))
		}
		if sh.Random.IsHelloRetryRequest() {
			return NewError(KindIllegalParameter, errSecondHelloRetryRequest)
		}
		shRaw, err := rawHandshakeBytes(hs)
		if err != nil {
			return NewError(KindInternalError, err)
		}
		tr.Write(shRaw)
		return c.clientPostServerHello(ctx, items, offer, sh, suite, tr)
	}

	suite, ok := ciphersuite.ByID(ciphersuite.ID(*sh.CipherSuiteID))
	if !ok {
		return NewError(KindIllegalParameter, errNoSupportedCipherSuite)
	}
	if !suite.IsTLS13 && versionInRange(protocol.Version1_3, c.config.minVersion(), c.config.maxVersion()) {
		if tls13Sentinel, _ := sh.Random.HasDowngradeSentinel(); tls13Sentinel {
			return NewError(KindIllegalParameter, errDowngradeDetected)
		}
	}
	tr := transcript.New(suite.Hash)
	tr.Write(ch1Raw)
	shRaw, err := rawHandshakeBytes(hs)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	tr.Write(shRaw)
	return c.clientPostServerHello(ctx, items, offer, sh, suite, tr)
}

func (c *Connection) clientPostServerHello(ctx context.Context, items chan handshakeItem, offer *clientOffer, sh *handshake.MessageServerHello, suite ciphersuite.Suite, tr *transcript.Hash) error {
	if suite.IsTLS13 {
		return c.clientTLS13(ctx, items, offer, sh, suite, tr)
	}
	return c.clientTLS12(ctx, items, offer, sh, suite, tr)
}

// WaitSH -> WaitEE -> WaitCertOrCertReq -> WaitCert -> WaitCV -> WaitFinished -> Established
func (c *Connection) clientTLS13(ctx context.Context, items chan handshakeItem, offer *clientOffer, sh *handshake.MessageServerHello, suite ciphersuite.Suite, tr *transcript.Hash) error { //nolint:cyclop
	ks, ok := findExtension[*extension.KeyShare](sh.Extensions)
	if !ok {
		return NewError(KindMissingExtension, errors.New("ServerHello missing key_share"))
	}
	priv, ok := offer.priv[elliptic.Group(ks.ServerShare.Group)]
	if !ok {
		return NewError(KindIllegalParameter, errors.New("ServerHello selected an un-offered group"))
	}
	ka, ok := elliptic.NewKeyAgreement(elliptic.Group(ks.ServerShare.Group))
	if !ok {
		return NewError(KindIllegalParameter, errNoSupportedGroup)
	}
	dheShared, err := ka.DeriveShared(priv, ks.ServerShare.KeyExchange)
	if err != nil {
		return NewError(KindDecodeError, err)
	}

	var psk []byte
	usingPSK := false
	if pskExt, ok := findExtension[*extension.PreSharedKey](sh.Extensions); ok && offer.session != nil {
		usingPSK = true
		_ = pskExt
		ticketSuite, _ := ciphersuite.ByID(offer.session.CipherSuite)
		resumptionPSK := keyschedule.New(ticketSuite.Hash, nil).ResumptionPSK(offer.session.MasterSecret, offer.session.Ticket.Nonce)
		psk = resumptionPSK
	}
	if !usingPSK {
		psk = nil
	}
	schedule := keyschedule.New(suite.Hash, psk)
	schedule.AdvanceToHandshakeSecret(dheShared)

	thServerHello := tr.Sum()
	chts := schedule.ClientHandshakeTrafficSecret(thServerHello)
	shts := schedule.ServerHandshakeTrafficSecret(thServerHello)

	readState, _, err := installTrafficKeys(suite, shts, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	writeState, _, err := installTrafficKeys(suite, chts, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.setReadState(readState)
	c.setWriteState(writeState)

	// WaitEE
	hs, err := c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeEncryptedExtensions {
		return NewError(KindUnexpectedMessage, errors.New("expected EncryptedExtensions"))
	}
	ee, ok := hs.Message.(*handshake.MessageEncryptedExtensions)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed EncryptedExtensions"))
	}
	if alpn, ok := findExtension[*extension.ALPN](ee.Extensions); ok && len(alpn.ProtocolNameList) > 0 {
		c.alpnProtocol = alpn.ProtocolNameList[0]
	}
	if hb, ok := findExtension[*extension.Heartbeat](ee.Extensions); ok && c.config.EnableHeartbeat {
		c.heartbeatNegotiated = hb.Mode == extension.HeartbeatPeerAllowedToSend || hb.Mode == extension.HeartbeatPeerNotAllowedToSend
	}
	mustWrite(tr, hs)

	// WaitCertOrCertReq
	var peerSchemes []uint16
	requestedClientCert := false
	hs, err = c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type == handshake.TypeCertificateRequest {
		requestedClientCert = true
		cr, err := handshake.ParseCertificateRequest(hs.RawBody, true)
		if err != nil {
			return NewError(KindDecodeError, err)
		}
		peerSchemes = cr.SignatureSchemes
		mustWrite(tr, hs)
		hs, err = c.nextHandshakeItem(ctx, items)
		if err != nil {
			return err
		}
	}

	// WaitCert
	if hs.Header.Type != handshake.TypeCertificate {
		return NewError(KindUnexpectedMessage, errors.New("expected Certificate"))
	}
	certMsg, err := handshake.ParseCertificate(hs.RawBody, true)
	if err != nil {
		return NewError(KindDecodeError, err)
	}
	var rawCerts [][]byte
	for _, entry := range certMsg.Certificates {
		rawCerts = append(rawCerts, entry.CertData)
	}
	leaf, err := c.config.certificateVerifier().VerifyChain(rawCerts, c.config.ServerName, time.Now())
	if err != nil {
		return NewError(KindBadCertificate, err)
	}
	c.peerCertificates = rawCerts
	mustWrite(tr, hs)

	// WaitCV
	thBeforeCV := tr.Sum()
	hs, err = c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeCertificateVerify {
		return NewError(KindUnexpectedMessage, errors.New("expected CertificateVerify"))
	}
	cv, ok := hs.Message.(*handshake.MessageCertificateVerify)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed CertificateVerify"))
	}
	sigContent := certificateVerifyContent(certificateVerifyContextServer, thBeforeCV)
	if err := signaturehash.Verify(signaturehash.Algorithm(cv.Algorithm), leaf.PublicKey, sigContent, cv.Signature); err != nil {
		return NewError(KindDecodeError, err)
	}
	mustWrite(tr, hs)

	// WaitFinished
	thBeforeServerFinished := tr.Sum()
	hs, err = c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeFinished {
		return NewError(KindUnexpectedMessage, errors.New("expected Finished"))
	}
	fin, ok := hs.Message.(*handshake.MessageFinished)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed Finished"))
	}
	expected := hmac.New(suite.Hash.New, keyschedule.FinishedKey(suite.Hash, shts))
	expected.Write(thBeforeServerFinished)
	if subtle.ConstantTimeCompare(expected.Sum(nil), fin.VerifyData) != 1 {
		return NewError(KindDecodeError, errors.New("server Finished verify_data mismatch"))
	}
	mustWrite(tr, hs)

	thServerFinished := tr.Sum()
	schedule.AdvanceToMasterSecret()
	cats0 := schedule.ClientApplicationTrafficSecret0(thServerFinished)
	sats0 := schedule.ServerApplicationTrafficSecret0(thServerFinished)
	exporterSecret := schedule.ExporterMasterSecret(thServerFinished)
	_ = exporterSecret

	// Established (client's own flight: optional Certificate/CertificateVerify, Finished)
	if requestedClientCert {
		cert, alg, ok := pickCertificate(c.config.Certificates, peerSchemes)
		certMsg := handshake.NewMessageCertificate(true)
		if ok {
			certMsg.Certificates = []handshake.CertificateEntry{{CertData: cert.Chain[0]}}
			for _, chainCert := range cert.Chain[1:] {
				certMsg.Certificates = append(certMsg.Certificates, handshake.CertificateEntry{CertData: chainCert})
			}
		}
		if err := c.sendHandshake(certMsg, tr); err != nil {
			return err
		}
		if ok {
			thBeforeClientCV := tr.Sum()
			sigInput := certificateVerifyContent(certificateVerifyContextClient, thBeforeClientCV)
			sig, err := signaturehash.Sign(alg, cert.PrivateKey, sigInput)
			if err != nil {
				return NewError(KindInternalError, err)
			}
			cvMsg := &handshake.MessageCertificateVerify{Algorithm: uint16(alg), Signature: sig}
			if err := c.sendHandshake(cvMsg, tr); err != nil {
				return err
			}
		}
	}

	finishedKeyClient := keyschedule.FinishedKey(suite.Hash, chts)
	thBeforeClientFinished := tr.Sum()
	clientMAC := hmac.New(suite.Hash.New, finishedKeyClient)
	clientMAC.Write(thBeforeClientFinished)
	if err := c.sendHandshake(&handshake.MessageFinished{VerifyData: clientMAC.Sum(nil)}, tr); err != nil {
		return err
	}

	thClientFinished := tr.Sum()
	resumptionMasterSecret := schedule.ResumptionMasterSecret(thClientFinished)

	newReadState, _, err := installTrafficKeys(suite, sats0, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	newWriteState, _, err := installTrafficKeys(suite, cats0, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.setReadState(newReadState)
	c.setWriteState(newWriteState)
	c.negotiatedVersion = protocol.Version1_3
	c.suite = suite
	c.schedule13 = schedule
	c.resumptionMasterSecret = resumptionMasterSecret
	c.trafficSecretMu.Lock()
	c.clientTrafficSecret = cats0
	c.serverTrafficSecret = sats0
	c.trafficSecretMu.Unlock()
	c.session = &Session{
		Version:              protocol.Version1_3,
		CipherSuite:          suite.ID,
		ALPNProtocol:         c.alpnProtocol,
		PeerCertificates:     c.peerCertificates,
		MasterSecret:         resumptionMasterSecret,
		EarlyDataAccepted:    false,
		CreatedAt:            time.Now(),
	}
	c.handshakeLog = newHandshakeLog(offer.msg, sh, certMsg.Certificates, fin, nil, nil, nil)
	return nil
}

func mustWrite(tr *transcript.Hash, hs *handshake.Handshake) {
	raw, err := rawHandshakeBytes(hs)
	if err != nil {
		return
	}
	tr.Write(raw)
}

func certificateVerifyContent(context string, transcriptHash []byte) []byte {
	out := make([]byte, 64, 64+len(context)+1+len(transcriptHash))
	for i := range out {
		out[i] = 0x20
	}
	out = append(out, context...)
	out = append(out, 0x00)
	out = append(out, transcriptHash...)
	return out
}

// SendClientHello -> WaitServerHello -> WaitCertificate -> WaitServerKeyExchange
// -> WaitServerHelloDone -> SendClientKeyExchange -> SendChangeCipherSpec ->
// SendFinished -> WaitChangeCipherSpec -> WaitFinished -> Established
func (c *Connection) clientTLS12(ctx context.Context, items chan handshakeItem, offer *clientOffer, sh *handshake.MessageServerHello, suite ciphersuite.Suite, tr *transcript.Hash) error { //nolint:cyclop
	extendedMasterSecret := false
	if _, ok := findExtension[*extension.UseExtendedMasterSecret](sh.Extensions); ok {
		extendedMasterSecret = c.config.ExtendedMasterSecret
	}

	if len(sh.SessionID) > 0 && bytesEqual(sh.SessionID, offer.msg.SessionID) {
		return errors.New("tlsengine: TLS 1.2 abbreviated resumption is not supported by this driver") //nolint:goerr113
	}

	// WaitCertificate
	hs, err := c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeCertificate {
		return NewError(KindUnexpectedMessage, errors.New("expected Certificate"))
	}
	certMsg, err := handshake.ParseCertificate(hs.RawBody, false)
	if err != nil {
		return NewError(KindDecodeError, err)
	}
	var rawCerts [][]byte
	for _, entry := range certMsg.Certificates {
		rawCerts = append(rawCerts, entry.CertData)
	}
	leaf, err := c.config.certificateVerifier().VerifyChain(rawCerts, c.config.ServerName, time.Now())
	if err != nil {
		return NewError(KindBadCertificate, err)
	}
	c.peerCertificates = rawCerts
	mustWrite(tr, hs)

	// WaitServerKeyExchange
	hs, err = c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeServerKeyExchange {
		return NewError(KindUnexpectedMessage, errors.New("expected ServerKeyExchange"))
	}
	ske, ok := hs.Message.(*handshake.MessageServerKeyExchange)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed ServerKeyExchange"))
	}
	clientRandomFixed := offer.msg.Random.MarshalFixed()
	serverRandomFixed := sh.Random.MarshalFixed()
	signedParams := make([]byte, 0, 32+32+4+len(ske.PublicKey))
	signedParams = append(signedParams, clientRandomFixed[:]...)
	signedParams = append(signedParams, serverRandomFixed[:]...)
	signedParams = append(signedParams, 3, 0, 0, byte(len(ske.PublicKey)))
	signedParams[len(signedParams)-3] = byte(ske.NamedCurve >> 8)
	signedParams[len(signedParams)-2] = byte(ske.NamedCurve)
	signedParams = append(signedParams, ske.PublicKey...)
	if err := signaturehash.Verify(signaturehash.Algorithm(ske.Algorithm), leaf.PublicKey, signedParams, ske.Signature); err != nil {
		return NewError(KindDecodeError, err)
	}
	mustWrite(tr, hs)

	serverGroup := elliptic.Group(ske.NamedCurve)
	ka, ok := elliptic.NewKeyAgreement(serverGroup)
	if !ok {
		return NewError(KindIllegalParameter, errNoSupportedGroup)
	}
	priv, pub, err := ka.GenerateKeyPair()
	if err != nil {
		return NewError(KindInternalError, err)
	}
	preMasterSecret, err := ka.DeriveShared(priv, ske.PublicKey)
	if err != nil {
		return NewError(KindDecodeError, err)
	}

	// optional CertificateRequest
	var peerSchemes []uint16
	requestedClientCert := false
	hs, err = c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type == handshake.TypeCertificateRequest {
		requestedClientCert = true
		cr, err := handshake.ParseCertificateRequest(hs.RawBody, false)
		if err != nil {
			return NewError(KindDecodeError, err)
		}
		peerSchemes = cr.SignatureSchemes
		mustWrite(tr, hs)
		hs, err = c.nextHandshakeItem(ctx, items)
		if err != nil {
			return err
		}
	}

	// WaitServerHelloDone
	if hs.Header.Type != handshake.TypeServerHelloDone {
		return NewError(KindUnexpectedMessage, errors.New("expected ServerHelloDone"))
	}
	mustWrite(tr, hs)

	// SendClientKeyExchange (optional client Certificate before it,
	// CertificateVerify after it)
	if requestedClientCert {
		cert, alg, ok := pickCertificate(c.config.Certificates, peerSchemes)
		cm := handshake.NewMessageCertificate(false)
		if ok {
			cm.Certificates = []handshake.CertificateEntry{{CertData: cert.Chain[0]}}
			for _, chainCert := range cert.Chain[1:] {
				cm.Certificates = append(cm.Certificates, handshake.CertificateEntry{CertData: chainCert})
			}
		}
		if err := c.sendHandshake(cm, tr); err != nil {
			return err
		}
		c.clientCertForVerify = ok
		c.clientCertKey = cert.PrivateKey
		c.clientCertAlg = alg
	}

	if err := c.sendHandshake(&handshake.MessageClientKeyExchange{PublicKey: pub}, tr); err != nil {
		return err
	}
	sessionHash := tr.Sum()

	if requestedClientCert && c.clientCertForVerify {
		digest := tr.Sum()
		sig, err := signTLS12CertificateVerify(c.clientCertAlg, c.clientCertKey, c.config.rand(), digest)
		if err != nil {
			return NewError(KindInternalError, err)
		}
		if err := c.sendHandshake(&handshake.MessageCertificateVerify{Algorithm: uint16(c.clientCertAlg), Signature: sig}, tr); err != nil {
			return err
		}
	}

	var masterSecret []byte
	if extendedMasterSecret {
		masterSecret, err = prf.ExtendedMasterSecret(preMasterSecret, sessionHash, suite.Hash.New)
	} else {
		masterSecret, err = prf.MasterSecret(preMasterSecret, clientRandomFixed[:], serverRandomFixed[:], suite.Hash.New)
	}
	if err != nil {
		return NewError(KindInternalError, err)
	}

	keys, err := prf.GenerateEncryptionKeys(masterSecret, clientRandomFixed[:], serverRandomFixed[:], 0, suite.KeyLen, suite.IVLen, suite.Hash.New)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	clientState, serverState, err := installTLS12KeyState(suite, keys.ClientWriteKey, keys.ServerWriteKey, keys.ClientWriteIV, keys.ServerWriteIV, protocol.Version1_2)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	// SendChangeCipherSpec -> SendFinished
	if err := c.writeContent(&protocol.ChangeCipherSpec{}); err != nil {
		return err
	}
	c.setWriteState(clientState)
	// The server's own ChangeCipherSpec, and the serverState key it
	// switches reads to, hasn't arrived yet; arm the gate so
	// handshakeReadLoop installs serverState exactly when it observes
	// that record instead of right now, or the record would be
	// misread as already AEAD-protected before the server has actually
	// started encrypting under it.
	c.armCCSGate(serverState)
	clientVerifyData, err := prf.VerifyDataClient(masterSecret, tr.Sum(), suite.Hash.New)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if err := c.sendHandshake(&handshake.MessageFinished{VerifyData: clientVerifyData}, tr); err != nil {
		return err
	}

	// WaitChangeCipherSpec -> WaitFinished
	thBeforeServerFinished := tr.Sum()
	hs, err = c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeFinished {
		return NewError(KindUnexpectedMessage, errors.New("expected server Finished"))
	}
	fin, ok := hs.Message.(*handshake.MessageFinished)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed Finished"))
	}
	expected, err := prf.VerifyDataServer(masterSecret, thBeforeServerFinished, suite.Hash.New)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if subtle.ConstantTimeCompare(expected, fin.VerifyData) != 1 {
		return NewError(KindDecodeError, errors.New("server Finished verify_data mismatch"))
	}

	c.negotiatedVersion = protocol.Version1_2
	c.suite = suite
	var alpn string
	if a, ok := findExtension[*extension.ALPN](sh.Extensions); ok && len(a.ProtocolNameList) > 0 {
		alpn = a.ProtocolNameList[0]
	}
	c.alpnProtocol = alpn
	c.session = &Session{
		Version:              protocol.Version1_2,
		CipherSuite:          suite.ID,
		ALPNProtocol:         alpn,
		ExtendedMasterSecret: extendedMasterSecret,
		MasterSecret:         masterSecret,
		PeerCertificates:     c.peerCertificates,
		TLS12SessionID:       sh.SessionID,
		CreatedAt:            time.Now(),
	}
	c.handshakeLog = newHandshakeLog(offer.msg, sh, certMsg.Certificates, fin, nil, masterSecret, preMasterSecret)
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// signTLS12CertificateVerify signs an already-computed transcript digest
// directly, bypassing signaturehash.Sign (which always hashes its input
// itself): RFC 5246 Section 7.4.8's CertificateVerify signs the running
// transcript digest, not a fresh message, so double-hashing would produce
// the wrong signature. Only schemes whose hash matches the ciphersuite's
// PRF hash are supported here, since the transcript is accumulated under
// exactly one hash algorithm.
func signTLS12CertificateVerify(alg signaturehash.Algorithm, pk crypto.Signer, rng io.Reader, digest []byte) ([]byte, error) {
	ecKey, ok := pk.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errClientCertVerifyUnsupportedKey
	}
	return ecdsa.SignASN1(rng, ecKey, digest)
}

var errClientCertVerifyUnsupportedKey = errors.New("tlsengine: TLS 1.2 client CertificateVerify only supports ECDSA keys")
