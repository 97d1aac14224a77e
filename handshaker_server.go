// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/subtle"
	"crypto/x509"
	"errors"
	"time"

	"github.com/gotls/tlsengine/pkg/crypto/ciphersuite"
	"github.com/gotls/tlsengine/pkg/crypto/elliptic"
	"github.com/gotls/tlsengine/pkg/crypto/keyschedule"
	"github.com/gotls/tlsengine/pkg/crypto/prf"
	"github.com/gotls/tlsengine/pkg/crypto/signaturehash"
	"github.com/gotls/tlsengine/pkg/crypto/transcript"
	"github.com/gotls/tlsengine/pkg/protocol"
	"github.com/gotls/tlsengine/pkg/protocol/handshake"
	"github.com/gotls/tlsengine/pkg/protocol/handshake/extension"
)

// ---- Server driver ---------------------------------------------------
//
// Mirrors handshaker.go's client driver section-for-section:
// [HelloRetryRequest once, then the second ClientHello, TLS 1.3 only] ->
// SendServerHello -> EncryptedExtensions ->
// CertificateRequest/Certificate/CertificateVerify (skipped under PSK
// resumption) -> Finished -> WaitFinished (TLS 1.3), or SendServerHello ->
// SendCertificate -> SendServerKeyExchange -> SendCertificateRequest ->
// SendServerHelloDone -> WaitClientKeyExchange -> WaitFinished -> SendFinished
// (TLS 1.2).

func (c *Connection) runServerHandshake(ctx context.Context, items chan handshakeItem) error {
	if err := c.doServerHandshake(ctx, items); err != nil {
		return c.abortHandshake(err)
	}
	return nil
}

func (c *Connection) doServerHandshake(ctx context.Context, items chan handshakeItem) error { //nolint:cyclop
	hs, err := c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeClientHello {
		return NewError(KindUnexpectedMessage, errors.New("expected ClientHello"))
	}
	ch, ok := hs.Message.(*handshake.MessageClientHello)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed ClientHello"))
	}
	chRaw, err := rawHandshakeBytes(hs)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	negotiated, ok := negotiateVersion(ch, c.config.minVersion(), c.config.maxVersion())
	if !ok {
		return NewError(KindProtocolVersion, errNoSupportedVersion)
	}
	suite, ok := selectCipherSuite(ch.CipherSuiteIDs, c.config.cipherSuites(), negotiated.Equal(protocol.Version1_3))
	if !ok {
		return NewError(KindIllegalParameter, errNoSupportedCipherSuite)
	}

	tr := transcript.New(suite.Hash)
	tr.Write(chRaw)

	if negotiated.Equal(protocol.Version1_3) {
		return c.serverTLS13(ctx, items, ch, chRaw, suite, tr)
	}
	return c.serverTLS12(ctx, items, ch, suite, tr)
}

// negotiateVersion picks the highest protocol.Version both this server's
// [minV,maxV] range and the ClientHello's offered versions agree on. TLS
// 1.3 clients advertise their real versions only via supported_versions,
// RFC 8446 Section 4.2.1; a ClientHello without that extension is read as
// TLS 1.2-or-below via its legacy Version field.
func negotiateVersion(ch *handshake.MessageClientHello, minV, maxV protocol.Version) (protocol.Version, bool) {
	offered := map[uint16]bool{}
	if sv, ok := findExtension[*extension.SupportedVersions](ch.Extensions); ok {
		for _, v := range sv.Versions {
			offered[v] = true
		}
	} else {
		offered[wireVersion(ch.Version)] = true
	}
	for _, v := range []protocol.Version{protocol.Version1_3, protocol.Version1_2} {
		if versionInRange(v, minV, maxV) && offered[wireVersion(v)] {
			return v, true
		}
	}
	return protocol.Version{}, false
}

// selectCipherSuite narrows cipher_suite.go's negotiateCipherSuite to the
// suite family the negotiated version requires, then applies the server's
// preference order against what the client offered.
func selectCipherSuite(offered []uint16, allowed []ciphersuite.ID, wantTLS13 bool) (ciphersuite.Suite, bool) {
	offeredIDs := make([]ciphersuite.ID, len(offered))
	for i, id := range offered {
		offeredIDs[i] = ciphersuite.ID(id)
	}
	filtered := make([]ciphersuite.ID, 0, len(allowed))
	for _, id := range allowed {
		if suite, ok := ciphersuite.ByID(id); ok && suite.IsTLS13 == wantTLS13 {
			filtered = append(filtered, id)
		}
	}
	suite, err := negotiateCipherSuite(offeredIDs, filtered)
	return suite, err == nil
}

// pickGroup returns the first of the server's configured groups that the
// client already sent a key_share for (ok, needHRR=false), or, failing
// that, the first the server configures that the client merely listed in
// supported_groups (ok, needHRR=true): the server must HelloRetryRequest
// for a share in that case, RFC 8446 Section 4.1.4.
func pickGroup(shares []extension.KeyShareEntry, supported []uint16, serverGroups []elliptic.Group) (group elliptic.Group, share *extension.KeyShareEntry, needHRR bool, ok bool) {
	for _, g := range serverGroups {
		for i := range shares {
			if elliptic.Group(shares[i].Group) == g {
				return g, &shares[i], false, true
			}
		}
	}
	offered := make(map[uint16]bool, len(supported))
	for _, g := range supported {
		offered[g] = true
	}
	for _, g := range serverGroups {
		if offered[uint16(g)] {
			return g, nil, true, true
		}
	}
	return 0, nil, false, false
}

func selectALPN(offered []string, configured []string) string {
	offeredSet := make(map[string]bool, len(offered))
	for _, p := range offered {
		offeredSet[p] = true
	}
	for _, p := range configured {
		if offeredSet[p] {
			return p
		}
	}
	return ""
}

// truncatedClientHelloForBinder strips the binder value itself (but not
// the length prefixes preceding it) from a marshaled ClientHello, RFC
// 8446 Section 4.2.11.2: what the binder signs is everything up to and
// including the PreSharedKey extension's binders-list length field.
func truncatedClientHelloForBinder(chRaw []byte, binder []byte) []byte {
	return chRaw[:len(chRaw)-len(binder)]
}

// serverPSK evaluates a ClientHello's single-identity pre_shared_key
// offer (this engine, symmetric with buildClientHello's offer, never
// offers/accepts more than one) against the SessionCache, verifying the
// binder RFC 8446 Section 4.2.11.2 requires. Returns ok=false whenever
// the offer cannot be honored, in which case the driver falls back to a
// full handshake rather than failing outright.
func (c *Connection) serverPSK(ch *handshake.MessageClientHello, chRaw []byte) (psk []byte, session *Session, ok bool) {
	if c.config.SessionCache == nil {
		return nil, nil, false
	}
	pskExt, ok := findExtension[*extension.PreSharedKey](ch.Extensions)
	if !ok || len(pskExt.Identities) != 1 || len(pskExt.Binders) != 1 {
		return nil, nil, false
	}
	cached, found := c.config.SessionCache.Get(string(pskExt.Identities[0].Identity))
	if !found || !cached.Resumable() || cached.Ticket == nil || cached.Ticket.Expired(time.Now()) {
		return nil, nil, false
	}
	ticketSuite, ok := ciphersuite.ByID(cached.CipherSuite)
	if !ok {
		return nil, nil, false
	}
	truncated := truncatedClientHelloForBinder(chRaw, pskExt.Binders[0])
	digest := ticketSuite.Hash.New()
	digest.Write(truncated)

	resumptionPSK := keyschedule.New(ticketSuite.Hash, nil).ResumptionPSK(cached.MasterSecret, cached.Ticket.Nonce)
	pskSchedule := keyschedule.New(ticketSuite.Hash, resumptionPSK)
	expected := computeBinder(pskSchedule, ticketSuite, digest.Sum(nil))
	if !bytesEqual(expected, pskExt.Binders[0]) {
		return nil, nil, false
	}
	return resumptionPSK, cached, true
}

// WaitClientHello -> [SendHelloRetryRequest -> WaitClientHello2] -> SendServerHello ->
// SendEncryptedExtensions -> SendCertReq/Cert/CertVerify -> SendFinished -> WaitFinished -> Established
func (c *Connection) serverTLS13(ctx context.Context, items chan handshakeItem, ch *handshake.MessageClientHello, chRaw []byte, suite ciphersuite.Suite, tr *transcript.Hash) error { //nolint:cyclop
	groups := c.config.groups()
	ks, _ := findExtension[*extension.KeyShare](ch.Extensions)
	var sg *extension.SupportedGroups
	if v, ok := findExtension[*extension.SupportedGroups](ch.Extensions); ok {
		sg = v
	} else {
		sg = &extension.SupportedGroups{}
	}
	var clientShares []extension.KeyShareEntry
	if ks != nil {
		clientShares = ks.ClientShares
	}
	group, share, needHRR, ok := pickGroup(clientShares, sg.Groups, groups)
	if !ok {
		return NewError(KindHandshakeFailure, errNoSupportedGroup)
	}

	if needHRR {
		hrr := &handshake.MessageServerHello{
			Version:       protocol.Version1_2,
			SessionID:     ch.SessionID,
			CipherSuiteID: uintPtr(uint16(suite.ID)),
			Extensions: []extension.Extension{
				extension.NewSupportedVersionsSelected(wireVersion(protocol.Version1_3)),
				extension.NewKeyShareHelloRetryRequest(uint16(group)),
			},
		}
		hrr.Random.SetHelloRetryRequest()
		hrrHS := &handshake.Handshake{Message: hrr}
		if err := c.writeContent(hrrHS); err != nil {
			return err
		}
		hrrRaw, err := hrrHS.Marshal()
		if err != nil {
			return NewError(KindInternalError, err)
		}
		hash1 := suite.Hash.New()
		hash1.Write(chRaw)
		tr.ReplaceWithMessageHash(hash1.Sum(nil))
		tr.Write(hrrRaw)

		hs2, err := c.nextHandshakeItem(ctx, items)
		if err != nil {
			return err
		}
		if hs2.Header.Type != handshake.TypeClientHello {
			return NewError(KindUnexpectedMessage, errors.New("expected second ClientHello after HelloRetryRequest"))
		}
		ch2, ok := hs2.Message.(*handshake.MessageClientHello)
		if !ok {
			return NewError(KindDecodeError, errors.New("malformed ClientHello"))
		}
		ch2Raw, err := rawHandshakeBytes(hs2)
		if err != nil {
			return NewError(KindInternalError, err)
		}
		tr.Write(ch2Raw)

		ks2, ok := findExtension[*extension.KeyShare](ch2.Extensions)
		if !ok {
			return NewError(KindMissingExtension, errors.New("second ClientHello missing key_share"))
		}
		found := false
		for i := range ks2.ClientShares {
			if elliptic.Group(ks2.ClientShares[i].Group) == group {
				share = &ks2.ClientShares[i]
				found = true
				break
			}
		}
		if !found {
			return NewError(KindIllegalParameter, errors.New("second ClientHello did not supply the requested group"))
		}
		ch = ch2
		chRaw = ch2Raw
	}

	ka, ok := elliptic.NewKeyAgreement(group)
	if !ok {
		return NewError(KindIllegalParameter, errNoSupportedGroup)
	}
	priv, pub, err := ka.GenerateKeyPair()
	if err != nil {
		return NewError(KindInternalError, err)
	}
	dheShared, err := ka.DeriveShared(priv, share.KeyExchange)
	if err != nil {
		return NewError(KindDecodeError, err)
	}

	psk, pskSession, usingPSK := c.serverPSK(ch, chRaw)

	shExtensions := []extension.Extension{
		extension.NewSupportedVersionsSelected(wireVersion(protocol.Version1_3)),
		extension.NewKeyShareServerHello(uint16(group), pub),
	}
	if usingPSK {
		shExtensions = append(shExtensions, extension.NewPreSharedKeySelected(0))
	}
	sh := &handshake.MessageServerHello{
		Version:       protocol.Version1_2,
		SessionID:     ch.SessionID,
		CipherSuiteID: uintPtr(uint16(suite.ID)),
		Extensions:    shExtensions,
	}
	random, err := c.newRandom()
	if err != nil {
		return err
	}
	sh.Random = random

	if err := c.sendHandshake(sh, tr); err != nil {
		return err
	}

	schedule := keyschedule.New(suite.Hash, psk)
	schedule.AdvanceToHandshakeSecret(dheShared)

	thServerHello := tr.Sum()
	chts := schedule.ClientHandshakeTrafficSecret(thServerHello)
	shts := schedule.ServerHandshakeTrafficSecret(thServerHello)

	readState, _, err := installTrafficKeys(suite, chts, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	writeState, _, err := installTrafficKeys(suite, shts, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.setReadState(readState)
	c.setWriteState(writeState)

	alpn := selectALPN(alpnOffered(ch), c.config.ALPNProtocols)
	var eeExts []extension.Extension
	if alpn != "" {
		eeExts = append(eeExts, &extension.ALPN{ProtocolNameList: []string{alpn}})
	}
	if hb, ok := findExtension[*extension.Heartbeat](ch.Extensions); ok && c.config.EnableHeartbeat {
		_ = hb
		eeExts = append(eeExts, &extension.Heartbeat{Mode: extension.HeartbeatPeerAllowedToSend})
		c.heartbeatNegotiated = true
	}
	c.alpnProtocol = alpn
	if err := c.sendHandshake(&handshake.MessageEncryptedExtensions{Extensions: eeExts}, tr); err != nil {
		return err
	}

	var certEntries []handshake.CertificateEntry
	var clientFin *handshake.MessageFinished
	requestedClientCert := c.config.ClientAuth && !usingPSK
	if !usingPSK {
		if requestedClientCert {
			crExts := []extension.Extension{&extension.SignatureAlgorithms{Schemes: toSchemeIDs(signaturehash.DefaultSchemes)}}
			cr := handshake.NewMessageCertificateRequest(true)
			cr.Extensions = crExts
			cr.SignatureSchemes = toSchemeIDs(signaturehash.DefaultSchemes)
			if err := c.sendHandshake(cr, tr); err != nil {
				return err
			}
		}

		var peerSchemes []uint16
		if sa, ok := findExtension[*extension.SignatureAlgorithms](ch.Extensions); ok {
			peerSchemes = sa.Schemes
		}
		cert, alg, found := pickCertificate(c.config.Certificates, peerSchemes)
		if !found {
			return NewError(KindHandshakeFailure, errNoCertificates)
		}
		certMsg := handshake.NewMessageCertificate(true)
		certMsg.Certificates = []handshake.CertificateEntry{{CertData: cert.Chain[0]}}
		for _, chainCert := range cert.Chain[1:] {
			certMsg.Certificates = append(certMsg.Certificates, handshake.CertificateEntry{CertData: chainCert})
		}
		certEntries = certMsg.Certificates
		if err := c.sendHandshake(certMsg, tr); err != nil {
			return err
		}

		thBeforeCV := tr.Sum()
		sigContent := certificateVerifyContent(certificateVerifyContextServer, thBeforeCV)
		sig, err := signaturehash.Sign(alg, cert.PrivateKey, sigContent)
		if err != nil {
			return NewError(KindInternalError, err)
		}
		if err := c.sendHandshake(&handshake.MessageCertificateVerify{Algorithm: uint16(alg), Signature: sig}, tr); err != nil {
			return err
		}
	}

	finishedKeyServer := keyschedule.FinishedKey(suite.Hash, shts)
	thBeforeServerFinished := tr.Sum()
	serverMAC := hmac.New(suite.Hash.New, finishedKeyServer)
	serverMAC.Write(thBeforeServerFinished)
	serverFin := &handshake.MessageFinished{VerifyData: serverMAC.Sum(nil)}
	if err := c.sendHandshake(serverFin, tr); err != nil {
		return err
	}

	thServerFinished := tr.Sum()
	schedule.AdvanceToMasterSecret()
	cats0 := schedule.ClientApplicationTrafficSecret0(thServerFinished)
	sats0 := schedule.ServerApplicationTrafficSecret0(thServerFinished)

	newWriteState, _, err := installTrafficKeys(suite, sats0, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.setWriteState(newWriteState)

	if requestedClientCert {
		hs, err := c.nextHandshakeItem(ctx, items)
		if err != nil {
			return err
		}
		if hs.Header.Type != handshake.TypeCertificate {
			return NewError(KindUnexpectedMessage, errors.New("expected client Certificate"))
		}
		clientCertMsg, err := handshake.ParseCertificate(hs.RawBody, true)
		if err != nil {
			return NewError(KindDecodeError, err)
		}
		mustWrite(tr, hs)
		if len(clientCertMsg.Certificates) == 0 {
			return NewError(KindCertificateUnknown, errNoClientCertificate)
		}
		var rawCerts [][]byte
		for _, entry := range clientCertMsg.Certificates {
			rawCerts = append(rawCerts, entry.CertData)
		}
		clientLeaf, err := c.config.certificateVerifier().VerifyChain(rawCerts, "", time.Now())
		if err != nil {
			return NewError(KindBadCertificate, err)
		}
		c.peerCertificates = rawCerts

		thBeforeClientCV := tr.Sum()
		hs, err = c.nextHandshakeItem(ctx, items)
		if err != nil {
			return err
		}
		if hs.Header.Type != handshake.TypeCertificateVerify {
			return NewError(KindUnexpectedMessage, errors.New("expected client CertificateVerify"))
		}
		cv, ok := hs.Message.(*handshake.MessageCertificateVerify)
		if !ok {
			return NewError(KindDecodeError, errors.New("malformed CertificateVerify"))
		}
		sigContent := certificateVerifyContent(certificateVerifyContextClient, thBeforeClientCV)
		if err := signaturehash.Verify(signaturehash.Algorithm(cv.Algorithm), clientLeaf.PublicKey, sigContent, cv.Signature); err != nil {
			return NewError(KindDecodeError, err)
		}
		mustWrite(tr, hs)
	}

	thBeforeClientFinished := tr.Sum()
	hs, err := c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeFinished {
		return NewError(KindUnexpectedMessage, errors.New("expected client Finished"))
	}
	clientFin, ok = hs.Message.(*handshake.MessageFinished)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed Finished"))
	}
	expected := hmac.New(suite.Hash.New, keyschedule.FinishedKey(suite.Hash, chts))
	expected.Write(thBeforeClientFinished)
	if subtle.ConstantTimeCompare(expected.Sum(nil), clientFin.VerifyData) != 1 {
		return NewError(KindDecodeError, errors.New("client Finished verify_data mismatch"))
	}
	mustWrite(tr, hs)

	thClientFinished := tr.Sum()
	resumptionMasterSecret := schedule.ResumptionMasterSecret(thClientFinished)

	newReadState, _, err := installTrafficKeys(suite, cats0, protocol.Version1_3)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.setReadState(newReadState)
	c.negotiatedVersion = protocol.Version1_3
	c.suite = suite
	c.schedule13 = schedule
	c.resumptionMasterSecret = resumptionMasterSecret
	c.trafficSecretMu.Lock()
	c.clientTrafficSecret = cats0
	c.serverTrafficSecret = sats0
	c.trafficSecretMu.Unlock()

	peerCerts := c.peerCertificates
	if usingPSK && pskSession != nil {
		peerCerts = pskSession.PeerCertificates
	}
	c.session = &Session{
		Version:           protocol.Version1_3,
		CipherSuite:       suite.ID,
		ALPNProtocol:      alpn,
		PeerCertificates:  peerCerts,
		MasterSecret:      resumptionMasterSecret,
		EarlyDataAccepted: false,
		CreatedAt:         time.Now(),
	}
	c.handshakeLog = newHandshakeLog(ch, sh, certEntries, serverFin, clientFin, nil, nil)

	if !usingPSK {
		if err := c.issueSessionTicket(); err != nil {
			return err
		}
	}
	return nil
}

// WaitClientHello -> SendServerHello -> SendCertificate -> SendServerKeyExchange ->
// [SendCertificateRequest] -> SendServerHelloDone -> WaitClientKeyExchange ->
// WaitFinished -> SendFinished -> Established
func (c *Connection) serverTLS12(ctx context.Context, items chan handshakeItem, ch *handshake.MessageClientHello, suite ciphersuite.Suite, tr *transcript.Hash) error { //nolint:cyclop
	extendedMasterSecret := c.config.ExtendedMasterSecret
	if _, ok := findExtension[*extension.UseExtendedMasterSecret](ch.Extensions); !ok {
		extendedMasterSecret = false
	}

	sessionID := make([]byte, 32)
	if _, err := c.config.rand().Read(sessionID); err != nil {
		return NewError(KindInternalError, err)
	}
	alpn := selectALPN(alpnOffered(ch), c.config.ALPNProtocols)
	var shExts []extension.Extension
	if alpn != "" {
		shExts = append(shExts, &extension.ALPN{ProtocolNameList: []string{alpn}})
	}
	if extendedMasterSecret {
		shExts = append(shExts, &extension.UseExtendedMasterSecret{})
	}
	shExts = append(shExts, &extension.RenegotiationInfo{})

	random, err := c.newRandom()
	if err != nil {
		return err
	}
	if _, offeredTLS13 := findExtension[*extension.SupportedVersions](ch.Extensions); offeredTLS13 && versionInRange(protocol.Version1_3, c.config.minVersion(), c.config.maxVersion()) {
		random.SetDowngradeSentinelTLS12()
	}
	sh := &handshake.MessageServerHello{
		Version:       protocol.Version1_2,
		Random:        random,
		SessionID:     sessionID,
		CipherSuiteID: uintPtr(uint16(suite.ID)),
		Extensions:    shExts,
	}
	if err := c.sendHandshake(sh, tr); err != nil {
		return err
	}
	c.alpnProtocol = alpn

	var peerSchemes []uint16
	if sa, ok := findExtension[*extension.SignatureAlgorithms](ch.Extensions); ok {
		peerSchemes = sa.Schemes
	} else {
		peerSchemes = toSchemeIDs(signaturehash.DefaultSchemes)
	}
	cert, alg, found := pickCertificate(c.config.Certificates, peerSchemes)
	if !found {
		return NewError(KindHandshakeFailure, errNoCertificates)
	}
	certMsg := handshake.NewMessageCertificate(false)
	certMsg.Certificates = []handshake.CertificateEntry{{CertData: cert.Chain[0]}}
	for _, chainCert := range cert.Chain[1:] {
		certMsg.Certificates = append(certMsg.Certificates, handshake.CertificateEntry{CertData: chainCert})
	}
	if err := c.sendHandshake(certMsg, tr); err != nil {
		return err
	}

	var sg *extension.SupportedGroups
	if v, ok := findExtension[*extension.SupportedGroups](ch.Extensions); ok {
		sg = v
	} else {
		sg = &extension.SupportedGroups{Groups: []uint16{uint16(elliptic.X25519)}}
	}
	group, _, _, ok := pickGroup(nil, sg.Groups, c.config.groups())
	if !ok {
		return NewError(KindHandshakeFailure, errNoSupportedGroup)
	}
	ka, ok := elliptic.NewKeyAgreement(group)
	if !ok {
		return NewError(KindIllegalParameter, errNoSupportedGroup)
	}
	ephPriv, ephPub, err := ka.GenerateKeyPair()
	if err != nil {
		return NewError(KindInternalError, err)
	}

	clientRandomFixed := ch.Random.MarshalFixed()
	serverRandomFixed := sh.Random.MarshalFixed()
	signedParams := make([]byte, 0, 32+32+4+len(ephPub))
	signedParams = append(signedParams, clientRandomFixed[:]...)
	signedParams = append(signedParams, serverRandomFixed[:]...)
	signedParams = append(signedParams, 3, byte(group>>8), byte(group), byte(len(ephPub)))
	signedParams = append(signedParams, ephPub...)
	sig, err := signaturehash.Sign(alg, cert.PrivateKey, signedParams)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	ske := &handshake.MessageServerKeyExchange{
		NamedCurve: uint16(group),
		PublicKey:  ephPub,
		Algorithm:  uint16(alg),
		Signature:  sig,
	}
	if err := c.sendHandshake(ske, tr); err != nil {
		return err
	}

	requestedClientCert := c.config.ClientAuth
	if requestedClientCert {
		cr := handshake.NewMessageCertificateRequest(false)
		cr.SignatureSchemes = toSchemeIDs(signaturehash.DefaultSchemes)
		if err := c.sendHandshake(cr, tr); err != nil {
			return err
		}
	}

	if err := c.sendHandshake(&handshake.MessageServerHelloDone{}, tr); err != nil {
		return err
	}

	var clientCertPresent bool
	var clientLeaf *x509.Certificate
	if requestedClientCert {
		hs, err := c.nextHandshakeItem(ctx, items)
		if err != nil {
			return err
		}
		if hs.Header.Type != handshake.TypeCertificate {
			return NewError(KindUnexpectedMessage, errors.New("expected client Certificate"))
		}
		clientCertMsg, err := handshake.ParseCertificate(hs.RawBody, false)
		if err != nil {
			return NewError(KindDecodeError, err)
		}
		mustWrite(tr, hs)
		if len(clientCertMsg.Certificates) > 0 {
			clientCertPresent = true
			var rawCerts [][]byte
			for _, entry := range clientCertMsg.Certificates {
				rawCerts = append(rawCerts, entry.CertData)
			}
			leaf, err := c.config.certificateVerifier().VerifyChain(rawCerts, "", time.Now())
			if err != nil {
				return NewError(KindBadCertificate, err)
			}
			clientLeaf = leaf
			c.peerCertificates = rawCerts
		}
	}

	hs, err := c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeClientKeyExchange {
		return NewError(KindUnexpectedMessage, errors.New("expected ClientKeyExchange"))
	}
	cke, ok := hs.Message.(*handshake.MessageClientKeyExchange)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed ClientKeyExchange"))
	}
	preMasterSecret, err := ka.DeriveShared(ephPriv, cke.PublicKey)
	if err != nil {
		return NewError(KindDecodeError, err)
	}
	mustWrite(tr, hs)
	sessionHash := tr.Sum()

	if clientCertPresent {
		thBeforeCV := tr.Sum()
		hs, err = c.nextHandshakeItem(ctx, items)
		if err != nil {
			return err
		}
		if hs.Header.Type != handshake.TypeCertificateVerify {
			return NewError(KindUnexpectedMessage, errors.New("expected client CertificateVerify"))
		}
		cv, ok := hs.Message.(*handshake.MessageCertificateVerify)
		if !ok {
			return NewError(KindDecodeError, errors.New("malformed CertificateVerify"))
		}
		if err := verifyTLS12CertificateVerify(signaturehash.Algorithm(cv.Algorithm), clientLeaf, thBeforeCV, cv.Signature); err != nil {
			return NewError(KindDecodeError, err)
		}
		mustWrite(tr, hs)
	} else if requestedClientCert {
		return NewError(KindHandshakeFailure, errNoClientCertificate)
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
	// The client's ChangeCipherSpec, and the clientState key it switches
	// reads to, hasn't arrived yet; arm the gate so handshakeReadLoop
	// installs clientState exactly when it observes that record instead
	// of right now, or the client's Finished would be misread as already
	// AEAD-protected before the client has actually started encrypting
	// under it.
	c.armCCSGate(clientState)

	thBeforeClientFinished := tr.Sum()
	hs, err = c.nextHandshakeItem(ctx, items)
	if err != nil {
		return err
	}
	if hs.Header.Type != handshake.TypeFinished {
		return NewError(KindUnexpectedMessage, errors.New("expected client Finished"))
	}
	clientFin, ok := hs.Message.(*handshake.MessageFinished)
	if !ok {
		return NewError(KindDecodeError, errors.New("malformed Finished"))
	}
	expected, err := prf.VerifyDataClient(masterSecret, thBeforeClientFinished, suite.Hash.New)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if subtle.ConstantTimeCompare(expected, clientFin.VerifyData) != 1 {
		return NewError(KindDecodeError, errors.New("client Finished verify_data mismatch"))
	}
	mustWrite(tr, hs)

	if err := c.writeContent(&protocol.ChangeCipherSpec{}); err != nil {
		return err
	}
	c.setWriteState(serverState)
	serverVerifyData, err := prf.VerifyDataServer(masterSecret, tr.Sum(), suite.Hash.New)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	serverFin := &handshake.MessageFinished{VerifyData: serverVerifyData}
	if err := c.sendHandshake(serverFin, tr); err != nil {
		return err
	}

	c.negotiatedVersion = protocol.Version1_2
	c.suite = suite
	c.session = &Session{
		Version:              protocol.Version1_2,
		CipherSuite:          suite.ID,
		ALPNProtocol:         alpn,
		ExtendedMasterSecret: extendedMasterSecret,
		MasterSecret:         masterSecret,
		PeerCertificates:     c.peerCertificates,
		TLS12SessionID:       sessionID,
		CreatedAt:            time.Now(),
	}
	c.handshakeLog = newHandshakeLog(ch, sh, certMsg.Certificates, serverFin, clientFin, masterSecret, preMasterSecret)
	return nil
}

// verifyTLS12CertificateVerify verifies a signature over an
// already-computed transcript digest directly, the inverse of
// signTLS12CertificateVerify's signing bypass of signaturehash.Sign, for
// the same reason: RFC 5246 Section 7.4.8's CertificateVerify signs the
// running transcript digest, not a fresh message.
func verifyTLS12CertificateVerify(alg signaturehash.Algorithm, leaf *x509.Certificate, digest, sig []byte) error {
	ecKey, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return errClientCertVerifyUnsupportedKey
	}
	if !ecdsa.VerifyASN1(ecKey, digest, sig) {
		return errClientCertVerifyFailed
	}
	return nil
}

func alpnOffered(ch *handshake.MessageClientHello) []string {
	if a, ok := findExtension[*extension.ALPN](ch.Extensions); ok {
		return a.ProtocolNameList
	}
	return nil
}

func uintPtr(v uint16) *uint16 { return &v }
