// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"github.com/gotls/tlsengine/pkg/protocol/handshake"
	"github.com/zmap/zcrypto/tls"
)

// HandshakeLog is the zcrypto fingerprint-compatible export of a completed
// handshake, spec.md §3's (NEW) additional entity, grounded on the
// teacher's Conn.GetHandshakeLog: a flat bag of the per-message zcrypto
// views plus the key material, assembled once at the end of a successful
// handshake rather than replayed from a cache (this engine never keeps
// the full handshake cache the teacher does; the driver captures what it
// needs as it goes).
type HandshakeLog struct {
	ClientHello        *tls.ClientHello
	ServerHello        *tls.ServerHello
	ServerCertificates *tls.Certificates
	ClientFinished     *tls.Finished
	ServerFinished     *tls.Finished
	KeyMaterial        *tls.KeyMaterial
}

// newHandshakeLog assembles a HandshakeLog from the messages a completed
// client or server handshake accumulated. masterSecret/preMasterSecret are nil for a
// TLS 1.3 connection, which has no classic master_secret; KeyMaterial is
// left nil in that case rather than populated with the unrelated
// resumption_master_secret.
func newHandshakeLog(ch *handshake.MessageClientHello, sh *handshake.MessageServerHello, serverCerts []handshake.CertificateEntry, serverFin, clientFin *handshake.MessageFinished, masterSecret, preMasterSecret []byte) *HandshakeLog {
	certMsg := &handshake.MessageCertificate{Certificates: serverCerts}
	log := &HandshakeLog{
		ClientHello:        ch.MakeLog(),
		ServerHello:        sh.MakeLog(),
		ServerCertificates: certMsg.MakeLog(),
		ServerFinished:     serverFin.MakeLog(),
	}
	if clientFin != nil {
		log.ClientFinished = clientFin.MakeLog()
	}
	if masterSecret != nil {
		log.KeyMaterial = &tls.KeyMaterial{
			MasterSecret: &tls.MasterSecret{Value: masterSecret, Length: len(masterSecret)},
			PreMasterSecret: &tls.PreMasterSecret{
				Value:  preMasterSecret,
				Length: len(preMasterSecret),
			},
		}
	}
	return log
}
