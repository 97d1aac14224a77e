// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlsengine

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/gotls/tlsengine/pkg/crypto/ciphersuite"
	tlsgroup "github.com/gotls/tlsengine/pkg/crypto/elliptic"
	"github.com/gotls/tlsengine/pkg/protocol"
)

// testCertificate builds a self-signed ECDSA P-256 certificate, the same
// key type censys-oss-dtls's own test fixtures use for their ephemeral
// handshake peers.
func testCertificate(t *testing.T, cn string) Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatal(err)
	}
	return Certificate{Chain: [][]byte{der}, PrivateKey: priv}
}

// handshakePair runs a Client and Server handshake concurrently over an
// in-memory net.Pipe, grounded on the teacher's e2eConnPair style of
// exercising both sides of a handshake against each other rather than
// against golden wire captures.
func handshakePair(t *testing.T, clientCfg, serverCfg *Config) (*Connection, *Connection) {
	t.Helper()
	clientTransport, serverTransport := net.Pipe()

	type result struct {
		conn *Connection
		err  error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		c, err := Client(ctx, clientTransport, clientCfg)
		clientCh <- result{c, err}
	}()
	go func() {
		s, err := Server(ctx, serverTransport, serverCfg)
		serverCh <- result{s, err}
	}()

	cr := <-clientCh
	sr := <-serverCh
	if cr.err != nil {
		t.Fatalf("client handshake: %v", cr.err)
	}
	if sr.err != nil {
		t.Fatalf("server handshake: %v", sr.err)
	}
	return cr.conn, sr.conn
}

func exchangeApplicationData(t *testing.T, client, server *Connection) {
	t.Helper()
	msg := []byte("hello from client")
	if _, err := client.Write(msg); err != nil {
		t.Fatalf("client write: %v", err)
	}
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if !bytes.Equal(buf, msg) {
		t.Fatalf("server read %q, want %q", buf, msg)
	}

	reply := []byte("hello from server")
	if _, err := server.Write(reply); err != nil {
		t.Fatalf("server write: %v", err)
	}
	buf2 := make([]byte, len(reply))
	if _, err := io.ReadFull(client, buf2); err != nil {
		t.Fatalf("client read: %v", err)
	}
	if !bytes.Equal(buf2, reply) {
		t.Fatalf("client read %q, want %q", buf2, reply)
	}
}

func TestHandshakeTLS13ECDHE(t *testing.T) {
	serverCert := testCertificate(t, "example.com")
	clientCfg := &Config{
		MinVersion:         protocol.Version1_3,
		MaxVersion:         protocol.Version1_3,
		ServerName:         "example.com",
		InsecureSkipVerify: true,
	}
	serverCfg := &Config{
		MinVersion:   protocol.Version1_3,
		MaxVersion:   protocol.Version1_3,
		Certificates: []Certificate{serverCert},
	}
	client, server := handshakePair(t, clientCfg, serverCfg)
	defer client.Close()
	defer server.Close()

	if !client.negotiatedVersion.Equal(protocol.Version1_3) {
		t.Fatalf("client negotiated %v, want TLS 1.3", client.negotiatedVersion)
	}
	if !server.negotiatedVersion.Equal(protocol.Version1_3) {
		t.Fatalf("server negotiated %v, want TLS 1.3", server.negotiatedVersion)
	}
	exchangeApplicationData(t, client, server)
}

func TestHandshakeTLS13HelloRetryRequest(t *testing.T) {
	serverCert := testCertificate(t, "example.com")
	// The client's Groups restricts which group it sends an initial key
	// share for (X25519) while the server's Groups only accepts
	// Secp256r1, forcing a HelloRetryRequest round trip before the
	// client resubmits with a matching share.
	clientCfg := &Config{
		MinVersion:         protocol.Version1_3,
		MaxVersion:         protocol.Version1_3,
		ServerName:         "example.com",
		InsecureSkipVerify: true,
		Groups:             []tlsgroup.Group{tlsgroup.X25519, tlsgroup.Secp256r1},
	}
	serverCfg := &Config{
		MinVersion:   protocol.Version1_3,
		MaxVersion:   protocol.Version1_3,
		Certificates: []Certificate{serverCert},
		Groups:       []tlsgroup.Group{tlsgroup.Secp256r1},
	}
	client, server := handshakePair(t, clientCfg, serverCfg)
	defer client.Close()
	defer server.Close()
	exchangeApplicationData(t, client, server)
}

func TestHandshakeTLS12ECDHE(t *testing.T) {
	serverCert := testCertificate(t, "example.com")
	clientCfg := &Config{
		MinVersion:         protocol.Version1_2,
		MaxVersion:         protocol.Version1_2,
		ServerName:         "example.com",
		InsecureSkipVerify: true,
		CipherSuites:       []ciphersuite.ID{ciphersuite.TLSECDHEECDSAWithAES128GCMSHA256},
	}
	serverCfg := &Config{
		MinVersion:           protocol.Version1_2,
		MaxVersion:           protocol.Version1_2,
		Certificates:         []Certificate{serverCert},
		CipherSuites:         []ciphersuite.ID{ciphersuite.TLSECDHEECDSAWithAES128GCMSHA256},
		ExtendedMasterSecret: true,
	}
	client, server := handshakePair(t, clientCfg, serverCfg)
	defer client.Close()
	defer server.Close()

	if !client.negotiatedVersion.Equal(protocol.Version1_2) {
		t.Fatalf("client negotiated %v, want TLS 1.2", client.negotiatedVersion)
	}
	exchangeApplicationData(t, client, server)
}

func TestHandshakeTLS12ClientCertificate(t *testing.T) {
	serverCert := testCertificate(t, "example.com")
	clientCert := testCertificate(t, "client")
	clientCfg := &Config{
		MinVersion:         protocol.Version1_2,
		MaxVersion:         protocol.Version1_2,
		ServerName:         "example.com",
		InsecureSkipVerify: true,
		Certificates:       []Certificate{clientCert},
	}
	serverCfg := &Config{
		MinVersion:         protocol.Version1_2,
		MaxVersion:         protocol.Version1_2,
		Certificates:       []Certificate{serverCert},
		ClientAuth:         true,
		InsecureSkipVerify: true,
	}
	client, server := handshakePair(t, clientCfg, serverCfg)
	defer client.Close()
	defer server.Close()

	if len(server.peerCertificates) == 0 {
		t.Fatal("server did not record client certificate chain")
	}
	exchangeApplicationData(t, client, server)
}

func TestHandshakeTLS13SessionResumption(t *testing.T) {
	serverCert := testCertificate(t, "example.com")
	cache := NewMapSessionCache()
	clientCfg := &Config{
		MinVersion:         protocol.Version1_3,
		MaxVersion:         protocol.Version1_3,
		ServerName:         "example.com",
		InsecureSkipVerify: true,
		SessionCache:       cache,
	}
	serverCfg := &Config{
		MinVersion:   protocol.Version1_3,
		MaxVersion:   protocol.Version1_3,
		Certificates: []Certificate{serverCert},
		SessionCache: NewMapSessionCache(),
	}

	client1, server1 := handshakePair(t, clientCfg, serverCfg)
	exchangeApplicationData(t, client1, server1)
	client1.Close()
	server1.Close()

	// Give the post-handshake NewSessionTicket a moment to land in the
	// client's cache; issueSessionTicket runs synchronously as part of
	// the server driver but the client reads it off a background loop.
	time.Sleep(50 * time.Millisecond)

	client2, server2 := handshakePair(t, clientCfg, serverCfg)
	defer client2.Close()
	defer server2.Close()
	exchangeApplicationData(t, client2, server2)
}

func TestHandshakeKeyUpdate(t *testing.T) {
	serverCert := testCertificate(t, "example.com")
	clientCfg := &Config{
		MinVersion:         protocol.Version1_3,
		MaxVersion:         protocol.Version1_3,
		ServerName:         "example.com",
		InsecureSkipVerify: true,
	}
	serverCfg := &Config{
		MinVersion:   protocol.Version1_3,
		MaxVersion:   protocol.Version1_3,
		Certificates: []Certificate{serverCert},
	}
	client, server := handshakePair(t, clientCfg, serverCfg)
	defer client.Close()
	defer server.Close()

	if err := client.SendKeyUpdate(false); err != nil {
		t.Fatalf("SendKeyUpdate: %v", err)
	}
	exchangeApplicationData(t, client, server)
}

func TestHandshakeHeartbeat(t *testing.T) {
	serverCert := testCertificate(t, "example.com")
	clientCfg := &Config{
		MinVersion:         protocol.Version1_3,
		MaxVersion:         protocol.Version1_3,
		ServerName:         "example.com",
		InsecureSkipVerify: true,
		EnableHeartbeat:    true,
	}
	serverCfg := &Config{
		MinVersion:      protocol.Version1_3,
		MaxVersion:      protocol.Version1_3,
		Certificates:    []Certificate{serverCert},
		EnableHeartbeat: true,
	}
	client, server := handshakePair(t, clientCfg, serverCfg)
	defer client.Close()
	defer server.Close()

	if !client.heartbeatNegotiated || !server.heartbeatNegotiated {
		t.Fatal("heartbeat was not negotiated on both sides")
	}

	const paddingLen = 32

	// Pull the request directly off the server's content stream instead
	// of through Read, which would answer it transparently and never let
	// the test see the padding length the client asked for.
	reqCh := make(chan *protocol.Heartbeat, 1)
	reqErrCh := make(chan error, 1)
	go func() {
		content, err := server.readContent()
		if err != nil {
			reqErrCh <- err
			return
		}
		hb, ok := content.(*protocol.Heartbeat)
		if !ok {
			reqErrCh <- NewError(KindUnexpectedMessage, errors.New("expected heartbeat content"))
			return
		}
		reqCh <- hb
	}()

	payload := []byte("ping")
	if err := client.SendHeartbeatRequest(payload, paddingLen); err != nil {
		t.Fatalf("SendHeartbeatRequest: %v", err)
	}

	var req *protocol.Heartbeat
	select {
	case err := <-reqErrCh:
		t.Fatalf("server did not receive heartbeat_request: %v", err)
	case req = <-reqCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for heartbeat_request at server")
	}
	if req.MessageType != protocol.HeartbeatMessageTypeRequest {
		t.Fatalf("server got message type %v, want request", req.MessageType)
	}
	if !bytes.Equal(req.Payload, payload) {
		t.Fatalf("server got payload %q, want %q", req.Payload, payload)
	}
	if len(req.Padding) != paddingLen {
		t.Fatalf("server got padding length %d, want %d", len(req.Padding), paddingLen)
	}

	// handlePostHandshakeHeartbeat's auto-reply runs on the server's own
	// heartbeatPaddingLength, independent of the request's padding_len.
	if err := server.handlePostHandshakeHeartbeat(req); err != nil {
		t.Fatalf("handlePostHandshakeHeartbeat: %v", err)
	}

	respCh := make(chan *protocol.Heartbeat, 1)
	respErrCh := make(chan error, 1)
	go func() {
		content, err := client.readContent()
		if err != nil {
			respErrCh <- err
			return
		}
		hb, ok := content.(*protocol.Heartbeat)
		if !ok {
			respErrCh <- NewError(KindUnexpectedMessage, errors.New("expected heartbeat content"))
			return
		}
		respCh <- hb
	}()

	select {
	case err := <-respErrCh:
		t.Fatalf("client did not receive heartbeat_response: %v", err)
	case resp := <-respCh:
		if resp.MessageType != protocol.HeartbeatMessageTypeResponse {
			t.Fatalf("client got message type %v, want response", resp.MessageType)
		}
		if !bytes.Equal(resp.Payload, payload) {
			t.Fatalf("client got response payload %q, want %q", resp.Payload, payload)
		}
		if len(resp.Padding) != heartbeatPaddingLength {
			t.Fatalf("client got response padding length %d, want %d", len(resp.Padding), heartbeatPaddingLength)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for heartbeat_response at client")
	}
}

func TestHandshakeNoMutualVersion(t *testing.T) {
	serverCert := testCertificate(t, "example.com")
	clientCfg := &Config{
		MinVersion:         protocol.Version1_3,
		MaxVersion:         protocol.Version1_3,
		ServerName:         "example.com",
		InsecureSkipVerify: true,
	}
	serverCfg := &Config{
		MinVersion:   protocol.Version1_2,
		MaxVersion:   protocol.Version1_2,
		Certificates: []Certificate{serverCert},
	}
	clientTransport, serverTransport := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverErrCh := make(chan error, 1)
	go func() {
		_, err := Server(ctx, serverTransport, serverCfg)
		serverErrCh <- err
	}()
	_, clientErr := Client(ctx, clientTransport, clientCfg)
	if clientErr == nil {
		t.Fatal("expected client handshake to fail on version mismatch")
	}
	var tlsErr *Error
	if !errors.As(clientErr, &tlsErr) {
		t.Fatalf("expected *Error, got %T: %v", clientErr, clientErr)
	}
	<-serverErrCh
}
