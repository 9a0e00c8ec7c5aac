package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/pion/dtls/v2/examples/util"
)

const (
	serverCertFile = "server.pem"
	serverKeyFile  = "server-key.pem"
	clientCertFile = "client.pem"
	clientKeyFile  = "client-key.pem"
)

// CertStore reads the DTLS certificates kept in one directory.
type CertStore struct {
	dir    string
	logger *log.Entry
}

func NewCertStore(dir string) *CertStore {
	if dir == "" {
		dir = "./certs"
	}
	return &CertStore{
		dir:    dir,
		logger: log.WithField("module", "certs"),
	}
}

func (cs *CertStore) path(name string) string {
	return filepath.Join(cs.dir, name)
}

// RootCert is the CA the server trusts for client certificates.
func (cs *CertStore) RootCert() (*tls.Certificate, error) {
	return util.LoadCertificate(cs.path(serverCertFile))
}

// ServerCert loads the server key pair, generating a self signed one when the
// files are missing.
func (cs *CertStore) ServerCert() (*tls.Certificate, error) {
	cert, err := util.LoadKeyAndCertificate(cs.path(serverKeyFile), cs.path(serverCertFile))
	if err == nil {
		return cert, nil
	}
	cs.logger.Warnf("failed reading certs files, generating new ones: %v", err)
	return cs.generate(serverCertFile, serverKeyFile)
}

func (cs *CertStore) ClientCert() (*tls.Certificate, error) {
	return util.LoadKeyAndCertificate(cs.path(clientKeyFile), cs.path(clientCertFile))
}

func (cs *CertStore) generate(certFile, keyFile string) (*tls.Certificate, error) {
	rootTemplate := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Country:      []string{"DE"},
			Organization: []string{"feedhub"},
			CommonName:   "Root CA",
		},
		NotBefore:             time.Now().Add(-10 * time.Second),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            2,
		IPAddresses:           []net.IP{net.ParseIP("0.0.0.0")},
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, &rootTemplate, &rootTemplate, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	if err := os.MkdirAll(cs.dir, 0700); err != nil {
		return nil, err
	}
	if err := writePEM(cs.path(certFile), "CERTIFICATE", certBytes, 0644); err != nil {
		return nil, err
	}
	if err := writePEM(cs.path(keyFile), "PRIVATE KEY", privBytes, 0600); err != nil {
		return nil, err
	}

	return &tls.Certificate{
		Certificate: [][]byte{certBytes},
		PrivateKey:  priv,
	}, nil
}

func writePEM(path, blockType string, data []byte, perm os.FileMode) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := pem.Encode(out, &pem.Block{Type: blockType, Bytes: data}); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}
