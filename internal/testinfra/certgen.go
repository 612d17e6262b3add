package testinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// SQL Server on Linux only loads RSA server certificates.
const rsaKeyBits = 2048

// CertBundle holds a throwaway CA and a server certificate it signed, PEM encoded.
type CertBundle struct {
	CACert, CAKey         []byte
	ServerCert, ServerKey []byte
}

// CertPaths are the files written by WriteToDir.
type CertPaths struct {
	CACert     string
	ServerCert string
	ServerKey  string
}

// certValidity is long enough for one test run.
const certValidity = time.Hour

// GenerateCertBundle issues a CA and a server certificate valid for hosts.
// IP literals go into the IP SANs, everything else into the DNS SANs.
func GenerateCertBundle(hosts []string) (*CertBundle, error) {
	ca := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "mssqlretry-test-ca"},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, caKey, err := issue(ca, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("CA: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}

	server := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: hostsCommonName(hosts)},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			server.IPAddresses = append(server.IPAddresses, ip)
		} else {
			server.DNSNames = append(server.DNSNames, h)
		}
	}
	serverDER, serverKey, err := issue(server, caCert, caKey)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	bundle := &CertBundle{
		CACert:     encodeCertPEM(caDER),
		ServerCert: encodeCertPEM(serverDER),
	}
	if bundle.CAKey, err = encodeKeyPEM(caKey); err != nil {
		return nil, fmt.Errorf("encode CA key: %w", err)
	}
	if bundle.ServerKey, err = encodeKeyPEM(serverKey); err != nil {
		return nil, fmt.Errorf("encode server key: %w", err)
	}
	return bundle, nil
}

// issue generates a key for template and signs it with parentKey, or
// self-signs when parent is nil.
func issue(template, parent *x509.Certificate, parentKey *rsa.PrivateKey) ([]byte, *rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	now := time.Now()
	template.NotBefore = now.Add(-5 * time.Minute)
	template.NotAfter = now.Add(certValidity)

	if parent == nil {
		parent, parentKey = template, key
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	return der, key, nil
}

// WriteToDir writes the CA certificate and the server pair into dir.
func (b *CertBundle) WriteToDir(dir string) (*CertPaths, error) {
	paths := &CertPaths{
		CACert:     filepath.Join(dir, "ca.crt"),
		ServerCert: filepath.Join(dir, "server.crt"),
		ServerKey:  filepath.Join(dir, "server.key"),
	}

	files := map[string][]byte{
		paths.CACert:     b.CACert,
		paths.ServerCert: b.ServerCert,
		paths.ServerKey:  b.ServerKey,
	}

	for path, data := range files {
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}

	return paths, nil
}

// hostsCommonName picks the first DNS name, which SQL Server reports as the
// certificate subject.
func hostsCommonName(hosts []string) string {
	for _, h := range hosts {
		if net.ParseIP(h) == nil {
			return h
		}
	}
	return "mssqlretry-test-server"
}

func encodeCertPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func encodeKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
