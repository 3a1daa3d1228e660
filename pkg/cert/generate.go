package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// DefaultValidity is the lifetime of issued leaves when none is given.
const DefaultValidity = 90 * 24 * time.Hour

// ErrNotCA is returned when a non-CA identity is asked to issue a leaf.
var ErrNotCA = errors.New("identity is not a certificate authority")

// KeyPair is a P-256 key.
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// GenerateKeyPair creates a new P-256 key.
func GenerateKeyPair() (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &KeyPair{PrivateKey: key, PublicKey: &key.PublicKey}, nil
}

// ComputeSKI returns the subject key identifier of a public key: the
// SHA-1 of its uncompressed point (RFC 5280 method 1).
func ComputeSKI(pub *ecdsa.PublicKey) ([]byte, error) {
	ecdhPub, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEC, err)
	}
	sum := sha1.Sum(ecdhPub.Bytes())
	return sum[:], nil
}

// Identity is a certificate with its private key.
type Identity struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// NewCA creates a self-signed CA valid for validity.
func NewCA(commonName string, validity time.Duration) (*Identity, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	ski, err := ComputeSKI(kp.PublicKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          newSerial(),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
		SubjectKeyId:          ski,
	}
	return create(template, template, kp.PrivateKey, kp.PrivateKey)
}

// LeafOptions describes an endpoint certificate.
type LeafOptions struct {
	// CommonName is the subject CN.
	CommonName string

	// Hosts are IP addresses or DNS names placed in the SAN extension.
	Hosts []string

	// Validity defaults to DefaultValidity.
	Validity time.Duration
}

// Issue creates a leaf signed by ca that is usable for both server and
// client authentication.
func (ca *Identity) Issue(opts LeafOptions) (*Identity, error) {
	if ca.Cert == nil || !ca.Cert.IsCA {
		return nil, ErrNotCA
	}
	if opts.Validity <= 0 {
		opts.Validity = DefaultValidity
	}

	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	ski, err := ComputeSKI(kp.PublicKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	notAfter := now.Add(opts.Validity)
	if notAfter.After(ca.Cert.NotAfter) {
		notAfter = ca.Cert.NotAfter
	}

	template := &x509.Certificate{
		SerialNumber:   newSerial(),
		Subject:        pkix.Name{CommonName: opts.CommonName},
		NotBefore:      now.Add(-time.Minute),
		NotAfter:       notAfter,
		KeyUsage:       x509.KeyUsageDigitalSignature,
		ExtKeyUsage:    []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		SubjectKeyId:   ski,
		AuthorityKeyId: ca.Cert.SubjectKeyId,
	}
	for _, h := range opts.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	return create(template, ca.Cert, kp.PrivateKey, ca.Key)
}

// TLSCertificate returns the identity in the form crypto/tls expects.
func (id *Identity) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{id.Cert.Raw},
		PrivateKey:  id.Key,
		Leaf:        id.Cert,
	}
}

// Pool returns a pool holding only this identity's certificate.
func (id *Identity) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(id.Cert)
	return pool
}

// WriteFiles writes the certificate and the key as PEM files.
func (id *Identity) WriteFiles(certPath, keyPath string) error {
	if err := WriteCertFile(certPath, id.Cert); err != nil {
		return err
	}
	return WriteKeyFile(keyPath, id.Key)
}

// LoadIdentity reads a certificate and its key from PEM files.
func LoadIdentity(certPath, keyPath string) (*Identity, error) {
	c, err := ReadCertFile(certPath)
	if err != nil {
		return nil, err
	}
	k, err := ReadKeyFile(keyPath)
	if err != nil {
		return nil, err
	}
	return &Identity{Cert: c, Key: k}, nil
}

func create(template, parent *x509.Certificate, key, signer *ecdsa.PrivateKey) (*Identity, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signer)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return &Identity{Cert: c, Key: key}, nil
}

func newSerial() *big.Int {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return big.NewInt(time.Now().UnixNano())
	}
	return serial
}
