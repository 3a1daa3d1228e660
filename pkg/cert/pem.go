package cert

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	blockCertificate = "CERTIFICATE"
	blockPKCS8Key    = "PRIVATE KEY"
	blockECKey       = "EC PRIVATE KEY"
)

var (
	ErrInvalidPEM     = errors.New("invalid PEM data")
	ErrInvalidKey     = errors.New("not an ECDSA private key")
	ErrNoCertificates = errors.New("no certificates found")
	ErrUnsupportedEC  = errors.New("unsupported EC key type")
)

// EncodeCertPEM returns cert as a CERTIFICATE block.
func EncodeCertPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockCertificate, Bytes: cert.Raw})
}

// DecodeCertPEM parses the first CERTIFICATE block in data.
func DecodeCertPEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, ErrInvalidPEM
		}
		if block.Type == blockCertificate {
			return x509.ParseCertificate(block.Bytes)
		}
	}
}

// EncodeKeyPEM returns key as a PKCS#8 PRIVATE KEY block, the form
// crypto/tls and most tooling load without extra flags.
func EncodeKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockPKCS8Key, Bytes: der}), nil
}

// DecodeKeyPEM parses a PKCS#8 or SEC 1 ECDSA private key.
func DecodeKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}

	switch block.Type {
	case blockECKey:
		return x509.ParseECPrivateKey(block.Bytes)
	case blockPKCS8Key:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ec, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrInvalidKey, key)
		}
		return ec, nil
	default:
		return nil, fmt.Errorf("%w: unexpected block %q", ErrInvalidPEM, block.Type)
	}
}

// WriteCertFile atomically replaces path with cert in PEM form.
func WriteCertFile(path string, cert *x509.Certificate) error {
	return writeFileAtomic(path, EncodeCertPEM(cert), 0o644)
}

// ReadCertFile reads the first certificate of a PEM file.
func ReadCertFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := DecodeCertPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ReadCertPoolFile reads every certificate of a PEM bundle into a pool.
func ReadCertPoolFile(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCertificates)
	}
	return pool, nil
}

// WriteKeyFile atomically replaces path with key, readable by the owner only.
func WriteKeyFile(path string, key *ecdsa.PrivateKey) error {
	data, err := EncodeKeyPEM(key)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

// ReadKeyFile reads an ECDSA private key from a PEM file.
func ReadKeyFile(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	k, err := DecodeKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return k, nil
}

// writeFileAtomic writes to a temporary file in the target directory and
// renames it over path, so readers see either the old or the new content.
// The temporary file gets perm before any data is written.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if err = f.Chmod(perm); err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
