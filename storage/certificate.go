package storage

import (
	"encoding/pem"
	"path/filepath"
	"strings"

	"github.com/certweld/certweld/acme"
)

const (
	FULLCHAIN_NAME = "fullchain.pem"
	CERT_NAME      = "cert.pem"
	CHAIN_NAME     = "chain.pem"
	CSR_NAME       = "last.csr"

	certBegin = "-----BEGIN CERTIFICATE-----"
	certEnd   = "-----END CERTIFICATE-----"
)

// Certificate manages the PEM artifacts (leaf, chain, fullchain) of one
// domain's certificate. Instances are obtained from a Store and live
// for the process lifetime.
type Certificate struct {
	domain string
	path   string
	fs     Filesystem
}

// NewCertificate creates a Certificate rooted at path for the given
// domain. Use a Store to share instances per domain.
func NewCertificate(fs Filesystem, path string, domain string) *Certificate {
	return &Certificate{
		domain: domain,
		path:   path,
		fs:     fs,
	}
}

// Domain returns the root domain this certificate belongs to.
func (c *Certificate) Domain() string {
	return c.domain
}

// Path returns the directory holding this certificate's artifacts.
func (c *Certificate) Path() string {
	return c.path
}

// Exists reports whether all three PEM artifacts are present.
func (c *Certificate) Exists() bool {
	return c.fs.Exists(filepath.Join(c.path, FULLCHAIN_NAME)) &&
		c.fs.Exists(filepath.Join(c.path, CERT_NAME)) &&
		c.fs.Exists(filepath.Join(c.path, CHAIN_NAME))
}

// Set PEM-encodes the given DER certificates, in order, and writes the
// three artifacts: fullchain is the concatenation of all of them, cert
// is the first (the leaf) and chain is the remainder. Any write failure
// means the issuance did not complete cleanly and the caller must treat
// the whole operation as failed.
func (c *Certificate) Set(certs [][]byte) error {
	pems := make([]string, len(certs))
	for i, der := range certs {
		pems[i] = string(pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: der,
		}))
	}

	if err := c.fs.MkdirAll(c.path, 0755); err != nil {
		return acme.NewError("new_cert_cannot_write_fullchain",
			"could not create certificate directory %q: %s", c.path, err)
	}

	fullchainPath := filepath.Join(c.path, FULLCHAIN_NAME)
	if err := c.fs.WriteFile(fullchainPath, []byte(strings.Join(pems, "\n")), 0644); err != nil {
		return acme.NewError("new_cert_cannot_write_fullchain",
			"could not write certificates to file %q: %s", fullchainPath, err)
	}

	certPath := filepath.Join(c.path, CERT_NAME)
	if err := c.fs.WriteFile(certPath, []byte(pems[0]), 0644); err != nil {
		return acme.NewError("new_cert_cannot_write_cert",
			"could not write certificate to file %q: %s", certPath, err)
	}

	chainPath := filepath.Join(c.path, CHAIN_NAME)
	if err := c.fs.WriteFile(chainPath, []byte(strings.Join(pems[1:], "\n")), 0644); err != nil {
		return acme.NewError("new_cert_cannot_write_chain",
			"could not write certificates to file %q: %s", chainPath, err)
	}

	return nil
}

// Read returns the bare base64 body of the stored leaf certificate with
// its PEM armor stripped, the form the revoke endpoint consumes.
func (c *Certificate) Read() (string, error) {
	certPath := filepath.Join(c.path, CERT_NAME)
	raw, err := c.fs.ReadFile(certPath)
	if err != nil {
		return "", acme.NewError("new_cert_cannot_read_cert",
			"could not read certificate from file %q: %s", certPath, err)
	}

	body := string(raw)
	begin := strings.Index(body, certBegin)
	end := strings.Index(body, certEnd)
	if begin == -1 || end == -1 || end < begin {
		return "", acme.NewError("new_cert_cannot_read_cert",
			"file %q does not contain a PEM certificate", certPath)
	}

	return strings.TrimSpace(body[begin+len(certBegin) : end]), nil
}
