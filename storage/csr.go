package storage

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"path/filepath"

	"github.com/certweld/certweld/acme"
)

// DistinguishedName carries the organizational fields placed in the
// CSR subject alongside the common name.
type DistinguishedName struct {
	// Two-letter country code.
	Country string
	// State or province name.
	State string
	// Organization name.
	Organization string
}

// The subject defaults used when the caller leaves a field empty,
// matching what certweld has always put on the wire.
func (dn DistinguishedName) withDefaults() DistinguishedName {
	if dn.Country == "" {
		dn.Country = "US"
	}
	if dn.State == "" {
		dn.State = "United States of America"
	}
	if dn.Organization == "" {
		dn.Organization = "Unknown"
	}
	return dn
}

// GenerateCSR builds a PKCS#10 certificate signing request covering
// exactly the given domain sequence: order is preserved in the SAN list
// and the first domain doubles as the common name. The request is
// signed with SHA-256 using the domain private key. The PEM form is
// written to last.csr for diagnostics; the DER bytes are returned for
// submission.
func (c *Certificate) GenerateCSR(key *rsa.PrivateKey, domains []string, dn DistinguishedName) ([]byte, error) {
	dn = dn.withDefaults()

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName:   domains[0],
			Country:      []string{dn.Country},
			Province:     []string{dn.State},
			Organization: []string{dn.Organization},
		},
		DNSNames:           domains,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, &template, key)
	if err != nil {
		return nil, acme.NewError("csr_cannot_generate",
			"could not generate CSR: %s", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE REQUEST",
		Bytes: der,
	})
	if pemBytes == nil {
		return nil, acme.NewError("csr_cannot_export", "could not export CSR")
	}

	if err := c.fs.MkdirAll(c.path, 0755); err != nil {
		return nil, acme.NewError("csr_cannot_write",
			"could not create directory %q for CSR: %s", c.path, err)
	}
	csrPath := filepath.Join(c.path, CSR_NAME)
	if err := c.fs.WriteFile(csrPath, pemBytes, 0644); err != nil {
		return nil, acme.NewError("csr_cannot_write",
			"could not write CSR into file %q: %s", csrPath, err)
	}

	return der, nil
}
