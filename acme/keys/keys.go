// Package keys offers the RSA key pair primitives certweld uses for
// account and domain identities: generation, PEM serialization, JWK
// construction and key authorizations.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"

	jose "github.com/go-jose/go-jose/v4"
)

// DefaultBits is the modulus size of newly generated key pairs.
const DefaultBits = 4096

// NewRSAKey generates an RSA private key of the given bit size.
func NewRSAKey(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

// PrivateKeyToPEM serializes an RSA private key as a PKCS#1 PEM block.
func PrivateKeyToPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// PublicKeyToPEM serializes the public half of an RSA private key as
// a PKIX PEM block.
func PublicKeyToPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	}), nil
}

// ParsePrivateKeyPEM parses a PEM encoded RSA private key in either
// PKCS#1 or PKCS#8 form.
func ParsePrivateKeyPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key was %T, expected *rsa.PrivateKey", parsed)
	}
	return key, nil
}

// Details holds the numeric components of an RSA key needed to build
// the JWK in signed request headers.
type Details struct {
	// The big-endian bytes of the public modulus.
	Modulus []byte
	// The big-endian bytes of the public exponent.
	Exponent []byte
	// The modulus size in bits.
	Bits int
}

// DetailsForKey extracts the modulus and exponent of an RSA key.
func DetailsForKey(key *rsa.PrivateKey) Details {
	return Details{
		Modulus:  key.N.Bytes(),
		Exponent: big.NewInt(int64(key.E)).Bytes(),
		Bits:     key.N.BitLen(),
	}
}

// JWKForKey returns the public JWK of an RSA key. Its JSON form is the
// minimal {"e", "kty", "n"} object with base64url values, no padding.
func JWKForKey(key *rsa.PrivateKey) jose.JSONWebKey {
	return jose.JSONWebKey{
		Key: key.Public(),
	}
}

// JWKThumbprint returns the base64url encoded RFC 7638 SHA-256
// thumbprint of the key's public JWK.
func JWKThumbprint(key *rsa.PrivateKey) (string, error) {
	jwk := JWKForKey(key)
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(thumb), nil
}

// KeyAuthorization builds the HTTP-01 key authorization for a challenge
// token: the token joined to the account key thumbprint with a ".".
func KeyAuthorization(key *rsa.PrivateKey, token string) (string, error) {
	thumb, err := JWKThumbprint(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s", token, thumb), nil
}
