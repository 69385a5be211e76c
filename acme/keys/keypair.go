package keys

import (
	"crypto/rsa"
	"path/filepath"

	"github.com/certweld/certweld/acme"
	"github.com/certweld/certweld/storage"
)

const (
	PRIVATE_NAME = "private.pem"
	PUBLIC_NAME  = "public.pem"
)

// KeyPair is one RSA key pair persisted as a private.pem/public.pem
// file pair in a directory. A key pair, once generated, is immutable:
// callers wanting reuse check Exists before calling Generate, since
// Generate overwrites whatever is at the path.
//
// The parsed private key and its details are cached in memory for the
// remainder of the logical operation.
type KeyPair struct {
	// Bits is the modulus size Generate uses. Defaults to DefaultBits.
	Bits int

	path    string
	fs      storage.Filesystem
	private *rsa.PrivateKey
	details *Details
}

// NewKeyPair creates a KeyPair stored in the given directory.
func NewKeyPair(fs storage.Filesystem, path string) *KeyPair {
	return &KeyPair{
		Bits: DefaultBits,
		path: path,
		fs:   fs,
	}
}

// Path returns the directory the key pair files live in.
func (kp *KeyPair) Path() string {
	return kp.path
}

func (kp *KeyPair) privatePath() string {
	return filepath.Join(kp.path, PRIVATE_NAME)
}

func (kp *KeyPair) publicPath() string {
	return filepath.Join(kp.path, PUBLIC_NAME)
}

// Exists reports whether both the private and public PEM files are
// present at the configured path.
func (kp *KeyPair) Exists() bool {
	return kp.fs.Exists(kp.privatePath()) && kp.fs.Exists(kp.publicPath())
}

// Generate creates a fresh RSA key, derives the public key and writes
// both PEM files, creating the storage directory if absent. Private key
// material is written owner-only.
func (kp *KeyPair) Generate() error {
	key, err := NewRSAKey(kp.Bits)
	if err != nil {
		return acme.NewError("private_key_cannot_generate",
			"could not generate private key: %s", err)
	}

	publicPEM, err := PublicKeyToPEM(key)
	if err != nil {
		return acme.NewError("private_key_cannot_export",
			"could not export public key: %s", err)
	}

	if err := kp.fs.MkdirAll(kp.path, 0700); err != nil {
		return acme.NewError("private_key_cannot_create_dir",
			"could not create directory %q for private key: %s", kp.path, err)
	}

	if err := kp.fs.WriteFile(kp.privatePath(), PrivateKeyToPEM(key), 0600); err != nil {
		return acme.NewError("private_key_cannot_write",
			"could not write private key into file %q: %s", kp.privatePath(), err)
	}

	if err := kp.fs.WriteFile(kp.publicPath(), publicPEM, 0644); err != nil {
		return acme.NewError("public_key_cannot_write",
			"could not write public key into file %q: %s", kp.publicPath(), err)
	}

	kp.private = key
	kp.details = nil
	return nil
}

// Private loads and parses the private key from disk, caching the
// handle for subsequent calls.
func (kp *KeyPair) Private() (*rsa.PrivateKey, error) {
	if kp.private != nil {
		return kp.private, nil
	}

	if !kp.fs.Exists(kp.privatePath()) {
		return nil, acme.NewError("private_key_missing", "missing private key %q", kp.privatePath())
	}

	pemBytes, err := kp.fs.ReadFile(kp.privatePath())
	if err != nil {
		return nil, acme.NewError("private_key_missing",
			"could not read private key %q: %s", kp.privatePath(), err)
	}

	key, err := ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		return nil, acme.NewError("private_key_invalid",
			"invalid private key %q: %s", kp.privatePath(), err)
	}

	kp.private = key
	return key, nil
}

// PrivateDetails returns the RSA modulus and exponent needed for JWK
// construction, cached after the first call.
func (kp *KeyPair) PrivateDetails() (*Details, error) {
	if kp.details != nil {
		return kp.details, nil
	}

	key, err := kp.Private()
	if err != nil {
		return nil, err
	}

	details := DetailsForKey(key)
	kp.details = &details
	return kp.details, nil
}

// Ensure makes the key pair usable: it generates a fresh pair when the
// files are missing, and transparently regenerates when the private key
// on disk no longer parses.
func Ensure(kp *KeyPair) error {
	if !kp.Exists() {
		return kp.Generate()
	}
	if _, err := kp.Private(); err != nil {
		if acme.ErrorCode(err) == "private_key_invalid" {
			return kp.Generate()
		}
		return err
	}
	return nil
}
