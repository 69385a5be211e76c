package keys

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certweld/certweld/acme"
	"github.com/certweld/certweld/storage"
)

// Small keys keep the tests fast; size handling is covered separately
// by checking the generated modulus.
const testBits = 1024

func testKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp := NewKeyPair(storage.OSFilesystem{}, filepath.Join(t.TempDir(), "keys"))
	kp.Bits = testBits
	return kp
}

func TestKeyPairGenerate(t *testing.T) {
	kp := testKeyPair(t)
	require.False(t, kp.Exists())

	require.NoError(t, kp.Generate())
	require.True(t, kp.Exists())

	key, err := kp.Private()
	require.NoError(t, err)
	require.Equal(t, testBits, key.N.BitLen())

	details, err := kp.PrivateDetails()
	require.NoError(t, err)
	require.Equal(t, testBits, details.Bits)
	require.Equal(t, key.N.Bytes(), details.Modulus)
}

func TestKeyPairGeneratePEMFiles(t *testing.T) {
	kp := testKeyPair(t)
	require.NoError(t, kp.Generate())

	fs := storage.OSFilesystem{}
	private, err := fs.ReadFile(filepath.Join(kp.Path(), PRIVATE_NAME))
	require.NoError(t, err)
	require.Contains(t, string(private), "RSA PRIVATE KEY")

	public, err := fs.ReadFile(filepath.Join(kp.Path(), PUBLIC_NAME))
	require.NoError(t, err)
	require.Contains(t, string(public), "PUBLIC KEY")

	// A fresh instance must parse what was written to disk.
	reloaded := NewKeyPair(fs, kp.Path())
	key, err := reloaded.Private()
	require.NoError(t, err)
	require.Equal(t, testBits, key.N.BitLen())
}

func TestKeyPairPrivateMissing(t *testing.T) {
	kp := testKeyPair(t)

	_, err := kp.Private()
	require.Equal(t, "private_key_missing", acme.ErrorCode(err))
}

func TestKeyPairPrivateInvalid(t *testing.T) {
	kp := testKeyPair(t)
	require.NoError(t, kp.Generate())

	fs := storage.OSFilesystem{}
	require.NoError(t, fs.WriteFile(filepath.Join(kp.Path(), PRIVATE_NAME), []byte("garbage"), 0600))

	reloaded := NewKeyPair(fs, kp.Path())
	_, err := reloaded.Private()
	require.Equal(t, "private_key_invalid", acme.ErrorCode(err))
}

func TestEnsure(t *testing.T) {
	kp := testKeyPair(t)

	// Missing pair is generated.
	require.NoError(t, Ensure(kp))
	require.True(t, kp.Exists())

	originalKey, err := kp.Private()
	require.NoError(t, err)

	// An intact pair is left alone.
	reloaded := NewKeyPair(storage.OSFilesystem{}, kp.Path())
	reloaded.Bits = testBits
	require.NoError(t, Ensure(reloaded))
	key, err := reloaded.Private()
	require.NoError(t, err)
	require.Equal(t, originalKey.N, key.N)

	// A corrupt private key is regenerated.
	fs := storage.OSFilesystem{}
	require.NoError(t, fs.WriteFile(filepath.Join(kp.Path(), PRIVATE_NAME), []byte("garbage"), 0600))
	corrupted := NewKeyPair(fs, kp.Path())
	corrupted.Bits = testBits
	require.NoError(t, Ensure(corrupted))
	regenerated, err := corrupted.Private()
	require.NoError(t, err)
	require.NotEqual(t, originalKey.N, regenerated.N)
}

func TestKeyAuthorization(t *testing.T) {
	key, err := NewRSAKey(testBits)
	require.NoError(t, err)

	keyAuth, err := KeyAuthorization(key, "tok123")
	require.NoError(t, err)

	parts := strings.SplitN(keyAuth, ".", 2)
	require.Len(t, parts, 2)
	require.Equal(t, "tok123", parts[0])

	thumb, err := JWKThumbprint(key)
	require.NoError(t, err)
	require.Equal(t, thumb, parts[1])
	// base64url without padding
	require.NotContains(t, thumb, "=")
	require.NotContains(t, thumb, "+")
	require.NotContains(t, thumb, "/")

	// Thumbprints are deterministic for the same key.
	again, err := JWKThumbprint(key)
	require.NoError(t, err)
	require.Equal(t, thumb, again)
}

func TestStore(t *testing.T) {
	store := NewStore(storage.OSFilesystem{}, t.TempDir())

	account := store.Account()
	require.Same(t, account, store.Account())
	require.Equal(t, filepath.Base(account.Path()), ACCOUNT_SUBDIR)

	domain := store.Domain("example.org")
	require.Same(t, domain, store.Domain("example.org"))
	require.NotSame(t, domain, store.Domain("example.net"))
}
