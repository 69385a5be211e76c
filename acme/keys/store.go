package keys

import (
	"path/filepath"

	"github.com/certweld/certweld/storage"
)

// ACCOUNT_SUBDIR is the fixed subdirectory of the certificates root
// holding the account key pair. The underscore keeps it from colliding
// with a domain directory.
const ACCOUNT_SUBDIR = "_account"

// Store hands out KeyPair instances: the account singleton and one
// instance per domain, shared for the process lifetime.
type Store struct {
	fs      storage.Filesystem
	root    string
	account *KeyPair
	domains map[string]*KeyPair
}

// NewStore creates a key pair Store under the certificates root.
func NewStore(fs storage.Filesystem, root string) *Store {
	return &Store{
		fs:      fs,
		root:    root,
		domains: map[string]*KeyPair{},
	}
}

// Account returns the account key pair singleton.
func (s *Store) Account() *KeyPair {
	if s.account == nil {
		s.account = NewKeyPair(s.fs, filepath.Join(s.root, ACCOUNT_SUBDIR))
	}
	return s.account
}

// Domain returns the shared key pair instance for domain.
func (s *Store) Domain(domain string) *KeyPair {
	if kp, ok := s.domains[domain]; ok {
		return kp
	}
	kp := NewKeyPair(s.fs, filepath.Join(s.root, domain))
	s.domains[domain] = kp
	return kp
}
