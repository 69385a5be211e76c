package storage

import "path/filepath"

// Store hands out the Certificate instance for each domain, one shared
// instance per domain for the process lifetime. It is not safe for
// concurrent use; callers processing multiple domains do so in series.
type Store struct {
	fs        Filesystem
	root      string
	instances map[string]*Certificate
}

// NewStore creates a Store rooted at the certificates directory
// (each domain's artifacts live in a subdirectory named after it).
func NewStore(fs Filesystem, root string) *Store {
	return &Store{
		fs:        fs,
		root:      root,
		instances: map[string]*Certificate{},
	}
}

// Root returns the certificates root directory.
func (s *Store) Root() string {
	return s.root
}

// Certificate returns the shared Certificate instance for domain.
func (s *Store) Certificate(domain string) *Certificate {
	if c, ok := s.instances[domain]; ok {
		return c
	}
	c := NewCertificate(s.fs, filepath.Join(s.root, domain), domain)
	s.instances[domain] = c
	return c
}
