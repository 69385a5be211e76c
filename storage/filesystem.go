// Package storage manages the on-disk PEM artifacts certweld produces:
// key pairs, certificates and the diagnostic CSR. All writes go through
// the Filesystem capability so the embedding system controls how (and
// whether) filesystem access is authorized.
package storage

import "os"

// Filesystem is the small capability interface the core uses for every
// filesystem interaction. The default implementation is OSFilesystem;
// callers that gate writes behind credential checks can substitute
// their own.
type Filesystem interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(path string) error
	RemoveAll(path string) error
}

// OSFilesystem implements Filesystem directly on top of the os package.
type OSFilesystem struct{}

func (OSFilesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFilesystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFilesystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OSFilesystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFilesystem) Remove(path string) error {
	return os.Remove(path)
}

func (OSFilesystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
