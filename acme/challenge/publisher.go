// Package challenge drives HTTP-01 domain validation: it requests an
// authorization, publishes the key authorization where the validation
// server will look for it, self-checks it over plain HTTP, submits the
// challenge and polls until the server reaches a terminal status.
package challenge

import (
	"path/filepath"

	"github.com/letsencrypt/challtestsrv"

	"github.com/certweld/certweld/acme"
	"github.com/certweld/certweld/storage"
)

// Publisher makes a key authorization reachable at the well-known
// HTTP-01 path for a token, and removes it afterwards. Removal is
// invoked on every resolver exit path and must tolerate the token
// already being gone.
type Publisher interface {
	Publish(token string, keyAuthorization string) error
	Remove(token string)
}

// WebrootPublisher writes challenge response files into the well-known
// directory under a web root served by an existing web server.
type WebrootPublisher struct {
	fs  storage.Filesystem
	dir string
}

// NewWebrootPublisher creates a WebrootPublisher for the given web
// root. Files are placed in {webroot}/.well-known/acme-challenge.
func NewWebrootPublisher(fs storage.Filesystem, webroot string) *WebrootPublisher {
	return &WebrootPublisher{
		fs:  fs,
		dir: filepath.Join(webroot, filepath.FromSlash(acme.WELL_KNOWN_PATH)),
	}
}

// Publish writes the key authorization to a file named after the token,
// world-readable so the web server can serve it.
func (p *WebrootPublisher) Publish(token string, keyAuthorization string) error {
	if err := p.fs.MkdirAll(p.dir, 0755); err != nil {
		return acme.NewError("challenge_cannot_create_dir",
			"could not create challenge directory %q: %s", p.dir, err)
	}

	tokenPath := filepath.Join(p.dir, token)
	if err := p.fs.WriteFile(tokenPath, []byte(keyAuthorization), 0644); err != nil {
		return acme.NewError("challenge_cannot_write_file",
			"could not write challenge to file %q: %s", tokenPath, err)
	}

	return nil
}

// Remove deletes the token file. Best effort: the cleanup invariant is
// that the token is gone afterwards, which a missing file satisfies.
func (p *WebrootPublisher) Remove(token string) {
	_ = p.fs.Remove(filepath.Join(p.dir, token))
}

// ServerPublisher serves key authorizations from an embedded challenge
// response server instead of the filesystem, for installations where
// no web server fronts the host being validated.
type ServerPublisher struct {
	srv *challtestsrv.ChallSrv
}

// NewServerPublisher wraps a running challenge server.
func NewServerPublisher(srv *challtestsrv.ChallSrv) *ServerPublisher {
	return &ServerPublisher{srv: srv}
}

// Publish registers the key authorization with the challenge server.
func (p *ServerPublisher) Publish(token string, keyAuthorization string) error {
	p.srv.AddHTTPOneChallenge(token, keyAuthorization)
	return nil
}

// Remove unregisters the token from the challenge server.
func (p *ServerPublisher) Remove(token string) {
	p.srv.DeleteHTTPOneChallenge(token)
}
