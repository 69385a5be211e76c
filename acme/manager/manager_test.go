package manager

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/certweld/certweld/acme"
	"github.com/certweld/certweld/acme/challenge"
	acmeclient "github.com/certweld/certweld/acme/client"
	"github.com/certweld/certweld/acme/keys"
	"github.com/certweld/certweld/storage"
)

// acmeServer is a scripted ACME v1 server covering the full issuance
// conversation: registration, authorization, challenge, issuance and
// revocation.
type acmeServer struct {
	ts *httptest.Server

	// DER of the leaf certificate served by the issuance resource.
	certDER []byte
	// Optional issuer DER; when set the issuance response carries
	// a rel="up" Link pointing at it.
	chainDER []byte
	// Number of 202 responses before the issuance resource turns 200.
	certPending int
	// When true a 409 conflict response omits the Location header.
	conflictWithoutLocation bool
	// Forced status code for new-cert responses, 0 means 201.
	newCertCode int
	// Forced new-cert response body, used with newCertCode.
	newCertBody string
	// Forced status code for revoke responses, 0 means 200.
	revokeCode int

	registerCalls int
	authzCount    int
}

func newACMEServer(t *testing.T) *acmeServer {
	t.Helper()
	srv := &acmeServer{certDER: []byte("leaf certificate der bytes")}

	nonceCounter := 0
	nonce := func(w http.ResponseWriter) {
		nonceCounter++
		w.Header().Set(acme.REPLAY_NONCE_HEADER, fmt.Sprintf("nonce-%d", nonceCounter))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/"+acme.REGISTER_ENDPOINT, func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		srv.registerCalls++
		if srv.registerCalls > 1 {
			if !srv.conflictWithoutLocation {
				w.Header().Set("Location", srv.ts.URL+"/reg/1")
			}
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"type":"urn:acme:error:malformed","detail":"Registration key is already in use"}`)
			return
		}
		w.Header().Set("Location", srv.ts.URL+"/reg/1")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1,"agreement":"`+acme.LICENSE_URL+`"}`)
	})
	mux.HandleFunc("/reg/1", func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		fmt.Fprint(w, `{"id":1,"agreement":"`+acme.LICENSE_URL+`","createdAt":"2016-01-01T00:00:00Z"}`)
	})
	mux.HandleFunc("/"+acme.AUTHZ_ENDPOINT, func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		srv.authzCount++
		w.Header().Set("Location", fmt.Sprintf("%s/authz/%d", srv.ts.URL, srv.authzCount))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": acme.STATUS_PENDING,
			"challenges": []map[string]string{{
				"type":   acme.CHALLENGE_TYPE_HTTP01,
				"status": acme.STATUS_PENDING,
				"uri":    srv.ts.URL + "/chall/1",
				"token":  "tok123",
			}},
		})
	})
	mux.HandleFunc("/chall/1", func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, `{"status": %q}`, acme.STATUS_VALID)
	})
	mux.HandleFunc("/"+acme.NEW_CERT_ENDPOINT, func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		if srv.newCertCode != 0 {
			w.WriteHeader(srv.newCertCode)
			fmt.Fprint(w, srv.newCertBody)
			return
		}
		w.Header().Set("Location", srv.ts.URL+"/cert/1")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/cert/1", func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		if srv.certPending > 0 {
			srv.certPending--
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if srv.chainDER != nil {
			w.Header().Add("Link", fmt.Sprintf(`<%s/issuer/1>;rel="up"`, srv.ts.URL))
		}
		w.Write(srv.certDER)
	})
	mux.HandleFunc("/issuer/1", func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		w.Write(srv.chainDER)
	})
	mux.HandleFunc("/"+acme.REVOKE_CERT_ENDPOINT, func(w http.ResponseWriter, r *http.Request) {
		nonce(w)
		if srv.revokeCode != 0 {
			w.WriteHeader(srv.revokeCode)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	srv.ts = httptest.NewServer(mux)
	t.Cleanup(srv.ts.Close)
	return srv
}

type managerFixture struct {
	manager *Manager
	certs   *storage.Store
	webroot string
	root    string
}

func newManagerFixture(t *testing.T, srv *acmeServer) *managerFixture {
	t.Helper()
	fs := storage.OSFilesystem{}
	root := t.TempDir()

	keyStore := keys.NewStore(fs, root)
	account := keyStore.Account()
	account.Bits = 1024
	require.NoError(t, account.Generate())
	domainKeys := keyStore.Domain("example.org")
	domainKeys.Bits = 1024
	require.NoError(t, domainKeys.Generate())

	certStore := storage.NewStore(fs, root)

	client, err := acmeclient.New(acmeclient.Config{APIBase: srv.ts.URL}, account)
	require.NoError(t, err)

	webroot := filepath.Join(root, "challenges")
	selfTS := httptest.NewServer(http.FileServer(http.Dir(webroot)))
	t.Cleanup(selfTS.Close)
	require.NoError(t, fs.MkdirAll(webroot, 0755))

	resolver := challenge.NewResolver(client, challenge.NewWebrootPublisher(fs, webroot))
	resolver.SelfCheckBase = selfTS.URL
	resolver.PollInterval = time.Millisecond
	resolver.PollTimeout = time.Second

	mgr := New(Config{
		ChallengesRoot: webroot,
		PollInterval:   time.Millisecond,
		PollTimeout:    time.Second,
	}, fs, keyStore, certStore, client, resolver)

	return &managerFixture{manager: mgr, certs: certStore, webroot: webroot, root: root}
}

func TestRegisterAccount(t *testing.T) {
	srv := newACMEServer(t)
	f := newManagerFixture(t, srv)

	reg, err := f.manager.RegisterAccount()
	require.NoError(t, err)
	require.EqualValues(t, 1, reg.ID)
	require.Equal(t, srv.ts.URL+"/reg/1", reg.Location)

	// Registering again hits the 409 conflict path and recovers the
	// existing account from the reported Location.
	reg, err = f.manager.RegisterAccount()
	require.NoError(t, err)
	require.EqualValues(t, 1, reg.ID)
	require.Equal(t, srv.ts.URL+"/reg/1", reg.Location)
	require.Equal(t, "2016-01-01T00:00:00Z", reg.CreatedAt)
}

func TestRegisterAccountConflictWithoutLocation(t *testing.T) {
	srv := newACMEServer(t)
	srv.conflictWithoutLocation = true
	f := newManagerFixture(t, srv)

	_, err := f.manager.RegisterAccount()
	require.NoError(t, err)

	reg, err := f.manager.RegisterAccount()
	require.NoError(t, err)
	require.Zero(t, reg.ID)
	require.Empty(t, reg.Location)
}

func TestRegisterAccountGeneratesKey(t *testing.T) {
	srv := newACMEServer(t)
	fs := storage.OSFilesystem{}
	root := t.TempDir()

	keyStore := keys.NewStore(fs, root)
	keyStore.Account().Bits = 1024
	require.False(t, keyStore.Account().Exists())

	client, err := acmeclient.New(acmeclient.Config{APIBase: srv.ts.URL}, keyStore.Account())
	require.NoError(t, err)
	mgr := New(Config{}, fs, keyStore, storage.NewStore(fs, root), client, nil)

	_, err = mgr.RegisterAccount()
	require.NoError(t, err)
	require.True(t, keyStore.Account().Exists())
}

func TestIssueCertificate(t *testing.T) {
	srv := newACMEServer(t)
	f := newManagerFixture(t, srv)

	result, err := f.manager.IssueCertificate(context.Background(), "example.org", nil, storage.DistinguishedName{})
	require.NoError(t, err)
	require.Equal(t, []string{"example.org", "www.example.org"}, result.Domains)

	// Both the bare and the www form were validated.
	require.Equal(t, 2, srv.authzCount)

	cert := f.certs.Certificate("example.org")
	require.True(t, cert.Exists())

	leafPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.certDER}))
	read := func(name string) string {
		raw, err := os.ReadFile(filepath.Join(cert.Path(), name))
		require.NoError(t, err)
		return string(raw)
	}

	// A single-certificate issuance leaves the chain empty and the
	// fullchain equal to the leaf.
	require.Equal(t, leafPEM, read(storage.CERT_NAME))
	require.Equal(t, leafPEM, read(storage.FULLCHAIN_NAME))
	require.Empty(t, read(storage.CHAIN_NAME))

	// Challenge tokens were cleaned up.
	require.NoFileExists(t, filepath.Join(f.webroot, filepath.FromSlash(acme.WELL_KNOWN_PATH), "tok123"))
}

func TestIssueCertificateWithChain(t *testing.T) {
	srv := newACMEServer(t)
	srv.chainDER = []byte("issuer certificate der bytes")
	f := newManagerFixture(t, srv)

	_, err := f.manager.IssueCertificate(context.Background(), "example.org", nil, storage.DistinguishedName{})
	require.NoError(t, err)

	cert := f.certs.Certificate("example.org")
	leafPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.certDER}))
	chainPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.chainDER}))

	read := func(name string) string {
		raw, err := os.ReadFile(filepath.Join(cert.Path(), name))
		require.NoError(t, err)
		return string(raw)
	}

	require.Equal(t, leafPEM, read(storage.CERT_NAME))
	require.Equal(t, chainPEM, read(storage.CHAIN_NAME))
	require.Equal(t, leafPEM+"\n"+chainPEM, read(storage.FULLCHAIN_NAME))
}

func TestIssueCertificatePollsUntilReady(t *testing.T) {
	srv := newACMEServer(t)
	srv.certPending = 2
	f := newManagerFixture(t, srv)

	_, err := f.manager.IssueCertificate(context.Background(), "example.org", nil, storage.DistinguishedName{})
	require.NoError(t, err)
	require.Zero(t, srv.certPending)
}

func TestIssueCertificateTimeout(t *testing.T) {
	srv := newACMEServer(t)
	srv.certPending = 1 << 30
	f := newManagerFixture(t, srv)
	f.manager.cfg.PollTimeout = 10 * time.Millisecond

	_, err := f.manager.IssueCertificate(context.Background(), "example.org", nil, storage.DistinguishedName{})
	require.Equal(t, "timeout", acme.ErrorCode(err))
}

func TestIssueCertificateServerError(t *testing.T) {
	srv := newACMEServer(t)
	srv.newCertCode = http.StatusTooManyRequests
	srv.newCertBody = `{"type":"urn:acme:error:rateLimited","detail":"slow down"}`
	f := newManagerFixture(t, srv)

	_, err := f.manager.IssueCertificate(context.Background(), "example.org", nil, storage.DistinguishedName{})
	require.Equal(t, "letsencrypt_urn_acme_error_rateLimited", acme.ErrorCode(err))
}

func TestIssueCertificateUnexpectedResponse(t *testing.T) {
	srv := newACMEServer(t)
	srv.newCertCode = http.StatusInternalServerError
	srv.newCertBody = "internal error"
	f := newManagerFixture(t, srv)

	_, err := f.manager.IssueCertificate(context.Background(), "example.org", nil, storage.DistinguishedName{})
	require.Equal(t, "new_cert_invalid_response_code", acme.ErrorCode(err))
}

func TestRevokeCertificate(t *testing.T) {
	srv := newACMEServer(t)
	f := newManagerFixture(t, srv)

	require.NoError(t, f.certs.Certificate("example.org").Set([][]byte{srv.certDER}))
	require.NoError(t, f.manager.RevokeCertificate("example.org"))
}

func TestRevokeCertificateMissing(t *testing.T) {
	srv := newACMEServer(t)
	f := newManagerFixture(t, srv)

	err := f.manager.RevokeCertificate("example.org")
	require.Equal(t, "cert_not_exist", acme.ErrorCode(err))
}

func TestRevokeCertificateServerError(t *testing.T) {
	srv := newACMEServer(t)
	srv.revokeCode = http.StatusForbidden
	f := newManagerFixture(t, srv)

	require.NoError(t, f.certs.Certificate("example.org").Set([][]byte{srv.certDER}))
	err := f.manager.RevokeCertificate("example.org")
	require.Equal(t, "revoke_cert_invalid_response_code", acme.ErrorCode(err))
}

func TestReset(t *testing.T) {
	srv := newACMEServer(t)
	f := newManagerFixture(t, srv)

	require.NoError(t, f.certs.Certificate("example.org").Set([][]byte{srv.certDER}))
	require.DirExists(t, f.webroot)

	require.NoError(t, f.manager.Reset())
	require.NoDirExists(t, f.certs.Root())
	require.NoDirExists(t, f.webroot)
}
