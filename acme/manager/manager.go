// Package manager composes the key store, certificate store, ACME
// client and challenge resolver into the three public certificate
// operations: register an account, issue a certificate, revoke it.
package manager

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/certweld/certweld/acme"
	"github.com/certweld/certweld/acme/challenge"
	"github.com/certweld/certweld/acme/client"
	"github.com/certweld/certweld/acme/keys"
	"github.com/certweld/certweld/acme/resources"
	"github.com/certweld/certweld/storage"
)

// Config carries the manager's operational settings.
type Config struct {
	// ChallengesRoot is the web root whose well-known path serves
	// challenge responses; removed wholesale by Reset.
	ChallengesRoot string
	// Contact addresses (mailto URLs) sent with account registration.
	Contact []string
	// PollInterval is the pause between issuance status polls.
	PollInterval time.Duration
	// PollTimeout bounds the issuance polling loop.
	PollTimeout time.Duration
}

// Manager is the orchestrating entry point. Construct exactly one per
// logical operation sequence; it is not safe for concurrent use, and
// concurrent operations against the same domain would race on the
// domain key pair, so the embedding system must serialize them.
type Manager struct {
	cfg      Config
	fs       storage.Filesystem
	keys     *keys.Store
	certs    *storage.Store
	client   *client.Client
	resolver *challenge.Resolver
}

// New creates a Manager from explicitly constructed collaborators.
func New(cfg Config, fs storage.Filesystem, keyStore *keys.Store, certStore *storage.Store, acmeClient *client.Client, resolver *challenge.Resolver) *Manager {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 5 * time.Minute
	}
	return &Manager{
		cfg:      cfg,
		fs:       fs,
		keys:     keyStore,
		certs:    certStore,
		client:   acmeClient,
		resolver: resolver,
	}
}

// RegisterAccount ensures the account key pair exists and registers it
// with the ACME server. Double registration is idempotent: a 409
// conflict means the account already exists, in which case its data is
// fetched from the Location the server reports and returned as
// a success. Servers that omit the Location degrade to an empty
// registration carrying no account data.
func (m *Manager) RegisterAccount() (*resources.Registration, error) {
	account := m.keys.Account()
	if !account.Exists() {
		if err := account.Generate(); err != nil {
			return nil, err
		}
		log.Printf("Generated account key pair in %q", account.Path())
	}

	resp, err := m.client.Register(m.cfg.Contact)
	if err != nil {
		return nil, err
	}

	switch resp.Code {
	case http.StatusOK, http.StatusCreated:
		return m.decodeRegistration(resp)

	case http.StatusConflict:
		location := m.client.State().Location
		log.Printf("Account already registered (location %q)", location)
		if location == "" {
			return &resources.Registration{}, nil
		}

		existing, err := m.client.FetchRegistration(location)
		if err != nil {
			return nil, err
		}
		reg, err := m.decodeRegistration(existing)
		if err != nil {
			return nil, err
		}
		reg.Location = location
		return reg, nil

	default:
		return nil, acme.ParseServerError(resp.Body)
	}
}

func (m *Manager) decodeRegistration(resp *client.Response) (*resources.Registration, error) {
	var reg resources.Registration
	if err := resp.Decode(&reg); err != nil {
		return nil, acme.ParseServerError(resp.Body)
	}
	if reg.Location == "" {
		reg.Location = m.client.State().Location
	}
	return &reg, nil
}

// IssuanceResult is the success payload of IssueCertificate.
type IssuanceResult struct {
	// The full domain list the issued certificate covers.
	Domains []string
}

// IssueCertificate validates every domain in the expanded set, builds
// a CSR over it with the (possibly freshly generated) domain key pair,
// submits it and polls the issuance resource until the certificate and
// its issuer chain are available, then persists the PEM artifacts. If
// any single domain fails validation the whole request aborts before
// a CSR is generated.
func (m *Manager) IssueCertificate(ctx context.Context, domain string, addonDomains []string, dn storage.DistinguishedName) (*IssuanceResult, error) {
	// The account key must be present and parsable before any network
	// round trips; every signed request depends on it.
	if _, err := m.keys.Account().PrivateDetails(); err != nil {
		return nil, err
	}

	allDomains := AllDomains(domain, addonDomains)
	log.Printf("Requesting certificate for %v", allDomains)

	for _, d := range allDomains {
		if err := m.resolver.Validate(ctx, d); err != nil {
			return nil, err
		}
	}

	domainKeys := m.keys.Domain(domain)
	if err := keys.Ensure(domainKeys); err != nil {
		return nil, err
	}
	domainKey, err := domainKeys.Private()
	if err != nil {
		return nil, err
	}

	cert := m.certs.Certificate(domain)
	csr, err := cert.GenerateCSR(domainKey, allDomains, dn)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.NewCertificate(csr)
	if err != nil {
		return nil, err
	}
	if resp.Code != http.StatusCreated {
		if resp.JSON != nil {
			if _, ok := resp.JSON["type"]; ok {
				return nil, acme.ParseServerError(resp.Body)
			}
		}
		return nil, acme.NewError("new_cert_invalid_response_code",
			"invalid response code %d for new certificate request", resp.Code)
	}

	certs, err := m.awaitCertificates(ctx, m.client.State().Location)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, acme.NewError("new_cert_fail", "no certificates generated")
	}

	if err := cert.Set(certs); err != nil {
		return nil, err
	}
	log.Printf("Stored certificate artifacts for %q in %q", domain, cert.Path())

	return &IssuanceResult{Domains: allDomains}, nil
}

// awaitCertificates polls the issuance resource until the certificate
// is ready. 202 means the server is still processing; 200 delivers the
// leaf as raw DER, with each rel="up" Link pointing at one more
// certificate in the issuer chain, fetched in turn.
func (m *Manager) awaitCertificates(ctx context.Context, location string) ([][]byte, error) {
	deadline := time.Now().Add(m.cfg.PollTimeout)

	for {
		resp, err := m.client.Get(location)
		if err != nil {
			return nil, err
		}

		switch resp.Code {
		case http.StatusAccepted:
			if err := ctx.Err(); err != nil {
				return nil, acme.NewError("timeout",
					"certificate issuance canceled: %s", err)
			}
			if time.Now().After(deadline) {
				return nil, acme.NewError("timeout",
					"certificate issuance timed out after %s", m.cfg.PollTimeout)
			}
			time.Sleep(m.cfg.PollInterval)

		case http.StatusOK:
			certs := [][]byte{resp.Body}
			for _, link := range m.client.State().Links {
				chainResp, err := m.client.Get(link)
				if err != nil {
					return nil, err
				}
				certs = append(certs, chainResp.Body)
			}
			return certs, nil

		default:
			return nil, acme.NewError("new_cert_invalid_response_code",
				"invalid response code %d for new certificate request", resp.Code)
		}
	}
}

// RevokeCertificate reads the stored leaf certificate for domain and
// submits it for revocation.
func (m *Manager) RevokeCertificate(domain string) error {
	cert := m.certs.Certificate(domain)
	if !cert.Exists() {
		return acme.NewError("cert_not_exist",
			"the certificate %q does not exist", filepath.Join(cert.Path(), storage.CERT_NAME))
	}

	body, err := cert.Read()
	if err != nil {
		return err
	}
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(body), ""))
	if err != nil {
		return acme.NewError("new_cert_cannot_read_cert",
			"stored certificate for %q is not valid base64: %s", domain, err)
	}

	resp, err := m.client.RevokeCertificate(der)
	if err != nil {
		return err
	}
	if resp.Code != http.StatusOK {
		return acme.NewError("revoke_cert_invalid_response_code",
			"invalid response code %d for revoke certificate request", resp.Code)
	}

	log.Printf("Revoked certificate for %q", domain)
	return nil
}

// Reset recursively deletes the certificate store and the challenge
// directory. Destructive and caller-gated; the first deletion failure
// aborts and reports the path that could not be removed.
func (m *Manager) Reset() error {
	for _, path := range []string{m.certs.Root(), m.cfg.ChallengesRoot} {
		if path == "" {
			continue
		}
		if err := m.fs.RemoveAll(path); err != nil {
			return acme.NewError("reset_cannot_delete",
				"could not delete directory %q: %s", path, err)
		}
	}
	log.Printf("Removed certificate and challenge directories")
	return nil
}
