package client

import (
	"encoding/base64"
	"log"
	"net/http"

	"github.com/certweld/certweld/acme"
)

// Register performs a new-reg request, agreeing to the subscriber
// license. Contact addresses (mailto URLs) are included when given.
func (c *Client) Register(contact []string) (*Response, error) {
	log.Printf("Sending %q request to register account", acme.REGISTER_ENDPOINT)
	payload := map[string]interface{}{
		"resource":  acme.REGISTER_RESOURCE,
		"agreement": acme.LICENSE_URL,
	}
	if len(contact) > 0 {
		payload["contact"] = contact
	}
	return c.SignedRequest(acme.REGISTER_ENDPOINT, payload)
}

// FetchRegistration fetches an existing registration resource at the
// URI the server reported, used to recover account data after
// a "registration already exists" conflict.
func (c *Client) FetchRegistration(uri string) (*Response, error) {
	log.Printf("Fetching existing registration from %q", uri)
	return c.SignedRequest(uri, map[string]interface{}{
		"resource": acme.REG_RESOURCE,
	})
}

// NewAuthorization requests authorization to issue for the given
// domain. The response lists the challenges the server will accept;
// the transport state's Location points at the authorization resource
// for later polling.
func (c *Client) NewAuthorization(domain string) (*Response, error) {
	log.Printf("Sending %q request for domain %q", acme.AUTHZ_ENDPOINT, domain)
	return c.SignedRequest(acme.AUTHZ_ENDPOINT, map[string]interface{}{
		"resource": acme.AUTHZ_RESOURCE,
		"identifier": map[string]string{
			"type":  acme.IDENTIFIER_TYPE_DNS,
			"value": domain,
		},
	})
}

// SubmitChallenge tells the server a challenge response is in place and
// it should start validating.
func (c *Client) SubmitChallenge(uri string, token string, keyAuthorization string) (*Response, error) {
	log.Printf("Submitting %q challenge response to %q", acme.CHALLENGE_TYPE_HTTP01, uri)
	return c.SignedRequest(uri, map[string]interface{}{
		"resource":         acme.CHALLENGE_RESOURCE,
		"type":             acme.CHALLENGE_TYPE_HTTP01,
		"keyAuthorization": keyAuthorization,
		"token":            token,
	})
}

// NewCertificate submits a DER encoded CSR for issuance. On success the
// transport state's Location points at the issuance resource to poll.
func (c *Client) NewCertificate(csr []byte) (*Response, error) {
	log.Printf("Sending %q request", acme.NEW_CERT_ENDPOINT)
	return c.SignedRequest(acme.NEW_CERT_ENDPOINT, map[string]interface{}{
		"resource": acme.NEW_CERT_RESOURCE,
		"csr":      base64.RawURLEncoding.EncodeToString(csr),
	})
}

// RevokeCertificate submits a DER encoded certificate for revocation.
func (c *Client) RevokeCertificate(cert []byte) (*Response, error) {
	log.Printf("Sending %q request", acme.REVOKE_CERT_ENDPOINT)
	return c.SignedRequest(acme.REVOKE_CERT_ENDPOINT, map[string]interface{}{
		"certificate": base64.RawURLEncoding.EncodeToString(cert),
	})
}

// Get fetches a server-supplied absolute URL (an authorization or
// issuance resource) without authentication, updating the transport
// state.
func (c *Client) Get(url string) (*Response, error) {
	return c.Request(url, http.MethodGet, nil)
}
