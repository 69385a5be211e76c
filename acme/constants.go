// Package acme provides the protocol constants and structured errors
// shared by the certweld ACME v1 client packages.
package acme

const (
	// DEFAULT_API_BASE is the production Let's Encrypt ACME v1 API. All
	// relative endpoints are resolved against this base (or the override
	// configured by the caller).
	DEFAULT_API_BASE = "https://acme-v01.api.letsencrypt.org"

	// LICENSE_URL is the subscriber agreement accepted when registering
	// an account.
	LICENSE_URL = "https://letsencrypt.org/documents/LE-SA-v1.0.1-July-27-2015.pdf"

	// Relative API endpoints. Unlike ACME v2 there is no directory-driven
	// endpoint discovery; the v1 paths are fixed.
	REGISTER_ENDPOINT    = "acme/new-reg"
	AUTHZ_ENDPOINT       = "acme/new-authz"
	NEW_CERT_ENDPOINT    = "acme/new-cert"
	REVOKE_CERT_ENDPOINT = "acme/revoke-cert"
	DIRECTORY_ENDPOINT   = "directory"

	// The "resource" field values the v1 protocol requires in signed
	// request payloads.
	REGISTER_RESOURCE  = "new-reg"
	REG_RESOURCE       = "reg"
	AUTHZ_RESOURCE     = "new-authz"
	CHALLENGE_RESOURCE = "challenge"
	NEW_CERT_RESOURCE  = "new-cert"

	// The HTTP response header used by ACME to communicate a fresh nonce.
	REPLAY_NONCE_HEADER = "Replay-Nonce"

	// Challenge and authorization status values.
	STATUS_PENDING = "pending"
	STATUS_VALID   = "valid"
	STATUS_INVALID = "invalid"

	// The only challenge type certweld fulfills.
	CHALLENGE_TYPE_HTTP01 = "http-01"

	// The identifier type used in new-authz requests.
	IDENTIFIER_TYPE_DNS = "dns"

	// WELL_KNOWN_PATH is the URL path under which HTTP-01 challenge
	// responses must be served, relative to the web root.
	WELL_KNOWN_PATH = ".well-known/acme-challenge"
)
