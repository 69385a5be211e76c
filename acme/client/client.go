// Package client provides a low-level ACME v1 client.
//
// The client speaks the legacy Let's Encrypt protocol: fixed endpoint
// paths instead of directory discovery, RS256 JWS envelopes with an
// embedded JWK on every authenticated call, and replay nonces carried
// on ordinary responses rather than a dedicated newNonce endpoint.
package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/certweld/certweld/acme"
	"github.com/certweld/certweld/acme/keys"
	acmenet "github.com/certweld/certweld/net"
)

// upLinkPattern matches Link response headers of the form
// <https://...>;rel="up" that point at issuer certificates.
var upLinkPattern = regexp.MustCompile(`^\s*<(.+)>\s*;\s*rel="up"`)

// TransportState is the per-client cache of the last HTTP response's
// protocol-relevant headers. It is updated after every request and
// consulted before constructing the next signed request (nonce) or
// polling target (Location, Links).
type TransportState struct {
	// The last response's HTTP status code.
	Code int
	// The last response's Replay-Nonce header, empty if it carried none.
	Nonce string
	// The last response's Location header.
	Location string
	// The URLs of the last response's rel="up" Link headers, in order.
	Links []string
}

// Config contains configuration options provided to New when creating
// a Client instance.
type Config struct {
	// Base URL of the ACME v1 API. Relative endpoints are resolved
	// against it. Defaults to the Let's Encrypt production API.
	APIBase string
	// An optional file path to one or more PEM encoded CA certificates
	// used as trust roots for HTTPS requests to the ACME server.
	CABundlePath string
	// Per-request HTTP timeout. Zero means the net package default.
	Timeout time.Duration
}

// normalize validates a Config.
func (conf *Config) normalize() error {
	conf.APIBase = strings.TrimSpace(conf.APIBase)
	if conf.APIBase == "" {
		conf.APIBase = acme.DEFAULT_API_BASE
	}
	conf.APIBase = strings.TrimRight(conf.APIBase, "/")

	if _, err := url.Parse(conf.APIBase); err != nil {
		return fmt.Errorf("APIBase invalid: %s", err.Error())
	}

	return nil
}

// Client issues requests against an ACME v1 server on behalf of one
// account key pair, tracking the transport state each protocol step
// depends on. It is not safe for concurrent use; one logical operation
// runs end to end on one goroutine.
type Client struct {
	// The key pair identifying the ACME account. Signed requests embed
	// its public JWK and are signed with its private key.
	Account *keys.KeyPair

	apiBase string
	net     *acmenet.ACMENet
	state   TransportState
}

// New creates a Client from the given Config and account key pair. No
// network traffic happens until the first request.
func New(config Config, account *keys.KeyPair) (*Client, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	net, err := acmenet.New(acmenet.Config{
		CABundlePath: config.CABundlePath,
		Timeout:      config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create ACME net client: %s", err)
	}

	return &Client{
		Account: account,
		apiBase: config.APIBase,
		net:     net,
	}, nil
}

// State returns a copy of the transport state captured from the last
// response.
func (c *Client) State() TransportState {
	return c.state
}

// Response is one parsed ACME server response. Body always holds the
// raw bytes (certificates come back as raw DER); JSON is the decoded
// object when the body was a JSON object, nil otherwise.
type Response struct {
	// The HTTP status code.
	Code int
	// The raw response body.
	Body []byte
	// The decoded body, when it was a JSON object.
	JSON map[string]interface{}
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Status returns the "status" field of a JSON response body, or an
// empty string when there is none.
func (r *Response) Status() string {
	if r.JSON == nil {
		return ""
	}
	status, _ := r.JSON["status"].(string)
	return status
}

// resolveURL resolves an endpoint against the API base. Absolute URLs
// (server-supplied Location/Link follow-ups) pass through untouched.
func (c *Client) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.apiBase + "/" + endpoint
}

// Request issues one HTTP call to the given endpoint and updates the
// transport state from the response headers before returning. A non-nil
// body is JSON encoded and sent with a POST regardless of method.
// Network errors are propagated as-is; Request never retries.
func (c *Client) Request(endpoint string, method string, body interface{}) (*Response, error) {
	targetURL := c.resolveURL(endpoint)

	var netResp *acmenet.NetResponse
	var err error
	if body != nil {
		var reqBody []byte
		reqBody, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
		netResp, err = c.net.PostURL(targetURL, reqBody)
	} else if method == http.MethodPost {
		netResp, err = c.net.PostURL(targetURL, nil)
	} else {
		netResp, err = c.net.GetURL(targetURL)
	}
	if err != nil {
		return nil, err
	}

	c.updateState(netResp.Response)

	resp := &Response{
		Code: netResp.Response.StatusCode,
		Body: netResp.RespBody,
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(netResp.RespBody, &decoded); err == nil {
		resp.JSON = decoded
	}

	return resp, nil
}

// updateState captures the status code, nonce, Location and rel="up"
// links of a response. The whole state is replaced: a response without
// a nonce leaves the client nonce-less, forcing the next signed request
// to fetch a fresh one.
func (c *Client) updateState(resp *http.Response) {
	state := TransportState{
		Code:     resp.StatusCode,
		Nonce:    resp.Header.Get(acme.REPLAY_NONCE_HEADER),
		Location: resp.Header.Get("Location"),
	}

	for _, link := range resp.Header.Values("Link") {
		if matches := upLinkPattern.FindStringSubmatch(link); matches != nil {
			state.Links = append(state.Links, matches[1])
		}
	}

	c.state = state
	log.Printf("%s returned status %d", resp.Request.URL, resp.StatusCode)
}
