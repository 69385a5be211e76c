package client

import (
	"log"
	"net/http"

	"github.com/certweld/certweld/acme"
)

// Nonce returns the replay nonce for the next signed request. v1 has no
// dedicated nonce endpoint: nonces ride on every response, so the value
// surfaced by the previous response is consumed, and when none is
// cached a directory request is made just to obtain one. A nonce is
// never used twice.
func (c *Client) Nonce() (string, error) {
	if c.state.Nonce == "" {
		log.Printf("No nonce cached, fetching directory to obtain one")
		if _, err := c.Directory(); err != nil {
			return "", err
		}
	}

	if c.state.Nonce == "" {
		return "", acme.NewError("signed_request_no_nonce",
			"no nonce available for a signed request")
	}

	nonce := c.state.Nonce
	c.state.Nonce = ""
	return nonce, nil
}

// Directory fetches the ACME server's directory resource. Its decoded
// body is informational; the request matters because the response
// carries a fresh replay nonce.
func (c *Client) Directory() (*Response, error) {
	return c.Request(acme.DIRECTORY_ENDPOINT, http.MethodGet, nil)
}
