// Package net provides common HTTP utilities.
package net

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"
)

const (
	version       = "0.1.0"
	userAgentBase = "certweld"
	locale        = "en-us"

	// Every request gets a bounded deadline so a wedged server can't
	// hang an operation; the intentional polling loops live above this
	// layer.
	defaultTimeout = 10 * time.Second
)

// Config holds the options for creating an ACMENet.
type Config struct {
	// An optional file path to one or more PEM encoded CA certificates
	// used as trust roots for HTTPS requests to the ACME server. If
	// empty the system roots are used.
	CABundlePath string
	// Per-request timeout. Zero means the default 10 seconds.
	Timeout time.Duration
}

// ACMENet is a thin wrapper around an http.Client tailored for talking
// to an ACME server.
type ACMENet struct {
	httpClient *http.Client
}

// New creates an ACMENet from the given Config.
func New(config Config) (*ACMENet, error) {
	var caBundle *x509.CertPool
	if config.CABundlePath != "" {
		pemBundle, err := os.ReadFile(config.CABundlePath)
		if err != nil {
			return nil, err
		}

		caBundle = x509.NewCertPool()
		caBundle.AppendCertsFromPEM(pemBundle)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &ACMENet{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: caBundle,
				},
			},
		},
	}, nil
}

// NetResponse holds the results from calling Do with an HTTP Request.
type NetResponse struct {
	// The HTTP Response object from making the request.
	Response *http.Response
	// The response body.
	RespBody []byte
}

// Do performs an HTTP request, returning a pointer to a NetResponse
// instance or an error. User-Agent, Accept and Accept-Language headers
// are automatically added to the request. The body of the HTTP response
// is read into the NetResponse and can not be read again.
func (c *ACMENet) Do(req *http.Request) (*NetResponse, error) {
	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", locale)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &NetResponse{
		Response: resp,
		RespBody: respBody,
	}, nil
}

// PostRequest is a convenience function to construct a POST request to
// the given URL with the given JSON body.
func (c *ACMENet) PostRequest(url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// PostURL is a convenience function to POST the given URL with the
// given body. This is a wrapper combining PostRequest and Do.
func (c *ACMENet) PostURL(url string, body []byte) (*NetResponse, error) {
	req, err := c.PostRequest(url, body)
	if err != nil {
		return nil, err
	}

	return c.Do(req)
}

// GetRequest is a convenience function to construct a GET request to
// the given URL.
func (c *ACMENet) GetRequest(url string) (*http.Request, error) {
	return http.NewRequest(http.MethodGet, url, nil)
}

// GetURL is a convenience function to GET the given URL. This is
// a wrapper combining GetRequest and Do.
func (c *ACMENet) GetURL(url string) (*NetResponse, error) {
	req, err := c.GetRequest(url)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
