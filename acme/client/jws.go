package client

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/certweld/certweld/acme"
	"github.com/certweld/certweld/acme/keys"
)

// jwsHeader is the v1 JWS header: the signing algorithm and the
// account's public JWK. The protected variant additionally carries the
// anti-replay nonce.
type jwsHeader struct {
	Alg   string          `json:"alg"`
	JWK   json.RawMessage `json:"jwk"`
	Nonce string          `json:"nonce,omitempty"`
}

// jwsEnvelope is the four-field request body every authenticated v1
// call sends: the unprotected header, the base64url protected header,
// the base64url payload and the RS256 signature over
// "protected64.payload64".
type jwsEnvelope struct {
	Header    jwsHeader `json:"header"`
	Protected string    `json:"protected"`
	Payload   string    `json:"payload"`
	Signature string    `json:"signature"`
}

// SignedRequest builds the JWS envelope for the given payload and
// POSTs it to the endpoint. The nonce is taken from the transport
// state, or fetched with a directory request when none is cached;
// a nonce is consumed by exactly one signed request.
func (c *Client) SignedRequest(endpoint string, payload interface{}) (*Response, error) {
	privateKey, err := c.Account.Private()
	if err != nil {
		return nil, err
	}

	jwk := keys.JWKForKey(privateKey)
	jwkJSON, err := jwk.MarshalJSON()
	if err != nil {
		return nil, acme.NewError("private_key_details_invalid",
			"could not build JWK from private key: %s", err)
	}

	nonce, err := c.Nonce()
	if err != nil {
		return nil, err
	}

	header := jwsHeader{
		Alg: "RS256",
		JWK: jwkJSON,
	}
	protected := header
	protected.Nonce = nonce

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	protectedJSON, err := json.Marshal(protected)
	if err != nil {
		return nil, err
	}

	payload64 := base64.RawURLEncoding.EncodeToString(payloadJSON)
	protected64 := base64.RawURLEncoding.EncodeToString(protectedJSON)

	digest := sha256.Sum256([]byte(protected64 + "." + payload64))
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return nil, acme.NewError("private_key_cannot_sign",
			"could not sign request with private key: %s", err)
	}

	return c.Request(endpoint, http.MethodPost, &jwsEnvelope{
		Header:    header,
		Protected: protected64,
		Payload:   payload64,
		Signature: base64.RawURLEncoding.EncodeToString(signature),
	})
}
