package resources

// The ACME Challenge resource represents an action that the client must
// take to prove control of an identifier before a certificate covering
// it can be issued.
//
// These are the v1 wire fields: the challenge is addressed by "uri"
// (v2 renamed it to "url") and carries the token used to build the
// key authorization.
type Challenge struct {
	// The Type of the challenge. certweld only acts on "http-01".
	Type string `json:"type"`
	// The URI of the challenge, used to submit the challenge response.
	URI string `json:"uri"`
	// The Token used for constructing the key authorization for this
	// challenge.
	Token string `json:"token"`
	// The Status of the challenge.
	Status string `json:"status"`
	// The Error associated with an invalid challenge.
	Error *Problem `json:"error,omitempty"`
}

// String returns the URI of the Challenge.
func (c Challenge) String() string {
	return c.URI
}
