package resources

// The Identifier resource names a subject that can be included in
// a certificate. v1 servers only support "dns" type identifiers whose
// value is a fully qualified domain name.
type Identifier struct {
	// The Type of the Identifier value.
	Type string `json:"type"`
	// The Identifier value.
	Value string `json:"value"`
}

// The ACME Authorization resource represents an account's authorization
// to issue for a specified identifier, based on interactions with the
// associated Challenges.
//
// Possible Status values are "pending", "valid" and "invalid".
type Authorization struct {
	// The status of this authorization.
	Status string `json:"status"`
	// The identifier the authorization covers.
	Identifier Identifier `json:"identifier"`
	// For pending authorizations, the challenges the client can fulfill
	// to prove possession of the identifier.
	Challenges []Challenge `json:"challenges"`
	// A string representing an RFC 3339 date at which time the
	// authorization is considered expired by the server.
	Expires string `json:"expires,omitempty"`
}

// String returns the authorized identifier value.
func (a Authorization) String() string {
	return a.Identifier.Value
}
