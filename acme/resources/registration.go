package resources

import "encoding/json"

// The Registration resource represents the server-side account record
// created by a new-reg request. The core does not persist this; it is
// returned to the caller, who owns account bookkeeping.
type Registration struct {
	// The server-assigned numeric account ID.
	ID int64 `json:"id,omitempty"`
	// The account public key as the server recorded it.
	Key json.RawMessage `json:"key,omitempty"`
	// Contact addresses supplied at registration time.
	Contact []string `json:"contact,omitempty"`
	// The agreement URL the account accepted.
	Agreement string `json:"agreement,omitempty"`
	// A string representing an RFC 3339 account creation date.
	CreatedAt string `json:"createdAt,omitempty"`
	// The registration URI reported by the server's Location header.
	// Not part of the response body; populated by the client so callers
	// can address the account resource later.
	Location string `json:"location,omitempty"`
}

// String returns the registration's server-assigned URI.
func (r Registration) String() string {
	return r.Location
}
