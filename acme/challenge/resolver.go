package challenge

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/certweld/certweld/acme"
	"github.com/certweld/certweld/acme/client"
	"github.com/certweld/certweld/acme/keys"
	"github.com/certweld/certweld/acme/resources"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

// Resolver validates control of domains through HTTP-01 challenges.
// One Resolver is shared by all domains of an issuance; validation runs
// sequentially, one domain at a time.
type Resolver struct {
	// SelfCheckBase overrides the scheme://host part of the URL used
	// for the pre-submission self check. When empty the check goes to
	// http://{domain}.
	SelfCheckBase string
	// PollInterval is the pause between authorization status polls.
	PollInterval time.Duration
	// PollTimeout bounds the whole polling phase for one domain.
	PollTimeout time.Duration

	client    *client.Client
	publisher Publisher
	httpGet   *http.Client
}

// NewResolver creates a Resolver that submits challenges through the
// given client and publishes responses through the given publisher.
func NewResolver(acmeClient *client.Client, publisher Publisher) *Resolver {
	return &Resolver{
		PollInterval: defaultPollInterval,
		PollTimeout:  defaultPollTimeout,
		client:       acmeClient,
		publisher:    publisher,
		httpGet:      &http.Client{Timeout: 10 * time.Second},
	}
}

// selfCheckURL is where the resolver expects its own published token to
// be reachable from the outside.
func (r *Resolver) selfCheckURL(domain string, token string) string {
	base := r.SelfCheckBase
	if base == "" {
		base = "http://" + domain
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), acme.WELL_KNOWN_PATH, token)
}

// Validate proves control of domain to the ACME server. It requests an
// authorization, publishes the HTTP-01 key authorization, verifies it
// is being served before involving the server (a misconfigured webroot
// is cheaper to catch locally than through a remote validation cycle),
// submits the challenge and polls the authorization until its status
// leaves "pending". The published token is removed on every exit path.
func (r *Resolver) Validate(ctx context.Context, domain string) error {
	authzResp, err := r.client.NewAuthorization(domain)
	if err != nil {
		return err
	}

	var authz resources.Authorization
	if err := authzResp.Decode(&authz); err != nil {
		return acme.NewError("no_challenge_available",
			"malformed authorization response for domain %s: %s", domain, err)
	}

	var httpChallenge *resources.Challenge
	for i := range authz.Challenges {
		if authz.Challenges[i].Type == acme.CHALLENGE_TYPE_HTTP01 {
			httpChallenge = &authz.Challenges[i]
			break
		}
	}
	if httpChallenge == nil {
		acmeErr := acme.NewError("no_challenge_available",
			"no HTTP challenge available for domain %s", domain)
		acmeErr.Data = string(authzResp.Body)
		return acmeErr
	}

	// The authorization resource URL, polled below to learn the
	// validation outcome.
	location := r.client.State().Location

	accountKey, err := r.client.Account.Private()
	if err != nil {
		return err
	}
	keyAuthorization, err := keys.KeyAuthorization(accountKey, httpChallenge.Token)
	if err != nil {
		return acme.NewError("private_key_details_invalid",
			"could not compute key authorization: %s", err)
	}

	if err := r.publisher.Publish(httpChallenge.Token, keyAuthorization); err != nil {
		return err
	}
	defer r.publisher.Remove(httpChallenge.Token)

	if err := r.selfCheck(domain, httpChallenge.Token, keyAuthorization); err != nil {
		return err
	}

	result, err := r.client.SubmitChallenge(httpChallenge.URI, httpChallenge.Token, keyAuthorization)
	if err != nil {
		return err
	}

	return r.poll(ctx, domain, location, result)
}

// selfCheck fetches the published token over plain HTTP and compares
// it byte for byte with the expected key authorization.
func (r *Resolver) selfCheck(domain string, token string, keyAuthorization string) error {
	checkURL := r.selfCheckURL(domain, token)
	log.Printf("Self-checking challenge response at %q", checkURL)

	resp, err := r.httpGet.Get(checkURL)
	if err != nil {
		return acme.NewError("challenge_request_failed",
			"challenge request failed for domain %s: %s", domain, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return acme.NewError("challenge_request_failed",
			"challenge request failed for domain %s: %s", domain, err)
	}

	if strings.TrimSpace(string(body)) != keyAuthorization {
		return acme.NewError("challenge_self_check_failed",
			"challenge self check failed for domain %s", domain)
	}

	return nil
}

// poll watches the authorization resource until validation reaches
// a terminal status. An empty or "invalid" status is terminal failure;
// anything else that is not "pending" means the domain validated.
func (r *Resolver) poll(ctx context.Context, domain string, location string, result *client.Response) error {
	deadline := time.Now().Add(r.PollTimeout)
	status := result.Status()

	for {
		if status == "" || status == acme.STATUS_INVALID {
			return acme.NewError("challenge_remote_check_failed",
				"challenge remote check failed for domain %s", domain)
		}
		if status != acme.STATUS_PENDING {
			log.Printf("Domain %q validated (status %q)", domain, status)
			return nil
		}

		if err := ctx.Err(); err != nil {
			return acme.NewError("timeout",
				"challenge validation canceled for domain %s: %s", domain, err)
		}
		if time.Now().After(deadline) {
			return acme.NewError("timeout",
				"challenge validation timed out for domain %s after %s", domain, r.PollTimeout)
		}

		time.Sleep(r.PollInterval)

		resp, err := r.client.Get(location)
		if err != nil {
			return err
		}
		status = resp.Status()
	}
}
