package shell

import (
	"context"
	"encoding/json"
	"flag"
	"path/filepath"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/certweld/certweld/storage"
)

func shellCommands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name:     "register",
			Help:     "register the account key with the ACME server",
			LongHelp: "Registers the account key pair with the ACME server, generating it first if it does not exist. Safe to repeat: an already registered account is fetched instead.",
			Func:     registerHandler,
		},
		{
			Name:     "issue",
			Help:     "issue a certificate: issue [-addons a.example.com,b.example.com] [-country C] [-state S] [-org O] <domain>",
			LongHelp: "Validates the domain (plus its www sibling and any addon domains) over HTTP-01 and requests a certificate covering all of them.",
			Func:     issueHandler,
		},
		{
			Name:     "revoke",
			Help:     "revoke the stored certificate: revoke <domain>",
			Func:     revokeHandler,
		},
		{
			Name:     "status",
			Help:     "show stored certificate artifacts: status <domain>",
			Func:     statusHandler,
		},
		{
			Name:     "reset",
			Help:     "delete all stored certificates and challenge files",
			Func:     resetHandler,
		},
	}
}

// parseFlags parses args with the given flag set, printing a message on
// error. The second return value is false when the handler should stop,
// either because parsing failed or because -h already printed the help.
func parseFlags(c *ishell.Context, flags *flag.FlagSet, args []string) ([]string, bool) {
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil, false
	}
	if err != nil {
		c.Printf("%s: error parsing input flags: %v\n", flags.Name(), err)
		return nil, false
	}
	return flags.Args(), true
}

func registerHandler(c *ishell.Context) {
	mgr := getManager(c)

	reg, err := mgr.RegisterAccount()
	if err != nil {
		c.Printf("register: %v\n", err)
		return
	}

	out, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		c.Printf("register: marshaling registration: %v\n", err)
		return
	}
	c.Printf("Account registered:\n%s\n", out)
}

type issueOptions struct {
	addons  string
	country string
	state   string
	org     string
}

func issueHandler(c *ishell.Context) {
	var opts issueOptions
	issueFlags := flag.NewFlagSet("issue", flag.ContinueOnError)
	issueFlags.StringVar(&opts.addons, "addons", "", "comma separated additional domains to cover")
	issueFlags.StringVar(&opts.country, "country", "", "CSR subject country code")
	issueFlags.StringVar(&opts.state, "state", "", "CSR subject state or province")
	issueFlags.StringVar(&opts.org, "org", "", "CSR subject organization")

	leftovers, ok := parseFlags(c, issueFlags, c.Args)
	if !ok {
		return
	}
	if len(leftovers) != 1 {
		c.Printf("issue: expected exactly one domain argument\n")
		return
	}
	domain := leftovers[0]

	var addons []string
	for _, a := range strings.Split(opts.addons, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addons = append(addons, a)
		}
	}

	mgr := getManager(c)
	result, err := mgr.IssueCertificate(context.Background(), domain, addons, storage.DistinguishedName{
		Country:      opts.country,
		State:        opts.state,
		Organization: opts.org,
	})
	if err != nil {
		c.Printf("issue: %v\n", err)
		return
	}

	c.Printf("Issued certificate for %s\n", strings.Join(result.Domains, ", "))
	c.Printf("Artifacts stored in %s\n", getStore(c).Certificate(domain).Path())
}

func revokeHandler(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("revoke: expected exactly one domain argument\n")
		return
	}
	domain := c.Args[0]

	mgr := getManager(c)
	if err := mgr.RevokeCertificate(domain); err != nil {
		c.Printf("revoke: %v\n", err)
		return
	}
	c.Printf("Revoked certificate for %s\n", domain)
}

func statusHandler(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("status: expected exactly one domain argument\n")
		return
	}
	domain := c.Args[0]

	cert := getStore(c).Certificate(domain)
	if !cert.Exists() {
		c.Printf("No certificate stored for %s\n", domain)
		return
	}

	c.Printf("Certificate artifacts for %s:\n", domain)
	for _, name := range []string{storage.CERT_NAME, storage.CHAIN_NAME, storage.FULLCHAIN_NAME, storage.CSR_NAME} {
		c.Printf("  %s\n", filepath.Join(cert.Path(), name))
	}
}

func resetHandler(c *ishell.Context) {
	c.Printf("This deletes every stored certificate and challenge file. Type 'yes' to continue: ")
	answer := strings.TrimSpace(c.ReadLine())
	if answer != "yes" {
		c.Printf("Aborted\n")
		return
	}

	mgr := getManager(c)
	if err := mgr.Reset(); err != nil {
		c.Printf("reset: %v\n", err)
		return
	}
	c.Printf("Stores reset\n")
}
