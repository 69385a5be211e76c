// certweld obtains and manages certificates from an ACME v1 server,
// either through one-shot subcommands or an interactive shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/letsencrypt/challtestsrv"

	"github.com/certweld/certweld/acme/challenge"
	acmeclient "github.com/certweld/certweld/acme/client"
	"github.com/certweld/certweld/acme/keys"
	"github.com/certweld/certweld/acme/manager"
	"github.com/certweld/certweld/cmd"
	"github.com/certweld/certweld/config"
	"github.com/certweld/certweld/shell"
	"github.com/certweld/certweld/storage"
)

// CLI represents the command line interface structure.
type CLI struct {
	ConfigFile string `help:"Path to YAML configuration file" default:"" env:"CERTWELD_CONFIG"`

	// Overrides for the corresponding configuration file settings.
	APIBase         string `help:"Base URL of the ACME v1 API" default:""`
	CertsRoot       string `help:"Directory for keys and certificates" default:""`
	ChallengesRoot  string `help:"Web root for HTTP-01 challenge files" default:""`
	ChallengeListen string `help:"Serve HTTP-01 challenges from an embedded server on this address" default:""`
	Contact         string `help:"Contact email to register with the account" default:""`

	Register RegisterCmd `cmd:"" help:"Register the account key with the ACME server"`
	Issue    IssueCmd    `cmd:"" help:"Validate domains and issue a certificate"`
	Revoke   RevokeCmd   `cmd:"" help:"Revoke the stored certificate for a domain"`
	Reset    ResetCmd    `cmd:"" help:"Delete all stored certificates and challenge files"`
	Shell    ShellCmd    `cmd:"" help:"Start an interactive shell"`
}

// RegisterCmd handles account registration.
type RegisterCmd struct{}

// IssueCmd handles certificate issuance.
type IssueCmd struct {
	Domain  string   `arg:"" help:"Domain to issue a certificate for"`
	Addons  []string `help:"Additional domains to cover"`
	Country string   `help:"CSR subject country code" default:""`
	State   string   `help:"CSR subject state or province" default:""`
	Org     string   `help:"CSR subject organization" default:""`
}

// RevokeCmd handles certificate revocation.
type RevokeCmd struct {
	Domain string `arg:"" help:"Domain whose certificate should be revoked"`
}

// ResetCmd handles store deletion.
type ResetCmd struct {
	Yes bool `help:"Skip the confirmation prompt" short:"y"`
}

// ShellCmd starts the interactive shell.
type ShellCmd struct{}

// app bundles the constructed collaborators for command handlers.
type app struct {
	cfg      *config.Config
	manager  *manager.Manager
	certs    *storage.Store
	challSrv *challtestsrv.ChallSrv
}

// build assembles the manager stack from the effective configuration.
// When an embedded challenge server is configured it is created here
// but not started; run starts and stops it around the handler.
func build(cfg *config.Config) (*app, error) {
	fs := storage.OSFilesystem{}
	keyStore := keys.NewStore(fs, cfg.CertsRoot)
	certStore := storage.NewStore(fs, cfg.CertsRoot)

	client, err := acmeclient.New(acmeclient.Config{
		APIBase:      cfg.APIBase,
		CABundlePath: cfg.CABundle,
		Timeout:      cfg.HTTPTimeout,
	}, keyStore.Account())
	if err != nil {
		return nil, err
	}

	var publisher challenge.Publisher
	var challSrv *challtestsrv.ChallSrv
	if cfg.ChallengeListen != "" {
		challSrv, err = challtestsrv.New(challtestsrv.Config{
			HTTPOneAddrs: []string{cfg.ChallengeListen},
			Log:          log.New(os.Stdout, "challSrv: ", log.Ldate|log.Ltime),
		})
		if err != nil {
			return nil, fmt.Errorf("unable to create challenge server: %s", err)
		}
		publisher = challenge.NewServerPublisher(challSrv)
	} else {
		publisher = challenge.NewWebrootPublisher(fs, cfg.ChallengesRoot)
	}

	resolver := challenge.NewResolver(client, publisher)
	resolver.SelfCheckBase = cfg.SelfCheckBase
	resolver.PollInterval = cfg.PollInterval
	resolver.PollTimeout = cfg.PollTimeout

	mgr := manager.New(manager.Config{
		ChallengesRoot: cfg.ChallengesRoot,
		Contact:        cfg.Contact(),
		PollInterval:   cfg.PollInterval,
		PollTimeout:    cfg.PollTimeout,
	}, fs, keyStore, certStore, client, resolver)

	return &app{
		cfg:      cfg,
		manager:  mgr,
		certs:    certStore,
		challSrv: challSrv,
	}, nil
}

// run executes fn with the challenge server (when configured) serving
// for the duration of the call.
func (a *app) run(fn func() error) error {
	if a.challSrv != nil {
		go a.challSrv.Run()
		defer a.challSrv.Shutdown()
	}
	return fn()
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("certweld"),
		kong.Description("ACME v1 certificate client"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	cfg, err := config.Load(cli.ConfigFile)
	cmd.FailOnError(err, "Unable to load configuration")

	if cli.APIBase != "" {
		cfg.APIBase = cli.APIBase
	}
	if cli.CertsRoot != "" {
		cfg.CertsRoot = cli.CertsRoot
	}
	if cli.ChallengesRoot != "" {
		cfg.ChallengesRoot = cli.ChallengesRoot
	}
	if cli.ChallengeListen != "" {
		cfg.ChallengeListen = cli.ChallengeListen
	}
	if cli.Contact != "" {
		cfg.ContactEmail = cli.Contact
	}
	cmd.FailOnError(cfg.Validate(), "Invalid configuration")

	application, err := build(cfg)
	cmd.FailOnError(err, "Unable to create certificate manager")

	switch ctx.Command() {
	case "register":
		err = handleRegister(application)
	case "issue <domain>":
		err = handleIssue(application, cli.Issue)
	case "revoke <domain>":
		err = handleRevoke(application, cli.Revoke.Domain)
	case "reset":
		err = handleReset(application, cli.Reset.Yes)
	case "shell":
		err = handleShell(application)
	default:
		ctx.FatalIfErrorf(fmt.Errorf("unknown command: %s", ctx.Command()))
	}

	cmd.FailOnError(err, "Command failed")
}

func handleRegister(a *app) error {
	return a.run(func() error {
		reg, err := a.manager.RegisterAccount()
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(reg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("Account registered:\n%s\n", out)
		return nil
	})
}

func handleIssue(a *app, opts IssueCmd) error {
	dn := storage.DistinguishedName{
		Country:      opts.Country,
		State:        opts.State,
		Organization: opts.Org,
	}
	// Flags win over the configured subject defaults.
	if dn.Country == "" {
		dn.Country = a.cfg.Country
	}
	if dn.State == "" {
		dn.State = a.cfg.State
	}
	if dn.Organization == "" {
		dn.Organization = a.cfg.Organization
	}

	return a.run(func() error {
		result, err := a.manager.IssueCertificate(context.Background(), opts.Domain, opts.Addons, dn)
		if err != nil {
			return err
		}
		fmt.Printf("Issued certificate for %s\n", strings.Join(result.Domains, ", "))
		fmt.Printf("Artifacts stored in %s\n", a.certs.Certificate(opts.Domain).Path())
		return nil
	})
}

func handleRevoke(a *app, domain string) error {
	return a.run(func() error {
		if err := a.manager.RevokeCertificate(domain); err != nil {
			return err
		}
		fmt.Printf("Revoked certificate for %s\n", domain)
		return nil
	})
}

func handleReset(a *app, yes bool) error {
	if !yes {
		fmt.Print("This deletes every stored certificate and challenge file. Type 'yes' to continue: ")
		var answer string
		fmt.Scanln(&answer)
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}
	return a.manager.Reset()
}

func handleShell(a *app) error {
	if a.challSrv != nil {
		go a.challSrv.Run()
		defer a.challSrv.Shutdown()
	}
	go cmd.CatchSignals(func() {
		if a.challSrv != nil {
			a.challSrv.Shutdown()
		}
	})

	sh := shell.New(&shell.Options{
		Manager: a.manager,
		Certs:   a.certs,
	})
	sh.Run()
	return nil
}
