// Package config loads the certweld configuration: defaults, an
// optional YAML file, and CERTWELD_* environment overrides, applied in
// that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/certweld/certweld/acme"
)

// Config represents the application configuration.
type Config struct {
	// Base URL of the ACME v1 API.
	APIBase string `yaml:"api_base"`
	// Optional PEM CA bundle for verifying the ACME server's HTTPS.
	CABundle string `yaml:"ca_bundle"`

	// Directory holding the account key, domain keys and certificates.
	CertsRoot string `yaml:"certs_root"`
	// Web root whose .well-known path serves challenge responses.
	ChallengesRoot string `yaml:"challenges_root"`
	// Override for the scheme://host used by the challenge self check.
	SelfCheckBase string `yaml:"self_check_base"`
	// When set, challenge responses are served from an embedded HTTP
	// server on this address instead of the challenges web root.
	ChallengeListen string `yaml:"challenge_listen"`

	// Optional contact email registered with the account.
	ContactEmail string `yaml:"contact_email"`

	// CSR subject defaults.
	Country      string `yaml:"country"`
	State        string `yaml:"state"`
	Organization string `yaml:"organization"`

	// Timeouts and polling cadence.
	HTTPTimeout  time.Duration `yaml:"http_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

// Default returns a configuration with default values.
func Default() *Config {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir, _ = os.UserHomeDir()
	}

	return &Config{
		APIBase:        acme.DEFAULT_API_BASE,
		CertsRoot:      filepath.Join(configDir, "certweld", "live"),
		ChallengesRoot: filepath.Join(configDir, "certweld", "challenges"),
		HTTPTimeout:    10 * time.Second,
		PollInterval:   1 * time.Second,
		PollTimeout:    5 * time.Minute,
	}
}

// Load builds the effective configuration: defaults overlaid with the
// YAML file at path (when path is non-empty) and then with environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CERTWELD_* environment variables.
func (c *Config) applyEnv() {
	setString := func(key string, target *string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	setDuration := func(key string, target *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*target = d
			}
		}
	}

	setString("CERTWELD_API_BASE", &c.APIBase)
	setString("CERTWELD_CA_BUNDLE", &c.CABundle)
	setString("CERTWELD_CERTS_ROOT", &c.CertsRoot)
	setString("CERTWELD_CHALLENGES_ROOT", &c.ChallengesRoot)
	setString("CERTWELD_SELF_CHECK_BASE", &c.SelfCheckBase)
	setString("CERTWELD_CHALLENGE_LISTEN", &c.ChallengeListen)
	setString("CERTWELD_CONTACT_EMAIL", &c.ContactEmail)
	setString("CERTWELD_COUNTRY", &c.Country)
	setString("CERTWELD_STATE", &c.State)
	setString("CERTWELD_ORGANIZATION", &c.Organization)
	setDuration("CERTWELD_HTTP_TIMEOUT", &c.HTTPTimeout)
	setDuration("CERTWELD_POLL_INTERVAL", &c.PollInterval)
	setDuration("CERTWELD_POLL_TIMEOUT", &c.PollTimeout)
}

// Validate checks the configuration for values the client cannot work
// with.
func (c *Config) Validate() error {
	if c.APIBase == "" {
		return fmt.Errorf("api_base must not be empty")
	}
	if c.CertsRoot == "" {
		return fmt.Errorf("certs_root must not be empty")
	}
	if c.ChallengesRoot == "" && c.ChallengeListen == "" {
		return fmt.Errorf("one of challenges_root or challenge_listen must be set")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll_timeout must be positive")
	}
	return nil
}

// Contact returns the contact list for account registration.
func (c *Config) Contact() []string {
	if c.ContactEmail == "" {
		return nil
	}
	return []string{"mailto:" + c.ContactEmail}
}
