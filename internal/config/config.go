// Package config loads ipacheck settings from the config file, .env files and
// IPACHECK_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "IPACHECK_"

// Discovery methods.
const (
	DiscoveryDNS    = "dns"
	DiscoveryConsul = "consul"
)

// Config represents the ipacheck configuration
type Config struct {
	Domain             string        `yaml:"domain" env:"DOMAIN"`
	Hosts              []string      `yaml:"hosts" env:"HOSTS" envSeparator:","`
	BindDN             string        `yaml:"bind_dn" env:"BIND_DN"`
	BindPassword       string        `yaml:"bind_password" env:"BIND_PASSWORD"`
	Timeout            time.Duration `yaml:"timeout" env:"TIMEOUT"`
	SkipTLSVerify      bool          `yaml:"skip_tls_verify" env:"SKIP_TLS_VERIFY"`
	Concurrency        int           `yaml:"concurrency" env:"CONCURRENCY"`
	ReplicationOKCodes []int         `yaml:"replication_ok_codes" env:"REPLICATION_OK_CODES" envSeparator:","`

	Discovery DiscoveryConfig `yaml:"discovery" envPrefix:"DISCOVERY_"`
	History   HistoryConfig   `yaml:"history" envPrefix:"HISTORY_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

// DiscoveryConfig selects how nodes are found when no hosts are configured.
type DiscoveryConfig struct {
	Method string       `yaml:"method" env:"METHOD"`
	Consul ConsulConfig `yaml:"consul" envPrefix:"CONSUL_"`
}

// ConsulConfig locates the Consul catalog service listing the servers.
type ConsulConfig struct {
	Address    string `yaml:"address" env:"ADDRESS"`
	Service    string `yaml:"service" env:"SERVICE"`
	Tag        string `yaml:"tag" env:"TAG"`
	Datacenter string `yaml:"datacenter" env:"DATACENTER"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Path string `yaml:"path" env:"PATH"` // empty uses ~/.ipacheck/ipacheck.db
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	File string `yaml:"file" env:"FILE"` // empty disables the export
}

// LogConfig controls file logging.
type LogConfig struct {
	File string `yaml:"file" env:"FILE"`
}

// Defaults returns the built-in settings.
func Defaults() *Config {
	return &Config{
		BindDN:             "cn=Directory Manager",
		Timeout:            3 * time.Second,
		Concurrency:        8,
		ReplicationOKCodes: []int{0, 1},
		Discovery: DiscoveryConfig{
			Method: DiscoveryDNS,
			Consul: ConsulConfig{Service: "freeipa"},
		},
	}
}

// template is written when no config file exists yet.
const template = `# ipacheck configuration
# Values here are overridden by IPACHECK_* environment variables and command line flags.

domain: ipa.example.com
hosts:
  - ipa01.ipa.example.com
  - ipa02.ipa.example.com
bind_dn: cn=Directory Manager
bind_password: example123
timeout: 3s
skip_tls_verify: false
concurrency: 8
replication_ok_codes: [0, 1]

discovery:
  method: dns # dns or consul, used when no hosts are given
  consul:
    address: 127.0.0.1:8500
    service: freeipa
    tag: ""

history:
  path: "" # defaults to ~/.ipacheck/ipacheck.db

metrics:
  file: "" # e.g. /var/lib/node_exporter/textfile/ipacheck.prom

log:
  file: ""
`

// DefaultPath returns $XDG_CONFIG_HOME/ipacheck/config.yaml, falling back to ~/.config.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ipacheck", "config.yaml"), nil
}

// Result is a loaded configuration and where it came from.
type Result struct {
	Config  *Config
	Path    string
	Created bool // the file did not exist and a template was written
}

// Load reads the config file at path (DefaultPath when empty), then the given
// .env files, then IPACHECK_* variables. A missing config file is created from
// the template; its placeholder values are not applied to this run.
func Load(path string, envFiles ...string) (*Result, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	res := &Result{Config: Defaults(), Path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := WriteTemplate(path); err != nil {
			return nil, err
		}
		res.Created = true
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, res.Config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(res.Config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return res, nil
}

// WriteTemplate writes the commented default config to path. Existing files are left alone.
func WriteTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(template); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load %s: %w", strings.Join(existing, ", "), err)
	}
	return nil
}

// Validate checks the settings needed for a run. Live runs also need a password.
func (c *Config) Validate(live bool) error {
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.BindDN == "" {
		return fmt.Errorf("bind DN is required")
	}
	if live && c.BindPassword == "" {
		return fmt.Errorf("bind password is required")
	}
	for _, h := range c.Hosts {
		if h == "" || strings.ContainsAny(h, " \t") {
			return fmt.Errorf("invalid host name %q", h)
		}
	}
	switch c.Discovery.Method {
	case "", DiscoveryDNS, DiscoveryConsul:
	default:
		return fmt.Errorf("unknown discovery method %q (valid: dns, consul)", c.Discovery.Method)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}
