// Package config loads .scanboard.yml configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/build-flow-labs/scanboard/rating"
	"gopkg.in/yaml.v3"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr       = ":8080"
	DefaultStorageDir = "scans"
	DefaultPolicy     = rating.PolicySeverityGated
	DefaultScanDelay  = 2 * time.Second
)

const maxConfigSize = 1 << 20

// GitHub holds the repository used for issue reports.
type GitHub struct {
	Owner   string `yaml:"owner,omitempty"`
	Repo    string `yaml:"repo,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Token   string `yaml:"-"`
}

// Config represents the .scanboard.yml configuration file.
type Config struct {
	Addr       string `yaml:"addr,omitempty"`
	StorageDir string `yaml:"storage_dir,omitempty"`
	Policy     string `yaml:"policy,omitempty"`
	ScanDelay  string `yaml:"scan_delay,omitempty"`
	FailBelow  string `yaml:"fail_below,omitempty"`
	GitHub     GitHub `yaml:"github,omitempty"`
}

// Load reads .scanboard.yml or .scanboard.yaml from dir. If path is a file,
// that file is read directly. A missing config yields a zero Config.
func Load(path string) (Config, error) {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return loadFile(path)
	}
	for _, name := range []string{".scanboard.yml", ".scanboard.yaml"} {
		cfg, err := loadFile(filepath.Join(path, name))
		if os.IsNotExist(err) {
			continue
		}
		return cfg, err
	}
	return Config{}, nil
}

func loadFile(path string) (Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.Size() > maxConfigSize {
		return Config{}, fmt.Errorf("config file too large: %s (%d bytes, max 1 MB)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// WithDefaults fills unset fields and reads GITHUB_TOKEN from the environment.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.StorageDir == "" {
		c.StorageDir = DefaultStorageDir
	}
	if c.Policy == "" {
		c.Policy = string(DefaultPolicy)
	}
	if c.ScanDelay == "" {
		c.ScanDelay = DefaultScanDelay.String()
	}
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	return c
}

// Validate checks the policy, grade threshold and scan delay.
func (c Config) Validate() error {
	if c.Policy != "" {
		if _, err := rating.ParsePolicy(c.Policy); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	if c.FailBelow != "" {
		if _, err := rating.ParseGrade(c.FailBelow); err != nil {
			return fmt.Errorf("fail_below: %w", err)
		}
	}
	if c.ScanDelay != "" {
		d, err := time.ParseDuration(c.ScanDelay)
		if err != nil {
			return fmt.Errorf("scan_delay: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("scan_delay: must not be negative")
		}
	}
	return nil
}

// RatingPolicy returns the configured policy, or the default when unset.
func (c Config) RatingPolicy() (rating.Policy, error) {
	if c.Policy == "" {
		return DefaultPolicy, nil
	}
	return rating.ParsePolicy(c.Policy)
}

// Delay returns the configured scan delay, or the default when unset.
func (c Config) Delay() (time.Duration, error) {
	if c.ScanDelay == "" {
		return DefaultScanDelay, nil
	}
	return time.ParseDuration(c.ScanDelay)
}
