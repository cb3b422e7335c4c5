package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/build-flow-labs/scanboard/internal/scanboard/config"
	"github.com/build-flow-labs/scanboard/rating"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`
addr: ":9090"
storage_dir: /var/lib/scanboard
policy: score-banded
scan_delay: 500ms
fail_below: C
github:
  owner: acme
  repo: website
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scanboard.yml"), data, 0644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Addr)
	require.Equal(t, "/var/lib/scanboard", cfg.StorageDir)
	require.Equal(t, "C", cfg.FailBelow)
	require.Equal(t, "acme", cfg.GitHub.Owner)
	require.Equal(t, "website", cfg.GitHub.Repo)
	require.NoError(t, cfg.Validate())

	policy, err := cfg.RatingPolicy()
	require.NoError(t, err)
	require.Equal(t, rating.PolicyScoreBanded, policy)

	delay, err := cfg.Delay()
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, delay)
}

func TestLoadYAMLExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scanboard.yaml"), []byte("policy: gated\n"), 0644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "gated", cfg.Policy)
}

func TestLoadExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7000\"\n"), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Addr)
}

func TestLoadMissingConfig(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, config.Config{}, cfg)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scanboard.yml"), []byte("addr: [unclosed"), 0644))

	_, err := config.Load(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing")
}

func TestLoadTooLarge(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, (1<<20)+1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scanboard.yml"), big, 0644))

	_, err := config.Load(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "too large")
}

func TestWithDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	cfg := config.Config{}.WithDefaults()
	require.Equal(t, config.DefaultAddr, cfg.Addr)
	require.Equal(t, config.DefaultStorageDir, cfg.StorageDir)
	require.Equal(t, string(rating.PolicySeverityGated), cfg.Policy)
	require.Equal(t, "tok", cfg.GitHub.Token)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"bad policy", config.Config{Policy: "weighted"}},
		{"bad grade", config.Config{FailBelow: "E"}},
		{"bad delay", config.Config{ScanDelay: "soon"}},
		{"negative delay", config.Config{ScanDelay: "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.cfg.Validate())
		})
	}
}
