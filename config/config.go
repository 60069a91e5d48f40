// Package config resolves the host command and environment for a working
// directory. A directory may carry a hostrun.yaml declaring how its test
// host is launched; the resolved environment is the process baseline plus
// the file's overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the per-directory configuration file hostrun looks for.
const FileName = "hostrun.yaml"

// CoverageEnv is the override flag added to the host environment when
// coverage is requested; hosts honoring it enable quiet coverage
// instrumentation (collect counts, print nothing).
const CoverageEnv = "HOSTRUN_COVERAGE"

// Config declares how the test host is launched for one directory.
type Config struct {
	// Host is the host executable and its arguments
	Host []string `yaml:"host,omitempty"`
	// IDs are the default test identities to request when none are given
	IDs []string `yaml:"ids,omitempty"`
	// Env overrides or adds environment variables for the host
	Env map[string]string `yaml:"env,omitempty"`
}

// Load reads dir's hostrun.yaml. A missing file yields an empty config and
// no error; a malformed file is an error.
func Load(dir string) (*Config, error) {
	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Environ builds the full host environment: the current process
// environment, with cfg's overrides applied, plus the quiet-coverage flag
// when coverage is requested. Override order is deterministic.
func Environ(cfg *Config, coverage bool) []string {
	env := os.Environ()

	overrides := make(map[string]string, len(cfg.Env)+1)
	for k, v := range cfg.Env {
		overrides[k] = v
	}
	if coverage {
		overrides[CoverageEnv] = "quiet"
	}
	if len(overrides) == 0 {
		return env
	}

	out := make([]string, 0, len(env)+len(overrides))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[name]; ok {
			continue
		}
		out = append(out, kv)
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, name+"="+overrides[name])
	}
	return out
}
