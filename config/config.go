package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to upper-cased key names for environment lookup.
// Key "model_set" maps to ADWFLOW_MODEL_SET.
const EnvPrefix = "ADWFLOW_"

// Known configuration keys.
const (
	KeyAgentBinary   = "agent_binary"
	KeyModelSet      = "model_set"
	KeyStateDir      = "state_dir"
	KeyClassifier    = "classifier"
	KeyGitHubToken   = "github_token"
	KeyGitHubRepo    = "github_repo"
	KeyGitLabToken   = "gitlab_token"
	KeyGitLabBaseURL = "gitlab_base_url"
	KeyGitLabProject = "gitlab_project"
)

// Defaults returns the built-in default values.
func Defaults() map[string]string {
	return map[string]string{
		KeyModelSet:   "base",
		KeyStateDir:   "agents",
		KeyClassifier: "agent",
	}
}

// Resolver merges configuration from defaults, global and local YAML
// files, and the environment.
type Resolver struct {
	globalPath string
	localPath  string
	errWriter  io.Writer

	// Warnings collects non-fatal issues during resolution.
	Warnings []string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPaths sets explicit global and local config paths, bypassing
// discovery. Tests use this.
func WithPaths(globalPath, localPath string) ResolverOption {
	return func(r *Resolver) {
		r.globalPath = globalPath
		r.localPath = localPath
	}
}

// WithErrWriter sets where warnings are written. Defaults to os.Stderr.
func WithErrWriter(w io.Writer) ResolverOption {
	return func(r *Resolver) {
		r.errWriter = w
	}
}

// NewResolver creates a resolver, discovering the global config under
// ~/.config/adwflow and the local config at the git root.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{errWriter: os.Stderr}

	if home, err := os.UserHomeDir(); err == nil {
		r.globalPath = filepath.Join(home, ".config", "adwflow", "config.yaml")
	}
	if root := findGitRoot("."); root != "" {
		r.localPath = filepath.Join(root, ".adwflow.yaml")
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolved holds the final merged configuration.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

// Get returns the value for a key, or empty string if not set.
func (c *Resolved) Get(key string) string {
	return c.values[key]
}

// Source returns the source of a key's value.
func (c *Resolved) Source(key string) Source {
	return c.sources[key]
}

// All returns a copy of all key-value pairs.
func (c *Resolved) All() map[string]string {
	result := make(map[string]string, len(c.values))
	for k, v := range c.values {
		result[k] = v
	}
	return result
}

// Resolve builds the final config by merging all sources.
func (r *Resolver) Resolve() *Resolved {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}

	for key, value := range Defaults() {
		cfg.values[key] = value
		cfg.sources[key] = SourceDefault
	}

	r.applyFile(cfg, r.globalPath, SourceGlobal)
	r.applyFile(cfg, r.localPath, SourceLocal)
	r.applyEnv(cfg)

	return cfg
}

// ResolveWithFlags resolves config and applies non-empty flag overrides.
func (r *Resolver) ResolveWithFlags(flags map[string]string) *Resolved {
	cfg := r.Resolve()
	for key, value := range flags {
		if value != "" {
			cfg.values[key] = value
			cfg.sources[key] = SourceFlag
		}
	}
	return cfg
}

func (r *Resolver) applyFile(cfg *Resolved, path string, source Source) {
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return // File doesn't exist - not an error
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		r.warn(fmt.Sprintf("could not parse %s: %v", path, err))
		return
	}

	for key, value := range parsed {
		if strVal := toString(value); strVal != "" {
			cfg.values[key] = strVal
			cfg.sources[key] = source
		}
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	keys := make(map[string]bool)
	for k := range Defaults() {
		keys[k] = true
	}
	for k := range cfg.values {
		keys[k] = true
	}
	for _, k := range []string{
		KeyAgentBinary, KeyGitHubToken, KeyGitHubRepo,
		KeyGitLabToken, KeyGitLabBaseURL, KeyGitLabProject,
	} {
		keys[k] = true
	}

	for key := range keys {
		envKey := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if value := os.Getenv(envKey); value != "" {
			cfg.values[key] = value
			cfg.sources[key] = SourceEnv
		}
	}
}

// warn adds a warning and optionally prints it.
func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.errWriter != nil {
		fmt.Fprintf(r.errWriter, "Warning: %s\n", msg)
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		return ""
	}
}

// findGitRoot finds the git root by looking for a .git directory.
func findGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached root
		}
		dir = parent
	}

	return ""
}
