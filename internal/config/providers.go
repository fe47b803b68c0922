// Package config owns provider configuration (LLM/image sections, §4.1)
// and process-level run parameters, both loaded from environment
// variables and an optional YAML document in a
// struct-of-sections-with-yaml-tags style.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMMode selects the authentication/endpoint shape of the LLM client.
type LLMMode string

const (
	LLMModeDirect LLMMode = "direct"
	LLMModeProxy  LLMMode = "proxy"
)

// ImageMode selects the request/response shape of the image client.
type ImageMode string

const (
	ImageModeNative ImageMode = "native"
	ImageModeProxy  ImageMode = "proxy"
)

// LLMSection configures the reasoning LLM client (C3).
type LLMSection struct {
	Mode           LLMMode       `yaml:"mode" json:"mode"`
	APIKey         string        `yaml:"api_key" json:"api_key"`
	BaseURL        string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Model          string        `yaml:"model" json:"model"`
	TimeoutSeconds int           `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns TimeoutSeconds as a time.Duration, defaulting to 120s.
func (l LLMSection) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// ImageSection configures the optional image client (C4). A zero-value
// ImageSection (empty Mode) means image generation is unconfigured and
// the orchestrator skips phase 4.7 with a warning.
type ImageSection struct {
	Mode           ImageMode `yaml:"mode,omitempty" json:"mode,omitempty"`
	APIKey         string    `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL        string    `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Endpoint       string    `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Model          string    `yaml:"model,omitempty" json:"model,omitempty"`
	TimeoutSeconds int       `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
}

func (i ImageSection) Configured() bool { return i.Mode != "" }

func (i ImageSection) Timeout() time.Duration {
	if i.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// ProviderConfig is the top-level `providers.yaml` document.
type ProviderConfig struct {
	LLM   LLMSection    `yaml:"llm" json:"llm"`
	Image *ImageSection `yaml:"image,omitempty" json:"image,omitempty"`
}

var envRefPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// resolveEnvRef resolves a `${NAME}` reference from the process
// environment. Unlike os.ExpandEnv, an unresolved name is a hard error
// rather than a silent substitution of the empty string — spec §7 makes
// EnvVarUnresolved fatal, so silent blanking is not an option.
func resolveEnvRef(raw string) (string, error) {
	m := envRefPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return raw, nil
	}
	name := m[1]
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %q referenced by %q is not set", name, raw)
	}
	if val == "" {
		return "", fmt.Errorf("environment variable %q referenced by %q is empty", name, raw)
	}
	return val, nil
}

// Load reads and resolves a providers.yaml document from path, returning
// a fully validated ProviderConfig. All violations across both sections
// are collected and returned as one error (ValidationReport), per §4.1's
// "validation is total" requirement.
func Load(path string) (*ProviderConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var cfg ProviderConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	if rep := cfg.Validate(); !rep.OK() {
		return nil, rep
	}
	return &cfg, nil
}

func (c *ProviderConfig) resolveSecrets() error {
	key, err := resolveEnvRef(c.LLM.APIKey)
	if err != nil {
		return fmt.Errorf("llm.api_key: %w", err)
	}
	c.LLM.APIKey = key
	if c.Image != nil && c.Image.APIKey != "" {
		key, err := resolveEnvRef(c.Image.APIKey)
		if err != nil {
			return fmt.Errorf("image.api_key: %w", err)
		}
		c.Image.APIKey = key
	}
	return nil
}

// ValidationReport collects every §4.1 violation found across both
// sections so operators fix all of them in one pass instead of
// iterating one error at a time.
type ValidationReport struct {
	Violations []string
}

func (r *ValidationReport) add(format string, args ...any) {
	r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
}

func (r *ValidationReport) OK() bool { return len(r.Violations) == 0 }

func (r *ValidationReport) Error() string {
	return fmt.Sprintf("provider config invalid (%d violation(s)): %s", len(r.Violations), strings.Join(r.Violations, "; "))
}

var placeholderValues = map[string]bool{
	"changeme": true, "your-api-key": true, "xxx": true, "": true, "todo": true,
}

func isPlaceholder(v string) bool {
	return placeholderValues[strings.ToLower(strings.TrimSpace(v))]
}

// Validate runs every §4.1 check and returns a report. An OK() report
// means the config is ready to build clients from.
func (c *ProviderConfig) Validate() *ValidationReport {
	rep := &ValidationReport{}

	switch c.LLM.Mode {
	case LLMModeDirect, LLMModeProxy:
	case "":
		rep.add("llm.mode is required")
	default:
		rep.add("llm.mode %q is not one of direct|proxy", c.LLM.Mode)
	}
	if isPlaceholder(c.LLM.APIKey) {
		rep.add("llm.api_key is missing or a placeholder value")
	}
	if c.LLM.Model == "" {
		rep.add("llm.model is required")
	}
	if strings.HasSuffix(strings.TrimRight(c.LLM.BaseURL, "/")+"/", "/v1/") {
		rep.add("llm.base_url must not include a trailing /v1 segment")
	}
	if c.LLM.Mode == LLMModeProxy && c.LLM.BaseURL == "" {
		rep.add("llm.base_url is required in proxy mode")
	}

	if c.Image != nil && c.Image.Configured() {
		switch c.Image.Mode {
		case ImageModeNative, ImageModeProxy:
		default:
			rep.add("image.mode %q is not one of native|proxy", c.Image.Mode)
		}
		if isPlaceholder(c.Image.APIKey) {
			rep.add("image.api_key is missing or a placeholder value")
		}
		if c.Image.Mode == ImageModeProxy && c.Image.Endpoint == "" && c.Image.BaseURL == "" {
			rep.add("image.endpoint is required in proxy mode")
		}
		if strings.HasSuffix(strings.TrimRight(c.Image.BaseURL, "/")+"/", "/v1/") {
			rep.add("image.base_url must not include a trailing /v1 segment")
		}
	}

	return rep
}
