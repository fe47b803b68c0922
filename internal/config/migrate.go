package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// legacy .env variable names recognized by the one-shot migration.
const (
	envLLMMode    = "BRIEFING_LLM_MODE"
	envLLMAPIKey  = "BRIEFING_LLM_API_KEY"
	envLLMBaseURL = "BRIEFING_LLM_BASE_URL"
	envLLMModel   = "BRIEFING_LLM_MODEL"

	envImageMode     = "BRIEFING_IMAGE_MODE"
	envImageAPIKey   = "BRIEFING_IMAGE_API_KEY"
	envImageEndpoint = "BRIEFING_IMAGE_ENDPOINT"
	envImageModel    = "BRIEFING_IMAGE_MODEL"
)

// MigrateIfNeeded implements the §4.1 one-shot migration: when
// configPath does not exist but a legacy envPath (.env) does, it builds
// a providers.yaml from the .env's variables, writing `${NAME}`
// references rather than the literal secret values, then renames the
// original .env to a non-colliding backup so migration never runs twice
// on the same file. now is injected so call sites can stamp a stable
// backup suffix without relying on time.Now() inside this package.
func MigrateIfNeeded(configPath, envPath string, now time.Time) (migrated bool, err error) {
	if _, err := os.Stat(configPath); err == nil {
		return false, nil // already migrated or hand-authored
	}
	if _, err := os.Stat(envPath); err != nil {
		return false, nil // nothing to migrate from
	}

	vars, err := godotenv.Read(envPath)
	if err != nil {
		return false, fmt.Errorf("read legacy env file %s: %w", envPath, err)
	}

	cfg := ProviderConfig{
		LLM: LLMSection{
			Mode:           LLMMode(firstNonEmpty(vars[envLLMMode], string(LLMModeDirect))),
			APIKey:         envRefIfPresent(vars, envLLMAPIKey),
			BaseURL:        vars[envLLMBaseURL],
			Model:          vars[envLLMModel],
			TimeoutSeconds: 120,
		},
	}
	if vars[envImageMode] != "" {
		cfg.Image = &ImageSection{
			Mode:           ImageMode(vars[envImageMode]),
			APIKey:         envRefIfPresent(vars, envImageAPIKey),
			Endpoint:       vars[envImageEndpoint],
			Model:          vars[envImageModel],
			TimeoutSeconds: 120,
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("marshal migrated config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return false, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", configPath, err)
	}

	backupPath := fmt.Sprintf("%s.bak.%d", envPath, now.Unix())
	for n := 1; ; n++ {
		if _, err := os.Stat(backupPath); err != nil {
			break
		}
		backupPath = fmt.Sprintf("%s.bak.%d.%d", envPath, now.Unix(), n)
	}
	if err := os.Rename(envPath, backupPath); err != nil {
		return false, fmt.Errorf("backup legacy env file: %w", err)
	}

	return true, nil
}

func envRefIfPresent(vars map[string]string, name string) string {
	if vars[name] == "" {
		return ""
	}
	return "${" + name + "}"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
