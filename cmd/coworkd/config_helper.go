package main

import (
	"os"

	"github.com/mesutfelat/cowork/internal/config"
)

// keyEnvVars maps a provider to the environment variable its API key lives
// in; modelEnvVars likewise for the model override.
var keyEnvVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"kimi":      "KIMI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"groq":      "GROQ_API_KEY",
	"ollama":    "OLLAMA_API_KEY",
	"lmstudio":  "LMSTUDIO_API_KEY",
}

var modelEnvVars = map[string]string{
	"openai":    "OPENAI_MODEL",
	"anthropic": "ANTHROPIC_MODEL",
	"kimi":      "KIMI_MODEL",
	"deepseek":  "DEEPSEEK_MODEL",
	"groq":      "GROQ_MODEL",
	"ollama":    "OLLAMA_MODEL",
	"lmstudio":  "LMSTUDIO_MODEL",
}

var baseURLEnvVars = map[string]string{
	"openai":   "OPENAI_BASE_URL",
	"kimi":     "KIMI_BASE_URL",
	"ollama":   "OLLAMA_BASE_URL",
	"lmstudio": "LMSTUDIO_BASE_URL",
}

// applyConfigToEnv exports the persisted configuration as the environment
// variables the provider factory and sandbox read. Values already set in the
// environment win; the config file is the fallback, not an override.
func applyConfigToEnv(cfg *config.Config) {
	if cfg.LLMProvider != "" {
		setIfUnset("LLM_PROVIDER", cfg.LLMProvider)
	}
	if cfg.APIKey != "" {
		if envVar, ok := keyEnvVars[cfg.LLMProvider]; ok {
			setIfUnset(envVar, cfg.APIKey)
		}
	}
	if cfg.Model != "" {
		if envVar, ok := modelEnvVars[cfg.LLMProvider]; ok {
			setIfUnset(envVar, cfg.Model)
		}
	}
	if cfg.BaseURL != "" {
		if envVar, ok := baseURLEnvVars[cfg.LLMProvider]; ok {
			setIfUnset(envVar, cfg.BaseURL)
		}
	}
	if cfg.SandboxMode != "" {
		setIfUnset("COWORK_SANDBOX_MODE", cfg.SandboxMode)
	}
	if cfg.DockerImage != "" {
		setIfUnset("COWORK_DOCKER_IMAGE", cfg.DockerImage)
	}
}

func setIfUnset(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}
