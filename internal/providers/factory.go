// Package providers holds the LLM backends the executor can run on and
// the env-driven factory that picks one.
package providers

import (
	"fmt"
	"os"

	"github.com/mesutfelat/cowork/internal/engine"
)

// FromEnv creates an engine.Provider from environment variables.
// LLM_PROVIDER selects the backend; each backend reads its own key,
// model, and (for OpenAI-compatible gateways) base URL variables.
// Returns the provider, the default model name, and the provider key
// recorded in snapshots.
func FromEnv() (engine.Provider, string, string, error) {
	providerKey := os.Getenv("LLM_PROVIDER")
	if providerKey == "" {
		providerKey = "anthropic"
	}

	switch providerKey {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, "", "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		modelName := os.Getenv("ANTHROPIC_MODEL")
		if modelName == "" {
			modelName = "claude-sonnet-4-20250514"
		}
		p, err := NewAnthropicProvider(apiKey, modelName)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to create Anthropic provider: %w", err)
		}
		return p, modelName, providerKey, nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, "", "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		modelName := os.Getenv("OPENAI_MODEL")
		if modelName == "" {
			modelName = "gpt-4o-mini"
		}
		// OPENAI_BASE_URL supports OpenAI-compatible proxies
		return newCompatible(providerKey, apiKey, modelName, os.Getenv("OPENAI_BASE_URL"))

	case "kimi":
		// Kimi via BytePlus ModelArk, OpenAI-compatible
		apiKey := os.Getenv("KIMI_API_KEY")
		if apiKey == "" {
			return nil, "", "", fmt.Errorf("KIMI_API_KEY not set")
		}
		modelName := os.Getenv("KIMI_MODEL")
		if modelName == "" {
			modelName = "kimi-k2-250711"
		}
		baseURL := os.Getenv("KIMI_BASE_URL")
		if baseURL == "" {
			baseURL = "https://ark.ap-southeast.bytepluses.com/api/v3"
		}
		return newCompatible(providerKey, apiKey, modelName, baseURL)

	case "deepseek":
		apiKey := os.Getenv("DEEPSEEK_API_KEY")
		if apiKey == "" {
			return nil, "", "", fmt.Errorf("DEEPSEEK_API_KEY not set")
		}
		modelName := os.Getenv("DEEPSEEK_MODEL")
		if modelName == "" {
			modelName = "deepseek-chat"
		}
		return newCompatible(providerKey, apiKey, modelName, "https://api.deepseek.com/v1")

	case "groq":
		apiKey := os.Getenv("GROQ_API_KEY")
		if apiKey == "" {
			return nil, "", "", fmt.Errorf("GROQ_API_KEY not set")
		}
		modelName := os.Getenv("GROQ_MODEL")
		if modelName == "" {
			modelName = "llama-3.1-70b-versatile"
		}
		return newCompatible(providerKey, apiKey, modelName, "https://api.groq.com/openai/v1")

	case "ollama":
		// local server, key is a formality
		baseURL := os.Getenv("OLLAMA_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		modelName := os.Getenv("OLLAMA_MODEL")
		if modelName == "" {
			modelName = "llama3.1"
		}
		apiKey := os.Getenv("OLLAMA_API_KEY")
		if apiKey == "" {
			apiKey = "ollama"
		}
		return newCompatible(providerKey, apiKey, modelName, baseURL)

	case "lmstudio":
		baseURL := os.Getenv("LMSTUDIO_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:1234/v1"
		}
		modelName := os.Getenv("LMSTUDIO_MODEL")
		if modelName == "" {
			modelName = "local-model"
		}
		apiKey := os.Getenv("LMSTUDIO_API_KEY")
		if apiKey == "" {
			apiKey = "lm-studio"
		}
		return newCompatible(providerKey, apiKey, modelName, baseURL)

	default:
		return nil, "", "", fmt.Errorf("unknown LLM_PROVIDER: %s (supported: anthropic, openai, kimi, deepseek, groq, ollama, lmstudio)", providerKey)
	}
}

func newCompatible(providerKey, apiKey, modelName, baseURL string) (engine.Provider, string, string, error) {
	p, err := NewOpenAIProvider(apiKey, modelName, baseURL)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create %s provider: %w", providerKey, err)
	}
	return p, modelName, providerKey, nil
}
