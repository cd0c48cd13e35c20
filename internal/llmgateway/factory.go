package llmgateway

import (
	"context"
	"fmt"

	"github.com/creatorpulse/creatorpulse/internal/config"
)

// Build constructs the Provider selected by cfg. CreatorPulse has no
// "local" mode analog; exactly one of Anthropic/OpenAI/Google is expected
// to carry a non-empty API key.
func Build(ctx context.Context, cfg config.Config, providerName string) (Provider, error) {
	switch providerName {
	case "", "anthropic":
		return newAnthropicProvider(cfg.Anthropic), nil
	case "openai":
		return newOpenAIProvider(cfg.OpenAI), nil
	case "google":
		return newGoogleProvider(ctx, cfg.Google)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", providerName)
	}
}
