package llmgateway

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/creatorpulse/creatorpulse/internal/config"
)

type openAIProvider struct {
	sdk          sdk.Client
	defaultModel string
}

func newOpenAIProvider(cfg config.OpenAIConfig) *openAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openAIProvider{sdk: sdk.NewClient(opts...), defaultModel: model}
}

func (p *openAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	messages := []sdk.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, sdk.SystemMessage(req.System))
	}
	messages = append(messages, sdk.UserMessage(req.Prompt))

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: messages,
	}
	comp, err := p.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai generate: %w", err)
	}
	text := ""
	if len(comp.Choices) > 0 {
		text = comp.Choices[0].Message.Content
	}
	return Response{
		Text:             text,
		TokensPrompt:     int(comp.Usage.PromptTokens),
		TokensCompletion: int(comp.Usage.CompletionTokens),
	}, nil
}
