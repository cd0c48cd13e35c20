package llmgateway

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/creatorpulse/creatorpulse/internal/config"
)

type googleProvider struct {
	client       *genai.Client
	defaultModel string
}

func newGoogleProvider(ctx context.Context, cfg config.GoogleConfig) (*googleProvider, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: strings.TrimSpace(cfg.APIKey)})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}
	return &googleProvider{client: client, defaultModel: model}, nil
}

func (p *googleProvider) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	genCfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return Response{}, fmt.Errorf("google generate: %w", err)
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
	}
	promptTokens, completionTokens := 0, 0
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return Response{Text: text.String(), TokensPrompt: promptTokens, TokensCompletion: completionTokens}, nil
}
