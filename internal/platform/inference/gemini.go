package inference

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend generates answers with a hosted Gemini model.
type GeminiBackend struct {
	cli   *genai.Client
	model string
}

func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiBackend{cli: cli, model: model}, nil
}

func (g *GeminiBackend) Name() string { return "gemini:" + g.model }

// Generate sends the prompt as user content with the emergency system
// instruction (and profile block) as the system instruction.
func (g *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	cfg := generationConfig(SystemInstruction(req.Profile), req.MaxNewTokens, req.Temperature, req.TopP)
	return g.generate(ctx, []*genai.Content{userContent(req.Prompt)}, cfg)
}

// Chat replays the history as alternating contents followed by the new
// prompt.
func (g *GeminiBackend) Chat(ctx context.Context, req ChatRequest) (string, error) {
	cfg := generationConfig(ChatSystemInstruction(req.Profile), req.MaxNewTokens, req.Temperature, req.TopP)
	return g.generate(ctx, ChatContents(req), cfg)
}

// ChatContents maps a chat request onto Gemini contents. Assistant turns
// use the "model" role; empty turns are dropped.
func ChatContents(req ChatRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := genai.RoleUser
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return append(contents, userContent(req.Prompt))
}

func userContent(text string) *genai.Content {
	return &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}}
}

func generationConfig(system string, maxTokens int, temperature, topP float64) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		Temperature:       genai.Ptr(float32(temperature)),
		TopP:              genai.Ptr(float32(topP)),
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	return cfg
}

func (g *GeminiBackend) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyAnswer
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}
