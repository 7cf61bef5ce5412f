package outline

import (
	"context"
	"image"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// anthropicGenerator asks a Messages model for an SVG outline.
type anthropicGenerator struct {
	client        anthropic.Client
	model         string
	width, height int
}

func newAnthropic(cfg Config) *anthropicGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	w, h := cfg.canvasSize()
	return &anthropicGenerator{
		client: anthropic.NewClient(opts...),
		model:  model,
		width:  w,
		height: h,
	}
}

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string) (image.Image, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(g.width, g.height)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return ParseReply(text.String(), g.width, g.height)
}
