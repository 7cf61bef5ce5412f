package outline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "dall-e-3"

// openaiGenerator requests a line-art image from the Images API.
type openaiGenerator struct {
	client openai.Client
	model  string
	size   string
}

func newOpenAI(cfg Config) *openaiGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &openaiGenerator{
		client: openai.NewClient(opts...),
		model:  model,
		size:   cfg.Size,
	}
}

func (g *openaiGenerator) Generate(ctx context.Context, prompt string) (image.Image, error) {
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         imagePrompt(prompt),
		Model:          openai.ImageModel(g.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(g.size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("empty image response")
	}
	return decodeBase64Image(resp.Data[0].B64JSON)
}

func decodeBase64Image(data string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func imagePrompt(prompt string) string {
	return "A simple black line-art outline on a plain white background, " +
		"suitable for coloring in, no shading, no text: " + prompt
}
