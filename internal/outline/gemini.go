package outline

import (
	"context"
	"image"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// geminiGenerator asks a Gemini model for an SVG outline.
type geminiGenerator struct {
	apiKey        string
	baseURL       string
	model         string
	width, height int
}

func newGemini(cfg Config) *geminiGenerator {
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	w, h := cfg.canvasSize()
	return &geminiGenerator{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   model,
		width:   w,
		height:  h,
	}
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (image.Image, error) {
	opts := []option.ClientOption{option.WithAPIKey(g.apiKey)}
	if g.baseURL != "" {
		opts = append(opts, option.WithEndpoint(g.baseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt(g.width, g.height)))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	return ParseReply(geminiText(resp), g.width, g.height)
}

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return b.String()
}
