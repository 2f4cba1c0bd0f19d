package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/leaselens/internal/core"
)

var _ core.LLMProvider = (*GeminiLLM)(nil)

// GeminiLLM generates lease reports. The model is asked for JSON at a low
// temperature so scores stay stable between runs of the same lease.
type GeminiLLM struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", core.ErrConfig)
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	m := cl.GenerativeModel(modelName)
	m.SetTemperature(0.2)
	m.ResponseMIMEType = "application/json"

	return &GeminiLLM{client: cl, model: m}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate sends a single prompt and concatenates the text parts of the first
// candidate. It never retries.
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classify("gemini generate", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: prompt blocked (%s)", core.ErrProvider, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", core.ErrProvider)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty response (finish reason %s)", core.ErrProvider, resp.Candidates[0].FinishReason)
	}
	return b.String(), nil
}
