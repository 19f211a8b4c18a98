package extract

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const defaultAIModel = "claude-haiku-4-5"

const normalizePrompt = `You are given raw text extracted from a supplier pricelist.
It may contain OCR noise, broken line wrapping, and table artifacts.
Rewrite it as one product per line, keeping the product name, model number,
and all prices exactly as they appear. Do not invent, summarize, or reformat
prices. Output only the rewritten lines.`

// AINormalizer cleans up noisy extracted text via the Anthropic API.
type AINormalizer struct {
	client sdk.Client
	model  string
}

// NewAINormalizer creates a normalizer. An empty model selects the default.
func NewAINormalizer(apiKey, model string) *AINormalizer {
	if model == "" {
		model = defaultAIModel
	}
	return &AINormalizer{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Normalize rewrites raw pricelist text into clean one-product-per-line form.
func (n *AINormalizer) Normalize(ctx context.Context, raw string) (string, error) {
	msg, err := n.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(n.model),
		MaxTokens: 8192,
		System:    []sdk.TextBlockParam{{Text: normalizePrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(raw)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "extract: ai normalize")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", eris.New("extract: ai normalize returned no text")
	}
	return out, nil
}
