// Package llm wraps the Gemini API behind the two narrow operations the
// pipeline needs: free-text completion and JSON-structured completion, plus
// vector embeddings. The service is treated as unreliable everywhere; callers
// are expected to tolerate any error without aborting a run.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the completion model used when none is configured.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultEmbeddingModel is the model used for vector embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the embedding output dimension (Matryoshka).
	DefaultEmbeddingDimensions = int32(768)
	// EmbeddingInputLimit is the character budget for embedding input text.
	EmbeddingInputLimit = 8000
)

// Options tunes a single completion call.
type Options struct {
	MaxTokens   int32   // Maximum output tokens (0 = model default)
	Temperature float32 // Sampling temperature (0 = model default)
}

// Client is a handle to the Gemini API.
type Client struct {
	modelName      string
	embeddingModel string
	gClient        *genai.Client
}

// NewClient creates an LLM client. The API key is read from GEMINI_API_KEY
// (or GOOGLE_GEMINI_API_KEY / GOOGLE_AI_API_KEY) with a viper fallback at
// gemini.api_key; the model name falls back to gemini.model then the default.
func NewClient(ctx context.Context, modelName string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("gemini.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set GEMINI_API_KEY or gemini.api_key in the config file")
	}

	if modelName == "" {
		modelName = viper.GetString("gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}

	embeddingModel := viper.GetString("gemini.embedding_model")
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:      modelName,
		embeddingModel: embeddingModel,
		gClient:        gClient,
	}, nil
}

// Complete sends a system + user prompt pair and returns the raw text reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, opts, "")
}

// CompleteJSON sends a system + user prompt pair with a JSON response MIME
// type and returns the raw JSON text. Callers decode into their own typed
// struct and validate; a decode or validation failure is treated the same as
// a call failure.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	text, err := c.generate(ctx, systemPrompt, userPrompt, opts, "application/json")
	if err != nil {
		return "", err
	}
	return StripCodeFence(text), nil
}

func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string, opts Options, responseMIME string) (string, error) {
	if userPrompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: userPrompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		temp := opts.Temperature
		config.Temperature = &temp
	}
	if responseMIME != "" {
		config.ResponseMIMEType = responseMIME
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// Embed generates a vector embedding for text, truncating the input to the
// embedding service's character budget first.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding input cannot be empty")
	}
	text = TruncateForEmbedding(text)

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := DefaultEmbeddingDimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, val := range values {
		embedding[i] = float64(val)
	}
	return embedding, nil
}

// TruncateForEmbedding cuts text to the embedding input budget.
func TruncateForEmbedding(text string) string {
	if len(text) > EmbeddingInputLimit {
		return text[:EmbeddingInputLimit]
	}
	return text
}

// StripCodeFence removes a surrounding markdown code fence, which some models
// emit even when asked for bare JSON.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
