package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/providers"
	"github.com/lehigh-university-libraries/mediapress/internal/taskerr"
)

const (
	// DefaultModel is the vision model requested when none is configured
	DefaultModel = "gpt-4o"
	maxTokens    = 500
)

// OpenAI analyzes images through an OpenAI compatible chat completions API
type OpenAI struct {
	HTTPClient *http.Client
}

// New returns a new OpenAI provider
func New() *OpenAI {
	return &OpenAI{
		HTTPClient: &http.Client{Timeout: config.HTTPTimeout()},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze sends the image to {api_url}/chat/completions and parses the metadata.
// The data URL is always labelled image/jpeg; the API treats the payload as opaque.
func (o *OpenAI) Analyze(ctx context.Context, creds providers.Credentials, imageBase64, siteContext string) (*models.ImageAnalysis, error) {
	model := creds.Model
	if model == "" {
		model = DefaultModel
	}

	requestBody, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: []contentPart{{Type: "text", Text: providers.SystemPrompt(siteContext)}},
			},
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: providers.UserPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + imageBase64}},
				},
			},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := strings.TrimRight(creds.APIURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, taskerr.Transport("OpenAI request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)

	resp, err := o.client().Do(req)
	if err != nil {
		return nil, taskerr.Transport("OpenAI request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, taskerr.Protocol("OpenAI API error", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, taskerr.Decode("Failed to parse OpenAI response", err)
	}
	if len(response.Choices) == 0 {
		return nil, taskerr.Decode("No response from OpenAI", nil)
	}

	content := response.Choices[0].Message.Content
	slog.Debug("Received analysis", "provider", "openai", "model", model, "length", len(content))

	return providers.ParseAnalysis(content)
}

func (o *OpenAI) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}
