package ollama

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
	// DefaultURL is the local Ollama server address
	DefaultURL = "http://localhost:11434"
	// DefaultModel is a vision capable model commonly pulled for Ollama
	DefaultModel = "llava"
)

// Ollama is a provider for Ollama
type Ollama struct {
	HTTPClient *http.Client
}

// New returns a new Ollama provider
func New() *Ollama {
	return &Ollama{
		HTTPClient: &http.Client{Timeout: config.HTTPTimeout()},
	}
}

// Analyze generates image metadata with a local model via /api/generate
func (o *Ollama) Analyze(ctx context.Context, creds providers.Credentials, imageBase64, siteContext string) (*models.ImageAnalysis, error) {
	ollamaURL := creds.APIURL
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	model := creds.Model
	if model == "" {
		model = DefaultModel
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  model,
		"system": providers.SystemPrompt(siteContext),
		"prompt": providers.UserPrompt,
		"images": []string{imageBase64},
		"stream": false,
		"format": "json",
		"options": map[string]interface{}{
			"num_predict": 500,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := strings.TrimRight(ollamaURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, taskerr.Transport("Ollama request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, taskerr.Transport("Ollama request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, taskerr.Protocol("Ollama API error", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, taskerr.Decode("Failed to parse Ollama response", err)
	}

	slog.Debug("Received analysis", "provider", "ollama", "model", model, "length", len(response.Response))
	return providers.ParseAnalysis(response.Response)
}
