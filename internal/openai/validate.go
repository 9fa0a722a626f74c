package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// ValidateCredentials probes GET {api_url}/models.
// It returns false when the API answers with a non-success status.
func ValidateCredentials(ctx context.Context, httpClient *http.Client, apiURL, apiKey string) (bool, error) {
	clientConfig := goopenai.DefaultConfig(apiKey)
	clientConfig.BaseURL = strings.TrimRight(apiURL, "/")
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	client := goopenai.NewClientWithConfig(clientConfig)

	list, err := client.ListModels(ctx)
	if err != nil {
		var apiErr *goopenai.APIError
		var reqErr *goopenai.RequestError
		if errors.As(err, &apiErr) || errors.As(err, &reqErr) {
			slog.Info("OpenAI credentials rejected", "url", clientConfig.BaseURL, "err", err)
			return false, nil
		}
		return false, fmt.Errorf("request failed: %w", err)
	}

	slog.Debug("OpenAI credentials valid", "url", clientConfig.BaseURL, "models", len(list.Models))
	return true, nil
}
