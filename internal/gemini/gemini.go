package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/providers"
	"github.com/lehigh-university-libraries/mediapress/internal/taskerr"
)

// DefaultModel is used when the config names no model
const DefaultModel = "gemini-1.5-flash"

// Gemini is a provider for Google Gemini
type Gemini struct {
	// ClientOptions are appended to the API key option, e.g. a custom endpoint in tests
	ClientOptions []option.ClientOption
	// Timeout bounds client setup and generation together
	Timeout time.Duration
}

// New returns a new Gemini provider
func New() *Gemini {
	return &Gemini{Timeout: config.HTTPTimeout()}
}

// Analyze generates image metadata with Gemini
func (g *Gemini) Analyze(ctx context.Context, creds providers.Credentials, imageBase64, siteContext string) (*models.ImageAnalysis, error) {
	if creds.APIKey == "" {
		return nil, taskerr.Configf("Gemini API key not set")
	}

	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, taskerr.Decode("Failed to decode image", err)
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = config.HTTPTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []option.ClientOption{option.WithAPIKey(creds.APIKey)}
	if creds.APIURL != "" {
		opts = append(opts, option.WithEndpoint(creds.APIURL))
	}
	opts = append(opts, g.ClientOptions...)

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, taskerr.Transport("failed to create new gemini client", err)
	}
	defer client.Close()

	modelName := creds.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	model.SetMaxOutputTokens(500)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(providers.SystemPrompt(siteContext))},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(providers.UserPrompt), genai.ImageData("jpeg", imageData))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			body := apiErr.Body
			if body == "" {
				body = apiErr.Message
			}
			return nil, taskerr.Protocol("Gemini API error", apiErr.Code, body)
		}
		return nil, taskerr.Transport("Gemini request failed", err)
	}

	text, err := firstText(resp)
	if err != nil {
		return nil, err
	}
	slog.Debug("Received analysis", "provider", "gemini", "model", modelName, "length", len(text))

	return providers.ParseAnalysis(text)
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", taskerr.Decode("No candidates returned from Gemini", nil)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", taskerr.Decode("Empty content returned from Gemini", nil)
	}

	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}

	return "", taskerr.Decode("Unexpected response format from Gemini", nil)
}
