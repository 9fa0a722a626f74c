package providers

import (
	"context"

	"github.com/lehigh-university-libraries/mediapress/internal/models"
)

// Credentials identifies the vision API to call
type Credentials struct {
	APIURL string
	APIKey string
	Model  string
}

// Analyzer generates SEO metadata for an image
type Analyzer interface {
	// Analyze sends the base64 encoded image to the model. siteContext is
	// interpolated into the system prompt when non-empty.
	Analyze(ctx context.Context, creds Credentials, imageBase64, siteContext string) (*models.ImageAnalysis, error)
}
