package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/taskerr"
)

// Publisher uploads images to the WordPress media library
type Publisher struct {
	HTTPClient *http.Client
	// RollbackOnDescribeFailure deletes the created asset when the metadata
	// update fails instead of leaving an undescribed file on the site.
	RollbackOnDescribeFailure bool
}

// NewPublisher returns a Publisher with a bounded HTTP timeout
func NewPublisher() *Publisher {
	return &Publisher{
		HTTPClient: &http.Client{Timeout: config.HTTPTimeout()},
	}
}

type mediaResponse struct {
	ID        *uint64 `json:"id"`
	SourceURL *string `json:"source_url"`
}

type mediaMetadata struct {
	Title       string `json:"title"`
	AltText     string `json:"alt_text"`
	Caption     string `json:"caption"`
	Description string `json:"description"`
}

// MIMETypeFor derives the upload content type from a filename suffix
func MIMETypeFor(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".webp"):
		return "image/webp"
	case strings.HasSuffix(filename, ".png"):
		return "image/png"
	default:
		return "image/jpeg"
	}
}

// Publish uploads the image under the model generated filename, then sets its
// title, alt text, caption and description. It returns the public source URL.
// originalFilename is only used for logging.
func (p *Publisher) Publish(ctx context.Context, site *config.WordPressSite, imageBase64, originalFilename string, analysis *models.ImageAnalysis) (string, error) {
	imageBytes, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", taskerr.Decode("Failed to decode image", err)
	}

	filename := analysis.Filename
	mimeType := MIMETypeFor(filename)
	slog.Info("Uploading media", "site", site.ID, "original", originalFilename, "filename", filename, "mime", mimeType, "bytes", len(imageBytes))

	media, err := p.createMedia(ctx, site, imageBytes, filename, mimeType)
	if err != nil {
		return "", err
	}

	metadata := mediaMetadata{
		Title:       analysis.Title,
		AltText:     analysis.AltText,
		Caption:     analysis.Description,
		Description: analysis.Description,
	}
	if err := p.describeMedia(ctx, site, *media.ID, metadata); err != nil {
		slog.Error("Metadata update failed", "site", site.ID, "media_id", *media.ID, "err", err)
		if p.RollbackOnDescribeFailure {
			if delErr := p.deleteMedia(ctx, site, *media.ID); delErr != nil {
				slog.Error("Failed to roll back media", "site", site.ID, "media_id", *media.ID, "err", delErr)
			} else {
				slog.Info("Rolled back media", "site", site.ID, "media_id", *media.ID)
			}
		}
		return "", err
	}

	slog.Info("Media published", "site", site.ID, "media_id", *media.ID, "url", *media.SourceURL)
	return *media.SourceURL, nil
}

func (p *Publisher) createMedia(ctx context.Context, site *config.WordPressSite, data []byte, filename, mimeType string) (*mediaResponse, error) {
	body, contentType, err := multipartFile(data, filename, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mediaURL(site.SiteURL), body)
	if err != nil {
		return nil, taskerr.Transport("Upload request failed", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth(site.Username, site.AppPassword)

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, taskerr.Transport("Upload request failed", err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, taskerr.Protocol("WordPress upload failed", resp.StatusCode, string(respBody))
	}

	var media mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return nil, taskerr.Decode("Failed to parse upload response", err)
	}
	if media.ID == nil {
		return nil, taskerr.Decode("Failed to parse upload response", fmt.Errorf("missing field `id`"))
	}
	if media.SourceURL == nil {
		return nil, taskerr.Decode("Failed to parse upload response", fmt.Errorf("missing field `source_url`"))
	}
	return &media, nil
}

func (p *Publisher) describeMedia(ctx context.Context, site *config.WordPressSite, id uint64, metadata mediaMetadata) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mediaItemURL(site.SiteURL, id), bytes.NewReader(payload))
	if err != nil {
		return taskerr.Transport("Metadata update failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(site.Username, site.AppPassword)

	resp, err := p.client().Do(req)
	if err != nil {
		return taskerr.Transport("Metadata update failed", err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		respBody, _ := io.ReadAll(resp.Body)
		return taskerr.Protocol("Metadata update failed", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p *Publisher) deleteMedia(ctx context.Context, site *config.WordPressSite, id uint64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, mediaItemURL(site.SiteURL, id)+"?force=true", nil)
	if err != nil {
		return taskerr.Transport("Delete request failed", err)
	}
	req.SetBasicAuth(site.Username, site.AppPassword)

	resp, err := p.client().Do(req)
	if err != nil {
		return taskerr.Transport("Delete request failed", err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		respBody, _ := io.ReadAll(resp.Body)
		return taskerr.Protocol("WordPress delete failed", resp.StatusCode, string(respBody))
	}
	return nil
}

func (p *Publisher) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartFile(data []byte, filename, mimeType string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func apiBase(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/wp-json/wp/v2"
}

func mediaURL(siteURL string) string {
	return apiBase(siteURL) + "/media"
}

func mediaItemURL(siteURL string, id uint64) string {
	return fmt.Sprintf("%s/media/%d", apiBase(siteURL), id)
}

func success(code int) bool {
	return code >= 200 && code <= 299
}
