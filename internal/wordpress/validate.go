package wordpress

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/taskerr"
)

// 1x1 transparent PNG
const testImageBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

const testImageName = "test-validation.png"

// ValidateCredentials confirms the application password can read the current
// user and write to the media library. It uploads a 1x1 PNG and deletes it again.
// A rejected users/me call returns false; a rejected upload returns an error.
func (p *Publisher) ValidateCredentials(ctx context.Context, siteURL, username, appPassword string) (bool, error) {
	site := &config.WordPressSite{SiteURL: siteURL, Username: username, AppPassword: appPassword}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase(siteURL)+"/users/me", nil)
	if err != nil {
		return false, fmt.Errorf("authentication failed: %w", err)
	}
	req.SetBasicAuth(username, appPassword)

	resp, err := p.client().Do(req)
	if err != nil {
		return false, fmt.Errorf("authentication failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if !success(resp.StatusCode) {
		slog.Info("WordPress credentials rejected", "site_url", siteURL, "status", resp.StatusCode)
		return false, nil
	}

	imageBytes, err := base64.StdEncoding.DecodeString(testImageBase64)
	if err != nil {
		return false, fmt.Errorf("failed to decode test image: %w", err)
	}

	media, err := p.createMedia(ctx, site, imageBytes, testImageName, "image/png")
	if err != nil {
		var te *taskerr.Error
		if errors.As(err, &te) && te.Kind == taskerr.KindProtocol {
			return false, fmt.Errorf("upload permission denied: %s", te.Body)
		}
		return false, fmt.Errorf("upload test failed: %w", err)
	}

	if err := p.deleteMedia(ctx, site, *media.ID); err != nil {
		if taskerr.Is(err, taskerr.KindTransport) {
			return false, fmt.Errorf("failed to delete test image: %w", err)
		}
		slog.Warn("Test image could not be deleted", "site_url", siteURL, "media_id", *media.ID, "err", err)
	}

	return true, nil
}
