package optimizer

import (
	"bytes"
	"encoding/base64"
	"image"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
)

// Prepare turns raw image bytes into a PublishRequest. With optimize false the
// bytes are sent as they are and only their dimensions are read.
func Prepare(data []byte, filename, siteID string, opts config.ImageOptimizerConfig, optimize bool) (models.PublishRequest, error) {
	if !optimize {
		meta := models.ImageMetadata{
			Filename:      filename,
			MimeType:      http.DetectContentType(data),
			OriginalSize:  uint64(len(data)),
			ProcessedSize: uint64(len(data)),
		}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			meta.Width = uint32(cfg.Width)
			meta.Height = uint32(cfg.Height)
		} else {
			slog.Warn("Failed to read image dimensions", "filename", filename, "err", err)
		}
		return models.PublishRequest{
			ImageData:    base64.StdEncoding.EncodeToString(data),
			Metadata:     meta,
			TargetSiteID: siteID,
		}, nil
	}

	result, err := Optimize(data, opts)
	if err != nil {
		return models.PublishRequest{}, err
	}
	return models.PublishRequest{
		ImageData:    base64.StdEncoding.EncodeToString(result.Data),
		Metadata:     result.Metadata(filename),
		TargetSiteID: siteID,
	}, nil
}
