// Package optimizer shrinks images before they are sent for analysis and upload.
package optimizer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"log/slog"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/metrics"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
)

const defaultQuality = 85

// Result is the re-encoded image and the numbers reported in ImageMetadata
type Result struct {
	Data          []byte
	MimeType      string
	Width         uint32
	Height        uint32
	OriginalSize  uint64
	ProcessedSize uint64
}

// Metadata describes the result under the caller's original filename
func (r *Result) Metadata(filename string) models.ImageMetadata {
	return models.ImageMetadata{
		Filename:      filename,
		MimeType:      r.MimeType,
		OriginalSize:  r.OriginalSize,
		ProcessedSize: r.ProcessedSize,
		Width:         r.Width,
		Height:        r.Height,
	}
}

// Optimize applies EXIF orientation, downscales to opts.MaxWidth keeping the
// aspect ratio and re-encodes. Images are never upscaled. A MaxWidth of 0
// keeps the original size.
//
// ConvertToWebP selects lossy output. There is no WebP encoder available, so
// lossy output is JPEG at opts.Quality; PNG sources stay PNG otherwise.
func Optimize(data []byte, opts config.ImageOptimizerConfig) (*Result, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image format: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if opts.MaxWidth > 0 && bounds.Dx() > int(opts.MaxWidth) {
		img = imaging.Resize(img, int(opts.MaxWidth), 0, imaging.Lanczos)
		slog.Debug("Resized image", "from_width", bounds.Dx(), "from_height", bounds.Dy(), "to_width", img.Bounds().Dx(), "to_height", img.Bounds().Dy())
	}

	quality := int(opts.Quality)
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	mimeType := "image/jpeg"
	if format == "png" && !opts.ConvertToWebP {
		mimeType = "image/png"
		err = imaging.Encode(&buf, img, imaging.PNG)
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	out := img.Bounds()
	result := &Result{
		Data:          buf.Bytes(),
		MimeType:      mimeType,
		Width:         uint32(out.Dx()),
		Height:        uint32(out.Dy()),
		OriginalSize:  uint64(len(data)),
		ProcessedSize: uint64(buf.Len()),
	}
	metrics.ImageBytes.WithLabelValues("original").Observe(float64(result.OriginalSize))
	metrics.ImageBytes.WithLabelValues("processed").Observe(float64(result.ProcessedSize))

	slog.Info("Image optimized",
		"format", format,
		"mime", result.MimeType,
		"width", result.Width,
		"height", result.Height,
		"original_size", result.OriginalSize,
		"processed_size", result.ProcessedSize,
	)
	return result, nil
}
