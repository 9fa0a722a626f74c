package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/mediapress/internal/images"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/optimizer"
)

// prepareImage resizes the image with the target site's optimizer settings.
// An unknown site falls through with the global settings; the pipeline rejects it.
func (h *Handler) prepareImage(img *images.Image, opts uploadOptions) (models.PublishRequest, error) {
	cfg, err := h.loadConfig()
	if err != nil {
		return models.PublishRequest{}, err
	}

	site, _ := cfg.FindSite(opts.siteID)
	return optimizer.Prepare(img.Data, img.Filename, opts.siteID, cfg.OptimizerFor(site), opts.optimize)
}

// downloadImage only follows http(s) URLs; local paths are never read on behalf of a client
func (h *Handler) downloadImage(r *http.Request, imageURL string) (*images.Image, error) {
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, fmt.Errorf("image_url must be an http or https URL")
	}
	return h.fetcher.Fetch(r.Context(), imageURL)
}
