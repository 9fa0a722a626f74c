package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/mediapress/internal/images"
)

type uploadOptions struct {
	siteID   string
	optimize bool
}

// HandleUpload accepts a raw image, either as a multipart "file" field or as
// JSON {"image_url": ...}, optimizes it with the site's settings and publishes it.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		img  *images.Image
		opts uploadOptions
		ok   bool
	)
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		img, opts, ok = h.readURLUpload(w, r)
	} else {
		img, opts, ok = h.readFileUpload(w, r)
	}
	if !ok {
		return
	}
	if opts.siteID == "" {
		h.writeError(w, "target_site_id is required", http.StatusBadRequest)
		return
	}

	req, err := h.prepareImage(img, opts)
	if err != nil {
		h.writeError(w, "Failed to process image: "+err.Error(), http.StatusBadRequest)
		return
	}

	task, code := h.run(r.Context(), req)
	h.writeJSONStatus(w, code, task)
}

func (h *Handler) readURLUpload(w http.ResponseWriter, r *http.Request) (*images.Image, uploadOptions, bool) {
	var request struct {
		ImageURL     string `json:"image_url"`
		TargetSiteID string `json:"target_site_id"`
		Optimize     *bool  `json:"optimize"`
	}
	if !h.decodeJSON(w, r, &request) {
		return nil, uploadOptions{}, false
	}
	if request.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return nil, uploadOptions{}, false
	}

	img, err := h.downloadImage(r, request.ImageURL)
	if err != nil {
		h.writeError(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
		return nil, uploadOptions{}, false
	}

	opts := uploadOptions{siteID: request.TargetSiteID, optimize: true}
	if request.Optimize != nil {
		opts.optimize = *request.Optimize
	}
	return img, opts, true
}

func (h *Handler) readFileUpload(w http.ResponseWriter, r *http.Request) (*images.Image, uploadOptions, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return nil, uploadOptions{}, false
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, images.MaxImageBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return nil, uploadOptions{}, false
	}
	if len(fileData) > images.MaxImageBytes {
		h.writeError(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, uploadOptions{}, false
	}

	opts := uploadOptions{
		siteID:   r.FormValue("target_site_id"),
		optimize: r.FormValue("optimize") != "false",
	}
	return &images.Image{Data: fileData, Filename: header.Filename}, opts, true
}
