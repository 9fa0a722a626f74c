package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/openai"
)

type validationResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// HandleValidateOpenAI probes {api_url}/models. Empty or masked fields fall back to the stored config.
func (h *Handler) HandleValidateOpenAI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		APIURL string `json:"api_url"`
		APIKey string `json:"api_key"`
	}
	if err := decodeOptional(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if config.IsMasked(request.APIKey) {
		request.APIKey = ""
	}
	if request.APIURL == "" || request.APIKey == "" {
		cfg, err := h.loadConfig()
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if cfg.OpenAI == nil {
			h.writeError(w, "OpenAI configuration not found", http.StatusBadRequest)
			return
		}
		if request.APIURL == "" {
			request.APIURL = cfg.OpenAI.APIURL
		}
		if request.APIKey == "" {
			request.APIKey = cfg.OpenAI.APIKey
		}
	}

	valid, err := openai.ValidateCredentials(r.Context(), h.httpClient, request.APIURL, request.APIKey)
	if err != nil {
		h.writeJSONStatus(w, http.StatusBadGateway, validationResponse{Error: err.Error()})
		return
	}
	h.writeJSON(w, validationResponse{Valid: valid})
}

// HandleValidateWordPress checks read access and upload permission for a site,
// given either a configured site_id or explicit credentials. A masked
// app_password resolves from the stored site with the same site_url.
func (h *Handler) HandleValidateWordPress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		SiteID      string `json:"site_id"`
		SiteURL     string `json:"site_url"`
		Username    string `json:"username"`
		AppPassword string `json:"app_password"`
	}
	if err := decodeOptional(r, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if request.SiteID != "" {
		cfg, err := h.loadConfig()
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		site, ok := cfg.FindSite(request.SiteID)
		if !ok {
			h.writeError(w, "WordPress site not found", http.StatusNotFound)
			return
		}
		request.SiteURL, request.Username, request.AppPassword = site.SiteURL, site.Username, site.AppPassword
	} else if config.IsMasked(request.AppPassword) {
		// the front end echoes the redacted password of a stored site
		request.AppPassword = ""
		cfg, err := h.loadConfig()
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if site, ok := cfg.FindSiteByURL(request.SiteURL); ok {
			request.AppPassword = site.AppPassword
		}
	}
	if request.SiteURL == "" {
		h.writeError(w, "site_url or site_id is required", http.StatusBadRequest)
		return
	}

	valid, err := h.publisher.ValidateCredentials(r.Context(), request.SiteURL, request.Username, request.AppPassword)
	if err != nil {
		h.writeJSONStatus(w, http.StatusBadGateway, validationResponse{Error: err.Error()})
		return
	}
	h.writeJSON(w, validationResponse{Valid: valid})
}

func decodeOptional(r *http.Request, v interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}
