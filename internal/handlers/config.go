package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
)

// HandleConfig returns the redacted configuration on GET and replaces it on PUT.
// Masked secrets in a PUT body keep their stored values.
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := h.loadConfig()
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, cfg.Redacted())
	case http.MethodPut:
		updated := config.Default()
		if err := json.NewDecoder(r.Body).Decode(updated); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if updated.WordPressSites == nil {
			updated.WordPressSites = []config.WordPressSite{}
		}

		h.configMu.Lock()
		defer h.configMu.Unlock()

		prev, err := config.Load(h.configPath)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		updated.RestoreSecrets(prev)

		if err := updated.Validate(); err != nil {
			h.writeError(w, "Invalid config: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := config.Save(h.configPath, updated); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		slog.Info("Config saved", "path", h.configPath, "sites", len(updated.WordPressSites))
		h.writeJSON(w, updated.Redacted())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
