package handlers

import (
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/mediapress/internal/models"
)

func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.PublishRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.ImageData == "" {
		h.writeError(w, "image_data is required", http.StatusBadRequest)
		return
	}

	task, code := h.run(r.Context(), req)
	h.writeJSONStatus(w, code, task)
}

func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, h.tasks.List())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleTaskDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	task, ok := h.tasks.Get(taskID)
	if !ok {
		h.writeError(w, "Task not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, task)
}
