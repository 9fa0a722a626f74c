package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/events"
	"github.com/lehigh-university-libraries/mediapress/internal/images"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/pipeline"
	"github.com/lehigh-university-libraries/mediapress/internal/storage"
	"github.com/lehigh-university-libraries/mediapress/internal/taskerr"
	"github.com/lehigh-university-libraries/mediapress/internal/wordpress"
)

// defaultMaxBodyBytes fits a base64 encoded image of images.MaxImageBytes plus its metadata
const defaultMaxBodyBytes = images.MaxImageBytes/3*4 + 1<<20

type Handler struct {
	configPath string
	configMu   sync.Mutex

	tasks     *storage.TaskStore
	bus       *events.Bus
	pipeline  *pipeline.Pipeline
	publisher *wordpress.Publisher
	fetcher   *images.Fetcher

	// maxBodyBytes caps JSON request bodies
	maxBodyBytes int64

	// httpClient is used by the OpenAI credential probe
	httpClient *http.Client
}

func New(configPath string, bus *events.Bus, p *pipeline.Pipeline) *Handler {
	return &Handler{
		configPath:   configPath,
		tasks:        storage.New(),
		bus:          bus,
		pipeline:     p,
		publisher:    wordpress.NewPublisher(),
		fetcher:      images.NewFetcher(),
		maxBodyBytes: defaultMaxBodyBytes,
		httpClient:   &http.Client{Timeout: config.HTTPTimeout()},
	}
}

// decodeJSON reads a size-limited JSON body into v and writes the error
// response itself when it cannot.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Config helpers
func (h *Handler) loadConfig() (*config.AppConfig, error) {
	h.configMu.Lock()
	defer h.configMu.Unlock()
	return config.Load(h.configPath)
}

// run executes one publish and mirrors its status events into the task store.
// The run is detached from ctx cancellation so a dropped client never aborts it.
func (h *Handler) run(ctx context.Context, req models.PublishRequest) (models.ImageTask, int) {
	id := h.tasks.Track(req.Metadata.Filename, req.TargetSiteID)

	cfg, err := h.loadConfig()
	if err != nil {
		h.tasks.Fail(id, err.Error())
		task, _ := h.tasks.Get(id)
		return task, http.StatusInternalServerError
	}

	run := *h.pipeline
	run.Notifier = pipeline.NotifierFunc(func(update models.TaskUpdate) {
		h.tasks.Update(id, update)
		if h.bus != nil {
			h.bus.Notify(update)
		}
	})

	url, err := run.Run(context.WithoutCancel(ctx), cfg, req)
	if err != nil {
		h.tasks.Fail(id, err.Error())
		task, _ := h.tasks.Get(id)
		return task, statusFor(err)
	}

	h.tasks.Complete(id, url)
	task, _ := h.tasks.Get(id)
	return task, http.StatusOK
}

func statusFor(err error) int {
	switch taskerr.KindOf(err) {
	case taskerr.KindConfig:
		return http.StatusBadRequest
	case taskerr.KindTransport, taskerr.KindProtocol, taskerr.KindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
