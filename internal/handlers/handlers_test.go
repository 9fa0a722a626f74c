package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/images"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/openai"
	"github.com/lehigh-university-libraries/mediapress/internal/pipeline"
	"github.com/lehigh-university-libraries/mediapress/internal/providers"
	"github.com/lehigh-university-libraries/mediapress/internal/wordpress"
)

const analysisJSON = `{"filename":"sunset-beach-waves.webp","title":"Sunset Over Beach Waves","description":"Golden sunset light over rolling waves.","alt_text":"Orange sun setting over ocean waves","tags":["sunset","beach"]}`

const publishedURL = "https://site/wp-content/uploads/2025/01/sunset-beach-waves.webp"

func fakeRemote(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/chat/completions":
			out, _ := json.Marshal(map[string]any{
				"choices": []any{map[string]any{"message": map[string]any{"content": analysisJSON}}},
			})
			w.Write(out)
		case r.URL.Path == "/v1/models":
			if r.Header.Get("Authorization") != "Bearer sk-test" {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
				return
			}
			fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt-4o","object":"model"}]}`)
		case r.URL.Path == "/wp-json/wp/v2/users/me":
			if user, pass, _ := r.BasicAuth(); user != "editor" || pass != "pw-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"code":"rest_not_logged_in"}`)
				return
			}
			fmt.Fprint(w, `{"id":1}`)
		case r.URL.Path == "/wp-json/wp/v2/media":
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":42,"source_url":%q}`, publishedURL)
		case strings.HasPrefix(r.URL.Path, "/wp-json/wp/v2/media/"):
			fmt.Fprint(w, `{"id":42}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestHandler(t *testing.T, server *httptest.Server) *Handler {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.json")
	cfg := config.Default()
	cfg.OpenAI = &config.OpenAIConfig{APIURL: server.URL + "/v1", APIKey: "sk-test"}
	cfg.WordPressSites = []config.WordPressSite{
		{ID: "blog", SiteURL: server.URL, Username: "editor", AppPassword: "pw-secret"},
	}
	require.NoError(t, config.Save(configPath, cfg))

	p := &pipeline.Pipeline{
		Analyzers: map[string]providers.Analyzer{"openai": &openai.OpenAI{HTTPClient: server.Client()}},
		Publisher: &wordpress.Publisher{HTTPClient: server.Client()},
	}
	h := New(configPath, nil, p)
	h.publisher = &wordpress.Publisher{HTTPClient: server.Client()}
	h.fetcher = &images.Fetcher{HTTPClient: server.Client()}
	h.httpClient = server.Client()
	return h
}

func publishBody(siteID string) *bytes.Reader {
	body, _ := json.Marshal(models.PublishRequest{
		ImageData:    "QUJD",
		Metadata:     models.ImageMetadata{Filename: "IMG_0001.JPG"},
		TargetSiteID: siteID,
	})
	return bytes.NewReader(body)
}

func TestHandlePublish(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))

	rec := httptest.NewRecorder()
	h.HandlePublish(rec, httptest.NewRequest(http.MethodPost, "/api/publish", publishBody("blog")))
	require.Equal(t, http.StatusOK, rec.Code)

	var task models.ImageTask
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, publishedURL, task.URL)
	assert.Equal(t, "IMG_0001.JPG", task.Filename)

	rec = httptest.NewRecorder()
	h.HandleTaskDetail(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/"+task.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleTasks(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	var tasks []models.ImageTask
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tasks))
	assert.Len(t, tasks, 1)
}

func TestHandlePublishUnknownSite(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))

	rec := httptest.NewRecorder()
	h.HandlePublish(rec, httptest.NewRequest(http.MethodPost, "/api/publish", publishBody("nonexistent")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var task models.ImageTask
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
	assert.Equal(t, models.StatusError, task.Status)
	assert.Equal(t, "WordPress site not found", task.Error)
}

func TestHandlePublishBadRequests(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{", http.StatusBadRequest},
		{"missing image", http.MethodPost, `{"target_site_id":"blog"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandlePublish(rec, httptest.NewRequest(tt.method, "/api/publish", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHandlePublishRejectsOversizedBody(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))
	assert.EqualValues(t, defaultMaxBodyBytes, h.maxBodyBytes)
	h.maxBodyBytes = 64

	body := fmt.Sprintf(`{"image_data":%q,"target_site_id":"blog"}`, strings.Repeat("QUJD", 64))
	rec := httptest.NewRecorder()
	h.HandlePublish(rec, httptest.NewRequest(http.MethodPost, "/api/publish", strings.NewReader(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, h.tasks.List())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(fmt.Sprintf(`{"image_url":%q}`, "https://example.com/"+strings.Repeat("a", 128)+".jpg")))
	req.Header.Set("Content-Type", "application/json")
	h.HandleUpload(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleTaskDetailNotFound(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))

	rec := httptest.NewRecorder()
	h.HandleTaskDetail(rec, httptest.NewRequest(http.MethodGet, "/api/tasks/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUploadMultipart(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 20))))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "banner.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("target_site_id", "blog"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.HandleUpload(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var task models.ImageTask
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
	assert.Equal(t, "banner.png", task.Filename)
	assert.Equal(t, models.StatusCompleted, task.Status)
}

func TestHandleUploadRejectsLocalPath(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"image_url":"/etc/passwd","target_site_id":"blog"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleUpload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.tasks.List())
}

func TestHandleConfig(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))

	rec := httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pw-secret")
	assert.NotContains(t, rec.Body.String(), "sk-test")

	var shown config.AppConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shown))
	shown.WordPressSites[0].Username = "admin"
	edited, _ := json.Marshal(shown)

	rec = httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodPut, "/api/config", bytes.NewReader(edited)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := config.Load(h.configPath)
	require.NoError(t, err)
	assert.Equal(t, "admin", saved.WordPressSites[0].Username)
	assert.Equal(t, "pw-secret", saved.WordPressSites[0].AppPassword)
	assert.Equal(t, "sk-test", saved.OpenAI.APIKey)
}

func TestHandleConfigRejectsDuplicateSites(t *testing.T) {
	h := newTestHandler(t, fakeRemote(t))

	body := `{"wordpress_sites":[{"id":"a","site_url":"https://a"},{"id":"a","site_url":"https://b"}]}`
	rec := httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodPut, "/api/config", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	saved, err := config.Load(h.configPath)
	require.NoError(t, err)
	assert.Len(t, saved.WordPressSites, 1)
}

func TestHandleValidate(t *testing.T) {
	server := fakeRemote(t)
	h := newTestHandler(t, server)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		code    int
		valid   bool
	}{
		{"openai from config", h.HandleValidateOpenAI, "", http.StatusOK, true},
		{"openai bad key", h.HandleValidateOpenAI, `{"api_key":"sk-wrong"}`, http.StatusOK, false},
		{"wordpress by site id", h.HandleValidateWordPress, `{"site_id":"blog"}`, http.StatusOK, true},
		{"wordpress unknown site", h.HandleValidateWordPress, `{"site_id":"nope"}`, http.StatusNotFound, false},
		{"wordpress masked password for unknown url", h.HandleValidateWordPress, fmt.Sprintf(`{"site_url":%q,"username":"editor","app_password":"********"}`, server.URL+"/other"), http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader(tt.body)))
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			var resp validationResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.valid, resp.Valid)
		})
	}
}

func TestHandleValidateWithRedactedConfig(t *testing.T) {
	server := fakeRemote(t)
	h := newTestHandler(t, server)

	rec := httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg config.AppConfig
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	require.True(t, config.IsMasked(cfg.OpenAI.APIKey))
	require.Len(t, cfg.WordPressSites, 1)
	site := cfg.WordPressSites[0]
	require.True(t, config.IsMasked(site.AppPassword))

	validate := func(handler http.HandlerFunc, body any) validationResponse {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewReader(raw)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp validationResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	resp := validate(h.HandleValidateOpenAI, map[string]string{
		"api_url": cfg.OpenAI.APIURL,
		"api_key": cfg.OpenAI.APIKey,
	})
	assert.True(t, resp.Valid, resp.Error)

	resp = validate(h.HandleValidateWordPress, map[string]string{
		"site_url":     site.SiteURL + "/",
		"username":     site.Username,
		"app_password": site.AppPassword,
	})
	assert.True(t, resp.Valid, resp.Error)
}
