package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/mediapress/internal/providers"
	"github.com/lehigh-university-libraries/mediapress/internal/taskerr"
)

const analysisJSON = `{"filename":"sunset-beach-waves.webp","title":"Sunset Over Beach Waves","description":"Golden sunset light over rolling waves on a quiet beach.","alt_text":"Orange sun setting over ocean waves","tags":["sunset","beach","waves","ocean","golden hour"]}`

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func TestAnalyzeRequestShape(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, completion(analysisJSON))
	}))
	defer server.Close()

	o := &OpenAI{HTTPClient: server.Client()}
	creds := providers.Credentials{APIURL: server.URL + "/v1/", APIKey: "sk-test"}

	analysis, err := o.Analyze(context.Background(), creds, "QUJD", "Surf school in Ericeira")
	require.NoError(t, err)
	assert.Equal(t, "sunset-beach-waves.webp", analysis.Filename)
	assert.Len(t, analysis.Tags, 5)

	assert.Equal(t, "gpt-4o", captured["model"])
	assert.EqualValues(t, 500, captured["max_tokens"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)

	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	systemText := system["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, systemText, "Website context: Surf school in Ericeira. ")

	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, providers.UserPrompt, parts[0].(map[string]any)["text"])
	image := parts[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, "data:image/jpeg;base64,QUJD", image["image_url"].(map[string]any)["url"])
}

func TestAnalyzeFencedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completion("```json\n"+analysisJSON+"\n```"))
	}))
	defer server.Close()

	o := &OpenAI{HTTPClient: server.Client()}
	analysis, err := o.Analyze(context.Background(), providers.Credentials{APIURL: server.URL}, "QUJD", "")
	require.NoError(t, err)
	assert.Equal(t, "Sunset Over Beach Waves", analysis.Title)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		kind       taskerr.Kind
		wantInText string
	}{
		{
			name:       "unauthorized carries body",
			status:     http.StatusUnauthorized,
			body:       `{"error":{"message":"Incorrect API key provided"}}`,
			kind:       taskerr.KindProtocol,
			wantInText: "Incorrect API key provided",
		},
		{
			name:       "envelope not json",
			status:     http.StatusOK,
			body:       "<html>",
			kind:       taskerr.KindDecode,
			wantInText: "Failed to parse OpenAI response",
		},
		{
			name:       "no choices",
			status:     http.StatusOK,
			body:       `{"choices":[]}`,
			kind:       taskerr.KindDecode,
			wantInText: "No response from OpenAI",
		},
		{
			name:       "model refuses",
			status:     http.StatusOK,
			body:       completion("Sorry, I can't describe this image."),
			kind:       taskerr.KindDecode,
			wantInText: "Failed to parse analysis result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			o := &OpenAI{HTTPClient: server.Client()}
			_, err := o.Analyze(context.Background(), providers.Credentials{APIURL: server.URL}, "QUJD", "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, taskerr.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantInText)
			assert.Equal(t, 1, calls, "no retries expected")
		})
	}
}

func TestAnalyzeTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	o := &OpenAI{HTTPClient: &http.Client{}}
	_, err := o.Analyze(context.Background(), providers.Credentials{APIURL: url}, "QUJD", "")
	require.Error(t, err)
	assert.Equal(t, taskerr.KindTransport, taskerr.KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "OpenAI request failed: "))
}

func TestValidateCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
			return
		}
		fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt-4o","object":"model","owned_by":"openai"}]}`)
	}))
	defer server.Close()

	ok, err := ValidateCredentials(context.Background(), server.Client(), server.URL+"/v1/", "good")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ValidateCredentials(context.Background(), server.Client(), server.URL+"/v1", "bad")
	require.NoError(t, err)
	assert.False(t, ok)
}
