package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitShowPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	out, err := execute(t, "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))

	_, err = execute(t, "config", "init", "--config", path)
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.APIURL)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "max_width: 1920")
}

func TestValidateWordPressUnknownSite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	_, err := execute(t, "validate", "wordpress", "--site", "missing", "--config", path)
	assert.ErrorContains(t, err, "WordPress site not found")
}

func TestPublishRequiresSite(t *testing.T) {
	_, err := execute(t, "publish", "photo.jpg")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "INFO"} {
		assert.NoError(t, setupLogging(level), level)
	}
	assert.Error(t, setupLogging("loud"))
}

func TestShutdownGraceCoversSlowestRun(t *testing.T) {
	t.Setenv("MEDIAPRESS_HTTP_TIMEOUT", "")
	assert.Greater(t, shutdownGrace(), config.DefaultHTTPTimeout*runHTTPCalls)

	t.Setenv("MEDIAPRESS_HTTP_TIMEOUT", "2m")
	assert.GreaterOrEqual(t, shutdownGrace(), 10*time.Minute)
}
