package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/gemini"
	"github.com/lehigh-university-libraries/mediapress/internal/metrics"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/ollama"
	"github.com/lehigh-university-libraries/mediapress/internal/openai"
	"github.com/lehigh-university-libraries/mediapress/internal/providers"
	"github.com/lehigh-university-libraries/mediapress/internal/taskerr"
	"github.com/lehigh-university-libraries/mediapress/internal/wordpress"
)

// Publisher stores an analyzed image on a WordPress site
type Publisher interface {
	Publish(ctx context.Context, site *config.WordPressSite, imageBase64, originalFilename string, analysis *models.ImageAnalysis) (string, error)
}

// Notifier receives status events. Notify must not block.
type Notifier interface {
	Notify(update models.TaskUpdate)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(models.TaskUpdate)

func (f NotifierFunc) Notify(update models.TaskUpdate) { f(update) }

// Pipeline runs analyze then publish for one image at a time
type Pipeline struct {
	Analyzers map[string]providers.Analyzer
	Publisher Publisher
	Notifier  Notifier
}

// New wires the built in providers and the WordPress publisher
func New(notifier Notifier, rollbackOnDescribeFailure bool) *Pipeline {
	publisher := wordpress.NewPublisher()
	publisher.RollbackOnDescribeFailure = rollbackOnDescribeFailure

	return &Pipeline{
		Analyzers: map[string]providers.Analyzer{
			"openai": openai.New(),
			"gemini": gemini.New(),
			"ollama": ollama.New(),
		},
		Publisher: publisher,
		Notifier:  notifier,
	}
}

// ResolveCredentials returns the selected provider name and its credentials.
// Ollama needs no credentials and falls back to its local defaults.
func ResolveCredentials(cfg *config.AppConfig) (string, providers.Credentials, error) {
	provider := cfg.Provider()
	switch provider {
	case "openai":
		if cfg.OpenAI == nil {
			return provider, providers.Credentials{}, taskerr.Configf("OpenAI configuration not found")
		}
		return provider, providers.Credentials{APIURL: cfg.OpenAI.APIURL, APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model}, nil
	case "gemini":
		if cfg.Gemini == nil {
			return provider, providers.Credentials{}, taskerr.Configf("Gemini configuration not found")
		}
		if cfg.Gemini.APIKey == "" {
			return provider, providers.Credentials{}, taskerr.Configf("Gemini API key not set")
		}
		return provider, providers.Credentials{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model}, nil
	case "ollama":
		if cfg.Ollama == nil {
			return provider, providers.Credentials{}, nil
		}
		return provider, providers.Credentials{APIURL: cfg.Ollama.APIURL, Model: cfg.Ollama.Model}, nil
	default:
		return provider, providers.Credentials{}, taskerr.Configf("unsupported vision provider: %s", provider)
	}
}

// Run analyzes the image and publishes it to the requested site, returning
// the public URL. Configuration problems are reported before any status event.
// Every event carries the caller supplied filename.
func (p *Pipeline) Run(ctx context.Context, cfg *config.AppConfig, req models.PublishRequest) (string, error) {
	filename := req.Metadata.Filename

	provider, creds, err := ResolveCredentials(cfg)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("config_error").Inc()
		return "", err
	}
	analyzer, ok := p.Analyzers[provider]
	if !ok {
		metrics.RunsTotal.WithLabelValues("config_error").Inc()
		return "", taskerr.Configf("unsupported vision provider: %s", provider)
	}

	site, ok := cfg.FindSite(req.TargetSiteID)
	if !ok {
		metrics.RunsTotal.WithLabelValues("config_error").Inc()
		return "", taskerr.Configf("WordPress site not found")
	}

	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	slog.Info("Starting publish", "filename", filename, "site", site.ID, "provider", provider)

	p.notify(models.TaskUpdate{Filename: filename, Status: models.StatusAnalyzing})
	start := time.Now()
	analysis, err := analyzer.Analyze(ctx, creds, req.ImageData, site.SiteContext())
	metrics.StageDurationSeconds.WithLabelValues("analyze", provider).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("Analysis failed", "filename", filename, "provider", provider, "kind", taskerr.KindOf(err).String(), "err", err)
		metrics.RunsTotal.WithLabelValues("analysis_error").Inc()
		p.notify(models.TaskUpdate{Filename: filename, Status: models.StatusError, Error: err.Error()})
		return "", err
	}
	slog.Info("Analysis complete", "filename", filename, "generated_filename", analysis.Filename, "title", analysis.Title)

	p.notify(models.TaskUpdate{Filename: filename, Status: models.StatusUploading})
	start = time.Now()
	url, err := p.Publisher.Publish(ctx, site, req.ImageData, filename, analysis)
	metrics.StageDurationSeconds.WithLabelValues("publish", provider).Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("Publish failed", "filename", filename, "site", site.ID, "kind", taskerr.KindOf(err).String(), "err", err)
		metrics.RunsTotal.WithLabelValues("publish_error").Inc()
		p.notify(models.TaskUpdate{Filename: filename, Status: models.StatusError, Error: err.Error()})
		return "", err
	}

	metrics.RunsTotal.WithLabelValues("completed").Inc()
	p.notify(models.TaskUpdate{Filename: filename, Status: models.StatusCompleted})
	slog.Info("Publish complete", "filename", filename, "site", site.ID, "url", url)
	return url, nil
}

// notify never lets an observer failure reach the run
func (p *Pipeline) notify(update models.TaskUpdate) {
	if p.Notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Status notifier panicked", "filename", update.Filename, "status", update.Status, "panic", r)
		}
	}()
	p.Notifier.Notify(update)
}
