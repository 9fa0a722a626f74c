package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/events"
	"github.com/lehigh-university-libraries/mediapress/internal/handlers"
	"github.com/lehigh-university-libraries/mediapress/internal/metrics"
	"github.com/lehigh-university-libraries/mediapress/internal/pipeline"
)

// runHTTPCalls is the most outbound calls one run makes: image fetch,
// analysis, media upload, metadata update and rollback delete.
const runHTTPCalls = 5

// shutdownGrace lets an in-flight run finish even when every call hits the timeout
func shutdownGrace() time.Duration {
	return config.HTTPTimeout()*runHTTPCalls + 10*time.Second
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string
	var rollback bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP API",
		Long: `Starts the mediapress HTTP API on the specified port.

A front end can publish images, follow task status, edit the config and
validate credentials. Task state is kept in memory only.`,
		Example: `  # Start server on default port 8888
  mediapress serve

  # Start server on custom port
  mediapress serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := root.resolveConfigPath()
			if err != nil {
				return err
			}

			metrics.Register()

			bus := events.New(events.DefaultBuffer)
			defer bus.Close()
			if err := bus.Subscribe(logUpdate); err != nil {
				return err
			}

			handler := handlers.New(configPath, bus, pipeline.New(nil, rollback))

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/publish", handler.HandlePublish)
			mux.HandleFunc("/api/upload", handler.HandleUpload)
			mux.HandleFunc("/api/tasks", handler.HandleTasks)
			mux.HandleFunc("/api/tasks/", handler.HandleTaskDetail)
			mux.HandleFunc("/api/config", handler.HandleConfig)
			mux.HandleFunc("/api/validate/openai", handler.HandleValidateOpenAI)
			mux.HandleFunc("/api/validate/wordpress", handler.HandleValidateWordPress)
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("mediapress API available", "addr", addr, "url", "http://localhost"+addr, "config", configPath)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Runs in flight keep going; give them time to reach a terminal state
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace())
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Delete uploaded media when the metadata update fails")

	return cmd
}
