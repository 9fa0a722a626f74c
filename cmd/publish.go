package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/mediapress/internal/events"
	"github.com/lehigh-university-libraries/mediapress/internal/images"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/optimizer"
	"github.com/lehigh-university-libraries/mediapress/internal/pipeline"
)

func newPublishCmd(root *rootOptions) *cobra.Command {
	var siteID string
	var noOptimize bool
	var rollback bool

	cmd := &cobra.Command{
		Use:   "publish IMAGE",
		Short: "Analyze an image and publish it to a WordPress site",
		Long: `Resizes the image with the site's optimizer settings, asks the configured
vision provider for SEO metadata and uploads the image to the site's media
library under the generated filename. Prints the public URL on success.

IMAGE is a local path or an http(s) URL.`,
		Example: `  # Publish a photo to the site with id "blog"
  mediapress publish ./IMG_0001.JPG --site blog

  # Upload the original bytes without resizing
  mediapress publish ./banner.png --site shop --no-optimize

  # Delete the upload again if setting its metadata fails
  mediapress publish https://example.com/photo.jpg --site blog --rollback`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}

			img, err := images.NewFetcher().Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			site, _ := cfg.FindSite(siteID)
			req, err := optimizer.Prepare(img.Data, img.Filename, siteID, cfg.OptimizerFor(site), !noOptimize)
			if err != nil {
				return err
			}

			bus := events.New(events.DefaultBuffer)
			defer bus.Close()
			if err := bus.Subscribe(logUpdate); err != nil {
				return err
			}

			// a started run always reaches completed or error
			url, err := pipeline.New(bus, rollback).Run(context.WithoutCancel(cmd.Context()), cfg, req)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().StringVarP(&siteID, "site", "s", "", "Id of the WordPress site to publish to")
	cmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "Upload the image without resizing or re-encoding")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Delete the uploaded media if the metadata update fails")
	_ = cmd.MarkFlagRequired("site")

	return cmd
}

func logUpdate(update models.TaskUpdate) {
	if update.Status == models.StatusError {
		slog.Error("Task failed", "filename", update.Filename, "error", update.Error)
		return
	}
	slog.Info("Task status", "filename", update.Filename, "status", update.Status)
}
