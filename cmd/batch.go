package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/songbridge/internal/formatter"
	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
	"github.com/desertthunder/songbridge/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Batch resolves stream URLs for every track in a JSON file and writes a manifest.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	inputPath := cmd.String("input")
	outputPath := cmd.String("output")

	quality, err := models.ParseQuality(cmd.String("quality"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	var format formatter.Format
	if f := cmd.String("format"); f != "" {
		if format, err = formatter.ParseFormat(f); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	tracks, err := formatter.ReadTracks(data)
	if err != nil {
		return err
	}

	engine, err := r.orchestrator(ctx)
	if err != nil {
		return err
	}
	defer r.persistHealth(ctx)

	r.logger.Info("starting batch", "tracks", len(tracks), "workers", cmd.Int("workers"), "rate", cmd.Float("rate"))
	r.writePlain("Resolving %d tracks...\n", len(tracks))

	progressCh, stop := r.watchProgress(cmd.Bool("quiet"))
	result, err := engine.BulkResolve(ctx, tracks, quality, tasks.BulkResolveOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	}, progressCh)
	stop()
	if err != nil && !errors.Is(err, shared.ErrCancelled) {
		return fmt.Errorf("batch failed: %w", err)
	}

	r.writePlain("\n")
	r.writePlainHeader("Batch Complete")
	r.writePlain("Resolved: %d/%d (%d via fallback)\n", result.Resolved, result.Total, result.Fallbacks)
	r.writePlain("Failed: %d\n", result.Failed)
	r.writePlain("Elapsed: %s\n", result.Elapsed.Round(time.Millisecond))

	if outputPath != "" {
		path, werr := formatter.WriteManifest(result, outputPath, format)
		if werr != nil {
			return werr
		}
		r.writePlain("Manifest: %s\n", path)
	} else if format != "" {
		manifest, eerr := formatter.EncodeManifest(result, format)
		if eerr != nil {
			return eerr
		}
		r.writePlainln("%s", manifest)
	}

	return err
}
