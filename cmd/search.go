package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/songbridge/internal/formatter"
	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search runs an aggregate search across every enabled provider.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	keyword := cmd.StringArg("keyword")
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	engine, err := r.orchestrator(ctx)
	if err != nil {
		return err
	}
	defer r.persistHealth(ctx)

	r.logger.Debug("searching", "keyword", keyword, "limit", limit)

	progressCh, stop := r.watchProgress(useJSON || !cmd.Bool("verbose"))
	result, err := engine.Search(ctx, keyword, limit, progressCh)
	stop()
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if useJSON {
		return r.writeJSON(result, pretty)
	}

	if len(result.Tracks) == 0 {
		r.writePlain("No results for %q\n", keyword)
	} else {
		r.writePlain("%s\n", formatter.TrackTable(formatter.Styles, result.Tracks))
	}
	r.writePlain("%s\n", formatter.SourcesLine(formatter.Styles, result.Sources))
	return nil
}

// Play searches for keyword, picks a track and resolves a playable URL, falling back across providers.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	quality, err := models.ParseQuality(cmd.String("quality"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	engine, err := r.orchestrator(ctx)
	if err != nil {
		return err
	}
	defer r.persistHealth(ctx)

	track, err := r.pickTrack(ctx, cmd)
	if err != nil {
		return err
	}

	if !useJSON {
		r.writePlain("▶ %s - %s [%s]\n", track.ArtistLine(), track.Title, track.ID)
	}

	progressCh, stop := r.watchProgress(useJSON)
	stream, err := engine.ResolveURL(ctx, track, quality, progressCh)
	stop()
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", track.ID, err)
	}

	if useJSON {
		return r.writeJSON(stream, cmd.Bool("pretty"))
	}

	r.writePlainln("URL: %s", stream.URL)
	r.writePlain("Bitrate: %d kbps\n", stream.Bitrate)
	if stream.Fallback {
		r.writePlain("Resolved via %s as %s\n", stream.ResolvedFrom, stream.TrackID)
	}
	return nil
}

// Lyric searches for keyword, picks a track and fetches its lyric, falling back across providers.
func (r *Runner) Lyric(ctx context.Context, cmd *cli.Command) error {
	useJSON := cmd.Bool("json")

	engine, err := r.orchestrator(ctx)
	if err != nil {
		return err
	}
	defer r.persistHealth(ctx)

	track, err := r.pickTrack(ctx, cmd)
	if err != nil {
		return err
	}

	progressCh, stop := r.watchProgress(useJSON)
	lyric, err := engine.ResolveLyric(ctx, track, progressCh)
	stop()
	if err != nil {
		return fmt.Errorf("failed to fetch lyric for %s: %w", track.ID, err)
	}

	if useJSON {
		return r.writeJSON(lyric, cmd.Bool("pretty"))
	}

	if lyric.Empty() {
		r.writePlainln("No lyric found for %s - %s", track.ArtistLine(), track.Title)
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("%s - %s", track.ArtistLine(), track.Title))
	r.writePlain("%s\n", strings.TrimSpace(lyric.Lyric))
	if cmd.Bool("translated") && lyric.Translated != "" {
		r.writePlainln("%s", strings.TrimSpace(lyric.Translated))
	}
	return nil
}

// pickTrack runs a search and returns the --index'th result, optionally restricted to --provider.
func (r *Runner) pickTrack(ctx context.Context, cmd *cli.Command) (models.Track, error) {
	keyword := cmd.StringArg("keyword")
	index := cmd.Int("index")
	provider := cmd.String("provider")

	if index < 1 {
		return models.Track{}, fmt.Errorf("%w: index must be at least 1", shared.ErrInvalidArgument)
	}

	engine, err := r.orchestrator(ctx)
	if err != nil {
		return models.Track{}, err
	}

	result, err := engine.Search(ctx, keyword, 0, nil)
	if err != nil {
		return models.Track{}, fmt.Errorf("search failed: %w", err)
	}

	tracks := result.Tracks
	if provider != "" {
		tracks = tracks[:0:0]
		for _, t := range result.Tracks {
			if t.Provider == provider {
				tracks = append(tracks, t)
			}
		}
	}

	if len(tracks) < index {
		return models.Track{}, fmt.Errorf("%w: %d results for %q, wanted #%d", shared.ErrNoMatch, len(tracks), keyword, index)
	}
	return tracks[index-1], nil
}
