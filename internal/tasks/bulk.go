package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
	"golang.org/x/time/rate"
)

// BulkResolveOpts contains configuration for batch resolutions.
type BulkResolveOpts struct {
	NumWorkers int     // Concurrent workers (default: 5, max: 10)
	RateLimit  float64 // Resolutions started per second (default: 5)
}

// BulkItem is the outcome of resolving one track of a batch.
type BulkItem struct {
	Track  models.Track         `json:"track"`
	Stream *models.StreamResult `json:"stream,omitempty"`
	Err    error                `json:"-"`
	Error  string               `json:"error,omitempty"`
}

// BulkResolveResult summarizes a batch.
type BulkResolveResult struct {
	Total     int           `json:"total"`
	Resolved  int           `json:"resolved"`
	Fallbacks int           `json:"fallbacks"`
	Failed    int           `json:"failed"`
	Items     []BulkItem    `json:"items"` // input order
	Elapsed   time.Duration `json:"elapsed"`
}

type bulkJob struct {
	index int
	track models.Track
}

// BulkResolve resolves stream URLs for many tracks concurrently with rate limiting and progress tracking.
//
// This method implements a worker pool over [Orchestrator.ResolveURL]. Failed tracks are collected in the
// result and never abort the batch. Cancelling ctx stops dispatching; tracks never dispatched are reported
// as cancelled.
func (o *Orchestrator) BulkResolve(
	ctx context.Context,
	tracks []models.Track,
	quality models.Quality,
	opts BulkResolveOpts,
	prog chan<- ProgressUpdate,
) (*BulkResolveResult, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks to resolve", shared.ErrInvalidInput)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	start := o.now()
	result := &BulkResolveResult{Total: len(tracks), Items: make([]BulkItem, len(tracks))}
	dispatched := make([]bool, len(tracks))

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan bulkJob, len(tracks))
	results := make(chan bulkJob, len(tracks))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go o.resolveWorker(ctx, &wg, jobs, results, quality, result.Items)
	}

	go func() {
		defer close(jobs)
		for i, t := range tracks {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			dispatched[i] = true
			jobs <- bulkJob{index: i, track: t}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for job := range results {
		completed++
		item := result.Items[job.index]
		switch {
		case item.Err != nil:
			result.Failed++
			sendProgress(prog, ProgressUpdate{
				Phase: Failed, Step: completed, Total: len(tracks), Provider: job.track.Provider,
				Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", completed, len(tracks), job.track.Title, item.Err),
			})
		default:
			result.Resolved++
			if item.Stream.Fallback {
				result.Fallbacks++
			}
			sendProgress(prog, ProgressUpdate{
				Phase: Done, Step: completed, Total: len(tracks), Provider: item.Stream.ResolvedFrom,
				Message: fmt.Sprintf("[%d/%d] ✓ %s via %s", completed, len(tracks), job.track.Title, item.Stream.ResolvedFrom),
				Data:    item,
			})
		}
	}

	for i, ok := range dispatched {
		if !ok {
			err := fmt.Errorf("%w: not dispatched", shared.ErrCancelled)
			result.Items[i] = BulkItem{Track: tracks[i], Err: err, Error: err.Error()}
			result.Failed++
		}
	}

	result.Elapsed = o.now().Sub(start)
	o.logger.Info("batch resolved", "total", result.Total, "resolved", result.Resolved, "fallbacks", result.Fallbacks, "failed", result.Failed)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: %w", shared.ErrCancelled, err)
	}
	return result, nil
}

// resolveWorker is a worker goroutine that resolves tracks from the jobs channel.
//
// Each job writes only its own slot of items, so no locking is needed.
func (o *Orchestrator) resolveWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan bulkJob,
	results chan<- bulkJob,
	quality models.Quality,
	items []BulkItem,
) {
	defer wg.Done()

	for job := range jobs {
		item := BulkItem{Track: job.track}
		item.Stream, item.Err = o.ResolveURL(ctx, job.track, quality, nil)
		if item.Err != nil {
			item.Error = item.Err.Error()
		}
		items[job.index] = item
		results <- job
	}
}
