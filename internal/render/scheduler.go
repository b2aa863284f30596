package render

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/phoenixlabs/renderd/internal/browser"
	"github.com/phoenixlabs/renderd/internal/metrics"
	"github.com/phoenixlabs/renderd/internal/types"
)

// Scheduler runs a batch of render requests against the shared browser
// in waves of at most the configured concurrency. Wave k+1 starts only
// after every item of wave k has finished, which caps the number of
// simultaneously open tabs for the whole batch.
type Scheduler struct {
	driver       browser.Driver
	worker       *Worker
	concurrency  int
	maxBatchSize int
}

// NewScheduler creates a batch scheduler.
func NewScheduler(driver browser.Driver, worker *Worker, concurrency, maxBatchSize int) *Scheduler {
	return &Scheduler{
		driver:       driver,
		worker:       worker,
		concurrency:  concurrency,
		maxBatchSize: maxBatchSize,
	}
}

// Render processes a batch and returns one result per request, in
// request order. Item failures surface as empty results, never as an
// error; the only batch-level failures are an empty batch and a
// browser that cannot be launched at all.
//
// The browser is ensured before any wave starts, so a launch failure
// costs zero open pages.
func (s *Scheduler) Render(ctx context.Context, reqs []types.RenderRequest) ([]types.RenderResult, error) {
	if len(reqs) == 0 {
		return nil, types.ErrEmptyBatch
	}
	if len(reqs) > s.maxBatchSize {
		log.Warn().
			Int("size", len(reqs)).
			Int("max", s.maxBatchSize).
			Msg("Batch exceeds the recommended maximum size, processing anyway")
	}

	start := time.Now()
	log.Info().
		Int("size", len(reqs)).
		Int("concurrency", s.concurrency).
		Msg("Starting render batch")

	if err := s.driver.Ensure(ctx); err != nil {
		metrics.RecordBatch("launch_error", time.Since(start))
		return nil, err
	}

	results := make([]types.RenderResult, len(reqs))

	for waveStart := 0; waveStart < len(reqs); waveStart += s.concurrency {
		waveEnd := waveStart + s.concurrency
		if waveEnd > len(reqs) {
			waveEnd = len(reqs)
		}

		g, waveCtx := errgroup.WithContext(ctx)
		for i := waveStart; i < waveEnd; i++ {
			i := i
			g.Go(func() error {
				// Each worker writes only its own slot, so the
				// result slice needs no locking and order is
				// preserved by construction.
				results[i] = s.worker.Render(waveCtx, reqs[i], i)
				return nil
			})
		}
		// Workers never return errors; Wait is a barrier between waves.
		_ = g.Wait()

		log.Debug().
			Int("wave_start", waveStart).
			Int("wave_end", waveEnd).
			Msg("Wave complete")
	}

	succeeded := 0
	for _, r := range results {
		if r.OK {
			succeeded++
		}
	}

	status := "ok"
	if succeeded < len(results) {
		status = "partial"
	}
	metrics.RecordBatch(status, time.Since(start))

	log.Info().
		Int("size", len(reqs)).
		Int("succeeded", succeeded).
		Int("failed", len(reqs)-succeeded).
		Dur("elapsed", time.Since(start)).
		Msg("Render batch complete")

	return results, nil
}
