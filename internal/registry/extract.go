package registry

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Extractor runs fetch+parse for a batch of organisation numbers across a
// fixed pool of workers. All workers share one TokenManager; each owns its
// own Fetcher.
type Extractor struct {
	opts    Options
	tokens  *TokenManager
	workers int
	delay   time.Duration
}

// NewExtractor creates an Extractor with the given pool size and
// inter-request courtesy delay.
func NewExtractor(opts Options, workers int, delay time.Duration) *Extractor {
	if workers < 1 {
		workers = 1
	}
	return &Extractor{
		opts:    opts,
		tokens:  NewTokenManager(opts),
		workers: workers,
		delay:   delay,
	}
}

// Run fetches and parses every organisation number concurrently and returns
// the aggregate records. No ordering guarantee is made on the result: chunks
// are collected as they complete. Per-identifier failures surface as
// failure-status records; an auth failure aborts the whole run.
func (e *Extractor) Run(ctx context.Context, orgNumbers []string) ([]Record, error) {
	if len(orgNumbers) == 0 {
		return nil, nil
	}

	log := zap.L().With(zap.String("component", "registry.extract"))

	chunks := partition(orgNumbers, e.workers)
	log.Info("starting extraction",
		zap.Int("organisations", len(orgNumbers)),
		zap.Int("workers", len(chunks)),
	)

	// Buffered to chunk count so workers never block on the collector.
	chunkCh := make(chan []Record, len(chunks))

	var processed, succeeded atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range chunks {
		g.Go(func() error {
			fetcher := NewFetcher(e.opts, e.tokens)
			limiter := rate.NewLimiter(rate.Every(e.delay), 1)

			results := make([]Record, 0, len(chunk))
			for _, orgNumber := range chunk {
				if e.delay > 0 {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}

				outcome, err := fetcher.Fetch(gctx, orgNumber)
				if err != nil {
					return err
				}

				rec := Parse(outcome, orgNumber)
				if rec.Status == StatusSuccess {
					succeeded.Add(1)
				}
				processed.Add(1)
				results = append(results, rec)
			}

			chunkCh <- results
			log.Info("chunk complete",
				zap.Int64("processed", processed.Load()),
				zap.Int64("succeeded", succeeded.Load()),
				zap.Int("total", len(orgNumbers)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(chunkCh)

	records := make([]Record, 0, len(orgNumbers))
	for chunk := range chunkCh {
		records = append(records, chunk...)
	}

	log.Info("extraction complete",
		zap.Int("processed", len(records)),
		zap.Int64("succeeded", succeeded.Load()),
	)
	return records, nil
}

// partition splits ids into at most n contiguous chunks of near-equal size;
// the last chunk absorbs the remainder. The union of the chunks is exactly
// the input, in order, with no overlaps.
func partition(ids []string, n int) [][]string {
	if n > len(ids) {
		n = len(ids)
	}

	chunks := make([][]string, 0, n)
	base := len(ids) / n

	start := 0
	for i := 0; i < n; i++ {
		end := start + base
		if i == n-1 {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
		start = end
	}
	return chunks
}
