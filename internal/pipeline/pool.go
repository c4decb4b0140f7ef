package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
)

// DefaultPoolSize is the number of sources processed concurrently
const DefaultPoolSize = 3

// SourceProcessor runs the full pipeline for one source
type SourceProcessor interface {
	ProcessSource(ctx context.Context, src *models.Source) (*SourceResult, error)
}

// RunResult aggregates one full pool run across all sources
type RunResult struct {
	Sources     int
	Fetched     int
	Created     int
	Merged      int
	Skipped     int
	FatalErrors []error
}

// Err returns a non-nil error when any source failed fatally, so the
// caller can exit non-zero and alert an operator. It is only computed
// after all sources have finished.
func (r *RunResult) Err() error {
	if len(r.FatalErrors) == 0 {
		return nil
	}
	return fmt.Errorf("%d source(s) failed fatally: %v", len(r.FatalErrors), r.FatalErrors[0])
}

// Pool drains a queue of sources with a fixed number of concurrent
// workers. Each worker loops pop-or-exit: sources are never retried
// within a run, so no lease bookkeeping is needed. Within one source,
// processing is strictly sequential; across sources it is parallel up
// to the pool size.
type Pool struct {
	size      int
	processor SourceProcessor
	log       *logger.Logger
}

// NewPool creates a worker pool of the given size
func NewPool(size int, processor SourceProcessor, log *logger.Logger) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		size:      size,
		processor: processor,
		log:       log.WithComponent("pool"),
	}
}

// Run processes every source and returns once the queue is empty and all
// workers have finished. A fatal source error aborts only that source;
// it is collected into the result rather than stopping the run.
func (p *Pool) Run(ctx context.Context, sources []*models.Source) *RunResult {
	result := &RunResult{Sources: len(sources)}
	if len(sources) == 0 {
		return result
	}

	queue := make(chan *models.Source, len(sources))
	for _, src := range sources {
		queue <- src
	}
	close(queue)

	workers := p.size
	if workers > len(sources) {
		workers = len(sources)
	}
	p.log.Info().Int("sources", len(sources)).Int("workers", workers).Msg("Starting run")

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range queue {
				res, err := p.processor.ProcessSource(ctx, src)

				mu.Lock()
				if res != nil {
					result.Fetched += res.Fetched
					result.Created += res.Created
					result.Merged += res.Merged
					result.Skipped += res.Skipped
				}
				if err != nil {
					if IsFatal(err) {
						result.FatalErrors = append(result.FatalErrors, err)
					}
					mu.Unlock()
					p.log.Error().Err(err).Str("source", src.Name).Msg("Source failed")
					continue
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p.log.Info().
		Int("created", result.Created).
		Int("merged", result.Merged).
		Int("fatal", len(result.FatalErrors)).
		Msg("Run completed")
	return result
}
