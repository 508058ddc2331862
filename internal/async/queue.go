package async

import (
	"context"
	"log/slog"
	"sync"

	"github.com/githubphadnis/xta/internal/entity"
)

// Job is one file queued for import.
type Job struct {
	Filename string
	Contents []byte
}

// Result pairs a job with its import outcome.
type Result struct {
	Filename string
	Batch    *entity.ImportBatch
	Err      error
}

// Importer is the import entrypoint the pool fans out over.
type Importer interface {
	ImportFile(ctx context.Context, filename string, contents []byte) (*entity.ImportBatch, error)
}

// Pool runs imports concurrently with a bounded worker count. Each job is
// an independent batch, so worker ordering does not affect the ledger.
type Pool struct {
	importer Importer
	workers  int
	logger   *slog.Logger
}

func NewPool(importer Importer, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{importer: importer, workers: workers, logger: logger}
}

// Run imports all jobs and returns one result per job, in job order. It
// stops feeding workers once ctx is canceled; already-started imports run
// to completion.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				job := jobs[i]
				batch, err := p.importer.ImportFile(ctx, job.Filename, job.Contents)
				results[i] = Result{Filename: job.Filename, Batch: batch, Err: err}
				if err != nil {
					p.logger.Warn("async.import.failed", "filename", job.Filename, "error", err)
				}
			}
		}()
	}

	fed := 0
feed:
	for ; fed < len(jobs); fed++ {
		select {
		case indexes <- fed:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	for i := fed; i < len(jobs); i++ {
		results[i] = Result{Filename: jobs[i].Filename, Err: ctx.Err()}
	}
	return results
}
