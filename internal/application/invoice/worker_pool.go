package invoice

import (
	"context"
	"log/slog"
	"sync"

	"praxisdesk/ms_invoicing/internal/core/invoice"
)

// BuildJob represents one invoice build to be processed by a worker
type BuildJob struct {
	Request invoice.Request
	Opts    invoice.GenerateOptions
	Index   int
}

// BatchResult represents the outcome of one invoice within a batch
type BatchResult struct {
	Index     int                  `json:"-"`
	InvoiceID string               `json:"invoiceId"`
	Result    *invoice.BuildResult `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// BuildWorkerPool processes invoice builds concurrently. Each build owns
// its engine session, so parallel builds are independent; the session
// limiter below the builder keeps the engine from being overrun.
type BuildWorkerPool struct {
	workerCount int
	jobChan     chan BuildJob
	resultChan  chan BatchResult
	builder     invoice.Builder
	log         *slog.Logger
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewBuildWorkerPool creates a new worker pool for batch invoice builds
func NewBuildWorkerPool(ctx context.Context, workerCount int, builder invoice.Builder, log *slog.Logger) *BuildWorkerPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	poolCtx, cancel := context.WithCancel(ctx)

	return &BuildWorkerPool{
		workerCount: workerCount,
		jobChan:     make(chan BuildJob, workerCount*2),
		resultChan:  make(chan BatchResult, workerCount*2),
		builder:     builder,
		log:         log,
		ctx:         poolCtx,
		cancel:      cancel,
	}
}

// Start starts the workers
func (p *BuildWorkerPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop cancels outstanding work and waits for the workers to drain
func (p *BuildWorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *BuildWorkerPool) worker() {
	defer p.wg.Done()

	for job := range p.jobChan {
		result := p.processBuild(job)

		select {
		case p.resultChan <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *BuildWorkerPool) processBuild(job BuildJob) BatchResult {
	result := BatchResult{
		Index:     job.Index,
		InvoiceID: job.Request.InvoiceID,
	}

	buildResult, err := p.builder.Build(p.ctx, job.Request, job.Opts)
	if err != nil {
		p.log.Error("batch invoice build failed",
			"invoice_id", job.Request.InvoiceID,
			"index", job.Index,
			"error", err,
		)
		result.Error = err.Error()
		return result
	}

	result.Result = buildResult
	return result
}

// ProcessBatch runs every request through the pool and returns the results
// in input order. A failed or aborted build occupies its slot in the
// result list; it never stops the remaining builds.
func (p *BuildWorkerPool) ProcessBatch(ctx context.Context, reqs []invoice.Request, opts invoice.GenerateOptions) []BatchResult {
	p.Start()
	defer p.Stop()

	// The submitter is the only goroutine that closes jobChan, so workers
	// always see a clean end of input.
	go func() {
		defer close(p.jobChan)
		for i, req := range reqs {
			select {
			case p.jobChan <- BuildJob{Request: req, Opts: opts, Index: i}:
			case <-p.ctx.Done():
				return
			}
		}
	}()

	results := make([]BatchResult, len(reqs))
	received := 0

	for received < len(reqs) {
		select {
		case result := <-p.resultChan:
			results[result.Index] = result
			received++
		case <-ctx.Done():
			// Mark everything still outstanding as cancelled.
			for i := range results {
				if results[i].InvoiceID == "" && results[i].Error == "" && results[i].Result == nil {
					results[i] = BatchResult{
						Index:     i,
						InvoiceID: reqs[i].InvoiceID,
						Error:     ctx.Err().Error(),
					}
				}
			}
			return results
		}
	}

	return results
}
