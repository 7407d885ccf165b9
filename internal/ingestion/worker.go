package ingestion

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

// WorkerPool parses and loads many CSV files concurrently, one file per job.
type WorkerPool struct {
	workers  int
	parser   *Parser
	loader   TradeLoader
	jobQueue chan Job
	wg       sync.WaitGroup
}

type Job struct {
	Index    int
	FilePath string
	Result   chan<- JobResult
}

type JobResult struct {
	Index        int
	FilePath     string
	RecordsCount int64
	RowErrors    []error
	Error        error
}

func NewWorkerPool(workers int, parser *Parser, loader TradeLoader) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers:  workers,
		parser:   parser,
		loader:   loader,
		jobQueue: make(chan Job, workers*2),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
}

// Submit queues job, blocking while the queue is full. It returns ctx.Err() if ctx ends first.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessFiles runs every file through the pool and returns results in input order.
func (wp *WorkerPool) ProcessFiles(ctx context.Context, paths []string) []JobResult {
	wp.Start(ctx)

	results := make(chan JobResult, len(paths))
	go func() {
		defer close(results)
		defer wp.Stop()

		for i, path := range paths {
			if err := wp.Submit(ctx, Job{Index: i, FilePath: path, Result: results}); err != nil {
				return
			}
		}
	}()

	ordered := make([]JobResult, len(paths))
	done := make([]bool, len(paths))
	for r := range results {
		ordered[r.Index] = r
		done[r.Index] = true
	}

	for i, path := range paths {
		if !done[i] {
			ordered[i] = JobResult{Index: i, FilePath: path, Error: ctx.Err()}
		}
	}
	return ordered
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	log := logger.Named("ingestion").With(zap.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return

		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			result := wp.ProcessFile(ctx, job.FilePath)
			result.Index = job.Index
			if result.Error != nil {
				log.Error("falha ao processar arquivo", zap.String("file", job.FilePath), zap.Error(result.Error))
			} else {
				log.Info("arquivo processado",
					zap.String("file", job.FilePath),
					zap.Int64("records", result.RecordsCount),
					zap.Int("row_errors", len(result.RowErrors)))
			}
			job.Result <- result
		}
	}
}

func (wp *WorkerPool) ProcessFile(ctx context.Context, filePath string) JobResult {
	file, err := os.Open(filePath)
	if err != nil {
		return JobResult{
			FilePath: filePath,
			Error:    fmt.Errorf("erro ao abrir arquivo: %w", err),
		}
	}
	defer file.Close()

	parseResult, err := wp.parser.ParseFile(ctx, file)
	if err != nil {
		return JobResult{
			FilePath: filePath,
			Error:    fmt.Errorf("erro no parse: %w", err),
		}
	}

	count, err := wp.loader.LoadTrades(ctx, parseResult.Trades)
	if err != nil {
		return JobResult{
			FilePath:  filePath,
			RowErrors: parseResult.Errors,
			Error:     fmt.Errorf("erro ao carregar: %w", err),
		}
	}

	return JobResult{
		FilePath:     filePath,
		RecordsCount: count,
		RowErrors:    parseResult.Errors,
	}
}
