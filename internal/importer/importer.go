// Package importer pushes the documents of a local file to a remote collection in batches.
package importer

import (
	"context"
	"couchtransfer/internal/chunk"
	"couchtransfer/internal/common"
	"couchtransfer/internal/metrics"
	"couchtransfer/internal/progress"
	"couchtransfer/internal/retry"
	"couchtransfer/internal/transfer"
	"couchtransfer/internal/worker"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// Options tune an import run.
type Options struct {
	BatchSize   int
	Concurrency int
	MaxRetries  int
	// Create ensures the collection exists before any batch is sent.
	Create bool
}

// Importer reads documents with a DocumentReader and bulk-writes them to a Destination.
type Importer struct {
	reader      common.DocumentReader
	destination common.Destination
	database    string
	opts        Options

	reporter progress.Reporter
	recorder transfer.Recorder
	logger   *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Importer)

// WithReporter sets the progress reporter.
func WithReporter(r progress.Reporter) Option {
	return func(i *Importer) { i.reporter = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r transfer.Recorder) Option {
	return func(i *Importer) { i.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Importer) { i.logger = l }
}

// New creates an importer. database is only used for logs and metric labels.
func New(reader common.DocumentReader, destination common.Destination, database string, opts Options, options ...Option) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = chunk.DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = worker.DefaultWorkers
	}
	i := &Importer{
		reader:      reader,
		destination: destination,
		database:    database,
		opts:        opts,
		reporter:    progress.Nop{},
		recorder:    transfer.NopRecorder{},
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, o := range options {
		o(i)
	}
	return i
}

// Run imports the file. Reading the file and creating the collection are fatal on failure.
// Failed batches are recorded in the summary and never stop the other batches.
func (im *Importer) Run(ctx context.Context) (transfer.Summary, error) {
	start := time.Now()

	docs, err := im.readDocuments()
	if err != nil {
		im.recorder.RecordTransferDuration(metrics.DirectionImport, im.database, "failed", time.Since(start), 0)
		return transfer.Summary{}, fmt.Errorf("failed to read documents: %w", err)
	}
	total := int64(len(docs))
	im.recorder.AddTotalDocuments(metrics.DirectionImport, im.database, total)

	if im.opts.Create {
		if err := im.createCollection(ctx); err != nil {
			im.recorder.RecordTransferDuration(metrics.DirectionImport, im.database, "failed", time.Since(start), 0)
			return transfer.Summary{Expected: total}, fmt.Errorf("failed to create collection: %w", err)
		}
	}

	batches := chunk.Split(docs, im.opts.BatchSize)
	im.logger.Info("starting import",
		"database", im.database,
		"documents", total,
		"batches", len(batches),
		"batch_size", im.opts.BatchSize,
		"concurrency", im.opts.Concurrency,
	)

	outcomes := im.writeBatches(ctx, total, batches)
	summary := transfer.Summarize(total, outcomes)

	im.recorder.RecordTransferDuration(metrics.DirectionImport, im.database, summary.Status(), time.Since(start), summary.Transferred)
	im.logger.Info("import finished",
		"database", im.database,
		"documents", summary.Transferred,
		"failed_batches", len(summary.Failed),
		"duration", time.Since(start),
	)
	return summary, nil
}

func (im *Importer) readDocuments() ([]common.Document, error) {
	im.reporter.Start(progress.PhaseRead, 0)
	defer im.reporter.Finish()

	docs, err := im.reader.ReadDocuments()
	if err != nil {
		return nil, err
	}
	im.reporter.Add(int64(len(docs)))
	return docs, nil
}

func (im *Importer) createCollection(ctx context.Context) error {
	im.reporter.Start(progress.PhaseCreate, 1)
	defer im.reporter.Finish()

	err := retry.DoWithConfig(ctx, im.retryConfig("create"), func() error {
		return im.destination.CreateCollection(ctx)
	})
	if err != nil {
		im.logger.Error("collection could not be created", append([]any{"database", im.database}, transfer.ErrorAttrs(err)...)...)
		return err
	}
	im.reporter.Add(1)
	im.logger.Debug("collection ensured", "database", im.database)
	return nil
}

// writeBatches sends every batch as one bulk write through the worker pool. Results are
// consumed on this goroutine, which is the only one touching progress.
func (im *Importer) writeBatches(ctx context.Context, total int64, batches [][]common.Document) []transfer.Outcome {
	im.reporter.Start(progress.PhaseBatches, total)
	defer im.reporter.Finish()

	pool := worker.NewPool(func(ctx context.Context, job worker.Job[[]common.Document]) worker.Result[int] {
		err := retry.DoWithConfig(ctx, im.retryConfig(fmt.Sprintf("batch %d", job.ID)), func() error {
			return im.destination.BulkWrite(ctx, job.Data, false)
		})
		return worker.Result[int]{JobID: job.ID, Value: len(job.Data), Err: err}
	}, im.opts.Concurrency).WithActiveHook(func(active int) {
		im.recorder.SetActiveWorkers(metrics.DirectionImport, active)
	})
	im.logger.Debug("dispatching batches", "batches", len(batches), "workers", min(pool.Workers(), len(batches)))

	results := pool.Process(ctx, batches, func(r worker.Result[int]) {
		if r.Err == nil {
			im.reporter.Add(int64(r.Value))
			im.recorder.AddTransferredDocuments(metrics.DirectionImport, im.database, int64(r.Value))
			im.logger.Debug("batch written", "batch", r.JobID, "documents", r.Value)
			return
		}
		im.logger.Warn("batch failed", append([]any{
			"batch", r.JobID,
			"offset", r.JobID * im.opts.BatchSize,
			"documents", r.Value,
		}, transfer.ErrorAttrs(r.Err)...)...)
	})

	return lo.Map(results, func(r worker.Result[int], i int) transfer.Outcome {
		count := len(batches[i])
		if r.Err != nil {
			im.recorder.IncrementFailedUnits(metrics.DirectionImport, im.database)
			im.recorder.AddFailedDocuments(metrics.DirectionImport, im.database, transfer.ErrorType(r.Err), int64(count))
		}
		return transfer.Outcome{Index: i, Offset: i * im.opts.BatchSize, Count: count, Err: r.Err}
	})
}

func (im *Importer) retryConfig(unit string) *retry.Config {
	return retry.NewConfig().
		WithMaxRetries(im.opts.MaxRetries).
		WithRetryable(common.IsRetryable).
		WithOnRetry(func(attempt int, delay time.Duration, err error) {
			im.logger.Warn("retrying request", append([]any{
				"unit", unit,
				"attempt", attempt,
				"delay", delay,
			}, transfer.ErrorAttrs(err)...)...)
		})
}
