// Package exporter copies every document of a remote collection into a local file.
package exporter

import (
	"context"
	"couchtransfer/internal/chunk"
	"couchtransfer/internal/common"
	"couchtransfer/internal/metrics"
	"couchtransfer/internal/progress"
	"couchtransfer/internal/retry"
	"couchtransfer/internal/transfer"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Options tune an export run.
type Options struct {
	PageSize    int
	Concurrency int
	MaxRetries  int
}

// Exporter pages through a Source and writes the collected documents with a DocumentWriter.
type Exporter struct {
	source   common.Source
	writer   common.DocumentWriter
	database string
	opts     Options

	reporter progress.Reporter
	recorder transfer.Recorder
	logger   *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Exporter)

// WithReporter sets the progress reporter.
func WithReporter(r progress.Reporter) Option {
	return func(e *Exporter) { e.reporter = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r transfer.Recorder) Option {
	return func(e *Exporter) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// New creates an exporter. database is only used for logs and metric labels.
func New(source common.Source, writer common.DocumentWriter, database string, opts Options, options ...Option) *Exporter {
	if opts.PageSize <= 0 {
		opts.PageSize = chunk.DefaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	e := &Exporter{
		source:   source,
		writer:   writer,
		database: database,
		opts:     opts,
		reporter: progress.Nop{},
		recorder: transfer.NopRecorder{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Run exports the collection. Failing to read the document count or to write the file is
// fatal. A failed page is recorded in the summary and stops further pages from being
// requested; the file is still written with every document collected.
func (e *Exporter) Run(ctx context.Context) (transfer.Summary, error) {
	start := time.Now()

	total, err := e.fetchCount(ctx)
	if err != nil {
		e.recorder.RecordTransferDuration(metrics.DirectionExport, e.database, "failed", time.Since(start), 0)
		return transfer.Summary{}, fmt.Errorf("failed to read document count: %w", err)
	}
	e.recorder.AddTotalDocuments(metrics.DirectionExport, e.database, total)

	pages := chunk.Pages(total, e.opts.PageSize)
	e.logger.Info("starting export",
		"database", e.database,
		"documents", total,
		"pages", len(pages),
		"page_size", e.opts.PageSize,
		"concurrency", e.opts.Concurrency,
	)

	slots, outcomes := e.fetchPages(ctx, total, pages)
	docs := lo.Flatten(slots)

	e.reporter.Start(progress.PhaseWrite, int64(len(docs)))
	err = e.writer.WriteDocuments(docs)
	if err == nil {
		e.reporter.Add(int64(len(docs)))
	}
	e.reporter.Finish()

	summary := transfer.Summarize(total, outcomes)
	if err != nil {
		e.recorder.RecordTransferDuration(metrics.DirectionExport, e.database, "failed", time.Since(start), summary.Transferred)
		return summary, fmt.Errorf("failed to write documents: %w", err)
	}

	e.recorder.RecordTransferDuration(metrics.DirectionExport, e.database, summary.Status(), time.Since(start), summary.Transferred)
	e.logger.Info("export finished",
		"database", e.database,
		"documents", summary.Transferred,
		"failed_pages", len(summary.Failed),
		"duration", time.Since(start),
	)
	return summary, nil
}

func (e *Exporter) fetchCount(ctx context.Context) (int64, error) {
	e.reporter.Start(progress.PhaseMetadata, 1)
	defer e.reporter.Finish()

	var total int64
	err := retry.DoWithConfig(ctx, e.retryConfig("metadata"), func() error {
		n, err := e.source.DocumentCount(ctx)
		total = n
		return err
	})
	if err != nil {
		return 0, err
	}
	e.reporter.Add(1)
	return total, nil
}

// fetchPages requests pages with at most Concurrency requests in flight. Each page owns a
// slot, so the documents come out in offset order whatever the completion order.
func (e *Exporter) fetchPages(ctx context.Context, total int64, pages []chunk.Page) ([][]common.Document, []transfer.Outcome) {
	slots := make([][]common.Document, len(pages))
	outcomes := make([]transfer.Outcome, len(pages))
	attempted := make([]bool, len(pages))

	e.reporter.Start(progress.PhasePages, total)
	defer e.reporter.Finish()

	var stopped atomic.Bool
	var active atomic.Int32
	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)

	for i, page := range pages {
		if stopped.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// A page that failed while this one waited for a slot cancels it.
			if stopped.Load() || ctx.Err() != nil {
				return nil
			}
			attempted[i] = true

			e.recorder.SetActiveWorkers(metrics.DirectionExport, int(active.Add(1)))
			defer func() {
				e.recorder.SetActiveWorkers(metrics.DirectionExport, int(active.Add(-1)))
			}()

			docs, err := e.fetchPage(ctx, page)
			expected := expectedCount(total, page)
			if err != nil {
				stopped.Store(true)
				outcomes[i] = transfer.Outcome{Index: page.Index, Offset: page.Offset, Count: expected, Err: err}
				e.recordFailure(err, expected)
				e.logger.Warn("page failed", append([]any{
					"page", page.Index,
					"skip", page.Offset,
					"limit", page.Limit,
				}, transfer.ErrorAttrs(err)...)...)
				return nil
			}

			slots[i] = docs
			outcomes[i] = transfer.Outcome{Index: page.Index, Offset: page.Offset, Count: len(docs)}
			e.reporter.Add(int64(len(docs)))
			e.recorder.AddTransferredDocuments(metrics.DirectionExport, e.database, int64(len(docs)))
			e.logger.Debug("page fetched", "page", page.Index, "skip", page.Offset, "documents", len(docs))
			return nil
		})
	}
	_ = g.Wait()

	for i, page := range pages {
		if attempted[i] {
			continue
		}
		err := transfer.ErrSkipped
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		expected := expectedCount(total, page)
		outcomes[i] = transfer.Outcome{Index: page.Index, Offset: page.Offset, Count: expected, Err: err}
		e.recordFailure(err, expected)
	}

	return slots, outcomes
}

func (e *Exporter) fetchPage(ctx context.Context, page chunk.Page) ([]common.Document, error) {
	var result *common.Page
	err := retry.DoWithConfig(ctx, e.retryConfig(page.String()), func() error {
		p, err := e.source.ListDocuments(ctx, page.Limit, page.Offset)
		result = p
		return err
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []common.Document{}, nil
	}

	// Rows without a body carry nothing to export.
	return lo.FilterMap(result.Rows, func(row common.Row, _ int) (common.Document, bool) {
		return row.Doc, len(row.Doc) > 0 && string(row.Doc) != "null"
	}), nil
}

func (e *Exporter) recordFailure(err error, count int) {
	e.recorder.IncrementFailedUnits(metrics.DirectionExport, e.database)
	e.recorder.AddFailedDocuments(metrics.DirectionExport, e.database, transfer.ErrorType(err), int64(count))
}

func (e *Exporter) retryConfig(unit string) *retry.Config {
	return retry.NewConfig().
		WithMaxRetries(e.opts.MaxRetries).
		WithRetryable(common.IsRetryable).
		WithOnRetry(func(attempt int, delay time.Duration, err error) {
			e.logger.Warn("retrying request", append([]any{
				"unit", unit,
				"attempt", attempt,
				"delay", delay,
			}, transfer.ErrorAttrs(err)...)...)
		})
}

// expectedCount is the number of documents a page should hold given the initial total.
func expectedCount(total int64, page chunk.Page) int {
	remaining := total - int64(page.Offset)
	if remaining <= 0 {
		return 0
	}
	return int(min(remaining, int64(page.Limit)))
}
