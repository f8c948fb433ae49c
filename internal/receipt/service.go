package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-batch/internal/journal"
	"github.com/zombor/receipt-batch/internal/llm"
	"github.com/zombor/receipt-batch/internal/tabular"
)

// IDGenerator generates unique IDs for runs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// TableWriter persists the finished batch
type TableWriter interface {
	Write(t tabular.Table) (tabular.Paths, error)
}

// RunStore records run summaries
type RunStore interface {
	SaveRun(run *journal.Run) error
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// RunReport summarises one run
type RunReport struct {
	ID         string
	Directory  string
	Provider   string
	Attempted  int
	Recorded   int
	Skipped    []SkippedFile
	Paths      tabular.Paths
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run converts the report to its journal form
func (r *RunReport) Run() *journal.Run {
	run := &journal.Run{
		ID:         r.ID,
		Directory:  r.Directory,
		Provider:   r.Provider,
		Attempted:  r.Attempted,
		Recorded:   r.Recorded,
		CSVPath:    r.Paths.CSV,
		XLSXPath:   r.Paths.XLSX,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, s := range r.Skipped {
		run.Skipped = append(run.Skipped, journal.SkippedFile{File: s.File, Stage: string(s.Stage), Reason: s.Reason})
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	return run
}

// Service runs a batch and writes its results
type Service struct {
	invoker     llm.Invoker
	writer      TableWriter
	runs        RunStore
	aggOpts     []AggregatorOption
	idGenerator IDGenerator
	timeSource  TimeSource
}

// Option configures a Service
type Option func(*Service)

// WithRunStore records every run in store
func WithRunStore(store RunStore) Option {
	return func(s *Service) {
		s.runs = store
	}
}

// WithAggregatorOptions passes options to the batch aggregator
func WithAggregatorOptions(opts ...AggregatorOption) Option {
	return func(s *Service) {
		s.aggOpts = append(s.aggOpts, opts...)
	}
}

// WithDeps replaces the ID generator and time source, for testing
func WithDeps(idGen IDGenerator, timeSrc TimeSource) Option {
	return func(s *Service) {
		s.idGenerator = idGen
		s.timeSource = timeSrc
	}
}

// NewService creates a new Service with default ID generator and time source
func NewService(invoker llm.Invoker, writer TableWriter, opts ...Option) *Service {
	s := &Service{
		invoker:     invoker,
		writer:      writer,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run extracts every receipt in dir and writes the table. Nothing is written
// when the batch is empty; the returned error then matches ErrEmptyBatch.
func (s *Service) Run(ctx context.Context, dir string) (*RunReport, error) {
	report := &RunReport{
		ID:        s.idGenerator.Generate(),
		Directory: dir,
		Provider:  s.invoker.Name(),
		StartedAt: s.timeSource.Now(),
	}

	result, err := NewAggregator(s.invoker, s.aggOpts...).Run(ctx, dir)
	if result != nil {
		report.Attempted = result.Attempted
		report.Recorded = len(result.Records)
		report.Skipped = result.Skipped
	}

	if err == nil {
		paths, writeErr := s.writer.Write(TableOf(result.Records))
		if writeErr != nil {
			err = fmt.Errorf("writing results: %w", writeErr)
		} else {
			report.Paths = paths
			slog.Info("Wrote results", "csv", paths.CSV, "xlsx", paths.XLSX)
		}
	}

	report.Err = err
	report.FinishedAt = s.timeSource.Now()
	s.record(report)

	return report, err
}

// record saves the report to the journal. A missing directory is a usage
// error, not a run, and is not recorded.
func (s *Service) record(report *RunReport) {
	if s.runs == nil || errors.Is(report.Err, ErrDirectoryNotFound) {
		return
	}
	if err := s.runs.SaveRun(report.Run()); err != nil {
		slog.Warn("Failed to save run to journal", "id", report.ID, "error", err)
	}
}

// TableOf converts records to a table with the fixed header
func TableOf(records []Record) tabular.Table {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Row())
	}
	return tabular.Table{Header: Header(), Rows: rows}
}
