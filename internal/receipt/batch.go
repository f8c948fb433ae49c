package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/zombor/receipt-batch/internal/llm"
	"github.com/zombor/receipt-batch/internal/media"
)

// Stage names the step at which a file was skipped
type Stage string

const (
	StageRead    Stage = "read"
	StageExtract Stage = "extract"
	StageRecover Stage = "recover"
)

// SkippedFile describes a file left out of the batch
type SkippedFile struct {
	File   string
	Stage  Stage
	Reason string
}

// BatchResult holds the records of one run in directory listing order
type BatchResult struct {
	Records   []Record
	Attempted int
	Skipped   []SkippedFile
}

// Observer is notified as each file is processed
type Observer interface {
	FileStarted(index, total int, name string)
	// FileFinished receives nil when the file was recorded
	FileFinished(name string, skip *SkippedFile)
}

// ImageLoader reads a file and returns PNG data for the model
type ImageLoader func(path string) ([]byte, error)

// TextLoader returns the OCR text of a file for text-only extraction
type TextLoader func(ctx context.Context, path string) (string, error)

type nopObserver struct{}

func (nopObserver) FileStarted(int, int, string)  {}
func (nopObserver) FileFinished(string, *SkippedFile) {}

// Aggregator runs every matching file in a directory through the model, one at a time
type Aggregator struct {
	invoker    llm.Invoker
	extensions []string
	load       ImageLoader
	loadText   TextLoader
	observer   Observer
}

// AggregatorOption configures an Aggregator
type AggregatorOption func(*Aggregator)

// WithExtensions sets the case-sensitive file suffixes to process
func WithExtensions(exts ...string) AggregatorOption {
	return func(a *Aggregator) {
		if len(exts) > 0 {
			a.extensions = exts
		}
	}
}

// WithImageLoader replaces the default file reader and converter
func WithImageLoader(load ImageLoader) AggregatorOption {
	return func(a *Aggregator) {
		a.load = load
	}
}

// WithTextLoader switches the aggregator to text-only extraction. Each file is
// turned into text by load and the model receives no image.
func WithTextLoader(load TextLoader) AggregatorOption {
	return func(a *Aggregator) {
		a.loadText = load
	}
}

// WithObserver registers progress callbacks
func WithObserver(o Observer) AggregatorOption {
	return func(a *Aggregator) {
		a.observer = o
	}
}

// NewAggregator creates an Aggregator that extracts receipts with invoker
func NewAggregator(invoker llm.Invoker, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		invoker:    invoker,
		extensions: DefaultExtensions,
		load:       media.LoadFile,
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run processes dir. Failed files are skipped and reported in the result. The
// result is returned even with an error so that callers can report on it; the
// error matches ErrEmptyBatch when nothing was recorded.
func (a *Aggregator) Run(ctx context.Context, dir string) (*BatchResult, error) {
	result := &BatchResult{}

	paths, err := ListImages(dir, a.extensions)
	if err != nil {
		return result, err
	}

	slog.Info("Processing directory", "dir", dir, "files", len(paths))

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("processing stopped: %w", err)
		}

		name := filepath.Base(path)
		a.observer.FileStarted(i+1, len(paths), name)
		slog.Info("Processing receipt", "file", name, "index", i+1, "total", len(paths))

		result.Attempted++
		record, skip := a.process(ctx, path, name)
		if skip != nil {
			slog.Warn("Skipping receipt", "file", skip.File, "stage", skip.Stage, "reason", skip.Reason)
			result.Skipped = append(result.Skipped, *skip)
		} else {
			result.Records = append(result.Records, record)
		}
		a.observer.FileFinished(name, skip)
	}

	if len(result.Records) == 0 {
		return result, ErrNoRecords
	}
	return result, nil
}

// process moves one file through read, extract, recover and normalize
func (a *Aggregator) process(ctx context.Context, path, name string) (Record, *SkippedFile) {
	req, err := a.request(ctx, path)
	if err != nil {
		return Record{}, &SkippedFile{File: name, Stage: StageRead, Reason: err.Error()}
	}
	req.JSON = true

	raw, err := a.invoker.Invoke(ctx, req)
	if err != nil {
		slog.Error("Failed to extract receipt", "file", name, "provider", a.invoker.Name(), "kind", llm.KindOf(err), "error", err)
		return Record{}, &SkippedFile{File: name, Stage: StageExtract, Reason: llm.UserMessage(err)}
	}

	fields, err := RecoverJSON(raw)
	if err != nil {
		slog.Warn("Could not recover JSON from response", "file", name, "raw", raw)
		return Record{}, &SkippedFile{File: name, Stage: StageRecover, Reason: err.Error()}
	}

	return FromFields(fields, name).Normalized(), nil
}

func (a *Aggregator) request(ctx context.Context, path string) (llm.Request, error) {
	if a.loadText != nil {
		text, err := a.loadText(ctx, path)
		if err != nil {
			return llm.Request{}, err
		}
		return llm.Prompt(SystemPrompt, TextPrompt(text), nil), nil
	}

	data, err := a.load(path)
	if err != nil {
		return llm.Request{}, err
	}
	return llm.Prompt(SystemPrompt, ExtractionPrompt, &llm.Image{Data: data, MIMEType: media.PNGMimeType}), nil
}
