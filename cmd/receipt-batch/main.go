package main

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-batch/internal/config"
	"github.com/zombor/receipt-batch/internal/journal"
	"github.com/zombor/receipt-batch/internal/llm"
	"github.com/zombor/receipt-batch/internal/ocr"
	"github.com/zombor/receipt-batch/internal/receipt"
	"github.com/zombor/receipt-batch/internal/tabular"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// Extraction modes
const (
	modeImage   = "image"
	modeOCR     = "ocr"
	modeOCRJSON = "ocr-json"
)

// ocrDirName is the subdirectory of --out receiving OCR results
const ocrDirName = "ocr"

const (
	exitOK         = 0
	exitFatal      = 1
	exitUsage      = 2
	exitEmptyBatch = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Check for version flag before parsing other flags
	for _, arg := range args {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Fprintln(stdout, version)
			return exitOK
		}
	}

	// A .env file is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "error: loading .env: %v\n", err)
		return exitFatal
	}

	fs := ff.NewFlagSet("receipt-batch")
	var (
		dir         = fs.StringLong("dir", "", "Directory containing receipt images (prompted for if empty)")
		outDir      = fs.StringLong("out", "results", "Output directory for receipt_results.csv and receipt_results.xlsx")
		extensions  = fs.StringLong("ext", "", "Comma-separated, case-sensitive file extensions to process (default .jpg, or .json with --mode ocr-json)")
		mode        = fs.StringLong("mode", modeImage, "Extraction mode: image, ocr (Cloud Vision text, then the model) or ocr-json (saved OCR JSON files)")
		provider    = fs.StringLong("provider", "", "LLM provider: gemini, anthropic, openai or ollama (default from config)")
		model       = fs.StringLong("model", "", "Model name override for the provider")
		configPath  = fs.StringLong("config", "", "TOML config file (default $XDG_CONFIG_HOME/receipt-batch/config.toml)")
		journalPath = fs.StringLong("journal", "", "BoltDB file recording run history (optional)")
		showHistory = fs.BoolLong("history", "Print the run history from --journal and exit")
		logLevel    = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_           = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("RECEIPT_BATCH"),
	); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	if err := setupLogging(stderr, *logLevel); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	switch *mode {
	case modeImage, modeOCR, modeOCRJSON:
	default:
		fmt.Fprintf(stderr, "error: invalid mode %q (valid: %s, %s, %s)\n", *mode, modeImage, modeOCR, modeOCRJSON)
		return exitUsage
	}
	if *extensions == "" {
		*extensions = ".jpg"
		if *mode == modeOCRJSON {
			*extensions = ".json"
		}
	}

	if *showHistory {
		return printHistory(stdout, *journalPath)
	}

	// Configuration errors abort before any file is touched
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return exitFatal
	}
	cfg.ApplyEnv(os.Getenv)

	name := *provider
	if name == "" {
		name = cfg.DefaultProvider
	}
	if *model != "" {
		p := cfg.LLMs[name]
		p.Model = *model
		cfg.LLMs[name] = p
	}
	if _, err := cfg.Provider(name); err != nil {
		slog.Error("Invalid provider configuration", "provider", name, "error", err)
		return exitFatal
	}
	if *mode == modeOCR {
		if _, err := cfg.VisionKey(); err != nil {
			slog.Error("Invalid OCR configuration", "error", err)
			return exitFatal
		}
	}

	if *dir == "" {
		*dir, err = promptDirectory(stdin, stdout)
		if err != nil {
			slog.Error("Failed to read directory", "error", err)
			return exitFatal
		}
	}
	if info, err := os.Stat(*dir); err != nil || !info.IsDir() {
		slog.Error("Directory not found", "dir", *dir)
		return exitFatal
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	invoker, err := llm.New(ctx, cfg, name)
	if err != nil {
		slog.Error("Failed to initialize provider", "provider", name, "error", err)
		return exitFatal
	}
	defer invoker.Close()

	writer, err := tabular.NewWriter(*outDir)
	if err != nil {
		slog.Error("Failed to initialize output", "error", err)
		return exitFatal
	}

	aggOpts := []receipt.AggregatorOption{
		receipt.WithExtensions(splitList(*extensions)...),
		receipt.WithObserver(newProgressObserver(stderr)),
	}
	switch *mode {
	case modeOCR:
		client, err := ocr.New(ctx, cfg.OCR.APIKey, cfg.OCR.BaseURL)
		if err != nil {
			slog.Error("Failed to initialize OCR", "error", err)
			return exitFatal
		}
		aggOpts = append(aggOpts, receipt.WithTextLoader(client.Loader(filepath.Join(*outDir, ocrDirName))))
	case modeOCRJSON:
		aggOpts = append(aggOpts, receipt.WithTextLoader(func(_ context.Context, path string) (string, error) {
			return ocr.ReadText(path)
		}))
	}

	opts := []receipt.Option{receipt.WithAggregatorOptions(aggOpts...)}
	if *journalPath != "" {
		store, err := journal.Open(*journalPath)
		if err != nil {
			slog.Error("Failed to open journal", "error", err)
			return exitFatal
		}
		defer store.Close()
		opts = append(opts, receipt.WithRunStore(store))
	}

	service := receipt.NewService(invoker, writer, opts...)
	report, err := service.Run(ctx, *dir)

	fmt.Fprintln(stdout, renderSummary(report))

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, receipt.ErrEmptyBatch):
		slog.Warn("Nothing was written", "reason", err)
		return exitEmptyBatch
	default:
		slog.Error("Batch failed", "error", err)
		return exitFatal
	}
}

func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}

func promptDirectory(stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, "Enter the directory containing receipt images: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	dir := strings.TrimSpace(line)
	if dir == "" {
		return "", errors.New("no directory given")
	}
	return dir, nil
}

func printHistory(w io.Writer, path string) int {
	if path == "" {
		slog.Error("--history requires --journal")
		return exitUsage
	}

	store, err := journal.Open(path)
	if err != nil {
		slog.Error("Failed to open journal", "error", err)
		return exitFatal
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		return exitFatal
	}

	fmt.Fprint(w, renderHistory(runs))
	return exitOK
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
