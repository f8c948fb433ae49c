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
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-batch/internal/config"
	"github.com/zombor/receipt-batch/internal/llm"
	"github.com/zombor/receipt-batch/internal/media"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const defaultSystem = "You are a helpful assistant."

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Check for version flag before parsing other flags
	for _, arg := range args {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Fprintln(stdout, version)
			return 0
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "error: loading .env: %v\n", err)
		return 1
	}

	fs := ff.NewFlagSet("llm-chat")
	var (
		provider   = fs.StringLong("provider", "", "LLM provider: gemini, anthropic, openai or ollama (default from config)")
		model      = fs.StringLong("model", "", "Model name override for the provider")
		configPath = fs.StringLong("config", "", "TOML config file (default $XDG_CONFIG_HOME/receipt-batch/config.toml)")
		system     = fs.StringLong("system", defaultSystem, "System prompt")
		imagePath  = fs.StringLong("image", "", "Image to attach to every message")
		pdfImage   = fs.StringLong("pdf-image", "", "PDF whose first page is attached as an image")
		document   = fs.StringLong("document", "", "PDF whose text is added to the system prompt")
		listModels = fs.BoolLong("list-models", "List the provider's models and exit")
		logLevel   = fs.StringLong("log-level", "warn", "Log level: debug, info, warn or error")
		_          = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("LLM_CHAT"),
	); err != nil {
		fmt.Fprintf(stderr, "%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(stderr, "error: invalid log level %q\n", *logLevel)
		return 2
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl})))

	if *imagePath != "" && *pdfImage != "" {
		fmt.Fprintln(stderr, "error: --image and --pdf-image are mutually exclusive")
		return 2
	}

	image, err := attachment(*imagePath, *pdfImage)
	if err != nil {
		slog.Error("Failed to load attachment", "error", err)
		return 1
	}

	systemPrompt := *system
	if *document != "" {
		text, err := media.PDFText(*document)
		if err != nil {
			slog.Error("Failed to read document", "error", err)
			return 1
		}
		systemPrompt = media.WrapDocument(text, systemPrompt)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	invoker, err := llm.New(ctx, cfg, name)
	if err != nil {
		slog.Error("Failed to initialize provider", "provider", name, "error", err)
		return 1
	}
	defer invoker.Close()

	if *listModels {
		if err := printModels(ctx, invoker, stdout); err != nil {
			slog.Error("Failed to list models", "provider", name, "error", err)
			return 1
		}
		return 0
	}

	chat(ctx, llm.NewSession(invoker, systemPrompt), image, stdin, stdout)
	return 0
}

// attachment loads the image sent with each message, if any
func attachment(imagePath, pdfPath string) (*llm.Image, error) {
	switch {
	case imagePath != "":
		data, err := media.LoadFile(imagePath)
		if err != nil {
			return nil, err
		}
		return &llm.Image{Data: data, MIMEType: media.PNGMimeType}, nil
	case pdfPath != "":
		raw, err := os.ReadFile(pdfPath)
		if err != nil {
			return nil, fmt.Errorf("reading PDF: %w", err)
		}
		data, err := media.PDFToImage(raw)
		if err != nil {
			return nil, err
		}
		data, err = media.Shrink(data, media.MaxImageBytes)
		if err != nil {
			return nil, err
		}
		return &llm.Image{Data: data, MIMEType: media.PNGMimeType}, nil
	default:
		return nil, nil
	}
}

// chat runs the read-eval-print loop until exit, EOF or cancellation
func chat(ctx context.Context, session *llm.Session, image *llm.Image, stdin io.Reader, stdout io.Writer) {
	fmt.Fprintln(stdout, "Type 'history' to show the conversation, 'clear' to reset it, 'exit' to quit.")

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			fmt.Fprintln(stdout, "Please enter a message.")
			continue
		case "exit", "quit":
			return
		case "history":
			fmt.Fprintln(stdout, session.FormatHistory())
			continue
		case "clear":
			session.Clear()
			fmt.Fprintln(stdout, "History cleared.")
			continue
		}

		reply, err := session.Send(ctx, input, image)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(stdout, "Error: %s\n", llm.UserMessage(err))
			continue
		}
		fmt.Fprintln(stdout, reply)
	}
}

// printModels writes one line per model offered by invoker
func printModels(ctx context.Context, invoker llm.Invoker, w io.Writer) error {
	lister, ok := invoker.(llm.ModelLister)
	if !ok {
		return fmt.Errorf("provider %s cannot list models", invoker.Name())
	}

	models, err := lister.ListModels(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Fprintln(w, "No models available.")
		return nil
	}

	for _, m := range models {
		line := "Model: " + m.ID
		if m.DisplayName != "" && m.DisplayName != m.ID {
			line += " (" + m.DisplayName + ")"
		}
		if !m.Created.IsZero() {
			line += "  created " + m.Created.Local().Format(time.DateOnly)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
