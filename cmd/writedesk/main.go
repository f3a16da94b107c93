package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"writedesk/internal/app"
	"writedesk/internal/desk"
	"writedesk/internal/httputil"
	"writedesk/internal/keystore"
	"writedesk/internal/llm"
)

const usage = `usage: writedesk <command> [flags] [args]

commands:
  settings                               show provider, storage mode and configured keys
  save [--provider P] [--mode M] [--openai-key K] [--gemini-key K]
  generate [--length short|medium|long] <topic>
  summarize [--url URL] [text | -]       "-" reads the text from stdin

Each invocation is its own session: keys saved with --mode ephemeral are
gone when the command exits.
`

const ephemeralWarning = "warning: ephemeral keys last only for this command; later commands will find no key until you run save with --mode durable"

type stdio struct {
	in       io.Reader
	out, err io.Writer
}

type builder func() (app.Deps, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := func() (app.Deps, error) {
		return app.Build(app.Options{LogOutput: os.Stderr, SingleSession: true})
	}
	os.Exit(run(ctx, os.Args[1:], stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr}, build))
}

func run(ctx context.Context, args []string, std stdio, build builder) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(std.err, usage)
		return 2
	}

	var cmd func(context.Context, app.Deps, []string, stdio) int
	switch args[0] {
	case "settings":
		cmd = settingsCmd
	case "save":
		cmd = saveCmd
	case "generate":
		cmd = generateCmd
	case "summarize":
		cmd = summarizeCmd
	default:
		fmt.Fprintf(std.err, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	deps, err := build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		return 1
	}
	defer deps.Close()
	return cmd(ctx, deps, args[1:], std)
}

func newFlagSet(name string, std stdio) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(std.err)
	return fs
}

func settingsCmd(ctx context.Context, deps app.Deps, args []string, std stdio) int {
	fs := newFlagSet("settings", std)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	s := deps.Keys("").Settings(ctx)
	fmt.Fprintf(std.out, "provider: %s\n", s.Provider)
	fmt.Fprintf(std.out, "mode:     %s\n", s.Mode)
	for _, p := range llm.Providers() {
		state := "not set"
		if s.Configured[p] {
			state = "set"
		}
		fmt.Fprintf(std.out, "%-9s %s\n", string(p)+":", state)
	}
	return 0
}

func saveCmd(ctx context.Context, deps app.Deps, args []string, std stdio) int {
	keys := deps.Keys("")
	current := keys.Settings(ctx)

	fs := newFlagSet("save", std)
	provider := fs.String("provider", string(current.Provider), "active provider (openai or gemini)")
	mode := fs.String("mode", string(current.Mode), "key storage (durable or ephemeral)")
	openaiKey := fs.String("openai-key", "", "OpenAI API key; empty clears it")
	geminiKey := fs.String("gemini-key", "", "Gemini API key; empty clears it")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	req := keystore.SaveRequest{
		Provider:  llm.Provider(strings.ToLower(strings.TrimSpace(*provider))),
		Mode:      keystore.Mode(strings.ToLower(strings.TrimSpace(*mode))),
		OpenAIKey: *openaiKey,
		GeminiKey: *geminiKey,
	}
	if err := httputil.Validator.Struct(req); err != nil {
		fmt.Fprintf(std.err, "invalid settings: %v\n", err)
		return 2
	}
	conf, err := keys.Save(ctx, req)
	if err != nil {
		deps.Log.Error("save failed", "err", err)
		fmt.Fprintln(std.err, "Could not save settings. Please try again.")
		return 1
	}
	fmt.Fprintln(std.out, conf.Message)
	if conf.Mode == keystore.ModeEphemeral {
		fmt.Fprintln(std.err, ephemeralWarning)
	}
	return 0
}

func generateCmd(ctx context.Context, deps app.Deps, args []string, std stdio) int {
	fs := newFlagSet("generate", std)
	length := fs.String("length", string(desk.LengthMedium), "article length (short, medium or long)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	req := desk.GenerateRequest{Topic: strings.Join(fs.Args(), " "), Length: *length}
	res, err := deps.Desk.Generate(ctx, deps.Keys(""), req)
	return report(std, res, err)
}

func summarizeCmd(ctx context.Context, deps app.Deps, args []string, std stdio) int {
	fs := newFlagSet("summarize", std)
	url := fs.String("url", "", "page to summarize when no text is given")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	text := strings.Join(fs.Args(), " ")
	if text == "-" {
		b, err := readAll(std.in)
		if err != nil {
			fmt.Fprintf(std.err, "read stdin: %v\n", err)
			return 1
		}
		text = b
	}
	res, err := deps.Desk.Summarize(ctx, deps.Keys(""), desk.SummarizeRequest{Text: text, URL: *url})
	return report(std, res, err)
}

func readAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	return string(b), err
}

// report prints the result text to stdout and warnings or the error to
// stderr.
func report(std stdio, res desk.Result, err error) int {
	if err != nil {
		fmt.Fprintln(std.err, desk.UserMessage(err))
		return 1
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(std.err, "warning: %s\n", w)
	}
	fmt.Fprintln(std.out, res.Text)
	return 0
}
