// Command bookfix splits e-book text at image markers and sends the segments
// through an LLM copy-editing pass.
//
// Usage:
//
//	bookfix split -in book.html [-out DIR] [-book ID]
//	bookfix correct (-part N | -all [-parallel N]) [-out DIR] [-book ID]
//	bookfix tokens -in FILE
//	bookfix normalize -in FILE
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/bookfix/internal/config"
	"github.com/dgallion1/bookfix/internal/correct"
	"github.com/dgallion1/bookfix/internal/loader"
	"github.com/dgallion1/bookfix/internal/markup"
	"github.com/dgallion1/bookfix/internal/normalize"
	"github.com/dgallion1/bookfix/internal/pipeline"
	"github.com/dgallion1/bookfix/internal/segment"
	"github.com/dgallion1/bookfix/internal/store"
	"github.com/dgallion1/bookfix/internal/tokens"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, log); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Error("bookfix failed", "error", err)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: bookfix <split|correct|tokens|normalize> [flags]")

func run(ctx context.Context, args []string, out io.Writer, log *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg := config.Load()

	switch args[0] {
	case "split":
		return runSplit(ctx, cfg, args[1:], out, log)
	case "correct":
		return runCorrect(ctx, cfg, args[1:], out, log)
	case "tokens":
		return runTokens(cfg, args[1:], out)
	case "normalize":
		return runNormalize(cfg, args[1:], out)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func runSplit(ctx context.Context, cfg config.Config, args []string, out io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	in := fs.String("in", "", "source document (.txt .html .xhtml .md .pdf .docx)")
	outDir := fs.String("out", cfg.OutputDir, "output directory (file store)")
	book := fs.String("book", "", "book ID; empty writes to the output directory itself")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("split: -in is required")
	}
	cfg.OutputDir = *outDir
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc, err := loadFile(*in)
	if err != nil {
		return err
	}
	st, closeStore, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	seg, err := segment.New(cfg.MarkerTag)
	if err != nil {
		return err
	}

	n, err := pipeline.SplitDocument(ctx, st, seg, *book, doc)
	if err != nil {
		return err
	}
	log.Info("document split", "file", *in, "segments", n, "marker", cfg.MarkerTag)
	fmt.Fprintf(out, "%d segments written\n", n)
	return nil
}

func runCorrect(ctx context.Context, cfg config.Config, args []string, out io.Writer, log *slog.Logger) error {
	fs := flag.NewFlagSet("correct", flag.ContinueOnError)
	part := fs.Int("part", 0, "segment index to correct (1-based)")
	all := fs.Bool("all", false, "correct every stored segment")
	parallel := fs.Int("parallel", 1, "segments corrected concurrently with -all")
	outDir := fs.String("out", cfg.OutputDir, "output directory (file store)")
	book := fs.String("book", "", "book ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*part > 0) == *all {
		return errors.New("correct: exactly one of -part N or -all is required")
	}
	cfg.OutputDir = *outDir
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateCorrection(); err != nil {
		return err
	}

	st, closeStore, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	stats := correct.NewLLMStats(24 * time.Hour)
	svc, err := correct.NewService(cfg, stats)
	if err != nil {
		return err
	}
	corrector, err := pipeline.BuildCorrector(cfg, svc, log)
	if err != nil {
		return err
	}

	var results []pipeline.SegmentResult
	if *all {
		results, err = pipeline.CorrectAll(ctx, st, corrector, *book, *parallel)
	} else {
		var res *pipeline.Result
		res, err = pipeline.CorrectStored(ctx, st, corrector, *book, *part)
		results = []pipeline.SegmentResult{{Index: *part, Result: res, Err: err}}
	}

	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "segment %d: error: %v\n", r.Index, r.Err)
		case r.Result.Partial():
			fmt.Fprintf(out, "segment %d: partial, %d/%d chunks corrected, failed chunks %v\n",
				r.Index, r.Result.Succeeded, len(r.Result.Chunks), r.Result.FailedChunks)
		default:
			fmt.Fprintf(out, "segment %d: ok, %d chunks\n", r.Index, len(r.Result.Chunks))
		}
	}
	snap := stats.Snapshot()
	log.Info("correction finished", "calls", snap.Count, "avg_ms", snap.AvgMs, "outcomes", snap.Outcomes)
	return err
}

func runTokens(cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tokens", flag.ContinueOnError)
	in := fs.String("in", "", "file to measure")
	model := fs.String("model", cfg.Model, "model whose tokenizer is used")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("tokens: -in is required")
	}
	doc, err := loadFile(*in)
	if err != nil {
		return err
	}

	est := tokens.ForModel(*model)
	n, err := est.Estimate(doc)
	if err != nil {
		return fmt.Errorf("estimate tokens: %w", err)
	}
	fmt.Fprintf(out, "file: %s\ncharacters: %d\ntokens: %d (%s)\n", *in, utf8.RuneCountInString(doc), n, est.Name())
	return nil
}

func runNormalize(cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	in := fs.String("in", "", "file to normalize")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("normalize: -in is required")
	}
	doc, err := loadFile(*in)
	if err != nil {
		return err
	}

	norm, err := normalize.New(markup.HTMLParser{}, normalize.Options{InlineTags: cfg.InlineTags, BlockTags: cfg.BlockTags})
	if err != nil {
		return err
	}
	text, err := norm.Normalize(doc)
	if errors.Is(err, markup.ErrFormat) {
		text = normalize.CollapseWhitespace(doc)
	} else if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, text)
	return err
}

func loadFile(path string) (string, error) {
	l, err := loader.ForFile(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	doc, err := l.Load(f, path)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}
