// Command refine runs the refinement pipeline once over a local PDF and
// writes the enhanced text, without going through the HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pdfrefine/pdfrefine/internal/chunker"
	"github.com/pdfrefine/pdfrefine/internal/config"
	"github.com/pdfrefine/pdfrefine/internal/engine"
	"github.com/pdfrefine/pdfrefine/internal/enhance"
	"github.com/pdfrefine/pdfrefine/internal/pipeline"
)

func main() {
	godotenv.Load()

	var (
		in       = flag.String("in", "", "path to the source PDF (required)")
		out      = flag.String("out", "", "output path for the enhanced text (default stdout)")
		password = flag.String("password", "", "password for encrypted documents")
		mode     = flag.String("mode", string(enhance.ModeGeneral), "enhancement mode: general, grammar, semantic, terminology")
		length   = flag.String("length", string(enhance.LengthMedium), "target length: short, medium, long")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: refine -in document.pdf [-out enhanced.txt] [-password pw] [-mode general] [-length medium]")
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.DeepSeekAPIKey == "" {
		log.Error("DEEPSEEK_API_KEY is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := enhance.NewClient(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel)
	defer client.Close()

	runner := pipeline.NewRunner(client, cfg.MaxFileBytes(), log)
	result, err := runner.Run(ctx, *in, pipeline.RunOptions{
		Password: *password,
		Chunk: chunker.Options{
			MaxChunkSize: cfg.ChunkMaxChars,
			MinChunkSize: cfg.ChunkMinChars,
		},
		Enhance: enhance.Options{
			Mode:         enhance.Mode(*mode),
			TargetLength: enhance.TargetLength(*length),
		},
		Engine: engine.Config{
			Workers:     cfg.WorkerCount,
			MaxRetries:  cfg.MaxRetries,
			BaseBackoff: cfg.RetryBaseDelay,
			MaxBackoff:  cfg.RetryMaxDelay,
			CallTimeout: cfg.CallTimeout,
			Cooldown:    cfg.RateLimitCooldown,
		},
		OnProgress: func(completed, total int) {
			fmt.Fprintf(os.Stderr, "\rchunks %d/%d", completed, total)
			if completed == total {
				fmt.Fprintln(os.Stderr)
			}
		},
	})
	if err != nil {
		log.Error("refinement failed", "error", err)
		os.Exit(1)
	}

	if result.Canceled {
		log.Warn("run canceled, writing partial result")
	}
	for _, fr := range result.FailedRanges {
		log.Warn("chunk kept original text", "start", fr.Start, "end", fr.End, "reason", fr.Reason)
	}

	if *out == "" {
		fmt.Print(result.EnhancedText)
		return
	}
	if err := os.WriteFile(*out, []byte(result.EnhancedText), 0o644); err != nil {
		log.Error("write output", "error", err)
		os.Exit(1)
	}
	log.Info("done",
		"pages", result.Document.Metadata.PageCount,
		"enhanced", result.Stats.Enhanced,
		"failed", result.Stats.Failed,
		"output", *out,
	)
}
