// Package main provides a CLI command that generates one image and writes it
// to a file.
// Usage: pablos-imagine "description" [-o out.png] [--user N]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"pablos-ai/internal/config"
	"pablos-ai/internal/infra/adapter/persistence/memory"
	"pablos-ai/internal/infra/inference"
	"pablos-ai/internal/observability/logging"
	chatUC "pablos-ai/internal/usecase/chat"
)

func main() {
	var (
		userID  int64
		outPath string
		timeout time.Duration
	)

	flag.Int64Var(&userID, "user", 1, "User id the request is attributed to")
	flag.StringVar(&outPath, "o", "", "Output file (default: image.<ext> from the detected type)")
	flag.DurationVar(&timeout, "timeout", 3*time.Minute, "Overall deadline")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: Description is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: pablos-imagine \"description\" [-o out.png] [--user N]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  pablos-imagine \"kucing oren naik motor\"")
		fmt.Fprintln(os.Stderr, "  pablos-imagine \"sunset di Bali\" -o bali.png")
		os.Exit(1)
	}
	description := args[0]

	logger := logging.New(os.Stderr, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	cfg, err := config.LoadInferenceConfig()
	if err != nil {
		logger.Error("failed to load inference configuration", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to load inference configuration: %v\n", err)
		os.Exit(1)
	}

	provider, err := inference.New(cfg, inference.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create inference client", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to create inference client: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := provider.Close(); closeErr != nil {
			logger.Error("failed to close inference client", slog.Any("error", closeErr))
		}
	}()

	chatCfg := chatUC.DefaultConfig()
	chatCfg.CacheTTL = 0
	chatCfg.UserCooldown = 0
	svc := chatUC.NewService(provider, memory.NewHistoryRepo(0), chatCfg, chatUC.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	img, err := svc.Imagine(ctx, userID, description)
	if err != nil {
		logger.Error("imagine failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Could not generate image: %v\n", err)
		os.Exit(1)
	}

	if outPath == "" {
		outPath = "image" + extension(img.MIMEType)
	}
	if err := os.WriteFile(outPath, img.Data, 0o644); err != nil {
		logger.Error("failed to write image", slog.String("path", outPath), slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to write %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Prompt: %s\n", img.Prompt)
	fmt.Printf("Wrote %s (%s, %d bytes) in %s\n",
		outPath, img.MIMEType, len(img.Data), time.Since(start).Round(time.Millisecond))
}

// extension maps the detected image type to a file extension.
func extension(mimeType string) string {
	if mt := mimetype.Lookup(mimeType); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ".png"
}
