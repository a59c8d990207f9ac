// Package main provides a CLI command that sends one chat message through the
// inference client.
// Usage: pablos-ask "message" [--user N] [--raw] [--temperature T] [--output json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"pablos-ai/internal/config"
	"pablos-ai/internal/infra/adapter/persistence/memory"
	"pablos-ai/internal/infra/inference"
	"pablos-ai/internal/observability/logging"
	chatUC "pablos-ai/internal/usecase/chat"
)

// AskOutput represents the JSON output format of one chat exchange.
type AskOutput struct {
	Message  string `json:"message"`
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
	Duration string `json:"duration"`
}

func main() {
	var (
		userID       int64
		raw          bool
		temperature  float64
		timeout      time.Duration
		outputFormat string
	)

	flag.Int64Var(&userID, "user", 1, "User id the message is attributed to")
	flag.BoolVar(&raw, "raw", false, "Send the message as the whole prompt, without the persona")
	flag.Float64Var(&temperature, "temperature", 0.8, "Sampling temperature")
	flag.DurationVar(&timeout, "timeout", 90*time.Second, "Overall deadline")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: Message is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: pablos-ask \"message\" [--user N] [--raw] [--temperature T] [--output json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  pablos-ask \"halo pablo\"")
		fmt.Fprintln(os.Stderr, "  pablos-ask --raw \"Translate to English: selamat pagi\"")
		fmt.Fprintln(os.Stderr, "  INFERENCE_USE_MOCK=true pablos-ask \"tes\" --output json")
		os.Exit(1)
	}
	message := args[0]

	logger := initLogger()

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

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("sending message",
		slog.Int64("user_id", userID),
		slog.Bool("raw", raw))

	start := time.Now()
	reply, err := ask(ctx, provider, userID, message, raw, temperature, logger)
	if err != nil {
		logger.Error("ask failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Ask failed: %v\n", err)
		os.Exit(1)
	}

	out := AskOutput{
		Message:  message,
		Reply:    reply.Text,
		Fallback: reply.Fallback,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if outputFormat == "json" {
		outputJSON(out)
	} else {
		outputText(out)
	}
}

// ask sends message either verbatim or through the chat use case, which adds
// the persona prompt.
func ask(ctx context.Context, provider inference.Service, userID int64, message string, raw bool, temperature float64, logger *slog.Logger) (inference.ChatReply, error) {
	if raw {
		return provider.GenerateChatResponse(ctx, message, temperature)
	}

	chatCfg := chatUC.DefaultConfig()
	chatCfg.Temperature = temperature
	chatCfg.CacheTTL = 0
	chatCfg.UserCooldown = 0
	svc := chatUC.NewService(provider, memory.NewHistoryRepo(0), chatCfg, chatUC.WithLogger(logger))

	reply, err := svc.Chat(ctx, userID, message)
	if err != nil {
		if errors.Is(err, chatUC.ErrInvalidUser) {
			return inference.ChatReply{}, fmt.Errorf("--user must be positive: %w", err)
		}
		return inference.ChatReply{}, err
	}
	return inference.ChatReply{Text: reply.Text, Fallback: reply.Fallback}, nil
}

// outputText prints the reply in human-readable format.
func outputText(out AskOutput) {
	fmt.Printf("You: %s\n\n", out.Message)
	fmt.Printf("Babu Pablo: %s\n", out.Reply)
	if out.Fallback {
		fmt.Printf("\n(fallback answer, every endpoint failed; took %s)\n", out.Duration)
	}
}

// outputJSON prints the reply in JSON format.
func outputJSON(out AskOutput) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// initLogger initializes a structured logger on stderr so stdout stays clean.
func initLogger() *slog.Logger {
	logger := logging.New(os.Stderr, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)
	return logger
}
