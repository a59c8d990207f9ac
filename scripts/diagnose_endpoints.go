package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"pablos-ai/internal/config"
	"pablos-ai/internal/infra/inference"
)

// EndpointDiagnostic is the diagnostic result for a single endpoint.
type EndpointDiagnostic struct {
	Name         string `json:"name"`
	BaseURL      string `json:"base_url"`
	Status       string `json:"status"` // "OK", "AUTH_ERROR", "RATE_LIMITED", "HTTP_ERROR", "NETWORK_ERROR", "BAD_RESPONSE", "TIMEOUT"
	ProbeCode    int    `json:"probe_code"`
	ProbeMillis  int64  `json:"probe_ms"`
	ChatMillis   int64  `json:"chat_ms,omitempty"`
	ChatSample   string `json:"chat_sample,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func main() {
	var (
		withChat bool
		timeout  time.Duration
		report   string
	)
	flag.BoolVar(&withChat, "chat", false, "Also send one short chat request per endpoint (uses tokens)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Deadline per endpoint")
	flag.StringVar(&report, "report", "endpoint_diagnostics.json", "JSON report path (empty to skip)")
	flag.Parse()

	cfg, err := config.LoadInferenceConfig()
	if err != nil {
		log.Fatalf("Failed to load inference configuration: %v", err)
	}

	log.Printf("Diagnosing %d endpoints...\n", len(cfg.Endpoints))

	diagnostics := make([]EndpointDiagnostic, 0, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		log.Printf("[%d/%d] Diagnosing: %s", i+1, len(cfg.Endpoints), ep.Name)
		diagnostics = append(diagnostics, diagnoseEndpoint(*cfg, ep, withChat, timeout))
	}

	generateReport(diagnostics)
	if report != "" {
		generateJSONReport(diagnostics, report)
	}
}

// diagnoseEndpoint runs a client restricted to ep, without retries or
// fallback, so every failure is reported as it happened.
func diagnoseEndpoint(base config.InferenceConfig, ep config.EndpointConfig, withChat bool, timeout time.Duration) EndpointDiagnostic {
	diag := EndpointDiagnostic{Name: ep.Name, BaseURL: ep.BaseURL}

	cfg := base
	cfg.Endpoints = []config.EndpointConfig{ep}
	cfg.FallbackEnabled = false
	cfg.Retry.ChatMaxAttempts = 1
	cfg.CircuitBreaker.Enabled = false

	client, err := inference.NewClient(&cfg, inference.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		diag.Status = "CONFIG_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Failed to close client: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	results, err := client.Probe(ctx)
	diag.ProbeMillis = time.Since(start).Milliseconds()
	if err != nil {
		diag.Status = "NETWORK_ERROR"
		diag.ErrorMessage = err.Error()
		return diag
	}
	if len(results) == 1 {
		r := results[0]
		diag.ProbeCode = r.StatusCode
		if !r.Healthy {
			diag.Status = statusFromCode(r.StatusCode)
			diag.ErrorMessage = r.Error
			return diag
		}
	}

	if withChat {
		start = time.Now()
		reply, err := client.GenerateChatResponse(ctx, "Reply with the single word: pong", 0)
		diag.ChatMillis = time.Since(start).Milliseconds()
		if err != nil {
			diag.Status = statusFromError(err)
			diag.ErrorMessage = err.Error()
			return diag
		}
		diag.ChatSample = truncate(reply.Text, 60)
	}

	diag.Status = "OK"
	return diag
}

func statusFromCode(code int) string {
	switch {
	case code == 0:
		return "NETWORK_ERROR"
	case code == 401 || code == 403:
		return "AUTH_ERROR"
	case code == 429:
		return "RATE_LIMITED"
	default:
		return "HTTP_ERROR"
	}
}

func statusFromError(err error) string {
	var callErr *inference.CallError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, inference.ErrResponseFormat):
		return "BAD_RESPONSE"
	case errors.As(err, &callErr):
		return statusFromCode(callErr.StatusCode)
	default:
		return "HTTP_ERROR"
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

func generateReport(diagnostics []EndpointDiagnostic) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("ENDPOINT DIAGNOSTIC REPORT")
	fmt.Println(strings.Repeat("=", 80))

	ok := 0
	for _, d := range diagnostics {
		if d.Status == "OK" {
			ok++
		}
		fmt.Printf("%-14s %-14s probe=%-4d %6dms  %s\n", d.Name, d.Status, d.ProbeCode, d.ProbeMillis, d.BaseURL)
		if d.ChatSample != "" {
			fmt.Printf("%-14s chat %dms: %q\n", "", d.ChatMillis, d.ChatSample)
		}
		if d.ErrorMessage != "" {
			fmt.Printf("%-14s error: %s\n", "", truncate(d.ErrorMessage, 120))
		}
	}

	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Healthy: %d/%d\n", ok, len(diagnostics))
}

func generateJSONReport(diagnostics []EndpointDiagnostic, path string) {
	data, err := json.MarshalIndent(diagnostics, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal JSON report: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("Failed to write JSON report: %v", err)
		return
	}
	log.Printf("JSON report written to %s", path)
}
