// ABOUTME: Entry point for the steward orchestration service
// ABOUTME: Wires config, backends, oracle, store, and the webhook server

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/oakmail/steward/internal/config"
	"github.com/oakmail/steward/internal/dedupe"
	"github.com/oakmail/steward/internal/mail"
	"github.com/oakmail/steward/internal/oracle"
	"github.com/oakmail/steward/internal/orchestrator"
	"github.com/oakmail/steward/internal/registry"
	"github.com/oakmail/steward/internal/rip"
	"github.com/oakmail/steward/internal/server"
	"github.com/oakmail/steward/internal/store"
	"github.com/oakmail/steward/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
      _                             _
  ___| |_ _____      ____ _ _ __ __| |
 / __| __/ _ \ \ /\ / / _' | '__/ _' |
 \__ \ ||  __/\ V  V / (_| | | | (_| |
 |___/\__\___| \_/\_/ \__,_|_|  \__,_|
`

// getConfigPath returns the path to the steward config file.
// Priority: STEWARD_CONFIG env var > XDG_CONFIG_HOME/steward/steward.yaml > ~/.config/steward/steward.yaml
func getConfigPath() string {
	if envPath := os.Getenv("STEWARD_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "steward.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "steward", "steward.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: steward <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the orchestration service")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check service health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Backends: %s\n", strings.Join(cfg.BackendNames(), ", "))
	fmt.Println()

	logger.Info("starting steward",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backends", len(cfg.Backends),
	)

	// Transport and protocol client for the tool backends.
	invoker := transport.NewHTTPInvoker(cfg.Endpoints(), cfg.Loop.CallTimeout, logger)
	client := rip.NewClient(invoker, logger)

	// Discover the operation catalog once at startup.
	reg := registry.Discover(ctx, cfg.BackendNames(), client, logger)
	logger.Info("operation catalog ready", "operations", reg.Len())

	// Oracle.
	gemini, err := oracle.NewGemini(ctx, cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.SystemPrompt, logger)
	if err != nil {
		return fmt.Errorf("creating oracle: %w", err)
	}

	// Transcript store.
	var st store.Store = store.NopStore{}
	if cfg.Store.Path != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		st = sqlStore
	}
	defer st.Close()

	cache := dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxSize)
	defer cache.Close()

	loop := orchestrator.NewLoop(gemini, reg, client, logger,
		orchestrator.WithMaxRounds(cfg.Loop.MaxRounds),
		orchestrator.WithCorrelationField(cfg.Loop.CorrelationField),
		orchestrator.WithRecorder(st),
	)

	var mb server.Mailbox
	if cfg.Mail.Enabled() {
		mb = mail.NewClient(cfg.Mail, logger)
	} else {
		logger.Info("mail collaborator disabled, runs seed from message ids only")
	}

	srv := server.New(loop, st, cache, mb, server.Options{
		ClientState:         cfg.Webhook.ClientState,
		AllowedSenderDomain: cfg.Mail.AllowedSenderDomain,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("steward configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	defaultConfigPath := getConfigPath()

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Backend Configuration ---")
	backendName := prompt(reader, "First backend name", "email-tools")
	backendURL := prompt(reader, "First backend URL", "http://localhost:9001/rpc")

	fmt.Println("\n--- Oracle Configuration ---")
	model := prompt(reader, "Model", "gemini-2.0-flash")
	apiKey := prompt(reader, "API key (or ${ENV_VAR} reference)", "${GEMINI_API_KEY}")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# steward configuration\n")
	cfg.WriteString("# Generated by steward init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("backends:\n")
	cfg.WriteString(fmt.Sprintf("  - name: \"%s\"\n", backendName))
	cfg.WriteString(fmt.Sprintf("    url: \"%s\"\n", backendURL))
	cfg.WriteString("\n")

	cfg.WriteString("oracle:\n")
	cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
	cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", apiKey))
	cfg.WriteString("\n")

	cfg.WriteString("loop:\n")
	cfg.WriteString("  max_rounds: 10\n")
	cfg.WriteString("  call_timeout: \"30s\"\n")
	cfg.WriteString("  correlation_field: \"message_id\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("dedupe:\n")
	cfg.WriteString("  ttl: \"10m\"\n")
	cfg.WriteString("  max_size: 1024\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the service:")
	fmt.Printf("  steward serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
