// ABOUTME: Entry point for the mosaicd canvas decision engine
// ABOUTME: Authorizes, rate-limits, and settles tile color changes

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
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

	"github.com/mosaicgrid/mosaicd/internal/allocator"
	"github.com/mosaicgrid/mosaicd/internal/api"
	"github.com/mosaicgrid/mosaicd/internal/auth"
	"github.com/mosaicgrid/mosaicd/internal/canvas"
	"github.com/mosaicgrid/mosaicd/internal/config"
	"github.com/mosaicgrid/mosaicd/internal/engine"
	"github.com/mosaicgrid/mosaicd/internal/events"
	"github.com/mosaicgrid/mosaicd/internal/metrics"
	"github.com/mosaicgrid/mosaicd/internal/minter"
	"github.com/mosaicgrid/mosaicd/internal/oracle"
	"github.com/mosaicgrid/mosaicd/internal/perm"
	"github.com/mosaicgrid/mosaicd/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                _          _
 _ __ ___   ___  ___  __ _(_) ___ __| |
| '_ ' _ \ / _ \/ __|/ _' | |/ __/ _' |
| | | | | | (_) \__ \ (_| | | (_| (_| |
|_| |_| |_|\___/|___/\__,_|_|\___\__,_|
`

// getConfigPath returns the path to the mosaicd config file.
// Priority: MOSAICD_CONFIG env var > XDG_CONFIG_HOME/mosaicd/mosaicd.yaml > ~/.config/mosaicd/mosaicd.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MOSAICD_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "mosaicd.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mosaicd", "mosaicd.yaml")
}

// getDataPath returns the path to the mosaicd data directory.
// Priority: XDG_DATA_HOME/mosaicd > ~/.local/share/mosaicd
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "mosaicd")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mosaicd <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                   Start the decision engine")
		fmt.Println("  init                    Create a new config file interactively")
		fmt.Println("  bootstrap --admin NAME  Create config, database, and admin token")
		fmt.Println("  health                  Check engine health")
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
	case "bootstrap":
		err = runBootstrap(ctx)
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

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	if cfg.Registry.BaseURL != "" {
		green.Print("    ▶ ")
		fmt.Printf("Registry: %s\n", cfg.Registry.BaseURL)
	}
	fmt.Println()

	logger.Info("starting mosaicd",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = st.Close() }()

	var oracleClient oracle.Client
	if cfg.Registry.BaseURL != "" {
		oracleClient = oracle.NewHTTPClient(cfg.Registry.BaseURL)
	} else {
		logger.Warn("no registry base_url configured, using in-memory oracle")
		oracleClient = oracle.NewStatic()
	}

	grid := canvas.DefaultGrid()
	if cfg.Canvas.MaxCoordinate > 0 {
		grid = canvas.Grid{Max: cfg.Canvas.MaxCoordinate}
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector, err = metrics.NewCollector(nil)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
	}

	broadcaster := events.NewBroadcaster(logger)
	defer broadcaster.Close()

	permSvc := perm.NewService(st, oracleClient, logger)
	eng := engine.New(st, permSvc, oracleClient, grid, broadcaster, collector, nil, logger)
	mnt := minter.New(st, grid, allocator.ClockSeeder{}, nil, broadcaster, collector, logger)

	if err := eng.EnsureConfig(ctx, &store.EngineConfig{
		Admin:               cfg.Engine.Admin,
		Registry:            cfg.Registry.Identity,
		ColorChangeFee:      cfg.Engine.ColorChangeFee,
		RateLimit:           cfg.Engine.RateLimit,
		RateLimitWindow:     cfg.Engine.RateLimitWindow,
		RequiresPayment:     cfg.Engine.RequiresPayment,
		RateLimitingEnabled: cfg.Engine.RateLimitingEnabled,
		RoyaltyPercent:      cfg.Engine.RoyaltyPercent,
		MintPrice:           cfg.Engine.MintPrice,
	}); err != nil {
		return fmt.Errorf("seeding engine config: %w", err)
	}

	if collector != nil {
		if count, err := st.CountClaims(ctx); err == nil {
			collector.SetTilesClaimed(count)
		}
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	wsServer := events.NewWSServer(broadcaster, logger)
	apiServer := api.NewServer(eng, permSvc, mnt, verifier, wsServer, collector, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: apiServer.Routes(),
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
	return httpServer.Shutdown(shutdownCtx)
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

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
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

// runBootstrap performs first-time setup of the engine:
// 1. Creates config file with random JWT secret (if not exists)
// 2. Opens the database and seeds the engine config
// 3. Generates a JWT token for the admin
//
// This is a one-command setup: mosaicd bootstrap --admin "admin-identity"
func runBootstrap(ctx context.Context) error {
	// Parse args with explicit error handling
	// Supports both "--admin value" and "--admin=value" formats
	var adminIdentity string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--admin" || arg == "-a":
			if i+1 >= len(args) {
				return fmt.Errorf("--admin requires a value")
			}
			adminIdentity = args[i+1]
			i++
		case strings.HasPrefix(arg, "--admin="):
			adminIdentity = strings.TrimPrefix(arg, "--admin=")
		case strings.HasPrefix(arg, "-a="):
			adminIdentity = strings.TrimPrefix(arg, "-a=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	adminIdentity = strings.TrimSpace(adminIdentity)
	if adminIdentity == "" {
		return fmt.Errorf("--admin flag is required")
	}

	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "mosaicd.db")

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	// Check if config exists, create if not
	var cfg *config.Config
	var jwtSecret string

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Generate random JWT secret
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)

		// Create config directory
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		// Create data directory
		if err := os.MkdirAll(dataPath, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		// Write config file
		configContent := fmt.Sprintf(`# mosaicd configuration
# Generated by mosaicd bootstrap

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

auth:
  jwt_secret: "%s"

registry:
  base_url: ""
  identity: "registry"

engine:
  admin: "%s"
  color_change_fee: 100000
  rate_limit: 3
  rate_limit_window: 3600
  requires_payment: true
  rate_limiting_enabled: true
  royalty_percent: 30
  mint_price: 1000000

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "/metrics"
`, dbPath, jwtSecret, adminIdentity)

		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}

		green.Printf("  ✓ Created config: %s\n", configPath)

		// Load the config we just created
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		// Config exists, load it
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// Check JWT secret is configured
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("jwt_secret not configured in %s (required for bootstrap)", configPath)
		}
		jwtSecret = cfg.Auth.JWTSecret

		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	// Open the store and seed the engine config
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	if _, err := st.GetEngineConfig(ctx); err == nil {
		return fmt.Errorf("bootstrap already complete: engine config exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("checking engine config: %w", err)
	}

	engineCfg := &store.EngineConfig{
		Admin:               cfg.Engine.Admin,
		Registry:            cfg.Registry.Identity,
		ColorChangeFee:      cfg.Engine.ColorChangeFee,
		RateLimit:           cfg.Engine.RateLimit,
		RateLimitWindow:     cfg.Engine.RateLimitWindow,
		RequiresPayment:     cfg.Engine.RequiresPayment,
		RateLimitingEnabled: cfg.Engine.RateLimitingEnabled,
		RoyaltyPercent:      cfg.Engine.RoyaltyPercent,
		MintPrice:           cfg.Engine.MintPrice,
	}
	if err := st.PutEngineConfig(ctx, engineCfg); err != nil {
		return fmt.Errorf("seeding engine config: %w", err)
	}

	green.Printf("  ✓ Seeded engine config (admin: %s)\n", engineCfg.Admin)

	// Generate JWT token for the admin
	verifier := auth.NewJWTVerifier([]byte(jwtSecret))

	// Default TTL: 30 days
	tokenTTL := 30 * 24 * time.Hour
	expiresAt := time.Now().Add(tokenTTL).UTC()

	token, err := verifier.Generate(engineCfg.Admin, tokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	// Save token to file for CLI tools to read
	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	// Print results
	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin")
	cyan.Println("  -----")
	fmt.Printf("  Identity: %s\n", engineCfg.Admin)
	fmt.Printf("  Token:    %s (expires %s)\n", tokenPath, expiresAt.Format("Jan 02, 2006"))
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    mosaicd serve          # start the engine")
	fmt.Println("    mosaic-admin config    # verify engine config")
	fmt.Println()

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("mosaicd configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "mosaicd.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Registry
	fmt.Println("\n--- Token Registry ---")
	registryURL := prompt(reader, "Registry base URL (empty for in-memory oracle)", "")
	registryIdentity := prompt(reader, "Registry identity", "registry")

	// Engine defaults
	fmt.Println("\n--- Engine Defaults ---")
	adminIdentity := prompt(reader, "Admin identity", "admin")
	colorChangeFee := prompt(reader, "Color change fee (base units)", "100000")
	rateLimit := prompt(reader, "Rate limit (changes per window)", "3")
	rateLimitWindow := prompt(reader, "Rate limit window (seconds)", "3600")
	royaltyPercent := prompt(reader, "Platform royalty percent", "30")
	mintPrice := prompt(reader, "Mint price (base units)", "1000000")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# mosaicd configuration\n")
	cfg.WriteString("# Generated by mosaicd init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString("  jwt_secret: \"${MOSAICD_JWT_SECRET}\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("registry:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", registryURL))
	cfg.WriteString(fmt.Sprintf("  identity: \"%s\"\n", registryIdentity))
	cfg.WriteString("\n")

	cfg.WriteString("engine:\n")
	cfg.WriteString(fmt.Sprintf("  admin: \"%s\"\n", adminIdentity))
	cfg.WriteString(fmt.Sprintf("  color_change_fee: %s\n", colorChangeFee))
	cfg.WriteString(fmt.Sprintf("  rate_limit: %s\n", rateLimit))
	cfg.WriteString(fmt.Sprintf("  rate_limit_window: %s\n", rateLimitWindow))
	cfg.WriteString("  requires_payment: true\n")
	cfg.WriteString("  rate_limiting_enabled: true\n")
	cfg.WriteString(fmt.Sprintf("  royalty_percent: %s\n", royaltyPercent))
	cfg.WriteString(fmt.Sprintf("  mint_price: %s\n", mintPrice))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  mosaicd serve\n")

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
