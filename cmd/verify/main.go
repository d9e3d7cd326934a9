package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/0xmhha/verify-go/api"
	"github.com/0xmhha/verify-go/client"
	"github.com/0xmhha/verify-go/explorer"
	"github.com/0xmhha/verify-go/internal/config"
	"github.com/0xmhha/verify-go/internal/logger"
	"github.com/0xmhha/verify-go/solc"
	"github.com/0xmhha/verify-go/storage"
	"github.com/0xmhha/verify-go/verify"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// run carries the whole process lifecycle so deferred cleanup runs
// before the exit code is surfaced.
func run() int {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")

		rpcEndpoint  = flag.String("rpc", "", "Ethereum RPC endpoint URL")
		networkName  = flag.String("network", "", "Network name")
		artifactsDir = flag.String("artifacts", "", "Build-info artifacts directory")
		compilers    = flag.String("compilers", "", "Comma-separated list of available solc versions")
		dbPath       = flag.String("db", "", "Verification record database path (enables persistence)")
		logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat    = flag.String("log-format", "", "Log format (json, console)")

		address         = flag.String("address", "", "Deployed contract address to verify")
		contractName    = flag.String("contract", "", "Fully qualified contract name (sourceFile:ContractName)")
		libraries       = flag.String("libraries", "", "Comma-separated library addresses (Name=0x... or file.sol:Name=0x...)")
		constructorArgs = flag.String("constructor-args", "", "ABI-encoded constructor arguments (hex)")

		serve      = flag.Bool("serve", false, "Run as an HTTP service instead of verifying one contract")
		listenAddr = flag.String("listen", "", "HTTP service listen address")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("verify-go version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		return 0
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	applyFlags(cfg, *rpcEndpoint, *networkName, *artifactsDir, *compilers, *dbPath, *logLevel, *logFormat)
	if *serve {
		cfg.API.Enabled = true
	}
	if *listenAddr != "" {
		cfg.API.ListenAddr = *listenAddr
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	serveMode := cfg.API.Enabled && *address == ""
	if !serveMode && *address == "" {
		fmt.Fprintln(os.Stderr, "Either --address or --serve is required")
		return 1
	}

	suppliedLibraries, err := parseLibraries(*libraries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --libraries: %v\n", err)
		return 1
	}

	log, err := initLogger(cfg.Log.Level, firstNonEmpty(*logFormat, cfg.Log.Encoding))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting verify-go",
		zap.String("version", version),
		zap.String("network", cfg.Network.Name),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("artifacts_dir", cfg.Artifacts.Dir),
		zap.Int("explorers", len(cfg.Explorers)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ethClient, err := client.NewClient(&client.Config{
		Endpoint: cfg.RPC.Endpoint,
		Timeout:  cfg.RPC.Timeout,
		Logger:   log,
	})
	if err != nil {
		log.Error("failed to create Ethereum client", zap.Error(err))
		return 1
	}
	defer ethClient.Close()

	artifacts, err := solc.NewFSArtifactStore(cfg.Artifacts.Dir, log)
	if err != nil {
		log.Error("failed to load artifacts", zap.Error(err))
		return 1
	}

	var records storage.RecordWriter
	if cfg.Database.Enabled {
		store, err := storage.NewPebbleStore(&cfg.Database.Pebble, log)
		if err != nil {
			log.Error("failed to open record store", zap.Error(err))
			return 1
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error("failed to close record store", zap.Error(err))
			}
		}()
		records = store
	}

	metrics := verify.NewMetrics()
	backends := make([]verify.Backend, 0, len(cfg.Explorers))
	for i := range cfg.Explorers {
		backendCfg := cfg.Explorers[i]
		explorerClient, err := explorer.NewClient(&backendCfg, log)
		if err != nil {
			log.Error("failed to create explorer client",
				zap.String("explorer", backendCfg.Name),
				zap.Error(err))
			return 1
		}

		orchestrator := verify.NewOrchestrator(verify.Config{
			Network:          cfg.Network.Name,
			CompilerVersions: cfg.Verify.CompilerVersions,
			SettleDelay:      cfg.Verify.SettleDelay,
		}, ethClient, explorerClient, artifacts, log, metrics)

		backends = append(backends, verify.Backend{Name: backendCfg.Name, Orchestrator: orchestrator})
	}

	if serveMode {
		return runServer(ctx, cfg, backends, records, log)
	}

	return runOnce(ctx, cfg, backends, records, &verify.Request{
		Address:              *address,
		ContractName:         *contractName,
		Libraries:            suppliedLibraries,
		ConstructorArguments: *constructorArgs,
	}, log)
}

// runOnce verifies a single contract against every back-end and returns
// the process exit code.
func runOnce(ctx context.Context, cfg *config.Config, backends []verify.Backend, records storage.RecordWriter, req *verify.Request, log *zap.Logger) int {
	results := verify.VerifyAll(ctx, backends, req)

	exitCode := 0
	for _, result := range results {
		if result.Err != nil {
			exitCode = 1
			log.Error("verification failed",
				zap.String("explorer", result.Backend),
				zap.Error(result.Err))
		} else {
			log.Info("verification succeeded",
				zap.String("explorer", result.Backend),
				zap.String("contract", result.Result.ContractName),
				zap.Bool("already_verified", result.Result.AlreadyVerified),
				zap.String("url", result.Result.URL))
		}
		persistResult(ctx, cfg.Network.Name, req, result, records, log)
		printResult(result)
	}
	return exitCode
}

// runServer runs the HTTP service until the context is cancelled and
// returns the process exit code.
func runServer(ctx context.Context, cfg *config.Config, backends []verify.Backend, records storage.RecordWriter, log *zap.Logger) int {
	server, err := api.NewServer(&api.Config{
		ListenAddr:      cfg.API.ListenAddr,
		ShutdownTimeout: 30 * time.Second,
	}, cfg.Network.Name, backends, records, log)
	if err != nil {
		log.Error("failed to create API server", zap.Error(err))
		return 1
	}

	errChan := make(chan error, 1)
	go func() { errChan <- server.Start() }()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errChan:
		if err != nil {
			log.Error("API server failed", zap.Error(err))
			return 1
		}
		return 0
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop API server gracefully", zap.Error(err))
		return 1
	}
	return 0
}

func persistResult(ctx context.Context, network string, req *verify.Request, result verify.BackendResult, records storage.RecordWriter, log *zap.Logger) {
	if records == nil {
		return
	}

	record := &storage.VerificationRecord{
		Network:    network,
		Address:    common.HexToAddress(req.Address),
		Explorer:   result.Backend,
		VerifiedAt: time.Now().UTC(),
	}
	if result.Err != nil {
		record.Message = result.Err.Error()
	}
	if result.Result != nil {
		record.ContractName = result.Result.ContractName
		record.CompilerVersion = result.Result.CompilerVersion
		record.Success = result.Result.Success
		record.AlreadyVerified = result.Result.AlreadyVerified
		record.URL = result.Result.URL
		record.UndetectableLibraries = result.Result.UndetectableLibraries
		if record.Message == "" {
			record.Message = result.Result.Message
		}
	}

	if err := records.SetRecord(ctx, record); err != nil {
		log.Warn("failed to persist verification record",
			zap.String("explorer", result.Backend),
			zap.Error(err))
	}
}

// printResult writes a human-readable summary to stdout.
func printResult(result verify.BackendResult) {
	switch {
	case result.Err != nil:
		fmt.Printf("[%s] FAILED: %v\n", result.Backend, result.Err)
	case result.Result.AlreadyVerified:
		fmt.Printf("[%s] already verified", result.Backend)
		if result.Result.URL != "" {
			fmt.Printf(" (%s)", result.Result.URL)
		}
		fmt.Println()
	default:
		fmt.Printf("[%s] verified %s with %s", result.Backend, result.Result.ContractName, result.Result.CompilerVersion)
		if result.Result.URL != "" {
			fmt.Printf(" (%s)", result.Result.URL)
		}
		fmt.Println()
		if len(result.Result.UndetectableLibraries) > 0 {
			fmt.Printf("[%s] note: addresses of libraries [%s] could not be validated against the deployed bytecode\n",
				result.Backend, strings.Join(result.Result.UndetectableLibraries, ", "))
		}
	}
}

// loadConfig loads configuration from .env, file and environment, leaving
// validation for after the flag overrides.
func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration
func applyFlags(cfg *config.Config, rpcEndpoint, networkName, artifactsDir, compilers, dbPath, logLevel, logFormat string) {
	if rpcEndpoint != "" {
		cfg.RPC.Endpoint = rpcEndpoint
	}
	if networkName != "" {
		cfg.Network.Name = networkName
	}
	if artifactsDir != "" {
		cfg.Artifacts.Dir = artifactsDir
	}
	if compilers != "" {
		var versions []string
		for _, v := range strings.Split(compilers, ",") {
			if v = strings.TrimSpace(v); v != "" {
				versions = append(versions, v)
			}
		}
		cfg.Verify.CompilerVersions = versions
	}
	if dbPath != "" {
		cfg.Database.Enabled = true
		cfg.Database.Pebble.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Encoding = logFormat
	}
}

// parseLibraries parses "Name=0x...,file.sol:Name=0x..." into a map.
func parseLibraries(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}

	libraries := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, addr, ok := strings.Cut(pair, "=")
		if !ok || name == "" || addr == "" {
			return nil, fmt.Errorf("entry %q must have the form Name=0xaddress", pair)
		}
		if _, dup := libraries[name]; dup {
			return nil, fmt.Errorf("library %q given more than once", name)
		}
		libraries[name] = addr
	}
	return libraries, nil
}

// initLogger initializes the logger based on configuration
func initLogger(level, format string) (*zap.Logger, error) {
	if format == "json" || format == "production" {
		return logger.NewWithConfig(&logger.Config{Level: level, Encoding: "json"})
	}

	return logger.NewWithConfig(&logger.Config{
		Level:       level,
		Encoding:    "console",
		Development: true,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
