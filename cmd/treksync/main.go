// Package main is the entry point for the treksync server.
//
// treksync keeps the shared documents of a group trip (trekkers, tasks,
// flights, prices, packing, chat, training) and pushes every change to the
// connected clients over WebSocket. Configuration is read from CLI flags, a
// .env file and server_config.json (JWT secret, limits).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/maruel/treksync/internal/config"
	"github.com/maruel/treksync/internal/docstore"
	"github.com/maruel/treksync/internal/logging"
	"github.com/maruel/treksync/internal/server"
	"github.com/maruel/treksync/internal/server/handlers"
	"github.com/maruel/treksync/internal/server/ratelimit"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "treksync: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	httpAddr := flag.String("http", "localhost:8080", "Address to listen on (e.g., localhost:8080, :8080, 0.0.0.0:8080)")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	requireAuth := flag.Bool("require-auth", false, "Reject requests without a token, overrides server_config.json")
	mintToken := flag.String("mint-token", "", "Print an access token for this trekker name and exit")
	tokenTTL := flag.Duration("token-ttl", server.DefaultTokenTTL, "Lifetime of tokens printed by -mint-token")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := logging.Setup()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	env, err := loadDotEnv(*dataDir)
	if err != nil {
		return err
	}
	serverCfg, err := config.LoadServerConfig(*dataDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", config.FileName, err)
	}

	// Flags win over .env values.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if !set["http"] {
		if v := env["HTTP"]; v != "" {
			*httpAddr = v
		}
	}
	if !set["log-level"] {
		if v := env["LOG_LEVEL"]; v != "" {
			*logLevel = v
		}
	}
	if !set["require-auth"] {
		if v := env["REQUIRE_AUTH"]; v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("REQUIRE_AUTH: %w", err)
			}
			*requireAuth = b
		}
	}
	if set["require-auth"] || env["REQUIRE_AUTH"] != "" {
		serverCfg.RequireAuth = *requireAuth
	}
	if err := logging.SetLevel(ll, *logLevel); err != nil {
		return err
	}

	if *mintToken != "" {
		token, err := server.MintToken(serverCfg.JWTSecret, *mintToken, *tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	// Normalize addr: ":8080" becomes "localhost:8080"
	addr := *httpAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	store, err := docstore.Open(filepath.Join(*dataDir, "documents.jsonl"), &docstore.Options{
		MaxDocumentBytes: serverCfg.Store.MaxDocumentBytes,
		CompactRatio:     serverCfg.Store.CompactRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer func() { _ = store.Close() }()

	writes := ratelimit.NewLimiter(serverCfg.RateLimits.WriteRatePerMin, time.Minute, serverCfg.RateLimits.Burst())
	defer writes.Close()

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	buildVersion, _, _, _ := getBuildInfo()
	svc := &handlers.Services{
		Store:   store,
		Config:  serverCfg,
		Writes:  writes,
		Version: buildVersion,
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(svc),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "version", buildVersion, "documents", len(store.Paths()), "requireAuth", serverCfg.RequireAuth)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		// WebSocket sessions watch ctx and close on their own; Shutdown
		// drains plain HTTP requests.
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}
