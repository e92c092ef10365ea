/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the quota ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Build the engine, importer and backfill seeder from the profile
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: quota.db)
            Use ":memory:" for an in-memory database
  -profile  Path to a JSON building profile (default: built-in profile)
  -seed     Seed the default building and members on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database, seeding the directory on first start
  ./server -db="./data/quota.db" -seed

  # Run with a custom building profile
  ./server -profile="./profiles/other-building.json"

ENVIRONMENT:
  PORT and DB_PATH override the flag defaults; both can come from a .env
  file in the working directory.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gestor/quota-engine/api"
	"github.com/gestor/quota-engine/backfill"
	"github.com/gestor/quota-engine/factory"
	"github.com/gestor/quota-engine/importer"
	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/store/sqlite"
)

func main() {
	// .env is optional; flags and real environment win.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "quota.db"), "SQLite database path")
	profilePath := flag.String("profile", "", "JSON building profile (default: built-in)")
	seed := flag.Bool("seed", false, "seed the default building and members on startup")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	profile, err := loadProfile(*profilePath)
	if err != nil {
		logger.Error("failed to load profile", "path", *profilePath, "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *seed {
		if err := seedDirectory(store); err != nil {
			logger.Error("failed to seed directory", "error", err)
			os.Exit(1)
		}
		logger.Info("directory seeded", "building", factory.DefaultBuilding().ID)
	}

	engine := ledger.NewEngine(store, store, profile.Tiers)
	identifier := importer.NewIdentifier(profile.Aliases)
	imp := importer.New(engine, store, store, store, identifier, profile.Categories, logger)
	seeder := backfill.NewSeeder(engine, store, store, store, profile.Tiers, logger)

	handler := &api.Handler{
		Store:     store,
		Members:   store,
		Buildings: store,
		Directory: store,
		Engine:    engine,
		Importer:  imp,
		Seeder:    seeder,
		Profile:   profile,
		Logger:    logger,
	}
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadProfile(path string) (*factory.Profile, error) {
	if path == "" {
		return factory.DefaultProfile(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return factory.ParseProfile(string(raw))
}

func seedDirectory(store *sqlite.Store) error {
	ctx := context.Background()
	if err := store.SaveBuilding(ctx, factory.DefaultBuilding()); err != nil {
		return err
	}
	for _, m := range factory.DefaultMembers() {
		if err := store.SaveMember(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
