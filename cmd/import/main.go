/*
main.go - Bank statement import CLI

PURPOSE:
  Imports a bank statement CSV export into the quota ledger from the command
  line, for operators who batch-process statements without going through the
  HTTP API.

USAGE:
  ./import -db="./data/quota.db" statement.csv

FLAGS:
  -db        SQLite database path (default: quota.db)
  -profile   Path to a JSON building profile (default: built-in profile)
  -backfill  Run the historical backfill plan instead of importing a CSV

EXIT CODES:
  0  batch processed (per-row failures are reported in the summary)
  1  fatal error: bad arguments, no building configured, unreadable file

SEE ALSO:
  - importer/importer.go: The row pipeline
  - backfill/backfill.go: The historical plan
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/gestor/quota-engine/backfill"
	"github.com/gestor/quota-engine/factory"
	"github.com/gestor/quota-engine/importer"
	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", envStr("DB_PATH", "quota.db"), "SQLite database path")
	profilePath := flag.String("profile", "", "JSON building profile (default: built-in)")
	runBackfill := flag.Bool("backfill", false, "run the historical backfill plan")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	profile := factory.DefaultProfile()
	if *profilePath != "" {
		raw, err := os.ReadFile(*profilePath)
		if err != nil {
			fatal(logger, "failed to read profile", err)
		}
		profile, err = factory.ParseProfile(string(raw))
		if err != nil {
			fatal(logger, "failed to parse profile", err)
		}
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		fatal(logger, "failed to open database", err)
	}
	defer store.Close()

	engine := ledger.NewEngine(store, store, profile.Tiers)
	ctx := context.Background()

	if *runBackfill {
		seeder := backfill.NewSeeder(engine, store, store, store, profile.Tiers, logger)
		result, err := seeder.Run(ctx, profile.Backfill)
		if err != nil {
			fatal(logger, "backfill failed", err)
		}
		fmt.Printf("backfill: %d balances, %d tracking rows, %d accounts, %d skipped\n",
			result.Balances, result.Tracking, result.Accounts, result.Skipped)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: import [-db path] [-profile path] <statement.csv>")
		os.Exit(1)
	}

	file, err := os.Open(flag.Arg(0))
	if err != nil {
		fatal(logger, "failed to open statement", err)
	}
	defer file.Close()

	identifier := importer.NewIdentifier(profile.Aliases)
	imp := importer.New(engine, store, store, store, identifier, profile.Categories, logger)

	summary, err := imp.Run(ctx, file)
	if err != nil {
		fatal(logger, "import failed", err)
	}

	fmt.Printf("import: %d rows, %d imported, %d skipped, %d failed\n",
		summary.Total, summary.Imported, summary.Skipped, summary.Failed)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
