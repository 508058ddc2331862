package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/githubphadnis/xta/constants"
	"github.com/githubphadnis/xta/internal/async"
	"github.com/githubphadnis/xta/internal/common"
	"github.com/githubphadnis/xta/internal/export"
	"github.com/githubphadnis/xta/internal/ingest"
	"github.com/githubphadnis/xta/internal/llm/openai"
	"github.com/githubphadnis/xta/internal/repository"
	"gorm.io/gorm"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use in-memory SQLite database")
		file    = flag.String("file", "", "statement or receipt file to import")
		dir     = flag.String("dir", "", "import every supported file in this directory")
		workers = flag.Int("workers", 4, "concurrent imports in --dir mode")
		out     = flag.String("out", "", "write the ledger as XLSX to this path after the import")
	)
	flag.Parse()

	if *file == "" && *dir == "" {
		printError("Error: --file or --dir is required\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()

	var (
		db  *gorm.DB
		err error
	)
	if *inmem {
		db, err = repository.OpenInMemory(logger)
		if err != nil {
			logger.Error("failed to open in-memory database", "error", err)
			os.Exit(1)
		}
	} else {
		if cfg.Database.DSN == "" {
			printError("Error: DB_URL is required without --inmem\n")
			os.Exit(1)
		}
		var pool *pgxpool.Pool
		db, pool, err = repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer repository.Close(db, pool, logger)
	}
	if err := repository.Migrate(db); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		VisionModel: cfg.LLM.VisionModel,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	expenses := repository.NewExpenseRepository(db, logger)
	batches := repository.NewImportBatchRepository(db, logger)
	importer := ingest.NewService(extractor, expenses, batches, cfg.Upload.Dir, logger)

	start := time.Now()

	var jobs []async.Job
	if *file != "" {
		contents, err := os.ReadFile(*file)
		if err != nil {
			logger.Error("failed to read input file", "file", *file, "error", err)
			os.Exit(1)
		}
		jobs = append(jobs, async.Job{Filename: filepath.Base(*file), Contents: contents})
	}
	if *dir != "" {
		dirJobs, skipped, err := collectJobs(*dir)
		if err != nil {
			logger.Error("failed to read directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("directory scanned", "dir", *dir, "matched", len(dirJobs), "skipped", skipped)
		jobs = append(jobs, dirJobs...)
	}

	pool := async.NewPool(importer, *workers, logger)
	results := pool.Run(ctx, jobs)

	var inserted, dups, failures int
	for _, r := range results {
		if r.Err != nil {
			failures++
			continue
		}
		inserted += r.Batch.Inserted
		dups += r.Batch.DuplicatesSkipped
	}

	if *out != "" {
		exportService := export.NewService(expenses, logger)
		xlsxBytes, err := exportService.ExportXLSX(ctx, repository.ListFilter{})
		if err != nil {
			logger.Error("failed to export ledger", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
			logger.Error("failed to write output file", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("import complete",
		"files", len(jobs),
		"inserted", inserted,
		"duplicates_skipped", dups,
		"failures", failures,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	fmt.Printf("Import complete!\n")
	fmt.Printf("- Files: %d\n", len(jobs))
	fmt.Printf("- Inserted: %d\n", inserted)
	fmt.Printf("- Duplicates skipped: %d\n", dups)
	fmt.Printf("- Failures: %d\n", failures)
	if *out != "" {
		fmt.Printf("- Output: %s\n", *out)
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// collectJobs gathers supported files directly under dir. Hidden files and
// unsupported extensions are counted but not queued.
func collectJobs(dir string) ([]async.Job, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	var jobs []async.Job
	skipped := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") ||
			constants.ClassifyFilename(name) == constants.UNSUPPORTED {
			skipped++
			continue
		}
		contents, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, async.Job{Filename: name, Contents: contents})
	}
	return jobs, skipped, nil
}
