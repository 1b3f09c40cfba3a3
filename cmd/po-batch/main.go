// po-batch ingests every purchase-order document under a directory using the
// deterministic structurer (or OpenAI when an API key is set) and writes the
// extracted orders to an XLSX workbook. No database required.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oluwaseun-a/po-tracker/constants"
	"github.com/oluwaseun-a/po-tracker/internal/async"
	"github.com/oluwaseun-a/po-tracker/internal/entity"
	"github.com/oluwaseun-a/po-tracker/internal/export"
	"github.com/oluwaseun-a/po-tracker/internal/failure"
	"github.com/oluwaseun-a/po-tracker/internal/llm/openai"
	"github.com/oluwaseun-a/po-tracker/internal/pipeline"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory to process purchase orders from (required)")
		out     = flag.String("out", "", "output XLSX file path (optional, defaults to <dir>/orders.xlsx)")
		tempDir = flag.String("tmp", "./tmp", "scratch directory for in-flight documents")
		workers = flag.Int("workers", 4, "concurrent ingestion workers")
	)
	flag.Parse()

	if strings.TrimSpace(*dir) == "" {
		printError("-dir is required\n")
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Prefer the model structurer when a key is configured, otherwise the
	// deterministic parser keeps the batch tool self-contained.
	cfg := pipeline.Config{TempDir: *tempDir, Logger: logger}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		client, err := openai.New(openai.Config{APIKey: key, Model: os.Getenv("OPENAI_MODEL")}, logger)
		if err != nil {
			printError("openai setup: %v\n", err)
			os.Exit(1)
		}
		cfg.Structurer = client
	} else {
		cfg.FeatureFlags = []string{pipeline.FlagDeterministicStructuring}
	}

	proc, err := pipeline.New(cfg)
	if err != nil {
		printError("pipeline setup: %v\n", err)
		os.Exit(1)
	}

	var paths []string
	walkErr := filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasPrefix(filepath.Base(path), ".") {
			return nil
		}
		if constants.MapExtToFormat(filepath.Ext(path)) == "" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		printError("walk %s: %v\n", *dir, walkErr)
		os.Exit(1)
	}

	queue := async.NewQueue(proc, *workers, *workers*2, logger)
	submitted := len(paths)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	// Feed jobs while the loop below drains results, so neither side backs
	// the channels up.
	go func() {
		for _, p := range paths {
			if err := queue.Enqueue(ctx, async.Job{Path: p}); err != nil {
				printError("enqueue %s: %v\n", p, err)
			}
		}
		if err := queue.Shutdown(shutdownCtx); err != nil {
			printError("shutdown: %v\n", err)
		}
	}()

	var orders []*entity.PurchaseOrder
	var failed int
	for res := range queue.Results() {
		if res.Err != nil {
			failed++
			if f, ok := failure.As(res.Err); ok {
				printError("FAIL %-40s kind=%s strategy=%s: %s\n",
					filepath.Base(res.Job.Path), f.Kind, f.Strategy, f.Message)
			} else {
				printError("FAIL %-40s %v\n", filepath.Base(res.Job.Path), res.Err)
			}
			continue
		}
		orders = append(orders, res.Order)
		fmt.Printf("OK   %-40s po=%s total=%.2f items=%d\n",
			filepath.Base(res.Job.Path), res.Order.PONumber, res.Order.Total, len(res.Order.Items))
	}

	outPath := *out
	if outPath == "" {
		outPath = filepath.Join(*dir, "orders.xlsx")
	}
	b, err := export.BuildOrdersWorkbook(orders)
	if err != nil {
		printError("build workbook: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		printError("write %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("\nprocessed=%d ok=%d failed=%d -> %s\n", submitted, len(orders), failed, outPath)
	if failed > 0 {
		os.Exit(1)
	}
}
