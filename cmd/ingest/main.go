package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/skylarkoo7/tartam-rag/internal/config"
	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/queue/nats"
	"github.com/skylarkoo7/tartam-rag/internal/infrastructure/repository/sqlite"
	"github.com/skylarkoo7/tartam-rag/internal/observability/logging"
)

const upsertBatchSize = 200

// ingest loads a JSONL dump of scripture units into the corpus store and
// requests a vector reindex for the loaded source set.
func main() {
	_ = godotenv.Load()

	filePath := flag.String("file", "", "path to a JSONL file of units, one JSON object per line")
	sourceSet := flag.String("source-set", "", "source set tag stamped on every loaded unit")
	skipReindex := flag.Bool("skip-reindex", false, "load units without publishing a reindex request")
	flag.Parse()

	if *filePath == "" || *sourceSet == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.NewJSONLogger("ingest", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, logger, *filePath, *sourceSet, *skipReindex); err != nil {
		log.Fatalf("ingest error: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, filePath, sourceSet string, skipReindex bool) error {
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open corpus db: %w", err)
	}
	defer db.Close()
	repo := sqlite.NewCorpusRepository(db)

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open units file: %w", err)
	}
	defer file.Close()

	total := 0
	batch := make([]domain.RetrievedUnit, 0, upsertBatchSize)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var unit domain.RetrievedUnit
		if err := json.Unmarshal([]byte(line), &unit); err != nil {
			return fmt.Errorf("parse unit at line %d: %w", total+1, err)
		}
		if unit.ID == "" {
			return fmt.Errorf("unit at line %d has no id", total+1)
		}
		unit.SourceSet = sourceSet

		batch = append(batch, unit)
		total++
		if len(batch) >= upsertBatchSize {
			if err := repo.UpsertUnits(ctx, batch); err != nil {
				return fmt.Errorf("upsert batch ending at %d: %w", total, err)
			}
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read units file: %w", err)
	}
	if len(batch) > 0 {
		if err := repo.UpsertUnits(ctx, batch); err != nil {
			return fmt.Errorf("upsert final batch: %w", err)
		}
	}

	logger.Info("units_loaded", "source_set", sourceSet, "units", total)

	if skipReindex {
		return nil
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	defer queue.Close()

	if err := queue.PublishReindexRequested(ctx, sourceSet); err != nil {
		return fmt.Errorf("publish reindex request: %w", err)
	}
	logger.Info("reindex_requested", "source_set", sourceSet)
	return nil
}
