// Command promo-ingest bulk-loads promotion codes from gzip'd code lists
// into PostgreSQL. Files are parsed concurrently; a bloom filter keeps
// duplicate codes from being offered to the database more than once across
// very large inputs (the unique index remains the source of truth).
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/promo-engine/internal/money"
	"github.com/xenking/promo-engine/internal/postgres"
	"github.com/xenking/promo-engine/internal/promotion"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	minCodeLen    = 4
	maxCodeLen    = 64
)

func main() {
	var (
		dataDir     string
		databaseURL string
		percent     string
		maxDiscount int64
		minPurchase int64
		usageLimit  int64
		validDays   int
		enabled     bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz code lists, one code per line")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&percent, "percent", "10", "discount percent for ingested codes, in (0, 100]")
	flag.Int64Var(&maxDiscount, "max-discount-cents", 0, "discount cap in cents, 0 means uncapped")
	flag.Int64Var(&minPurchase, "min-purchase-cents", 0, "minimum purchase in cents, 0 means none")
	flag.Int64Var(&usageLimit, "usage-limit", 0, "redemptions allowed per code, 0 means unlimited")
	flag.IntVar(&validDays, "valid-days", 30, "validity window length in days, starting now")
	flag.BoolVar(&enabled, "enabled", false, "create codes already enabled")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	template, err := buildTemplate(percent, maxDiscount, minPurchase, usageLimit, validDays, enabled)
	if err != nil {
		slog.Error("invalid flags", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(ctx, dataDir, databaseURL, template); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

// buildTemplate validates the shared promotion parameters once up front.
func buildTemplate(percent string, maxDiscount, minPurchase, usageLimit int64, validDays int, enabled bool) (promotion.Record, error) {
	pct, err := decimal.NewFromString(percent)
	if err != nil {
		return promotion.Record{}, errors.Wrap(err, "parse percent")
	}
	if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return promotion.Record{}, errors.Errorf("percent %s outside (0, 100]", pct)
	}
	if validDays <= 0 {
		return promotion.Record{}, errors.New("valid-days must be positive")
	}

	now := time.Now().UTC()
	rec := promotion.Record{
		DiscountPercent: pct,
		ValidFrom:       &now,
		ValidUntil:      now.AddDate(0, 0, validDays),
		Enabled:         enabled,
	}
	if maxDiscount > 0 {
		m := money.FromCents(maxDiscount)
		rec.MaxDiscount = &m
	}
	if minPurchase > 0 {
		m := money.FromCents(minPurchase)
		rec.MinPurchase = &m
	}
	if usageLimit > 0 {
		rec.UsageLimit = &usageLimit
	}
	return rec, nil
}

func run(ctx context.Context, dataDir, databaseURL string, template promotion.Record) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list data files")
	}
	if len(files) == 0 {
		return errors.Errorf("no .gz files in %s", dataDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}
	store := postgres.NewPromotionStore(pool)

	var (
		seenMu sync.Mutex
		seen   = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	)
	codes := make(chan string, 1024)

	g, ctx := errgroup.WithContext(ctx)

	// One parser per file feeding the shared channel.
	var parsing sync.WaitGroup
	for _, file := range files {
		parsing.Add(1)
		g.Go(func() error {
			defer parsing.Done()
			return parseFile(ctx, file, func(code string) bool {
				seenMu.Lock()
				dup := seen.TestOrAddString(code)
				seenMu.Unlock()
				if dup {
					return true
				}
				select {
				case codes <- code:
					return true
				case <-ctx.Done():
					return false
				}
			})
		})
	}
	go func() {
		parsing.Wait()
		close(codes)
	}()

	var inserted int
	g.Go(func() error {
		for code := range codes {
			rec := template
			rec.ID = uuid.New()
			rec.Code = code
			if err := store.Insert(ctx, &rec); err != nil {
				return err
			}
			inserted++
			if inserted%10_000 == 0 {
				slog.Info("progress", slog.Int("inserted", inserted))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("done", slog.Int("files", len(files)), slog.Int("inserted", inserted))
	return nil
}

// parseFile streams codes from one gzip'd list, skipping malformed lines.
// emit returns false when the consumer is gone.
func parseFile(ctx context.Context, path string, emit func(code string) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip %s", path)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := strings.TrimSpace(scanner.Text())
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		if !emit(code) {
			return ctx.Err()
		}
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}
