// coindeck-fetch downloads historical crypto candles from Alpaca and writes
// them to the local Parquet store, one month per API call.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coindeck/internal/config"
	"coindeck/internal/domain"
	"coindeck/internal/provider"
	"coindeck/internal/store"
	"coindeck/internal/util"
)

func main() {
	pair := flag.String("pair", "BTC/USD", "crypto pair to fetch")
	timeframe := flag.String("timeframe", "1h", "candle timeframe (1m, 5m, 15m, 1h, 4h, 1d)")
	startStr := flag.String("start", "", "start date (YYYY-MM-DD, required)")
	endStr := flag.String("end", "", "end date (YYYY-MM-DD, default today)")
	csvPath := flag.String("csv", "", "import candles from a CSV file instead of fetching")
	flag.Parse()

	cfgPath := "config/coindeck.yaml"
	if p := os.Getenv("COINDECK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *csvPath != "" {
		candles, err := provider.LoadCSVCandles(*csvPath)
		if err != nil {
			log.Fatalf("loading CSV: %v", err)
		}
		if err := pstore.WriteCandles(ctx, *pair, *timeframe, candles); err != nil {
			log.Fatalf("writing candles: %v", err)
		}
		logger.Info("imported candles from CSV", "pair", *pair, "count", len(candles))
		return
	}

	if *startStr == "" {
		log.Fatal("-start is required (or use -csv)")
	}
	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end := time.Now().UTC()
	if *endStr != "" {
		end, err = time.Parse("2006-01-02", *endStr)
		if err != nil {
			log.Fatalf("invalid -end: %v", err)
		}
	}

	p := provider.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, logger)

	rateLimit := cfg.Fetch.RateLimitPerMin
	if rateLimit <= 0 {
		rateLimit = 200
	}
	maxRetries := cfg.Fetch.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	limiter := util.NewRateLimiter(rateLimit)

	total := 0
	for monthStart := start; monthStart.Before(end); monthStart = monthStart.AddDate(0, 1, 0) {
		monthEnd := monthStart.AddDate(0, 1, 0)
		if monthEnd.After(end) {
			monthEnd = end
		}

		if err := limiter.Wait(ctx); err != nil {
			log.Fatalf("interrupted: %v", err)
		}

		var candles []domain.Candle
		err := util.Retry(ctx, maxRetries, time.Second, func() error {
			var err error
			candles, err = p.GetCandles(ctx, *pair, *timeframe, monthStart, monthEnd)
			if errors.Is(err, domain.ErrInsufficientData) {
				// Nothing traded this month. Not a failure.
				candles = nil
				return nil
			}
			return err
		})
		if err != nil {
			log.Fatalf("fetching %s: %v", monthStart.Format("2006-01"), err)
		}

		if err := pstore.WriteCandles(ctx, *pair, *timeframe, candles); err != nil {
			log.Fatalf("writing candles: %v", err)
		}
		total += len(candles)
		logger.Info("fetched month", "month", monthStart.Format("2006-01"), "candles", len(candles))
	}

	logger.Info("fetch complete", "pair", *pair, "timeframe", *timeframe, "total", total)
}
