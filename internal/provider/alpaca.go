package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"coindeck/internal/domain"
)

var _ CandleProvider = (*AlpacaProvider)(nil)

// AlpacaProvider fetches crypto candles from the Alpaca market-data API.
// Crypto pairs use Alpaca's "BTC/USD" symbol form, which matches the pair
// strings used throughout coindeck.
type AlpacaProvider struct {
	client *marketdata.Client
	log    *slog.Logger
}

// NewAlpacaProvider creates an AlpacaProvider with the given credentials.
// An empty dataURL uses Alpaca's default market-data endpoint.
func NewAlpacaProvider(apiKey, apiSecret, dataURL string, log *slog.Logger) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaProvider{
		client: marketdata.NewClient(opts),
		log:    log.With("provider", "alpaca"),
	}
}

// GetCandles fetches crypto bars for the pair within [start, end].
func (p *AlpacaProvider) GetCandles(ctx context.Context, pair, timeframe string, start, end time.Time) ([]domain.Candle, error) {
	tf, err := parseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	bars, err := p.client.GetCryptoBars(pair, marketdata.GetCryptoBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching crypto bars for %s: %w", pair, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned for %s/%s: %w", pair, timeframe, domain.ErrInsufficientData)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, domain.Candle{
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	p.log.Debug("fetched candles", "pair", pair, "timeframe", timeframe, "count", len(candles))
	return candles, nil
}

// parseTimeframe converts coindeck timeframe strings ("1m", "5m", "15m",
// "1h", "4h", "1d") to Alpaca TimeFrames.
func parseTimeframe(timeframe string) (marketdata.TimeFrame, error) {
	switch timeframe {
	case "1m":
		return marketdata.OneMin, nil
	case "5m":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15m":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "1h":
		return marketdata.OneHour, nil
	case "4h":
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case "1d":
		return marketdata.OneDay, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe %q: %w", timeframe, domain.ErrInvalidParameter)
	}
}
