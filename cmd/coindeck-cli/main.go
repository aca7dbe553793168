// coindeck-cli is a small command-line client for the coindeck-server API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"coindeck/internal/domain"
	"coindeck/pkg/coindeck"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: coindeck-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version      Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  strategies   List registered strategy types\n")
		fmt.Fprintf(os.Stderr, "  pairs        List pairs with stored candle data\n")
		fmt.Fprintf(os.Stderr, "  sessions     List backtest and optimization sessions\n")
		fmt.Fprintf(os.Stderr, "  session      Show one session with its full result\n")
		fmt.Fprintf(os.Stderr, "  backtest     Run a backtest and wait for the result\n")
		fmt.Fprintf(os.Stderr, "\nThe server address comes from COINDECK_SERVER (default http://localhost:8080).\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("COINDECK_SERVER")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client := coindeck.NewClient(baseURL)
	ctx := context.Background()

	switch os.Args[1] {
	case "version":
		fmt.Printf("coindeck-cli %s\n", version)

	case "strategies":
		infos, err := client.ListStrategies(ctx)
		fatalIf(err)
		for _, info := range infos {
			fmt.Printf("%-16s %s\n", info.Type, strings.Join(info.Parameters, ", "))
		}

	case "pairs":
		pairs, err := client.ListPairs(ctx)
		fatalIf(err)
		for _, p := range pairs {
			fmt.Println(p)
		}

	case "sessions":
		sessions, err := client.ListSessions(ctx)
		fatalIf(err)
		for _, s := range sessions {
			fmt.Printf("%s  %-12s  %-10s  %s %s  %s\n",
				s.ID, s.Kind, s.Status, s.Pair, s.Timeframe, s.CreatedAt.Format(time.RFC3339))
		}

	case "session":
		if len(os.Args) < 3 {
			fatalIf(fmt.Errorf("usage: coindeck-cli session <id>"))
		}
		sess, err := client.GetSession(ctx, os.Args[2])
		fatalIf(err)
		printJSON(sess)

	case "backtest":
		runBacktest(ctx, client, os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

func runBacktest(ctx context.Context, client *coindeck.Client, args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	pair := fs.String("pair", "BTC/USD", "crypto pair")
	timeframe := fs.String("timeframe", "1h", "candle timeframe")
	stratType := fs.String("strategy", "ma_crossover", "strategy type")
	params := fs.String("params", "shortPeriod=9,longPeriod=21", "comma-separated name=value strategy parameters")
	startStr := fs.String("start", "", "start date (YYYY-MM-DD, required)")
	endStr := fs.String("end", "", "end date (YYYY-MM-DD, required)")
	balance := fs.Float64("balance", 10000, "initial balance")
	feeRate := fs.Float64("fee", 0.001, "fee rate per fill")
	slippage := fs.Float64("slippage", 0.0005, "slippage per fill")
	fs.Parse(args)

	if *startStr == "" || *endStr == "" {
		fatalIf(fmt.Errorf("-start and -end are required"))
	}
	start, err := time.Parse("2006-01-02", *startStr)
	fatalIf(err)
	end, err := time.Parse("2006-01-02", *endStr)
	fatalIf(err)

	paramMap, err := parseParams(*params)
	fatalIf(err)

	sess, err := client.StartBacktest(ctx, coindeck.BacktestRequest{
		Pair:      *pair,
		Timeframe: *timeframe,
		Strategy: domain.Strategy{
			Type:   domain.StrategyType(*stratType),
			Params: paramMap,
		},
		Options: domain.BacktestOptions{
			StartDate:      start,
			EndDate:        end,
			InitialBalance: *balance,
			FeeRate:        *feeRate,
			Slippage:       *slippage,
		},
	})
	fatalIf(err)

	fmt.Printf("session %s started, waiting...\n", sess.ID)
	done, err := client.WaitForSession(ctx, sess.ID, time.Second)
	fatalIf(err)

	if done.Status == domain.SessionFailed {
		fatalIf(fmt.Errorf("backtest failed: %s", done.ErrorMessage))
	}

	m := done.Result.Metrics
	fmt.Printf("trades:      %d (%d wins, %d losses, %.1f%% win rate)\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate*100)
	fmt.Printf("net profit:  %.2f (%.2f to %.2f)\n",
		m.NetProfit, done.Result.InitialBalance, done.Result.FinalBalance)
	if adv := done.Result.AdvancedMetrics; adv != nil {
		fmt.Printf("sharpe:      %.3f\n", adv.SharpeRatio)
		fmt.Printf("max drawdown: %.1f%%\n", adv.MaxDrawdown*100)
	}
}

// parseParams turns "shortPeriod=9,longPeriod=21" into a parameter map.
func parseParams(s string) (map[string]float64, error) {
	params := make(map[string]float64)
	if s == "" {
		return params, nil
	}
	for _, kv := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return nil, fmt.Errorf("invalid parameter %q, want name=value", kv)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	fatalIf(err)
	fmt.Println(string(data))
}

func fatalIf(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "coindeck-cli: %v\n", err)
		os.Exit(1)
	}
}
