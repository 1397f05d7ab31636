package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"corrboard/internal/api"
	"corrboard/internal/app"
	"corrboard/internal/config"
	"corrboard/internal/dashboard"
	"corrboard/internal/domain"
)

const version = "0.1.0"

func main() {
	tickers := flag.String("tickers", "", "comma-separated tickers, e.g. SPY,QQQ,GLD")
	timeframe := flag.String("timeframe", "", "1h, 1d or 1mo (default from config)")
	method := flag.String("method", "", "pearson or spearman (default from config)")
	lag := flag.String("lag", "", "lag such as 0, 1h, 1d or 2bars (default from config)")
	top := flag.Int("top", 0, "number of pairs to show, 1-100")
	pngPath := flag.String("png", "", "also write a bar chart of the top pairs to this file")
	grpcAddr := flag.String("grpc", "", "rank on a corr-server at this address instead of locally")
	history := flag.Int("history", 0, "list the N most recent recorded runs and exit")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall request timeout")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: corr-cli -tickers SPY,QQQ,GLD [options]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("corr-cli %s\n", version)
		return
	}

	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// Logs go to stderr so stdout stays the rendered report.
	app.SetupLogger(cfg, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	if *history > 0 {
		if err := listHistory(ctx, cfg, *history, os.Stdout); err != nil {
			log.Fatalf("history: %v", err)
		}
		return
	}

	if *tickers == "" {
		flag.Usage()
		os.Exit(2)
	}
	params := dashboard.Params{
		Tickers:   *tickers,
		Timeframe: *timeframe,
		Method:    *method,
		Lag:       *lag,
		TopN:      *top,
	}

	if *grpcAddr != "" {
		err = rankRemote(ctx, *grpcAddr, params, *pngPath, os.Stdout)
	} else {
		err = rankLocal(ctx, cfg, params, *pngPath, os.Stdout)
	}
	if err != nil {
		log.Fatalf("ranking failed: %v", err)
	}
}

func rankLocal(ctx context.Context, cfg *config.Config, p dashboard.Params, pngPath string, w io.Writer) error {
	c, err := app.Build(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer c.Close()

	rep, err := c.Service.Run(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, dashboard.RenderReport(rep))
	return writeChart(pngPath, fmt.Sprintf("Top %d Correlated Pairs", rep.TopN), rep.Pairs)
}

func rankRemote(ctx context.Context, addr string, p dashboard.Params, pngPath string, w io.Writer) error {
	client, conn, err := api.Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := client.Rank(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "timeframe=%s method=%s observations=%s\n", res.Timeframe, res.Method, dashboard.FormatInt(res.Observations))
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if len(res.Missing) > 0 {
		fmt.Fprintf(w, "no data: %s\n", strings.Join(res.Missing, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, dashboard.RenderTable("Top Correlated Pairs", res.Pairs))
	if len(res.LaggedPairs) > 0 {
		fmt.Fprintln(w, dashboard.RenderTable(fmt.Sprintf("Top Correlated Pairs with Lag (%s)", res.Lag), res.LaggedPairs))
	}
	return writeChart(pngPath, "Top Correlated Pairs", res.Pairs)
}

func writeChart(path, title string, pairs []domain.RankedPair) error {
	if path == "" {
		return nil
	}
	png, err := dashboard.RenderPairsChart(title, pairs)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return os.WriteFile(path, png, 0o644)
}

func listHistory(ctx context.Context, cfg *config.Config, limit int, w io.Writer) error {
	c, err := app.Build(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer c.Close()

	runs, err := c.Runs.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		lag := r.Lag
		if lag == "" {
			lag = "0"
		}
		fmt.Fprintf(w, "%4d  %s  %-3s %-8s lag=%-4s top=%-3d %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Timeframe, r.Method, lag, r.TopN,
			strings.Join(r.Tickers, ","))
	}
	return nil
}
