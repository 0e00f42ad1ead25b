package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matrixise/daodash/internal/api"
	"github.com/matrixise/daodash/internal/config"
	"github.com/matrixise/daodash/internal/format"
	"github.com/matrixise/daodash/internal/health"
	"github.com/matrixise/daodash/internal/indexer"
	"github.com/matrixise/daodash/internal/logger"
	"github.com/matrixise/daodash/internal/proposals"
	"github.com/matrixise/daodash/internal/treasury"
	"github.com/matrixise/daodash/internal/wallet"
)

var once bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the indexer and serve the dashboard state",
	Long: `Poll the indexer for proposals and treasury balances and serve them over HTTP.
With --once, fetch a single snapshot, print it and exit.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&once, "once", false, "fetch one snapshot, print it and exit")
}

// app wires the stores, the wallet session and the health checker
type app struct {
	cfg       *config.Config
	proposals *proposals.Store
	treasury  *treasury.Store
	session   *wallet.Session
	checker   *health.Checker
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	client := indexer.NewClient(indexer.Config{
		BaseURL:      cfg.IndexerURL,
		FallbackURLs: cfg.FallbackURLs,
		Timeout:      cfg.GetRequestTimeout(),
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		Logger:       log,
	})
	interval := cfg.GetPollInterval()

	ps := proposals.New(proposals.Config{
		ChainID:      cfg.ChainID,
		DAOAddress:   cfg.DAOAddress,
		PollInterval: interval,
		Logger:       log,
	}, client)

	ts := treasury.New(treasury.Config{
		ChainID:            cfg.ChainID,
		DAOAddress:         cfg.DAOAddress,
		PollInterval:       interval,
		Logger:             log,
		ReportStatusErrors: cfg.TreasuryReportStatusErrors,
	}, client, tokenTable(cfg.Tokens))

	// A nil provider makes Connect report the wallet as unavailable.
	var provider wallet.Provider
	if cfg.Wallet.KeyFile != "" {
		kp, err := wallet.LoadKeyProvider(cfg.Wallet.KeyFile, cfg.ChainID, cfg.Wallet.Bech32Prefix)
		if err != nil {
			return nil, err
		}
		log.Info("Local signer loaded", "address", kp.Address())
		provider = kp
	}
	submitter := &wallet.DryRunSubmitter{ChainID: cfg.ChainID, Contract: cfg.DAOAddress, Logger: log}

	return &app{
		cfg:       cfg,
		proposals: ps,
		treasury:  ts,
		session:   wallet.NewSession(cfg.ChainID, provider, submitter, log),
		checker:   health.NewChecker(interval, nil, ps, ts).WatchEndpoints(client),
	}, nil
}

func tokenTable(tokens []config.TokenConfig) *format.TokenTable {
	m := make(map[string]format.Token, len(tokens))
	for _, tok := range tokens {
		m[tok.Denom] = format.Token{DisplayName: tok.DisplayName, Decimals: tok.Decimals}
	}
	return format.NewTokenTable(m)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	// Setup logger (log-level from global flag)
	logger.Setup(logLevel)

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Signal received, graceful shutdown", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}

	// Override log level if set in config
	if cfg.LogLevel != "" || cfg.LogFormat != "" {
		level := cfg.LogLevel
		if level == "" {
			level = logLevel
		}
		logger.SetupWithFormat(level, cfg.LogFormat)
	}

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"indexer_url", cfg.IndexerURL,
		"fallback_urls", len(cfg.FallbackURLs),
		"chain_id", cfg.ChainID,
		"dao_address", cfg.DAOAddress,
		"poll_interval", cfg.GetPollInterval(),
		"tokens", len(cfg.Tokens),
	)

	a, err := newApp(cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}

	if once {
		return a.snapshot(ctx, cmd.OutOrStdout())
	}
	return a.serve(ctx)
}

// snapshot refreshes both stores once and prints them
func (a *app) snapshot(ctx context.Context, w io.Writer) error {
	var g errgroup.Group
	g.Go(func() error { return a.proposals.Refresh(ctx) })
	g.Go(func() error { return a.treasury.Refresh(ctx) })
	err := g.Wait()

	printSnapshot(w, a.proposals, a.treasury)
	return err
}

func printSnapshot(w io.Writer, ps *proposals.Store, ts *treasury.Store) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "PROPOSALS")
	if msg := ps.ErrorMessage(); msg != "" {
		fmt.Fprintln(tw, msg)
	}
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tTITLE")
	for _, p := range ps.Proposals() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Status, p.CreatedAt, p.Title)
	}

	fmt.Fprintln(tw, "")
	fmt.Fprintln(tw, "TREASURY")
	if msg := ts.ErrorMessage(); msg != "" {
		fmt.Fprintln(tw, msg)
	}
	fmt.Fprintln(tw, "TOKEN\tAMOUNT\tDENOM")
	for _, b := range ts.Balances() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.DisplayName, b.Formatted, b.Denom)
	}
}

// serve polls both stores and runs the HTTP API until ctx is cancelled
func (a *app) serve(ctx context.Context) error {
	if err := a.proposals.Start(); err != nil {
		return err
	}
	defer a.proposals.Stop()

	if err := a.treasury.Start(); err != nil {
		return err
	}
	defer a.treasury.Stop()

	httpPort := a.cfg.HTTPPort
	if httpPort == 0 {
		httpPort = 8080 // Default port
	}

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", httpPort),
		Handler: api.NewRouter(api.Deps{
			Proposals: a.proposals,
			Treasury:  a.treasury,
			Wallet:    a.session,
			Health:    a.checker.Handler(),
			Logger:    slog.Default(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server starting", "port", httpPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown requested, stopping daemon")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	slog.Info("Daemon mode started", "poll_interval", a.cfg.GetPollInterval())
	return g.Wait()
}
