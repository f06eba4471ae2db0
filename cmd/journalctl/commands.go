package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"tradeJournal/config"
	"tradeJournal/internal/adapters/logger"
	"tradeJournal/internal/analytics"
	"tradeJournal/internal/app"
	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
	"tradeJournal/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const queryTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "journalctl",
		Short: "Bybit closed-position trade journal",
		Long: `journalctl operates on the trade journal kept by the poller.

Configuration is read from the environment (and .env), the same as the daemon.
Only "once" needs exchange credentials.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")

	rootCmd.AddCommand(newOnceCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newExportCmd())
	return rootCmd
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(cfg *config.Config) ports.Logger {
	return logger.New(logger.Options{Level: cfg.LogLevel, Console: true, FilePath: cfg.LogFile})
}

// openStore opens the configured store without touching the exchange.
func openStore() (ports.TradeRepository, error) {
	cfg, err := config.LoadStoreConfig()
	if err != nil {
		return nil, err
	}
	return app.NewRepository(cfg, newLogger(cfg))
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle",
		Long:  "Fetch the latest page of closed positions, reconcile it and store new trades, then exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			journal, err := app.NewJournal(cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer journal.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := journal.Poller.RunCycle(ctx)
			if jsonOutput(cmd) {
				if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
					return werr
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "cycle %s: fetched=%d inserted=%d duplicates=%d failed=%d\n",
					report.CycleID, report.Fetched, report.Inserted, report.Duplicates, report.Failed)
				if report.Error != "" {
					fmt.Fprintf(out, "page error: %s\n", report.Error)
				}
			}
			return err
		},
	}
}

func newStatsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the most recent trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
			defer cancel()
			trades, err := repo.FindRecent(ctx, limit)
			if err != nil {
				return err
			}
			summary := analytics.Summarize(trades)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "number of most recent trades to include")
	return cmd
}

func printSummary(out io.Writer, s *analytics.Summary) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Trades\t%d (%d won, %d lost)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Fprintf(tw, "Win rate\t%.2f%%\n", s.WinRate*100)
	fmt.Fprintf(tw, "Total PnL\t%.4f\n", s.TotalPNL)
	fmt.Fprintf(tw, "Est. fees\t%.4f\n", s.TotalFees)
	fmt.Fprintf(tw, "Net PnL\t%.4f\n", s.NetPNL)
	fmt.Fprintf(tw, "Avg PnL%%\t%.2f\n", s.AveragePNLPct)
	fmt.Fprintf(tw, "Profit factor\t%.2f\n", s.ProfitFactor)
	fmt.Fprintf(tw, "Max drawdown\t%.4f\n", s.MaxDrawdown)
	fmt.Fprintf(tw, "Avg duration\t%s\n", s.AverageDuration)
	fmt.Fprintf(tw, "Maker share\t%.2f%%\n", s.MakerShare*100)
	for _, reason := range []domain.CloseReason{
		domain.CloseReasonTakeProfit, domain.CloseReasonStopLoss, domain.CloseReasonMarket, domain.CloseReasonAmbiguous,
	} {
		fmt.Fprintf(tw, "Closed by %s\t%d\n", reason, s.CloseReasons[reason])
	}
	for _, m := range s.Months() {
		fmt.Fprintf(tw, "PnL %s\t%.4f\n", m.Month, m.PNL)
	}
	tw.Flush()
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <orderId>",
		Short: "Show one stored trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
			defer cancel()
			trade, err := repo.FindByID(ctx, args[0])
			if err != nil {
				return err
			}
			if trade == nil {
				return fmt.Errorf("trade %s: %w", args[0], ports.ErrNotFound)
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), trade)
			}
			printTrade(cmd.OutOrStdout(), trade)
			return nil
		},
	}
}

func printTrade(out io.Writer, t *domain.TradeRecord) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Order\t%s\n", t.ID)
	fmt.Fprintf(tw, "Symbol\t%s %s x%d\n", t.Symbol, t.Side, t.Leverage)
	fmt.Fprintf(tw, "Qty\t%g\n", t.Qty)
	fmt.Fprintf(tw, "Entry / Exit\t%g / %g\n", t.Entry, t.Exit)
	fmt.Fprintf(tw, "PnL\t%g (%.2f%%)\n", t.PNL, t.PNLPct)
	fmt.Fprintf(tw, "Est. fee\t%g (maker=%t, fills=%d)\n", t.Fee, t.IsMaker, t.NumFills)
	fmt.Fprintf(tw, "Close\t%s (tp=%t sl=%t mt=%t)\n", t.CloseReason(), t.TPHit, t.SLHit, t.MTClose)
	fmt.Fprintf(tw, "Order type\t%s %s\n", t.OrderType, t.TimeInForce)
	fmt.Fprintf(tw, "Opened\t%s UTC\n", t.OpenedAt)
	fmt.Fprintf(tw, "Closed\t%s UTC (%s)\n", t.ClosedAt, time.Duration(t.DurationSec)*time.Second)
	tw.Flush()
}

func newExportCmd() *cobra.Command {
	var (
		outPath string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored trades to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit cannot be negative")
			}
			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
			defer cancel()
			if limit == 0 {
				if limit, err = repo.Count(ctx); err != nil {
					return err
				}
			}
			trades, err := repo.FindRecent(ctx, limit)
			if err != nil {
				return err
			}
			if err := utils.WriteTradesToCSV(trades, outPath); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d trades to %s\n", len(trades), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "trades.csv", "output file")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of most recent trades to export, 0 for all")
	return cmd
}
