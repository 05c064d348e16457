package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"momentum-trader/internal/journal"
	"momentum-trader/internal/models"
)

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the trade journal",
	}
	cmd.AddCommand(newJournalListCmd(app))
	cmd.AddCommand(newJournalReportCmd(app))
	return cmd
}

func newJournalListCmd(app *App) *cobra.Command {
	var tickerFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades(tickerFlag)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				fmt.Println("No trades recorded.")
				return nil
			}

			fmt.Printf("%-20s %-6s %10s %10s %8s %9s %8s  %s\n",
				"TIME", "TICKER", "ENTRY", "EXIT", "SHARES", "PROFIT%", "MINUTES", "REASON")
			for _, t := range trades {
				line := fmt.Sprintf("%-20s %-6s %10.2f %10.2f %8d %8.2f%% %8.1f  %s",
					t.TimestampText, t.Ticker, t.EntryPrice, t.ExitPrice,
					t.Shares, t.ProfitPercent, t.DurationMinutes, t.ExitReason)
				if t.WinLoss == models.TradeWin {
					color.Green(line)
				} else {
					color.Red(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tickerFlag, "ticker", "", "only show trades for this ticker")
	return cmd
}

func newJournalReportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize trading performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, err := app.loadTrades("")
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				fmt.Println("No trades recorded.")
				return nil
			}

			var wins, losses int
			var sumProfit, sumWin, sumLoss float64
			perTicker := make(map[string]*tickerStats)
			for _, t := range trades {
				sumProfit += t.ProfitPercent
				if t.WinLoss == models.TradeWin {
					wins++
					sumWin += t.ProfitPercent
				} else {
					losses++
					sumLoss += t.ProfitPercent
				}

				ts := perTicker[t.Ticker]
				if ts == nil {
					ts = &tickerStats{}
					perTicker[t.Ticker] = ts
				}
				ts.trades++
				ts.profit += t.ProfitPercent
				if t.WinLoss == models.TradeWin {
					ts.wins++
				}
			}

			winRate := float64(wins) / float64(len(trades)) * 100
			fmt.Println("Trade Summary")
			fmt.Printf("  Trades:       %d\n", len(trades))
			fmt.Printf("  Wins/Losses:  %d/%d (%.0f%% win rate)\n", wins, losses, winRate)
			fmt.Printf("  Avg Profit:   %.2f%%\n", sumProfit/float64(len(trades)))
			if wins > 0 {
				fmt.Printf("  Avg Win:      %.2f%%\n", sumWin/float64(wins))
			}
			if losses > 0 {
				fmt.Printf("  Avg Loss:     %.2f%%\n", sumLoss/float64(losses))
			}

			symbols := make([]string, 0, len(perTicker))
			for sym := range perTicker {
				symbols = append(symbols, sym)
			}
			sort.Strings(symbols)

			fmt.Println("\nBy Ticker")
			for _, sym := range symbols {
				ts := perTicker[sym]
				wr := float64(ts.wins) / float64(ts.trades) * 100
				line := fmt.Sprintf("  %-6s %3d trades  %3.0f%% win rate  %+.2f%% total", sym, ts.trades, wr, ts.profit)
				if ts.profit >= 0 {
					color.Green(line)
				} else {
					color.Red(line)
				}
			}
			return nil
		},
	}
}

type tickerStats struct {
	trades int
	wins   int
	profit float64
}

func (app *App) loadTrades(ticker string) ([]models.TradeRecord, error) {
	j, err := journal.NewCSVJournal(app.Config.Paths.JournalFile)
	if err != nil {
		return nil, err
	}
	trades, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	if ticker == "" {
		return trades, nil
	}
	var out []models.TradeRecord
	for _, t := range trades {
		if t.Ticker == ticker {
			out = append(out, t)
		}
	}
	return out, nil
}
