package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ghost-coach/internal/store"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the trade journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}
			output := NewOutput(cmd)

			limit, _ := cmd.Flags().GetInt("limit")
			side, _ := cmd.Flags().GetString("side")
			symbol, _ := cmd.Flags().GetString("symbol")

			trades, err := app.Store.GetTrades(cmd.Context(), store.TradeFilter{
				Symbol: symbol,
				Side:   side,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}

			if len(trades) == 0 {
				output.Dim("No trades recorded yet.")
				return nil
			}

			table := NewTable(output, "DATE", "SIDE", "SIZE", "ENTRY", "EXIT", "P&L", "SLIP", "FLAGS", "REASONING")
			for _, t := range trades {
				exit := "-"
				pnl := "-"
				if t.ExitPrice != nil {
					exit = FormatUSD(*t.ExitPrice)
				}
				if t.PnL != nil {
					pnl = output.FormatPnL(*t.PnL)
				}
				flags := ""
				if t.WasIntervened {
					flags = output.Yellow("⚑")
				}
				table.AddRow(
					FormatDateTime(t.Timestamp),
					string(t.Side),
					FormatSize(t.Size),
					FormatUSD(t.EntryPrice),
					exit,
					pnl,
					FormatUSD(t.Slippage),
					flags,
					TruncateString(t.Reasoning, 40),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 50, "maximum trades to show")
	cmd.Flags().String("side", "", "filter by side (BUY or SELL)")
	cmd.Flags().String("symbol", "", "filter by symbol")
	return cmd
}
