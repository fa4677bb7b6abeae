package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ghost-coach/internal/models"
	"ghost-coach/internal/store"
)

// dashboardStats aggregates the journal for display.
type dashboardStats struct {
	TotalTrades      int     `json:"total_trades"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	WinRate          float64 `json:"win_rate"`
	TotalPnL         float64 `json:"total_pnl"`
	AvgSlippage      float64 `json:"avg_slippage"`
	Intervened       int     `json:"intervened"`
	CapitalPreserved float64 `json:"capital_preserved"`
	TopBias          string  `json:"top_bias"`
}

func computeStats(trades []models.Trade, profile *models.PsychologicalProfile) dashboardStats {
	stats := dashboardStats{TotalTrades: len(trades)}

	var closed int
	var slippageSum float64
	for _, t := range trades {
		slippageSum += t.Slippage
		if t.WasIntervened {
			stats.Intervened++
		}
		if t.PnL == nil {
			continue
		}
		closed++
		stats.TotalPnL += *t.PnL
		if *t.PnL > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}

	if closed > 0 {
		stats.WinRate = float64(stats.Wins) / float64(closed) * 100
	}
	if len(trades) > 0 {
		stats.AvgSlippage = slippageSum / float64(len(trades))
	}
	if profile != nil {
		stats.CapitalPreserved = profile.CapitalPreserved
		stats.TopBias = profile.TopBias
	}
	return stats
}

func newDashboardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show journal statistics and the behavioral audit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}
			output := NewOutput(cmd)
			ctx := cmd.Context()

			trades, err := app.Store.GetTrades(ctx, store.TradeFilter{})
			if err != nil {
				return err
			}
			profile, err := app.Store.GetProfile(ctx)
			if err != nil {
				return err
			}
			if profile == nil {
				profile = models.DefaultProfile()
			}

			stats := computeStats(trades, profile)
			if output.IsJSON() {
				return output.JSON(stats)
			}

			output.Box("Ghost Coach", []string{
				fmt.Sprintf("Trades:            %d (%d open)", stats.TotalTrades, stats.TotalTrades-stats.Wins-stats.Losses),
				fmt.Sprintf("Win Rate:          %.1f%% (%dW / %dL)", stats.WinRate, stats.Wins, stats.Losses),
				fmt.Sprintf("Total P&L:         %s", output.FormatPnL(stats.TotalPnL)),
				fmt.Sprintf("Avg Slippage:      %s", FormatUSD(stats.AvgSlippage)),
				fmt.Sprintf("Interventions:     %d", stats.Intervened),
				fmt.Sprintf("Capital Preserved: %s", FormatUSD(stats.CapitalPreserved)),
				fmt.Sprintf("Top Bias:          %s", stats.TopBias),
			})
			output.Println()
			output.Dim("Profile summary: %s", profile.Summary)
			return nil
		},
	}
}
