package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ghost-coach/internal/models"
	"ghost-coach/internal/store"
)

func newPlaybookCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbook",
		Short: "Personalized playbook synthesized from your history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Synthesize a new playbook from the full trade history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}
			if app.Judge == nil {
				return fmt.Errorf("no LLM API key configured")
			}
			output := NewOutput(cmd)
			ctx := cmd.Context()

			trades, err := app.Store.GetTrades(ctx, store.TradeFilter{})
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				return fmt.Errorf("no trades recorded, nothing to synthesize")
			}
			profile, err := app.Store.GetProfile(ctx)
			if err != nil {
				return err
			}

			output.Info("Synthesizing playbook from %d trades...", len(trades))
			playbook, err := app.Judge.SynthesizePlaybook(ctx, trades, profile)
			if err != nil {
				return err
			}
			if err := app.Store.SavePlaybook(ctx, playbook); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(playbook)
			}
			renderPlaybook(output, playbook)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored playbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}
			output := NewOutput(cmd)

			playbook, err := app.Store.GetPlaybook(cmd.Context())
			if err != nil {
				return err
			}
			if playbook == nil {
				output.Dim("No playbook yet. Run 'ghost playbook generate'.")
				return nil
			}

			if output.IsJSON() {
				return output.JSON(playbook)
			}
			renderPlaybook(output, playbook)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Delete the stored playbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}
			output := NewOutput(cmd)
			if err := app.Store.DeletePlaybook(cmd.Context()); err != nil {
				return err
			}
			output.Success("Playbook deleted.")
			return nil
		},
	})

	return cmd
}

func renderPlaybook(output *Output, playbook *models.Playbook) {
	output.Bold(playbook.Title)
	output.Dim("Generated %s from %d trades", FormatDateTime(playbook.GeneratedAt), playbook.TradeCount)
	output.Println()
	output.Println(playbook.Summary)
	output.Println()

	for _, m := range playbook.Modules {
		switch m.VisualAid {
		case models.VisualWarning:
			output.Warning("[%s] %s", m.Type, m.Title)
		default:
			output.Bold("[%s] %s", m.Type, m.Title)
		}
		output.Println("  " + m.Content)
		output.Println()
	}
}
