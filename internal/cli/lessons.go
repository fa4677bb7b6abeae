package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ghost-coach/internal/store"
)

func newLessonsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "Lessons generated from your own trades",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a new lesson from recent history",
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
				return fmt.Errorf("no trades recorded, nothing to learn from")
			}

			output.Info("Generating lesson from %d trades...", len(trades))
			lessons, err := app.Judge.GenerateLessons(ctx, trades)
			if err != nil {
				return err
			}
			if err := app.Store.SaveLessons(ctx, lessons); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(lessons)
			}
			for _, l := range lessons {
				output.Bold("[%s] %s", l.Category, l.Title)
				output.Println("  " + l.Content)
				output.Println()
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored lessons",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}
			output := NewOutput(cmd)

			lessons, err := app.Store.GetLessons(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(lessons)
			}
			if len(lessons) == 0 {
				output.Dim("No lessons yet. Run 'ghost lessons generate'.")
				return nil
			}

			table := NewTable(output, "DATE", "CATEGORY", "TITLE", "TRADES")
			for _, l := range lessons {
				table.AddRow(
					FormatDate(l.CreatedAt),
					string(l.Category),
					TruncateString(l.Title, 50),
					fmt.Sprintf("%d", len(l.RelevantTradeIDs)),
				)
			}
			table.Render()
			return nil
		},
	})

	return cmd
}
