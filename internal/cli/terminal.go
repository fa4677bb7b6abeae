package cli

import (
	"bufio"
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ghost-coach/internal/coach"
	"ghost-coach/internal/feed"
	"ghost-coach/internal/judge"
	"ghost-coach/internal/models"
)

func newTerminalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terminal",
		Short: "Start the live coaching terminal",
		Long: `Start an interactive session against the live market.

Every buy or sell intent is judged against your own trade history before it
executes. When the coach intervenes, the proceed option stays locked for a
short countdown so the decision is made deliberately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminal(cmd, app)
		},
	}
	cmd.Flags().String("symbol", "", "override the configured symbol")
	return cmd
}

func runTerminal(cmd *cobra.Command, app *App) error {
	output := NewOutput(cmd)

	if app.Store == nil {
		return fmt.Errorf("store unavailable, cannot start a session")
	}

	symbol := app.Config.Market.Symbol
	if s, _ := cmd.Flags().GetString("symbol"); s != "" {
		symbol = strings.ToUpper(s)
	}

	interval, err := models.ParseInterval(app.Config.Market.Interval)
	if err != nil {
		return err
	}

	j := app.Judge
	if j == nil {
		output.Warning("No LLM API key configured; trades will not be judged.")
		j = judge.Unavailable{}
	}

	session := coach.NewSession(coach.Config{
		Symbol:    symbol,
		Interval:  interval,
		Countdown: time.Duration(app.Config.Coach.CountdownSeconds) * time.Second,
		CandleCap: app.Config.Coach.CandleCap,
	}, app.Store, j, coach.SystemClock{}, app.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := session.Load(ctx); err != nil {
		return err
	}

	marketFeed := feed.NewBinanceFeed(feed.BinanceFeedConfig{
		Symbol:   symbol,
		Interval: interval,
		RESTBase: app.Config.Market.RESTBase,
		WSBase:   app.Config.Market.WSBase,
	})

	output.Info("Loading %d candles for %s %s...", app.Config.Market.HistoryLimit, symbol, interval)
	history, err := marketFeed.FetchHistory(ctx, app.Config.Market.HistoryLimit)
	if err != nil {
		return err
	}
	session.SeedCandles(history)
	if err := app.Store.SaveCandles(ctx, symbol, string(interval), history); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to persist candle history")
	}

	marketFeed.OnUpdate(func(u feed.Update) {
		session.OnPrice(u.Price)
		if u.CandleClosed {
			session.OnCandle(ctx, u.Candle)
		}
	})
	marketFeed.OnError(func(err error) {
		app.Logger.Warn().Err(err).Msg("Feed error")
	})
	marketFeed.OnDisconnect(func() {
		output.Warning("Feed disconnected, reconnecting...")
	})

	if err := marketFeed.Connect(ctx); err != nil {
		return err
	}
	defer marketFeed.Close()

	output.Success("Connected. Streaming %s %s.", symbol, interval)
	printTerminalHelp(output)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	output.Printf("> ")
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			output.Printf("> ")
			continue
		}

		fields := strings.Fields(line)
		command := strings.ToLower(fields[0])

		switch command {
		case "quit", "exit", "q":
			output.Println("Session ended.")
			return nil
		case "help", "?":
			printTerminalHelp(output)
		case "buy", "sell":
			handleIntent(ctx, output, session, command, fields[1:])
		case "proceed":
			handleResolve(ctx, output, session, true)
		case "abort":
			handleResolve(ctx, output, session, false)
		case "close":
			handleClose(ctx, output, session)
		case "status":
			printStatus(output, session)
		case "profile":
			printProfile(output, session.Profile())
		default:
			output.Warning("Unknown command %q. Type 'help'.", command)
		}
		output.Printf("> ")
	}
	return scanner.Err()
}

func printTerminalHelp(output *Output) {
	output.Println()
	output.Bold("Commands")
	output.Println("  buy <size> <reasoning>   propose a long entry")
	output.Println("  sell <size> <reasoning>  propose a short entry")
	output.Println("  proceed                  execute anyway after an intervention")
	output.Println("  abort                    stand down and bank the saved capital")
	output.Println("  close                    close the open position")
	output.Println("  status                   show price, state and unrealized P&L")
	output.Println("  profile                  show the psychological profile")
	output.Println("  quit                     end the session")
	output.Println()
}

func handleIntent(ctx context.Context, output *Output, session *coach.Session, command string, args []string) {
	if len(args) < 2 {
		output.Warning("Usage: %s <size> <reasoning>", command)
		return
	}

	size, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		output.Error("Invalid size: %s", args[0])
		return
	}
	reasoning := strings.Join(args[1:], " ")

	side := models.OrderSideBuy
	if command == "sell" {
		side = models.OrderSideSell
	}

	output.Dim("Judging intent...")
	verdict, err := session.ProposeTrade(ctx, side, size, reasoning)
	if err != nil {
		output.Error("%v", err)
		return
	}

	if !verdict.InterventionRequired {
		trade := session.OpenTrade()
		if trade != nil {
			output.Success("Executed %s %s @ %s (slippage %s)",
				trade.Side, FormatSize(trade.Size), FormatUSD(trade.EntryPrice), FormatUSD(trade.Slippage))
		}
		return
	}

	output.Println()
	output.Error("⚠ INTERVENTION")
	output.Println("  " + verdict.Reason)
	if verdict.EvidenceSummary != "" {
		output.Dim("  %s", verdict.EvidenceSummary)
	}
	for _, ev := range verdict.EvidenceTrades {
		output.Dim("  evidence: %s  %s  %s", ev.TradeID, FormatPnL(ev.PnL), ev.Reason)
	}
	output.Printf("  Estimated risk: %s\n", FormatUSD(verdict.EstimatedRiskAmount))
	output.Warning("Type 'abort' to stand down. 'proceed' unlocks in %s.",
		FormatDuration(session.CountdownRemaining()))
}

func handleResolve(ctx context.Context, output *Output, session *coach.Session, proceed bool) {
	trade, err := session.ResolveIntervention(ctx, proceed)
	if err != nil {
		if remaining := session.CountdownRemaining(); proceed && remaining > 0 {
			output.Warning("Proceed is locked for another %s.", FormatDuration(remaining))
			return
		}
		output.Error("%v", err)
		return
	}

	if proceed && trade != nil {
		output.Success("Executed %s %s @ %s against advice (slippage %s)",
			trade.Side, FormatSize(trade.Size), FormatUSD(trade.EntryPrice), FormatUSD(trade.Slippage))
		return
	}
	profile := session.Profile()
	output.Success("Stood down. Capital preserved to date: %s", FormatUSD(profile.CapitalPreserved))
}

func handleClose(ctx context.Context, output *Output, session *coach.Session) {
	trade, err := session.CloseTrade(ctx)
	if err != nil {
		output.Error("%v", err)
		if trade == nil {
			return
		}
	}
	if trade == nil {
		return
	}

	pnl := 0.0
	if trade.PnL != nil {
		pnl = *trade.PnL
	}
	output.Printf("Closed %s @ %s  P&L: %s\n", trade.Side, FormatUSD(*trade.ExitPrice), output.FormatPnL(pnl))
	output.Println()
	output.Bold("Mirror")
	output.Println("  " + trade.Narrative)
}

func printStatus(output *Output, session *coach.Session) {
	output.Printf("Price: %s  State: %s\n", FormatUSD(session.LastPrice()), session.State())

	if trade := session.OpenTrade(); trade != nil {
		unrealized, err := session.LiveUnrealizedPnL()
		if err == nil {
			output.Printf("Open: %s %s @ %s  Unrealized: %s\n",
				trade.Side, FormatSize(trade.Size), FormatUSD(trade.EntryPrice), output.FormatPnL(unrealized))
		}
	}
	if session.State() == coach.StateInterventionPending {
		if v := session.PendingVerdict(); v != nil {
			output.Warning("Intervention pending: %s (proceed unlocks in %s)",
				v.Reason, FormatDuration(session.CountdownRemaining()))
		}
	}
}

func printProfile(output *Output, profile models.PsychologicalProfile) {
	output.Bold("Psychological Profile")
	output.Printf("  Top Bias:          %s\n", profile.TopBias)
	output.Printf("  Risk Tolerance:    %s\n", profile.RiskTolerance)
	output.Printf("  Capital Preserved: %s\n", FormatUSD(profile.CapitalPreserved))
	output.Printf("  Summary:           %s\n", profile.Summary)
}
