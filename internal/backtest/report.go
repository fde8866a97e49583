package backtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Report renders a result as console tables.
func Report(r *Result) string {
	var b strings.Builder

	summary := table.NewWriter()
	summary.SetStyle(table.StyleLight)
	summary.SetTitle(fmt.Sprintf("Walk-Forward Backtest %s %s", r.Symbol, r.Timeframe))
	summary.AppendRows([]table.Row{
		{"Trades", r.TotalTrades},
		{"Win rate", fmt.Sprintf("%.1f%%", r.WinRate)},
		{"Net profit", fmt.Sprintf("%.2f", r.NetProfit)},
		{"ROI", fmt.Sprintf("%.2f%%", r.ROI)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdown)},
		{"Profit factor", fmt.Sprintf("%.2f", r.ProfitFactor)},
		{"Sharpe", fmt.Sprintf("%.2f", r.SharpeRatio)},
		{"Avg win / avg loss", fmt.Sprintf("%.2f / %.2f", r.AverageWin, r.AverageLoss)},
		{"Final equity", fmt.Sprintf("%.2f", r.FinalEquity)},
	})
	b.WriteString(summary.Render())
	b.WriteString("\n\n")

	windows := table.NewWriter()
	windows.SetStyle(table.StyleLight)
	windows.AppendHeader(table.Row{"Window", "Train", "Test", "Model", "Trades", "Win %", "Net P/L"})
	for _, w := range r.Windows {
		model := "rules only"
		if w.ModelUsed {
			model = "blended"
		}
		windows.AppendRow(table.Row{
			w.Window, w.TrainBars, w.TestBars, model, w.Trades,
			fmt.Sprintf("%.1f", w.WinRate), fmt.Sprintf("%.2f", w.NetProfit),
		})
	}
	windows.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Net P/L", Align: text.AlignRight},
	})
	b.WriteString(windows.Render())
	b.WriteString("\n\n")

	if len(r.RuleStats) > 0 {
		names := make([]string, 0, len(r.RuleStats))
		for name := range r.RuleStats {
			names = append(names, name)
		}
		sort.Strings(names)

		rules := table.NewWriter()
		rules.SetStyle(table.StyleLight)
		rules.AppendHeader(table.Row{"Rule", "Trades", "Wins", "Losses", "Win %", "Net P/L"})
		for _, name := range names {
			st := r.RuleStats[name]
			rules.AppendRow(table.Row{
				st.Rule, st.TotalTrades, st.Wins, st.Losses,
				fmt.Sprintf("%.1f", st.WinRate), fmt.Sprintf("%.2f", st.NetProfit),
			})
		}
		b.WriteString(rules.Render())
		b.WriteString("\n")
	}

	return b.String()
}
