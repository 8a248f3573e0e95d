package main

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/fortuna/dubs/internal/analysis"
	"github.com/fortuna/dubs/internal/runner"
	"github.com/fortuna/dubs/internal/service"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func printResult(r *runner.Result) {
	t := newTable()
	t.SetTitle("Run " + r.RunID)
	t.AppendHeader(table.Row{"Dataset", "Input", "Kept", "Dropped", "Duplicates"})
	t.AppendRow(table.Row{"games", count(r.Games.Input), count(r.Games.Kept), count(r.Games.Dropped), count(r.Games.Duplicates)})
	t.AppendRow(table.Row{"articles", count(r.Articles.Input), count(r.Articles.Kept), count(r.Articles.Dropped), count(r.Articles.Duplicates)})
	t.AppendSeparator()
	t.AppendRow(table.Row{"article days", "", count(r.ArticleDays), "", ""})
	t.AppendRow(table.Row{"trend days", "", count(r.TrendDays), "", ""})
	t.AppendRow(table.Row{"combined days", "", count(r.CombinedDays), "", ""})
	if r.Published > 0 {
		t.AppendRow(table.Row{"published", "", count(r.Published), "", ""})
	}
	t.Render()

	for _, f := range r.Files {
		fmt.Println("wrote", f)
	}
}

func printSummaries(summaries []*service.SeasonSummary) {
	t := newTable()
	t.AppendHeader(table.Row{"Season", "Games", "W", "L", "Win %", "Home %", "Away %", "OT", "Avg diff", "Featured PPG", "Articles"})
	for _, s := range summaries {
		ppg := "-"
		if s.FeaturedPPG != nil {
			ppg = strconv.FormatFloat(*s.FeaturedPPG, 'f', 1, 64)
		}
		t.AppendRow(table.Row{
			s.Season, s.Games, s.Wins, s.Losses,
			pct(s.WinPct), pct(s.HomeWinPct), pct(s.AwayWinPct),
			s.OvertimeGames, fmt.Sprintf("%+.1f", s.AvgPointDiff), ppg, count(s.Articles),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 11, Align: text.AlignRight},
	})
	t.Render()
}

func pct(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64)
}

func printMatrix(m *analysis.Matrix) {
	t := newTable()
	t.SetTitle(m.Name)

	header := table.Row{""}
	for _, c := range m.Columns {
		header = append(header, c)
	}
	t.AppendHeader(header)

	for i, c := range m.Columns {
		row := table.Row{c}
		for j := range m.Columns {
			row = append(row, formatStat(m.Values[i][j], 3))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func printMatrixList(specs []analysis.MatrixSpec) {
	t := newTable()
	t.AppendHeader(table.Row{"Name", "Title", "Columns"})
	for _, s := range specs {
		t.AppendRow(table.Row{s.Name, s.Title, len(s.Columns)})
	}
	t.Render()
}

func printRegressions(results []analysis.DatasetRegression) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Dataset < results[j].Dataset })
	for _, r := range results {
		if r.Result == nil {
			fmt.Printf("%s: %s\n", r.Dataset, r.Error)
			continue
		}
		t := newTable()
		t.SetTitle(fmt.Sprintf("%s  %s  (n=%d, R²=%s, adj R²=%s)", r.Dataset, r.Result.Formula, r.Result.N,
			formatStat(r.Result.RSquared, 3), formatStat(r.Result.AdjRSquared, 3)))
		t.AppendHeader(table.Row{"Term", "Estimate", "Std err", "t", "P>|t|"})
		for _, c := range r.Result.Coefficients {
			t.AppendRow(table.Row{c.Term, formatStat(c.Estimate, 4), formatStat(c.StdErr, 4), formatStat(c.T, 3), formatStat(c.P, 4)})
		}
		t.Render()
	}
}

func formatStat(v float64, prec int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
