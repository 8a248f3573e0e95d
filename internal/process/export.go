package process

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// gameRow is the cleaned games.csv layout
type gameRow struct {
	Date               string `csv:"Date"`
	Season             int    `csv:"Season"`
	Opponent           string `csv:"Opponent"`
	Home               int    `csv:"Home"`
	Win                int    `csv:"Win"`
	Overtime           int    `csv:"Overtime"`
	OvertimePeriods    int    `csv:"Overtime_Periods"`
	TeamScore          int    `csv:"Team_Score"`
	OpponentScore      int    `csv:"Opponent_Score"`
	PointDifference    int    `csv:"Point_Difference"`
	AbsPointDifference int    `csv:"Abs_Point_Difference"`
	HiPointsName       string `csv:"Hi_Points_Name"`
	HiPointsValue      string `csv:"Hi_Points_Value"`
	HiReboundsName     string `csv:"Hi_Rebounds_Name"`
	HiReboundsValue    string `csv:"Hi_Rebounds_Value"`
	HiAssistsName      string `csv:"Hi_Assists_Name"`
	HiAssistsValue     string `csv:"Hi_Assists_Value"`
	FeaturedPoints     string `csv:"Featured_Hi_Points_Value"`
}

// WriteGamesCSV writes cleaned games
func WriteGamesCSV(w io.Writer, games []Game) error {
	rows := make([]gameRow, 0, len(games))
	for _, g := range games {
		rows = append(rows, gameRow{
			Date:               g.Date.Format(dayLayout),
			Season:             g.Season,
			Opponent:           g.Opponent,
			Home:               int(boolValue(g.Home)),
			Win:                int(boolValue(g.Win)),
			Overtime:           int(boolValue(g.Overtime())),
			OvertimePeriods:    g.OvertimePeriods,
			TeamScore:          g.TeamScore,
			OpponentScore:      g.OpponentScore,
			PointDifference:    g.PointDifference(),
			AbsPointDifference: g.AbsPointDifference(),
			HiPointsName:       g.Points.Name,
			HiPointsValue:      FormatValue(g.Points.Value),
			HiReboundsName:     g.Rebounds.Name,
			HiReboundsValue:    FormatValue(g.Rebounds.Value),
			HiAssistsName:      g.Assists.Name,
			HiAssistsValue:     FormatValue(g.Assists.Value),
			FeaturedPoints:     FormatValue(g.FeaturedPoints),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("encoding games csv: %w", err)
	}
	return nil
}

// WriteArticleDaysCSV writes aggregated article days with one count column
// per sponsor in table order
func WriteArticleDaysCSV(w io.Writer, days []ArticleDay, countKeys []string) error {
	header := []string{"Date", ColArticleCount}
	for _, k := range countKeys {
		header = append(header, k+"_Count")
	}
	header = append(header, ColTotalSponsorCount, "Major_Sponsor", "Other_Sponsor", "Titles")

	records := make([][]string, 0, len(days))
	for _, d := range days {
		rec := []string{d.Date.Format(dayLayout), strconv.Itoa(d.ArticleCount)}
		for _, k := range countKeys {
			rec = append(rec, strconv.Itoa(d.Counts[k]))
		}
		rec = append(rec,
			strconv.Itoa(d.TotalSponsorCount),
			strings.Join(d.MajorSponsors, ";"),
			strings.Join(d.OtherSponsors, ";"),
			strings.Join(d.Titles, " | "),
		)
		records = append(records, rec)
	}
	return writeRecords(w, header, records, "article days")
}

// WriteTrendsCSV writes the wide trend table
func WriteTrendsCSV(w io.Writer, table TrendTable) error {
	header := []string{"Date"}
	header = append(header, table.Keywords...)
	for _, k := range table.Keywords {
		header = append(header, k+"_unscaled")
	}
	for _, k := range table.Keywords {
		header = append(header, AdjustedColumn(k))
	}

	records := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		rec := []string{row.Date.Format(dayLayout)}
		for _, k := range table.Keywords {
			rec = append(rec, FormatValue(row.Get(k).Scaled))
		}
		for _, k := range table.Keywords {
			rec = append(rec, FormatValue(row.Get(k).Raw))
		}
		for _, k := range table.Keywords {
			rec = append(rec, FormatValue(row.Get(k).Adjusted))
		}
		records = append(records, rec)
	}
	return writeRecords(w, header, records, "trends")
}

// WriteCombinedCSV writes every column of the combined table.
// Missing values are written as empty cells.
func WriteCombinedCSV(w io.Writer, t *Table) error {
	cols := t.Columns()
	header := append([]string{"Date", "Opponent"}, cols...)

	values := make([][]float64, len(cols))
	for i, c := range cols {
		v, err := t.Column(c)
		if err != nil {
			return err
		}
		values[i] = v
	}

	records := make([][]string, 0, t.Len())
	for r, rec := range t.Records {
		opponent := ""
		if rec.Game != nil {
			opponent = rec.Game.Opponent
		}
		row := []string{rec.Date.Format(dayLayout), opponent}
		for c := range cols {
			row = append(row, FormatValue(values[c][r]))
		}
		records = append(records, row)
	}
	return writeRecords(w, header, records, "combined")
}

// FormatValue renders a float for export, empty for NaN
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Nullable maps NaN and infinities to nil for JSON output
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func writeRecords(w io.Writer, header []string, records [][]string, what string) error {
	out := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	if err := out.Write(header); err != nil {
		return fmt.Errorf("writing %s csv header: %w", what, err)
	}
	for _, rec := range records {
		if err := out.Write(rec); err != nil {
			return fmt.Errorf("writing %s csv: %w", what, err)
		}
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("flushing %s csv: %w", what, err)
	}
	return nil
}
