package process

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fortuna/dubs/internal/roster"
)

const dayLayout = "2006-01-02"

var (
	// ErrDuplicateDate is returned when a source table has two rows for one day
	ErrDuplicateDate = errors.New("duplicate date")
	// ErrUnknownColumn is returned for a column name the combined table lacks
	ErrUnknownColumn = errors.New("unknown column")
)

// Fixed combined-table column names
const (
	ColWin                = "Win"
	ColHome               = "Home"
	ColOvertime           = "Overtime"
	ColTeamScore          = "Team_Score"
	ColOpponentScore      = "Opponent_Score"
	ColPointDifference    = "Point_Difference"
	ColAbsPointDifference = "Abs_Point_Difference"
	ColArticleCount       = "Article_Count"
	ColTotalSponsorCount  = "Total_Sponsor_Count"
)

// FeaturedColumn names the featured player's points-leader column
func FeaturedColumn(featured string) string {
	return featured + "_Hi_Points_Value"
}

// AdjustedColumn names the one-day-lead trend column of keyword
func AdjustedColumn(keyword string) string {
	return roster.Slug(keyword) + "_adjusted"
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyRecord is one calendar day of the combined table.
// Game is nil on days without a game.
type DailyRecord struct {
	Date     time.Time
	Game     *Game
	Articles ArticleDay
	Trends   TrendRow
}

// Table is the combined daily dataset
type Table struct {
	Featured string
	Keywords []string
	Sponsors []roster.Sponsor
	Records  []DailyRecord
}

// Combine outer-joins games, article days and trends on every day from start
// through end inclusive. Days without articles have zero counts; days without
// games or trend observations carry NaN in those columns.
func Combine(games []Game, days []ArticleDay, trends TrendTable, start, end time.Time, featured string) (*Table, error) {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("combine window ends %s before it starts %s", end.Format(dayLayout), start.Format(dayLayout))
	}

	gameByDate := make(map[time.Time]*Game, len(games))
	for i := range games {
		d := truncateDay(games[i].Date)
		if _, dup := gameByDate[d]; dup {
			return nil, fmt.Errorf("games on %s: %w", d.Format(dayLayout), ErrDuplicateDate)
		}
		gameByDate[d] = &games[i]
	}

	articleByDate := make(map[time.Time]ArticleDay, len(days))
	for _, day := range days {
		d := truncateDay(day.Date)
		if _, dup := articleByDate[d]; dup {
			return nil, fmt.Errorf("article days on %s: %w", d.Format(dayLayout), ErrDuplicateDate)
		}
		articleByDate[d] = day
	}

	trendByDate := make(map[time.Time]TrendRow, len(trends.Rows))
	for _, row := range trends.Rows {
		d := truncateDay(row.Date)
		if _, dup := trendByDate[d]; dup {
			return nil, fmt.Errorf("trends on %s: %w", d.Format(dayLayout), ErrDuplicateDate)
		}
		trendByDate[d] = row
	}

	table := &Table{
		Featured: featured,
		Keywords: append([]string(nil), trends.Keywords...),
		Sponsors: roster.Sponsors(),
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		rec := DailyRecord{Date: d, Game: gameByDate[d]}
		if a, ok := articleByDate[d]; ok {
			rec.Articles = a
		} else {
			rec.Articles = ArticleDay{Date: d, Counts: map[string]int{}}
		}
		if t, ok := trendByDate[d]; ok {
			rec.Trends = t
		} else {
			rec.Trends = TrendRow{Date: d, Values: map[string]TrendValues{}}
		}
		table.Records = append(table.Records, rec)
	}

	log().Info("combined daily table",
		"start", start.Format(dayLayout), "end", end.Format(dayLayout),
		"days", len(table.Records), "games", len(gameByDate), "article_days", len(articleByDate))
	return table, nil
}

// Len is the number of days in the table
func (t *Table) Len() int { return len(t.Records) }

// Columns lists every numeric column in export order
func (t *Table) Columns() []string {
	cols := []string{
		ColWin, ColHome, ColOvertime, ColTeamScore, ColOpponentScore,
		ColPointDifference, ColAbsPointDifference,
	}
	if t.Featured != "" {
		cols = append(cols, FeaturedColumn(t.Featured))
	}
	cols = append(cols, ColArticleCount)
	for _, s := range t.Sponsors {
		cols = append(cols, s.CountColumn())
	}
	cols = append(cols, ColTotalSponsorCount)
	cols = append(cols, t.Keywords...)
	for _, k := range t.Keywords {
		cols = append(cols, AdjustedColumn(k))
	}
	return cols
}

// Column returns one value per day for the named column
func (t *Table) Column(name string) ([]float64, error) {
	get, err := t.accessor(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.Records))
	for i := range t.Records {
		out[i] = get(&t.Records[i])
	}
	return out, nil
}

// Value returns the named column of a single record
func (t *Table) Value(rec *DailyRecord, name string) (float64, error) {
	get, err := t.accessor(name)
	if err != nil {
		return 0, err
	}
	return get(rec), nil
}

// Between returns the days from start through end inclusive
func (t *Table) Between(start, end time.Time) *Table {
	start, end = truncateDay(start), truncateDay(end)
	sub := &Table{Featured: t.Featured, Keywords: t.Keywords, Sponsors: t.Sponsors}
	for _, rec := range t.Records {
		if !rec.Date.Before(start) && !rec.Date.After(end) {
			sub.Records = append(sub.Records, rec)
		}
	}
	return sub
}

// Season returns the days inside the regular-season window of year
func (t *Table) Season(year int) (*Table, error) {
	s, ok := roster.SeasonByYear(year)
	if !ok {
		return nil, fmt.Errorf("no season window for %d", year)
	}
	return t.Between(s.Start, s.End), nil
}

func gameValue(f func(*Game) float64) func(*DailyRecord) float64 {
	return func(r *DailyRecord) float64 {
		if r.Game == nil {
			return math.NaN()
		}
		return f(r.Game)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (t *Table) accessor(name string) (func(*DailyRecord) float64, error) {
	switch name {
	case ColWin:
		return gameValue(func(g *Game) float64 { return boolValue(g.Win) }), nil
	case ColHome:
		return gameValue(func(g *Game) float64 { return boolValue(g.Home) }), nil
	case ColOvertime:
		return gameValue(func(g *Game) float64 { return boolValue(g.Overtime()) }), nil
	case ColTeamScore:
		return gameValue(func(g *Game) float64 { return float64(g.TeamScore) }), nil
	case ColOpponentScore:
		return gameValue(func(g *Game) float64 { return float64(g.OpponentScore) }), nil
	case ColPointDifference:
		return gameValue(func(g *Game) float64 { return float64(g.PointDifference()) }), nil
	case ColAbsPointDifference:
		return gameValue(func(g *Game) float64 { return float64(g.AbsPointDifference()) }), nil
	case ColArticleCount:
		return func(r *DailyRecord) float64 { return float64(r.Articles.ArticleCount) }, nil
	case ColTotalSponsorCount:
		return func(r *DailyRecord) float64 { return float64(r.Articles.TotalSponsorCount) }, nil
	}

	if t.Featured != "" && name == FeaturedColumn(t.Featured) {
		return gameValue(func(g *Game) float64 { return g.FeaturedPoints }), nil
	}
	for _, s := range t.Sponsors {
		if name == s.CountColumn() {
			key := s.CountKey
			return func(r *DailyRecord) float64 { return float64(r.Articles.Counts[key]) }, nil
		}
	}
	for _, k := range t.Keywords {
		keyword := k
		switch {
		case name == keyword:
			return func(r *DailyRecord) float64 { return r.Trends.Get(keyword).Scaled }, nil
		case strings.EqualFold(name, AdjustedColumn(keyword)):
			return func(r *DailyRecord) float64 { return r.Trends.Get(keyword).Adjusted }, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}
