package service

import (
	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/store"
)

// LeaderView is a stat leader with a null value when the cell was blank
type LeaderView struct {
	Name  string   `json:"name,omitempty"`
	Value *float64 `json:"value"`
}

// GameView is the API shape of a cleaned game
type GameView struct {
	Date               string     `json:"date"`
	Season             int        `json:"season"`
	Opponent           string     `json:"opponent"`
	Home               bool       `json:"home"`
	Win                bool       `json:"win"`
	Overtime           bool       `json:"overtime"`
	OvertimePeriods    int        `json:"overtime_periods"`
	TeamScore          int        `json:"team_score"`
	OpponentScore      int        `json:"opponent_score"`
	PointDifference    int        `json:"point_difference"`
	AbsPointDifference int        `json:"abs_point_difference"`
	Points             LeaderView `json:"hi_points"`
	Rebounds           LeaderView `json:"hi_rebounds"`
	Assists            LeaderView `json:"hi_assists"`
	FeaturedPoints     *float64   `json:"featured_points"`
}

// TrendView is one keyword observation
type TrendView struct {
	Date     string   `json:"date"`
	Keyword  string   `json:"keyword"`
	Raw      *float64 `json:"raw"`
	Scaled   *float64 `json:"scaled"`
	Adjusted *float64 `json:"adjusted"`
}

// DayView is one combined day with every numeric column
type DayView struct {
	Date          string              `json:"date"`
	Opponent      string              `json:"opponent,omitempty"`
	MajorSponsors []string            `json:"major_sponsors,omitempty"`
	Values        map[string]*float64 `json:"values"`
}

func leaderView(l process.Leader) LeaderView {
	return LeaderView{Name: l.Name, Value: process.Nullable(l.Value)}
}

// NewGameView converts a stored game row
func NewGameView(row store.Game) GameView {
	g := row.Record()
	return GameView{
		Date:               row.GameDate.String(),
		Season:             g.Season,
		Opponent:           g.Opponent,
		Home:               g.Home,
		Win:                g.Win,
		Overtime:           g.Overtime(),
		OvertimePeriods:    g.OvertimePeriods,
		TeamScore:          g.TeamScore,
		OpponentScore:      g.OpponentScore,
		PointDifference:    g.PointDifference(),
		AbsPointDifference: g.AbsPointDifference(),
		Points:             leaderView(g.Points),
		Rebounds:           leaderView(g.Rebounds),
		Assists:            leaderView(g.Assists),
		FeaturedPoints:     process.Nullable(g.FeaturedPoints),
	}
}

// NewTrendView converts a stored trend row
func NewTrendView(p store.TrendPoint) TrendView {
	return TrendView{
		Date:     p.TrendDate.String(),
		Keyword:  p.Keyword,
		Raw:      process.Nullable(store.FloatOrNaN(p.RawValue)),
		Scaled:   process.Nullable(store.FloatOrNaN(p.ScaledValue)),
		Adjusted: process.Nullable(store.FloatOrNaN(p.AdjustedValue)),
	}
}

// NewDayViews flattens a combined table
func NewDayViews(t *process.Table) ([]DayView, error) {
	columns := t.Columns()
	views := make([]DayView, 0, t.Len())
	for i := range t.Records {
		rec := &t.Records[i]
		view := DayView{
			Date:          store.NewDay(rec.Date).String(),
			MajorSponsors: rec.Articles.MajorSponsors,
			Values:        make(map[string]*float64, len(columns)),
		}
		if rec.Game != nil {
			view.Opponent = rec.Game.Opponent
		}
		for _, col := range columns {
			v, err := t.Value(rec, col)
			if err != nil {
				return nil, err
			}
			view.Values[col] = process.Nullable(v)
		}
		views = append(views, view)
	}
	return views, nil
}
