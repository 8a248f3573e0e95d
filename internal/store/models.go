package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/fortuna/dubs/internal/process"
)

// DayLayout is the storage and wire format of a Day
const DayLayout = "2006-01-02"

// Day is a UTC calendar day stored as DATE
type Day struct {
	time.Time
}

// NewDay truncates t to its UTC calendar day
func NewDay(t time.Time) Day {
	t = t.UTC()
	return Day{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day{t}, nil
}

func (d Day) String() string { return d.Format(DayLayout) }

// Value implements driver.Valuer
func (d Day) Value() (driver.Value, error) {
	return d.Format(DayLayout), nil
}

// Scan implements sql.Scanner for DATE columns returned as time or text
func (d *Day) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDay(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Day", src)
	}
}

func (d *Day) scanString(s string) error {
	if len(s) >= len(DayLayout) {
		s = s[:len(DayLayout)]
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NullFloat maps NaN to NULL
func NullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// FloatOrNaN maps NULL to NaN
func FloatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Game is a row of the games table
type Game struct {
	GameDate           Day             `json:"date" db:"game_date"`
	Season             int             `json:"season" db:"season"`
	Opponent           string          `json:"opponent" db:"opponent"`
	Home               bool            `json:"home" db:"home"`
	Win                bool            `json:"win" db:"win"`
	OvertimePeriods    int             `json:"overtime_periods" db:"overtime_periods"`
	TeamScore          int             `json:"team_score" db:"team_score"`
	OpponentScore      int             `json:"opponent_score" db:"opponent_score"`
	PointDifference    int             `json:"point_difference" db:"point_difference"`
	AbsPointDifference int             `json:"abs_point_difference" db:"abs_point_difference"`
	PointsLeader       sql.NullString  `json:"-" db:"points_leader"`
	PointsValue        sql.NullFloat64 `json:"-" db:"points_value"`
	ReboundsLeader     sql.NullString  `json:"-" db:"rebounds_leader"`
	ReboundsValue      sql.NullFloat64 `json:"-" db:"rebounds_value"`
	AssistsLeader      sql.NullString  `json:"-" db:"assists_leader"`
	AssistsValue       sql.NullFloat64 `json:"-" db:"assists_value"`
	FeaturedPoints     sql.NullFloat64 `json:"-" db:"featured_points"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// GameFromRecord converts a cleaned game into its row
func GameFromRecord(g process.Game) Game {
	return Game{
		GameDate:           NewDay(g.Date),
		Season:             g.Season,
		Opponent:           g.Opponent,
		Home:               g.Home,
		Win:                g.Win,
		OvertimePeriods:    g.OvertimePeriods,
		TeamScore:          g.TeamScore,
		OpponentScore:      g.OpponentScore,
		PointDifference:    g.PointDifference(),
		AbsPointDifference: g.AbsPointDifference(),
		PointsLeader:       nullString(g.Points.Name),
		PointsValue:        NullFloat(g.Points.Value),
		ReboundsLeader:     nullString(g.Rebounds.Name),
		ReboundsValue:      NullFloat(g.Rebounds.Value),
		AssistsLeader:      nullString(g.Assists.Name),
		AssistsValue:       NullFloat(g.Assists.Value),
		FeaturedPoints:     NullFloat(g.FeaturedPoints),
	}
}

// Record converts the row back into a cleaned game
func (g Game) Record() process.Game {
	return process.Game{
		Date:            g.GameDate.Time,
		Season:          g.Season,
		Opponent:        g.Opponent,
		Home:            g.Home,
		Win:             g.Win,
		OvertimePeriods: g.OvertimePeriods,
		TeamScore:       g.TeamScore,
		OpponentScore:   g.OpponentScore,
		Points:          process.Leader{Name: g.PointsLeader.String, Value: FloatOrNaN(g.PointsValue)},
		Rebounds:        process.Leader{Name: g.ReboundsLeader.String, Value: FloatOrNaN(g.ReboundsValue)},
		Assists:         process.Leader{Name: g.AssistsLeader.String, Value: FloatOrNaN(g.AssistsValue)},
		FeaturedPoints:  FloatOrNaN(g.FeaturedPoints),
	}
}

// ArticleDay is a row of article_days with its sponsor counts
type ArticleDay struct {
	ArticleDate       Day            `json:"date" db:"article_date"`
	ArticleCount      int            `json:"article_count" db:"article_count"`
	TotalSponsorCount int            `json:"total_sponsor_count" db:"total_sponsor_count"`
	MajorSponsors     []string       `json:"major_sponsors" db:"major_sponsors"`
	OtherSponsors     []string       `json:"other_sponsors" db:"other_sponsors"`
	Titles            []string       `json:"titles" db:"titles"`
	Counts            map[string]int `json:"counts" db:"-"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// ArticleDayFromRecord converts an aggregated day into its row
func ArticleDayFromRecord(d process.ArticleDay) ArticleDay {
	counts := make(map[string]int, len(d.Counts))
	for k, v := range d.Counts {
		counts[k] = v
	}
	return ArticleDay{
		ArticleDate:       NewDay(d.Date),
		ArticleCount:      d.ArticleCount,
		TotalSponsorCount: d.TotalSponsorCount,
		MajorSponsors:     nonNil(d.MajorSponsors),
		OtherSponsors:     nonNil(d.OtherSponsors),
		Titles:            nonNil(d.Titles),
		Counts:            counts,
	}
}

// Record converts the row back into an aggregated day
func (d ArticleDay) Record() process.ArticleDay {
	counts := d.Counts
	if counts == nil {
		counts = map[string]int{}
	}
	return process.ArticleDay{
		Date:              d.ArticleDate.Time,
		ArticleCount:      d.ArticleCount,
		Counts:            counts,
		TotalSponsorCount: d.TotalSponsorCount,
		MajorSponsors:     d.MajorSponsors,
		OtherSponsors:     d.OtherSponsors,
		Titles:            d.Titles,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// TrendPoint is a row of trend_points
type TrendPoint struct {
	TrendDate     Day             `json:"date" db:"trend_date"`
	Keyword       string          `json:"keyword" db:"keyword"`
	RawValue      sql.NullFloat64 `json:"-" db:"raw_value"`
	ScaledValue   sql.NullFloat64 `json:"-" db:"scaled_value"`
	AdjustedValue sql.NullFloat64 `json:"-" db:"adjusted_value"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// TrendPointsFromTable flattens the wide trend table into rows
func TrendPointsFromTable(t process.TrendTable) []TrendPoint {
	var out []TrendPoint
	for _, row := range t.Rows {
		for _, k := range t.Keywords {
			v, ok := row.Values[k]
			if !ok {
				continue
			}
			out = append(out, TrendPoint{
				TrendDate:     NewDay(row.Date),
				Keyword:       k,
				RawValue:      NullFloat(v.Raw),
				ScaledValue:   NullFloat(v.Scaled),
				AdjustedValue: NullFloat(v.Adjusted),
			})
		}
	}
	return out
}

// TrendTableFromPoints rebuilds the wide table, keeping keywords in the given order
func TrendTableFromPoints(keywords []string, points []TrendPoint) process.TrendTable {
	series := make(map[string]*process.TrendSeries, len(keywords))
	ordered := make([]*process.TrendSeries, 0, len(keywords))
	for _, k := range keywords {
		s := &process.TrendSeries{Keyword: k}
		series[k] = s
		ordered = append(ordered, s)
	}
	for _, p := range points {
		s, ok := series[p.Keyword]
		if !ok {
			s = &process.TrendSeries{Keyword: p.Keyword}
			series[p.Keyword] = s
			ordered = append(ordered, s)
		}
		s.Points = append(s.Points, process.TrendPoint{
			Date:     p.TrendDate.Time,
			Raw:      FloatOrNaN(p.RawValue),
			Scaled:   FloatOrNaN(p.ScaledValue),
			Adjusted: FloatOrNaN(p.AdjustedValue),
		})
	}

	merged := make([]process.TrendSeries, 0, len(ordered))
	for _, s := range ordered {
		if len(s.Points) > 0 {
			merged = append(merged, *s)
		}
	}
	return process.MergeTrends(merged)
}

// Run statuses
const (
	RunQueued    = "queued"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is a row of the runs table
type Run struct {
	RunID        string       `json:"run_id" db:"run_id"`
	Status       string       `json:"status" db:"status"`
	Message      string       `json:"message" db:"message"`
	Spec         string       `json:"spec" db:"spec"`
	Games        int          `json:"games" db:"games"`
	Articles     int          `json:"articles" db:"articles"`
	ArticleDays  int          `json:"article_days" db:"article_days"`
	TrendDays    int          `json:"trend_days" db:"trend_days"`
	CombinedDays int          `json:"combined_days" db:"combined_days"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	StartedAt    sql.NullTime `json:"started_at" db:"started_at"`
	FinishedAt   sql.NullTime `json:"finished_at" db:"finished_at"`
}
