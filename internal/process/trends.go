package process

import (
	"math"
	"sort"
	"time"

	"github.com/fortuna/dubs/internal/ingest/google"
)

// TrendPoint is a daily interest observation with its one-day-lead value
type TrendPoint struct {
	Date     time.Time
	Raw      float64
	Scaled   float64
	Adjusted float64
}

// TrendSeries is the processed history of one keyword
type TrendSeries struct {
	Keyword string
	Points  []TrendPoint
}

// ProcessTrends attaches the adjusted value to every observation: the scaled
// value of the following calendar day, or NaN when that day was not observed.
func ProcessTrends(series google.Series) TrendSeries {
	scaled := make(map[time.Time]float64, len(series.Points))
	for _, p := range series.Points {
		scaled[truncateDay(p.Date)] = p.Scaled
	}

	out := TrendSeries{Keyword: series.Keyword, Points: make([]TrendPoint, 0, len(series.Points))}
	for _, p := range series.Points {
		day := truncateDay(p.Date)
		adjusted, ok := scaled[day.AddDate(0, 0, 1)]
		if !ok {
			adjusted = math.NaN()
		}
		out.Points = append(out.Points, TrendPoint{Date: day, Raw: p.Raw, Scaled: p.Scaled, Adjusted: adjusted})
	}
	sort.SliceStable(out.Points, func(i, j int) bool { return out.Points[i].Date.Before(out.Points[j].Date) })
	return out
}

// TrendValues are one keyword's values on one day
type TrendValues struct {
	Raw      float64
	Scaled   float64
	Adjusted float64
}

func missingTrend() TrendValues {
	nan := math.NaN()
	return TrendValues{Raw: nan, Scaled: nan, Adjusted: nan}
}

// TrendRow is one day of the wide trend table
type TrendRow struct {
	Date   time.Time
	Values map[string]TrendValues
}

// Get returns the values of keyword, all NaN when it was not observed
func (r TrendRow) Get(keyword string) TrendValues {
	if v, ok := r.Values[keyword]; ok {
		return v
	}
	return missingTrend()
}

// TrendTable is the outer join of every keyword's series on date
type TrendTable struct {
	Keywords []string
	Rows     []TrendRow
}

// MergeTrends wide-merges processed series into one table sorted by date.
// Keywords keep the order they were given in.
func MergeTrends(series []TrendSeries) TrendTable {
	table := TrendTable{}
	byDate := make(map[time.Time]int)

	for _, s := range series {
		table.Keywords = append(table.Keywords, s.Keyword)
		for _, p := range s.Points {
			idx, ok := byDate[p.Date]
			if !ok {
				idx = len(table.Rows)
				byDate[p.Date] = idx
				table.Rows = append(table.Rows, TrendRow{Date: p.Date, Values: map[string]TrendValues{}})
			}
			if _, dup := table.Rows[idx].Values[s.Keyword]; dup {
				continue
			}
			table.Rows[idx].Values[s.Keyword] = TrendValues{Raw: p.Raw, Scaled: p.Scaled, Adjusted: p.Adjusted}
		}
	}

	sort.Slice(table.Rows, func(i, j int) bool { return table.Rows[i].Date.Before(table.Rows[j].Date) })
	return table
}
