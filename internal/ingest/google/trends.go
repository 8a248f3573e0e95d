package google

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/fortuna/dubs/internal/roster"
)

// Point is one daily search-interest observation.
// Missing values are NaN.
type Point struct {
	Date   time.Time
	Raw    float64
	Scaled float64
}

// Series is the daily interest history of one keyword, sorted by date
type Series struct {
	Keyword string
	Points  []Point
}

// ErrNoDateColumn is returned when a trend export has no date column
var ErrNoDateColumn = errors.New("trend csv has no date column")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func log() *slog.Logger {
	return slog.Default().With("component", "trends")
}

// TrendFile is the pre-fetched export name for a keyword
func TrendFile(keyword string) string {
	return roster.Slug(keyword) + "_trends.csv"
}

// ReadTrendCSV reads a daily-data export for keyword.
// The scaled value is the <keyword> column; <keyword>_unscaled is the raw value
// when present, otherwise raw equals scaled. Duplicate dates keep the first row.
func ReadTrendCSV(r io.Reader, keyword string) (Series, error) {
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return Series{}, fmt.Errorf("decoding trend csv for %s: %w", keyword, err)
	}

	series := Series{Keyword: keyword}
	if len(rows) == 0 {
		return series, nil
	}

	dateCol := findColumn(rows[0], "date")
	if dateCol == "" {
		return series, ErrNoDateColumn
	}
	scaledCol := findColumn(rows[0], keyword)
	if scaledCol == "" {
		return series, fmt.Errorf("trend csv has no %q column", keyword)
	}
	rawCol := findColumn(rows[0], keyword+"_unscaled")

	seen := make(map[time.Time]bool, len(rows))
	for i, row := range rows {
		day, err := parseDay(row[dateCol])
		if err != nil {
			log().Debug("skipping trend row", "keyword", keyword, "row", i+1, "err", err)
			continue
		}
		if seen[day] {
			continue
		}
		seen[day] = true

		p := Point{Date: day, Scaled: parseValue(row[scaledCol])}
		if rawCol != "" {
			p.Raw = parseValue(row[rawCol])
		} else {
			p.Raw = p.Scaled
		}
		series.Points = append(series.Points, p)
	}

	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Date.Before(series.Points[j].Date)
	})
	return series, nil
}

// LoadTrendDir reads <Slug>_trends.csv for every keyword.
// Keywords without a readable export are logged and skipped.
func LoadTrendDir(dir string, keywords []string) ([]Series, error) {
	var out []Series
	for _, keyword := range keywords {
		path := filepath.Join(dir, TrendFile(keyword))
		f, err := os.Open(path)
		if err != nil {
			log().Warn("skipping keyword, trend export unavailable", "keyword", keyword, "err", err)
			continue
		}
		series, err := ReadTrendCSV(f, keyword)
		f.Close()
		if err != nil {
			log().Warn("skipping keyword, trend export unreadable", "keyword", keyword, "err", err)
			continue
		}
		log().Info("loaded trend series", "keyword", keyword, "days", len(series.Points))
		out = append(out, series)
	}
	return out, nil
}

func findColumn(row map[string]string, name string) string {
	for col := range row {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return col
		}
	}
	return ""
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
