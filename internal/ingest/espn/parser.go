package espn

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocarina/gocsv"
)

// Schedule table selectors on the team schedule page
const (
	tableSelector   = "table.Table"
	rowSelector     = "tr.Table__TR--sm"
	cellSelector    = "td.Table__TD"
	headerSelector  = "td.Table_Headers"
	scheduleColumns = 7
)

// ErrNoTable is returned when a page has no schedule table
var ErrNoTable = errors.New("no schedule table found")

func log() *slog.Logger {
	return slog.Default().With("component", "espn")
}

// ScheduleFile is the saved page name for a season
func ScheduleFile(season int) string {
	return fmt.Sprintf("schedule_%d.html", season)
}

// ParseSchedule extracts raw game rows from a saved schedule page.
// Rows with a cell count other than seven (section banners, ads) are skipped.
func ParseSchedule(r io.Reader, season int) ([]RawGame, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	table := doc.Find(tableSelector).First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	headers := Headers(table)
	log().Debug("schedule headers", "season", season, "headers", headers)

	var games []RawGame
	table.Find(rowSelector).Each(func(i int, row *goquery.Selection) {
		cells := row.Find(cellSelector)
		if cells.Length() != scheduleColumns {
			return
		}

		games = append(games, RawGame{
			Season:     season,
			Date:       strippedText(cells.Eq(0)),
			Opponent:   spacedText(cells.Eq(1)),
			Result:     spacedText(cells.Eq(2)),
			Record:     strippedText(cells.Eq(3)),
			HiPoints:   spacedText(cells.Eq(4)),
			HiRebounds: spacedText(cells.Eq(5)),
			HiAssists:  spacedText(cells.Eq(6)),
		})
	})

	return games, nil
}

// Headers returns the table header names, falling back to DefaultHeaders
func Headers(table *goquery.Selection) []string {
	var headers []string
	table.Find(headerSelector).Each(func(i int, s *goquery.Selection) {
		headers = append(headers, strippedText(s))
	})
	if len(headers) == 0 {
		return append([]string(nil), DefaultHeaders...)
	}
	return headers
}

// LoadScheduleDir parses schedule_<season>.html for every season.
// Seasons whose page is missing or has no table are logged and skipped.
func LoadScheduleDir(dir string, seasons []int) ([]RawGame, error) {
	var all []RawGame
	for _, season := range seasons {
		path := filepath.Join(dir, ScheduleFile(season))
		f, err := os.Open(path)
		if err != nil {
			log().Warn("skipping season, schedule page unavailable", "season", season, "err", err)
			continue
		}

		games, err := ParseSchedule(f, season)
		f.Close()
		if err != nil {
			log().Warn("skipping season, schedule page unparseable", "season", season, "err", err)
			continue
		}

		log().Info("parsed schedule", "season", season, "rows", len(games))
		all = append(all, games...)
	}
	return all, nil
}

// ReadRawCSV loads the raw schedule dataset
func ReadRawCSV(r io.Reader) ([]RawGame, error) {
	var games []RawGame
	if err := gocsv.Unmarshal(r, &games); err != nil {
		return nil, fmt.Errorf("decoding raw schedule csv: %w", err)
	}
	return games, nil
}

// WriteRawCSV writes the raw schedule dataset
func WriteRawCSV(w io.Writer, games []RawGame) error {
	if err := gocsv.Marshal(&games, w); err != nil {
		return fmt.Errorf("encoding raw schedule csv: %w", err)
	}
	return nil
}

// strippedText concatenates the text nodes of a cell with whitespace removed
// from each, the way the date and record columns were captured.
func strippedText(s *goquery.Selection) string {
	var parts []string
	for _, text := range textNodes(s) {
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.Join(parts, "")
}

// spacedText joins the trimmed, non-empty text nodes of a cell with spaces
func spacedText(s *goquery.Selection) string {
	var parts []string
	for _, text := range textNodes(s) {
		if t := strings.Join(strings.Fields(text), " "); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func textNodes(s *goquery.Selection) []string {
	var out []string
	s.Contents().Each(func(i int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			out = append(out, c.Text())
			return
		}
		out = append(out, textNodes(c)...)
	})
	return out
}
