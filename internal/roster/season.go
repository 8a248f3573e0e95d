package roster

import (
	"fmt"
	"time"
)

// Season is the regular-season date window of one season year.
// The 2021 season is the one that started in December 2020.
type Season struct {
	Year  int
	Start time.Time
	End   time.Time
}

// Contains reports whether day falls inside the window (inclusive)
func (s Season) Contains(day time.Time) bool {
	return !day.Before(s.Start) && !day.After(s.End)
}

func (s Season) String() string {
	return fmt.Sprintf("%d (%s..%s)", s.Year, s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var seasons = []Season{
	{Year: 2021, Start: date(2020, time.December, 22), End: date(2021, time.May, 16)},
	{Year: 2022, Start: date(2021, time.October, 19), End: date(2022, time.April, 10)},
	{Year: 2023, Start: date(2022, time.October, 18), End: date(2023, time.April, 9)},
	{Year: 2024, Start: date(2023, time.October, 24), End: date(2024, time.April, 14)},
	{Year: 2025, Start: date(2024, time.October, 23), End: date(2025, time.April, 13)},
}

// ScrapeSeasons are the schedule years pulled from the statistics site
var ScrapeSeasons = []int{2021, 2022, 2023, 2024, 2025, 2026}

// Seasons returns the analysed season windows in chronological order
func Seasons() []Season {
	out := make([]Season, len(seasons))
	copy(out, seasons)
	return out
}

// SeasonByYear returns the window for a season year
func SeasonByYear(year int) (Season, bool) {
	for _, s := range seasons {
		if s.Year == year {
			return s, true
		}
	}
	return Season{}, false
}

// Window spans the first season start through the last season end
func Window() (time.Time, time.Time) {
	return seasons[0].Start, seasons[len(seasons)-1].End
}

// SeasonYear maps a month of the given season to its calendar year.
// August through December belong to the year the season started in.
func SeasonYear(month time.Month, season int) int {
	if month >= time.August {
		return season - 1
	}
	return season
}
