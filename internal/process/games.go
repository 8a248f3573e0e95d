package process

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/dubs/internal/ingest/espn"
	"github.com/fortuna/dubs/internal/roster"
)

// DefaultFeatured is the player whose points-leader games are tracked
const DefaultFeatured = "Curry"

// Leader is the stat leader of one category in one game.
// Value is NaN when the cell had no parseable leader.
type Leader struct {
	Name  string
	Value float64
}

// Valid reports whether the leader cell was parsed
func (l Leader) Valid() bool {
	return l.Name != "" && !math.IsNaN(l.Value)
}

// Game is one played game parsed from a schedule row
type Game struct {
	Date            time.Time
	Season          int
	Opponent        string
	Home            bool
	Win             bool
	OvertimePeriods int
	TeamScore       int
	OpponentScore   int
	Points          Leader
	Rebounds        Leader
	Assists         Leader
	// FeaturedPoints is the points value when the featured player led
	// scoring, NaN otherwise
	FeaturedPoints float64
}

// Overtime reports whether the game went to at least one overtime period
func (g Game) Overtime() bool { return g.OvertimePeriods > 0 }

// PointDifference is team score minus opponent score
func (g Game) PointDifference() int { return g.TeamScore - g.OpponentScore }

// AbsPointDifference is the absolute point differential
func (g Game) AbsPointDifference() int {
	if d := g.PointDifference(); d < 0 {
		return -d
	}
	return g.PointDifference()
}

// Stats counts what a cleaning pass kept and why rows were dropped
type Stats struct {
	Input      int
	Kept       int
	Dropped    int
	Duplicates int
}

func log() *slog.Logger {
	return slog.Default().With("component", "process")
}

var (
	resultPattern   = regexp.MustCompile(`^(W|L)\s*(\d+)-(\d+)(?:\s*(\d*)OT)?$`)
	opponentPattern = regexp.MustCompile(`^(vs\.?|@)\s*(.+)$`)
	leaderPattern   = regexp.MustCompile(`^(.+?)\s*(\d+)$`)
	weekdayPrefix   = regexp.MustCompile(`^[A-Za-z]{3,4},\s*`)
)

// CleanGames parses raw schedule rows into games sorted by date.
// Rows whose result is not a final score are dropped. When two rows share a
// date the first one is kept.
func CleanGames(rows []espn.RawGame, featured string) ([]Game, Stats) {
	stats := Stats{Input: len(rows)}
	seen := make(map[time.Time]bool, len(rows))
	games := make([]Game, 0, len(rows))

	for i, row := range rows {
		game, ok := parseGame(row, featured)
		if !ok {
			log().Debug("dropping schedule row", "season", row.Season, "row", i, "date", row.Date, "result", row.Result)
			stats.Dropped++
			continue
		}
		if seen[game.Date] {
			log().Warn("duplicate game date", "date", game.Date.Format(dayLayout), "opponent", game.Opponent)
			stats.Duplicates++
			continue
		}
		seen[game.Date] = true
		games = append(games, game)
	}

	sort.SliceStable(games, func(i, j int) bool { return games[i].Date.Before(games[j].Date) })
	stats.Kept = len(games)
	return games, stats
}

func parseGame(row espn.RawGame, featured string) (Game, bool) {
	date, ok := parseGameDate(row.Date, row.Season)
	if !ok {
		return Game{}, false
	}

	m := resultPattern.FindStringSubmatch(strings.TrimSpace(row.Result))
	if m == nil {
		return Game{}, false
	}
	first, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])

	opp := opponentPattern.FindStringSubmatch(strings.TrimSpace(row.Opponent))
	if opp == nil {
		return Game{}, false
	}

	game := Game{
		Date:     date,
		Season:   row.Season,
		Opponent: strings.TrimSpace(opp[2]),
		Home:     opp[1] != "@",
		Win:      m[1] == "W",
		Points:   parseLeader(row.HiPoints),
		Rebounds: parseLeader(row.HiRebounds),
		Assists:  parseLeader(row.HiAssists),
	}

	// The winner's score is listed first
	if game.Win {
		game.TeamScore, game.OpponentScore = first, second
	} else {
		game.TeamScore, game.OpponentScore = second, first
	}

	if strings.HasSuffix(m[0], "OT") {
		game.OvertimePeriods = 1
		if m[4] != "" {
			game.OvertimePeriods, _ = strconv.Atoi(m[4])
		}
	}

	game.FeaturedPoints = math.NaN()
	if featured != "" && game.Points.Valid() &&
		strings.Contains(strings.ToLower(game.Points.Name), strings.ToLower(featured)) {
		game.FeaturedPoints = game.Points.Value
	}
	return game, true
}

func parseGameDate(raw string, season int) (time.Time, bool) {
	s := weekdayPrefix.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("Jan 2", s)
	if err != nil {
		if t, err = time.Parse("Jan2", s); err != nil {
			return time.Time{}, false
		}
	}
	year := roster.SeasonYear(t.Month(), season)
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

func parseLeader(cell string) Leader {
	m := leaderPattern.FindStringSubmatch(strings.TrimSpace(cell))
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return Leader{Value: math.NaN()}
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return Leader{Value: math.NaN()}
	}
	return Leader{Name: strings.TrimSpace(m[1]), Value: float64(v)}
}
