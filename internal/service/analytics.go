package service

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/roster"
)

// SeasonSummary aggregates one season (or the whole window) of combined days
type SeasonSummary struct {
	Season          string         `json:"season"`
	Days            int            `json:"days"`
	Games           int            `json:"games"`
	Wins            int            `json:"wins"`
	Losses          int            `json:"losses"`
	WinPct          float64        `json:"win_pct"`
	HomeWinPct      float64        `json:"home_win_pct"`
	AwayWinPct      float64        `json:"away_win_pct"`
	OvertimeGames   int            `json:"overtime_games"`
	AvgPointDiff    float64        `json:"avg_point_difference"`
	PointDiffStdDev float64        `json:"point_difference_std_dev"`
	FeaturedGames   int            `json:"featured_games"`
	FeaturedPPG     *float64       `json:"featured_ppg"`
	FeaturedStdDev  *float64       `json:"featured_ppg_std_dev"`
	Articles        int            `json:"articles"`
	SponsorMentions map[string]int `json:"sponsor_mentions"`
}

// Summaries returns the whole-window summary followed by one per season
func (s *DaysService) Summaries(ctx context.Context) ([]*SeasonSummary, error) {
	start, end := roster.Window()
	table, err := s.Table(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("building combined table: %w", err)
	}

	out := []*SeasonSummary{Summarize("all", table)}
	for _, season := range roster.Seasons() {
		out = append(out, Summarize(strconv.Itoa(season.Year), table.Between(season.Start, season.End)))
	}
	return out, nil
}

// Summarize computes record, margin and coverage statistics for t
func Summarize(name string, t *process.Table) *SeasonSummary {
	summary := &SeasonSummary{Season: name, Days: t.Len(), SponsorMentions: map[string]int{}}

	var diffs, featured []float64
	var homeGames, homeWins, awayGames, awayWins float64
	for _, rec := range t.Records {
		summary.Articles += rec.Articles.ArticleCount
		for _, sp := range t.Sponsors {
			summary.SponsorMentions[sp.CountKey] += rec.Articles.Counts[sp.CountKey]
		}

		g := rec.Game
		if g == nil {
			continue
		}
		summary.Games++
		if g.Win {
			summary.Wins++
		}
		if g.Overtime() {
			summary.OvertimeGames++
		}
		if g.Home {
			homeGames++
			if g.Win {
				homeWins++
			}
		} else {
			awayGames++
			if g.Win {
				awayWins++
			}
		}
		diffs = append(diffs, float64(g.PointDifference()))
		if !math.IsNaN(g.FeaturedPoints) {
			featured = append(featured, g.FeaturedPoints)
		}
	}

	summary.Losses = summary.Games - summary.Wins
	summary.WinPct = safeDiv(float64(summary.Wins), float64(summary.Games))
	summary.HomeWinPct = safeDiv(homeWins, homeGames)
	summary.AwayWinPct = safeDiv(awayWins, awayGames)

	if len(diffs) > 0 {
		summary.AvgPointDiff = stat.Mean(diffs, nil)
	}
	if len(diffs) > 1 {
		summary.PointDiffStdDev = stat.StdDev(diffs, nil)
	}

	summary.FeaturedGames = len(featured)
	if len(featured) > 0 {
		summary.FeaturedPPG = process.Nullable(stat.Mean(featured, nil))
	}
	if len(featured) > 1 {
		summary.FeaturedStdDev = process.Nullable(stat.StdDev(featured, nil))
	}
	return summary
}

// safeDiv performs division with zero check
func safeDiv(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
