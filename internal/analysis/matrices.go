package analysis

import (
	"fmt"
	"sort"

	"github.com/fortuna/dubs/internal/process"
	"github.com/fortuna/dubs/internal/roster"
)

// MatrixSpec names a column set to correlate
type MatrixSpec struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
}

// analysedSponsors are the sponsors the standard matrices compare against
var analysedSponsors = []string{"Rakuten", "United Airlines", "JPMorgan Chase"}

func trendColumns(adjusted bool) []string {
	keywords := append([]string{roster.TeamKeyword}, analysedSponsors...)
	if !adjusted {
		return keywords
	}
	out := make([]string, len(keywords))
	for i, k := range keywords {
		out[i] = process.AdjustedColumn(k)
	}
	return out
}

func countColumns() []string {
	var out []string
	for _, name := range analysedSponsors {
		s, _ := roster.Lookup(name)
		out = append(out, s.CountColumn())
	}
	return out
}

// StandardMatrices returns the built-in correlation sets for a featured player
func StandardMatrices(featured string) []MatrixSpec {
	fc := process.FeaturedColumn(featured)
	with := func(lead []string, adjusted bool) []string {
		return append(append([]string(nil), lead...), trendColumns(adjusted)...)
	}

	return []MatrixSpec{
		{Name: "performance", Title: "Game performance and search interest",
			Columns: with([]string{process.ColAbsPointDifference}, false)},
		{Name: "performance_adjusted", Title: "Game performance and next-day search interest",
			Columns: with([]string{process.ColAbsPointDifference}, true)},
		{Name: "featured", Title: featured + " points and search interest",
			Columns: with([]string{fc}, false)},
		{Name: "featured_adjusted", Title: featured + " points and next-day search interest",
			Columns: with([]string{fc}, true)},
		{Name: "featured_win", Title: featured + " points, wins and search interest",
			Columns: with([]string{fc, process.ColWin}, false)},
		{Name: "featured_win_adjusted", Title: featured + " points, wins and next-day search interest",
			Columns: with([]string{fc, process.ColWin}, true)},
		{Name: "sponsor_counts", Title: "Sponsor mentions and search interest",
			Columns: append(trendColumns(false), countColumns()...)},
		{Name: "sponsor_counts_adjusted", Title: "Sponsor mentions and next-day search interest",
			Columns: append(trendColumns(true), countColumns()...)},
	}
}

// LookupMatrix finds a standard matrix by name
func LookupMatrix(name, featured string) (MatrixSpec, bool) {
	for _, m := range StandardMatrices(featured) {
		if m.Name == name {
			return m, true
		}
	}
	return MatrixSpec{}, false
}

// CorrelateStandard computes every standard matrix over t
func CorrelateStandard(t *process.Table) ([]*Matrix, error) {
	specs := StandardMatrices(t.Featured)
	out := make([]*Matrix, 0, len(specs))
	for _, spec := range specs {
		m, err := Correlate(t, spec.Columns)
		if err != nil {
			return nil, fmt.Errorf("matrix %s: %w", spec.Name, err)
		}
		m.Name = spec.Name
		out = append(out, m)
	}
	return out, nil
}

// AllDatasets is the dataset name covering the whole window
const AllDatasets = "all"

// Datasets splits t into the whole window plus one table per season year
func Datasets(t *process.Table) map[string]*process.Table {
	out := map[string]*process.Table{AllDatasets: t}
	for _, s := range roster.Seasons() {
		out[fmt.Sprintf("%d", s.Year)] = t.Between(s.Start, s.End)
	}
	return out
}

// DatasetNames returns the keys of datasets in sorted order
func DatasetNames(datasets map[string]*process.Table) []string {
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
