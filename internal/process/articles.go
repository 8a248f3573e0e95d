package process

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/fortuna/dubs/internal/ingest/news"
	"github.com/fortuna/dubs/internal/roster"
)

// Article is one news article with its sponsor mentions
type Article struct {
	Date    time.Time
	Title   string
	Excerpt string
	URL     string
	Author  string
	// Counts holds mention counts keyed by sponsor count key
	Counts        map[string]int
	MajorSponsors []string
	OtherSponsors []string
}

// Mentions reports whether the article mentions the sponsor with countKey
func (a Article) Mentions(countKey string) bool {
	return a.Counts[countKey] > 0
}

// TotalSponsorCount is the number of distinct sponsor names extracted
func (a Article) TotalSponsorCount() int {
	return len(a.MajorSponsors) + len(a.OtherSponsors)
}

// ArticleDay aggregates every article published on one calendar day
type ArticleDay struct {
	Date              time.Time
	ArticleCount      int
	Counts            map[string]int
	TotalSponsorCount int
	MajorSponsors     []string
	OtherSponsors     []string
	Titles            []string
}

var articleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dayLayout,
}

// A name token may carry inner dots ("J.P", "Inc.Co") but never ends in one,
// so a capture stops at the end of a sentence.
var sponsorPhrase = regexp.MustCompile(
	`(?i:presented by|sponsored by|powered by|in partnership with|brought to you by)\s+` +
		`(` + nameToken + `(?:\s+(?:` + nameToken + `|&)){0,3})`)

const nameToken = `[A-Z][A-Za-z0-9&']*(?:\.[A-Za-z0-9&']+)*`

// CleanArticles parses article dates, counts roster sponsor mentions and
// extracts sponsor names. Articles with unparseable dates are dropped.
func CleanArticles(raw []news.RawArticle, sponsors []roster.Sponsor) ([]Article, Stats) {
	stats := Stats{Input: len(raw)}
	articles := make([]Article, 0, len(raw))

	for _, r := range raw {
		date, ok := parseArticleDate(r.Date)
		if !ok {
			log().Debug("dropping article with bad date", "title", r.Title, "date", r.Date)
			stats.Dropped++
			continue
		}

		text := r.Title + " " + r.Excerpt
		a := Article{
			Date:    date,
			Title:   r.Title,
			Excerpt: r.Excerpt,
			URL:     r.URL,
			Author:  r.Author,
			Counts:  make(map[string]int, len(sponsors)),
		}

		major := map[string]bool{}
		other := map[string]bool{}
		for _, s := range sponsors {
			n := s.CountMentions(text)
			a.Counts[s.CountKey] = n
			if n > 0 {
				major[s.Name] = true
			}
		}
		for _, name := range ExtractSponsorNames(text) {
			if s, ok := roster.ClassifyIn(name, sponsors); ok {
				major[s.Name] = true
			} else {
				other[name] = true
			}
		}
		a.MajorSponsors = sortedKeys(major)
		a.OtherSponsors = sortedKeys(other)
		articles = append(articles, a)
	}

	stats.Kept = len(articles)
	return articles, stats
}

// ExtractSponsorNames returns the capitalised names following sponsorship
// phrases such as "presented by" in the order they appear
func ExtractSponsorNames(text string) []string {
	var names []string
	for _, m := range sponsorPhrase.FindAllStringSubmatch(text, -1) {
		name := strings.TrimRight(strings.TrimSpace(m[1]), "'&")
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// AggregateArticles folds articles into one ArticleDay per date, sorted by date.
// Titles keep input order.
func AggregateArticles(articles []Article) []ArticleDay {
	byDate := make(map[time.Time]*ArticleDay)
	majors := make(map[time.Time]map[string]bool)
	others := make(map[time.Time]map[string]bool)

	for _, a := range articles {
		day, ok := byDate[a.Date]
		if !ok {
			day = &ArticleDay{Date: a.Date, Counts: map[string]int{}}
			byDate[a.Date] = day
			majors[a.Date] = map[string]bool{}
			others[a.Date] = map[string]bool{}
		}
		day.ArticleCount++
		day.TotalSponsorCount += a.TotalSponsorCount()
		day.Titles = append(day.Titles, a.Title)
		for k, n := range a.Counts {
			day.Counts[k] += n
		}
		for _, s := range a.MajorSponsors {
			majors[a.Date][s] = true
		}
		for _, s := range a.OtherSponsors {
			others[a.Date][s] = true
		}
	}

	days := make([]ArticleDay, 0, len(byDate))
	for date, day := range byDate {
		day.MajorSponsors = sortedKeys(majors[date])
		day.OtherSponsors = sortedKeys(others[date])
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

func parseArticleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range articleLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
