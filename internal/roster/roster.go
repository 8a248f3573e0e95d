package roster

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// TeamKeyword is the search-interest keyword for the team itself
const TeamKeyword = "Golden State Warriors"

// FuzzyThreshold is the minimum Jaro-Winkler similarity for a free-text
// sponsor name to be classified as a roster sponsor
const FuzzyThreshold = 0.92

// Sponsor is a member of the closed major-sponsor roster
type Sponsor struct {
	Name     string // display name, also the trend keyword
	CountKey string // prefix of the <CountKey>_Count column
	Aliases  []string
	pattern  *regexp.Regexp
}

// Slug is the display name with spaces removed
func (s Sponsor) Slug() string {
	return Slug(s.Name)
}

// CountColumn is the combined-table column holding daily mention counts
func (s Sponsor) CountColumn() string {
	return s.CountKey + "_Count"
}

// CountMentions returns the number of non-overlapping mentions in text
func (s Sponsor) CountMentions(text string) int {
	return len(s.pattern.FindAllStringIndex(text, -1))
}

func newSponsor(name, countKey, pattern string, aliases ...string) Sponsor {
	return Sponsor{
		Name:     name,
		CountKey: countKey,
		Aliases:  aliases,
		pattern:  regexp.MustCompile(pattern),
	}
}

var sponsors = []Sponsor{
	newSponsor("Rakuten", "Rakuten", `(?i)\brakuten\b`),
	newSponsor("United Airlines", "UnitedAirlines", `(?i)\bunited\s+airlines\b`, "United"),
	newSponsor("JPMorgan Chase", "Chase", `\b(?:(?:JP|J\.P\.)\s*Morgan\s+)?Chase\b|\bJPMORGAN\s+CHASE\b`, "Chase", "JP Morgan Chase", "Chase Center"),
	newSponsor("Kaiser Permanente", "KaiserPermanente", `(?i)\bkaiser(?:\s+permanente)?\b`, "Kaiser"),
	newSponsor("Adobe", "Adobe", `(?i)\badobe\b`),
}

// Sponsors returns the major sponsor roster in canonical order
func Sponsors() []Sponsor {
	out := make([]Sponsor, len(sponsors))
	copy(out, sponsors)
	return out
}

// Keywords returns the team keyword followed by every sponsor keyword
func Keywords() []string {
	keywords := []string{TeamKeyword}
	for _, s := range sponsors {
		keywords = append(keywords, s.Name)
	}
	return keywords
}

// Lookup finds a roster sponsor by display name or count key
func Lookup(name string) (Sponsor, bool) {
	for _, s := range sponsors {
		if strings.EqualFold(s.Name, name) || strings.EqualFold(s.CountKey, name) {
			return s, true
		}
	}
	return Sponsor{}, false
}

// Slug removes spaces from a keyword ("JPMorgan Chase" -> "JPMorganChase")
func Slug(keyword string) string {
	return strings.ReplaceAll(keyword, " ", "")
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalize(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

// Classify resolves a free-text sponsor name against the full roster
func Classify(name string) (Sponsor, bool) {
	return ClassifyIn(name, sponsors)
}

// ClassifyIn resolves a free-text sponsor name to a member of pool.
// Exact normalized matches against names and aliases win; otherwise the best
// Jaro-Winkler match at or above FuzzyThreshold is returned.
func ClassifyIn(name string, pool []Sponsor) (Sponsor, bool) {
	target := normalize(name)
	if target == "" {
		return Sponsor{}, false
	}

	for _, s := range pool {
		if normalize(s.Name) == target {
			return s, true
		}
		for _, alias := range s.Aliases {
			if normalize(alias) == target {
				return s, true
			}
		}
	}

	var best Sponsor
	bestScore := 0.0
	for _, s := range pool {
		candidates := append([]string{s.Name}, s.Aliases...)
		for _, c := range candidates {
			score := matchr.JaroWinkler(target, normalize(c), false)
			if score > bestScore {
				bestScore = score
				best = s
			}
		}
	}

	if bestScore >= FuzzyThreshold {
		return best, true
	}
	return Sponsor{}, false
}
