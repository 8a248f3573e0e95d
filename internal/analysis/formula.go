package analysis

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Formula is a parsed "response ~ term + term" regression formula.
// An intercept is always fitted.
type Formula struct {
	Response string
	Terms    []string
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// ParseFormula parses a Wilkinson-style formula. Column names with spaces are
// quoted as Q("Golden State Warriors"); a literal 1 term is accepted and ignored.
func ParseFormula(s string) (Formula, error) {
	lhs, rhs, ok := strings.Cut(s, "~")
	if !ok || strings.Contains(rhs, "~") {
		return Formula{}, fmt.Errorf("%w: %q needs exactly one ~", ErrBadFormula, s)
	}

	response, err := parseTerm(lhs)
	if err != nil {
		return Formula{}, err
	}

	parts, err := splitTerms(rhs)
	if err != nil {
		return Formula{}, err
	}

	f := Formula{Response: response}
	seen := map[string]bool{}
	for _, p := range parts {
		if strings.TrimSpace(p) == "1" {
			continue
		}
		term, err := parseTerm(p)
		if err != nil {
			return Formula{}, err
		}
		if seen[term] {
			continue
		}
		seen[term] = true
		f.Terms = append(f.Terms, term)
	}
	if len(f.Terms) == 0 {
		return Formula{}, fmt.Errorf("%w: %q has no predictors", ErrBadFormula, s)
	}
	return f, nil
}

// String renders the formula back in parseable form
func (f Formula) String() string {
	terms := make([]string, len(f.Terms))
	for i, t := range f.Terms {
		terms[i] = quoteTerm(t)
	}
	return quoteTerm(f.Response) + " ~ " + strings.Join(terms, " + ")
}

func quoteTerm(name string) string {
	if identifier.MatchString(name) {
		return name
	}
	return "Q(" + strconv.Quote(name) + ")"
}

// splitTerms splits on + outside quotes
func splitTerms(s string) ([]string, error) {
	var parts []string
	var cur strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == '+':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrBadFormula, s)
	}
	return append(parts, cur.String()), nil
}

func parseTerm(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty term", ErrBadFormula)
	}
	if strings.HasPrefix(s, "Q(") && strings.HasSuffix(s, ")") {
		inner := strings.TrimSpace(s[2 : len(s)-1])
		if len(inner) < 2 || (inner[0] != '"' && inner[0] != '\'') || inner[len(inner)-1] != inner[0] {
			return "", fmt.Errorf("%w: Q() needs a quoted name, got %q", ErrBadFormula, s)
		}
		name := inner[1 : len(inner)-1]
		if name == "" {
			return "", fmt.Errorf("%w: empty Q() name", ErrBadFormula)
		}
		return name, nil
	}
	if !identifier.MatchString(s) {
		return "", fmt.Errorf("%w: invalid term %q", ErrBadFormula, s)
	}
	return s, nil
}
