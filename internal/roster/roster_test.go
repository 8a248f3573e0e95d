package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords(t *testing.T) {
	keywords := Keywords()
	require.Len(t, keywords, 6)
	assert.Equal(t, TeamKeyword, keywords[0])
	assert.Equal(t, []string{"Rakuten", "United Airlines", "JPMorgan Chase", "Kaiser Permanente", "Adobe"}, keywords[1:])
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "GoldenStateWarriors", Slug("Golden State Warriors"))
	assert.Equal(t, "JPMorganChase", Slug("JPMorgan Chase"))
	assert.Equal(t, "Adobe", Slug("Adobe"))
}

func TestCountMentions(t *testing.T) {
	chase, ok := Lookup("Chase")
	require.True(t, ok)
	assert.Equal(t, "JPMorgan Chase", chase.Name)
	assert.Equal(t, "Chase_Count", chase.CountColumn())

	assert.Equal(t, 2, chase.CountMentions("Live from Chase Center, presented by JPMorgan Chase"))
	assert.Equal(t, 0, chase.CountMentions("Warriors chaser"))
	assert.Equal(t, 0, chase.CountMentions("Warriors chase playoff spot"))
	assert.Equal(t, 0, chase.CountMentions("Golden State will chase a win tonight."))
	assert.Equal(t, 1, chase.CountMentions("Sponsored by J.P. Morgan Chase"))
	assert.Equal(t, 1, chase.CountMentions("JP Morgan Chase and the Warriors"))
	assert.Equal(t, 1, chase.CountMentions("JPMORGAN CHASE NIGHT"))

	united, _ := Lookup("United Airlines")
	assert.Equal(t, 1, united.CountMentions("Fly with UNITED  airlines to the game"))
	assert.Equal(t, 0, united.CountMentions("United we stand"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "exact", input: "Rakuten", want: "Rakuten", wantOK: true},
		{name: "spacing and case", input: "jp morgan chase", want: "JPMorgan Chase", wantOK: true},
		{name: "alias", input: "Kaiser", want: "Kaiser Permanente", wantOK: true},
		{name: "typo", input: "Kaiser Permanante", want: "Kaiser Permanente", wantOK: true},
		{name: "unrelated", input: "Häagen-Dazs", wantOK: false},
		{name: "empty", input: "  ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.input)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got.Name)
			}
		})
	}
}

func TestSeasonYear(t *testing.T) {
	assert.Equal(t, 2020, SeasonYear(time.December, 2021))
	assert.Equal(t, 2020, SeasonYear(time.August, 2021))
	assert.Equal(t, 2021, SeasonYear(time.January, 2021))
	assert.Equal(t, 2021, SeasonYear(time.July, 2021))
}

func TestWindow(t *testing.T) {
	start, end := Window()
	assert.Equal(t, time.Date(2020, 12, 22, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC), end)

	s, ok := SeasonByYear(2023)
	require.True(t, ok)
	assert.True(t, s.Contains(time.Date(2022, 10, 18, 0, 0, 0, 0, time.UTC)))
	assert.True(t, s.Contains(time.Date(2023, 4, 9, 0, 0, 0, 0, time.UTC)))
	assert.False(t, s.Contains(time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC)))

	_, ok = SeasonByYear(2019)
	assert.False(t, ok)
}

func TestClassifyInPool(t *testing.T) {
	rakuten, ok := Lookup("Rakuten")
	require.True(t, ok)
	pool := []Sponsor{rakuten}

	got, ok := ClassifyIn("rakuten", pool)
	require.True(t, ok)
	assert.Equal(t, "Rakuten", got.Name)

	_, ok = ClassifyIn("Adobe", pool)
	assert.False(t, ok, "sponsors outside the pool stay unclassified")

	_, ok = Classify("Adobe")
	assert.True(t, ok)
}
