package news

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(titles ...string) string {
	var items []string
	for i, title := range titles {
		authors := `[]`
		if i%2 == 0 {
			authors = `[{"name":"Warriors PR"},{"name":"Second"}]`
		}
		items = append(items, fmt.Sprintf(`{"title":%q,"date":"2024-10-23T18:30:00+00:00","excerpt":"x","permalink":"https://example.com/%d","authors":%s}`, title, i, authors))
	}
	return `{"items":[` + strings.Join(items, ",") + `],"total":99}`
}

func TestDecodePage(t *testing.T) {
	articles, err := DecodePage(strings.NewReader(page("a", "b")))
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Warriors PR", articles[0].Author)
	assert.Equal(t, "", articles[1].Author)
	assert.Equal(t, "https://example.com/1", articles[1].URL)

	empty, err := DecodePage(strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodePage(strings.NewReader(`{"items":`))
	require.Error(t, err)
}

func TestCollect(t *testing.T) {
	pages := [][]RawArticle{
		{{Title: "1"}, {Title: "2"}},
		{{Title: "3"}, {Title: "4"}},
		{{Title: "5"}},
	}

	assert.Len(t, Collect(pages, 3), 4, "whole pages are kept until the threshold is reached")
	assert.Len(t, Collect(pages, 2), 2)
	assert.Len(t, Collect(pages, 0), 5)
	assert.Len(t, Collect(pages, 100), 5)
}

func TestLoadPageDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("page_10.json", page("last"))
	write("page_2.json", page("second-a", "second-b"))
	write("page_1.json", page("first"))
	write("page_3.json", "not json")
	write("notes.txt", "ignored")

	articles, err := LoadPageDir(dir, 0)
	require.NoError(t, err)
	var titles []string
	for _, a := range articles {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"first", "second-a", "second-b", "last"}, titles)

	limited, err := LoadPageDir(dir, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func TestRawCSVRoundTrip(t *testing.T) {
	articles := []RawArticle{{Title: "Warriors, Rakuten extend deal", Date: "2024-01-02", Excerpt: "multi\nline", URL: "u", Author: "a"}}

	var buf bytes.Buffer
	require.NoError(t, WriteRawCSV(&buf, articles))
	back, err := ReadRawCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, articles, back)
}
