package news

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"
)

// DefaultThreshold is the article count collection stops at
const DefaultThreshold = 1000

// RawArticle is one article as listed by the content API
type RawArticle struct {
	Title   string `csv:"title" json:"title"`
	Date    string `csv:"date" json:"date"`
	Excerpt string `csv:"excerpt" json:"excerpt"`
	URL     string `csv:"url" json:"url"`
	Author  string `csv:"author" json:"author"`
}

type apiAuthor struct {
	Name string `json:"name"`
}

type apiItem struct {
	Title     string      `json:"title"`
	Date      string      `json:"date"`
	Excerpt   string      `json:"excerpt"`
	Permalink string      `json:"permalink"`
	Authors   []apiAuthor `json:"authors"`
}

type apiPage struct {
	Items []apiItem `json:"items"`
}

func log() *slog.Logger {
	return slog.Default().With("component", "news")
}

// DecodePage decodes one content API page into raw articles.
// A page without an items array yields no articles.
func DecodePage(r io.Reader) ([]RawArticle, error) {
	var page apiPage
	if err := json.NewDecoder(r).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding article page: %w", err)
	}

	articles := make([]RawArticle, 0, len(page.Items))
	for _, item := range page.Items {
		article := RawArticle{
			Title:   item.Title,
			Date:    item.Date,
			Excerpt: item.Excerpt,
			URL:     item.Permalink,
		}
		if len(item.Authors) > 0 {
			article.Author = item.Authors[0].Name
		}
		articles = append(articles, article)
	}
	return articles, nil
}

// Collect appends whole pages in order until at least threshold articles are
// held. A threshold of zero or less keeps every page.
func Collect(pages [][]RawArticle, threshold int) []RawArticle {
	var out []RawArticle
	for _, page := range pages {
		if threshold > 0 && len(out) >= threshold {
			break
		}
		out = append(out, page...)
	}
	return out
}

var pageFile = regexp.MustCompile(`^page_(\d+)\.json$`)

// LoadPageDir reads page_<n>.json files in page order and collects them up to
// threshold. Undecodable pages are logged and skipped.
func LoadPageDir(dir string, threshold int) ([]RawArticle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading article pages: %w", err)
	}

	type numbered struct {
		n    int
		name string
	}
	var files []numbered
	for _, e := range entries {
		m := pageFile.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		files = append(files, numbered{n: n, name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	var pages [][]RawArticle
	total := 0
	for _, file := range files {
		if threshold > 0 && total >= threshold {
			break
		}
		f, err := os.Open(filepath.Join(dir, file.name))
		if err != nil {
			log().Warn("skipping article page", "page", file.n, "err", err)
			continue
		}
		page, err := DecodePage(f)
		f.Close()
		if err != nil {
			log().Warn("skipping article page", "page", file.n, "err", err)
			continue
		}
		log().Debug("parsed article page", "page", file.n, "articles", len(page))
		pages = append(pages, page)
		total += len(page)
	}

	articles := Collect(pages, threshold)
	log().Info("collected articles", "pages", len(pages), "articles", len(articles))
	return articles, nil
}

// ReadRawCSV loads the raw article dataset
func ReadRawCSV(r io.Reader) ([]RawArticle, error) {
	var articles []RawArticle
	if err := gocsv.Unmarshal(r, &articles); err != nil {
		return nil, fmt.Errorf("decoding raw article csv: %w", err)
	}
	return articles, nil
}

// WriteRawCSV writes the raw article dataset
func WriteRawCSV(w io.Writer, articles []RawArticle) error {
	if err := gocsv.Marshal(&articles, w); err != nil {
		return fmt.Errorf("encoding raw article csv: %w", err)
	}
	return nil
}
