// Package render turns repository lists into HTML cards and pages.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/config"
	"github.com/kevinmichaelchen/repofeed/internal/feed"
	"github.com/kevinmichaelchen/repofeed/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	noDescription = "No description yet."
	noValue       = "—"
)

var dateLayouts = map[string]string{
	config.DateStyleLong:  "Jan 02, 2006",
	config.DateStyleShort: "Jan 2006",
}

type Options struct {
	DateStyle string
	Title     string
}

type Renderer struct {
	tmpl      *template.Template
	dateStyle string
	title     string
}

// GridData is what the card grid needs. Unavailable selects the "could not
// load" card when there are no repos to show.
type GridData struct {
	Repos       []models.Repo
	Unavailable bool
}

type PageData struct {
	GridData
	Stats feed.Stats
	Query string
	// Interactive adds the search and refresh forms served by `repofeed serve`.
	Interactive bool
	// Now drives the footer year; zero means time.Now.
	Now time.Time
}

type card struct {
	Name        string
	URL         string
	Description string
	Language    string
	Stars       string
	Updated     string
}

func New(opts Options) (*Renderer, error) {
	r := &Renderer{dateStyle: opts.DateStyle, title: opts.Title}
	if _, ok := dateLayouts[r.dateStyle]; !ok {
		r.dateStyle = config.DateStyleLong
	}
	funcs := template.FuncMap{
		"compact": CompactNumber,
		"date":    func(s string) string { return FormatDate(s, r.dateStyle) },
	}
	tmpl, err := template.New("render").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Grid writes the card grid contents.
func (r *Renderer) Grid(w io.Writer, data GridData) error {
	return r.tmpl.ExecuteTemplate(w, "grid", r.gridView(data))
}

// Page writes a complete HTML document.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	now := data.Now
	if now.IsZero() {
		now = time.Now()
	}
	view := struct {
		Title       string
		Query       string
		Interactive bool
		Stats       feed.Stats
		Year        int
		Grid        gridView
	}{
		Title:       r.title,
		Query:       data.Query,
		Interactive: data.Interactive,
		Stats:       data.Stats,
		Year:        now.Year(),
		Grid:        r.gridView(data.GridData),
	}
	return r.tmpl.ExecuteTemplate(w, "page", view)
}

type gridView struct {
	Cards       []card
	Unavailable bool
}

func (r *Renderer) gridView(data GridData) gridView {
	v := gridView{Unavailable: data.Unavailable && len(data.Repos) == 0}
	for _, repo := range data.Repos {
		v.Cards = append(v.Cards, r.card(repo))
	}
	return v
}

func (r *Renderer) card(repo models.Repo) card {
	url := repo.HTMLURL
	if url == "" {
		url = "#"
	}
	return card{
		Name:        repo.Name,
		URL:         url,
		Description: repo.DescriptionOr(noDescription),
		Language:    repo.LanguageOr(noValue),
		Stars:       CompactNumber(max(repo.Stars, 0)),
		Updated:     FormatDate(repo.UpdatedAt, r.dateStyle),
	}
}

// FormatDate renders an ISO-8601 timestamp for a card badge. Anything
// unparseable renders as an em dash.
func FormatDate(s, style string) string {
	t, ok := feed.ParseTime(s)
	if !ok {
		return noValue
	}
	layout, ok := dateLayouts[style]
	if !ok {
		layout = dateLayouts[config.DateStyleLong]
	}
	return t.Format(layout)
}

var compactUnits = []string{"", "K", "M", "B", "T"}

// CompactNumber abbreviates n with at most one fraction digit: 999, 1.2K, 15M.
func CompactNumber(n int) string {
	if n < 0 {
		// -n overflows for math.MinInt.
		return "-" + compactUnsigned(uint64(-(n+1))+1)
	}
	return compactUnsigned(uint64(n))
}

func compactUnsigned(n uint64) string {
	if n < 1000 {
		return strconv.FormatUint(n, 10)
	}

	v := float64(n)
	unit := 0
	for v >= 1000 && unit < len(compactUnits)-1 {
		v /= 1000
		unit++
	}
	v = math.Round(v*10) / 10
	// 999_950 rounds to 1000K; promote it to 1M.
	if v >= 1000 && unit < len(compactUnits)-1 {
		v /= 1000
		unit++
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + compactUnits[unit]
}
