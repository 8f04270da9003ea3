// Package feed holds the pure transforms applied to a fetched repository list
// before it is rendered.
package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/models"
	"github.com/samber/lo"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp as GitHub or a hand-written fallback
// list would supply it.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// updatedAt orders repos by update time. Missing or unparseable timestamps
// count as the unix epoch.
func updatedAt(r models.Repo) time.Time {
	t, ok := ParseTime(r.UpdatedAt)
	if !ok {
		return time.Unix(0, 0)
	}
	return t
}

// SelectAndOrder drops archived repos, sorts the rest newest first and keeps
// at most limit of them. Ties keep their input order.
func SelectAndOrder(repos []models.Repo, limit int) []models.Repo {
	if limit <= 0 {
		return []models.Repo{}
	}

	type keyed struct {
		repo    models.Repo
		updated time.Time
	}
	active := lo.FilterMap(repos, func(r models.Repo, _ int) (keyed, bool) {
		return keyed{repo: r, updated: updatedAt(r)}, !r.Archived
	})
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].updated.After(active[j].updated)
	})

	if len(active) > limit {
		active = active[:limit]
	}
	return lo.Map(active, func(k keyed, _ int) models.Repo {
		return k.repo
	})
}

// WithoutForks drops forked repositories.
func WithoutForks(repos []models.Repo) []models.Repo {
	return lo.Reject(repos, func(r models.Repo, _ int) bool {
		return r.Fork
	})
}

// Search keeps repos whose name, description or language contains query,
// ignoring case. A blank query returns repos unchanged.
func Search(repos []models.Repo, query string) []models.Repo {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return repos
	}
	return lo.Filter(repos, func(r models.Repo, _ int) bool {
		hay := r.Name + " " + r.DescriptionOr("") + " " + r.LanguageOr("")
		return strings.Contains(strings.ToLower(hay), q)
	})
}

type Stats struct {
	Repos int
	Stars int
	// LastUpdated is the newest parseable updated_at, or "" if there is none.
	LastUpdated string
}

// Summarize totals the displayed repos for the page header. Negative star
// counts count as zero, as they do on the cards.
func Summarize(repos []models.Repo) Stats {
	st := Stats{Repos: len(repos)}
	var newest time.Time
	for _, r := range repos {
		st.Stars += max(r.Stars, 0)
		if t, ok := ParseTime(r.UpdatedAt); ok && t.After(newest) {
			newest = t
			st.LastUpdated = r.UpdatedAt
		}
	}
	return st
}
