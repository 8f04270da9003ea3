package feed

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/kevinmichaelchen/repofeed/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var bundledFallback []byte

type fallbackFile struct {
	Repos []models.Repo `yaml:"repos"`
}

// Fallback returns the bundled static list.
func Fallback() ([]models.Repo, error) {
	return ParseFallback(bundledFallback, time.Now())
}

// LoadFallback reads a static list from a YAML file shaped like the bundled
// one.
func LoadFallback(path string) ([]models.Repo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fallback list: %w", err)
	}
	return ParseFallback(b, time.Now())
}

// ParseFallback decodes a fallback document. Repos without updated_at are
// stamped with now.
func ParseFallback(b []byte, now time.Time) ([]models.Repo, error) {
	var f fallbackFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing fallback list: %w", err)
	}
	stamp := now.UTC().Format(time.RFC3339)
	repos := make([]models.Repo, 0, len(f.Repos))
	for i, r := range f.Repos {
		if r.Name == "" {
			return nil, fmt.Errorf("fallback repos[%d]: name is required", i)
		}
		if r.UpdatedAt == "" {
			r.UpdatedAt = stamp
		}
		repos = append(repos, r)
	}
	return repos, nil
}
