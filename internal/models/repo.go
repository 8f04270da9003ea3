package models

// Repo is one repository summary as returned by the GitHub REST API. The same
// tags are used for the cache payload and the bundled fallback list.
type Repo struct {
	Name        string  `json:"name" yaml:"name"`
	HTMLURL     string  `json:"html_url" yaml:"html_url"`
	Description *string `json:"description" yaml:"description"`
	Language    *string `json:"language" yaml:"language"`
	Stars       int     `json:"stargazers_count" yaml:"stargazers_count"`
	UpdatedAt   string  `json:"updated_at" yaml:"updated_at"`
	Archived    bool    `json:"archived" yaml:"archived"`
	Fork        bool    `json:"fork" yaml:"fork"`
}

// DescriptionOr returns the description, or def when it is absent or blank.
func (r Repo) DescriptionOr(def string) string {
	if r.Description == nil || *r.Description == "" {
		return def
	}
	return *r.Description
}

// LanguageOr returns the primary language, or def when it is absent or blank.
func (r Repo) LanguageOr(def string) string {
	if r.Language == nil || *r.Language == "" {
		return def
	}
	return *r.Language
}
