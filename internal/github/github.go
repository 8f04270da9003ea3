package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kevinmichaelchen/repofeed/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://api.github.com"
	acceptHeader   = "application/vnd.github+json"
	perPage        = "100"
)

// ErrDecode marks a response body that could not be read as a list of
// repositories. FetchAll never returns it; it is only logged.
var ErrDecode = errors.New("malformed repository list")

// NetworkError is returned when the request could not be completed or GitHub
// answered with a non-2xx status.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GitHub API returned %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("GitHub API request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client is a thin wrapper around the GitHub REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. GitHub Enterprise.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{baseURL: DefaultBaseURL, token: token, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll returns up to 100 public repositories of username, most recently
// updated first. It makes exactly one request.
func (c *Client) FetchAll(ctx context.Context, username string) ([]models.Repo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.reposURL(username), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Err: errors.New(statusMessage(body))}
	}

	repos, err := decodeRepos(body)
	if err != nil {
		log.WithFields(log.Fields{
			"username": username,
			"error":    err,
		}).Debug("Treating GitHub response as empty")
		return []models.Repo{}, nil
	}
	return repos, nil
}

func (c *Client) reposURL(username string) string {
	q := url.Values{}
	q.Set("per_page", perPage)
	q.Set("sort", "updated")
	return fmt.Sprintf("%s/users/%s/repos?%s", c.baseURL, url.PathEscape(username), q.Encode())
}

// decodeRepos reads a JSON array of repositories. Elements that are not
// objects or have no name are skipped.
func decodeRepos(body []byte) ([]models.Repo, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	repos := make([]models.Repo, 0, len(raw))
	for _, item := range raw {
		var r models.Repo
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		if r.Name == "" {
			continue
		}
		if r.Stars < 0 {
			r.Stars = 0
		}
		repos = append(repos, r)
	}
	return repos, nil
}

// statusMessage extracts GitHub's {"message": ...} error text when present.
func statusMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	const maxLen = 200
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	if s == "" {
		return "empty response"
	}
	return s
}
