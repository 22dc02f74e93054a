package codehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fourbyte/selectortrace/internal/herr"
	"github.com/fourbyte/selectortrace/internal/httpclient"
)

// Repo is the subset of the code-host's repository representation the
// crawler and scraper need.
type Repo struct {
	ID              int64
	OwnerLogin      string
	OwnerID         int64
	Name            string
	URL             string
	CloneURL        string
	PrimaryLanguage string
	Stargazers      int
	Size            int
	IsFork          bool
	ParentID        *int64
	CreatedAt       time.Time
	PushedAt        time.Time
	UpdatedAt       time.Time
}

// User is the subset of the code-host's user representation needed to track
// owners and stargazers.
type User struct {
	ID         int64
	Login      string
	URL        string
	ReposCount int
}

// API talks to the code-host's REST surface through the shared httpclient
// substrate, authenticated with a rotating TokenPool.
type API struct {
	client     *httpclient.Client
	classifier Classifier
	baseURL    string
}

// NewAPI builds an API bound to baseURL (e.g. "https://api.github.com"),
// routing every request through client and authenticating with tokens.
func NewAPI(client *httpclient.Client, tokens *TokenPool, userAgent, baseURL string) *API {
	return &API{
		client:     client,
		classifier: Classifier{Tokens: tokens, UserAgent: userAgent},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (a *API) get(ctx context.Context, path string, query map[string]string) (*http.Response, error) {
	return a.getWithHeaders(ctx, path, query, nil)
}

// getWithHeaders is like get but sets extra request headers (e.g.
// If-Modified-Since) before Classifier.Prepare runs; Prepare only ever sets
// UA/Accept/Authorization/per_page, so these survive untouched.
func (a *API) getWithHeaders(ctx context.Context, path string, query, headers map[string]string) (*http.Response, error) {
	return a.client.Do(ctx, a.classifier, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

// SearchRepositoriesCreatedOn returns every repository the host reports as
// created on day, written in the target language.
func (a *API) SearchRepositoriesCreatedOn(ctx context.Context, language string, day time.Time) ([]Repo, error) {
	return a.searchRepositories(ctx, fmt.Sprintf("language:%s created:%s", language, day.Format("2006-01-02")))
}

// SearchRepositoriesUpdatedOn returns every repository the host reports as
// updated on day, written in the target language.
func (a *API) SearchRepositoriesUpdatedOn(ctx context.Context, language string, day time.Time) ([]Repo, error) {
	return a.searchRepositories(ctx, fmt.Sprintf("language:%s pushed:%s", language, day.Format("2006-01-02")))
}

func (a *API) searchRepositories(ctx context.Context, query string) ([]Repo, error) {
	var out []Repo
	page := 1
	for {
		resp, err := a.get(ctx, "/search/repositories", map[string]string{"q": query, "page": strconv.Itoa(page)})
		if err != nil {
			return out, err
		}
		var body struct {
			Items []repoDTO `json:"items"`
		}
		err = decodeAndClose(resp, &body)
		if err != nil {
			return out, err
		}
		if len(body.Items) == 0 {
			return out, nil
		}
		for _, d := range body.Items {
			out = append(out, d.toRepo())
		}
		if len(body.Items) < 100 {
			return out, nil
		}
		page++
	}
}

// GetRepository conditionally fetches one repository, sending
// If-Modified-Since built from lastUpdatedAt when it is non-zero. ok is
// false on a 304 (repository unchanged since lastUpdatedAt).
func (a *API) GetRepository(ctx context.Context, ownerLogin, name string, lastUpdatedAt time.Time) (Repo, bool, error) {
	var headers map[string]string
	if !lastUpdatedAt.IsZero() {
		headers = map[string]string{"If-Modified-Since": lastUpdatedAt.UTC().Format(http.TimeFormat)}
	}
	resp, err := a.getWithHeaders(ctx, fmt.Sprintf("/repos/%s/%s", ownerLogin, name), nil, headers)
	if err != nil {
		return Repo{}, false, err
	}
	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return Repo{}, false, nil
	}
	var d repoDTO
	if err := decodeAndClose(resp, &d); err != nil {
		return Repo{}, false, err
	}
	return d.toRepo(), true, nil
}

// GetRepositoryByID fetches a repository by its numeric id, without
// needing to know its owner/name — used to resolve a fork's parent, which
// the search/repos responses only identify by id.
func (a *API) GetRepositoryByID(ctx context.Context, id int64) (Repo, error) {
	resp, err := a.get(ctx, fmt.Sprintf("/repositories/%d", id), nil)
	if err != nil {
		return Repo{}, err
	}
	var d repoDTO
	if err := decodeAndClose(resp, &d); err != nil {
		return Repo{}, err
	}
	return d.toRepo(), nil
}

// OwnedRepositories returns every repository owned by login.
func (a *API) OwnedRepositories(ctx context.Context, login string) ([]Repo, error) {
	var out []Repo
	page := 1
	for {
		resp, err := a.get(ctx, fmt.Sprintf("/users/%s/repos", login), map[string]string{"page": strconv.Itoa(page), "type": "owner"})
		if err != nil {
			return out, err
		}
		var dtos []repoDTO
		if err := decodeAndClose(resp, &dtos); err != nil {
			return out, err
		}
		if len(dtos) == 0 {
			return out, nil
		}
		for _, d := range dtos {
			out = append(out, d.toRepo())
		}
		if len(dtos) < 100 {
			return out, nil
		}
		page++
	}
}

// StarredRepositories returns every repository login has starred.
func (a *API) StarredRepositories(ctx context.Context, login string) ([]Repo, error) {
	var out []Repo
	page := 1
	for {
		resp, err := a.get(ctx, fmt.Sprintf("/users/%s/starred", login), map[string]string{"page": strconv.Itoa(page)})
		if err != nil {
			return out, err
		}
		var dtos []repoDTO
		if err := decodeAndClose(resp, &dtos); err != nil {
			return out, err
		}
		if len(dtos) == 0 {
			return out, nil
		}
		for _, d := range dtos {
			out = append(out, d.toRepo())
		}
		if len(dtos) < 100 {
			return out, nil
		}
		page++
	}
}

// Stargazers returns every user who starred owner/name.
func (a *API) Stargazers(ctx context.Context, ownerLogin, name string) ([]User, error) {
	var out []User
	page := 1
	for {
		resp, err := a.get(ctx, fmt.Sprintf("/repos/%s/%s/stargazers", ownerLogin, name), map[string]string{"page": strconv.Itoa(page)})
		if err != nil {
			return out, err
		}
		var dtos []userDTO
		if err := decodeAndClose(resp, &dtos); err != nil {
			return out, err
		}
		if len(dtos) == 0 {
			return out, nil
		}
		for _, d := range dtos {
			out = append(out, d.toUser())
		}
		if len(dtos) < 100 {
			return out, nil
		}
		page++
	}
}

// GetUser fetches one user's profile, including their reported repo count.
func (a *API) GetUser(ctx context.Context, login string) (User, error) {
	resp, err := a.get(ctx, "/users/"+login, nil)
	if err != nil {
		return User{}, err
	}
	var d userDTO
	if err := decodeAndClose(resp, &d); err != nil {
		return User{}, err
	}
	return d.toUser(), nil
}

// LanguageBreakdown returns bytes-of-source-per-language for a repository.
func (a *API) LanguageBreakdown(ctx context.Context, ownerLogin, name string) (map[string]int64, error) {
	resp, err := a.get(ctx, fmt.Sprintf("/repos/%s/%s/languages", ownerLogin, name), nil)
	if err != nil {
		return nil, err
	}
	var out map[string]int64
	if err := decodeAndClose(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeAndClose(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding response body: %v", herr.ErrUpstreamSemantic, err)
	}
	return nil
}

type repoDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	HTMLURL    string `json:"html_url"`
	CloneURL   string `json:"clone_url"`
	Language   string `json:"language"`
	Stargazers int    `json:"stargazers_count"`
	Size       int    `json:"size"`
	Fork       bool   `json:"fork"`
	Owner      struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	} `json:"owner"`
	Parent *struct {
		ID int64 `json:"id"`
	} `json:"parent"`
	CreatedAt time.Time `json:"created_at"`
	PushedAt  time.Time `json:"pushed_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d repoDTO) toRepo() Repo {
	r := Repo{
		ID:              d.ID,
		OwnerLogin:      d.Owner.Login,
		OwnerID:         d.Owner.ID,
		Name:            d.Name,
		URL:             d.HTMLURL,
		CloneURL:        d.CloneURL,
		PrimaryLanguage: d.Language,
		Stargazers:      d.Stargazers,
		Size:            d.Size,
		IsFork:          d.Fork,
		CreatedAt:       d.CreatedAt,
		PushedAt:        d.PushedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.Parent != nil {
		r.ParentID = &d.Parent.ID
	}
	return r
}

type userDTO struct {
	ID      int64  `json:"id"`
	Login   string `json:"login"`
	HTMLURL string `json:"html_url"`
	Repos   int    `json:"public_repos"`
}

func (d userDTO) toUser() User {
	return User{ID: d.ID, Login: d.Login, URL: d.HTMLURL, ReposCount: d.Repos}
}
