// Package github implements activity.Source on top of the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/commitlog/dailyagent/internal/activity"
	gogithub "github.com/google/go-github/v66/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const defaultPerPage = 100

// ErrMissingToken is returned by Connect for an empty credential.
var ErrMissingToken = errors.New("github token is empty")

// RepoCache stores repository listings between runs. Implementations must
// treat every failure as a miss.
type RepoCache interface {
	GetRepositories(ctx context.Context, key string) ([]activity.Repository, bool)
	SetRepositories(ctx context.Context, key string, repos []activity.Repository, ttl time.Duration)
}

// Options configures every client produced by a Connector.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	PerPage           int
	Cache             RepoCache
	CacheTTL          time.Duration
	Logger            *zap.Logger
}

// Connector builds token-scoped clients. All clients share one limiter so a
// batch over many users stays inside a single request budget.
type Connector struct {
	opts    Options
	limiter *rate.Limiter
	base    *http.Client
}

// NewConnector applies defaults to opts.
func NewConnector(opts Options) *Connector {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PerPage <= 0 || opts.PerPage > 100 {
		opts.PerPage = defaultPerPage
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.BaseURL = strings.TrimSpace(opts.BaseURL)

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Connector{
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
		base:    &http.Client{Timeout: opts.Timeout},
	}
}

// SetHTTPClient replaces the transport used under the oauth2 layer.
func (c *Connector) SetHTTPClient(client *http.Client) {
	if client == nil {
		c.base = &http.Client{Timeout: c.opts.Timeout}
		return
	}
	c.base = client
}

// Connect authenticates with token and resolves the account login.
func (c *Connector) Connect(ctx context.Context, token string) (activity.Source, error) {
	client, err := c.NewClient(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := client.Login(ctx); err != nil {
		return nil, fmt.Errorf("github authentication failed: %w", err)
	}
	return client, nil
}

// NewClient builds a client without touching the network.
func (c *Connector) NewClient(ctx context.Context, token string) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = c.opts.Timeout

	api := gogithub.NewClient(httpClient)
	if c.opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(c.opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		api.BaseURL = base
	}

	return &Client{
		api:      api,
		limiter:  c.limiter,
		perPage:  c.opts.PerPage,
		cache:    c.opts.Cache,
		cacheTTL: c.opts.CacheTTL,
		logger:   c.opts.Logger,
	}, nil
}

// Client is an activity.Source bound to one token.
type Client struct {
	api      *gogithub.Client
	limiter  *rate.Limiter
	perPage  int
	cache    RepoCache
	cacheTTL time.Duration
	logger   *zap.Logger
	login    string
}

// Login returns the authenticated account's login.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.login != "" {
		return c.login, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	user, _, err := c.api.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("get authenticated user: %w", err)
	}
	c.login = user.GetLogin()
	return c.login, nil
}

// ListRepositories returns owned and collaborator repositories of any
// visibility.
func (c *Client) ListRepositories(ctx context.Context) ([]activity.Repository, error) {
	cacheKey := ""
	if c.cache != nil && c.login != "" {
		cacheKey = "github:repos:" + strings.ToLower(c.login)
		if repos, ok := c.cache.GetRepositories(ctx, cacheKey); ok {
			return repos, nil
		}
	}

	opts := &gogithub.RepositoryListByAuthenticatedUserOptions{
		Visibility:  "all",
		Affiliation: "owner,collaborator",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gogithub.ListOptions{PerPage: c.perPage},
	}

	var result []activity.Repository
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, resp, err := c.api.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("list repositories: %w", err)
		}
		for _, repo := range page {
			result = append(result, activity.Repository{
				Owner:    repo.GetOwner().GetLogin(),
				Name:     repo.GetName(),
				FullName: repo.GetFullName(),
				Private:  repo.GetPrivate(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if cacheKey != "" {
		c.cache.SetRepositories(ctx, cacheKey, result, c.cacheTTL)
	}
	return result, nil
}

// ListCommits returns commits by query.Author between Since and Until.
func (c *Client) ListCommits(ctx context.Context, repo activity.Repository, query activity.CommitQuery) ([]activity.Commit, error) {
	opts := &gogithub.CommitsListOptions{
		Author:      query.Author,
		Since:       query.Since,
		Until:       query.Until,
		ListOptions: gogithub.ListOptions{PerPage: c.perPage},
	}

	var result []activity.Commit
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, resp, err := c.api.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("list commits for %s: %w", repo.FullName, err)
		}
		for _, item := range page {
			author := item.GetAuthor().GetLogin()
			if author == "" {
				author = item.GetCommit().GetAuthor().GetName()
			}
			result = append(result, activity.Commit{
				SHA:        item.GetSHA(),
				Message:    item.GetCommit().GetMessage(),
				Repository: repo.FullName,
				Date:       item.GetCommit().GetAuthor().GetDate().Time,
				URL:        item.GetHTMLURL(),
				Author:     author,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// ListPullRequests pages newest-updated first and stops at the first pull
// request last updated before query.UpdatedSince.
func (c *Client) ListPullRequests(ctx context.Context, repo activity.Repository, query activity.PullRequestQuery) ([]activity.PullRequest, error) {
	opts := &gogithub.PullRequestListOptions{
		State:       stateOrAll(query.State),
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gogithub.ListOptions{PerPage: c.perPage},
	}

	var result []activity.PullRequest
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, resp, err := c.api.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("list pull requests for %s: %w", repo.FullName, err)
		}

		stale := false
		for _, pr := range page {
			updated := pr.GetUpdatedAt().Time
			if !query.UpdatedSince.IsZero() && updated.Before(query.UpdatedSince) {
				stale = true
				break
			}
			result = append(result, activity.PullRequest{
				Number:     pr.GetNumber(),
				Title:      pr.GetTitle(),
				Repository: repo.FullName,
				State:      pr.GetState(),
				CreatedAt:  pr.GetCreatedAt().Time,
				UpdatedAt:  updated,
				URL:        pr.GetHTMLURL(),
				Author:     pr.GetUser().GetLogin(),
			})
		}
		if stale || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// ListIssues pages issues created by query.Creator, newest-updated first,
// with the same early stop as ListPullRequests.
func (c *Client) ListIssues(ctx context.Context, repo activity.Repository, query activity.IssueQuery) ([]activity.Issue, error) {
	opts := &gogithub.IssueListByRepoOptions{
		State:       stateOrAll(query.State),
		Creator:     query.Creator,
		Sort:        "updated",
		Direction:   "desc",
		Since:       query.UpdatedSince,
		ListOptions: gogithub.ListOptions{PerPage: c.perPage},
	}

	var result []activity.Issue
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, resp, err := c.api.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("list issues for %s: %w", repo.FullName, err)
		}

		stale := false
		for _, issue := range page {
			updated := issue.GetUpdatedAt().Time
			if !query.UpdatedSince.IsZero() && updated.Before(query.UpdatedSince) {
				stale = true
				break
			}
			result = append(result, activity.Issue{
				Number:        issue.GetNumber(),
				Title:         issue.GetTitle(),
				Repository:    repo.FullName,
				State:         issue.GetState(),
				CreatedAt:     issue.GetCreatedAt().Time,
				UpdatedAt:     updated,
				URL:           issue.GetHTMLURL(),
				Author:        issue.GetUser().GetLogin(),
				IsPullRequest: issue.IsPullRequest(),
			})
		}
		if stale || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

func stateOrAll(state string) string {
	if strings.TrimSpace(state) == "" {
		return "all"
	}
	return state
}
