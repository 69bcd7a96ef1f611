// Package activity collects a user's code-hosting activity for one civil day.
//
// The aggregator only sees the Source interface and the plain records below;
// the concrete client lives in internal/github.
package activity

import (
	"context"
	"time"
)

// Repository identifies a repository the credential can see.
type Repository struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// Commit is a single authored commit.
type Commit struct {
	SHA        string    `json:"sha"`
	Message    string    `json:"message"`
	Repository string    `json:"repository"`
	Date       time.Time `json:"date"`
	URL        string    `json:"url"`
	Author     string    `json:"author"`
}

// PullRequest is a pull request authored by the user.
type PullRequest struct {
	Number     int       `json:"number"`
	Title      string    `json:"title"`
	Repository string    `json:"repository"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	URL        string    `json:"url"`
	Author     string    `json:"author"`
}

// Issue is an issue created by the user. The issues API also returns pull
// requests; sources flag those with IsPullRequest.
type Issue struct {
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	Repository    string    `json:"repository"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	URL           string    `json:"url"`
	Author        string    `json:"author"`
	IsPullRequest bool      `json:"-"`
}

// CommitQuery restricts commits to an author and an inclusive time range.
type CommitQuery struct {
	Author string
	Since  time.Time
	Until  time.Time
}

// PullRequestQuery lists pull requests. Results are ordered by update time,
// newest first; a source may stop paging once items are older than
// UpdatedSince.
type PullRequestQuery struct {
	State        string
	UpdatedSince time.Time
}

// IssueQuery lists issues created by Creator, newest update first.
type IssueQuery struct {
	State        string
	Creator      string
	UpdatedSince time.Time
}

// Source is an authenticated view of a code-hosting account.
type Source interface {
	Login(ctx context.Context) (string, error)
	ListRepositories(ctx context.Context) ([]Repository, error)
	ListCommits(ctx context.Context, repo Repository, query CommitQuery) ([]Commit, error)
	ListPullRequests(ctx context.Context, repo Repository, query PullRequestQuery) ([]PullRequest, error)
	ListIssues(ctx context.Context, repo Repository, query IssueQuery) ([]Issue, error)
}

// Connector turns a stored credential into a Source, checking connectivity.
type Connector interface {
	Connect(ctx context.Context, credential string) (Source, error)
}

// Snapshot is everything attributed to one user on one day.
type Snapshot struct {
	Date          string        `json:"date"`
	Commits       []Commit      `json:"commits"`
	CommitsCount  int           `json:"commits_count"`
	PullRequests  []PullRequest `json:"pull_requests"`
	PRsCount      int           `json:"prs_count"`
	Issues        []Issue       `json:"issues"`
	IssuesCount   int           `json:"issues_count"`
	Repositories  []string      `json:"repositories"`
	TotalActivity int           `json:"total_activity"`
}
