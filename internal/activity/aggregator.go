package activity

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/commitlog/dailyagent/internal/calendar"
	"go.uber.org/zap"
)

// Request names whose day to aggregate.
type Request struct {
	Username string
	TimeZone string
	Date     time.Time
}

// Aggregator builds a Snapshot from a Source.
type Aggregator struct {
	resolver *calendar.Resolver
	logger   *zap.Logger
}

// NewAggregator wires the resolver used for day windows.
func NewAggregator(resolver *calendar.Resolver, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{resolver: resolver, logger: logger}
}

// Aggregate walks every visible repository and keeps the items that fall in
// the user's local day. Failures never escape: each item kind of a repository
// is fetched on its own, so one failing listing only drops that kind, and a
// failed repository listing yields an empty snapshot.
func (a *Aggregator) Aggregate(ctx context.Context, src Source, req Request) Snapshot {
	start, end := a.resolver.DayWindow(req.Date, req.TimeZone)
	log := a.logger.With(
		zap.String("username", req.Username),
		zap.String("date", calendar.Key(req.Date)),
	)

	snap := Snapshot{
		Date:         calendar.Key(req.Date),
		Commits:      []Commit{},
		PullRequests: []PullRequest{},
		Issues:       []Issue{},
		Repositories: []string{},
	}

	repos, err := src.ListRepositories(ctx)
	if err != nil {
		log.Error("list repositories failed", zap.Error(err))
		return snap
	}

	for _, repo := range repos {
		repoLog := log.With(zap.String("repository", repo.FullName))

		// since/until on the commits endpoint already bound by committer date,
		// so a commit rebased today counts even if it was authored earlier.
		commits, err := src.ListCommits(ctx, repo, CommitQuery{Author: req.Username, Since: start, Until: end})
		if err != nil {
			repoLog.Warn("list commits failed, skipping commits", zap.Error(err))
		} else {
			snap.Commits = append(snap.Commits, commits...)
		}

		prs, err := src.ListPullRequests(ctx, repo, PullRequestQuery{State: "all", UpdatedSince: start})
		if err != nil {
			repoLog.Warn("list pull requests failed, skipping pull requests", zap.Error(err))
		} else {
			for _, pr := range prs {
				if sameUser(pr.Author, req.Username) && touchedIn(pr.CreatedAt, pr.UpdatedAt, start, end) {
					snap.PullRequests = append(snap.PullRequests, pr)
				}
			}
		}

		issues, err := src.ListIssues(ctx, repo, IssueQuery{State: "all", Creator: req.Username, UpdatedSince: start})
		if err != nil {
			repoLog.Warn("list issues failed, skipping issues", zap.Error(err))
			continue
		}
		for _, issue := range issues {
			if issue.IsPullRequest || !sameUser(issue.Author, req.Username) {
				continue
			}
			if touchedIn(issue.CreatedAt, issue.UpdatedAt, start, end) {
				snap.Issues = append(snap.Issues, issue)
			}
		}
	}

	snap.finalize()
	log.Info("activity aggregated",
		zap.Int("repositories_scanned", len(repos)),
		zap.Int("commits", snap.CommitsCount),
		zap.Int("pull_requests", snap.PRsCount),
		zap.Int("issues", snap.IssuesCount),
	)
	return snap
}

func (s *Snapshot) finalize() {
	seen := make(map[string]struct{})
	for _, c := range s.Commits {
		seen[c.Repository] = struct{}{}
	}
	for _, pr := range s.PullRequests {
		seen[pr.Repository] = struct{}{}
	}
	for _, issue := range s.Issues {
		seen[issue.Repository] = struct{}{}
	}

	repos := make([]string, 0, len(seen))
	for name := range seen {
		if name != "" {
			repos = append(repos, name)
		}
	}
	sort.Strings(repos)

	s.Repositories = repos
	s.CommitsCount = len(s.Commits)
	s.PRsCount = len(s.PullRequests)
	s.IssuesCount = len(s.Issues)
	s.TotalActivity = s.CommitsCount + s.PRsCount + s.IssuesCount
}

func inWindow(t, start, end time.Time) bool {
	return !t.IsZero() && !t.Before(start) && !t.After(end)
}

// touchedIn is true when the item was opened or last updated inside the window.
func touchedIn(created, updated, start, end time.Time) bool {
	return inWindow(created, start, end) || inWindow(updated, start, end)
}

func sameUser(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
