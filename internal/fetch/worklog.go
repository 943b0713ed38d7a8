package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"worklogbot/internal/domain"
)

// MaxIssues is the most issues the tracker returns for one search. Work-logs
// on issues beyond it are not reported; WorkLogReport.Truncated flags this.
const MaxIssues = 100

// IssueSearcher is the part of the issue tracker the aggregator needs.
type IssueSearcher interface {
	SearchIssues(ctx context.Context, jql string, limit int) (domain.SearchResult, error)
	GetWorklogs(ctx context.Context, key string) ([]domain.RawWorklog, error)
}

// Aggregator collects the caller's recent work-logs into a WorkLogReport.
type Aggregator struct {
	MaxIssues int            // capped at MaxIssues
	Location  *time.Location // calendar used for the date filter
	Now       func() time.Time
}

func NewAggregator(maxIssues int, loc *time.Location) *Aggregator {
	return &Aggregator{MaxIssues: maxIssues, Location: loc, Now: time.Now}
}

// WorklogJQL selects issues the token owner logged work on since the start
// of the day daysBack days ago.
func WorklogJQL(daysBack int) string {
	return fmt.Sprintf("worklogAuthor = currentUser() AND worklogDate >= startOfDay(-%d)", daysBack)
}

// Aggregate searches issues with recent work-logs, fetches each issue's full
// work-log history and keeps entries logged on or after the window start
// date. Any tracker failure aborts the whole aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, daysBack int, tracker IssueSearcher) (domain.WorkLogReport, error) {
	if daysBack < 0 {
		daysBack = 0
	}
	limit := a.limit()
	loc := a.location()
	now := a.now().In(loc)
	since := domain.WindowStart(now, daysBack, loc)

	result, err := tracker.SearchIssues(ctx, WorklogJQL(daysBack), limit)
	if err != nil {
		return domain.WorkLogReport{}, retrievalErr("search issues", err)
	}

	builder := domain.NewReportBuilder()
	seen := make(map[string]bool, len(result.Issues))
	for _, issue := range result.Issues {
		if seen[issue.Key] {
			continue
		}
		seen[issue.Key] = true
		if err := ctx.Err(); err != nil {
			return domain.WorkLogReport{}, retrievalErr("fetch worklogs for "+issue.Key, err)
		}

		worklogs, err := tracker.GetWorklogs(ctx, issue.Key)
		if err != nil {
			return domain.WorkLogReport{}, retrievalErr("fetch worklogs for "+issue.Key, err)
		}
		for _, w := range worklogs {
			if w.Started.IsZero() || startOfDay(w.Started, loc).Before(since) {
				continue
			}
			builder.Add(domain.WorkLogEntry{
				IssueKey:         issue.Key,
				IssueSummary:     issue.Summary,
				LoggedAt:         w.Started,
				TimeSpent:        w.TimeSpent,
				TimeSpentSeconds: w.TimeSpentSeconds,
				Comment:          w.Comment,
				Author:           w.AuthorName,
				CreatedAt:        w.Created,
				UpdatedAt:        w.Updated,
			})
		}
	}

	report := builder.Build(since, daysBack)
	report.IssuesFound = len(result.Issues)
	report.IssuesTotal = result.Total
	report.Truncated = len(result.Issues) >= limit && (result.Total == 0 || result.Total > len(result.Issues))
	if report.Truncated {
		log.Printf("worklog search hit the issue cap limit=%d total=%d; older issues may be missing", limit, result.Total)
	}
	log.Printf("worklog aggregate days=%d since=%s issues=%d reported=%d entries=%d",
		daysBack, since.Format("2006-01-02"), report.IssuesFound, report.Len(), report.EntryCount())
	return report, nil
}

func (a *Aggregator) limit() int {
	if a.MaxIssues < 1 || a.MaxIssues > MaxIssues {
		return MaxIssues
	}
	return a.MaxIssues
}

func (a *Aggregator) location() *time.Location {
	if a.Location == nil {
		return time.Local
	}
	return a.Location
}

func (a *Aggregator) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// retrievalErr names the failing operation. Authentication failures keep
// their own kind so callers can tell a bad token from a tracker outage.
func retrievalErr(op string, err error) error {
	if errors.Is(err, domain.ErrAuthentication) || errors.Is(err, domain.ErrRetrieval) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrRetrieval, err)
}
