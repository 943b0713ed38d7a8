package jira

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"worklogbot/internal/domain"

	jira "github.com/andygrunwald/go-jira"
)

const worklogPageSize = 1000

// Client is the issue-tracker capability for one personal access token.
type Client struct {
	api     *jira.Client
	baseURL string
}

// NewClient builds a Jira client authenticating with a personal access token
// sent as a bearer token. The transport and timeout of httpClient are reused.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: jira base URL is empty", domain.ErrConfiguration)
	}
	tp := &jira.BearerAuthTransport{Token: token}
	if httpClient != nil {
		tp.Transport = httpClient.Transport
	}
	hc := tp.Client()
	if httpClient != nil {
		hc.Timeout = httpClient.Timeout
	}
	api, err := jira.NewClient(hc, strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: creating jira client: %v", domain.ErrConfiguration, err)
	}
	return &Client{api: api, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) GetIssue(ctx context.Context, key string) (domain.Issue, error) {
	issue, resp, err := c.api.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		return domain.Issue{}, wrapErr("get issue "+key, resp, err)
	}
	return toIssue(issue), nil
}

func (c *Client) SearchIssues(ctx context.Context, jql string, limit int) (domain.SearchResult, error) {
	issues, resp, err := c.api.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: limit,
		Fields:     []string{"summary", "status"},
	})
	if err != nil {
		return domain.SearchResult{}, wrapErr("search issues", resp, err)
	}
	result := domain.SearchResult{Issues: make([]domain.Issue, 0, len(issues))}
	for i := range issues {
		result.Issues = append(result.Issues, toIssue(&issues[i]))
	}
	if resp != nil {
		result.Total = resp.Total
	}
	log.Printf("jira search results=%d total=%d limit=%d", len(result.Issues), result.Total, limit)
	return result, nil
}

type worklogPage struct {
	StartAt    int `url:"startAt"`
	MaxResults int `url:"maxResults"`
}

// GetWorklogs returns the complete work-log history of an issue, following
// pagination until the tracker's reported total is reached.
func (c *Client) GetWorklogs(ctx context.Context, key string) ([]domain.RawWorklog, error) {
	var out []domain.RawWorklog
	for {
		page, resp, err := c.api.Issue.GetWorklogsWithContext(ctx, key,
			jira.WithQueryOptions(&worklogPage{StartAt: len(out), MaxResults: worklogPageSize}))
		if err != nil {
			return nil, wrapErr("get worklogs "+key, resp, err)
		}
		for _, rec := range page.Worklogs {
			out = append(out, toRawWorklog(rec))
		}
		if len(page.Worklogs) == 0 || len(out) >= page.Total {
			break
		}
	}
	return out, nil
}

// TestAuth reports the account behind the token, failing with
// domain.ErrAuthentication when the tracker rejects it.
func (c *Client) TestAuth(ctx context.Context) (domain.Account, error) {
	user, resp, err := c.api.User.GetSelfWithContext(ctx)
	if err != nil {
		return domain.Account{}, wrapErr("get current user", resp, err)
	}
	return domain.Account{
		AccountID:   firstNonEmpty(user.AccountID, user.Key),
		Name:        user.Name,
		DisplayName: user.DisplayName,
	}, nil
}

func (c *Client) GetTransitions(ctx context.Context, key string) ([]domain.Transition, error) {
	transitions, resp, err := c.api.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return nil, wrapErr("get transitions "+key, resp, err)
	}
	out := make([]domain.Transition, 0, len(transitions))
	for _, t := range transitions {
		out = append(out, domain.Transition{ID: t.ID, Name: t.Name})
	}
	return out, nil
}

func (c *Client) TransitionIssue(ctx context.Context, key, transitionID string) error {
	resp, err := c.api.Issue.DoTransitionWithContext(ctx, key, transitionID)
	if err != nil {
		return wrapErr("transition "+key, resp, err)
	}
	return nil
}

func toIssue(issue *jira.Issue) domain.Issue {
	out := domain.Issue{Key: issue.Key}
	if issue.Fields != nil {
		out.Summary = issue.Fields.Summary
		if issue.Fields.Status != nil {
			out.Status = issue.Fields.Status.Name
		}
	}
	return out
}

func toRawWorklog(rec jira.WorklogRecord) domain.RawWorklog {
	w := domain.RawWorklog{
		ID:               rec.ID,
		TimeSpent:        rec.TimeSpent,
		TimeSpentSeconds: rec.TimeSpentSeconds,
		Comment:          strings.TrimSpace(rec.Comment),
		Started:          jiraTime(rec.Started),
		Created:          jiraTime(rec.Created),
		Updated:          jiraTime(rec.Updated),
	}
	if rec.Author != nil {
		w.AuthorName = rec.Author.DisplayName
		w.AuthorAccountID = firstNonEmpty(rec.Author.AccountID, rec.Author.Key)
	}
	return w
}

func jiraTime(t *jira.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return time.Time(*t)
}

func wrapErr(op string, resp *jira.Response, err error) error {
	if resp != nil && resp.Response != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, domain.ErrAuthentication)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: timed out", op, domain.ErrRetrieval)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrRetrieval, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
