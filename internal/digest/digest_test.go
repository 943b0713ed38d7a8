package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"worklogbot/internal/domain"
	"worklogbot/internal/fetch"
	"worklogbot/internal/report"
	"worklogbot/internal/session"
)

var testNow = time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC) // Monday morning

type notification struct {
	userID string
	text   string
	format report.Format
}

type fakeNotifier struct {
	format       report.Format
	rejectMarkup bool
	failFor      string
	sent         []notification
}

func (f *fakeNotifier) Format() report.Format { return f.format }

func (f *fakeNotifier) Notify(_ context.Context, userID, text string, format report.Format) error {
	if userID == f.failFor {
		return errors.New("chat not found")
	}
	if f.rejectMarkup && format != report.FormatPlain {
		return fmt.Errorf("%w: bad entity", domain.ErrRendering)
	}
	f.sent = append(f.sent, notification{userID: userID, text: text, format: format})
	return nil
}

type credMap map[string]string

func (m credMap) GetByUser(_ context.Context, userID string) (domain.Credential, error) {
	return domain.Credential{UserID: userID, Token: m[userID]}, nil
}

type fakeTracker struct {
	jql []string
}

func (f *fakeTracker) SearchIssues(_ context.Context, jql string, limit int) (domain.SearchResult, error) {
	f.jql = append(f.jql, jql)
	return domain.SearchResult{Issues: []domain.Issue{{Key: "OPS-1", Summary: "Deploy"}}, Total: 1}, nil
}

func (f *fakeTracker) GetWorklogs(_ context.Context, key string) ([]domain.RawWorklog, error) {
	return []domain.RawWorklog{{Started: testNow.AddDate(0, 0, -2), TimeSpent: "1h", Comment: "release"}}, nil
}

func (f *fakeTracker) GetIssue(context.Context, string) (domain.Issue, error) { return domain.Issue{}, nil }
func (f *fakeTracker) TestAuth(context.Context) (domain.Account, error)       { return domain.Account{}, nil }
func (f *fakeTracker) GetTransitions(context.Context, string) ([]domain.Transition, error) {
	return nil, nil
}
func (f *fakeTracker) TransitionIssue(context.Context, string, string) error { return nil }

type fakeSummarizer struct{ prompts []string }

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return "Shipped the release.", nil
}

func newTestDigest(n *fakeNotifier, tracker *fakeTracker) *Digest {
	agg := fetch.NewAggregator(fetch.MaxIssues, time.UTC)
	agg.Now = func() time.Time { return testNow }
	return &Digest{
		Credentials: credMap{"u1": "tok-1", "u3": "tok-3"},
		Trackers: func(token string) (session.Tracker, error) {
			return tracker, nil
		},
		Aggregator: agg,
		Renderer:   report.Renderer{BaseURL: "https://jira", EmptyText: "none", Location: time.UTC},
		Notifier:   n,
		Policy:     domain.WindowPolicy{Mode: domain.WindowModeCutoff, Schedule: domain.DefaultSchedule(time.UTC)},
		Location:   time.UTC,
		Now:        func() time.Time { return testNow },
	}
}

func TestRunOnceSendsReports(t *testing.T) {
	n := &fakeNotifier{format: report.FormatMarkdownV2}
	tracker := &fakeTracker{}
	d := newTestDigest(n, tracker)

	res := d.RunOnce(context.Background(), []string{"u1", "u2", "u3"})
	if res.Sent != 2 || res.Skipped != 1 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result %s", res)
	}
	// Monday before the cutoff looks back three days.
	if len(tracker.jql) != 2 || !strings.Contains(tracker.jql[0], "startOfDay(-3)") {
		t.Fatalf("unexpected JQL %v", tracker.jql)
	}
	if n.sent[0].userID != "u1" || n.sent[0].format != report.FormatMarkdownV2 || !strings.Contains(n.sent[0].text, "release") {
		t.Fatalf("unexpected notification %+v", n.sent[0])
	}
}

func TestRunOnceFallsBackToPlain(t *testing.T) {
	n := &fakeNotifier{format: report.FormatMarkdownV2, rejectMarkup: true}
	d := newTestDigest(n, &fakeTracker{})

	res := d.RunOnce(context.Background(), []string{"u1"})
	if res.Sent != 1 || len(n.sent) != 1 || n.sent[0].format != report.FormatPlain {
		t.Fatalf("expected plain fallback, result %s sent %+v", res, n.sent)
	}
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	n := &fakeNotifier{format: report.FormatPlain, failFor: "u1"}
	d := newTestDigest(n, &fakeTracker{})

	res := d.RunOnce(context.Background(), []string{"u1", "u3"})
	if res.Sent != 1 || len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "u1:") {
		t.Fatalf("unexpected result %s", res)
	}
}

func TestRunOnceSummarizes(t *testing.T) {
	n := &fakeNotifier{format: report.FormatMarkdownV2}
	sum := &fakeSummarizer{}
	d := newTestDigest(n, &fakeTracker{})
	d.Summarizer = sum

	d.RunOnce(context.Background(), []string{"u1"})
	if len(sum.prompts) != 1 || !strings.HasPrefix(sum.prompts[0], "OPS-1 Deploy\n") {
		t.Fatalf("unexpected prompts %q", sum.prompts)
	}
	if len(n.sent) != 1 || n.sent[0].text != "Shipped the release." || n.sent[0].format != report.FormatPlain {
		t.Fatalf("unexpected notifications %+v", n.sent)
	}
}

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("0 15 * * 1-5")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	next := sched.Next(testNow)
	want := time.Date(2026, 2, 9, 15, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("Next = %s, want %s", next, want)
	}
	if _, err := ParseSchedule("every day"); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := newTestDigest(&fakeNotifier{}, &fakeTracker{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, "0 15 * * *", []string{"u1"}) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if err := d.Run(context.Background(), "bogus", nil); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
