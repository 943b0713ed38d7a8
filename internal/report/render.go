package report

import (
	"fmt"
	"strings"
	"time"

	"worklogbot/internal/domain"
)

const (
	timestampLayout = "02-01-06 15:04"
	separatorLine   = "────────────────────"
)

// Renderer turns a WorkLogReport into chat messages and model prompts. All
// methods are pure.
type Renderer struct {
	BaseURL   string         // tracker root; issue links are BaseURL/browse/KEY
	EmptyText string         // sent when a report has no entries
	Location  *time.Location // zone for entry timestamps; nil keeps each entry's own offset
}

func (r Renderer) IssueURL(key string) string {
	return strings.TrimRight(r.BaseURL, "/") + "/browse/" + key
}

// Human renders the report for people. Dynamic fields are escaped for the
// given format; FormatPlain leaves them untouched.
func (r Renderer) Human(rep domain.WorkLogReport, f Format) string {
	m := markupFor(f)
	if rep.IsEmpty() {
		return m.text(r.EmptyText)
	}

	var buf strings.Builder
	for _, key := range rep.Keys() {
		buf.WriteString("🎯 " + m.link(key, r.IssueURL(key)))
		if summary := strings.TrimSpace(rep.Summary(key)); summary != "" {
			buf.WriteString(" " + m.bold(m.text(summary)))
		}
		buf.WriteString("\n")
		for _, e := range rep.Entries(key) {
			buf.WriteString("📅 " + m.text(r.timestamp(e.LoggedAt)) + " ⏱ " + m.text(duration(e)) + "\n")
			if comment := strings.TrimSpace(e.Comment); comment != "" {
				buf.WriteString("💬 " + m.text(comment) + "\n")
			}
		}
		buf.WriteString(separatorLine + "\n")
	}
	if rep.Truncated {
		buf.WriteString(m.text(fmt.Sprintf("⚠️ Only the first %d issues were checked, more may exist.", rep.IssuesFound)) + "\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Prompt renders the report as plain text for a language model: one line per
// issue, then each entry's comment followed by a blank line.
func (r Renderer) Prompt(rep domain.WorkLogReport) string {
	if rep.IsEmpty() {
		return ""
	}
	var buf strings.Builder
	for _, key := range rep.Keys() {
		buf.WriteString(strings.TrimSpace(key + " " + rep.Summary(key)))
		buf.WriteString("\n")
		for _, e := range rep.Entries(key) {
			if comment := strings.TrimSpace(e.Comment); comment != "" {
				buf.WriteString(comment)
				buf.WriteString("\n")
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// IssueCard renders a single issue with its status.
func (r Renderer) IssueCard(issue domain.Issue, f Format) string {
	m := markupFor(f)
	lines := []string{
		"🎯 " + m.bold(m.text("Issue:")) + " " + m.link(issue.Key, r.IssueURL(issue.Key)),
		"📝 " + m.bold(m.text("Summary:")) + " " + m.text(issue.Summary),
		"📊 " + m.bold(m.text("Status:")) + " " + m.text(issue.Status),
	}
	return strings.Join(lines, "\n")
}

// IssueList renders one line per issue.
func (r Renderer) IssueList(issues []domain.Issue, f Format) string {
	m := markupFor(f)
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		line := "• " + m.link(issue.Key, r.IssueURL(issue.Key)) + " " + m.text(issue.Summary)
		if issue.Status != "" {
			line += " " + m.text("("+issue.Status+")")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (r Renderer) timestamp(t time.Time) string {
	if r.Location != nil {
		t = t.In(r.Location)
	}
	return t.Format(timestampLayout)
}

func duration(e domain.WorkLogEntry) string {
	if s := strings.TrimSpace(e.TimeSpent); s != "" {
		return s
	}
	return FormatSeconds(e.TimeSpentSeconds)
}

// FormatSeconds renders a duration the way the tracker displays it, e.g.
// "2h 30m". Zero renders as "0m".
func FormatSeconds(seconds int) string {
	if seconds <= 0 {
		return "0m"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", seconds)
}
