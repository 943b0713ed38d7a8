package domain

import (
	"sort"
	"time"
)

// WorkLogEntry is one unit of logged time on an issue.
type WorkLogEntry struct {
	IssueKey         string
	IssueSummary     string
	LoggedAt         time.Time
	TimeSpent        string // display form, e.g. "2h 30m"; never parsed back
	TimeSpentSeconds int
	Comment          string
	Author           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkLogReport groups work-log entries by issue. Issues iterate in the order
// they were first seen; entries of one issue are ordered most recent first.
// A report is read-only once built.
type WorkLogReport struct {
	Since       time.Time // first calendar day included
	DaysBack    int
	IssuesFound int
	IssuesTotal int  // as reported by the tracker, 0 if unknown
	Truncated   bool // the tracker may hold more matching issues than were fetched

	keys    []string
	entries map[string][]WorkLogEntry
}

func (r WorkLogReport) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r WorkLogReport) Entries(key string) []WorkLogEntry {
	src := r.entries[key]
	out := make([]WorkLogEntry, len(src))
	copy(out, src)
	return out
}

// Summary returns the issue summary carried by the first entry of key.
func (r WorkLogReport) Summary(key string) string {
	if es := r.entries[key]; len(es) > 0 {
		return es[0].IssueSummary
	}
	return ""
}

func (r WorkLogReport) Len() int { return len(r.keys) }

func (r WorkLogReport) IsEmpty() bool { return len(r.keys) == 0 }

func (r WorkLogReport) EntryCount() int {
	n := 0
	for _, es := range r.entries {
		n += len(es)
	}
	return n
}

func (r WorkLogReport) TotalSeconds() int {
	total := 0
	for _, es := range r.entries {
		for _, e := range es {
			total += e.TimeSpentSeconds
		}
	}
	return total
}

// ReportBuilder accumulates entries in retrieval order and produces a
// WorkLogReport. A builder must not be reused after Build.
type ReportBuilder struct {
	keys    []string
	entries map[string][]WorkLogEntry
}

func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{entries: make(map[string][]WorkLogEntry)}
}

func (b *ReportBuilder) Add(e WorkLogEntry) {
	if _, seen := b.entries[e.IssueKey]; !seen {
		b.keys = append(b.keys, e.IssueKey)
	}
	b.entries[e.IssueKey] = append(b.entries[e.IssueKey], e)
}

// Build sorts every issue's entries by LoggedAt descending. Equal timestamps
// keep their retrieval order.
func (b *ReportBuilder) Build(since time.Time, daysBack int) WorkLogReport {
	for _, key := range b.keys {
		es := b.entries[key]
		sort.SliceStable(es, func(i, j int) bool {
			return es[i].LoggedAt.After(es[j].LoggedAt)
		})
	}
	return WorkLogReport{
		Since:    since,
		DaysBack: daysBack,
		keys:     b.keys,
		entries:  b.entries,
	}
}

// Credential links a chat identity to an issue-tracker token.
type Credential struct {
	UserID      string
	Token       string
	DisplayName string // tracker account name, captured when the token was validated
	UpdatedAt   time.Time
}

func (c Credential) HasToken() bool {
	return c.Token != ""
}
