package domain

import "time"

type Issue struct {
	Key     string
	Summary string
	Status  string
}

type Transition struct {
	ID   string
	Name string
}

// Account is the tracker identity behind a token.
type Account struct {
	AccountID   string
	Name        string
	DisplayName string
}

// RawWorklog is a work-log record as the tracker lists it for one issue.
type RawWorklog struct {
	ID               string
	Started          time.Time
	TimeSpent        string
	TimeSpentSeconds int
	Comment          string
	AuthorName       string
	AuthorAccountID  string
	Created          time.Time
	Updated          time.Time
}

// SearchResult is one page of issues. Total is the tracker's count of all
// matches, or 0 when it did not report one.
type SearchResult struct {
	Issues []Issue
	Total  int
}
