package jira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"worklogbot/internal/domain"
)

func newTestJira(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL+"/", "pat-test", &http.Client{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestTestAuthSendsBearerToken(t *testing.T) {
	client := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/myself" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pat-test" {
			t.Fatalf("unexpected Authorization header: %q", got)
		}
		writeJSON(t, w, map[string]any{
			"name":        "jdoe",
			"key":         "JIRAUSER10",
			"displayName": "John Doe",
		})
	})

	account, err := client.TestAuth(context.Background())
	if err != nil {
		t.Fatalf("TestAuth failed: %v", err)
	}
	if account.DisplayName != "John Doe" || account.Name != "jdoe" || account.AccountID != "JIRAUSER10" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if client.BaseURL() == "" || strings.HasSuffix(client.BaseURL(), "/") {
		t.Fatalf("expected trimmed base URL, got %q", client.BaseURL())
	}
}

func TestTestAuthRejectedToken(t *testing.T) {
	client := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"errorMessages":["Unauthorized"]}`)
	})

	_, err := client.TestAuth(context.Background())
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestSearchIssuesReportsTotal(t *testing.T) {
	client := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method == http.MethodGet {
			if jql := r.URL.Query().Get("jql"); !strings.Contains(jql, "worklogAuthor = currentUser()") {
				t.Fatalf("unexpected jql: %q", jql)
			}
			if got := r.URL.Query().Get("maxResults"); got != "100" {
				t.Fatalf("unexpected maxResults: %q", got)
			}
		}
		writeJSON(t, w, map[string]any{
			"startAt":    0,
			"maxResults": 100,
			"total":      150,
			"issues": []map[string]any{
				{"id": "1", "key": "PROJ-1", "fields": map[string]any{"summary": "Login page", "status": map[string]any{"name": "In Progress"}}},
				{"id": "2", "key": "PROJ-2", "fields": map[string]any{"summary": "Billing"}},
			},
		})
	})

	result, err := client.SearchIssues(context.Background(), "worklogAuthor = currentUser() AND worklogDate >= startOfDay(-3)", 100)
	if err != nil {
		t.Fatalf("SearchIssues failed: %v", err)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d", len(result.Issues))
	}
	if result.Total != 150 {
		t.Fatalf("expected total=150, got %d", result.Total)
	}
	first := result.Issues[0]
	if first.Key != "PROJ-1" || first.Summary != "Login page" || first.Status != "In Progress" {
		t.Fatalf("unexpected first issue: %+v", first)
	}
}

func TestSearchIssuesServerErrorIsRetrievalError(t *testing.T) {
	client := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errorMessages":["Error in the JQL Query"]}`)
	})

	_, err := client.SearchIssues(context.Background(), "bad jql", 100)
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

func TestGetWorklogsFollowsPagination(t *testing.T) {
	record := func(id, started, comment string, seconds int) map[string]any {
		return map[string]any{
			"id":               id,
			"author":           map[string]any{"displayName": "John Doe", "key": "JIRAUSER10"},
			"comment":          comment,
			"started":          started,
			"created":          started,
			"updated":          started,
			"timeSpent":        "1h",
			"timeSpentSeconds": seconds,
		}
	}

	var calls int
	client := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/PROJ-1/worklog" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		calls++
		switch r.URL.Query().Get("startAt") {
		case "0":
			writeJSON(t, w, map[string]any{
				"startAt": 0, "maxResults": 2, "total": 3,
				"worklogs": []map[string]any{
					record("100", "2026-02-10T09:30:00.000+0000", " fixed bug ", 3600),
					record("101", "2026-02-11T10:00:00.000+0300", "", 1800),
				},
			})
		case "2":
			writeJSON(t, w, map[string]any{
				"startAt": 2, "maxResults": 2, "total": 3,
				"worklogs": []map[string]any{
					record("102", "2026-02-12T08:00:00.000+0000", "review", 600),
				},
			})
		default:
			t.Fatalf("unexpected startAt: %q", r.URL.Query().Get("startAt"))
		}
	})

	logs, err := client.GetWorklogs(context.Background(), "PROJ-1")
	if err != nil {
		t.Fatalf("GetWorklogs failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 worklogs, got %d", len(logs))
	}
	first := logs[0]
	if first.Comment != "fixed bug" || first.TimeSpentSeconds != 3600 || first.AuthorName != "John Doe" {
		t.Fatalf("unexpected first worklog: %+v", first)
	}
	want := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	if !first.Started.Equal(want) {
		t.Fatalf("started = %s, want %s", first.Started, want)
	}
}

func TestGetIssueNotFound(t *testing.T) {
	client := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"errorMessages":["Issue Does Not Exist"]}`)
	})

	_, err := client.GetIssue(context.Background(), "PROJ-404")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitions(t *testing.T) {
	var applied string
	client := newTestJira(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/PROJ-1/transitions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, map[string]any{
				"transitions": []map[string]any{
					{"id": "11", "name": "Start Progress"},
					{"id": "31", "name": "Done"},
				},
			})
		case http.MethodPost:
			var body struct {
				Transition struct {
					ID string `json:"id"`
				} `json:"transition"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode transition body: %v", err)
			}
			applied = body.Transition.ID
			w.WriteHeader(http.StatusNoContent)
		}
	})

	transitions, err := client.GetTransitions(context.Background(), "PROJ-1")
	if err != nil {
		t.Fatalf("GetTransitions failed: %v", err)
	}
	if len(transitions) != 2 || transitions[1].Name != "Done" {
		t.Fatalf("unexpected transitions: %+v", transitions)
	}
	if err := client.TransitionIssue(context.Background(), "PROJ-1", "31"); err != nil {
		t.Fatalf("TransitionIssue failed: %v", err)
	}
	if applied != "31" {
		t.Fatalf("expected transition 31 applied, got %q", applied)
	}
}
