package session

import (
	"context"

	"worklogbot/internal/domain"
	"worklogbot/internal/fetch"
	"worklogbot/internal/report"
)

// Inbound is one chat message addressed to the bot.
type Inbound struct {
	UserID    string
	UserName  string
	ChatID    string // where replies go
	MessageID string // used to delete messages that carry secrets
	Text      string
}

// Handler consumes inbound messages from a transport.
type Handler interface {
	Handle(ctx context.Context, in Inbound)
}

// Tracker is the issue-tracker surface the controller drives with a user's
// token.
type Tracker interface {
	fetch.IssueSearcher
	GetIssue(ctx context.Context, key string) (domain.Issue, error)
	TestAuth(ctx context.Context) (domain.Account, error)
	GetTransitions(ctx context.Context, key string) ([]domain.Transition, error)
	TransitionIssue(ctx context.Context, key, transitionID string) error
}

// TrackerFactory builds a Tracker authenticated with token.
type TrackerFactory func(token string) (Tracker, error)

type CredentialStore interface {
	GetByUser(ctx context.Context, userID string) (domain.Credential, error)
	Upsert(ctx context.Context, cred domain.Credential) error
	Clear(ctx context.Context, userID string) (bool, error)
}

type StateStore interface {
	Get(ctx context.Context, userID string) (domain.State, error)
	Set(ctx context.Context, userID string, state domain.State) error
}

// Messenger sends text back through the chat transport. Reply and Notify
// return an error wrapping domain.ErrRendering only when the markup was
// rejected before anything was delivered, so the caller can resend a plain
// rendering without repeating text. Delete returns domain.ErrDeleteUnsupported
// when the transport cannot remove a user's message.
type Messenger interface {
	Reply(ctx context.Context, to Inbound, text string, format report.Format) error
	Delete(ctx context.Context, msg Inbound) error
	Notify(ctx context.Context, userID, text string, format report.Format) error
	Format() report.Format
}

type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}
