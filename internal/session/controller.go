package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tj/go-naturaldate"

	"worklogbot/internal/domain"
	"worklogbot/internal/fetch"
	"worklogbot/internal/report"
)

const (
	maxOverrideDays = 365
	issueListLimit  = 20
)

var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-\d+$`)

var issuesProjectPattern = regexp.MustCompile(`^(.+?)\s+in\s+([A-Z][A-Z0-9_]+)$`)

// Controller runs the per-user command state machine. Messages of one user
// are handled one at a time; different users proceed in parallel.
type Controller struct {
	Credentials CredentialStore
	States      StateStore
	Trackers    TrackerFactory
	Messenger   Messenger
	Aggregator  *fetch.Aggregator
	Renderer    report.Renderer
	Policy      domain.WindowPolicy
	Summarizer  Summarizer // nil disables worklog_neuro
	Location    *time.Location
	Now         func() time.Time

	locks keyedMutex
}

// request carries one inbound message through its handlers.
type request struct {
	Inbound
	id string
}

// Handle processes one inbound message. Failures are reported to the user
// and logged; nothing is returned.
func (c *Controller) Handle(ctx context.Context, in Inbound) {
	unlock := c.locks.Lock(in.UserID)
	defer unlock()

	req := request{Inbound: in, id: uuid.NewString()}
	cmd, args, isCommand := ParseCommand(in.Text)
	if !isCommand {
		c.handleText(ctx, req)
		return
	}

	log.Printf("command req=%s user=%s cmd=%s", req.id, in.UserID, cmd)
	if cmd != "cancel" {
		// A new command abandons any step the user was in.
		c.setState(ctx, req, domain.StateIdle)
	}
	switch cmd {
	case "start":
		c.reply(ctx, req, msgStart)
	case "help":
		c.reply(ctx, req, commandList)
	case "set_token":
		c.handleSetToken(ctx, req, args)
	case "remove_token":
		c.handleRemoveToken(ctx, req)
	case "get_issue":
		c.handleGetIssue(ctx, req, args)
	case "worklog":
		c.handleWorklog(ctx, req, args, false)
	case "worklog_neuro":
		c.handleWorklog(ctx, req, args, true)
	case "transition":
		c.handleTransition(ctx, req, args)
	case "issues":
		c.handleIssues(ctx, req, args)
	case "cancel":
		c.handleCancel(ctx, req)
	default:
		c.reply(ctx, req, msgUnknown)
	}
}

// ParseCommand splits "/name args" into its parts. Telegram "@botname"
// suffixes are dropped and Slack-style dashes map to underscores.
func ParseCommand(text string) (cmd, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	head, _, _ = strings.Cut(head, "@")
	cmd = strings.ReplaceAll(strings.ToLower(head), "-", "_")
	if cmd == "" {
		return "", "", false
	}
	return cmd, strings.TrimSpace(rest), true
}

func (c *Controller) handleText(ctx context.Context, req request) {
	state, err := c.States.Get(ctx, req.UserID)
	if err != nil {
		log.Printf("state read error req=%s user=%s: %v", req.id, req.UserID, err)
		c.reply(ctx, req, msgInternal)
		return
	}
	switch state {
	case domain.StateAwaitingToken:
		if !c.deleteMessage(ctx, req) {
			c.reply(ctx, req, msgTokenNotDeleted)
		}
		c.linkToken(ctx, req, strings.TrimSpace(req.Text))
	case domain.StateAwaitingIssueKey:
		c.setState(ctx, req, domain.StateIdle)
		c.showIssue(ctx, req, req.Text)
	default:
		c.reply(ctx, req, msgUnknown)
	}
}

func (c *Controller) handleSetToken(ctx context.Context, req request, args string) {
	if !c.deleteMessage(ctx, req) && args != "" {
		c.reply(ctx, req, msgTokenNotDeleted)
	}

	cred, err := c.Credentials.GetByUser(ctx, req.UserID)
	if err != nil {
		log.Printf("credential read error req=%s user=%s: %v", req.id, req.UserID, err)
		c.reply(ctx, req, msgInternal)
		return
	}
	if cred.HasToken() {
		c.reply(ctx, req, msgTokenAlreadySet)
		return
	}
	if args != "" {
		c.linkToken(ctx, req, args)
		return
	}
	c.setState(ctx, req, domain.StateAwaitingToken)
	c.reply(ctx, req, msgTokenPrompt)
}

// linkToken validates token against the tracker and stores it. On failure
// the user stays in the token step.
func (c *Controller) linkToken(ctx context.Context, req request, token string) {
	account, err := c.testToken(ctx, token)
	if err != nil {
		log.Printf("token check failed req=%s user=%s: %v", req.id, req.UserID, err)
		c.setState(ctx, req, domain.StateAwaitingToken)
		c.reply(ctx, req, msgTokenInvalid)
		return
	}
	name := account.DisplayName
	if name == "" {
		name = account.Name
	}
	if err := c.Credentials.Upsert(ctx, domain.Credential{UserID: req.UserID, Token: token, DisplayName: name}); err != nil {
		log.Printf("credential save error req=%s user=%s: %v", req.id, req.UserID, err)
		c.reply(ctx, req, msgInternal)
		return
	}
	c.setState(ctx, req, domain.StateIdle)
	log.Printf("token linked req=%s user=%s account=%s", req.id, req.UserID, name)
	c.reply(ctx, req, fmt.Sprintf(msgTokenSaved, name))
}

func (c *Controller) testToken(ctx context.Context, token string) (domain.Account, error) {
	if token == "" {
		return domain.Account{}, fmt.Errorf("%w: empty token", domain.ErrAuthentication)
	}
	tracker, err := c.Trackers(token)
	if err != nil {
		return domain.Account{}, err
	}
	return tracker.TestAuth(ctx)
}

func (c *Controller) handleRemoveToken(ctx context.Context, req request) {
	removed, err := c.Credentials.Clear(ctx, req.UserID)
	if err != nil {
		log.Printf("credential clear error req=%s user=%s: %v", req.id, req.UserID, err)
		c.reply(ctx, req, msgInternal)
		return
	}
	if !removed {
		c.reply(ctx, req, msgNoTokenToRemove)
		return
	}
	log.Printf("token removed req=%s user=%s", req.id, req.UserID)
	c.reply(ctx, req, msgTokenRemoved)
}

func (c *Controller) handleGetIssue(ctx context.Context, req request, args string) {
	if args != "" {
		c.showIssue(ctx, req, args)
		return
	}
	c.setState(ctx, req, domain.StateAwaitingIssueKey)
	c.reply(ctx, req, msgIssuePrompt)
}

func (c *Controller) showIssue(ctx context.Context, req request, raw string) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if !issueKeyPattern.MatchString(key) {
		c.reply(ctx, req, fmt.Sprintf(msgIssueBadKey, raw))
		return
	}
	tracker, ok := c.trackerFor(ctx, req)
	if !ok {
		return
	}
	issue, err := tracker.GetIssue(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.reply(ctx, req, fmt.Sprintf(msgIssueNotFound, key))
		return
	case errors.Is(err, domain.ErrAuthentication):
		c.reply(ctx, req, msgAuthFailed)
		return
	case err != nil:
		log.Printf("get issue error req=%s user=%s key=%s: %v", req.id, req.UserID, key, err)
		c.reply(ctx, req, fmt.Sprintf(msgIssueFailed, err))
		return
	}
	c.replyFormatted(ctx, req, func(f report.Format) string {
		return c.Renderer.IssueCard(issue, f)
	})
}

func (c *Controller) handleWorklog(ctx context.Context, req request, args string, summarize bool) {
	if summarize && c.Summarizer == nil {
		c.reply(ctx, req, msgNeuroOff)
		return
	}
	days, err := c.daysBack(args)
	if err != nil {
		c.reply(ctx, req, msgWorklogUsage)
		return
	}
	tracker, ok := c.trackerFor(ctx, req)
	if !ok {
		return
	}

	start := time.Now()
	rep, err := c.Aggregator.Aggregate(ctx, days, tracker)
	if err != nil {
		log.Printf("worklog error req=%s user=%s days=%d: %v", req.id, req.UserID, days, err)
		if errors.Is(err, domain.ErrAuthentication) {
			c.reply(ctx, req, msgAuthFailed)
			return
		}
		c.reply(ctx, req, fmt.Sprintf(msgReportFailed, err))
		return
	}
	log.Printf("worklog req=%s user=%s days=%d issues=%d entries=%d truncated=%t took=%s",
		req.id, req.UserID, days, rep.Len(), rep.EntryCount(), rep.Truncated, time.Since(start).Round(time.Millisecond))

	if !summarize {
		c.replyFormatted(ctx, req, func(f report.Format) string {
			return c.Renderer.Human(rep, f)
		})
		return
	}

	if rep.IsEmpty() {
		c.reply(ctx, req, c.Renderer.EmptyText)
		return
	}
	c.reply(ctx, req, msgNeuroProgress)
	summary, err := c.Summarizer.Summarize(ctx, c.Renderer.Prompt(rep))
	if err != nil {
		log.Printf("worklog summarize error req=%s user=%s: %v", req.id, req.UserID, err)
		c.reply(ctx, req, fmt.Sprintf(msgNeuroFailed, err))
		return
	}
	c.reply(ctx, req, summary)
}

// daysBack resolves the look-back for a worklog command. An empty argument
// applies the configured policy; otherwise it is a day count or a past date
// in natural language.
func (c *Controller) daysBack(args string) (int, error) {
	now := c.now()
	if args == "" {
		return c.Policy.DaysBack(now), nil
	}
	if n, err := strconv.Atoi(args); err == nil {
		if n < 0 || n > maxOverrideDays {
			return 0, fmt.Errorf("days out of range: %d", n)
		}
		return n, nil
	}
	day, err := naturaldate.Parse(args, now.In(c.location()), naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return 0, err
	}
	n := domain.DaysSince(now, day, c.location())
	if n > maxOverrideDays {
		return 0, fmt.Errorf("date too far back: %s", day.Format("2006-01-02"))
	}
	return n, nil
}

func (c *Controller) handleTransition(ctx context.Context, req request, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		c.reply(ctx, req, msgTransitionUsage)
		return
	}
	key := strings.ToUpper(fields[0])
	target := strings.Join(fields[1:], " ")
	if !issueKeyPattern.MatchString(key) {
		c.reply(ctx, req, fmt.Sprintf(msgIssueBadKey, fields[0]))
		return
	}
	tracker, ok := c.trackerFor(ctx, req)
	if !ok {
		return
	}

	transitions, err := tracker.GetTransitions(ctx, key)
	if err != nil {
		c.replyTrackerError(ctx, req, key, err)
		return
	}
	var chosen *domain.Transition
	names := make([]string, 0, len(transitions))
	for i := range transitions {
		names = append(names, transitions[i].Name)
		if strings.EqualFold(transitions[i].Name, target) {
			chosen = &transitions[i]
		}
	}
	if chosen == nil {
		c.reply(ctx, req, fmt.Sprintf(msgTransitionNone, key, target, strings.Join(names, ", ")))
		return
	}
	if err := tracker.TransitionIssue(ctx, key, chosen.ID); err != nil {
		c.replyTrackerError(ctx, req, key, err)
		return
	}
	log.Printf("transition req=%s user=%s key=%s to=%s", req.id, req.UserID, key, chosen.Name)
	c.reply(ctx, req, fmt.Sprintf(msgTransitionDone, key, chosen.Name))
}

func (c *Controller) replyTrackerError(ctx context.Context, req request, key string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.reply(ctx, req, fmt.Sprintf(msgIssueNotFound, key))
	case errors.Is(err, domain.ErrAuthentication):
		c.reply(ctx, req, msgAuthFailed)
	default:
		log.Printf("tracker error req=%s user=%s key=%s: %v", req.id, req.UserID, key, err)
		c.reply(ctx, req, fmt.Sprintf(msgTransitionFail, err))
	}
}

// StatusJQL selects issues in the named status, optionally limited to one
// project key.
func StatusJQL(status, project string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(status)
	jql := "status = '" + escaped + "'"
	if project != "" {
		jql += " AND project = " + project
	}
	return jql + " ORDER BY updated DESC"
}

// ParseIssuesArgs splits "/issues" arguments into a status and an optional
// trailing "in KEY" project filter.
func ParseIssuesArgs(args string) (status, project string) {
	if m := issuesProjectPattern.FindStringSubmatch(args); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	return strings.TrimSpace(args), ""
}

func (c *Controller) handleIssues(ctx context.Context, req request, args string) {
	status, project := ParseIssuesArgs(args)
	if status == "" {
		c.reply(ctx, req, msgIssuesUsage)
		return
	}
	tracker, ok := c.trackerFor(ctx, req)
	if !ok {
		return
	}
	result, err := tracker.SearchIssues(ctx, StatusJQL(status, project), issueListLimit)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			c.reply(ctx, req, msgAuthFailed)
			return
		}
		log.Printf("issues search error req=%s user=%s: %v", req.id, req.UserID, err)
		c.reply(ctx, req, fmt.Sprintf(msgIssuesFailed, err))
		return
	}
	if len(result.Issues) == 0 {
		c.reply(ctx, req, fmt.Sprintf(msgIssuesEmpty, status))
		return
	}
	c.replyFormatted(ctx, req, func(f report.Format) string {
		return c.Renderer.IssueList(result.Issues, f)
	})
}

func (c *Controller) handleCancel(ctx context.Context, req request) {
	state, err := c.States.Get(ctx, req.UserID)
	if err != nil {
		log.Printf("state read error req=%s user=%s: %v", req.id, req.UserID, err)
	}
	if state == domain.StateIdle {
		c.reply(ctx, req, msgNothingToCancel)
		return
	}
	c.setState(ctx, req, domain.StateIdle)
	c.reply(ctx, req, msgCancelled)
}

// trackerFor builds a tracker from the caller's stored token, replying to the
// user when there is none.
func (c *Controller) trackerFor(ctx context.Context, req request) (Tracker, bool) {
	cred, err := c.Credentials.GetByUser(ctx, req.UserID)
	if err != nil {
		log.Printf("credential read error req=%s user=%s: %v", req.id, req.UserID, err)
		c.reply(ctx, req, msgInternal)
		return nil, false
	}
	if !cred.HasToken() {
		c.reply(ctx, req, msgTokenNotSet)
		return nil, false
	}
	tracker, err := c.Trackers(cred.Token)
	if err != nil {
		log.Printf("tracker init error req=%s user=%s: %v", req.id, req.UserID, err)
		c.reply(ctx, req, msgInternal)
		return nil, false
	}
	return tracker, true
}

func (c *Controller) setState(ctx context.Context, req request, state domain.State) {
	if err := c.States.Set(ctx, req.UserID, state); err != nil {
		log.Printf("state write error req=%s user=%s state=%s: %v", req.id, req.UserID, state, err)
	}
}

// deleteMessage removes the user's message and reports whether it is gone.
func (c *Controller) deleteMessage(ctx context.Context, req request) bool {
	err := c.Messenger.Delete(ctx, req.Inbound)
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrDeleteUnsupported) {
		log.Printf("delete message unsupported req=%s user=%s", req.id, req.UserID)
	} else {
		log.Printf("delete message error req=%s user=%s: %v", req.id, req.UserID, err)
	}
	return false
}

func (c *Controller) reply(ctx context.Context, req request, text string) {
	if err := c.Messenger.Reply(ctx, req.Inbound, text, report.FormatPlain); err != nil {
		log.Printf("reply error req=%s user=%s: %v", req.id, req.UserID, err)
	}
}

// replyFormatted sends render's output in the transport's markup and resends
// the plain rendering if the transport rejects it.
func (c *Controller) replyFormatted(ctx context.Context, req request, render func(report.Format) string) {
	format := c.Messenger.Format()
	err := c.Messenger.Reply(ctx, req.Inbound, render(format), format)
	if err == nil {
		return
	}
	if format != report.FormatPlain && errors.Is(err, domain.ErrRendering) {
		log.Printf("markup rejected req=%s user=%s format=%s: %v", req.id, req.UserID, format, err)
		c.reply(ctx, req, render(report.FormatPlain))
		return
	}
	log.Printf("reply error req=%s user=%s: %v", req.id, req.UserID, err)
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}
