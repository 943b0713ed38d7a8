package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"worklogbot/internal/domain"
	"worklogbot/internal/fetch"
	"worklogbot/internal/report"
	"worklogbot/internal/session"
)

type Notifier interface {
	Notify(ctx context.Context, userID, text string, format report.Format) error
	Format() report.Format
}

type CredentialReader interface {
	GetByUser(ctx context.Context, userID string) (domain.Credential, error)
}

// Digest pushes each configured user's work-log report to them.
type Digest struct {
	Credentials CredentialReader
	Trackers    session.TrackerFactory
	Aggregator  *fetch.Aggregator
	Renderer    report.Renderer
	Notifier    Notifier
	Policy      domain.WindowPolicy
	Summarizer  session.Summarizer // nil sends the rendered report
	Location    *time.Location
	Now         func() time.Time
}

// Result counts the outcome of one digest run.
type Result struct {
	Sent    int
	Skipped int // users without a stored token
	Errors  []string
}

func (r Result) String() string {
	msg := fmt.Sprintf("sent=%d skipped=%d failed=%d", r.Sent, r.Skipped, len(r.Errors))
	if len(r.Errors) > 0 {
		msg += " errors: " + strings.Join(r.Errors, "; ")
	}
	return msg
}

// RunOnce sends one digest to every user. A failure for one user does not
// stop the others.
func (d *Digest) RunOnce(ctx context.Context, userIDs []string) Result {
	var res Result
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, err.Error())
			break
		}
		sent, err := d.sendTo(ctx, userID)
		switch {
		case err != nil:
			log.Printf("digest error user=%s: %v", userID, err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", userID, err))
		case !sent:
			res.Skipped++
		default:
			res.Sent++
		}
	}
	return res
}

func (d *Digest) sendTo(ctx context.Context, userID string) (bool, error) {
	cred, err := d.Credentials.GetByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if !cred.HasToken() {
		log.Printf("digest skip user=%s reason=no_token", userID)
		return false, nil
	}
	tracker, err := d.Trackers(cred.Token)
	if err != nil {
		return false, err
	}

	days := d.Policy.DaysBack(d.now().In(d.location()))
	rep, err := d.Aggregator.Aggregate(ctx, days, tracker)
	if err != nil {
		return false, err
	}

	if d.Summarizer != nil && !rep.IsEmpty() {
		summary, err := d.Summarizer.Summarize(ctx, d.Renderer.Prompt(rep))
		if err != nil {
			return false, err
		}
		return true, d.Notifier.Notify(ctx, userID, summary, report.FormatPlain)
	}

	format := d.Notifier.Format()
	err = d.Notifier.Notify(ctx, userID, d.Renderer.Human(rep, format), format)
	if err != nil && format != report.FormatPlain && errors.Is(err, domain.ErrRendering) {
		log.Printf("digest markup rejected user=%s: %v", userID, err)
		err = d.Notifier.Notify(ctx, userID, d.Renderer.Human(rep, report.FormatPlain), report.FormatPlain)
	}
	if err != nil {
		return false, err
	}
	log.Printf("digest sent user=%s days=%d issues=%d entries=%d", userID, days, rep.Len(), rep.EntryCount())
	return true, nil
}

// ParseSchedule parses a standard 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(expr))
}

// Run sends digests on the cron schedule until ctx is done.
func (d *Digest) Run(ctx context.Context, schedule string, userIDs []string) error {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("invalid digest_schedule %q: %w", schedule, err)
	}
	log.Printf("Digest scheduled (cron: %s) users=%d", schedule, len(userIDs))

	for {
		now := d.now().In(d.location())
		next := sched.Next(now)
		wait := next.Sub(now)
		log.Printf("Next digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		res := d.RunOnce(ctx, userIDs)
		log.Printf("Digest complete: %s", res)
	}
}

func (d *Digest) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Digest) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.Local
}
