package slackbot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"worklogbot/internal/domain"
	"worklogbot/internal/report"
	"worklogbot/internal/session"
)

// messageLimit keeps chunks well under Slack's 40k character cap.
const messageLimit = 39000

// Bot receives slash commands and direct messages over Socket Mode and
// sends replies through the Web API.
type Bot struct {
	api   *slack.Client
	users *userDirectory
}

func New(api *slack.Client) *Bot {
	return &Bot{api: api, users: newUserDirectory(api)}
}

func (b *Bot) Format() report.Format { return report.FormatSlack }

// Run dispatches every event on its own goroutine until ctx is done or the
// connection fails. It returns after in-flight handlers finish.
func (b *Bot) Run(parent context.Context, h session.Handler) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	client := socketmode.New(b.api)

	var wg sync.WaitGroup
	dispatch := func(in session.Inbound) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Handle(ctx, in)
		}()
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-client.Events:
				if !ok {
					return
				}
				switch evt.Type {
				case socketmode.EventTypeSlashCommand:
					client.Ack(*evt.Request)
					cmd, ok := evt.Data.(slack.SlashCommand)
					if !ok {
						continue
					}
					log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
					dispatch(inboundFromSlash(cmd))
				case socketmode.EventTypeEventsAPI:
					client.Ack(*evt.Request)
					eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
					if !ok {
						continue
					}
					if in, ok := inboundFromEvent(eventsAPIEvent); ok {
						dispatch(in)
					}
				case socketmode.EventTypeConnected:
					log.Println("Slack bot connected via Socket Mode")
				}
			}
		}
	}()

	err := client.RunContext(ctx)
	cancel()
	<-loopDone
	log.Println("Slack bot stopping, waiting for in-flight handlers")
	wg.Wait()
	if parent.Err() != nil {
		return nil
	}
	return err
}

func inboundFromSlash(cmd slack.SlashCommand) session.Inbound {
	return session.Inbound{
		UserID:   cmd.UserID,
		UserName: cmd.UserName,
		ChatID:   cmd.ChannelID,
		Text:     strings.TrimSpace(cmd.Command + " " + cmd.Text),
	}
}

// inboundFromEvent accepts plain user messages in the bot's direct-message
// channel. Edits, bot messages and channel chatter are ignored.
func inboundFromEvent(event slackevents.EventsAPIEvent) (session.Inbound, bool) {
	if event.Type != slackevents.CallbackEvent {
		return session.Inbound{}, false
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || ev.ChannelType != "im" || ev.BotID != "" || ev.SubType != "" || ev.User == "" {
		return session.Inbound{}, false
	}
	return session.Inbound{
		UserID:    ev.User,
		ChatID:    ev.Channel,
		MessageID: ev.TimeStamp,
		Text:      ev.Text,
	}, true
}

// Reply answers slash commands ephemerally and direct messages in the
// conversation they came from.
func (b *Bot) Reply(ctx context.Context, to session.Inbound, text string, format report.Format) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range report.Split(text, messageLimit) {
		opt := slack.MsgOptionText(chunk, format == report.FormatPlain)
		var err error
		if to.MessageID == "" {
			_, err = b.api.PostEphemeralContext(ctx, to.ChatID, to.UserID, opt)
		} else {
			_, _, err = b.api.PostMessageContext(ctx, to.ChatID, opt)
		}
		if err != nil {
			return fmt.Errorf("slack post: %w", err)
		}
	}
	return nil
}

// Delete cannot remove a user's direct message: bot tokens get
// cant_delete_message from chat.delete. Slash commands are never posted to
// the channel, so there is nothing to delete for them.
func (b *Bot) Delete(ctx context.Context, msg session.Inbound) error {
	if msg.MessageID == "" {
		return nil
	}
	return fmt.Errorf("slack delete channel=%s ts=%s: %w", msg.ChatID, msg.MessageID, domain.ErrDeleteUnsupported)
}

// Notify sends text to the user's direct-message channel.
func (b *Bot) Notify(ctx context.Context, userID, text string, format report.Format) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	channel, _, _, err := b.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return fmt.Errorf("slack open conversation user=%s: %w", userID, err)
	}
	for _, chunk := range report.Split(text, messageLimit) {
		if _, _, err := b.api.PostMessageContext(ctx, channel.ID, slack.MsgOptionText(chunk, format == report.FormatPlain)); err != nil {
			return fmt.Errorf("slack post: %w", err)
		}
	}
	return nil
}

// ResolveUserIDs maps configured digest recipients, given as Slack IDs or
// user names, to IDs. Names that match nobody are returned separately.
func (b *Bot) ResolveUserIDs(identifiers []string) ([]string, []string, error) {
	return b.users.resolve(identifiers)
}
