package app

import (
	"context"
	"log"
	"net/http"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"worklogbot/internal/config"
	"worklogbot/internal/digest"
	"worklogbot/internal/fetch"
	"worklogbot/internal/httpx"
	"worklogbot/internal/integrations/jira"
	"worklogbot/internal/integrations/llm"
	slackbot "worklogbot/internal/integrations/slack"
	"worklogbot/internal/integrations/telegram"
	"worklogbot/internal/report"
	"worklogbot/internal/session"
	"worklogbot/internal/storage/sqlite"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// transport is a chat surface the controller can run on.
type transport interface {
	session.Messenger
	Run(ctx context.Context, h session.Handler) error
}

func runServe(ctx context.Context, opts *options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := opts.load(true)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf(
		"Config loaded. Transport=%s Jira=%s Timezone=%s WindowMode=%s Cutoff=%s FixedDays=%d MaxIssues=%d LLMProvider=%s LLMModel=%s StateBackend=%s ExternalHTTPTimeout=%s LLMTimeout=%s",
		cfg.Transport,
		cfg.JiraURL,
		cfg.Location,
		cfg.WorklogWindowMode,
		cfg.WorklogCutoffTime,
		cfg.WorklogFixedDays,
		cfg.WorklogMaxIssues,
		cfg.LLMProvider,
		cfg.DefaultLLMModel(),
		cfg.StateBackend,
		cfg.ExternalHTTPTimeout(),
		cfg.LLMTimeout(),
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	httpClient := httpx.NewExternalClient(cfg.ExternalHTTPTimeout())

	var states session.StateStore
	switch cfg.StateBackend {
	case config.StateBackendMemory:
		states = session.NewMemoryStore(cfg.StateTTL())
	default:
		states = sqlite.NewStateStore(db, cfg.StateTTL())
	}
	creds := sqlite.NewCredentialStore(db)

	summarizer, err := newSummarizer(cfg)
	if err != nil {
		log.Fatalf("Failed to init language model: %v", err)
	}

	bot, err := newTransport(cfg, httpClient)
	if err != nil {
		log.Fatalf("Failed to init %s transport: %v", cfg.Transport, err)
	}

	trackers := newTrackerFactory(cfg.JiraURL, httpClient)
	aggregator := fetch.NewAggregator(cfg.WorklogMaxIssues, cfg.Location)
	renderer := report.Renderer{BaseURL: cfg.JiraURL, EmptyText: cfg.ReportEmptyText, Location: cfg.Location}

	ctrl := &session.Controller{
		Credentials: creds,
		States:      states,
		Trackers:    trackers,
		Messenger:   bot,
		Aggregator:  aggregator,
		Renderer:    renderer,
		Policy:      cfg.WindowPolicy(),
		Summarizer:  summarizer,
		Location:    cfg.Location,
	}

	if cfg.DigestSchedule != "" {
		d := &digest.Digest{
			Credentials: creds,
			Trackers:    trackers,
			Aggregator:  aggregator,
			Renderer:    renderer,
			Notifier:    bot,
			Policy:      cfg.WindowPolicy(),
			Location:    cfg.Location,
		}
		if cfg.DigestSummarize {
			d.Summarizer = summarizer
		}
		userIDs := digestRecipients(cfg, bot)
		digestDone := make(chan struct{})
		defer func() { <-digestDone }()
		defer cancel()
		go func() {
			defer close(digestDone)
			if err := d.Run(ctx, cfg.DigestSchedule, userIDs); err != nil {
				log.Printf("Digest disabled: %v", err)
			}
		}()
	} else {
		log.Println("Digest disabled (digest_schedule not set)")
	}

	log.Println("Starting Jira work-log bot...")
	if err := bot.Run(ctx, ctrl); err != nil {
		log.Fatalf("%s bot error: %v", cfg.Transport, err)
	}
	log.Println("Bot stopped")
	return nil
}

func newTransport(cfg config.Config, httpClient *http.Client) (transport, error) {
	if cfg.Transport == config.TransportSlack {
		api := slack.New(
			cfg.SlackBotToken,
			slack.OptionAppLevelToken(cfg.SlackAppToken),
			slack.OptionHTTPClient(httpClient),
		)
		return slackbot.New(api), nil
	}
	return telegram.New(cfg.TelegramBotToken, httpClient)
}

func newTrackerFactory(baseURL string, httpClient *http.Client) session.TrackerFactory {
	return func(token string) (session.Tracker, error) {
		client, err := jira.NewClient(baseURL, token, httpClient)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func newSummarizer(cfg config.Config) (*llm.Summarizer, error) {
	systemPrompt := llm.LoadSystemPrompt(cfg.LLMSystemPromptPath)
	provider, err := llm.NewProvider(cfg, systemPrompt, httpx.NewExternalClient(cfg.LLMTimeout()))
	if err != nil {
		return nil, err
	}
	return &llm.Summarizer{Provider: provider, Model: cfg.DefaultLLMModel(), Timeout: cfg.LLMTimeout()}, nil
}

// digestRecipients returns the configured digest users. On Slack, names are
// resolved to user IDs.
func digestRecipients(cfg config.Config, bot transport) []string {
	sb, ok := bot.(*slackbot.Bot)
	if !ok {
		return cfg.DigestUserIDs
	}
	ids, unresolved, err := sb.ResolveUserIDs(cfg.DigestUserIDs)
	if err != nil {
		log.Printf("digest recipients: resolve error: %v", err)
	}
	if len(unresolved) > 0 {
		log.Printf("digest recipients: unresolved=%v", unresolved)
	}
	return ids
}
