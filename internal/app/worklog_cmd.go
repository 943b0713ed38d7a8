package app

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"worklogbot/internal/domain"
	"worklogbot/internal/fetch"
	"worklogbot/internal/httpx"
	"worklogbot/internal/report"
)

func newWorklogCmd(opts *options) *cobra.Command {
	var (
		days   int
		format string
	)
	cmd := &cobra.Command{
		Use:   "worklog",
		Short: "Fetch and print a work-log report using $JIRA_TOKEN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(false)
			if err != nil {
				return err
			}
			if cfg.JiraURL == "" {
				return fmt.Errorf("%w: jira_url is not set", domain.ErrConfiguration)
			}
			token := strings.TrimSpace(os.Getenv("JIRA_TOKEN"))
			if token == "" {
				return errors.New("JIRA_TOKEN is not set")
			}

			prompt := strings.EqualFold(format, "prompt")
			var f report.Format
			if !prompt {
				if f, err = report.ParseFormat(format); err != nil {
					return err
				}
			}

			tracker, err := newTrackerFactory(cfg.JiraURL, httpx.NewExternalClient(cfg.ExternalHTTPTimeout()))(token)
			if err != nil {
				return err
			}
			if days < 0 {
				days = cfg.WindowPolicy().DaysBack(timeNow().In(cfg.Location))
			}
			aggregator := fetch.NewAggregator(cfg.WorklogMaxIssues, cfg.Location)
			aggregator.Now = timeNow
			rep, err := aggregator.Aggregate(cmd.Context(), days, tracker)
			if err != nil {
				return err
			}
			log.Printf("worklog cli days=%d issues=%d entries=%d truncated=%t", days, rep.Len(), rep.EntryCount(), rep.Truncated)

			renderer := report.Renderer{BaseURL: cfg.JiraURL, EmptyText: cfg.ReportEmptyText, Location: cfg.Location}
			out := cmd.OutOrStdout()
			if prompt {
				fmt.Fprint(out, renderer.Prompt(rep))
				return nil
			}
			fmt.Fprintln(out, renderer.Human(rep, f))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", -1, "days to look back (default: configured window)")
	cmd.Flags().StringVar(&format, "format", "plain", "plain, markdownv2, slack or prompt")
	return cmd
}
