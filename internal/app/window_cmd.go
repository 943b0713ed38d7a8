package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"worklogbot/internal/domain"
)

func newWindowCmd(opts *options) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Print the work-log window resolved for a moment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(false)
			if err != nil {
				return err
			}
			now := timeNow()
			if at != "" {
				now, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
			}
			now = now.In(cfg.Location)
			days := cfg.WindowPolicy().DaysBack(now)
			start := domain.WindowStart(now, days, cfg.Location)
			fmt.Fprintf(cmd.OutOrStdout(), "now=%s mode=%s days_back=%d window_start=%s\n",
				now.Format("Mon 2006-01-02 15:04"), cfg.WorklogWindowMode, days, start.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "moment to resolve, RFC3339 (default now)")
	return cmd
}
