package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"worklogbot/internal/config"
)

// Execute runs the CLI. SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// timeNow is replaced in tests.
var timeNow = time.Now

type options struct {
	configPath string
}

func (o *options) load(requireBot bool) (config.Config, error) {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path, requireBot)
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "worklogbot",
		Short:         "Chat bot for Jira work-log reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_PATH or ./config.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newWindowCmd(opts),
		newWorklogCmd(opts),
	)
	return root
}
