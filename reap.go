package main

import (
	"os"

	"github.com/spf13/cobra"
	"wardmon.dev/wardmon/reaper"
)

func newReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap -- command [args...]",
		Short: "Run a command as a reaping init process",
		Long: "Reap runs a single command while adopting and reaping any orphaned\n" +
			"descendants, the way PID 1 would. On SIGTERM, SIGINT or SIGALRM the\n" +
			"command is asked to exit and killed if it takes too long.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := reaper.NewReactor(append([]string{os.Args[0]}, args...))
			return reaper.Run(r)
		},
	}
}
