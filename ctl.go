package main

import (
	"github.com/spf13/cobra"
	"wardmon.dev/wardmon"
	"wardmon.dev/wardmon/ctl"
)

func newCtlCmd() *cobra.Command {
	var places wardmon.Places

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Write control files for a running supervisor",
	}

	cmd.PersistentFlags().StringVar(&places.Config, "config", "", "config directory")
	cmd.PersistentFlags().StringVar(&places.Messages, "messages", "", "messages directory")
	cmd.MarkPersistentFlagRequired("config")
	cmd.MarkPersistentFlagRequired("messages")

	cmd.AddCommand(newCtlAddCmd(&places))
	cmd.AddCommand(newCtlRemoveCmd(&places))
	cmd.AddCommand(newCtlRestartCmd(&places))
	cmd.AddCommand(newCtlRestartAllCmd(&places))

	return cmd
}

func newCtlAddCmd(places *wardmon.Places) *cobra.Command {
	var (
		cmdPath string
		args    []string
		env     []string
		uid     int
		gid     int
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or replace a monitored process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			c := ctl.Command{
				Places: *places,
				Op:     ctl.OpAdd,
				Name:   argv[0],
				Cmd:    cmdPath,
				Args:   args,
				Env:    env,
			}

			if cmd.Flags().Changed("uid") {
				c.UID = &uid
			}
			if cmd.Flags().Changed("gid") {
				c.GID = &gid
			}

			return ctl.Call(c)
		},
	}

	cmd.Flags().StringVar(&cmdPath, "cmd", "", "command to run")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "argument to the command; repeatable")
	cmd.Flags().StringArrayVar(&env, "env", nil, "KEY=VALUE environment override; repeatable")
	cmd.Flags().IntVar(&uid, "uid", 0, "uid to run the process as")
	cmd.Flags().IntVar(&gid, "gid", 0, "gid to run the process as")
	cmd.MarkFlagRequired("cmd")

	return cmd
}

func newCtlRemoveCmd(places *wardmon.Places) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Stop monitoring a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctl.Call(ctl.Command{
				Places: *places,
				Op:     ctl.OpRemove,
				Name:   argv[0],
			})
		},
	}
}

func newCtlRestartCmd(places *wardmon.Places) *cobra.Command {
	return &cobra.Command{
		Use:   "restart NAME",
		Short: "Restart one monitored process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctl.Call(ctl.Command{
				Places: *places,
				Op:     ctl.OpRestart,
				Name:   argv[0],
			})
		},
	}
}

func newCtlRestartAllCmd(places *wardmon.Places) *cobra.Command {
	return &cobra.Command{
		Use:   "restart-all",
		Short: "Restart every monitored process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return ctl.Call(ctl.Command{
				Places: *places,
				Op:     ctl.OpRestartAll,
			})
		},
	}
}
