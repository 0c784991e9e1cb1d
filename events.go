package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"wardmon.dev/wardmon/journal"
)

func newEventsCmd() *cobra.Command {
	var (
		path string
		n    int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the latest journal events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				dir, err := os.UserConfigDir()
				if err != nil {
					return errors.Wrap(err, "no --journal and no user config directory")
				}
				path = filepath.Join(dir, "wardmon", "journal.json")
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			r := journal.NewReader(f)

			for i := 0; n <= 0 || i < n; i++ {
				ev, t, err := r.Read()
				if err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}

				data, err := json.Marshal(ev)
				if err != nil {
					return err
				}

				fmt.Printf("%s %s %s\n", t.Format(time.RFC3339), ev.Type(), data)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&path, "journal", "", "journal file path")
	cmd.Flags().IntVarP(&n, "count", "n", 20, "number of events to print, 0 for all")

	return cmd
}
