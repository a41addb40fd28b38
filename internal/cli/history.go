package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var now = time.Now

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <guild-id>",
		Short: "Show the most recent commands run in a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.FetchCommandHistory(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No commands recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tUSER\tCOMMAND\tARGS")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", humanize.RelTime(r.Datetime, now(), "ago", "from now"), r.Username, r.Command, r.Param)
			}
			return w.Flush()
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions <guild-id>",
		Short: "Show recent voice sessions in a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.FetchSessions(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOINED\tVOICE\tTEXT\tUSER")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", humanize.RelTime(s.JoinedAt, now(), "ago", "from now"), s.ChannelID, s.TextChannelID, s.UserID)
			}
			fmt.Fprintf(w, "\n%s sessions\n", humanize.Comma(int64(len(sessions))))
			return w.Flush()
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
