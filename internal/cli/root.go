package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/keshon/fadebot/internal/storage"
	"github.com/spf13/cobra"
)

var (
	storagePath string
	jsonOut     bool
)

// NewRootCmd builds the command tree. Output goes to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "fadebot-cli",
		Short:        "Inspect fadebot's stored history",
		Long:         `fadebot-cli reads the bot's datastore and prints recent commands and voice sessions per guild.`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	def := os.Getenv("STORAGE_PATH")
	if def == "" {
		def = "datastore.json"
	}
	root.PersistentFlags().StringVarP(&storagePath, "storage", "s", def, "datastore file")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")

	root.AddCommand(newHistoryCmd(), newSessionsCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// openStorage opens the datastore without ever writing to it, so the
// CLI can run next to the bot.
func openStorage(ctx context.Context) (*storage.Storage, error) {
	if _, err := os.Stat(storagePath); err != nil {
		return nil, fmt.Errorf("datastore %s: %w", storagePath, err)
	}
	return storage.OpenReadOnly(ctx, storagePath)
}
