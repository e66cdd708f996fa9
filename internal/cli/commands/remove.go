package commands

import (
	"github.com/spf13/cobra"

	"github.com/aki/filemutex"
	"github.com/aki/filemutex/internal/cli/ui"
)

var removeCmd = &cobra.Command{
	Use:     "remove <file>...",
	Aliases: []string{"rm"},
	Short:   "Delete the lock files for one or more resources",
	Long: `Delete the lock file derived from each resource path. Make sure no
process still coordinates on a lock file before removing it; deleting a
lock file out from under live holders splits the exclusion domain.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	for _, path := range args {
		removed, err := filemutex.Remove(path, cfg.Lock.Suffix)
		if err != nil {
			return err
		}
		if removed {
			ui.Success("Removed %s%s", path, cfg.Lock.Suffix)
		} else {
			ui.Info("No lock file for %s", path)
		}
	}

	return nil
}
