package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aki/filemutex/internal/cli/ui"
	"github.com/aki/filemutex/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status <file>...",
	Short: "Show lock availability for one or more files",
	Long: `Probe the lock state of each file by attempting non-blocking
acquisitions. The probe is advisory: another process may take or
release the lock the moment after it ran.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tbl := ui.NewTable("RESOURCE", "LOCK FILE", "EXCLUSIVE", "SHARED")

	for _, path := range args {
		lockFile := path + cfg.Lock.Suffix

		// Without a lock file nobody can be holding anything; skip the
		// probe so status does not create lock files as a side effect.
		if _, err := os.Stat(lockFile); os.IsNotExist(err) {
			tbl.AddRow(path, ui.DimStyle.Render("absent"), availableCell(true), availableCell(true))
			continue
		} else if err != nil {
			return err
		}

		exclusiveFree, sharedFree, err := probe(cfg, path)
		if err != nil {
			return err
		}
		tbl.AddRow(path, lockFile, availableCell(exclusiveFree), availableCell(sharedFree))
	}

	tbl.Print()
	return nil
}

// probe reports whether exclusive and shared ownership of path could be
// acquired right now. Each successful probe acquisition is released
// immediately.
func probe(cfg *config.Config, path string) (exclusiveFree, sharedFree bool, err error) {
	mu, err := newMutex(cfg, path)
	if err != nil {
		return false, false, err
	}
	defer func() { _ = mu.Close() }()

	exclusiveFree, err = mu.TryLock()
	if err != nil {
		return false, false, err
	}
	if exclusiveFree {
		if err := mu.Unlock(); err != nil {
			return false, false, err
		}
	}

	sharedFree, err = mu.TryRLock()
	if err != nil {
		return false, false, err
	}
	if sharedFree {
		if err := mu.RUnlock(); err != nil {
			return false, false, err
		}
	}

	return exclusiveFree, sharedFree, nil
}

func availableCell(free bool) string {
	if free {
		return ui.UnlockIcon + " " + ui.SuccessStyle.Render("available")
	}
	return ui.LockIcon + " " + ui.WarningStyle.Render("held")
}
