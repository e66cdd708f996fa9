package commands

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
)

var flagRunShared bool

var runCmd = &cobra.Command{
	Use:   "run <file> -- <command> [args...]",
	Short: "Run a command while holding a file's lock",
	Long: `Acquire the lock for <file>, run the given command, and release the
lock when the command exits. By default the lock is exclusive; pass
--shared to hold shared ownership instead, which lets other shared
holders run concurrently while still excluding exclusive holders.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&flagRunShared, "shared", false, "Hold shared ownership instead of exclusive")
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := CreateLogger(cfg).With("resource", path)

	mu, err := newMutex(cfg, path)
	if err != nil {
		return err
	}
	defer func() { _ = mu.Close() }()

	locked, err := acquire(mu, flagRunShared, time.Duration(cfg.Lock.Timeout))
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out acquiring lock for %s", path)
	}
	log.Info("acquired lock", "lockFile", mu.Path(), "shared", flagRunShared)

	child := exec.CommandContext(cmd.Context(), args[1], args[2:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	runErr := child.Run()

	if err := release(mu, flagRunShared); err != nil {
		if runErr != nil {
			return fmt.Errorf("%w (additionally failed to release lock: %v)", runErr, err)
		}
		return err
	}
	log.Info("released lock", "lockFile", mu.Path())

	return runErr
}
