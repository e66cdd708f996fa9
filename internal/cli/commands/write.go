package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aki/filemutex/internal/cli/ui"
)

var (
	flagWriteCount    int
	flagWriteInterval time.Duration
)

var writeCmd = &cobra.Command{
	Use:   "write <file> <tag>",
	Short: "Append tagged lines to a file while holding its lock",
	Long: `Acquire the exclusive lock for <file>, append <tag> to it a number
of times with a pause between writes, then release the lock.

Run it from two terminals against the same file to watch the second
writer wait for the first to finish.`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().IntVarP(&flagWriteCount, "count", "n", 10, "Number of lines to append")
	writeCmd.Flags().DurationVarP(&flagWriteInterval, "interval", "i", time.Second, "Pause between writes")
}

func runWrite(cmd *cobra.Command, args []string) error {
	path, tag := args[0], args[1]

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

	log.Debug("acquiring exclusive lock", "lockFile", mu.Path())
	locked, err := acquire(mu, false, time.Duration(cfg.Lock.Timeout))
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		ui.Warning("Timed out waiting for %s", mu.Path())
		return fmt.Errorf("timed out acquiring lock for %s", path)
	}
	log.Info("acquired exclusive lock", "lockFile", mu.Path())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		_ = mu.Unlock()
		return fmt.Errorf("failed to open file: %w", err)
	}

	for i := 0; i < flagWriteCount; i++ {
		ui.OutputLine("Writing %d %s", i, tag)
		if _, err := fmt.Fprintln(f, tag); err != nil {
			_ = f.Close()
			_ = mu.Unlock()
			return fmt.Errorf("failed to write: %w", err)
		}
		if flagWriteInterval > 0 {
			time.Sleep(flagWriteInterval)
		}
	}

	if err := f.Close(); err != nil {
		_ = mu.Unlock()
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := mu.Unlock(); err != nil {
		return err
	}
	log.Info("released lock", "lockFile", mu.Path())

	ui.Success("Appended %d lines to %s", flagWriteCount, path)
	return nil
}
