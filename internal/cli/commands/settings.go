package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aki/filemutex"
	"github.com/aki/filemutex/internal/config"
)

// loadConfig resolves the effective lock settings: the config file
// (explicit --config path or the user's default location) overridden by
// any flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("suffix") {
		cfg.Lock.Suffix = flagSuffix
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Lock.Timeout = config.Duration(flagTimeout)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = flagLogFormat
	}

	return cfg, nil
}

// newMutex constructs a FileMutex for path using the effective settings
func newMutex(cfg *config.Config, path string) (*filemutex.FileMutex, error) {
	mu, err := filemutex.New(path,
		filemutex.WithSuffix(cfg.Lock.Suffix),
		filemutex.WithRetryInterval(time.Duration(cfg.Lock.RetryInterval)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open file mutex for %s: %w", path, err)
	}
	return mu, nil
}

// acquire obtains ownership of mu, exclusive or shared, honoring the
// configured timeout. It returns false when the timeout expired before
// the lock came free.
func acquire(mu *filemutex.FileMutex, shared bool, timeout time.Duration) (bool, error) {
	if timeout > 0 {
		deadline := time.Now().Add(timeout)
		if shared {
			return mu.TryRLockUntil(deadline)
		}
		return mu.TryLockUntil(deadline)
	}

	if shared {
		return true, mu.RLock()
	}
	return true, mu.Lock()
}

// release undoes acquire
func release(mu *filemutex.FileMutex, shared bool) error {
	if shared {
		return mu.RUnlock()
	}
	return mu.Unlock()
}
