package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/cryptovault/vaulterr"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Count int
}

// WatchEvent is one line of watch output.
type WatchEvent struct {
	Key     string  `json:"key"`
	Version int64   `json:"version"`
	Present bool    `json:"present"`
	Value   *string `json:"value,omitempty"`
}

func (e WatchEvent) String() string {
	value := "(absent)"
	if e.Present {
		value = *e.Value
	}
	return fmt.Sprintf("v%d\t%s", e.Version, value)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <key>",
		Short: "Print a value every time the vault changes",
		Long: `Print the current value of key, then print it again after every change to
the vault, until interrupted or --count values have been printed.

With the sqlite store, changes made by other processes are picked up every
store.poll_interval (500ms by default).

Example:
  cryptovault watch token
  cryptovault watch token --count 2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", 0, "stop after this many values (0 = until interrupted)")

	return cmd
}

func runWatch(opts *WatchOptions, key string, cmd *cobra.Command) error {
	if opts.Count < 0 {
		return report(newFormatter(opts.RootOptions, cmd), ErrCodeInput, ExitCommandError,
			"invalid --count", fmt.Errorf("must not be negative, got %d", opts.Count))
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping watch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	printed := 0
	for r := range s.vault.Watch(ctx, key) {
		if r.Err != nil {
			if vaulterr.IsDecryptionFailed(r.Err) {
				_ = s.out.Error(ErrCodeDecrypt, fmt.Sprintf("v%d: %v", r.Version, r.Err), nil)
				continue
			}
			return s.fail("watch failed", r.Err)
		}

		ev := WatchEvent{Key: key, Version: r.Version, Present: r.Present}
		if r.Present {
			value := r.Value
			ev.Value = &value
		}
		if err := s.out.Success(ev); err != nil {
			return WrapExitError(ExitFailure, "write output", err)
		}

		printed++
		if opts.Count > 0 && printed >= opts.Count {
			return nil
		}
	}
	return nil
}
