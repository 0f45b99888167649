package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Stdin bool
}

// PutResult is the output of put.
type PutResult struct {
	Key string `json:"key"`
}

func (r PutResult) String() string { return fmt.Sprintf("stored %q", r.Key) }

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <key> [value]",
		Short: "Encrypt and store a value",
		Long: `Encrypt a value and store it under key, replacing any previous value.

With --stdin the value is read from standard input; one trailing newline
is removed.

The file store does not coordinate concurrent writers: with store.backend
set to file, run one writing process at a time or use sqlite.

Example:
  cryptovault put token abc123
  printf 'abc123' | cryptovault put token --stdin`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.Stdin {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Stdin, "stdin", false, "read the value from standard input")

	return cmd
}

func runPut(opts *PutOptions, args []string, cmd *cobra.Command) error {
	key := args[0]

	var value string
	if opts.Stdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return report(newFormatter(opts.RootOptions, cmd), ErrCodeInput, ExitCommandError, "failed to read stdin", err)
		}
		value = strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
	} else {
		value = args[1]
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.vault.Put(cmd.Context(), key, value); err != nil {
		return s.fail("put failed", err)
	}
	s.out.VerboseLog("stored %d byte(s) under %q", len(value), key)
	return s.out.Success(PutResult{Key: key})
}
