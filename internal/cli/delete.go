package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteResult is the output of delete.
type DeleteResult struct {
	Key string `json:"key"`
}

func (r DeleteResult) String() string { return fmt.Sprintf("deleted %q", r.Key) }

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"rm"},
		Short:   "Remove a value",
		Long: `Remove the value stored under key. Removing an absent key succeeds.

Example:
  cryptovault delete token`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runDelete(opts *RootOptions, key string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.vault.Delete(cmd.Context(), key); err != nil {
		return s.fail("delete failed", err)
	}
	return s.out.Success(DeleteResult{Key: key})
}
