package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// KeysResult is the output of keys.
type KeysResult struct {
	Keys []string `json:"keys"`
}

func (r KeysResult) String() string {
	if len(r.Keys) == 0 {
		return "(empty)"
	}
	return strings.Join(r.Keys, "\n")
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Long: `List the keys present in the vault, sorted. Values are not decrypted.

Example:
  cryptovault keys --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(rootOpts, cmd)
		},
	}

	return cmd
}

func runKeys(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	keys, err := s.vault.Keys(cmd.Context())
	if err != nil {
		return s.fail("keys failed", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return s.out.Success(KeysResult{Keys: keys})
}
