package cli

import (
	"github.com/spf13/cobra"
)

// GetResult is the output of get.
type GetResult struct {
	Key     string  `json:"key"`
	Present bool    `json:"present"`
	Value   *string `json:"value,omitempty"`
}

func (r GetResult) String() string {
	if !r.Present {
		return "(absent)"
	}
	return *r.Value
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Decrypt and print a value",
		Long: `Print the decrypted value stored under key, or "(absent)" if there is none.

Example:
  cryptovault get token
  cryptovault get token --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runGet(opts *RootOptions, key string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	value, ok, err := s.vault.Get(cmd.Context(), key)
	if err != nil {
		return s.fail("get failed", err)
	}

	res := GetResult{Key: key, Present: ok}
	if ok {
		res.Value = &value
	}
	return s.out.Success(res)
}
