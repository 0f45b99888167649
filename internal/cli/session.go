package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/cryptovault/config"
	"github.com/roach88/cryptovault/vault"
	"github.com/roach88/cryptovault/vaulterr"
)

// Error codes reported in CLI output.
const (
	ErrCodeConfig   = "E_CONFIG"   // Configuration could not be loaded or is invalid
	ErrCodeInput    = "E_INPUT"    // Value could not be read
	ErrCodeKeystore = "E_KEYSTORE" // Key store unavailable
	ErrCodeDecrypt  = "E_DECRYPT"  // Stored value could not be decrypted
	ErrCodeEncrypt  = "E_ENCRYPT"  // Value could not be encrypted
	ErrCodeStore    = "E_STORE"    // Document store commit failed
	ErrCodeInternal = "E_INTERNAL" // Anything else
)

// session is one command's view of the vault.
type session struct {
	vault *vault.Vault
	out   *OutputFormatter
	log   *slog.Logger
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openSession loads configuration, configures logging and opens the vault.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, report(out, ErrCodeConfig, ExitCommandError, "failed to load config", err)
	}

	log := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(log)
	log.Debug("config loaded",
		"keystore", cfg.Keystore.Backend,
		"store", cfg.Store.Backend,
		"path", cfg.Store.Path,
	)

	v, err := vault.Open(cfg, vault.WithLogger(log))
	if err != nil {
		return nil, report(out, ErrCodeConfig, ExitCommandError, "failed to open vault", err)
	}
	return &session{vault: v, out: out, log: log}, nil
}

func (s *session) close() {
	if err := s.vault.Close(); err != nil {
		s.log.Error("error closing vault", "error", err)
	}
}

// fail reports a vault operation error and returns it as an ExitError.
func (s *session) fail(message string, err error) error {
	return report(s.out, errorCode(err), ExitFailure, message, err)
}

// newLogger builds the CLI logger. --verbose forces debug level.
func newLogger(cfg config.Config, verbose bool, w io.Writer) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	return slog.New(handler)
}

// errorCode maps a vault error to its CLI error code.
func errorCode(err error) string {
	switch vaulterr.KindOf(err) {
	case vaulterr.KindKeyStoreUnavailable:
		return ErrCodeKeystore
	case vaulterr.KindDecryptionFailed:
		return ErrCodeDecrypt
	case vaulterr.KindEncryptionFailed:
		return ErrCodeEncrypt
	case vaulterr.KindStoreTransactionFailed:
		return ErrCodeStore
	}
	if errors.Is(err, vault.ErrClosed) {
		return ErrCodeStore
	}
	return ErrCodeInternal
}

// report writes err through out and returns it as a reported ExitError.
func report(out *OutputFormatter, code string, exitCode int, message string, err error) error {
	_ = out.Error(code, message+": "+err.Error(), nil)
	e := WrapExitError(exitCode, message, err)
	e.Reported = true
	return e
}
