package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cryptovault/config"
	"github.com/roach88/cryptovault/docstore"
	"github.com/roach88/cryptovault/keystore"
	"github.com/roach88/cryptovault/vault"
)

// testVault is a vault configuration private to one test. The anchor vault
// holds the process-wide handles open between command invocations, so an
// in-memory key and document survive from one command to the next.
type testVault struct {
	configPath string
	anchor     *vault.Vault
}

func newTestVault(t *testing.T, storeBackend string) *testVault {
	t.Helper()
	dir := t.TempDir()
	name := "cli-" + strings.NewReplacer("/", "-", " ", "-").Replace(t.Name())

	yaml := fmt.Sprintf(`keystore:
  backend: memory
  service: %s
store:
  backend: %s
  path: %s
  document: %s
`, name, storeBackend, filepath.Join(dir, "vault.db"), name)

	path := filepath.Join(dir, "cryptovault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	anchor, err := vault.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { anchor.Close() })

	return &testVault{configPath: path, anchor: anchor}
}

// run executes the CLI with the test config and returns stdout and stderr.
func (tv *testVault) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", tv.configPath}, args...))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestPutGetDelete_Text(t *testing.T) {
	tv := newTestVault(t, "memory")

	out, _, err := tv.run(t, "", "put", "token", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "stored \"token\"\n", out)

	out, _, err = tv.run(t, "", "get", "token")
	require.NoError(t, err)
	assert.Equal(t, "abc123\n", out)

	out, _, err = tv.run(t, "", "delete", "token")
	require.NoError(t, err)
	assert.Equal(t, "deleted \"token\"\n", out)

	out, _, err = tv.run(t, "", "get", "token")
	require.NoError(t, err)
	assert.Equal(t, "(absent)\n", out)

	// Deleting again is not an error.
	_, _, err = tv.run(t, "", "rm", "token")
	require.NoError(t, err)
}

func TestPut_Stdin(t *testing.T) {
	tv := newTestVault(t, "memory")

	_, _, err := tv.run(t, "s3cret value\n", "put", "token", "--stdin")
	require.NoError(t, err)

	got, ok, err := tv.anchor.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s3cret value", got)
}

func TestPut_ArgCount(t *testing.T) {
	tv := newTestVault(t, "memory")

	_, _, err := tv.run(t, "", "put", "token")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = tv.run(t, "", "put", "token", "value", "--stdin")
	require.Error(t, err)
}

func TestGet_JSON(t *testing.T) {
	tv := newTestVault(t, "memory")
	g := newGoldie(t)

	out, _, err := tv.run(t, "", "get", "token", "--format", "json")
	require.NoError(t, err)
	g.Assert(t, "get_absent", []byte(out))

	require.NoError(t, tv.anchor.Put(context.Background(), "token", "abc123"))

	out, _, err = tv.run(t, "", "get", "token", "--format", "json")
	require.NoError(t, err)
	g.Assert(t, "get_present", []byte(out))
}

func TestKeys_JSON(t *testing.T) {
	tv := newTestVault(t, "memory")
	ctx := context.Background()

	out, _, err := tv.run(t, "", "keys")
	require.NoError(t, err)
	assert.Equal(t, "(empty)\n", out)

	require.NoError(t, tv.anchor.Put(ctx, "token", "abc123"))
	require.NoError(t, tv.anchor.Put(ctx, "alpha", ""))

	out, _, err = tv.run(t, "", "keys", "--format", "json")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "keys", []byte(out))
}

func TestGet_DecryptionFailure(t *testing.T) {
	tv := newTestVault(t, "sqlite")
	ctx := context.Background()

	cfg, err := config.Load(tv.configPath)
	require.NoError(t, err)
	store, err := docstore.OpenSQLite(cfg.Store.Path, docstore.WithDocumentName(cfg.Store.Document))
	require.NoError(t, err)
	_, err = store.AtomicUpdate(ctx, func(cur docstore.Entries) (docstore.Entries, error) {
		return cur.With("token", "not-a-valid-encrypted-string"), nil
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, _, err := tv.run(t, "", "get", "token", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	newGoldie(t).Assert(t, "get_decrypt_error", []byte(out))

	_, errOut, err := tv.run(t, "", "get", "token")
	require.Error(t, err)
	assert.Contains(t, errOut, "Error [E_DECRYPT]")
}

func TestKeystoreUnavailable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("wincred is available on windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "cryptovault.toml")
	toml := fmt.Sprintf("[keystore]\nbackend = \"wincred\"\n\n[store]\nbackend = \"sqlite\"\npath = %q\n", filepath.Join(dir, "vault.db"))
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o600))

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "--format", "json", "put", "token", "abc123"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), `"code":"E_KEYSTORE"`)
}

func TestConfigErrors(t *testing.T) {
	cmd := NewRootCommand()
	errOut := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "keys"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut.String(), "Error [E_CONFIG]")
}

func TestEnvFile(t *testing.T) {
	tv := newTestVault(t, "memory")

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CRYPTOVAULT_LOG_FORMAT=json\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CRYPTOVAULT_LOG_FORMAT") })

	_, errOut, err := tv.run(t, "", "--env-file", envPath, "--verbose", "keys")
	require.NoError(t, err)
	assert.Contains(t, errOut, `"msg":"config loaded"`)

	_, _, err = tv.run(t, "", "--env-file", filepath.Join(t.TempDir(), "absent.env"), "keys")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// syncBuffer is a bytes.Buffer safe for one writer and one polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_Count(t *testing.T) {
	tv := newTestVault(t, "memory")

	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", tv.configPath, "--format", "json", "watch", "token", "--count", "2"})

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, tv.anchor.Put(context.Background(), "token", "abc123"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after --count values")
	}
	newGoldie(t).Assert(t, "watch_json", []byte(out.String()))
}

func TestWatch_SeesOtherProcesses(t *testing.T) {
	dir := t.TempDir()
	keys := filepath.Join(dir, "keys")
	db := filepath.Join(dir, "vault.db")

	// No poll_interval: the default must pick up foreign commits.
	yaml := fmt.Sprintf(`keystore:
  backend: file
  file_dir: %s
  password: correct horse
store:
  backend: sqlite
  path: %s
`, keys, db)
	configPath := filepath.Join(dir, "cryptovault.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))

	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", configPath, "watch", "token", "--count", "2"})

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 1
	}, 5*time.Second, 10*time.Millisecond)

	// A writer with its own key ring and database connection stands in for
	// `cryptovault put` run from another shell.
	ring, err := keystore.OpenKeyring(keystore.KeyringConfig{
		Backend:     "file",
		ServiceName: "cryptovault",
		FileDir:     keys,
		Password:    "correct horse",
	})
	require.NoError(t, err)
	store, err := docstore.OpenSQLite(db)
	require.NoError(t, err)
	writer := vault.New(keystore.NewProvider(ring, keystore.DefaultAlias), store)
	defer writer.Close()
	require.NoError(t, writer.Put(context.Background(), "token", "abc123"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch never saw the other writer")
	}
	assert.Equal(t, "v0\t(absent)\nv1\tabc123\n", out.String())
}

func TestWatch_Text(t *testing.T) {
	tv := newTestVault(t, "memory")
	require.NoError(t, tv.anchor.Put(context.Background(), "token", "abc123"))

	out, _, err := tv.run(t, "", "watch", "token", "--count", "1")
	require.NoError(t, err)
	assert.Equal(t, "v1\tabc123\n", out)
}

func TestWatch_NegativeCount(t *testing.T) {
	tv := newTestVault(t, "memory")

	_, _, err := tv.run(t, "", "watch", "token", "--count", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
