package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdash/internal/identity"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestMintToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, err := execute(t, "mint-token", "--uid", "alice")
	require.NoError(t, err)

	uid, err := identity.NewSigner("cli-secret").ParseCustom(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)
}

func TestMintToken_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "mint-token", "--uid", "alice")
	assert.EqualError(t, err, "JWT_SECRET is not set")
}

func TestWhoami_NotSignedIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")

	out, err := execute(t, "whoami", "--session-file", path, "--server", "http://127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestSignout_WithoutSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")

	out, err := execute(t, "signout", "--session-file", path, "--server", "http://127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")
}

func TestRootCmd_Flags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("server"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("session-file"))
	assert.NotNil(t, rootCmd.Flags().Lookup("token"))
	assert.Equal(t, "mint-token", mintTokenCmd.Use)
}
