package gitstate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Site Bot", "GIT_AUTHOR_EMAIL=bot@example.com",
		"GIT_COMMITTER_NAME=Site Bot", "GIT_COMMITTER_EMAIL=bot@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestCapture(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>"), 0o600))
	runGit(t, dir, "add", "index.html")
	runGit(t, dir, "-c", "commit.gpgsign=false", "commit", "-q", "-m", "initial site")

	info, err := NewRepo(dir, 5*time.Second).Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", info.Branch)
	assert.Len(t, info.Commit, 40)
	assert.NotEmpty(t, info.ShortCommit)
	assert.Equal(t, "initial site", info.Message)
	assert.Equal(t, "Site Bot <bot@example.com>", info.Author)
	assert.False(t, info.Dirty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "about.html"), []byte("<html>"), 0o600))
	info, err = NewRepo(dir, 5*time.Second).Capture(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Dirty)
}

func TestCaptureOutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(t.TempDir()))
	_, err := NewRepo(t.TempDir(), time.Second).Capture(context.Background())
	assert.Error(t, err)
}

func TestCaptureMissingBinary(t *testing.T) {
	r := &Repo{Dir: t.TempDir(), Binary: "git-does-not-exist"}
	_, err := r.Capture(context.Background())
	assert.Error(t, err)
}
