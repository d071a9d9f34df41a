// Package gitstate captures the source-control state of the site checkout so a
// backup can record which commit was live.
package gitstate

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rowjay/sitebak/internal/util"
)

// Info is a best-effort snapshot; fields the repository cannot answer stay empty.
type Info struct {
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	ShortCommit string `json:"shortCommit,omitempty"`
	Message     string `json:"message,omitempty"`
	Author      string `json:"author,omitempty"`
	Date        string `json:"date,omitempty"`
	Dirty       bool   `json:"dirty"`
}

// Source returns the current git state.
type Source interface {
	Capture(ctx context.Context) (*Info, error)
}

// Repo reads state by running the git binary inside Dir.
type Repo struct {
	Dir     string
	Timeout time.Duration
	Binary  string
}

func NewRepo(dir string, timeout time.Duration) *Repo {
	return &Repo{Dir: dir, Timeout: timeout, Binary: "git"}
}

func (r *Repo) Capture(ctx context.Context) (*Info, error) {
	if err := util.RequireBinary(r.Binary); err != nil {
		return nil, err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	commit, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	info := &Info{Commit: commit}
	// The remaining fields are optional; a detached HEAD or a shallow clone
	// may not answer all of them.
	info.Branch, _ = r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	info.ShortCommit, _ = r.git(ctx, "rev-parse", "--short", "HEAD")
	info.Message, _ = r.git(ctx, "log", "-1", "--pretty=%B")
	info.Author, _ = r.git(ctx, "log", "-1", "--pretty=%an <%ae>")
	info.Date, _ = r.git(ctx, "log", "-1", "--pretty=%cI")
	if status, err := r.git(ctx, "status", "--porcelain"); err == nil {
		info.Dirty = status != ""
	}
	return info, nil
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := util.Command(ctx, r.Dir, r.Binary, args, map[string]string{
		"GIT_TERMINAL_PROMPT": "0",
		"LC_ALL":              "C",
	})
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
