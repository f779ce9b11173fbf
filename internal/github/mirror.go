package github

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// MirrorResult is the outcome of a mirror: the head SHA of the resolved
// branch and the branch name actually used (which may differ from the hint
// when the source's git-level default disagrees with what its host reports).
type MirrorResult struct {
	BranchSHA  string
	BranchName string
}

// Mirror clones source as a bare mirror into an ephemeral workspace, resolves
// the hinted branch (falling back to the first branch ref found), repoints
// the push remote at destination and pushes all refs. The workspace is
// removed on every exit path. All refs are copied, not a shallow
// single-branch copy, so tags and extra branches a template relies on
// survive.
func Mirror(ctx context.Context, sourceURL, branchHint, destinationURL string) (MirrorResult, error) {
	tempDir, err := os.MkdirTemp("", "gauntlet-seed-")
	if err != nil {
		return MirrorResult{}, err
	}
	defer os.RemoveAll(tempDir)

	repoDir := filepath.Join(tempDir, "repo.git")

	if _, err := runGit(ctx, "", "clone", "--mirror", sourceURL, repoDir); err != nil {
		return MirrorResult{}, err
	}

	branch := branchHint
	sha, err := resolveBranch(ctx, repoDir, branch)
	if err != nil {
		// The hinted branch doesn't exist; fall back to the first branch ref.
		fallbackSHA, fallbackName, refErr := firstBranchRef(ctx, repoDir)
		if refErr != nil || fallbackSHA == "" {
			return MirrorResult{}, ErrEmptySource
		}
		log.Warn().Str("hint", branchHint).Str("actual", fallbackName).
			Msg("source default branch differs from hint; using actual branch")
		sha, branch = fallbackSHA, fallbackName
	}

	if _, err := runGit(ctx, repoDir, "remote", "set-url", "--push", "origin", destinationURL); err != nil {
		return MirrorResult{}, err
	}
	if _, err := runGit(ctx, repoDir, "push", "--mirror", "origin"); err != nil {
		return MirrorResult{}, err
	}

	return MirrorResult{BranchSHA: sha, BranchName: branch}, nil
}

func resolveBranch(ctx context.Context, repoDir, branch string) (string, error) {
	out, err := runGit(ctx, repoDir, "rev-parse", "refs/heads/"+branch)
	if err != nil {
		return "", err
	}
	sha := strings.TrimSpace(out)
	if sha == "" {
		return "", fmt.Errorf("git: empty rev-parse output for %s", branch)
	}
	return sha, nil
}

func firstBranchRef(ctx context.Context, repoDir string) (sha, name string, err error) {
	out, err := runGit(ctx, repoDir, "show-ref", "--heads")
	if err != nil {
		return "", "", err
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			return parts[0], strings.TrimPrefix(parts[1], "refs/heads/"), nil
		}
	}
	return "", "", fmt.Errorf("git: no branch refs in mirror")
}

// runGit executes git and returns stdout, scrubbing embedded access tokens
// from any error text.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git command failed (%s): %s", scrubArgs(args), scrubText(strings.TrimSpace(string(out))))
	}
	return string(out), nil
}

func scrubArgs(args []string) string {
	scrubbed := make([]string, len(args))
	for i, arg := range args {
		if strings.Contains(arg, "x-access-token:") {
			scrubbed[i] = "***"
		} else {
			scrubbed[i] = arg
		}
	}
	return strings.Join(scrubbed, " ")
}

func scrubText(s string) string {
	if i := strings.Index(s, "x-access-token:"); i >= 0 {
		if j := strings.Index(s[i:], "@"); j >= 0 {
			return s[:i] + "***" + s[i+j:]
		}
		return s[:i] + "***"
	}
	return s
}
