package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNoCommits is returned when the head branch has no commits to compare.
var ErrNoCommits = errors.New("repository has no commits to compare")

// ErrCannotCompare is returned when both compare directions 404.
var ErrCannotCompare = errors.New("could not compare repository")

// GetDiff fetches the unified-diff comparison between a candidate repo's
// first commit and headBranch. The oldest listed commit is the comparison
// base rather than the stored pinned SHA: template generation rewrites
// history, so the true common ancestor lives inside the candidate repo
// itself. A 404 on base...head retries with the operands swapped before
// giving up, since compare direction sensitivity varies by ref type.
func (c *Client) GetDiff(ctx context.Context, repoFullName, headBranch string) (*Diff, error) {
	var commits []listedCommit
	listPath := fmt.Sprintf("/repos/%s/commits?sha=%s&per_page=100", repoFullName, headBranch)
	if err := c.do(ctx, http.MethodGet, listPath, nil, &commits); err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, ErrNoCommits
	}
	firstSHA := commits[len(commits)-1].SHA
	if firstSHA == "" {
		return nil, ErrNoCommits
	}

	compare, err := c.compareWithFallback(ctx, repoFullName, firstSHA, headBranch)
	if err != nil {
		return nil, err
	}
	return normalizeCompare(compare, headBranch), nil
}

func (c *Client) compareWithFallback(ctx context.Context, repoFullName, baseSHA, headBranch string) (*compareResponse, error) {
	var out compareResponse
	path := fmt.Sprintf("/repos/%s/compare/%s...%s", repoFullName, baseSHA, headBranch)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err == nil {
		return &out, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	swapped := fmt.Sprintf("/repos/%s/compare/%s...%s", repoFullName, headBranch, baseSHA)
	out = compareResponse{}
	err = c.do(ctx, http.MethodGet, swapped, nil, &out)
	if err == nil {
		return &out, nil
	}
	if IsNotFound(err) {
		return nil, fmt.Errorf("%w: branch %s or commit %s not found", ErrCannotCompare, headBranch, baseSHA)
	}
	return nil, err
}

func normalizeCompare(compare *compareResponse, headBranch string) *Diff {
	diff := &Diff{
		TotalCommits: compare.TotalCommits,
		BaseSHA:      compare.BaseCommit.SHA,
		HeadSHA:      headBranch,
		CompareURL:   compare.HTMLURL,
	}
	if diff.BaseSHA == "" {
		diff.BaseSHA = headBranch
	}
	switch {
	case compare.MergeBaseCommit != nil && compare.MergeBaseCommit.SHA != "":
		diff.HeadSHA = compare.MergeBaseCommit.SHA
	case compare.HeadCommit != nil && compare.HeadCommit.SHA != "":
		diff.HeadSHA = compare.HeadCommit.SHA
	}

	for _, file := range compare.Files {
		status := classifyStatus(file.Status)
		diff.TotalAdditions += file.Additions
		diff.TotalDeletions += file.Deletions
		diff.Files = append(diff.Files, DiffFile{
			Filename:         file.Filename,
			Status:           status,
			Additions:        file.Additions,
			Deletions:        file.Deletions,
			Changes:          file.Changes,
			Patch:            normalizePatch(file.Patch, status, file.Filename, file.PreviousFilename),
			BlobURL:          file.BlobURL,
			PreviousFilename: file.PreviousFilename,
		})
	}

	for _, commit := range compare.Commits {
		sha := commit.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		message := commit.Commit.Message
		if i := strings.IndexByte(message, '\n'); i >= 0 {
			message = message[:i]
		}
		author := commit.Commit.Author.Name
		if author == "" {
			author = "Unknown"
		}
		date, _ := time.Parse(time.RFC3339, commit.Commit.Author.Date)
		diff.Commits = append(diff.Commits, DiffCommit{
			SHA:     sha,
			Message: message,
			Author:  author,
			Date:    date.UTC(),
		})
	}
	return diff
}

// classifyStatus collapses upstream status strings into a closed set,
// defaulting unknown values to modified.
func classifyStatus(status string) string {
	switch status {
	case "added", "removed", "renamed":
		return status
	default:
		return "modified"
	}
}

// normalizePatch ensures the patch is a self-contained unified diff,
// synthesizing the "diff --git" header GitHub omits and using /dev/null for
// the missing side of added/removed files.
func normalizePatch(patch, status, filename, previousFilename string) string {
	if patch == "" || strings.HasPrefix(patch, "diff --git") {
		return patch
	}

	gitOld := previousFilename
	if gitOld == "" {
		gitOld = filename
	}
	oldPath, newPath := gitOld, filename
	if status == "added" {
		oldPath = "/dev/null"
	}
	if status == "removed" {
		newPath = "/dev/null"
	}

	header := fmt.Sprintf("diff --git a/%s b/%s\n", gitOld, filename)
	if !strings.Contains(patch, "\n--- ") && !strings.HasPrefix(patch, "--- ") {
		header += fmt.Sprintf("--- %s\n+++ %s\n", diffSide("a", oldPath), diffSide("b", newPath))
	}
	return header + patch
}

func diffSide(prefix, path string) string {
	if path == "/dev/null" {
		return path
	}
	return prefix + "/" + path
}
