package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CreateCandidateRepository generates a private repository from the seed
// template. GitHub performs the copy server-side, so this is much cheaper
// than mirroring. Any failure here is fatal for the start transition; the
// caller must not move the invitation to started without a repo.
func (c *Client) CreateCandidateRepository(ctx context.Context, seedRepoFullName, defaultBranch, candidateSlug string) (Repository, error) {
	owner, name, ok := splitFullName(seedRepoFullName)
	if !ok {
		return Repository{}, fmt.Errorf("invalid seed repository name %q", seedRepoFullName)
	}
	repoName := fmt.Sprintf("%s-%s-%s",
		c.app.settings.CandidateRepoPrefix,
		slugify(candidateSlug),
		uuid.New().String()[:6])

	var repo Repository
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/generate", owner, name), map[string]interface{}{
		"owner":                c.account,
		"name":                 repoName,
		"private":              true,
		"include_all_branches": false,
	}, &repo, http.StatusCreated, http.StatusAccepted)
	if err != nil {
		return Repository{}, fmt.Errorf("unable to generate candidate repository: %w", err)
	}
	if repo.FullName == "" || repo.ID == 0 {
		return Repository{}, fmt.Errorf("github did not return the candidate repository metadata")
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = defaultBranch
	}
	return repo, nil
}

// ArchiveRepository marks a candidate repository as archived. Best-effort
// from the lifecycle's perspective; callers log failures and keep going.
func (c *Client) ArchiveRepository(ctx context.Context, repoFullName string) error {
	return c.do(ctx, http.MethodPatch, "/repos/"+repoFullName, map[string]interface{}{
		"archived": true,
	}, nil)
}

func splitFullName(fullName string) (owner, name string, ok bool) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
