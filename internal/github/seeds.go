package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gauntlet-backend/internal/pkg/retry"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Overridden in tests to stub the git subprocess and shrink the backoff.
var (
	mirrorRepo     = Mirror
	shaRetryPolicy = retry.Default
)

// SeedRepository is the result of provisioning a seed: the created repo, the
// head SHA invitations will pin to, and the canonicalized source URL.
type SeedRepository struct {
	Repo            Repository
	HeadSHA         string
	CanonicalSource string
}

// EnsureSeedRepository creates a private org-owned template repository
// mirrored from sourceRepoURL. Steps: create the remote repo, mirror all refs
// into it, rename the default branch to defaultBranch when GitHub reports a
// different one, mark it as a template, and resolve the head SHA with retry
// (falling back to the SHA the mirror reported).
func (c *Client) EnsureSeedRepository(ctx context.Context, sourceRepoURL, defaultBranch string) (SeedRepository, error) {
	owner, name, err := ParseRepoRef(sourceRepoURL)
	if err != nil {
		return SeedRepository{}, err
	}
	canonical := fmt.Sprintf("https://github.com/%s/%s", owner, name)
	repoName := fmt.Sprintf("%s-%s-%s",
		c.app.settings.SeedRepoPrefix,
		slugify(owner+"-"+name),
		uuid.New().String()[:8])

	var sourceRepo Repository
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", owner, name), nil, &sourceRepo); err != nil {
		if IsNotFound(err) {
			return SeedRepository{}, fmt.Errorf("source repository not found or inaccessible")
		}
		return SeedRepository{}, err
	}
	sourceBranch := sourceRepo.DefaultBranch
	if sourceBranch == "" {
		sourceBranch = "main"
	}

	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/orgs/%s/repos", c.account), map[string]interface{}{
		"name":        repoName,
		"private":     true,
		"visibility":  "private",
		"auto_init":   false,
		"description": "Seed mirror of " + canonical,
	}, nil, http.StatusCreated, http.StatusAccepted); err != nil {
		return SeedRepository{}, fmt.Errorf("failed to create seed repository: %w", err)
	}

	seedFullName := c.account + "/" + repoName

	// Repository content moves over git, not the API: the installation token
	// doubles as the basic-auth credential for both remotes.
	tok, err := c.installationToken(ctx)
	if err != nil {
		return SeedRepository{}, err
	}
	mirrorCtx, cancel := context.WithTimeout(ctx, c.app.settings.MirrorTimeout)
	defer cancel()
	result, err := mirrorRepo(mirrorCtx,
		fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", tok, owner, name),
		sourceBranch,
		fmt.Sprintf("https://x-access-token:%s@github.com/%s.git", tok, seedFullName),
	)
	if err != nil {
		return SeedRepository{}, err
	}

	var seedRepo Repository
	if err := c.do(ctx, http.MethodGet, "/repos/"+seedFullName, nil, &seedRepo); err != nil {
		return SeedRepository{}, err
	}

	if seedRepo.DefaultBranch != "" && seedRepo.DefaultBranch != defaultBranch {
		renamePath := fmt.Sprintf("/repos/%s/branches/%s/rename", seedFullName, seedRepo.DefaultBranch)
		if err := c.do(ctx, http.MethodPost, renamePath, map[string]string{"new_name": defaultBranch}, nil,
			http.StatusOK, http.StatusCreated); err != nil {
			return SeedRepository{}, fmt.Errorf("unable to rename default branch to %s: %w", defaultBranch, err)
		}
	}

	if err := c.do(ctx, http.MethodPatch, "/repos/"+seedFullName, map[string]interface{}{
		"is_template":    true,
		"default_branch": defaultBranch,
		"private":        true,
	}, nil); err != nil {
		return SeedRepository{}, err
	}

	sha, err := c.RefreshBranchSHA(ctx, seedFullName, defaultBranch)
	if err != nil {
		// Freshly pushed refs can lag behind the API; the mirror already told
		// us where the branch head is.
		log.Warn().Str("repo", seedFullName).Err(err).Msg("falling back to mirror-reported branch SHA")
		sha = result.BranchSHA
	}

	seedRepo.FullName = seedFullName
	seedRepo.DefaultBranch = defaultBranch
	return SeedRepository{Repo: seedRepo, HeadSHA: sha, CanonicalSource: canonical}, nil
}

// RefreshBranchSHA resolves the head commit of a branch, retrying with
// backoff since refs are eventually consistent right after a push. A 404 on
// the git-ref endpoint falls back to the branches endpoint before counting as
// a failed attempt.
func (c *Client) RefreshBranchSHA(ctx context.Context, repoFullName, branch string) (string, error) {
	policy := shaRetryPolicy
	policy.Classify = func(err error) (time.Duration, bool) {
		if IsNotFound(err) || IsServerError(err) {
			return 0, true
		}
		return RetryClassify(err)
	}
	var sha string
	err := policy.Do(ctx, func() error {
		var ref gitRefResponse
		err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/git/ref/heads/%s", repoFullName, branch), nil, &ref)
		if err == nil && ref.Object.SHA != "" {
			sha = ref.Object.SHA
			return nil
		}
		if err != nil && !IsNotFound(err) && !IsServerError(err) {
			return err
		}

		var br branchResponse
		brErr := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/branches/%s", repoFullName, branch), nil, &br)
		if brErr == nil && br.Commit.SHA != "" {
			sha = br.Commit.SHA
			return nil
		}
		if err != nil {
			return err
		}
		return brErr
	})
	if err != nil {
		return "", fmt.Errorf("unable to determine branch SHA for %s@%s: %w", repoFullName, branch, err)
	}
	return sha, nil
}
