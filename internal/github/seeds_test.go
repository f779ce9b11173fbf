package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gauntlet-backend/internal/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedStub fakes the GitHub endpoints seed provisioning walks through:
// source lookup, org repo creation, branch rename, template flag and the
// post-push SHA resolution.
type seedStub struct {
	sourceDefaultBranch string
	seedDefaultBranch   string
	refFailuresLeft     int64 // 404s served on the git-ref endpoint before success
	refAlwaysMissing    bool
	branchesSHA         string

	createBody   map[string]interface{}
	patchBody    map[string]interface{}
	seedFullName string
	renamedFrom  string
	renameCalls  int64
	refCalls     int64
}

func (g *seedStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/access_tokens"):
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{
				"token":      "ghs_installtoken",
				"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
		case r.Method == http.MethodGet && r.URL.Path == "/repos/upstream/widget":
			json.NewEncoder(w).Encode(map[string]string{"default_branch": g.sourceDefaultBranch})
		case r.Method == http.MethodPost && r.URL.Path == "/orgs/acme/repos":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&g.createBody))
			g.seedFullName = "acme/" + g.createBody["name"].(string)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/rename"):
			atomic.AddInt64(&g.renameCalls, 1)
			parts := strings.Split(r.URL.Path, "/")
			g.renamedFrom = parts[len(parts)-2]
			json.NewEncoder(w).Encode(map[string]string{})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/git/ref/heads/main"):
			atomic.AddInt64(&g.refCalls, 1)
			if g.refAlwaysMissing || atomic.AddInt64(&g.refFailuresLeft, -1) >= 0 {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"object": map[string]string{"sha": "apiheadsha"},
			})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/branches/main"):
			if g.branchesSHA == "" {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"commit": map[string]string{"sha": g.branchesSHA},
			})
		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/repos/acme/"):
			require.NoError(t, json.NewDecoder(r.Body).Decode(&g.patchBody))
			json.NewEncoder(w).Encode(map[string]string{})
		case r.Method == http.MethodGet && g.seedFullName != "" && r.URL.Path == "/repos/"+g.seedFullName:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":             int64(4242),
				"full_name":      g.seedFullName,
				"default_branch": g.seedDefaultBranch,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
		}
	}
}

type mirrorCall struct {
	calls          int
	sourceURL      string
	branchHint     string
	destinationURL string
}

func stubMirror(t *testing.T, result MirrorResult, err error) *mirrorCall {
	t.Helper()
	call := &mirrorCall{}
	orig := mirrorRepo
	mirrorRepo = func(ctx context.Context, sourceURL, branchHint, destinationURL string) (MirrorResult, error) {
		call.calls++
		call.sourceURL, call.branchHint, call.destinationURL = sourceURL, branchHint, destinationURL
		return result, err
	}
	t.Cleanup(func() { mirrorRepo = orig })
	return call
}

func shrinkSHABackoff(t *testing.T) {
	t.Helper()
	orig := shaRetryPolicy
	shaRetryPolicy = retry.Policy{
		Attempts:     orig.Attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}
	t.Cleanup(func() { shaRetryPolicy = orig })
}

func setupSeedTest(t *testing.T, stub *seedStub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	app, _ := testApp(t, srv.URL)
	return app.ForInstallation(42, "acme")
}

func TestEnsureSeedRepository_MirrorsRenamesAndPins(t *testing.T) {
	stub := &seedStub{sourceDefaultBranch: "master", seedDefaultBranch: "master"}
	client := setupSeedTest(t, stub)
	mirror := stubMirror(t, MirrorResult{BranchSHA: "mirrorheadsha", BranchName: "master"}, nil)
	shrinkSHABackoff(t)

	seed, err := client.EnsureSeedRepository(context.Background(), "https://github.com/upstream/widget", "main")
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/upstream/widget", seed.CanonicalSource)
	assert.Equal(t, stub.seedFullName, seed.Repo.FullName)
	assert.Equal(t, "main", seed.Repo.DefaultBranch)
	assert.Equal(t, "apiheadsha", seed.HeadSHA)

	name, _ := stub.createBody["name"].(string)
	assert.True(t, strings.HasPrefix(name, "gauntlet-seed-upstream-widget-"), name)
	assert.Equal(t, true, stub.createBody["private"])

	require.Equal(t, 1, mirror.calls)
	assert.Equal(t, "master", mirror.branchHint, "mirror follows the source's actual default branch")
	assert.Contains(t, mirror.sourceURL, "x-access-token:ghs_installtoken@")
	assert.Contains(t, mirror.sourceURL, "upstream/widget.git")
	assert.Contains(t, mirror.destinationURL, stub.seedFullName+".git")

	assert.EqualValues(t, 1, stub.renameCalls)
	assert.Equal(t, "master", stub.renamedFrom, "mirrored default branch must be renamed to the expected name")
	assert.Equal(t, true, stub.patchBody["is_template"])
	assert.Equal(t, "main", stub.patchBody["default_branch"])
}

func TestEnsureSeedRepository_SkipsRenameWhenBranchMatches(t *testing.T) {
	stub := &seedStub{sourceDefaultBranch: "main", seedDefaultBranch: "main"}
	client := setupSeedTest(t, stub)
	stubMirror(t, MirrorResult{BranchSHA: "mirrorheadsha", BranchName: "main"}, nil)
	shrinkSHABackoff(t)

	_, err := client.EnsureSeedRepository(context.Background(), "https://github.com/upstream/widget", "main")
	require.NoError(t, err)
	assert.Zero(t, stub.renameCalls)
}

func TestEnsureSeedRepository_RetriesSHAAfterPushLag(t *testing.T) {
	stub := &seedStub{sourceDefaultBranch: "main", seedDefaultBranch: "main", refFailuresLeft: 1}
	client := setupSeedTest(t, stub)
	stubMirror(t, MirrorResult{BranchSHA: "mirrorheadsha", BranchName: "main"}, nil)
	shrinkSHABackoff(t)

	seed, err := client.EnsureSeedRepository(context.Background(), "https://github.com/upstream/widget", "main")
	require.NoError(t, err)

	assert.Equal(t, "apiheadsha", seed.HeadSHA, "a lagging ref must be re-read, not given up on")
	assert.EqualValues(t, 2, stub.refCalls)
}

func TestEnsureSeedRepository_FallsBackToMirrorSHA(t *testing.T) {
	stub := &seedStub{sourceDefaultBranch: "main", seedDefaultBranch: "main", refAlwaysMissing: true}
	client := setupSeedTest(t, stub)
	stubMirror(t, MirrorResult{BranchSHA: "mirrorheadsha", BranchName: "main"}, nil)
	shrinkSHABackoff(t)

	seed, err := client.EnsureSeedRepository(context.Background(), "https://github.com/upstream/widget", "main")
	require.NoError(t, err)

	assert.Equal(t, "mirrorheadsha", seed.HeadSHA, "API never caught up; the mirror already knew the head")
	assert.EqualValues(t, 5, stub.refCalls, "resolution is bounded, not infinite")
}

func TestEnsureSeedRepository_SourceNotFound(t *testing.T) {
	stub := &seedStub{}
	client := setupSeedTest(t, stub)
	mirror := stubMirror(t, MirrorResult{}, nil)

	_, err := client.EnsureSeedRepository(context.Background(), "https://github.com/upstream/missing", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or inaccessible")
	assert.Zero(t, mirror.calls)
	assert.Nil(t, stub.createBody, "no repo may be created for a dead source")
}

func TestRefreshBranchSHA_BranchesEndpointFallback(t *testing.T) {
	stub := &seedStub{refAlwaysMissing: true, branchesSHA: "branchessha"}
	client := setupSeedTest(t, stub)
	shrinkSHABackoff(t)

	sha, err := client.RefreshBranchSHA(context.Background(), "acme/some-seed", "main")
	require.NoError(t, err)
	assert.Equal(t, "branchessha", sha)
	assert.EqualValues(t, 1, stub.refCalls, "the branches endpoint resolves within the same attempt")
}
