package candidate

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gauntlet-backend/internal/config"
	"gauntlet-backend/internal/domain"
	"gauntlet-backend/internal/github"
	"gauntlet-backend/internal/installations"
	"gauntlet-backend/internal/pkg/token"
)

type stubNotifier struct {
	invites   int64
	started   int64
	submitted int64
}

func (n *stubNotifier) SendInvite(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment, startLinkToken string) error {
	atomic.AddInt64(&n.invites, 1)
	return nil
}

func (n *stubNotifier) SendAssessmentStarted(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment, repoURL string) error {
	atomic.AddInt64(&n.started, 1)
	return nil
}

func (n *stubNotifier) SendSubmissionReceived(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment) error {
	atomic.AddInt64(&n.submitted, 1)
	return nil
}

// githubStub fakes the handful of GitHub endpoints the start/submit
// transitions touch.
type githubStub struct {
	seedSHA       string
	generateCalls int64
	archiveCalls  int64
	failGenerate  bool
	failArchive   bool
}

func (g *githubStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/access_tokens"):
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{
				"token":      "ghs_scopedsecret",
				"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
		case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/seed-repo/git/ref/heads/main":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"object": map[string]string{"sha": g.seedSHA},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/repos/acme/seed-repo/generate":
			atomic.AddInt64(&g.generateCalls, 1)
			if g.failGenerate {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"message": "template generation failed"})
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":             int64(777),
				"full_name":      "acme/candidate-abc",
				"html_url":       "https://github.test/acme/candidate-abc",
				"default_branch": "main",
			})
		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/repos/acme/candidate-"):
			atomic.AddInt64(&g.archiveCalls, 1)
			if g.failArchive {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"message": "archive failed"})
				return
			}
			json.NewEncoder(w).Encode(map[string]bool{"archived": true})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
		}
	}
}

func testPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	stub     *githubStub
	notifier *stubNotifier
}

func setupLifecycleTest(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Org{}, &domain.GitHubInstallation{}, &domain.Seed{},
		&domain.Assessment{}, &domain.Invitation{}, &domain.CandidateRepo{},
		&domain.AccessToken{}, &domain.Submission{}, &domain.EmailEvent{},
	))

	stub := &githubStub{seedSHA: "refreshedsha0001"}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	settings, err := github.NewSettings(config.GitHubConfig{
		AppID:               "12345",
		PrivateKey:          testPEM(t),
		APIBaseURL:          srv.URL,
		RequestTimeout:      5 * time.Second,
		MirrorTimeout:       time.Minute,
		SeedRepoPrefix:      "gauntlet-seed",
		CandidateRepoPrefix: "gauntlet-candidate",
	})
	require.NoError(t, err)

	notifier := &stubNotifier{}
	svc := &Service{
		DB:            db,
		Installations: &installations.Service{DB: db, App: github.NewApp(settings)},
		Notifier:      notifier,
	}
	return &fixture{svc: svc, db: db, stub: stub, notifier: notifier}
}

// seedInvitation creates the org → installation → seed → assessment →
// invitation chain and returns the raw start-link token.
func (f *fixture) seedInvitation(t *testing.T, startDeadline time.Time) (*domain.Invitation, string) {
	t.Helper()
	org := domain.Org{Name: "Acme"}
	require.NoError(t, f.db.Create(&org).Error)
	require.NoError(t, f.db.Create(&domain.GitHubInstallation{
		OrgID:          org.ID,
		InstallationID: 42,
		TargetType:     "Organization",
		AccountLogin:   "acme",
		AccountID:      9000,
	}).Error)

	seed := domain.Seed{
		OrgID:            org.ID,
		SourceRepoURL:    "https://github.com/upstream/kata",
		SeedRepoFullName: "acme/seed-repo",
		DefaultBranch:    "main",
		IsTemplate:       true,
		LatestMainSHA:    "pinnedsha0000",
	}
	require.NoError(t, f.db.Create(&seed).Error)

	assessment := domain.Assessment{
		OrgID:          org.ID,
		SeedID:         seed.ID,
		Title:          "Backend Kata",
		TimeToStart:    72 * time.Hour,
		TimeToComplete: 48 * time.Hour,
	}
	require.NoError(t, f.db.Create(&assessment).Error)

	raw := token.Generate()
	invitation := domain.Invitation{
		AssessmentID:       assessment.ID,
		CandidateEmail:     "dev@example.com",
		CandidateName:      "Sam Dev",
		Status:             domain.InvitationSent,
		StartDeadline:      &startDeadline,
		StartLinkTokenHash: token.Hash(raw),
	}
	require.NoError(t, f.db.Create(&invitation).Error)
	return &invitation, raw
}

func TestStart_ProvisionsRepoAndMintsToken(t *testing.T) {
	f := setupLifecycleTest(t)
	invitation, raw := f.seedInvitation(t, time.Now().Add(time.Hour))

	before := time.Now().UTC()
	result, err := f.svc.Start(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, domain.InvitationStarted, result.Status)
	assert.Equal(t, "ghs_scopedsecret", result.AccessToken)
	require.NotNil(t, result.StartedAt)
	require.NotNil(t, result.CompleteDeadline)
	assert.WithinDuration(t, result.StartedAt.Add(48*time.Hour), *result.CompleteDeadline, time.Second)
	assert.False(t, result.StartedAt.Before(before.Truncate(time.Second)))

	var stored domain.Invitation
	require.NoError(t, f.db.First(&stored, "id = ?", invitation.ID).Error)
	assert.Equal(t, domain.InvitationStarted, stored.Status)
	require.NotNil(t, stored.StartedAt)

	var repo domain.CandidateRepo
	require.NoError(t, f.db.First(&repo, "invitation_id = ?", invitation.ID).Error)
	assert.Equal(t, "acme/candidate-abc", repo.RepoFullName)
	assert.Equal(t, "refreshedsha0001", repo.SeedSHAPinned, "repo pins the re-resolved seed head")
	assert.True(t, repo.Active)

	var tok domain.AccessToken
	require.NoError(t, f.db.First(&tok, "invitation_id = ? AND revoked = ?", invitation.ID, false).Error)
	assert.Equal(t, token.Hash("ghs_scopedsecret"), tok.OpaqueTokenHash, "only the hash is persisted")

	var seed domain.Seed
	require.NoError(t, f.db.First(&seed).Error)
	assert.Equal(t, "refreshedsha0001", seed.LatestMainSHA, "seed head refreshed on start")

	assert.EqualValues(t, 1, f.notifier.started)
}

func TestStart_SecondCallConflicts(t *testing.T) {
	f := setupLifecycleTest(t)
	invitation, raw := f.seedInvitation(t, time.Now().Add(time.Hour))

	_, err := f.svc.Start(context.Background(), raw)
	require.NoError(t, err)

	_, err = f.svc.Start(context.Background(), raw)
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	var repoCount int64
	require.NoError(t, f.db.Model(&domain.CandidateRepo{}).
		Where("invitation_id = ?", invitation.ID).Count(&repoCount).Error)
	assert.EqualValues(t, 1, repoCount, "double start must not create a second repo")
}

func TestStart_ExpiredWindow(t *testing.T) {
	f := setupLifecycleTest(t)
	invitation, raw := f.seedInvitation(t, time.Now().Add(-time.Minute))

	_, err := f.svc.Start(context.Background(), raw)
	assert.ErrorIs(t, err, ErrStartExpired)

	var stored domain.Invitation
	require.NoError(t, f.db.First(&stored, "id = ?", invitation.ID).Error)
	assert.Equal(t, domain.InvitationExpired, stored.Status)
	assert.NotNil(t, stored.ExpiredAt)

	assert.EqualValues(t, 0, f.stub.generateCalls, "expired start must not touch github")
}

func TestStart_ReusesRepoFromPartialAttempt(t *testing.T) {
	f := setupLifecycleTest(t)
	invitation, raw := f.seedInvitation(t, time.Now().Add(time.Hour))

	// Simulate an earlier attempt that created the repo but never committed
	// the status transition.
	existing := domain.CandidateRepo{
		InvitationID:  invitation.ID,
		SeedSHAPinned: "pinnedsha0000",
		RepoFullName:  "acme/candidate-earlier",
		RepoHTMLURL:   "https://github.test/acme/candidate-earlier",
		GitHubRepoID:  555,
		Active:        true,
	}
	require.NoError(t, f.db.Create(&existing).Error)
	stale := domain.AccessToken{
		InvitationID:    invitation.ID,
		RepoFullName:    existing.RepoFullName,
		OpaqueTokenHash: token.Hash("ghs_stale"),
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	require.NoError(t, f.db.Create(&stale).Error)

	result, err := f.svc.Start(context.Background(), raw)
	require.NoError(t, err)

	assert.EqualValues(t, 0, f.stub.generateCalls, "existing repo must be reused")
	assert.Equal(t, "acme/candidate-earlier", result.CandidateRepo.RepoFullName)
	assert.Equal(t, "pinnedsha0000", result.CandidateRepo.SeedSHAPinned, "reuse keeps the originally pinned commit")

	var staleStored domain.AccessToken
	require.NoError(t, f.db.First(&staleStored, "id = ?", stale.ID).Error)
	assert.True(t, staleStored.Revoked, "minting a fresh token revokes prior ones")

	var live int64
	require.NoError(t, f.db.Model(&domain.AccessToken{}).
		Where("invitation_id = ? AND revoked = ?", invitation.ID, false).Count(&live).Error)
	assert.EqualValues(t, 1, live)
}

func TestStart_ProvisioningFailureLeavesSent(t *testing.T) {
	f := setupLifecycleTest(t)
	f.stub.failGenerate = true
	invitation, raw := f.seedInvitation(t, time.Now().Add(time.Hour))

	_, err := f.svc.Start(context.Background(), raw)
	require.Error(t, err)
	var apiErr *github.APIError
	assert.ErrorAs(t, err, &apiErr)

	var stored domain.Invitation
	require.NoError(t, f.db.First(&stored, "id = ?", invitation.ID).Error)
	assert.Equal(t, domain.InvitationSent, stored.Status, "failed provisioning must not advance the state")

	var repoCount, tokenCount int64
	require.NoError(t, f.db.Model(&domain.CandidateRepo{}).Count(&repoCount).Error)
	require.NoError(t, f.db.Model(&domain.AccessToken{}).Count(&tokenCount).Error)
	assert.Zero(t, repoCount)
	assert.Zero(t, tokenCount)

	var seed domain.Seed
	require.NoError(t, f.db.First(&seed).Error)
	assert.Equal(t, "pinnedsha0000", seed.LatestMainSHA, "failed provisioning must not advance the seed head")
}

func TestSubmit_BeforeStartConflicts(t *testing.T) {
	f := setupLifecycleTest(t)
	_, raw := f.seedInvitation(t, time.Now().Add(time.Hour))

	_, err := f.svc.Submit(context.Background(), raw, SubmitInput{})
	assert.ErrorIs(t, err, ErrNotStarted)

	var count int64
	require.NoError(t, f.db.Model(&domain.Submission{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmit_RecordsRevokesAndArchives(t *testing.T) {
	f := setupLifecycleTest(t)
	invitation, raw := f.seedInvitation(t, time.Now().Add(time.Hour))

	_, err := f.svc.Start(context.Background(), raw)
	require.NoError(t, err)

	result, err := f.svc.Submit(context.Background(), raw, SubmitInput{
		VideoURL: "https://videos.example.com/walkthrough",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationSubmitted, result.Status)
	require.NotNil(t, result.SubmittedAt)

	var stored domain.Invitation
	require.NoError(t, f.db.First(&stored, "id = ?", invitation.ID).Error)
	assert.Equal(t, domain.InvitationSubmitted, stored.Status)
	assert.NotNil(t, stored.SubmittedAt)

	var submission domain.Submission
	require.NoError(t, f.db.First(&submission, "invitation_id = ?", invitation.ID).Error)
	assert.Equal(t, "refreshedsha0001", submission.FinalSHA, "final sha defaults to the pinned commit")
	assert.Equal(t, "https://videos.example.com/walkthrough", submission.VideoURL)

	var liveTokens int64
	require.NoError(t, f.db.Model(&domain.AccessToken{}).
		Where("invitation_id = ? AND revoked = ?", invitation.ID, false).Count(&liveTokens).Error)
	assert.Zero(t, liveTokens, "submitted implies every token revoked")

	var repo domain.CandidateRepo
	require.NoError(t, f.db.First(&repo, "invitation_id = ?", invitation.ID).Error)
	assert.False(t, repo.Active)
	assert.True(t, repo.Archived)
	assert.EqualValues(t, 1, f.stub.archiveCalls)
	assert.EqualValues(t, 1, f.notifier.submitted)
}

func TestSubmit_ArchiveFailureStillDeactivates(t *testing.T) {
	f := setupLifecycleTest(t)
	f.stub.failArchive = true
	invitation, raw := f.seedInvitation(t, time.Now().Add(time.Hour))

	_, err := f.svc.Start(context.Background(), raw)
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), raw, SubmitInput{})
	require.NoError(t, err, "archive failure must not fail the submit")

	var repo domain.CandidateRepo
	require.NoError(t, f.db.First(&repo, "invitation_id = ?", invitation.ID).Error)
	assert.False(t, repo.Active)
	assert.False(t, repo.Archived)

	var stored domain.Invitation
	require.NoError(t, f.db.First(&stored, "id = ?", invitation.ID).Error)
	assert.Equal(t, domain.InvitationSubmitted, stored.Status)
}

func TestSubmit_SecondCallConflicts(t *testing.T) {
	f := setupLifecycleTest(t)
	_, raw := f.seedInvitation(t, time.Now().Add(time.Hour))

	_, err := f.svc.Start(context.Background(), raw)
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), raw, SubmitInput{})
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), raw, SubmitInput{})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestGetDetails_UnknownToken(t *testing.T) {
	f := setupLifecycleTest(t)
	_, _ = f.seedInvitation(t, time.Now().Add(time.Hour))

	_, err := f.svc.GetDetails(context.Background(), "not-a-real-token")
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}
