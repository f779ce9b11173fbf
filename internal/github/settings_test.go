package github

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet-backend/internal/config"
)

func generatePEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block))
}

func TestParseRepoRef(t *testing.T) {
	cases := []struct {
		in          string
		owner, name string
		wantErr     bool
	}{
		{in: "https://github.com/acme/widgets", owner: "acme", name: "widgets"},
		{in: "https://github.com/acme/widgets.git", owner: "acme", name: "widgets"},
		{in: "https://github.com/acme/widgets/tree/main", owner: "acme", name: "widgets"},
		{in: "acme/widgets", owner: "acme", name: "widgets"},
		{in: "  acme/widgets.git  ", owner: "acme", name: "widgets"},
		{in: "", wantErr: true},
		{in: "https://github.com/acme", wantErr: true},
		{in: "just-a-name", wantErr: true},
	}
	for _, tc := range cases {
		owner, name, err := ParseRepoRef(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.owner, owner, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "my-cool-repo", slugify("My Cool_Repo!"))
	assert.Equal(t, "widgets", slugify("widgets"))
	assert.Equal(t, "repo", slugify("???"))
	assert.Equal(t, "a-b", slugify("--A--b--"))
}

func TestParsePrivateKey_Formats(t *testing.T) {
	raw := generatePEM(t)

	t.Run("raw pem", func(t *testing.T) {
		key, err := parsePrivateKey(raw)
		require.NoError(t, err)
		assert.NotNil(t, key)
	})

	t.Run("escaped newlines", func(t *testing.T) {
		escaped := strings.ReplaceAll(raw, "\n", `\n`)
		key, err := parsePrivateKey(escaped)
		require.NoError(t, err)
		assert.NotNil(t, key)
	})

	t.Run("base64 wrapped", func(t *testing.T) {
		wrapped := base64.StdEncoding.EncodeToString([]byte(raw))
		key, err := parsePrivateKey(wrapped)
		require.NoError(t, err)
		assert.NotNil(t, key)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parsePrivateKey("not a key")
		assert.Error(t, err)
	})
}

func TestNewSettings(t *testing.T) {
	cfg := config.GitHubConfig{
		AppID:               "12345",
		PrivateKey:          generatePEM(t),
		AppSlug:             "gauntlet",
		APIBaseURL:          "https://api.github.com/",
		RequestTimeout:      10 * time.Second,
		MirrorTimeout:       2 * time.Minute,
		SeedRepoPrefix:      "gauntlet-seed",
		CandidateRepoPrefix: "gauntlet-candidate",
	}

	settings, err := NewSettings(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com", settings.APIBaseURL)
	assert.NotNil(t, settings.PrivateKey)

	slug, err := settings.RequireAppSlug()
	require.NoError(t, err)
	assert.Equal(t, "gauntlet", slug)

	settings.AppSlug = ""
	_, err = settings.RequireAppSlug()
	assert.Error(t, err)
}

func TestNewSettings_RejectsMissingAppID(t *testing.T) {
	cfg := config.GitHubConfig{PrivateKey: generatePEM(t)}
	_, err := NewSettings(cfg)
	assert.Error(t, err)
}
