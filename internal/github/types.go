package github

import "time"

// Repository is the minimal repository shape consumed from the GitHub API.
// Responses carry far more; only the named fields are parsed.
type Repository struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
	CloneURL      string `json:"clone_url"`
}

// Installation is the app-installation payload returned by
// GET /app/installations/{id}.
type Installation struct {
	ID         int64               `json:"id"`
	TargetType string              `json:"target_type"`
	HTMLURL    string              `json:"html_url"`
	Account    InstallationAccount `json:"account"`
}

// InstallationAccount is the account the app is installed on.
type InstallationAccount struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Type      string `json:"type"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

type accessTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type gitRefResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type branchResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type listedCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

type compareResponse struct {
	HTMLURL      string `json:"html_url"`
	TotalCommits int    `json:"total_commits"`
	BaseCommit   struct {
		SHA string `json:"sha"`
	} `json:"base_commit"`
	MergeBaseCommit *struct {
		SHA string `json:"sha"`
	} `json:"merge_base_commit"`
	HeadCommit *struct {
		SHA string `json:"sha"`
	} `json:"head_commit"`
	Commits []listedCommit `json:"commits"`
	Files   []compareFile  `json:"files"`
}

type compareFile struct {
	Filename         string `json:"filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Changes          int    `json:"changes"`
	Patch            string `json:"patch"`
	BlobURL          string `json:"blob_url"`
	PreviousFilename string `json:"previous_filename"`
}

// Diff is the normalized comparison between a candidate repo's first commit
// and its current head.
type Diff struct {
	Files          []DiffFile   `json:"files"`
	Commits        []DiffCommit `json:"commits"`
	TotalAdditions int          `json:"totalAdditions"`
	TotalDeletions int          `json:"totalDeletions"`
	TotalCommits   int          `json:"totalChanges"`
	BaseSHA        string       `json:"baseSha"`
	HeadSHA        string       `json:"headSha"`
	CompareURL     string       `json:"compareUrl,omitempty"`
}

// DiffFile is one changed file in unified-diff form. Status is always one of
// added, removed, modified, renamed.
type DiffFile struct {
	Filename         string `json:"filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Changes          int    `json:"changes"`
	Patch            string `json:"patch,omitempty"`
	BlobURL          string `json:"blobUrl,omitempty"`
	PreviousFilename string `json:"previousFilename,omitempty"`
}

// DiffCommit is one commit between base and head.
type DiffCommit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}
