// Package gitref resolves floating git refs to concrete commits through the
// GitHub API, so a rebuild reproduces the exact source the first build used.
package gitref

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// Pinner looks up commit SHAs on github.com. It satisfies the orchestrator's
// CommitPinner and is strictly best-effort.
type Pinner struct {
	client *github.Client
}

// New builds a Pinner. An empty token uses unauthenticated requests, which
// is fine for public repositories at low volume.
func New(token string) *Pinner {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(context.Background(),
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return &Pinner{client: github.NewClient(hc)}
}

// NewWithClient builds a Pinner around an existing client.
func NewWithClient(c *github.Client) *Pinner {
	return &Pinner{client: c}
}

// Pin resolves ref (default branch when empty) to a commit SHA. Non-GitHub
// URLs and lookup failures report ok=false and leave the job unpinned.
func (p *Pinner) Pin(gitURL, ref string) (string, bool) {
	owner, repo, ok := ParseRepo(gitURL)
	if !ok {
		return "", false
	}
	if ref == "" {
		ref = "HEAD"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sha, _, err := p.client.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
	if err != nil {
		log.Printf("gitref: pin %s@%s: %v", gitURL, ref, err)
		return "", false
	}
	return sha, true
}

// ParseRepo extracts owner and repo from a github.com clone URL. It accepts
// https, git, and ssh-style URLs; anything else reports ok=false.
func ParseRepo(gitURL string) (owner, repo string, ok bool) {
	path := ""
	switch {
	case strings.HasPrefix(gitURL, "https://github.com/"):
		path = strings.TrimPrefix(gitURL, "https://github.com/")
	case strings.HasPrefix(gitURL, "http://github.com/"):
		path = strings.TrimPrefix(gitURL, "http://github.com/")
	case strings.HasPrefix(gitURL, "git://github.com/"):
		path = strings.TrimPrefix(gitURL, "git://github.com/")
	case strings.HasPrefix(gitURL, "git@github.com:"):
		path = strings.TrimPrefix(gitURL, "git@github.com:")
	default:
		return "", "", false
	}
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
