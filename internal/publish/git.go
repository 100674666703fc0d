package publish

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/hn-digest/hn-digest-go/internal/aggregate"
)

// maxVersionAttempts caps how many `-vN` candidates GitSink tries
// before giving up.
const maxVersionAttempts = 10

// GitSink is the Git sink (hard failure): it publishes the digest
// as a Jekyll-style post in the configured repository's _posts/ folder.
type GitSink struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

// NewGitHubClient builds an authenticated GitHub client from a personal
// access token.
func NewGitHubClient(token string) *github.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(context.Background(), src))
}

// NewGitSink creates a GitSink targeting "owner/repo" on branch.
func NewGitSink(client *github.Client, targetRepo, branch string) (*GitSink, error) {
	owner, repo, ok := strings.Cut(targetRepo, "/")
	if !ok {
		return nil, fmt.Errorf("publish: git: TARGET_REPO must be \"owner/repo\", got %q", targetRepo)
	}
	return &GitSink{client: client, owner: owner, repo: repo, branch: branch}, nil
}

// Name identifies this sink for logging.
func (g *GitSink) Name() string { return "git" }

// Publish locates a free (or idempotently reusable) filename under
// _posts/ and creates or updates it with the digest's Markdown.
func (g *GitSink) Publish(ctx context.Context, digest *aggregate.Digest) error {
	path, sha, err := g.resolveTarget(ctx, digest)
	if err != nil {
		return fmt.Errorf("publish: git: resolving target for %s: %w", digest.FileName, err)
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(fmt.Sprintf("Add HackerNews daily digest for %s", digest.Date)),
		Content: []byte(digest.Markdown),
		Branch:  github.Ptr(g.branch),
	}

	if sha != "" {
		opts.SHA = github.Ptr(sha)
		if _, _, err := g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, path, opts); err != nil {
			return fmt.Errorf("publish: git: update %s: %w", path, err)
		}
		return nil
	}

	if _, _, err := g.client.Repositories.CreateFile(ctx, g.owner, g.repo, path, opts); err != nil {
		return fmt.Errorf("publish: git: create %s: %w", path, err)
	}
	return nil
}

// resolveTarget walks {fileName}, {fileName}-v2, {fileName}-v3, ... until
// it finds either a free path (create, sha="") or a path already holding
// byte-identical content (update in place, idempotent resume). It gives
// up after maxVersionAttempts candidates.
func (g *GitSink) resolveTarget(ctx context.Context, digest *aggregate.Digest) (path, sha string, err error) {
	base := strings.TrimSuffix(digest.FileName, ".md")
	candidate := digest.FileName

	for version := 1; version <= maxVersionAttempts; version++ {
		path = "_posts/" + candidate

		content, _, resp, getErr := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, &github.RepositoryContentGetOptions{Ref: g.branch})
		switch {
		case getErr != nil && resp != nil && resp.StatusCode == http.StatusNotFound:
			return path, "", nil
		case getErr != nil:
			return "", "", fmt.Errorf("checking %s: %w", path, getErr)
		case content != nil:
			if existing, decodeErr := content.GetContent(); decodeErr == nil && existing == digest.Markdown {
				return path, content.GetSHA(), nil
			}
		}

		candidate = fmt.Sprintf("%s-v%d.md", base, version+1)
	}

	return "", "", fmt.Errorf("exhausted %d versioning attempts for %s", maxVersionAttempts, digest.FileName)
}
