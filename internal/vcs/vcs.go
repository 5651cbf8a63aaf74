package vcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Fetcher materializes an upstream source tree.
type Fetcher interface {
	// Fetch makes dir a checkout of ref (a tag or a branch) from remote and
	// returns the commit it points at. An existing checkout of the same
	// commit is reused; anything else at dir is replaced.
	Fetch(ctx context.Context, remote, ref, dir string) (string, error)
}

// gitFetcher implements Fetcher with go-git.
type gitFetcher struct {
	depth    int
	progress io.Writer
	logger   *slog.Logger
}

// GitOption configures gitFetcher.
type GitOption func(*gitFetcher)

// WithDepth limits the clone history. Zero fetches everything.
func WithDepth(depth int) GitOption {
	return func(g *gitFetcher) {
		g.depth = depth
	}
}

// WithProgress sets where the remote's progress messages are written.
func WithProgress(w io.Writer) GitOption {
	return func(g *gitFetcher) {
		g.progress = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GitOption {
	return func(g *gitFetcher) {
		g.logger = logger
	}
}

// NewGitFetcher creates a new git Fetcher. Clones are shallow by default.
func NewGitFetcher(opts ...GitOption) Fetcher {
	g := &gitFetcher{depth: 1, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *gitFetcher) Fetch(ctx context.Context, remote, ref, dir string) (string, error) {
	if hash, ok := g.current(ref, dir); ok {
		g.logger.Debug("source up to date", "dir", dir, "ref", ref, "commit", hash)
		return hash, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}

	g.logger.Info("cloning source", "remote", remote, "ref", ref)
	repo, err := g.clone(ctx, remote, plumbing.NewTagReferenceName(ref), dir)
	if errors.Is(err, git.NoMatchingRefSpecError{}) {
		os.RemoveAll(dir)
		repo, err = g.clone(ctx, remote, plumbing.NewBranchReferenceName(ref), dir)
	}
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("clone %s@%s: %w", remote, ref, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("clone %s@%s: %w", remote, ref, err)
	}
	return head.Hash().String(), nil
}

func (g *gitFetcher) clone(ctx context.Context, remote string, ref plumbing.ReferenceName, dir string) (*git.Repository, error) {
	return git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: ref,
		SingleBranch:  true,
		Depth:         g.depth,
		Progress:      g.progress,
	})
}

// current reports whether dir already holds a checkout of ref.
func (g *gitFetcher) current(ref, dir string) (string, bool) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", false
	}
	head, err := repo.Head()
	if err != nil {
		return "", false
	}
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewTagReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
	} {
		hash, err := repo.ResolveRevision(plumbing.Revision(name))
		if err == nil && *hash == head.Hash() {
			return hash.String(), true
		}
	}
	return "", false
}
