package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Action says what Sync did to the local checkout.
type Action string

const (
	Cloned   Action = "cloned"
	Pulled   Action = "pulled"
	UpToDate Action = "up-to-date"
)

// Result reports the outcome of a Sync.
type Result struct {
	Action Action
	// Head is the commit hash checked out after the sync.
	Head string
}

// Sync makes localPath a checkout of url at its latest commit: it clones when
// the path is missing and pulls otherwise. Remote URLs are cloned shallow.
func Sync(ctx context.Context, logger *slog.Logger, url, localPath string) (Result, error) {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("cloning deck repository", "url", url, "path", localPath)
		opts := &git.CloneOptions{URL: url}
		if isRemote(url) {
			opts.Depth = 1
		}
		repo, err := git.PlainCloneContext(ctx, localPath, false, opts)
		if err != nil {
			return Result{}, fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
		return result(repo, Cloned)
	case err != nil:
		return Result{}, fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
	}

	action := Pulled
	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		action = UpToDate
	case err != nil:
		return Result{}, fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
	}
	logger.Info("deck repository synced", "path", localPath, "action", string(action))
	return result(repo, action)
}

func result(repo *git.Repository, action Action) (Result, error) {
	head, err := repo.Head()
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return Result{Action: action, Head: head.Hash().String()}, nil
}

func isRemote(url string) bool {
	return (strings.Contains(url, "://") && !strings.HasPrefix(url, "file://")) || strings.HasPrefix(url, "git@")
}
