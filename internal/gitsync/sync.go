package gitsync

import (
	"context"
	"errors"
	"os"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/rs/zerolog/log"

	"compendium/internal/graphrepo"
	"compendium/internal/indexer"
)

// openOrClone clones cfg.URL into cfg.LocalPath if the path doesn't exist
// yet, otherwise opens the existing working tree.
func openOrClone(cfg RepoConfig) (*git.Repository, error) {
	if _, err := os.Stat(cfg.LocalPath); os.IsNotExist(err) {
		log.Info().Str("repo", cfg.Name).Str("url", cfg.URL).Msg("gitsync: cloning repository")
		opts := &git.CloneOptions{URL: cfg.URL}
		if cfg.Branch != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(cfg.Branch)
		}
		return git.PlainClone(cfg.LocalPath, false, opts)
	}
	return git.PlainOpen(cfg.LocalPath)
}

// fetchAndPull brings an existing working tree up to date with its remote,
// treating "already up to date" as success rather than an error.
func fetchAndPull(repo *git.Repository, cfg RepoConfig) error {
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	opts := &git.PullOptions{RemoteName: "origin"}
	if cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(cfg.Branch)
	}
	err = wt.Pull(opts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// syncRepo runs the one-repo sequence: clone-or-pull, diff against the last
// processed HEAD, ingest or delete each changed file, then advance the sync
// state. Per-file failures are logged but never abort the rest of the
// batch; any failure sets the returned error so the caller can mark the
// cycle's last_run_failed.
func syncRepo(ctx context.Context, cfg RepoConfig, ix *indexer.Indexer, graph graphrepo.Repo) error {
	repo, err := openOrClone(cfg)
	if err != nil {
		return err
	}

	if err := fetchAndPull(repo, cfg); err != nil {
		return err
	}

	headRef, err := repo.Head()
	if err != nil {
		return err
	}
	currentHead := headRef.Hash()
	toCommit, err := repo.CommitObject(currentHead)
	if err != nil {
		return err
	}

	var fromCommit *object.Commit
	if lastHead, ok := graph.GetSyncState(ctx, cfg.Name); ok && lastHead != "" {
		if lastHead == currentHead.String() {
			return nil // nothing changed since last sync
		}
		fromCommit, err = repo.CommitObject(plumbing.NewHash(lastHead))
		if err != nil {
			// The recorded HEAD is no longer reachable (rebase/force-push
			// upstream); fall back to a full re-index rather than failing.
			log.Warn().Str("repo", cfg.Name).Str("last_head", lastHead).Msg("gitsync: prior HEAD unresolvable, reindexing fully")
			fromCommit = nil
		}
	}

	changes, err := diffCommits(fromCommit, toCommit)
	if err != nil {
		return err
	}

	toTree, err := toCommit.Tree()
	if err != nil {
		return err
	}

	matcher := loadGitignore(toTree)

	var failed bool
	for _, ch := range changes {
		if !cfg.monitors(ch.Path) {
			continue
		}
		if matcher.Match(strings.Split(ch.Path, "/"), false) {
			continue
		}
		if ch.Deleted {
			if _, err := ix.Delete(ctx, cfg.Tenant, ch.Path); err != nil {
				log.Warn().Err(err).Str("repo", cfg.Name).Str("file_path", ch.Path).Msg("gitsync: delete failed")
				failed = true
			}
			continue
		}
		content, err := readFile(toTree, ch.Path)
		if err != nil {
			log.Warn().Err(err).Str("repo", cfg.Name).Str("file_path", ch.Path).Msg("gitsync: read failed")
			failed = true
			continue
		}
		result, err := ix.Index(ctx, cfg.Tenant, ch.Path, content)
		if err != nil || !result.Success {
			log.Warn().Err(err).Strs("errors", result.Errors).Str("repo", cfg.Name).Str("file_path", ch.Path).Msg("gitsync: index failed")
			failed = true
		}
	}
	if failed {
		return errors.New("gitsync: one or more files failed to process")
	}

	return graph.SetSyncState(ctx, cfg.Name, currentHead.String())
}

func readFile(tree *object.Tree, path string) (string, error) {
	f, err := tree.File(path)
	if err != nil {
		return "", err
	}
	return f.Contents()
}

// loadGitignore reads the repository root's .gitignore, if any, out of tree
// and builds a matcher from it. A missing or unreadable .gitignore yields an
// empty matcher rather than failing the sync.
func loadGitignore(tree *object.Tree) gitignore.Matcher {
	content, err := readFile(tree, ".gitignore")
	if err != nil {
		return gitignore.NewMatcher(nil)
	}
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns)
}
