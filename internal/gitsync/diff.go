package gitsync

import (
	"io"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// fileChange is one file that differs between the last-processed HEAD and
// the current one.
type fileChange struct {
	Path    string
	Deleted bool
}

// diffCommits computes the file-level changes between two commits. When
// fromCommit is nil (no prior sync recorded for this repo), every file in
// toCommit's tree is reported as changed, so a first sync indexes the whole
// repository.
func diffCommits(fromCommit, toCommit *object.Commit) ([]fileChange, error) {
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, err
	}
	if fromCommit == nil {
		return fullTree(toTree)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, err
	}

	out := make([]fileChange, 0, len(changes))
	for _, c := range changes {
		action, err := c.Action()
		if err != nil {
			return nil, err
		}
		switch action {
		case merkletrie.Insert, merkletrie.Modify:
			out = append(out, fileChange{Path: c.To.Name})
		case merkletrie.Delete:
			out = append(out, fileChange{Path: c.From.Name, Deleted: true})
		}
	}
	return out, nil
}

func fullTree(tree *object.Tree) ([]fileChange, error) {
	var out []fileChange
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if entry.Mode.IsFile() {
			out = append(out, fileChange{Path: name})
		}
	}
	return out, nil
}
