// Package git restricts reports to code that changed since a base revision.
package git

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-hclog"
	"github.com/sourcegraph/go-diff/diff"
)

// Changes records which lines are new relative to a base revision.
// Files modified or untracked in the worktree count as entirely new.
type Changes struct {
	root  string
	added map[string]map[int]string
	dirty map[string]bool
}

// NewFromRev collects the lines added between rev and HEAD in the repository
// enclosing path, plus the files changed in the worktree.
func NewFromRev(path, rev string, logger hclog.Logger) (*Changes, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if rev == "" {
		return nil, ErrEmptyRevision
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	root, err := findGitRepositoryPath(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %q: %w", root, err)
	}

	baseHash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoHead, err)
	}

	baseCommit, err := repo.CommitObject(*baseHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load base commit %s: %w", baseHash, err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load head commit %s: %w", head.Hash(), err)
	}

	added, err := AddedLines(baseCommit, headCommit)
	if err != nil {
		return nil, err
	}

	dirty, err := dirtyFiles(repo)
	if err != nil {
		return nil, err
	}

	logger.Debug("collected changes", "root", root, "base", baseHash.String(), "head", head.Hash().String(),
		"files_with_additions", len(added), "dirty_files", len(dirty))
	return &Changes{root: root, added: added, dirty: dirty}, nil
}

// Root returns the repository root.
func (c *Changes) Root() string { return c.root }

// Contains reports whether line of path is new. Paths outside the repository
// are never new.
func (c *Changes) Contains(path string, line int) bool {
	rel, ok := relativeTo(c.root, path)
	if !ok {
		return false
	}
	if c.dirty[rel] {
		return true
	}
	_, ok = c.added[rel][line]
	return ok
}

// AddedLines returns, for every file touched between base and head, a map of
// new-file line numbers to the added text. Line numbers are 1-based; deleted
// files are skipped.
func AddedLines(base, head *object.Commit) (map[string]map[int]string, error) {
	baseTree, err := base.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load base tree: %w", err)
	}
	headTree, err := head.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load head tree: %w", err)
	}

	patch, err := baseTree.Patch(headTree)
	if err != nil {
		return nil, fmt.Errorf("failed to compute diff: %w", err)
	}

	parsed, err := diff.ParseMultiFileDiff([]byte(patch.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	result := make(map[string]map[int]string)
	for _, fd := range parsed {
		if fd == nil || fd.NewName == "/dev/null" || len(fd.Hunks) == 0 {
			continue
		}

		added := make(map[int]string)
		for _, h := range fd.Hunks {
			if h == nil {
				continue
			}
			lineNo := int(h.NewStartLine)
			if lineNo <= 0 {
				lineNo = 1
			}
			for _, bodyLine := range bytes.Split(h.Body, []byte("\n")) {
				if len(bodyLine) == 0 {
					continue
				}
				switch bodyLine[0] {
				case '+':
					added[lineNo] = string(bodyLine[1:])
					lineNo++
				case '-', '\\':
				default:
					lineNo++
				}
			}
		}

		if len(added) > 0 {
			result[strings.TrimPrefix(fd.NewName, "b/")] = added
		}
	}
	return result, nil
}

func dirtyFiles(repo *git.Repository) (map[string]bool, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status: %w", err)
	}

	dirty := make(map[string]bool)
	for path, st := range status {
		if st.Worktree == git.Deleted || st.Staging == git.Deleted {
			continue
		}
		if st.Worktree != git.Unmodified || st.Staging != git.Unmodified {
			dirty[filepath.ToSlash(path)] = true
		}
	}
	return dirty, nil
}
