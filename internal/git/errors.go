package git

import "errors"

var (
	ErrNotRepository = errors.New("path is not inside a git repository")
	ErrNoHead        = errors.New("repository has no HEAD commit")
	ErrEmptyRevision = errors.New("base revision is required to compute changes")
)
