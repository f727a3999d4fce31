package editor

import "errors"

// Rejections. None of them leave the project modified.
var (
	ErrNoProject        = errors.New("no current project")
	ErrLastPage         = errors.New("you must have at least one page in your project")
	ErrPageNotFound     = errors.New("page not found")
	ErrPageIndex        = errors.New("page index out of range")
	ErrElementNotFound  = errors.New("element not found")
	ErrDuplicateElement = errors.New("element id already used on this page")
	ErrStale            = errors.New("document changed since the operation started")
)

// ErrPersist wraps write-through failures. The in-memory change it accompanies
// has been applied.
var ErrPersist = errors.New("persisting project failed")

// Silent reports whether err is a rejection the UI shows no notice for.
func Silent(err error) bool {
	return errors.Is(err, ErrPageIndex) ||
		errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, ErrPageNotFound) ||
		errors.Is(err, ErrStale)
}
