package manifest

import "strings"

// Status is a pipeline label for a single resume file.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPassed     Status = "passed"
	StatusExceeds    Status = "exceeds"
	StatusElite      Status = "elite"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
)

// reviewedPrefix marks a manually reviewed entry; the remainder of the
// label after the '#' is a free-text single-line comment.
const reviewedPrefix = "reviewed#"

// maxReviewComment bounds the free-text comment of a reviewed label.
const maxReviewComment = 255

// Reviewed builds a reviewed#<comment> label. The comment is flattened to a
// single line and truncated to 255 characters.
func Reviewed(comment string) Status {
	comment = strings.ReplaceAll(comment, "\n", " ")
	comment = strings.ReplaceAll(comment, "\r", " ")
	comment = strings.TrimSpace(comment)
	if len(comment) > maxReviewComment {
		comment = comment[:maxReviewComment]
	}
	return Status(reviewedPrefix + comment)
}

// IsReviewed reports whether s is a reviewed#<comment> label.
func (s Status) IsReviewed() bool {
	return strings.HasPrefix(string(s), reviewedPrefix)
}

// ReviewComment returns the free-text comment of a reviewed label, or "".
func (s Status) ReviewComment() string {
	if !s.IsReviewed() {
		return ""
	}
	return string(s)[len(reviewedPrefix):]
}

// Valid reports whether s is one of the closed label tokens or a reviewed
// variant. Unknown tokens come from hand-edited or corrupted manifests.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPassed, StatusExceeds, StatusElite, StatusRejected, StatusFailed:
		return true
	}
	return s.IsReviewed()
}

// Terminal reports whether s is a final label. Terminal entries are never
// re-admitted to the analysis queue.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusExceeds, StatusElite, StatusRejected, StatusFailed:
		return true
	case StatusPending, StatusInProgress:
		return false
	}
	return s.IsReviewed()
}
