package automerge

import (
	"strings"

	"github.com/simplesurance/automerger/internal/githubclt"
)

// IsTagged returns true if text contains tag.
func IsTagged(text, tag string) bool {
	return text != "" && strings.Contains(text, tag)
}

// IsPRTagged returns true if auto-merge with the policy was requested for the
// pull request.
// The sources are checked in the order: labels, title and body, comments,
// commit messages.
func IsPRTagged(pr *githubclt.PullRequest, p Policy) bool {
	label := p.Label()
	tag := p.Tag()

	for _, l := range pr.Labels {
		if l.Name == label {
			return true
		}
	}

	if IsTagged(pr.Title, tag) || IsTagged(pr.Body, tag) {
		return true
	}

	for _, c := range pr.Comments {
		if IsTagged(c.Body, tag) {
			return true
		}
	}

	for _, c := range pr.Commits {
		if IsTagged(c.Message, tag) {
			return true
		}
	}

	return false
}

// IsPRAutoMergeEnabled returns true if any merge policy was requested for
// the pull request.
func IsPRAutoMergeEnabled(pr *githubclt.PullRequest) bool {
	for _, p := range Policies {
		if IsPRTagged(pr, p) {
			return true
		}
	}

	return false
}
