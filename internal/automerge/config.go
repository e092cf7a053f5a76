package automerge

import (
	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/retry"
)

// Config is the configuration of an Engine.
type Config struct {
	// DryRun disables merging, a preview comment is posted instead.
	DryRun bool
	// MergeOn is the policy that is applied when pull requests are
	// labelled automatically.
	MergeOn Policy
	// MergeMethod is used when a pull request has no valid merge method
	// label.
	MergeMethod githubclt.MergeMethod
	// Authors restricts auto-merge to pull requests of the users. When it
	// is empty pull requests of all users are considered.
	Authors []string
	// RequiredChecks are the names of the checks that must succeed. When it
	// is empty all checks must succeed.
	RequiredChecks []string
	// SettingsURL is linked in dry-run preview comments.
	SettingsURL string
	// CommentAuthor is the GitHub login the comments are created with.
	// Only marker comments of this user are updated. When it is empty
	// marker comments of all users are.
	CommentAuthor string
	// Retry configures the polling of asynchronously computed pull request
	// fields.
	Retry retry.Policy
}

// DefaultConfig returns a Config with the default settings.
func DefaultConfig() *Config {
	return &Config{
		DryRun:      true,
		MergeOn:     PolicyOnApprove,
		MergeMethod: githubclt.MergeMethodMerge,
		Retry:       retry.DefaultPolicy(),
	}
}

func (c *Config) isAllowedAuthor(login string) bool {
	if len(c.Authors) == 0 {
		return true
	}

	for _, a := range c.Authors {
		if a == login {
			return true
		}
	}

	return false
}
