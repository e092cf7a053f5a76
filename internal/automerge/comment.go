package automerge

import (
	"fmt"
	"strings"

	"github.com/simplesurance/automerger/internal/githubclt"
)

// Marker identifies comments created by the automerger.
const Marker = "[automerger:github-auto-merge]"

const markerComment = "<!-- " + Marker + " -->"

// reviewSummary returns e.g. "2 approved reviews by @alice, @bob".
func reviewSummary(pr *githubclt.PullRequest) string {
	var cnt int
	var reviewers []string

	for _, r := range pr.Reviews {
		if r.State != githubclt.ReviewStateApproved {
			continue
		}

		cnt++
		for _, by := range r.By {
			reviewers = append(reviewers, "@"+by)
		}
	}

	if cnt == 0 {
		return "No reviews"
	}

	return fmt.Sprintf("%d approved %s by %s", cnt, plural(cnt, "review", "reviews"), strings.Join(reviewers, ", "))
}

// checkSummary returns e.g. "3 successful checks".
// When requiredChecks is not empty, only successful required checks are
// counted.
func checkSummary(pr *githubclt.PullRequest, requiredChecks []string) string {
	if len(pr.Head.Statuses) == 0 && len(pr.Head.CheckSuites) == 0 {
		return "No checks"
	}

	checks := AggregateChecksAndStatus(pr)

	var cnt int
	if len(requiredChecks) > 0 {
		cnt = successfulRequiredChecks(checks, requiredChecks)
	} else {
		for _, c := range checks {
			if c.State == githubclt.CIStatusSuccess {
				cnt++
			}
		}
	}

	return fmt.Sprintf("%d successful %s", cnt, plural(cnt, "check", "checks"))
}

func plural(cnt int, singular, plural string) string {
	if cnt == 1 {
		return singular
	}

	return plural
}

// Footer returns the markdown summary of why the pull request was merged.
func Footer(pr *githubclt.PullRequest, protection *githubclt.BranchProtection, requiredChecks []string) string {
	var sb strings.Builder

	if protection != nil {
		fmt.Fprintf(&sb, "* Branch protection rule for branch `%s` passed\n", pr.BaseBranch)
	}

	fmt.Fprintf(&sb, "* %s\n", reviewSummary(pr))
	fmt.Fprintf(&sb, "* %s", checkSummary(pr, requiredChecks))

	return sb.String()
}

func mergedComment(footer string) string {
	return "Pull request auto merged:\n\n" + footer + "\n" + markerComment
}

func previewComment(footer, settingsURL string) string {
	var hint string
	if settingsURL != "" {
		hint = fmt.Sprintf("To enable auto-merge on this pull request disable the dry-run mode in the [automerger configuration](%s).", settingsURL)
	} else {
		hint = "To enable auto-merge on this pull request disable the dry-run mode by setting `dry_run = false` in the `[automerge]` section of the automerger configuration."
	}

	return "Pull request ready to be auto-merged:\n\n" + footer + "\n\n" + hint + "\n" + markerComment
}

// findMarkerComment returns the first comment containing the Marker.
// When author is not empty, only comments of author are considered.
func findMarkerComment(comments []*githubclt.IssueComment, author string) *githubclt.IssueComment {
	for _, c := range comments {
		if author != "" && c.Author != author {
			continue
		}

		if strings.Contains(c.Body, Marker) {
			return c
		}
	}

	return nil
}
