package automerge

import (
	"context"

	"github.com/simplesurance/automerger/internal/githubclt"
)

//go:generate mockgen -destination=mocks/mock_githubclient.go -package=mocks . GithubClient

// GithubClient are the GitHub API operations the Engine uses.
type GithubClient interface {
	PullRequestState(ctx context.Context, owner, repo string, pullRequestNumber int) (*githubclt.PullRequestState, error)
	BranchProtection(ctx context.Context, owner, repo, branch string) (*githubclt.BranchProtection, error)
	MergePullRequest(ctx context.Context, owner, repo string, pullRequestNumber int, opts *githubclt.MergeOptions) error
	ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*githubclt.IssueComment, error)
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
	UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, comment string) error
}
