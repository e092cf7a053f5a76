// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/automerger/internal/logfields"
	"github.com/simplesurance/automerger/internal/retry"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

var (
	ErrBranchNotProtected = errors.New("branch is not protected")
	ErrNotMerged          = errors.New("pull request was not merged")
)

// New returns a new github api client.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is an github API client.
// All methods return a retry.RetryableError when an operation can be retried.
// This can be e.g. the case when the API ratelimit is exceeded.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

// PullRequestState fetches the current state of a pull request.
// Mergeable and MergeableState are computed asynchronously by GitHub, they
// might not be known yet.
func (clt *Client) PullRequestState(ctx context.Context, owner, repo string, pullRequestNumber int) (*PullRequestState, error) {
	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, pullRequestNumber)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	return &PullRequestState{
		State:          pr.GetState(),
		Labels:         labels,
		Mergeable:      pr.Mergeable,
		MergeableState: pr.GetMergeableState(),
		HeadSHA:        pr.GetHead().GetSHA(),
	}, nil
}

// BranchProtection returns the protection rule of a branch.
// If the branch has no protection rule ErrBranchNotProtected is returned.
func (clt *Client) BranchProtection(ctx context.Context, owner, repo, branch string) (*BranchProtection, error) {
	p, _, err := clt.restClt.Repositories.GetBranchProtection(ctx, owner, repo, branch)
	if err != nil {
		if errors.Is(err, github.ErrBranchNotProtected) {
			return nil, ErrBranchNotProtected
		}

		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", ErrBranchNotProtected, err)
		}

		return nil, clt.wrapRetryableErrors(err)
	}

	result := BranchProtection{
		Branch:               branch,
		RequiresStatusChecks: p.GetRequiredStatusChecks() != nil,
	}

	if r := p.GetRequiredPullRequestReviews(); r != nil {
		result.RequiredApprovingReviewCount = r.RequiredApprovingReviewCount
	}

	if a := p.GetEnforceAdmins(); a != nil {
		result.EnforceAdmins = a.Enabled
	}

	return &result, nil
}

// MergePullRequest merges a pull request with the given options.
// If GitHub responds that the pull request was not merged, an error
// wrapping ErrNotMerged is returned.
func (clt *Client) MergePullRequest(ctx context.Context, owner, repo string, pullRequestNumber int, opts *MergeOptions) error {
	result, _, err := clt.restClt.PullRequests.Merge(
		ctx,
		owner,
		repo,
		pullRequestNumber,
		opts.CommitMessage,
		&github.PullRequestOptions{
			CommitTitle: opts.CommitTitle,
			SHA:         opts.SHA,
			MergeMethod: string(opts.Method),
		},
	)
	if err != nil {
		return clt.wrapRetryableErrors(err)
	}

	if !result.GetMerged() {
		return fmt.Errorf("%w: %s", ErrNotMerged, result.GetMessage())
	}

	clt.logger.Debug("pull request merged",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(pullRequestNumber),
		logfields.MergeMethod(string(opts.Method)),
		logfields.Commit(result.GetSHA()),
		logfields.Event("github_pull_request_merged"),
	)

	return nil
}

// ListIssueComments returns all comments of an issue or pull request.
func (clt *Client) ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*IssueComment, error) {
	var result []*IssueComment

	opts := github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100, Page: 1},
	}

	for {
		comments, resp, err := clt.restClt.Issues.ListComments(ctx, owner, repo, issueOrPRNr, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, c := range comments {
			result = append(result, &IssueComment{
				ID:     c.GetID(),
				Body:   c.GetBody(),
				Author: c.GetUser().GetLogin(),
			})
		}

		if resp.NextPage == 0 || len(comments) == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// CreateIssueComment creates a comment in a issue or pull request
func (clt *Client) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	_, _, err := clt.restClt.Issues.CreateComment(ctx, owner, repo, issueOrPRNr, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

// UpdateIssueComment replaces the body of an existing issue or pull request
// comment.
func (clt *Client) UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, comment string) error {
	_, _, err := clt.restClt.Issues.EditComment(ctx, owner, repo, commentID, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

// AddLabels adds labels to a Pull-Request or Issue.
func (clt *Client) AddLabels(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, labels []string) error {
	if len(labels) == 0 {
		// by default github removes all labels when none is provided,
		// we do not need this functionality, as safe guard fail if
		// because of a bug an empty label list is passed:
		return errors.New("provided label list is empty")
	}

	for _, l := range labels {
		if l == "" {
			return errors.New("provided label is empty")
		}
	}

	_, _, err := clt.restClt.Issues.AddLabelsToIssue(ctx, owner, repo, pullRequestOrIssueNumber, labels)
	return clt.wrapRetryableErrors(err)
}

// EnsureLabel creates a repository label if it does not exist.
// It returns true if the label was created.
func (clt *Client) EnsureLabel(ctx context.Context, owner, repo, name, color, description string) (created bool, err error) {
	_, _, err = clt.restClt.Issues.GetLabel(ctx, owner, repo, name)
	if err == nil {
		return false, nil
	}

	if !isNotFound(err) {
		return false, clt.wrapRetryableErrors(err)
	}

	_, _, err = clt.restClt.Issues.CreateLabel(ctx, owner, repo, &github.Label{
		Name:        &name,
		Color:       &color,
		Description: &description,
	})
	if err != nil {
		return false, clt.wrapRetryableErrors(err)
	}

	clt.logger.Debug("label created",
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Label(name),
		logfields.Event("github_label_created"),
	)

	return true, nil
}

// DeleteLabel deletes a repository label.
// If the label does not exist, the operation succeeds.
func (clt *Client) DeleteLabel(ctx context.Context, owner, repo, name string) error {
	_, err := clt.restClt.Issues.DeleteLabel(ctx, owner, repo, name)
	if err != nil {
		if isNotFound(err) {
			clt.logger.Debug("deleting label returned a not found response, interpreting it as success",
				logfields.RepositoryOwner(owner),
				logfields.Repository(repo),
				logfields.Label(name),
				logfields.Event("github_delete_label_returned_not_found"),
				zap.Error(err),
			)

			return nil
		}

		return clt.wrapRetryableErrors(err)
	}

	return nil
}

// AuthenticatedUserLogin returns the login of the user the API token
// belongs to.
func (clt *Client) AuthenticatedUserLogin(ctx context.Context) (string, error) {
	user, _, err := clt.restClt.Users.Get(ctx, "")
	if err != nil {
		return "", clt.wrapRetryableErrors(err)
	}

	return user.GetLogin(), nil
}

// RepositoryMergeSettings returns which merge methods are enabled for a
// repository.
func (clt *Client) RepositoryMergeSettings(ctx context.Context, owner, repo string) (*RepositoryMergeSettings, error) {
	r, _, err := clt.restClt.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	return &RepositoryMergeSettings{
		AllowMergeCommit: r.GetAllowMergeCommit(),
		AllowRebaseMerge: r.GetAllowRebaseMerge(),
		AllowSquashMerge: r.GetAllowSquashMerge(),
	}, nil
}

// OpenPullRequestsForCommit returns the numbers of the open pull requests
// that contain the commit.
func (clt *Client) OpenPullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]int, error) {
	var result []int

	opts := github.ListOptions{PerPage: 100, Page: 1}

	for {
		prs, resp, err := clt.restClt.PullRequests.ListPullRequestsWithCommit(ctx, owner, repo, sha, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, pr := range prs {
			if pr.GetState() != PullRequestStateOpen {
				continue
			}

			result = append(result, pr.GetNumber())
		}

		if resp.NextPage == 0 || len(prs) == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

func isNotFound(err error) bool {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound
	}

	return false
}

func (clt *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return retry.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		clt.logger.Info(
			"secondary rate limit exceeded",
			logfields.Event("github_api_secondary_rate_limit_exceeded"),
			zap.Duration("github_api_retry_after", v.GetRetryAfter()),
		)

		return retry.NewRetryableError(err, time.Now().Add(v.GetRetryAfter()))

	case *github.ErrorResponse:
		if v.Response != nil && v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return retry.NewRetryableAnytimeError(err)
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return retry.NewRetryableAnytimeError(err)
	}

	return err
}
