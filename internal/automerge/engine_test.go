package automerge

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/simplesurance/automerger/internal/githubclt"
)

func TestEvaluateNilPullRequest(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())

	res := e.Evaluate(context.Background(), nil)
	assert.Equal(t, CodeHandled, res.Code)
	assert.True(t, res.Hidden())
	assert.Equal(t, "Pull request missing in incoming event", res.Reason)
}

func TestEvaluateClosedPullRequestDoesNotCallGithub(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())

	pr := newPR(PolicyOnApprove.Label())
	pr.State = githubclt.PullRequestStateClosed

	res := e.Evaluate(context.Background(), pr)
	assert.Equal(t, CodeHandled, res.Code)
	assert.True(t, res.Hidden())
	assert.Equal(t, "Pull request auto-merge ignoring closed [testman/repo#12](https://github.com/testman/repo/pull/12)", res.Reason)
}

func TestEvaluateNotTaggedIsNoop(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())
	mockLabelRefresh(clt, "bug")

	res := e.Evaluate(context.Background(), newPR("bug"))
	assert.Equal(t, CodeHandled, res.Code)
	assert.True(t, res.Hidden())
	assert.Equal(t, "Pull request [testman/repo#12](https://github.com/testman/repo/pull/12) not auto-merged", res.Reason)
}

func TestEvaluateUsesRefreshedLabels(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())
	mockLabelRefresh(clt)

	pr := newPR(PolicyOnApprove.Label())
	res := e.Evaluate(context.Background(), pr)
	assert.True(t, res.Hidden())
	assert.Contains(t, res.Reason, "not auto-merged")

	assert.Equal(t, []string{PolicyOnApprove.Label()}, pr.LabelNames(), "input pull request must not be modified")
}

func TestEvaluateKeepsEventLabelsWhenRefreshFails(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())
	clt.EXPECT().
		PullRequestState(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return(nil, errors.New("timeout"))
	mockBranchNotProtected(clt)

	res := e.Evaluate(context.Background(), newPR(PolicyOnApprove.Label()))
	assert.False(t, res.Hidden())
	assert.Contains(t, res.Reason, "approved reviews")
}

// Open PR with on-approve label, an approved review and a successful check
// is merged when dry-run is disabled.
func TestEvaluateMergesApprovedPullRequest(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	cfg.MergeMethod = githubclt.MergeMethodMerge

	e, clt := newTestEngine(t, cfg)

	pr := newPR(PolicyOnApprove.Label())
	pr.Reviews = []*githubclt.Review{approved("bob")}
	pr.Head.CheckSuites = []*githubclt.CheckSuite{
		{CheckRuns: []*githubclt.CheckRun{completedRun("build", 1, githubclt.CheckRunConclusionSuccess)}},
	}

	gomock.InOrder(
		mockLabelRefresh(clt, PolicyOnApprove.Label()),
		mockBranchNotProtected(clt),
		mockMergeable(clt, boolPtr(true)),
		clt.EXPECT().
			MergePullRequest(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, _ int, opts *githubclt.MergeOptions) error {
				assert.Equal(t, githubclt.MergeMethodMerge, opts.Method)
				assert.Equal(t, "Auto-merge pull request #12 from testman/repo", opts.CommitTitle)
				return nil
			}),
		clt.EXPECT().
			CreateIssueComment(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string, _ int, body string) error {
				assert.Contains(t, body, "* 1 approved review by @bob")
				assert.Contains(t, body, "* 1 successful check")
				return nil
			}),
	)

	res := e.Evaluate(context.Background(), pr)
	assert.Equal(t, CodeHandled, res.Code)
	assert.False(t, res.Hidden())
	assert.Contains(t, res.Reason, "auto-merged")
}

// A pending check fails the on-check-success policy, the PR is not merged.
func TestEvaluatePendingCheckFailsRule(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false

	e, clt := newTestEngine(t, cfg)

	pr := newPR(PolicyOnCheckSuccess.Label())
	pr.Head.CheckSuites = []*githubclt.CheckSuite{
		{CheckRuns: []*githubclt.CheckRun{{Name: "build", CheckRunID: 1, Status: githubclt.CheckRunStatusInProgress}}},
	}

	mockLabelRefresh(clt, PolicyOnCheckSuccess.Label())
	mockBranchNotProtected(clt)

	res := e.Evaluate(context.Background(), pr)
	assert.Equal(t, CodeHandled, res.Code)
	assert.False(t, res.Hidden())
	assert.Equal(t,
		"Pull request auto-merge not enabled for [testman/repo#12](https://github.com/testman/repo/pull/12) because following rules failed: checks and statuses",
		res.Reason,
	)
}

func TestEvaluateReportsAllFailedRules(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())

	pr := newPR(PolicyOnApprove.Label(), PolicyOnBPRSuccess.Label())
	pr.Head.Statuses = []*githubclt.Status{status("ci/build", githubclt.CIStatusFailure)}

	mockLabelRefresh(clt, pr.LabelNames()...)
	mockBranchNotProtected(clt)

	res := e.Evaluate(context.Background(), pr)
	assert.Contains(t, res.Reason, "because following rules failed: branch protection rule, approved reviews, checks and statuses")
}

// Pull requests of users that are not in the allow list are ignored without
// querying github.
func TestEvaluateIgnoresNotAllowedAuthor(t *testing.T) {
	cfg := testConfig()
	cfg.Authors = []string{"alice"}

	e, _ := newTestEngine(t, cfg)

	pr := newPR(PolicyOnApprove.Label())
	pr.Author = "bob"

	res := e.Evaluate(context.Background(), pr)
	assert.Equal(t, CodeHandled, res.Code)
	assert.True(t, res.Hidden())
	assert.Equal(t, "Pull request testman/repo#12 ignored because not authored by any of the configured users", res.Reason)
}

func TestEvaluateAllowedAuthor(t *testing.T) {
	cfg := testConfig()
	cfg.Authors = []string{"bob", "alice"}

	e, clt := newTestEngine(t, cfg)
	mockLabelRefresh(clt)

	res := e.Evaluate(context.Background(), newPR())
	assert.Contains(t, res.Reason, "not auto-merged")
}

func TestEvaluateAllAggregatesResults(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())

	closed := newPR()
	closed.State = githubclt.PullRequestStateClosed

	mockLabelRefresh(clt)

	res := e.EvaluateAll(context.Background(), []*githubclt.PullRequest{closed, newPR()})
	assert.Equal(t, CodeHandled, res.Code)
	assert.True(t, res.Hidden())
	assert.Equal(t,
		"Pull request auto-merge ignoring closed [testman/repo#12](https://github.com/testman/repo/pull/12)\n"+
			"Pull request [testman/repo#12](https://github.com/testman/repo/pull/12) not auto-merged",
		res.Reason,
	)
}

func TestAggregateResults(t *testing.T) {
	res := AggregateResults([]*Result{
		NewHiddenResult("a"),
		NewFailureResult("b"),
		NewResult("c"),
	})

	assert.Equal(t, CodeFailure, res.Code)
	assert.False(t, res.Hidden())
	assert.Equal(t, "a\nb\nc", res.Reason)

	res = AggregateResults(nil)
	assert.Equal(t, CodeHandled, res.Code)
	assert.True(t, res.Hidden())
}
