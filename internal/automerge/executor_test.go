package automerge

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/simplesurance/automerger/internal/githubclt"
)

func TestMergeMethodFor(t *testing.T) {
	cfg := testConfig()
	cfg.MergeMethod = githubclt.MergeMethodMerge

	pr := newPR(PolicyOnApprove.Label(), MethodLabel(githubclt.MergeMethodSquash))
	assert.Equal(t, githubclt.MergeMethodSquash, MergeMethodFor(pr, cfg), "label must have precedence")

	pr = newPR("auto-merge-method:fast-forward")
	assert.Equal(t, githubclt.MergeMethodMerge, MergeMethodFor(pr, cfg), "invalid label must fall back to configuration")

	pr = newPR("auto-merge-method:REBASE")
	assert.Equal(t, githubclt.MergeMethodRebase, MergeMethodFor(pr, cfg))

	cfg.MergeMethod = githubclt.MergeMethodRebase
	assert.Equal(t, githubclt.MergeMethodRebase, MergeMethodFor(newPR(), cfg))

	assert.Equal(t, githubclt.MergeMethodMerge, MergeMethodFor(newPR(), &Config{}))
}

func TestCommitDetails(t *testing.T) {
	pr := newPR()
	pr.Commits = []*githubclt.Commit{{Message: "one"}, {Message: "two"}}
	pr.Reviews = []*githubclt.Review{approved("bob")}

	title, msg := CommitDetails(githubclt.MergeMethodMerge, pr, nil, nil)
	assert.Equal(t, "Auto-merge pull request #12 from testman/repo", title)
	assert.Equal(t, "add feature\n\nPull request auto merged:\n\n* 1 approved review by @bob\n* No checks", msg)

	title, msg = CommitDetails(githubclt.MergeMethodSquash, pr, nil, nil)
	assert.Equal(t, "add feature (#12)", title)
	assert.Equal(t, " * one\n * two\n\nPull request auto merged:\n\n* 1 approved review by @bob\n* No checks", msg)

	title, msg = CommitDetails(githubclt.MergeMethodRebase, pr, nil, nil)
	assert.Empty(t, title)
	assert.Empty(t, msg)
}

func TestFooter(t *testing.T) {
	pr := newPR()
	pr.Reviews = []*githubclt.Review{
		approved("bob"),
		approved("carol", "dave"),
		{State: githubclt.ReviewStateCommented, By: []string{"eve"}},
	}
	pr.Head.Statuses = []*githubclt.Status{
		status("ci/build", githubclt.CIStatusSuccess),
		status("ci/lint", githubclt.CIStatusSuccess),
		status("ci/e2e", githubclt.CIStatusFailure),
	}

	protection := githubclt.BranchProtection{Branch: "main"}

	assert.Equal(t,
		"* Branch protection rule for branch `main` passed\n"+
			"* 2 approved reviews by @bob, @carol, @dave\n"+
			"* 2 successful checks",
		Footer(pr, &protection, nil),
	)

	assert.Equal(t,
		"* 2 approved reviews by @bob, @carol, @dave\n* 1 successful check",
		Footer(pr, nil, []string{"ci/build"}),
	)

	assert.Equal(t, "* No reviews\n* No checks", Footer(newPR(), nil, nil))
}

func TestExecuteMergeNotMergeable(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())
	mockMergeable(clt, boolPtr(false))

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Equal(t, CodeHandled, res.Code)
	assert.False(t, res.Hidden())
	assert.Contains(t, res.Reason, "can't be merged at this time")
}

func TestExecuteMergeWaitsForMergeability(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false

	e, clt := newTestEngine(t, cfg)
	gomock.InOrder(
		mockMergeable(clt, nil),
		mockMergeable(clt, boolPtr(true)),
		clt.EXPECT().
			MergePullRequest(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
			Return(nil),
		clt.EXPECT().
			CreateIssueComment(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
			Return(nil),
	)

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Contains(t, res.Reason, "auto-merged")
}

func TestExecuteMergeMergeabilityUndetermined(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false

	e, clt := newTestEngine(t, cfg)
	mockMergeable(clt, nil).Times(cfg.Retry.Attempts)

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Equal(t, CodeHandled, res.Code)
	assert.Contains(t, res.Reason, "can't be merged at this time")
}

func TestExecuteMergeErrorIsNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false

	e, clt := newTestEngine(t, cfg)
	mockMergeable(clt, boolPtr(true))
	clt.EXPECT().
		MergePullRequest(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
		Return(errors.New("405 Method Not Allowed"))

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Equal(t, CodeHandled, res.Code)
	assert.Equal(t, "Pull request [testman/repo#12](https://github.com/testman/repo/pull/12) not auto-merged because it can't be merged at this time", res.Reason)
}

func TestExecuteMergeUsesMethodAndCommitDetails(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false
	cfg.MergeMethod = githubclt.MergeMethodMerge

	e, clt := newTestEngine(t, cfg)

	pr := newPR(PolicyOnApprove.Label(), MethodLabel(githubclt.MergeMethodSquash))
	pr.Commits = []*githubclt.Commit{{Message: "one"}}

	mockMergeable(clt, boolPtr(true))
	clt.EXPECT().
		MergePullRequest(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int, opts *githubclt.MergeOptions) error {
			assert.Equal(t, githubclt.MergeMethodSquash, opts.Method)
			assert.Equal(t, "add feature (#12)", opts.CommitTitle)
			assert.Contains(t, opts.CommitMessage, " * one")
			assert.Equal(t, "abc123", opts.SHA)
			return nil
		})
	clt.EXPECT().
		CreateIssueComment(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int, body string) error {
			assert.Contains(t, body, "Pull request auto merged:")
			assert.Contains(t, body, Marker)
			return nil
		})

	res := e.ExecuteMerge(context.Background(), pr, nil)
	assert.Equal(t, "Pull request [testman/repo#12](https://github.com/testman/repo/pull/12) auto-merged", res.Reason)
}

func TestExecuteMergeCommentFailureAfterMerge(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = false

	e, clt := newTestEngine(t, cfg)
	mockMergeable(clt, boolPtr(true))
	clt.EXPECT().
		MergePullRequest(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
		Return(nil)
	clt.EXPECT().
		CreateIssueComment(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
		Return(errors.New("comment failed"))

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Contains(t, res.Reason, "auto-merged")
}

func TestDryRunUpdatesExistingPreviewComment(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	cfg.SettingsURL = "https://example.com/settings"

	e, clt := newTestEngine(t, cfg)

	comments := []*githubclt.IssueComment{
		{ID: 3, Body: "lgtm"},
		{ID: 5, Body: "Pull request ready to be auto-merged:\n<!-- " + Marker + " -->"},
	}

	mockMergeable(clt, boolPtr(true)).Times(2)
	clt.EXPECT().
		ListIssueComments(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return(comments, nil).
		Times(2)
	clt.EXPECT().
		UpdateIssueComment(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(int64(5)), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int64, body string) error {
			assert.Contains(t, body, "Pull request ready to be auto-merged:")
			assert.Contains(t, body, "(https://example.com/settings)")
			assert.Contains(t, body, Marker)
			return nil
		}).
		Times(2)

	for i := 0; i < 2; i++ {
		res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
		assert.Equal(t, "Pull request [testman/repo#12](https://github.com/testman/repo/pull/12) ready to be auto-merged", res.Reason)
	}
}

func TestDryRunCreatesPreviewComment(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())

	mockMergeable(clt, boolPtr(true))
	clt.EXPECT().
		ListIssueComments(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return([]*githubclt.IssueComment{{ID: 3, Body: "lgtm"}}, nil)
	clt.EXPECT().
		CreateIssueComment(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int, body string) error {
			assert.Contains(t, body, "dry_run = false")
			assert.Contains(t, body, Marker)
			return nil
		})

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Contains(t, res.Reason, "ready to be auto-merged")
}

func TestDryRunListingCommentsFails(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())

	mockMergeable(clt, boolPtr(true))
	clt.EXPECT().
		ListIssueComments(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return(nil, errors.New("error"))

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Equal(t, CodeHandled, res.Code)
	assert.Contains(t, res.Reason, "can't be merged at this time")
}

func TestDryRunIgnoresMarkerCommentsOfOtherUsers(t *testing.T) {
	cfg := testConfig()
	cfg.CommentAuthor = "automerger-bot"

	e, clt := newTestEngine(t, cfg)

	comments := []*githubclt.IssueComment{
		{ID: 3, Author: "alice", Body: "why does it say " + Marker + "?"},
		{ID: 5, Author: "automerger-bot", Body: "Pull request ready to be auto-merged:\n<!-- " + Marker + " -->"},
	}

	mockMergeable(clt, boolPtr(true))
	clt.EXPECT().
		ListIssueComments(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return(comments, nil)
	clt.EXPECT().
		UpdateIssueComment(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(int64(5)), gomock.Any()).
		Return(nil)

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Contains(t, res.Reason, "ready to be auto-merged")
}

func TestDryRunCreatesPreviewWhenOnlyOtherUsersQuoteMarker(t *testing.T) {
	cfg := testConfig()
	cfg.CommentAuthor = "automerger-bot"

	e, clt := newTestEngine(t, cfg)

	mockMergeable(clt, boolPtr(true))
	clt.EXPECT().
		ListIssueComments(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return([]*githubclt.IssueComment{{ID: 3, Author: "alice", Body: Marker}}, nil)
	clt.EXPECT().
		CreateIssueComment(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber), gomock.Any()).
		Return(nil)

	res := e.ExecuteMerge(context.Background(), newPR(PolicyOnApprove.Label()), nil)
	assert.Contains(t, res.Reason, "ready to be auto-merged")
}
