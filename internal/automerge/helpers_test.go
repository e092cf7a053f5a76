package automerge

import (
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/automerger/internal/automerge/mocks"
	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/retry"
)

const (
	repoOwner = "testman"
	repo      = "repo"
	prNumber  = 12
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Retry = retry.Policy{
		Attempts:        3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}

	return cfg
}

func newTestEngine(t *testing.T, cfg *Config) (*Engine, *mocks.MockGithubClient) {
	t.Helper()

	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	return NewEngine(clt, cfg), clt
}

func newPR(labels ...string) *githubclt.PullRequest {
	pr := githubclt.PullRequest{
		Owner:      repoOwner,
		Repository: repo,
		Number:     prNumber,
		URL:        "https://github.com/testman/repo/pull/12",
		State:      githubclt.PullRequestStateOpen,
		Author:     "alice",
		Title:      "add feature",
		BaseBranch: "main",
		Head:       githubclt.Head{SHA: "abc123"},
	}

	for _, l := range labels {
		pr.Labels = append(pr.Labels, &githubclt.Label{Name: l})
	}

	return &pr
}

func approved(by ...string) *githubclt.Review {
	return &githubclt.Review{State: githubclt.ReviewStateApproved, By: by}
}

func status(context string, state githubclt.CIStatus) *githubclt.Status {
	return &githubclt.Status{Context: context, State: state}
}

func completedRun(name string, id int64, conclusion githubclt.CheckRunConclusion) *githubclt.CheckRun {
	return &githubclt.CheckRun{
		Name:       name,
		CheckRunID: id,
		Status:     githubclt.CheckRunStatusCompleted,
		Conclusion: conclusion,
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func mockPullRequestState(clt *mocks.MockGithubClient, state *githubclt.PullRequestState) *gomock.Call {
	return clt.
		EXPECT().
		PullRequestState(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
		Return(state, nil)
}

func mockLabelRefresh(clt *mocks.MockGithubClient, labels ...string) *gomock.Call {
	return mockPullRequestState(clt, &githubclt.PullRequestState{
		State:  githubclt.PullRequestStateOpen,
		Labels: labels,
	})
}

func mockMergeable(clt *mocks.MockGithubClient, mergeable *bool) *gomock.Call {
	return mockPullRequestState(clt, &githubclt.PullRequestState{
		State:     githubclt.PullRequestStateOpen,
		Mergeable: mergeable,
	})
}

func mockBranchNotProtected(clt *mocks.MockGithubClient) *gomock.Call {
	return clt.
		EXPECT().
		BranchProtection(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq("main")).
		Return(nil, githubclt.ErrBranchNotProtected)
}

func mockBranchProtected(clt *mocks.MockGithubClient) *gomock.Call {
	return clt.
		EXPECT().
		BranchProtection(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq("main")).
		Return(&githubclt.BranchProtection{Branch: "main", RequiredApprovingReviewCount: 1}, nil)
}
