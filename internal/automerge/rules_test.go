package automerge

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/automerger/internal/githubclt"
)

func TestSelectRules(t *testing.T) {
	testcases := []struct {
		name     string
		labels   []string
		expected []RuleKind
	}{
		{
			name:     "on-approve",
			labels:   []string{PolicyOnApprove.Label()},
			expected: []RuleKind{RuleBranchProtection, RuleReviewApproval, RuleChecks},
		},
		{
			name:     "on-check-success",
			labels:   []string{PolicyOnCheckSuccess.Label()},
			expected: []RuleKind{RuleBranchProtection, RuleChecks},
		},
		{
			name:     "on-bpr-success",
			labels:   []string{PolicyOnBPRSuccess.Label()},
			expected: []RuleKind{RuleBranchProtection},
		},
		{
			name:     "on-approve-and-on-check-success",
			labels:   []string{PolicyOnApprove.Label(), PolicyOnCheckSuccess.Label()},
			expected: []RuleKind{RuleBranchProtection, RuleReviewApproval, RuleChecks},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SelectRules(newPR(tc.labels...)))
		})
	}
}

func TestRuleNames(t *testing.T) {
	assert.Equal(t, "branch protection rule", RuleBranchProtection.String())
	assert.Equal(t, "approved reviews", RuleReviewApproval.String())
	assert.Equal(t, "checks and statuses", RuleChecks.String())
}

func TestReviewsApproved(t *testing.T) {
	pr := newPR()
	assert.False(t, ReviewsApproved(pr), "no reviews")

	pr.Reviews = []*githubclt.Review{approved("bob")}
	assert.True(t, ReviewsApproved(pr))

	pr.Reviews = append(pr.Reviews, &githubclt.Review{State: githubclt.ReviewStateCommented, By: []string{"carol"}})
	assert.False(t, ReviewsApproved(pr), "one review is not an approval")
}

func TestChecksPassedAllChecks(t *testing.T) {
	pr := newPR(PolicyOnCheckSuccess.Label())
	pr.Head.Statuses = []*githubclt.Status{status("ci/build", githubclt.CIStatusSuccess)}
	assert.True(t, ChecksPassed(pr, nil))

	pr.Head.Statuses = append(pr.Head.Statuses, status("ci/test", githubclt.CIStatusPending))
	assert.False(t, ChecksPassed(pr, nil))
}

// A pull request without any check only passes the rule when the on-approve
// policy was requested.
func TestChecksPassedWithoutChecksOnlyForOnApprove(t *testing.T) {
	assert.True(t, ChecksPassed(newPR(PolicyOnApprove.Label()), nil))
	assert.False(t, ChecksPassed(newPR(PolicyOnCheckSuccess.Label()), nil))
}

func TestChecksPassedRequiredChecks(t *testing.T) {
	pr := newPR(PolicyOnCheckSuccess.Label())
	pr.Head.Statuses = []*githubclt.Status{
		status("ci/build", githubclt.CIStatusSuccess),
		status("ci/e2e", githubclt.CIStatusFailure),
	}
	pr.Head.CheckSuites = []*githubclt.CheckSuite{
		{CheckRuns: []*githubclt.CheckRun{completedRun("lint", 1, githubclt.CheckRunConclusionSuccess)}},
	}

	assert.True(t, ChecksPassed(pr, []string{"ci/build", "lint"}), "non-required failing check must be ignored")
	assert.False(t, ChecksPassed(pr, []string{"ci/build", "ci/e2e"}), "required check failed")
	assert.False(t, ChecksPassed(pr, []string{"ci/build", "missing"}), "required check missing")
}

func TestChecksPassedRequiredChecksWithoutChecks(t *testing.T) {
	assert.False(t, ChecksPassed(newPR(PolicyOnApprove.Label()), []string{"ci/build"}))
}

func TestEvaluateRulesDoesNotShortCircuit(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())
	mockBranchNotProtected(clt)

	pr := newPR(PolicyOnApprove.Label())
	pr.Head.Statuses = []*githubclt.Status{status("ci/build", githubclt.CIStatusFailure)}

	failed, protection := e.EvaluateRules(context.Background(), pr)
	assert.Equal(t, []RuleKind{RuleReviewApproval, RuleChecks}, failed)
	assert.Nil(t, protection)
}

func TestEvaluateRulesDeduplicatesRequiredChecks(t *testing.T) {
	cfg := testConfig()
	cfg.RequiredChecks = []string{"ci/build", "ci/build"}

	e, clt := newTestEngine(t, cfg)
	mockBranchNotProtected(clt)

	pr := newPR(PolicyOnCheckSuccess.Label())
	pr.Head.Statuses = []*githubclt.Status{status("ci/build", githubclt.CIStatusSuccess)}

	failed, _ := e.EvaluateRules(context.Background(), pr)
	assert.Empty(t, failed)
}

func TestBranchProtectionRuleUnprotectedBranch(t *testing.T) {
	t.Run("bpr-policy-not-requested", func(t *testing.T) {
		e, clt := newTestEngine(t, testConfig())
		mockBranchNotProtected(clt)

		pr := newPR(PolicyOnCheckSuccess.Label())
		pr.Head.Statuses = []*githubclt.Status{status("ci/build", githubclt.CIStatusSuccess)}

		failed, protection := e.EvaluateRules(context.Background(), pr)
		assert.Empty(t, failed)
		assert.Nil(t, protection)
	})

	t.Run("bpr-policy-requested", func(t *testing.T) {
		e, clt := newTestEngine(t, testConfig())
		mockBranchNotProtected(clt)

		failed, _ := e.EvaluateRules(context.Background(), newPR(PolicyOnBPRSuccess.Label()))
		assert.Equal(t, []RuleKind{RuleBranchProtection}, failed)
	})

	t.Run("retrieval-error-is-treated-as-unprotected", func(t *testing.T) {
		e, clt := newTestEngine(t, testConfig())
		clt.EXPECT().
			BranchProtection(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq("main")).
			Return(nil, errors.New("forbidden"))

		pr := newPR(PolicyOnBPRSuccess.Label())
		pr.Title = "also " + PolicyOnCheckSuccess.Tag()
		pr.Head.Statuses = []*githubclt.Status{status("ci/build", githubclt.CIStatusSuccess)}

		failed, _ := e.EvaluateRules(context.Background(), pr)
		assert.Equal(t, []RuleKind{RuleBranchProtection}, failed)
	})
}

func TestBranchProtectionRuleWaitsForMergeableState(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())
	mockBranchProtected(clt)

	gomock.InOrder(
		mockPullRequestState(clt, &githubclt.PullRequestState{MergeableState: "unknown"}),
		mockPullRequestState(clt, &githubclt.PullRequestState{MergeableState: ""}),
		mockPullRequestState(clt, &githubclt.PullRequestState{MergeableState: "clean"}),
	)

	failed, protection := e.EvaluateRules(context.Background(), newPR(PolicyOnBPRSuccess.Label()))
	assert.Empty(t, failed)
	require.NotNil(t, protection)
	assert.Equal(t, "main", protection.Branch)
}

func TestBranchProtectionRuleMergeableStates(t *testing.T) {
	testcases := []struct {
		state  string
		passes bool
	}{
		{"clean", true},
		{"unstable", true},
		{"has_hooks", true},
		{"blocked", false},
		{"behind", false},
		{"dirty", false},
		{"draft", false},
	}

	for _, tc := range testcases {
		t.Run(tc.state, func(t *testing.T) {
			e, clt := newTestEngine(t, testConfig())
			mockBranchProtected(clt)
			mockPullRequestState(clt, &githubclt.PullRequestState{MergeableState: tc.state})

			failed, protection := e.EvaluateRules(context.Background(), newPR(PolicyOnBPRSuccess.Label()))
			if tc.passes {
				assert.Empty(t, failed)
				assert.NotNil(t, protection)
				return
			}

			assert.Equal(t, []RuleKind{RuleBranchProtection}, failed)
			assert.Nil(t, protection)
		})
	}
}

func TestBranchProtectionRuleFailsWhenMergeableStateStaysUnknown(t *testing.T) {
	cfg := testConfig()
	e, clt := newTestEngine(t, cfg)
	mockBranchProtected(clt)
	mockPullRequestState(clt, &githubclt.PullRequestState{MergeableState: "unknown"}).Times(cfg.Retry.Attempts)

	failed, _ := e.EvaluateRules(context.Background(), newPR(PolicyOnBPRSuccess.Label()))
	assert.Equal(t, []RuleKind{RuleBranchProtection}, failed)
}

func TestBranchProtectionRuleRetriesGithubErrors(t *testing.T) {
	e, clt := newTestEngine(t, testConfig())
	mockBranchProtected(clt)

	gomock.InOrder(
		clt.EXPECT().
			PullRequestState(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq(prNumber)).
			Return(nil, errors.New("connection reset")),
		mockPullRequestState(clt, &githubclt.PullRequestState{MergeableState: "unstable"}),
	)

	failed, _ := e.EvaluateRules(context.Background(), newPR(PolicyOnBPRSuccess.Label()))
	assert.Empty(t, failed)
}
