package automerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/automerger/internal/githubclt"
)

func TestAggregateKeepsLatestRerun(t *testing.T) {
	pr := newPR()
	pr.Head.CheckSuites = []*githubclt.CheckSuite{
		{
			AppSlug: "github-actions",
			CheckRuns: []*githubclt.CheckRun{
				completedRun("build", 1, githubclt.CheckRunConclusionFailure),
				completedRun("build", 2, githubclt.CheckRunConclusionSuccess),
			},
		},
	}

	checks := AggregateChecksAndStatus(pr)
	require.Len(t, checks, 1)
	assert.Equal(t, "build", checks[0].Name)
	assert.Equal(t, githubclt.CIStatusSuccess, checks[0].State)
}

func TestAggregateKeepsLatestRerunIndependentOfOrder(t *testing.T) {
	pr := newPR()
	pr.Head.CheckSuites = []*githubclt.CheckSuite{
		{
			CheckRuns: []*githubclt.CheckRun{
				completedRun("build", 7, githubclt.CheckRunConclusionFailure),
				completedRun("build", 3, githubclt.CheckRunConclusionSuccess),
			},
		},
	}

	checks := AggregateChecksAndStatus(pr)
	require.Len(t, checks, 1)
	assert.Equal(t, githubclt.CIStatusFailure, checks[0].State)
}

func TestAggregateOrdering(t *testing.T) {
	pr := newPR()
	pr.Head.Statuses = []*githubclt.Status{
		status("ci/z", githubclt.CIStatusSuccess),
		status("ci/a", githubclt.CIStatusPending),
	}
	pr.Head.CheckSuites = []*githubclt.CheckSuite{
		{
			CheckRuns: []*githubclt.CheckRun{
				completedRun("test", 10, githubclt.CheckRunConclusionSuccess),
				completedRun("lint", 11, githubclt.CheckRunConclusionSuccess),
				completedRun("test", 12, githubclt.CheckRunConclusionSuccess),
			},
		},
		{
			CheckRuns: []*githubclt.CheckRun{
				completedRun("deploy", 1, githubclt.CheckRunConclusionSuccess),
			},
		},
	}

	checks := AggregateChecksAndStatus(pr)

	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}

	assert.Equal(t, []string{"ci/z", "ci/a", "test", "lint", "deploy"}, names)
	assert.Equal(t, githubclt.CIStatusPending, checks[1].State)
}

func TestCheckRunStateMapping(t *testing.T) {
	testcases := []struct {
		status     githubclt.CheckRunStatus
		conclusion githubclt.CheckRunConclusion
		expected   githubclt.CIStatus
	}{
		{githubclt.CheckRunStatusQueued, githubclt.CheckRunConclusionUndefined, githubclt.CIStatusPending},
		{githubclt.CheckRunStatusInProgress, githubclt.CheckRunConclusionUndefined, githubclt.CIStatusPending},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionSuccess, githubclt.CIStatusSuccess},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionNeutral, githubclt.CIStatusSuccess},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionSkipped, githubclt.CIStatusSuccess},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionUndefined, githubclt.CIStatusSuccess},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionFailure, githubclt.CIStatusFailure},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionCancelled, githubclt.CIStatusFailure},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionTimedOut, githubclt.CIStatusFailure},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionActionRequired, githubclt.CIStatusFailure},
		{githubclt.CheckRunStatusCompleted, githubclt.CheckRunConclusionStale, githubclt.CIStatusFailure},
	}

	for _, tc := range testcases {
		t.Run(string(tc.status)+"/"+string(tc.conclusion), func(t *testing.T) {
			run := githubclt.CheckRun{Name: "x", Status: tc.status, Conclusion: tc.conclusion}
			assert.Equal(t, tc.expected, checkRunState(&run))
		})
	}
}

func TestAggregateWithoutSignals(t *testing.T) {
	assert.Empty(t, AggregateChecksAndStatus(newPR()))
}
