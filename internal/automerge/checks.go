package automerge

import (
	"github.com/simplesurance/automerger/internal/githubclt"
)

// Check is a commit status or the current check run of a name.
type Check struct {
	Name        string
	Description string
	State       githubclt.CIStatus
	URL         string
	DetailsURL  string
}

// AggregateChecksAndStatus returns the commit statuses and check runs of the
// head commit of the pull request as Checks.
// Statuses come first in their original order, followed per check suite by
// one entry per distinct check run name. Of runs sharing a name only the one
// with the highest id is considered.
func AggregateChecksAndStatus(pr *githubclt.PullRequest) []*Check {
	var result []*Check

	for _, s := range pr.Head.Statuses {
		result = append(result, &Check{
			Name:        s.Context,
			Description: s.Description,
			State:       s.State,
			URL:         s.TargetURL,
		})
	}

	for _, suite := range pr.Head.CheckSuites {
		for _, run := range latestCheckRuns(suite.CheckRuns) {
			result = append(result, &Check{
				Name:        run.Name,
				Description: run.OutputTitle,
				State:       checkRunState(run),
				URL:         run.HTMLURL,
				DetailsURL:  run.DetailsURL,
			})
		}
	}

	return result
}

// latestCheckRuns returns per name the run with the highest id, in the order
// the names first appear in runs.
func latestCheckRuns(runs []*githubclt.CheckRun) []*githubclt.CheckRun {
	var order []string
	latest := map[string]*githubclt.CheckRun{}

	for _, run := range runs {
		cur, exists := latest[run.Name]
		if !exists {
			order = append(order, run.Name)
			latest[run.Name] = run
			continue
		}

		if run.CheckRunID > cur.CheckRunID {
			latest[run.Name] = run
		}
	}

	result := make([]*githubclt.CheckRun, 0, len(order))
	for _, name := range order {
		result = append(result, latest[name])
	}

	return result
}

func checkRunState(run *githubclt.CheckRun) githubclt.CIStatus {
	if run.Status != githubclt.CheckRunStatusCompleted {
		return githubclt.CIStatusPending
	}

	switch run.Conclusion {
	case githubclt.CheckRunConclusionSuccess,
		githubclt.CheckRunConclusionNeutral,
		githubclt.CheckRunConclusionSkipped,
		githubclt.CheckRunConclusionUndefined:
		return githubclt.CIStatusSuccess
	default:
		return githubclt.CIStatusFailure
	}
}
