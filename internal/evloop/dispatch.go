package evloop

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/automerge"
	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
	"github.com/simplesurance/automerger/internal/provider/github"
)

// evaluation is a result of processing an event, with the identification
// of the repository and pull request it belongs to.
type evaluation struct {
	*automerge.Result
	owner string
	repo  string
	// prNumber is 0 when the result is aggregated over multiple pull
	// requests.
	prNumber int
}

// pullRequestActions are the actions of pull_request events that can
// change the outcome of an evaluation.
var pullRequestActions = map[string]struct{}{
	"opened":           {},
	"reopened":         {},
	"synchronize":      {},
	"edited":           {},
	"labeled":          {},
	"ready_for_review": {},
	"closed":           {},
}

// dispatch evaluates the pull requests affected by the event.
// It returns nil when the event is not relevant.
func (e *EvLoop) dispatch(ctx context.Context, logger *zap.Logger, ev *github.Event) []*evaluation {
	switch event := ev.Event.(type) {
	case *gogithub.PullRequestEvent:
		return e.onPullRequest(ctx, logger, event)

	case *gogithub.PullRequestReviewEvent:
		if event.GetAction() != "submitted" {
			return nil
		}

		owner, repo := repositoryName(event.GetRepo())
		return []*evaluation{e.evaluatePullRequests(ctx, logger, owner, repo, []int{event.GetPullRequest().GetNumber()})}

	case *gogithub.StatusEvent:
		owner, repo := repositoryName(event.GetRepo())
		return []*evaluation{e.evaluateCommit(ctx, logger, owner, repo, event.GetSHA(), nil)}

	case *gogithub.CheckSuiteEvent:
		if event.GetAction() != "completed" {
			return nil
		}

		owner, repo := repositoryName(event.GetRepo())
		suite := event.GetCheckSuite()
		return []*evaluation{e.evaluateCommit(ctx, logger, owner, repo, suite.GetHeadSHA(), suite.PullRequests)}

	case *gogithub.CheckRunEvent:
		if event.GetAction() != "completed" {
			return nil
		}

		owner, repo := repositoryName(event.GetRepo())
		run := event.GetCheckRun()
		return []*evaluation{e.evaluateCommit(ctx, logger, owner, repo, run.GetHeadSHA(), run.PullRequests)}

	default:
		return nil
	}
}

func (e *EvLoop) onPullRequest(ctx context.Context, logger *zap.Logger, event *gogithub.PullRequestEvent) []*evaluation {
	if _, ok := pullRequestActions[event.GetAction()]; !ok {
		return nil
	}

	owner, repo := repositoryName(event.GetRepo())
	payloadPR := toPullRequest(owner, repo, event.GetPullRequest())

	logger = logger.With(payloadPR.LogFields()...)

	// closed pull requests are not retrieved, the evaluator ignores them
	if payloadPR.State != githubclt.PullRequestStateOpen {
		return []*evaluation{{
			Result:   e.evaluator.Evaluate(ctx, payloadPR),
			owner:    owner,
			repo:     repo,
			prNumber: payloadPR.Number,
		}}
	}

	var results []*evaluation

	if event.GetAction() == "opened" && e.converger != nil {
		logger.Debug("labelling opened pull request", logfields.Event("label_convergence_started"))

		results = append(results, &evaluation{
			Result:   e.converger.Converge(ctx, payloadPR),
			owner:    owner,
			repo:     repo,
			prNumber: payloadPR.Number,
		})
	}

	return append(results, e.evaluatePullRequests(ctx, logger, owner, repo, []int{payloadPR.Number}))
}

// evaluateCommit evaluates the open pull requests with the head commit sha.
// When payloadPRs is not empty, the pull requests of the payload are
// evaluated, otherwise they are looked up.
func (e *EvLoop) evaluateCommit(ctx context.Context, logger *zap.Logger, owner, repo, sha string, payloadPRs []*gogithub.PullRequest) *evaluation {
	logger = logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.Commit(sha),
	)

	prNumbers := pullRequestNumbers(payloadPRs)
	if len(prNumbers) == 0 {
		var err error

		prNumbers, err = e.clt.OpenPullRequestsForCommit(ctx, owner, repo, sha)
		if err != nil {
			logger.Warn(
				"retrieving pull requests for commit failed",
				logfields.Event("github_commit_pull_requests_retrieval_failed"),
				zap.Error(err),
			)

			return &evaluation{
				Result: automerge.NewFailureResult(fmt.Sprintf(
					"Pull requests of commit %s in %s/%s not evaluated, retrieving them failed: %s",
					sha, owner, repo, err,
				)),
				owner: owner,
				repo:  repo,
			}
		}
	}

	logger.Debug(
		"evaluating pull requests of commit",
		logfields.Event("commit_pull_requests_evaluating"),
		zap.Ints("github.pull_requests", prNumbers),
	)

	return e.evaluatePullRequests(ctx, logger, owner, repo, prNumbers)
}

// evaluatePullRequests retrieves the pull requests and evaluates them
// sequentially.
func (e *EvLoop) evaluatePullRequests(ctx context.Context, logger *zap.Logger, owner, repo string, prNumbers []int) *evaluation {
	prs := make([]*githubclt.PullRequest, 0, len(prNumbers))
	var failed []*automerge.Result

	for _, nr := range prNumbers {
		pr, err := e.pullRequestSnapshot(ctx, owner, repo, nr)
		if err != nil {
			logger.Warn(
				"retrieving pull request failed",
				logfields.Event("github_pull_request_retrieval_failed"),
				logfields.PullRequest(nr),
				zap.Error(err),
			)

			failed = append(failed, automerge.NewFailureResult(fmt.Sprintf(
				"Pull request %s/%s#%d not evaluated, retrieving it failed: %s",
				owner, repo, nr, err,
			)))

			continue
		}

		prs = append(prs, pr)
	}

	res := &evaluation{owner: owner, repo: repo}
	if len(prNumbers) == 1 {
		res.prNumber = prNumbers[0]
	}

	if len(failed) == 0 {
		res.Result = e.evaluator.EvaluateAll(ctx, prs)
		return res
	}

	if len(prs) == 0 {
		res.Result = automerge.AggregateResults(failed)
		return res
	}

	res.Result = automerge.AggregateResults(append(failed, e.evaluator.EvaluateAll(ctx, prs)))
	return res
}

func (e *EvLoop) pullRequestSnapshot(ctx context.Context, owner, repo string, prNumber int) (*githubclt.PullRequest, error) {
	var pr *githubclt.PullRequest

	_, err := e.poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		var err error

		pr, err = e.clt.PullRequestSnapshot(ctx, owner, repo, prNumber)
		if err != nil {
			return false, err
		}

		return true, nil
	}, []zap.Field{
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.PullRequest(prNumber),
	})
	if err != nil {
		return nil, err
	}

	return pr, nil
}

func repositoryName(repo *gogithub.Repository) (owner, name string) {
	return repo.GetOwner().GetLogin(), repo.GetName()
}

func pullRequestNumbers(prs []*gogithub.PullRequest) []int {
	seen := make(map[int]struct{}, len(prs))
	result := make([]int, 0, len(prs))

	for _, pr := range prs {
		nr := pr.GetNumber()
		if _, exists := seen[nr]; exists || nr == 0 {
			continue
		}

		seen[nr] = struct{}{}
		result = append(result, nr)
	}

	return result
}

// toPullRequest converts the pull request of a webhook payload.
// The payload does not contain reviews, comments, commits and CI signals.
func toPullRequest(owner, repo string, pr *gogithub.PullRequest) *githubclt.PullRequest {
	labels := make([]*githubclt.Label, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, &githubclt.Label{Name: l.GetName()})
	}

	return &githubclt.PullRequest{
		Owner:      owner,
		Repository: repo,
		Number:     pr.GetNumber(),
		URL:        pr.GetHTMLURL(),
		State:      pr.GetState(),
		Author:     pr.GetUser().GetLogin(),
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		BaseBranch: pr.GetBase().GetRef(),
		Head:       githubclt.Head{SHA: pr.GetHead().GetSHA()},
		Labels:     labels,
	}
}
