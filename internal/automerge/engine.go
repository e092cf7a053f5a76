package automerge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
	"github.com/simplesurance/automerger/internal/retry"
)

const loggerName = "automerge"

// Engine evaluates pull requests and merges them if all rules of their
// requested policies pass.
// Pull requests are evaluated sequentially per call, an Engine has no
// mutable state and can be used concurrently.
type Engine struct {
	clt    GithubClient
	cfg    *Config
	poller *retry.Poller
	logger *zap.Logger
}

func NewEngine(clt GithubClient, cfg *Config) *Engine {
	c := *cfg
	c.RequiredChecks = uniq(cfg.RequiredChecks)

	return &Engine{
		clt:    clt,
		cfg:    &c,
		poller: retry.NewPoller(cfg.Retry),
		logger: zap.L().Named(loggerName),
	}
}

func uniq(in []string) []string {
	if len(in) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(in))
	result := make([]string, 0, len(in))
	for _, s := range in {
		if _, exists := seen[s]; exists {
			continue
		}

		seen[s] = struct{}{}
		result = append(result, s)
	}

	return result
}

func (e *Engine) finish(o outcome, r *Result) *Result {
	metrics.EvaluationsInc(o)
	return r
}

// Evaluate decides if the pull request can be merged and merges it.
// The labels of pr are refreshed from GitHub before the requested policies
// are determined, pr is not modified.
func (e *Engine) Evaluate(ctx context.Context, pr *githubclt.PullRequest) *Result {
	if pr == nil {
		return e.finish(outcomeIgnored, NewHiddenResult("Pull request missing in incoming event"))
	}

	logger := e.logger.With(pr.LogFields()...)

	if pr.State != githubclt.PullRequestStateOpen {
		logger.Debug("pull request auto-merge ignoring closed pull request",
			logfields.Event("automerge_ignoring_closed_pr"),
		)

		return e.finish(outcomeIgnored, NewHiddenResult(fmt.Sprintf("Pull request auto-merge ignoring closed %s", pr.Link())))
	}

	if !e.cfg.isAllowedAuthor(pr.Author) {
		logger.Debug("pull request ignored because not authored by any of the configured users",
			zap.String("github_author", pr.Author),
			logfields.Event("automerge_ignoring_pr_of_unknown_author"),
		)

		return e.finish(outcomeIgnored, NewHiddenResult(fmt.Sprintf("Pull request %s ignored because not authored by any of the configured users", pr.Slug())))
	}

	pr = e.withCurrentLabels(ctx, logger, pr)

	if !IsPRAutoMergeEnabled(pr) {
		logger.Debug("pull request auto-merge not requested",
			logfields.Event("automerge_not_requested"),
		)

		return e.finish(outcomeNotTagged, NewHiddenResult(fmt.Sprintf("Pull request %s not auto-merged", pr.Link())))
	}

	logger.Info("starting auto-merge processing for pull request",
		logfields.Labels(pr.LabelNames()),
		logfields.Event("automerge_processing_started"),
	)

	failed, protection := e.EvaluateRules(ctx, pr)
	if len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			names = append(names, r.String())
		}

		logger.Info("pull request auto-merge not enabled, rules failed",
			zap.Strings("failed_rules", names),
			logfields.Event("automerge_rules_failed"),
		)

		return e.finish(outcomeRulesFailed, NewResult(fmt.Sprintf(
			"Pull request auto-merge not enabled for %s because following rules failed: %s",
			pr.Link(), strings.Join(names, ", "),
		)))
	}

	logger.Info("pull request auto-merge enabled, attempting to merge",
		logfields.Event("automerge_rules_passed"),
	)

	return e.ExecuteMerge(ctx, pr, protection)
}

// withCurrentLabels returns a copy of pr with the labels that GitHub
// currently reports. Labels in webhook payloads can be outdated.
// If retrieving them fails, pr is returned.
func (e *Engine) withCurrentLabels(ctx context.Context, logger *zap.Logger, pr *githubclt.PullRequest) *githubclt.PullRequest {
	state, err := e.clt.PullRequestState(ctx, pr.Owner, pr.Repository, pr.Number)
	if err != nil {
		logger.Warn("refreshing pull request labels failed, using labels from event",
			logfields.Event("github_refreshing_labels_failed"),
			zap.Error(err),
		)

		return pr
	}

	refreshed := *pr
	refreshed.Labels = make([]*githubclt.Label, 0, len(state.Labels))
	for _, l := range state.Labels {
		refreshed.Labels = append(refreshed.Labels, &githubclt.Label{Name: l})
	}

	return &refreshed
}

// EvaluateAll evaluates the pull requests sequentially and aggregates their
// results.
func (e *Engine) EvaluateAll(ctx context.Context, prs []*githubclt.PullRequest) *Result {
	results := make([]*Result, 0, len(prs))

	for _, pr := range prs {
		results = append(results, e.Evaluate(ctx, pr))
	}

	return AggregateResults(results)
}
