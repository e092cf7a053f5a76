package automerge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
)

// RuleKind identifies an auto-merge rule.
type RuleKind int

const (
	// RuleBranchProtection is satisfied when GitHub reports that the
	// branch protection rule of the base branch passes.
	RuleBranchProtection RuleKind = iota
	// RuleReviewApproval is satisfied when the pull request has reviews
	// and all of them are approvals.
	RuleReviewApproval
	// RuleChecks is satisfied when the required checks succeeded.
	RuleChecks
)

func (k RuleKind) String() string {
	switch k {
	case RuleBranchProtection:
		return "branch protection rule"
	case RuleReviewApproval:
		return "approved reviews"
	case RuleChecks:
		return "checks and statuses"
	default:
		return fmt.Sprintf("rule(%d)", int(k))
	}
}

func (k RuleKind) metricLabel() string {
	switch k {
	case RuleBranchProtection:
		return "branch_protection"
	case RuleReviewApproval:
		return "review_approval"
	case RuleChecks:
		return "checks"
	default:
		return "unknown"
	}
}

// mergeableStates are the mergeable_state values of pull requests that
// satisfy their branch protection rule.
var mergeableStates = map[string]struct{}{
	"clean":     {},
	"unstable":  {},
	"has_hooks": {},
}

const mergeableStateUnknown = "unknown"

// SelectRules returns the rules that must pass for the pull request to be
// merged.
// The branch protection rule is always included, the others depend on the
// requested policies. Every rule is contained at most once.
func SelectRules(pr *githubclt.PullRequest) []RuleKind {
	rules := []RuleKind{RuleBranchProtection}

	if IsPRTagged(pr, PolicyOnApprove) {
		rules = append(rules, RuleReviewApproval, RuleChecks)
	}

	if IsPRTagged(pr, PolicyOnCheckSuccess) && !containsRule(rules, RuleChecks) {
		rules = append(rules, RuleChecks)
	}

	return rules
}

func containsRule(rules []RuleKind, r RuleKind) bool {
	for _, e := range rules {
		if e == r {
			return true
		}
	}

	return false
}

// EvaluateRules evaluates all rules selected for the pull request and
// returns the ones that failed.
// Evaluation does not stop at the first failing rule.
// When the base branch is protected and its protection rule passed, the
// protection is returned.
func (e *Engine) EvaluateRules(ctx context.Context, pr *githubclt.PullRequest) (failed []RuleKind, protection *githubclt.BranchProtection) {
	logger := e.logger.With(pr.LogFields()...)

	for _, rule := range SelectRules(pr) {
		var passed bool

		switch rule {
		case RuleBranchProtection:
			passed, protection = e.branchProtectionPasses(ctx, pr)
		case RuleReviewApproval:
			passed = ReviewsApproved(pr)
		case RuleChecks:
			passed = ChecksPassed(pr, e.cfg.RequiredChecks)
		}

		logger.Debug("auto-merge rule evaluated",
			zap.Stringer("rule", rule),
			zap.Bool("passed", passed),
			logfields.Event("automerge_rule_evaluated"),
		)

		if !passed {
			failed = append(failed, rule)
			metrics.RuleFailuresInc(rule)
		}
	}

	if containsRule(failed, RuleBranchProtection) {
		protection = nil
	}

	return failed, protection
}

// branchProtectionPasses evaluates RuleBranchProtection.
// If the base branch protection can not be retrieved, the rule passes
// when the on-bpr-success policy was not requested.
func (e *Engine) branchProtectionPasses(ctx context.Context, pr *githubclt.PullRequest) (bool, *githubclt.BranchProtection) {
	logger := e.logger.With(pr.LogFields()...).With(logfields.BaseBranch(pr.BaseBranch))
	bprRequested := IsPRTagged(pr, PolicyOnBPRSuccess)

	protection, err := e.clt.BranchProtection(ctx, pr.Owner, pr.Repository, pr.BaseBranch)
	if err != nil {
		if !errors.Is(err, githubclt.ErrBranchNotProtected) {
			logger.Info("retrieving branch protection failed, treating branch as unprotected",
				logfields.Event("github_branch_protection_retrieval_failed"),
				zap.Error(err),
			)
		}

		return !bprRequested, nil
	}

	var mergeableState string
	_, err = e.poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		state, err := e.clt.PullRequestState(ctx, pr.Owner, pr.Repository, pr.Number)
		if err != nil {
			return false, err
		}

		mergeableState = state.MergeableState
		logger.Debug("github reported mergeable state of pull request",
			zap.String("github_mergeable_state", mergeableState),
			logfields.Event("github_mergeable_state_retrieved"),
		)

		return mergeableState != "" && mergeableState != mergeableStateUnknown, nil
	}, pr.LogFields())
	if err != nil {
		logger.Info("mergeable state of pull request could not be determined",
			logfields.Event("github_mergeable_state_undetermined"),
			zap.Error(err),
		)

		return false, protection
	}

	_, ok := mergeableStates[mergeableState]

	return ok, protection
}

// ReviewsApproved returns true if the pull request has at least one review
// and all reviews are approvals.
func ReviewsApproved(pr *githubclt.PullRequest) bool {
	if len(pr.Reviews) == 0 {
		return false
	}

	for _, r := range pr.Reviews {
		if r.State != githubclt.ReviewStateApproved {
			return false
		}
	}

	return true
}

// ChecksPassed evaluates RuleChecks.
// When requiredChecks is not empty, a successful check must exist for every
// required name, other checks are ignored.
// Otherwise all checks must be successful. A pull request without any checks
// only passes when the on-approve policy was requested.
func ChecksPassed(pr *githubclt.PullRequest, requiredChecks []string) bool {
	checks := AggregateChecksAndStatus(pr)

	if len(requiredChecks) > 0 {
		return successfulRequiredChecks(checks, requiredChecks) == len(requiredChecks)
	}

	if len(checks) == 0 {
		return IsPRTagged(pr, PolicyOnApprove)
	}

	for _, c := range checks {
		if c.State != githubclt.CIStatusSuccess {
			return false
		}
	}

	return true
}

// successfulRequiredChecks returns the number of required check names for
// that a successful check exists.
func successfulRequiredChecks(checks []*Check, requiredChecks []string) int {
	succeeded := make(map[string]struct{}, len(checks))
	for _, c := range checks {
		if c.State == githubclt.CIStatusSuccess {
			succeeded[c.Name] = struct{}{}
		}
	}

	var cnt int
	for _, name := range requiredChecks {
		if _, ok := succeeded[name]; ok {
			cnt++
		}
	}

	return cnt
}
