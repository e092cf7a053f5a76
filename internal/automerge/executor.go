package automerge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
)

// MergeMethodFor returns the merge method for the pull request.
// A valid merge method label of the pull request has precedence over the
// configured method. Without both, MergeMethodMerge is returned.
func MergeMethodFor(pr *githubclt.PullRequest, cfg *Config) githubclt.MergeMethod {
	for _, l := range pr.Labels {
		if !strings.HasPrefix(l.Name, MethodLabelPrefix) {
			continue
		}

		if m, ok := methodFromLabel(l.Name); ok {
			return m
		}

		break
	}

	if cfg != nil && cfg.MergeMethod != "" {
		return cfg.MergeMethod
	}

	return githubclt.MergeMethodMerge
}

// CommitDetails returns the title and message of the commit that merges the
// pull request. For rebase both are empty, GitHub keeps the commits of the
// pull request.
func CommitDetails(method githubclt.MergeMethod, pr *githubclt.PullRequest, protection *githubclt.BranchProtection, requiredChecks []string) (title, message string) {
	switch method {
	case githubclt.MergeMethodMerge:
		title = fmt.Sprintf("Auto-merge pull request #%d from %s/%s", pr.Number, pr.Owner, pr.Repository)
		message = pr.Title

	case githubclt.MergeMethodSquash:
		title = fmt.Sprintf("%s (#%d)", pr.Title, pr.Number)

		msgs := make([]string, 0, len(pr.Commits))
		for _, c := range pr.Commits {
			msgs = append(msgs, " * "+c.Message)
		}
		message = strings.Join(msgs, "\n")

	default:
		return "", ""
	}

	message += "\n\nPull request auto merged:\n\n" + Footer(pr, protection, requiredChecks)

	return title, message
}

func notMergeableResult(pr *githubclt.PullRequest) *Result {
	return NewResult(fmt.Sprintf("Pull request %s not auto-merged because it can't be merged at this time", pr.Link()))
}

// ExecuteMerge waits until GitHub computed if the pull request is mergeable
// and merges it.
// In dry-run mode a preview comment is created or updated instead.
// Errors are logged and reported as a not mergeable Result.
func (e *Engine) ExecuteMerge(ctx context.Context, pr *githubclt.PullRequest, protection *githubclt.BranchProtection) *Result {
	logger := e.logger.With(pr.LogFields()...)

	method := MergeMethodFor(pr, e.cfg)
	logger = logger.With(logfields.MergeMethod(string(method)))

	var mergeable *bool
	attempts, err := e.poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		state, err := e.clt.PullRequestState(ctx, pr.Owner, pr.Repository, pr.Number)
		if err != nil {
			return false, err
		}

		mergeable = state.Mergeable
		logger.Debug("github reported mergeability of pull request",
			zap.Boolp("github_mergeable", mergeable),
			logfields.Event("github_mergeable_retrieved"),
		)

		return mergeable != nil, nil
	}, pr.LogFields())
	metrics.PollAttemptsObserve(attempts)
	if err != nil {
		logger.Info("pull request not auto-merged, mergeability could not be determined",
			logfields.Event("automerge_mergeable_undetermined"),
			zap.Error(err),
		)

		return e.finish(outcomeNotMergeable, notMergeableResult(pr))
	}

	if !*mergeable {
		logger.Info("pull request not auto-merged because it can't be merged at this time",
			logfields.Event("automerge_not_mergeable"),
		)

		return e.finish(outcomeNotMergeable, notMergeableResult(pr))
	}

	footer := Footer(pr, protection, e.cfg.RequiredChecks)

	if e.cfg.DryRun {
		return e.preview(ctx, logger, pr, method, footer)
	}

	title, msg := CommitDetails(method, pr, protection, e.cfg.RequiredChecks)
	err = e.clt.MergePullRequest(ctx, pr.Owner, pr.Repository, pr.Number, &githubclt.MergeOptions{
		Method:        method,
		CommitTitle:   title,
		CommitMessage: msg,
		SHA:           pr.Head.SHA,
	})
	if err != nil {
		logger.Info("merging pull request failed",
			logfields.Event("automerge_merge_failed"),
			zap.Error(err),
		)

		return e.finish(outcomeNotMergeable, notMergeableResult(pr))
	}

	metrics.MergesInc(method, false)
	logger.Info("pull request auto-merged", logfields.Event("automerge_merged"))

	err = e.clt.CreateIssueComment(ctx, pr.Owner, pr.Repository, pr.Number, mergedComment(footer))
	if err != nil {
		logger.Warn("creating auto-merge comment failed",
			logfields.Event("automerge_comment_creation_failed"),
			zap.Error(err),
		)
	} else {
		logger.Debug("auto-merge comment created", logfields.Event("automerge_comment_created"))
	}

	return e.finish(outcomeMerged, NewResult(fmt.Sprintf("Pull request %s auto-merged", pr.Link())))
}

// preview creates or updates the dry-run comment of the pull request.
// An existing comment of the CommentAuthor containing the Marker is
// updated.
func (e *Engine) preview(ctx context.Context, logger *zap.Logger, pr *githubclt.PullRequest, method githubclt.MergeMethod, footer string) *Result {
	body := previewComment(footer, e.cfg.SettingsURL)

	comments, err := e.clt.ListIssueComments(ctx, pr.Owner, pr.Repository, pr.Number)
	if err != nil {
		logger.Info("listing pull request comments failed",
			logfields.Event("automerge_listing_comments_failed"),
			zap.Error(err),
		)

		return e.finish(outcomeNotMergeable, notMergeableResult(pr))
	}

	if c := findMarkerComment(comments, e.cfg.CommentAuthor); c != nil {
		err = e.clt.UpdateIssueComment(ctx, pr.Owner, pr.Repository, c.ID, body)
		if err != nil {
			logger.Info("updating dry-run comment failed",
				logfields.Event("automerge_updating_preview_comment_failed"),
				zap.Int64("github_comment_id", c.ID),
				zap.Error(err),
			)

			return e.finish(outcomeNotMergeable, notMergeableResult(pr))
		}

		logger.Debug("dry-run comment updated",
			logfields.Event("automerge_preview_comment_updated"),
			zap.Int64("github_comment_id", c.ID),
		)
	} else {
		err = e.clt.CreateIssueComment(ctx, pr.Owner, pr.Repository, pr.Number, body)
		if err != nil {
			logger.Info("creating dry-run comment failed",
				logfields.Event("automerge_creating_preview_comment_failed"),
				zap.Error(err),
			)

			return e.finish(outcomeNotMergeable, notMergeableResult(pr))
		}

		logger.Debug("dry-run comment created", logfields.Event("automerge_preview_comment_created"))
	}

	metrics.MergesInc(method, true)

	return e.finish(outcomeDryRun, NewResult(fmt.Sprintf("Pull request %s ready to be auto-merged", pr.Link())))
}
