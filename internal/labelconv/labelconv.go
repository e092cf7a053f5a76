// Package labelconv creates the auto-merge labels in repositories and labels
// newly opened pull requests with the configured merge policy and method.
package labelconv

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/automerge"
	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
)

const loggerName = "label_converger"

const (
	PolicyLabelColor = "277D7D"
	MethodLabelColor = "1C334B"
)

var policyLabelDescriptions = map[automerge.Policy]string{
	automerge.PolicyOnApprove:      "Auto-merge on review approvals",
	automerge.PolicyOnCheckSuccess: "Auto-merge on successful checks",
	automerge.PolicyOnBPRSuccess:   "Auto-merge on successful branch protection rule",
}

type GithubClient interface {
	RepositoryMergeSettings(ctx context.Context, owner, repo string) (*githubclt.RepositoryMergeSettings, error)
	EnsureLabel(ctx context.Context, owner, repo, name, color, description string) (bool, error)
	DeleteLabel(ctx context.Context, owner, repo, name string) error
	AddLabels(ctx context.Context, owner, repo string, pullRequestOrIssueNumber int, labels []string) error
}

// Converger ensures that the auto-merge labels exist in a repository.
// The merge method labels are kept in sync with the merge methods that are
// enabled for the repository.
type Converger struct {
	clt         GithubClient
	mergeOn     automerge.Policy
	mergeMethod githubclt.MergeMethod
	logger      *zap.Logger
}

func New(clt GithubClient, mergeOn automerge.Policy, mergeMethod githubclt.MergeMethod) *Converger {
	if mergeMethod == "" {
		mergeMethod = githubclt.MergeMethodMerge
	}

	return &Converger{
		clt:         clt,
		mergeOn:     mergeOn,
		mergeMethod: mergeMethod,
		logger:      zap.L().Named(loggerName),
	}
}

// Converge creates the auto-merge labels in the repository of pr and labels
// pr with the configured policy and merge method if it has none.
// If the configured merge method is not enabled in the repository a Result
// with automerge.CodeFailure is returned.
func (c *Converger) Converge(ctx context.Context, pr *githubclt.PullRequest) *automerge.Result {
	logger := c.logger.With(pr.LogFields()...)

	settings, err := c.clt.RepositoryMergeSettings(ctx, pr.Owner, pr.Repository)
	if err != nil {
		logger.Error("retrieving repository merge settings failed",
			logfields.Event("github_repository_merge_settings_retrieval_failed"),
			zap.Error(err),
		)

		return automerge.NewFailureResult(fmt.Sprintf("Pull request %s can't be labelled with auto-merge labels, retrieving repository settings failed", pr.Link()))
	}

	if err := c.convergeRepositoryLabels(ctx, logger, pr.Owner, pr.Repository, settings); err != nil {
		logger.Error("converging repository labels failed",
			logfields.Event("automerge_label_convergence_failed"),
			zap.Error(err),
		)

		return automerge.NewFailureResult(fmt.Sprintf("Pull request %s can't be labelled with auto-merge labels, converging repository labels failed", pr.Link()))
	}

	var labels []string

	if !hasLabelWithPrefix(pr, automerge.LabelPrefix) {
		labels = append(labels, c.mergeOn.Label())
	}

	if !hasLabelWithPrefix(pr, automerge.MethodLabelPrefix) {
		if !settings.Allows(c.mergeMethod) {
			logger.Warn("pull request can't be labelled with auto-merge labels, configured merge method is not enabled in the repository",
				logfields.MergeMethod(string(c.mergeMethod)),
				logfields.Event("automerge_merge_method_not_enabled"),
			)

			return automerge.NewFailureResult(fmt.Sprintf("Pull request %s can't be labelled with auto-merge labels", pr.Link()))
		}

		labels = append(labels, automerge.MethodLabel(c.mergeMethod))
	}

	if len(labels) == 0 {
		return automerge.NewHiddenResult(fmt.Sprintf("Pull request %s not labelled with auto-merge labels because labels already present", pr.Link()))
	}

	if err := c.clt.AddLabels(ctx, pr.Owner, pr.Repository, pr.Number, labels); err != nil {
		logger.Error("labelling pull request failed",
			logfields.Labels(labels),
			logfields.Event("github_adding_labels_failed"),
			zap.Error(err),
		)

		return automerge.NewFailureResult(fmt.Sprintf("Pull request %s can't be labelled with auto-merge labels", pr.Link()))
	}

	logger.Info("pull request labelled with auto-merge labels",
		logfields.Labels(labels),
		logfields.Event("automerge_pr_labelled"),
	)

	return automerge.NewResult(fmt.Sprintf("Pull request %s labelled with auto-merge labels", pr.Link()))
}

func (c *Converger) convergeRepositoryLabels(ctx context.Context, logger *zap.Logger, owner, repo string, settings *githubclt.RepositoryMergeSettings) error {
	for _, p := range automerge.Policies {
		created, err := c.clt.EnsureLabel(ctx, owner, repo, p.Label(), PolicyLabelColor, policyLabelDescriptions[p])
		if err != nil {
			return fmt.Errorf("creating label %q failed: %w", p.Label(), err)
		}

		if created {
			logger.Info("repository label created",
				logfields.Label(p.Label()),
				logfields.Event("automerge_repository_label_created"),
			)
		}
	}

	for _, m := range githubclt.MergeMethods {
		label := automerge.MethodLabel(m)

		if !settings.Allows(m) {
			if err := c.clt.DeleteLabel(ctx, owner, repo, label); err != nil {
				return fmt.Errorf("deleting label %q failed: %w", label, err)
			}

			logger.Debug("merge method not enabled, removed label from repository",
				logfields.Label(label),
				logfields.Event("automerge_repository_label_removed"),
			)

			continue
		}

		created, err := c.clt.EnsureLabel(ctx, owner, repo, label, MethodLabelColor, automerge.MethodLabelDescriptions[m])
		if err != nil {
			return fmt.Errorf("creating label %q failed: %w", label, err)
		}

		if created {
			logger.Info("repository label created",
				logfields.Label(label),
				logfields.Event("automerge_repository_label_created"),
			)
		}
	}

	return nil
}

func hasLabelWithPrefix(pr *githubclt.PullRequest, prefix string) bool {
	for _, l := range pr.Labels {
		if strings.HasPrefix(l.Name, prefix) {
			return true
		}
	}

	return false
}
