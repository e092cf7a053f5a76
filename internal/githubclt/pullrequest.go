package githubclt

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/logfields"
)

// CIStatus abstracts the multiple result values of GitHub check runs and
// Commit statuses into a single value.
type CIStatus string

const (
	CIStatusSuccess CIStatus = "SUCCESS"
	CIStatusPending CIStatus = "PENDING"
	CIStatusFailure CIStatus = "FAILURE"
)

// CheckRunStatus is the lifecycle state of a GitHub check run.
type CheckRunStatus string

const (
	CheckRunStatusQueued     CheckRunStatus = "queued"
	CheckRunStatusInProgress CheckRunStatus = "in_progress"
	CheckRunStatusCompleted  CheckRunStatus = "completed"
)

// CheckRunConclusion is the result of a completed check run.
// The empty value means that GitHub did not report a conclusion.
type CheckRunConclusion string

const (
	CheckRunConclusionUndefined      CheckRunConclusion = ""
	CheckRunConclusionSuccess        CheckRunConclusion = "success"
	CheckRunConclusionNeutral        CheckRunConclusion = "neutral"
	CheckRunConclusionSkipped        CheckRunConclusion = "skipped"
	CheckRunConclusionFailure        CheckRunConclusion = "failure"
	CheckRunConclusionCancelled      CheckRunConclusion = "cancelled"
	CheckRunConclusionTimedOut       CheckRunConclusion = "timed_out"
	CheckRunConclusionActionRequired CheckRunConclusion = "action_required"
	CheckRunConclusionStale          CheckRunConclusion = "stale"
)

// ReviewState is the state of a pull request review.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "approved"
	ReviewStateChangesRequested ReviewState = "changes_requested"
	ReviewStateCommented        ReviewState = "commented"
	ReviewStateDismissed        ReviewState = "dismissed"
	ReviewStatePending          ReviewState = "pending"
)

// MergeMethod is the way GitHub integrates a pull request into its base
// branch.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodRebase MergeMethod = "rebase"
	MergeMethodSquash MergeMethod = "squash"
)

// MergeMethods contains all supported merge methods.
var MergeMethods = []MergeMethod{MergeMethodMerge, MergeMethodRebase, MergeMethodSquash}

// ParseMergeMethod returns the MergeMethod for s.
// If s is not a supported merge method false is returned.
func ParseMergeMethod(s string) (MergeMethod, bool) {
	for _, m := range MergeMethods {
		if string(m) == s {
			return m, true
		}
	}

	return "", false
}

const (
	PullRequestStateOpen   = "open"
	PullRequestStateClosed = "closed"
)

type Label struct {
	Name string
}

// Review is a pull request review. By contains the logins of the reviewers.
type Review struct {
	State ReviewState
	By    []string
}

type Comment struct {
	Body string
}

type Commit struct {
	Message string
}

// Status is a legacy commit status.
type Status struct {
	Context     string
	Description string
	State       CIStatus
	TargetURL   string
}

type CheckRun struct {
	Name        string
	CheckRunID  int64
	Status      CheckRunStatus
	Conclusion  CheckRunConclusion
	HTMLURL     string
	OutputTitle string
	DetailsURL  string
}

type CheckSuite struct {
	AppSlug   string
	CheckRuns []*CheckRun
}

// Head is the head commit of a pull request with its CI signals.
type Head struct {
	SHA         string
	Statuses    []*Status
	CheckSuites []*CheckSuite
}

// PullRequest is a read-only snapshot of a GitHub pull request.
type PullRequest struct {
	Owner      string
	Repository string
	Number     int
	URL        string

	State      string
	Author     string
	Title      string
	Body       string
	BaseBranch string

	Head     Head
	Labels   []*Label
	Reviews  []*Review
	Comments []*Comment
	Commits  []*Commit
}

// Slug returns the short identifier of the pull request: owner/repo#number.
func (p *PullRequest) Slug() string {
	return fmt.Sprintf("%s/%s#%d", p.Owner, p.Repository, p.Number)
}

// Link returns a markdown link to the pull request.
func (p *PullRequest) Link() string {
	return fmt.Sprintf("[%s](%s)", p.Slug(), p.URL)
}

func (p *PullRequest) LabelNames() []string {
	result := make([]string, 0, len(p.Labels))
	for _, l := range p.Labels {
		result = append(result, l.Name)
	}

	return result
}

func (p *PullRequest) LogFields() []zap.Field {
	return []zap.Field{
		logfields.RepositoryOwner(p.Owner),
		logfields.Repository(p.Repository),
		logfields.PullRequest(p.Number),
	}
}

// PullRequestState contains the fields of a pull request that GitHub
// computes asynchronously or that can change between the delivery of a
// webhook event and its processing.
type PullRequestState struct {
	State  string
	Labels []string
	// Mergeable is nil when GitHub has not computed it yet.
	Mergeable *bool
	// MergeableState is "unknown" or empty when GitHub has not computed
	// it yet.
	MergeableState string
	HeadSHA        string
}

// BranchProtection summarizes the protection rule of a branch.
type BranchProtection struct {
	Branch                       string
	RequiresStatusChecks         bool
	RequiredApprovingReviewCount int
	EnforceAdmins                bool
}

type IssueComment struct {
	ID     int64
	Body   string
	Author string
}

// MergeOptions are the parameters of a merge operation.
// Empty CommitTitle and CommitMessage let GitHub use its defaults.
type MergeOptions struct {
	Method        MergeMethod
	CommitTitle   string
	CommitMessage string
	SHA           string
}

// RepositoryMergeSettings contains the merge methods that are enabled for a
// repository.
type RepositoryMergeSettings struct {
	AllowMergeCommit bool
	AllowRebaseMerge bool
	AllowSquashMerge bool
}

// Allows returns true if the merge method is enabled.
func (s *RepositoryMergeSettings) Allows(m MergeMethod) bool {
	switch m {
	case MergeMethodMerge:
		return s.AllowMergeCommit
	case MergeMethodRebase:
		return s.AllowRebaseMerge
	case MergeMethodSquash:
		return s.AllowSquashMerge
	default:
		return false
	}
}
