package githubclt

import (
	"context"
	"fmt"
	"strings"

	"github.com/shurcooL/githubv4"
)

type gqlActor struct {
	Login string
}

type gqlStatusContext struct {
	Context     string
	Description string
	State       githubv4.StatusState
	TargetURL   string `graphql:"targetUrl"`
}

type gqlCheckRun struct {
	Name       string
	DatabaseID int64 `graphql:"databaseId"`
	Status     githubv4.CheckStatusState
	Conclusion githubv4.CheckConclusionState
	URL        string `graphql:"url"`
	DetailsURL string `graphql:"detailsUrl"`
	Title      string
}

type gqlCheckSuite struct {
	App *struct {
		Slug string
	}
	CheckRuns struct {
		Nodes []gqlCheckRun
	} `graphql:"checkRuns(first: 100)"`
}

type gqlHeadCommit struct {
	Oid    string
	Status *struct {
		Contexts []gqlStatusContext
	}
	CheckSuites struct {
		Nodes []gqlCheckSuite
	} `graphql:"checkSuites(first: 50)"`
}

type gqlReview struct {
	State  githubv4.PullRequestReviewState
	Author gqlActor
}

// commitsPageSize is the maximum number of nodes GitHub returns per
// connection page.
const commitsPageSize = 100

type gqlCommitNode struct {
	Commit struct {
		Message string
	}
}

type gqlCommits struct {
	Nodes    []gqlCommitNode
	PageInfo struct {
		HasNextPage bool
		EndCursor   githubv4.String
	}
}

type gqlPullRequest struct {
	Number      int
	URL         string `graphql:"url"`
	State       githubv4.PullRequestState
	Title       string
	Body        string
	BaseRefName string
	Author      gqlActor
	Labels      struct {
		Nodes []struct {
			Name string
		}
	} `graphql:"labels(first: 100)"`
	Reviews struct {
		Nodes []gqlReview
	} `graphql:"reviews(first: 100)"`
	Comments struct {
		Nodes []struct {
			Body string
		}
	} `graphql:"comments(first: 100)"`
	Commits    gqlCommits `graphql:"commits(first: $commitsFirst, after: $commitsAfter)"`
	HeadCommit struct {
		Nodes []struct {
			Commit gqlHeadCommit
		}
	} `graphql:"headCommit: commits(last: 1)"`
}

type pullRequestSnapshotQuery struct {
	Repository struct {
		PullRequest gqlPullRequest `graphql:"pullRequest(number: $prNumber)"`
	} `graphql:"repository(owner: $repositoryOwner, name: $repositoryName)"`
}

type pullRequestCommitsQuery struct {
	Repository struct {
		PullRequest struct {
			Commits gqlCommits `graphql:"commits(first: $commitsFirst, after: $commitsAfter)"`
		} `graphql:"pullRequest(number: $prNumber)"`
	} `graphql:"repository(owner: $repositoryOwner, name: $repositoryName)"`
}

// PullRequestSnapshot fetches a pull request with its labels, reviews,
// comments, commits and the statuses and check runs of its head commit.
// Commits are retrieved page by page, the other connections are limited to
// their first page.
func (clt *Client) PullRequestSnapshot(ctx context.Context, owner, repo string, prNumber int) (*PullRequest, error) {
	var q pullRequestSnapshotQuery

	vars := map[string]any{
		"repositoryOwner": githubv4.String(owner),
		"repositoryName":  githubv4.String(repo),
		"prNumber":        githubv4.Int(prNumber),
		"commitsFirst":    githubv4.Int(commitsPageSize),
		"commitsAfter":    (*githubv4.String)(nil),
	}

	err := clt.graphQLClt.Query(ctx, &q, vars)
	if err != nil {
		return nil, clt.wrapGraphQLRetryableErrors(fmt.Errorf("graphql query failed: %w", err))
	}

	gpr := &q.Repository.PullRequest
	if gpr.Number == 0 {
		return nil, fmt.Errorf("graphql query returned no pull request with number %d", prNumber)
	}

	pageInfo := gpr.Commits.PageInfo
	for pageInfo.HasNextPage {
		var cq pullRequestCommitsQuery

		vars["commitsAfter"] = githubv4.NewString(pageInfo.EndCursor)

		err := clt.graphQLClt.Query(ctx, &cq, vars)
		if err != nil {
			return nil, clt.wrapGraphQLRetryableErrors(fmt.Errorf("graphql commits query failed: %w", err))
		}

		commits := &cq.Repository.PullRequest.Commits
		gpr.Commits.Nodes = append(gpr.Commits.Nodes, commits.Nodes...)
		pageInfo = commits.PageInfo
	}

	return toPullRequest(owner, repo, gpr), nil
}

func toPullRequest(owner, repo string, gpr *gqlPullRequest) *PullRequest {
	pr := PullRequest{
		Owner:      owner,
		Repository: repo,
		Number:     gpr.Number,
		URL:        gpr.URL,
		State:      toPullRequestState(gpr.State),
		Author:     gpr.Author.Login,
		Title:      gpr.Title,
		Body:       gpr.Body,
		BaseBranch: gpr.BaseRefName,
	}

	for _, l := range gpr.Labels.Nodes {
		pr.Labels = append(pr.Labels, &Label{Name: l.Name})
	}

	for _, r := range gpr.Reviews.Nodes {
		pr.Reviews = append(pr.Reviews, &Review{
			State: ReviewState(strings.ToLower(string(r.State))),
			By:    []string{r.Author.Login},
		})
	}

	for _, c := range gpr.Comments.Nodes {
		pr.Comments = append(pr.Comments, &Comment{Body: c.Body})
	}

	for _, c := range gpr.Commits.Nodes {
		pr.Commits = append(pr.Commits, &Commit{Message: c.Commit.Message})
	}

	if len(gpr.HeadCommit.Nodes) > 0 {
		pr.Head = toHead(&gpr.HeadCommit.Nodes[len(gpr.HeadCommit.Nodes)-1].Commit)
	}

	return &pr
}

func toPullRequestState(s githubv4.PullRequestState) string {
	if s == githubv4.PullRequestStateOpen {
		return PullRequestStateOpen
	}

	return PullRequestStateClosed
}

func toHead(c *gqlHeadCommit) Head {
	head := Head{SHA: c.Oid}

	if c.Status != nil {
		for _, sc := range c.Status.Contexts {
			head.Statuses = append(head.Statuses, &Status{
				Context:     sc.Context,
				Description: sc.Description,
				State:       statusStateToCIStatus(sc.State),
				TargetURL:   sc.TargetURL,
			})
		}
	}

	for _, suite := range c.CheckSuites.Nodes {
		cs := CheckSuite{}
		if suite.App != nil {
			cs.AppSlug = suite.App.Slug
		}

		for _, run := range suite.CheckRuns.Nodes {
			cs.CheckRuns = append(cs.CheckRuns, &CheckRun{
				Name:        run.Name,
				CheckRunID:  run.DatabaseID,
				Status:      toCheckRunStatus(run.Status),
				Conclusion:  CheckRunConclusion(strings.ToLower(string(run.Conclusion))),
				HTMLURL:     run.URL,
				OutputTitle: run.Title,
				DetailsURL:  run.DetailsURL,
			})
		}

		head.CheckSuites = append(head.CheckSuites, &cs)
	}

	return head
}

func statusStateToCIStatus(s githubv4.StatusState) CIStatus {
	switch s {
	case githubv4.StatusStateSuccess:
		return CIStatusSuccess
	case githubv4.StatusStatePending, githubv4.StatusStateExpected:
		return CIStatusPending
	default:
		return CIStatusFailure
	}
}

func toCheckRunStatus(s githubv4.CheckStatusState) CheckRunStatus {
	switch s {
	case githubv4.CheckStatusStateCompleted:
		return CheckRunStatusCompleted
	case githubv4.CheckStatusStateInProgress:
		return CheckRunStatusInProgress
	default:
		return CheckRunStatusQueued
	}
}
