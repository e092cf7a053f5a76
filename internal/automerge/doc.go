// Package automerge decides if a GitHub pull request is eligible for being
// merged automatically and merges it.
//
// Auto-merge is requested per pull request by a label or an inline marker in
// the title, body, a comment or a commit message. The marker selects one of
// the merge policies:
//
//   - on-approve: all reviews are approved and all checks succeeded,
//   - on-check-success: all checks succeeded,
//   - on-bpr-success: the branch protection rule of the base branch is
//     satisfied.
//
// The branch protection rule is evaluated for every policy. All rules are
// evaluated, failing ones are reported together.
//
// GitHub computes the mergeability of a pull request asynchronously. The
// Engine polls it with a bounded exponential backoff before merging.
// In dry-run mode the Engine never merges, it creates or updates a single
// preview comment on the pull request instead.
//
// The Engine never returns errors to its caller. Every outcome is reported as
// a Result containing a markdown formatted reason.
package automerge
