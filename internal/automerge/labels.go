package automerge

import (
	"fmt"
	"strings"

	"github.com/simplesurance/automerger/internal/githubclt"
)

// Policy is the merge policy that was requested for a pull request.
type Policy int

const (
	PolicyOnApprove Policy = iota
	PolicyOnCheckSuccess
	PolicyOnBPRSuccess
)

// Policies contains all merge policies.
var Policies = []Policy{PolicyOnApprove, PolicyOnCheckSuccess, PolicyOnBPRSuccess}

const (
	// LabelPrefix is the common prefix of all policy labels.
	LabelPrefix = "auto-merge:"
	// MethodLabelPrefix is the prefix of the labels selecting the merge
	// method, the merge method follows the colon.
	MethodLabelPrefix = "auto-merge-method:"
)

var policyNames = map[Policy]string{
	PolicyOnApprove:      "on-approve",
	PolicyOnCheckSuccess: "on-check-success",
	PolicyOnBPRSuccess:   "on-bpr-success",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}

	return fmt.Sprintf("policy(%d)", int(p))
}

// Label returns the name of the label requesting the policy, e.g.
// "auto-merge:on-approve".
func (p Policy) Label() string {
	return LabelPrefix + p.String()
}

// Tag returns the inline marker requesting the policy, e.g.
// "[auto-merge:on-approve]".
func (p Policy) Tag() string {
	return "[" + p.Label() + "]"
}

// ParsePolicy returns the Policy for its string representation.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range Policies {
		if p.String() == s {
			return p, nil
		}
	}

	return 0, fmt.Errorf("unsupported merge policy: %q", s)
}

// MethodLabel returns the label that selects the merge method.
func MethodLabel(m githubclt.MergeMethod) string {
	return MethodLabelPrefix + string(m)
}

// MethodLabelDescriptions contains the descriptions of the merge method
// labels.
var MethodLabelDescriptions = map[githubclt.MergeMethod]string{
	githubclt.MergeMethodMerge:  "Auto-merge with merge commit",
	githubclt.MergeMethodRebase: "Auto-merge with rebase and merge",
	githubclt.MergeMethodSquash: "Auto-merge with squash and merge",
}

// methodFromLabel returns the merge method of a method label.
// If label is not a method label or the method is unsupported, false is
// returned.
func methodFromLabel(label string) (githubclt.MergeMethod, bool) {
	if !strings.HasPrefix(label, MethodLabelPrefix) {
		return "", false
	}

	_, val, _ := strings.Cut(label, ":")

	return githubclt.ParseMergeMethod(strings.ToLower(strings.TrimSpace(val)))
}
