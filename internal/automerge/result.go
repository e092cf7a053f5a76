package automerge

import (
	"strings"
)

type Visibility int

const (
	VisibilityVisible Visibility = iota
	// VisibilityHidden marks results of evaluations where nothing had to
	// be done.
	VisibilityHidden
)

func (v Visibility) String() string {
	if v == VisibilityHidden {
		return "hidden"
	}

	return "visible"
}

const (
	// CodeHandled is the result code of all outcomes that do not require
	// user action.
	CodeHandled = 0
	// CodeFailure is the result code of misconfigurations.
	CodeFailure = 1
)

// Result is the outcome of an evaluation.
type Result struct {
	Code int
	// Reason is a markdown formatted description of the outcome.
	Reason     string
	Visibility Visibility
}

// NewResult returns a visible Result with CodeHandled.
func NewResult(reason string) *Result {
	return &Result{Code: CodeHandled, Reason: reason, Visibility: VisibilityVisible}
}

// NewHiddenResult returns a hidden Result with CodeHandled.
func NewHiddenResult(reason string) *Result {
	return &Result{Code: CodeHandled, Reason: reason, Visibility: VisibilityHidden}
}

// NewFailureResult returns a visible Result with CodeFailure.
func NewFailureResult(reason string) *Result {
	return &Result{Code: CodeFailure, Reason: reason, Visibility: VisibilityVisible}
}

func (r *Result) Hidden() bool {
	return r.Visibility == VisibilityHidden
}

// AggregateResults combines results into one.
// The code is CodeFailure if any result has a non-zero code, reasons are
// newline separated. The result is hidden if all results are hidden.
func AggregateResults(results []*Result) *Result {
	if len(results) == 0 {
		return NewHiddenResult("No pull requests to evaluate")
	}

	agg := Result{Code: CodeHandled, Visibility: VisibilityHidden}
	reasons := make([]string, 0, len(results))

	for _, r := range results {
		if r.Code != CodeHandled {
			agg.Code = CodeFailure
		}

		if !r.Hidden() {
			agg.Visibility = VisibilityVisible
		}

		reasons = append(reasons, r.Reason)
	}

	agg.Reason = strings.Join(reasons, "\n")

	return &agg
}
