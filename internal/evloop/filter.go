package evloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// DefFilterQuery is the filter query that matches all events.
const DefFilterQuery = "true"

// Filter decides by evaluating a jq query on the JSON payload of an event if
// it is processed.
type Filter struct {
	query *gojq.Query
}

// NewFilter parses jqQuery. The query must evaluate to a single boolean
// value.
func NewFilter(jqQuery string) (*Filter, error) {
	if jqQuery == "" {
		jqQuery = DefFilterQuery
	}

	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, err
	}

	return &Filter{query: query}, nil
}

func (f *Filter) String() string {
	return f.query.String()
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errors []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errors
		}

		if err, isErr := res.(error); isErr {
			errors = append(errors, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}

// Match returns true if the filter query evaluates to true for the JSON
// document.
func (f *Filter) Match(ctx context.Context, jsonDoc []byte) (bool, error) {
	var evUn any

	if len(jsonDoc) == 0 {
		return false, errors.New("json document is empty")
	}

	err := json.Unmarshal(jsonDoc, &evUn)
	if err != nil {
		return false, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(f.query.RunWithContext(ctx, evUn))
	if len(errs) != 0 {
		return false, fmt.Errorf("json query returned errors, query: %q, errors: %s", f.query.String(), errString(errs))
	}

	if len(result) != 1 {
		return false, fmt.Errorf("json query returned %d results, expected 1, query: %q", len(result), f.query.String())
	}

	val, ok := result[0].(bool)
	if !ok {
		return false, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], f.query.String(),
		)
	}

	return val, nil
}
