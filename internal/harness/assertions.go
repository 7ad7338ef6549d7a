package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the computed view so the failure is debuggable from the
// message alone.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result's views
// and returns the failure messages. An assertion against a view whose
// operation never ran is itself a failure: the scenario's flow is
// incomplete, not the engine.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// evaluateAssertion dispatches on the assertion type.
func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFeedCount:
		if !result.ranAggregate {
			return missingOp(a.Type, OpAggregate)
		}
		if len(result.Feed) != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d feed item(s)", a.Count),
				Actual:   fmt.Sprintf("%d feed item(s)", len(result.Feed)),
			}
		}

	case AssertSingletonCount:
		if !result.ranAggregate {
			return missingOp(a.Type, OpAggregate)
		}
		n := 0
		for _, item := range result.Feed {
			if item.Event != nil {
				n++
			}
		}
		if n != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d singleton(s)", a.Count),
				Actual:   fmt.Sprintf("%d singleton(s)", n),
			}
		}

	case AssertCluster:
		if !result.ranAggregate {
			return missingOp(a.Type, OpAggregate)
		}
		var sizes []string
		for _, item := range result.Feed {
			if item.Cluster == nil || item.Cluster.TargetKey != a.TargetKey {
				continue
			}
			if len(item.Cluster.Members) == a.Size {
				return nil
			}
			sizes = append(sizes, fmt.Sprintf("x%d", len(item.Cluster.Members)))
		}
		actual := "no cluster with that key"
		if len(sizes) > 0 {
			actual = fmt.Sprintf("cluster(s) %s", strings.Join(sizes, ", "))
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("cluster %q with %d member(s)", a.TargetKey, a.Size),
			Actual:   actual,
		}

	case AssertThreadCount:
		if !result.ranConversations {
			return missingOp(a.Type, OpConversations)
		}
		if len(result.Threads) != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d thread(s)", a.Count),
				Actual:   fmt.Sprintf("%d thread(s)", len(result.Threads)),
			}
		}

	case AssertThread:
		if !result.ranConversations {
			return missingOp(a.Type, OpConversations)
		}
		for _, t := range result.Threads {
			if t.RootURI != a.Root {
				continue
			}
			if a.Replies > 0 && t.TotalReplies != a.Replies {
				return &AssertionError{
					Type:     a.Type,
					Expected: fmt.Sprintf("thread %q with %d repl(ies)", a.Root, a.Replies),
					Actual:   fmt.Sprintf("thread %q with %d repl(ies)", a.Root, t.TotalReplies),
				}
			}
			if len(a.Participants) > 0 && !equalStrings(t.Participants, a.Participants) {
				return &AssertionError{
					Type:     a.Type,
					Expected: fmt.Sprintf("participants %v", a.Participants),
					Actual:   fmt.Sprintf("participants %v", t.Participants),
				}
			}
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("thread rooted at %q", a.Root),
			Actual:   fmt.Sprintf("roots %v", threadRoots(result)),
		}

	case AssertFrontierContains:
		if !result.ranFrontier {
			return missingOp(a.Type, OpFrontier)
		}
		for _, uri := range result.Frontier {
			if uri == a.URI {
				return nil
			}
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("frontier containing %q", a.URI),
			Actual:   fmt.Sprintf("frontier %v", result.Frontier),
		}

	case AssertFrontierEmpty:
		if !result.ranFrontier {
			return missingOp(a.Type, OpFrontier)
		}
		if len(result.Frontier) > 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: "empty frontier",
				Actual:   fmt.Sprintf("frontier %v", result.Frontier),
			}
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// missingOp reports an assertion whose backing operation never ran.
func missingOp(assertType, op string) error {
	return &AssertionError{
		Type:     assertType,
		Expected: fmt.Sprintf("flow includes the %s op", op),
		Actual:   "operation never ran",
	}
}

// threadRoots lists the reconstructed root URIs.
func threadRoots(result *Result) []string {
	roots := make([]string, len(result.Threads))
	for i, t := range result.Threads {
		roots[i] = t.RootURI
	}
	return roots
}

// equalStrings compares two string slices element for element.
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
