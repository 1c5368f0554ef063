package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/sessionlog"
)

// AssertionError is returned when an assertion fails.
// It includes the session log to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Records  []ir.LogRecord
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nSession log:\n")
	for _, r := range e.Records {
		fmt.Fprintf(&buf, "  %s", r.Line())
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	n := a.Session
	if n == 0 {
		n = 1
	}
	if n > len(result.Sessions) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("session %d", n),
			Actual:   fmt.Sprintf("%d sessions ran", len(result.Sessions)),
		}
	}
	session := result.Sessions[n-1]

	switch a.Type {
	case AssertLogContains:
		return assertLogContains(session.Records, a)
	case AssertLogOrder:
		return assertLogOrder(session.Records, a)
	case AssertLogCount:
		return assertLogCount(session.Records, a)
	case AssertOutcome:
		return assertOutcome(session, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertLogContains checks for a record with the tag and, if given, value.
func assertLogContains(records []ir.LogRecord, a Assertion) error {
	for _, r := range records {
		if r.Tag == a.Tag && (a.Value == nil || (!r.IsRaw && r.Value == *a.Value)) {
			return nil
		}
	}

	expected := a.Tag
	if a.Value != nil {
		expected = fmt.Sprintf("%s %d", a.Tag, *a.Value)
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: expected,
		Actual:   "not found in log",
		Records:  records,
	}
}

// assertLogOrder checks that the first occurrences of the tags are ordered.
// Tags don't need to be consecutive.
func assertLogOrder(records []ir.LogRecord, a Assertion) error {
	positions := make(map[string]int)
	for i, r := range records {
		if positions[r.Tag] == 0 {
			positions[r.Tag] = i + 1 // 1-indexed for readability
		}
	}

	for _, tag := range a.Tags {
		if positions[tag] == 0 {
			return &AssertionError{
				Type:     AssertLogOrder,
				Expected: fmt.Sprintf("all tags present: %v", a.Tags),
				Actual:   fmt.Sprintf("missing tag: %s", tag),
				Records:  records,
			}
		}
	}

	for i := 1; i < len(a.Tags); i++ {
		prev, curr := a.Tags[i-1], a.Tags[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertLogOrder,
				Expected: fmt.Sprintf("tags in order: %v", a.Tags),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Records: records,
			}
		}
	}
	return nil
}

// assertLogCount checks that the tag appears exactly Count times.
func assertLogCount(records []ir.LogRecord, a Assertion) error {
	count := 0
	for _, r := range records {
		if r.Tag == a.Tag {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertLogCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Tag),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Records:  records,
		}
	}
	return nil
}

func assertOutcome(session SessionResult, a Assertion) error {
	actual := sessionlog.OutcomeString(session.Summary.Outcome)
	if actual != a.Outcome {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: a.Outcome,
			Actual:   actual,
			Records:  session.Records,
		}
	}
	return nil
}
