// Package task defines the task kinds forge can run against a feature and
// the stable feature identifiers used to key persisted state.
package task

import "fmt"

// Kind identifies the type of work a task performs.
type Kind string

const (
	// KindPlanning produces an implementation plan for a feature.
	KindPlanning Kind = "planning"
	// KindImplementation executes the implementation plan.
	KindImplementation Kind = "implementation"
	// KindVerification verifies the implementation.
	KindVerification Kind = "verification"
)

// Kinds lists all valid task kinds in execution order.
var Kinds = []Kind{KindPlanning, KindImplementation, KindVerification}

// ResumeTemplate is the name of the template used to continue an
// interrupted task. It is not a Kind: its execution configuration is
// always derived from the interrupted task's original kind.
const ResumeTemplate = "resume"

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPlanning, KindImplementation, KindVerification:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown task kind: %q (expected planning, implementation or verification)", s)
}

// String returns the kind as a string.
func (k Kind) String() string {
	return string(k)
}

// TemplateName returns the prompt template name for this kind.
func (k Kind) TemplateName() string {
	switch k {
	case KindPlanning:
		return "plan"
	case KindImplementation:
		return "implement"
	case KindVerification:
		return "verify"
	}
	return string(k)
}

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	switch k {
	case KindPlanning, KindImplementation, KindVerification:
		return true
	}
	return false
}
