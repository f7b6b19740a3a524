package reconcile

import (
	"fmt"
	"strings"

	"github.com/evanofslack/ovh-reconcile/internal/poll"
)

// ValidationError reports a missing or malformed desired-state field.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s request: %s %s", e.Kind, e.Field, e.Reason)
}

func required(kind Kind, field string) error {
	return &ValidationError{Kind: kind, Field: field, Reason: "is required"}
}

// AmbiguityError is returned when more than one remote record matches a
// selector that must be unique. Nothing is mutated.
type AmbiguityError struct {
	Kind     Kind
	Selector string
	IDs      []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("more than one %s record match %s (%s), refusing to update any of them",
		e.Kind, e.Selector, strings.Join(e.IDs, ", "))
}

// TopologyMismatchError is returned when a server exposes a hardware layout
// that cannot be handled, such as several RAID controllers.
type TopologyMismatchError struct {
	Server      string
	Controllers int
}

func (e *TopologyMismatchError) Error() string {
	return fmt.Sprintf("server %s has %d hardware RAID controllers, exactly one is supported", e.Server, e.Controllers)
}

// TemplateStepError identifies the provisioning step that failed. Steps
// before it were applied remotely and are not rolled back.
type TemplateStepError struct {
	Template string
	Step     int
	Name     string
	Err      error
}

func (e *TemplateStepError) Error() string {
	applied := "no step was applied"
	if e.Step > 1 {
		applied = fmt.Sprintf("steps 1-%d were applied and are not rolled back", e.Step-1)
	}
	return fmt.Sprintf("template %s: step %d (%s) failed, %s: %v", e.Template, e.Step, e.Name, applied, e.Err)
}

func (e *TemplateStepError) Unwrap() error {
	return e.Err
}

type (
	PollExhaustedError  = poll.ExhaustedError
	TerminalStatusError = poll.TerminalStatusError
)
