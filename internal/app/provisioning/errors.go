package provisioning

import (
	"errors"
	"fmt"
)

// Kind classifies why a row failed. The variant's Policy maps every Kind to
// skip or abort.
type Kind string

const (
	KindMalformedRow     Kind = "MalformedRow"
	KindNotFound         Kind = "NotFound"
	KindInvalidReference Kind = "InvalidReference"
	KindAlreadyExists    Kind = "AlreadyExists"
	KindProviderError    Kind = "ProviderError"
	KindChatAuth         Kind = "ChatAuthError"
	KindChatGroup        Kind = "ChatGroupError"
	KindPersistence      Kind = "PersistenceError"
	KindDerivedStep      Kind = "DerivedStepError"
)

func (k Kind) String() string { return string(k) }

// Step names one stage of a row plan.
type Step string

const (
	StepValidate      Step = "validate"
	StepResolve       Step = "resolve"
	StepAvailability  Step = "availability"
	StepCreateAccount Step = "create_account"
	StepCredentials   Step = "credentials"
	StepChatLogin     Step = "chat_login"
	StepPersist       Step = "persist"
	StepSession       Step = "session"
	StepWelcome       Step = "welcome"
	StepResync        Step = "resync"
)

func (s Step) String() string { return string(s) }

// StepError is the classified failure of one row.
type StepError struct {
	Step Step
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// classified marks err with kind. The plan runner fills in the step.
func classified(kind Kind, err error) error {
	return &StepError{Kind: kind, Err: err}
}

// asStepError returns err as a *StepError of step, falling back to kind
// when no step function classified it.
func asStepError(step Step, kind Kind, err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		if se.Step == "" {
			se.Step = step
		}
		return se
	}
	return &StepError{Step: step, Kind: kind, Err: err}
}
