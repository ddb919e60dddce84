package provisioning

import "github.com/heartmarshall/account-import/internal/domain"

// Action is what the batch does after a row failed.
type Action int

const (
	// ActionSkip writes the audit entry and continues with the next row.
	ActionSkip Action = iota + 1
	// ActionAbort writes the audit entry and stops the batch.
	ActionAbort
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionAbort:
		return "abort"
	}
	return "unknown"
}

// Policy maps failure kinds to actions. Kinds missing from the table abort.
type Policy map[Kind]Action

// Action returns the action for kind.
func (p Policy) Action(kind Kind) Action {
	if a, ok := p[kind]; ok {
		return a
	}
	return ActionAbort
}

// AskerPolicy is used for both asker variants. Identity-provider failures
// abort: an asker batch is all-or-nothing from the account creation onwards.
func AskerPolicy() Policy {
	return Policy{
		KindMalformedRow:     ActionSkip,
		KindNotFound:         ActionSkip,
		KindInvalidReference: ActionSkip,
		KindAlreadyExists:    ActionSkip,
		KindProviderError:    ActionAbort,
		KindChatAuth:         ActionAbort,
		KindChatGroup:        ActionAbort,
		KindPersistence:      ActionAbort,
		KindDerivedStep:      ActionAbort,
	}
}

// ConsultantPolicy lets one bad consultant fail without blocking the rest of
// the batch when the identity provider or a room re-sync rejects it.
func ConsultantPolicy() Policy {
	return Policy{
		KindMalformedRow:     ActionSkip,
		KindNotFound:         ActionSkip,
		KindInvalidReference: ActionSkip,
		KindAlreadyExists:    ActionSkip,
		KindProviderError:    ActionSkip,
		KindChatAuth:         ActionAbort,
		KindChatGroup:        ActionSkip,
		KindPersistence:      ActionAbort,
		KindDerivedStep:      ActionAbort,
	}
}

// PolicyFor returns the policy of variant.
func PolicyFor(variant domain.Variant) Policy {
	if variant == domain.VariantConsultant {
		return ConsultantPolicy()
	}
	return AskerPolicy()
}
