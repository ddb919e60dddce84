package provisioning

import "github.com/heartmarshall/account-import/internal/domain"

func (o *Orchestrator) buildPlans() map[domain.Variant]plan {
	askerProfile := func(st *rowState) domain.AccountProfile {
		return domain.AccountProfile{Username: st.base.UsernameEncoded, Email: st.base.Email}
	}

	return map[domain.Variant]plan{
		domain.VariantAsker: {
			variant: domain.VariantAsker,
			policy:  AskerPolicy(),
			steps: []step{
				{name: StepResolve, kind: KindPersistence, run: o.resolveAsker},
				{name: StepAvailability, kind: KindProviderError, run: o.checkAskerAvailable},
				{name: StepCreateAccount, kind: KindProviderError, run: o.createAccount(askerProfile)},
				{name: StepCredentials, kind: KindProviderError, run: o.setCredentials},
				{name: StepChatLogin, kind: KindChatAuth, run: o.chatLogin},
				{name: StepPersist, kind: KindPersistence, run: o.persistAsker},
				{name: StepSession, kind: KindDerivedStep, run: o.setupSession},
				{name: StepWelcome, kind: KindDerivedStep, run: o.postWelcome},
			},
		},
		domain.VariantAskerWithoutSession: {
			variant: domain.VariantAskerWithoutSession,
			policy:  AskerPolicy(),
			steps: []step{
				{name: StepResolve, kind: KindPersistence, run: o.resolveAsker},
				{name: StepAvailability, kind: KindProviderError, run: o.checkAskerAvailable},
				{name: StepCreateAccount, kind: KindProviderError, run: o.createAccount(askerProfile)},
				{name: StepCredentials, kind: KindProviderError, run: o.setCredentials},
				{name: StepChatLogin, kind: KindChatAuth, run: o.chatLogin},
				{name: StepPersist, kind: KindPersistence, run: o.persistAsker},
			},
		},
		domain.VariantConsultant: {
			variant: domain.VariantConsultant,
			policy:  ConsultantPolicy(),
			steps: []step{
				{name: StepResolve, kind: KindPersistence, run: o.resolveConsultant},
				{name: StepAvailability, kind: KindPersistence, run: o.checkConsultantAvailable},
				{name: StepCreateAccount, kind: KindProviderError, run: o.createAccount(consultantProfile)},
				{name: StepCredentials, kind: KindProviderError, run: o.setCredentials},
				{name: StepChatLogin, kind: KindChatAuth, run: o.chatLogin},
				{name: StepPersist, kind: KindPersistence, run: o.persistConsultant},
				{name: StepResync, kind: KindChatGroup, run: o.resyncRooms},
			},
		},
	}
}
